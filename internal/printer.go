package internal

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// GetLocalePrinter returns a message printer for the user's locale
func GetLocalePrinter() *message.Printer {
	return message.NewPrinter(getUserLocale())
}

// PrettyPrintInt returns input with the locale's digit grouping
func PrettyPrintInt(input int64) string {
	return GetLocalePrinter().Sprintf("%d", input)
}

// PrettyPrintBytes returns a byte count scaled to the largest binary unit,
// e.g. "1.5 MiB"
func PrettyPrintBytes(bytes int64) string {
	const unit = 1024

	if bytes < unit {
		return GetLocalePrinter().Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0

	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	const prefixes = "KMGTPE"

	return GetLocalePrinter().Sprintf("%.1f %ciB", float64(bytes)/float64(div), prefixes[exp])
}

func getUserLocale() language.Tag {
	locale := os.Getenv("LC_ALL")

	if locale == "" {
		locale = os.Getenv("LC_NUMERIC")
	}

	if locale == "" {
		locale = os.Getenv("LANG")
	}

	return parseLocale(locale)
}

// parseLocale turns a POSIX locale such as "de_DE.UTF-8@euro" into a
// language tag, falling back to English.
func parseLocale(locale string) language.Tag {
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}

	if locale == "" || locale == "C" || locale == "POSIX" {
		return language.English
	}

	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.English
	}

	return tag
}
