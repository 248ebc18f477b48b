package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmattison/bingrep/internal/pattern"
	"github.com/timmattison/bingrep/internal/profile"
	"github.com/timmattison/bingrep/internal/scan"
	"github.com/timmattison/bingrep/internal/source"
)

const (
	exitOK          = 0
	exitUsage       = 1
	exitConfig      = 2
	exitPattern     = 3
	exitOpen        = 4
	exitIO          = 5
	exitInterrupted = 130
)

var (
	errUsage   = errors.New("usage")
	errProfile = errors.New("profile")
)

// resolvePattern picks the pattern from -e, -x or -profile/-use. No pattern
// at all means dump mode and returns nil. A profile entry may also carry a
// display width.
func resolvePattern(regex, hexPattern, profilePath, profileName string) (*pattern.Pattern, int, error) {
	given := 0
	for _, value := range []string{regex, hexPattern, profileName} {
		if value != "" {
			given++
		}
	}

	if given > 1 {
		return nil, 0, fmt.Errorf("%w: use only one of -e, -x and -use", errUsage)
	}

	if profilePath != "" && profileName == "" {
		return nil, 0, fmt.Errorf("%w: -profile needs -use to pick a pattern", errUsage)
	}

	switch {
	case regex != "":
		p, err := pattern.Compile(regex)
		return p, 0, err
	case hexPattern != "":
		p, err := pattern.FromHex(hexPattern)
		return p, 0, err
	case profileName != "":
		if profilePath == "" {
			return nil, 0, fmt.Errorf("%w: -use needs -profile", errUsage)
		}

		file, err := profile.Load(profilePath)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", errProfile, err)
		}

		entry, err := file.Lookup(profileName)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w (available: %v)", errProfile, err, file.Names())
		}

		p, err := entry.Compile()

		return p, entry.Width, err
	}

	return nil, 0, nil
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, pattern.ErrCompile):
		return exitPattern
	case errors.Is(err, scan.ErrConfig), errors.Is(err, errProfile):
		return exitConfig
	case errors.Is(err, source.ErrOpen):
		return exitOpen
	default:
		return exitIO
	}
}
