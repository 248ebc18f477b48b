package source

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

var physicalDrivePath = regexp.MustCompile(`(?i)^\\\\\.\\PHYSICALDRIVE[0-9]+$`)

// Open selects the ByteSource variant for path: standard input, a raw block
// device, an EWF image (.E01) or an ordinary file.
func Open(path string) (ByteSource, error) {
	if path == Stdin {
		return ReadAll("stdin", os.Stdin)
	}

	if physicalDrivePath.MatchString(path) {
		return OpenDevice(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	if IsBlockDevice(info) {
		return OpenDevice(path)
	}

	if strings.EqualFold(filepath.Ext(path), ".e01") {
		return OpenImage(path)
	}

	return OpenFile(path)
}
