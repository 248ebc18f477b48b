package ewf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// maxSegments is the last name in the E01..E99, EAA..ZZZ sequence.
const maxSegments = 99 + 22*26*26

// SegmentExtension returns the extension of the n-th segment (1-based):
// .E01 through .E99, then .EAA, .EAB and so on up to .ZZZ.
func SegmentExtension(n int, lower bool) string {
	var ext string

	if n < 100 {
		ext = fmt.Sprintf(".E%02d", n)
	} else {
		k := n - 100
		ext = string([]byte{'.', byte('E' + k/(26*26)), byte('A' + (k/26)%26), byte('A' + k%26)})
	}

	if lower {
		return strings.ToLower(ext)
	}

	return ext
}

// SegmentPaths returns the segment files of the image that starts at path,
// in order. path must be the first segment (.E01, any case).
func SegmentPaths(path string) ([]string, error) {
	ext := filepath.Ext(path)

	if !strings.EqualFold(ext, ".e01") {
		return nil, fmt.Errorf("%w: %s does not have an .E01 extension", ErrNotEWF, path)
	}

	base := strings.TrimSuffix(path, ext)
	lower := ext == strings.ToLower(ext)
	paths := []string{path}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	for n := 2; n <= maxSegments; n++ {
		next := base + SegmentExtension(n, lower)

		if _, err := os.Stat(next); err != nil {
			break
		}

		paths = append(paths, next)
	}

	return paths, nil
}

var headerFieldNames = map[string]string{
	"a":  "description",
	"c":  "case_number",
	"n":  "evidence_number",
	"e":  "examiner",
	"t":  "notes",
	"av": "version",
	"ov": "platform",
	"m":  "acquired",
	"u":  "system_date",
	"r":  "compression",
}

// parseHeader decodes the zlib-compressed, tab-separated header section.
// Line 3 holds field identifiers and line 4 their values.
func parseHeader(r io.Reader) (map[string]string, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var lines []string

	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}

	if err = scanner.Err(); err != nil {
		return nil, err
	}

	if len(lines) < 4 {
		return nil, fmt.Errorf("%w: header has %d lines", ErrCorrupt, len(lines))
	}

	keys := strings.Split(lines[2], "\t")
	values := strings.Split(lines[3], "\t")
	header := map[string]string{}

	for i, key := range keys {
		name, ok := headerFieldNames[key]
		if !ok || i >= len(values) || values[i] == "" {
			continue
		}

		header[name] = values[i]
	}

	return header, nil
}
