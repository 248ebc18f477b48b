// Package profile loads named search patterns from a YAML file so common
// signatures do not have to be retyped:
//
//	patterns:
//	  jpeg:
//	    expression: '\xFF\xD8\xFF[\xDB\xE0\xE1]'
//	    width: 32
//	    description: JPEG start of image
//	  bitcoin-magic:
//	    hex: f9beb4d9
package profile

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/timmattison/bingrep/internal/pattern"
	"gopkg.in/yaml.v3"
)

var ErrUnknownPattern = errors.New("unknown pattern")

// Entry is one named pattern. Exactly one of Expression and Hex is set.
type Entry struct {
	Expression  string `yaml:"expression"`
	Hex         string `yaml:"hex"`
	Width       int    `yaml:"width"`
	Description string `yaml:"description"`
}

type File struct {
	Patterns map[string]Entry `yaml:"patterns"`
}

// Load reads and validates a profile file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var file File

	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}

	for name, entry := range file.Patterns {
		if (entry.Expression == "") == (entry.Hex == "") {
			return nil, fmt.Errorf("pattern %q must set exactly one of expression and hex", name)
		}

		if entry.Width < 0 {
			return nil, fmt.Errorf("pattern %q has negative width %d", name, entry.Width)
		}
	}

	return &file, nil
}

// Lookup returns the entry called name.
func (f *File) Lookup(name string) (Entry, error) {
	entry, ok := f.Patterns[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w %q", ErrUnknownPattern, name)
	}

	return entry, nil
}

// Names lists the pattern names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Patterns))

	for name := range f.Patterns {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Compile builds the entry's pattern.
func (e Entry) Compile() (*pattern.Pattern, error) {
	if e.Hex != "" {
		return pattern.FromHex(e.Hex)
	}

	return pattern.Compile(e.Expression)
}
