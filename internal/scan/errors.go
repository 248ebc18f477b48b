package scan

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig matches every *ConfigError.
	ErrConfig = errors.New("invalid scan configuration")

	// ErrShortRead is wrapped by a *ReadError when the source returned fewer
	// bytes than it claims to hold.
	ErrShortRead = errors.New("short read")
)

// ConfigError reports a configuration rejected before any I/O.
type ConfigError struct {
	Field  string
	Value  int64
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %d: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// ReadError reports a failed chunk fill or display-window read. Either one
// ends the scan.
type ReadError struct {
	Op     string
	Offset int64
	Length int
	Got    int
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s of %d bytes at offset %d failed after %d bytes: %v", e.Op, e.Length, e.Offset, e.Got, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
