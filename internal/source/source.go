// Package source provides the byte sources bingrep can scan: ordinary files,
// raw block devices, Expert Witness (E01) images and in-memory buffers.
//
// Every source exposes the same small contract. Sources with a sector size
// greater than one only accept reads whose offset and length are multiples of
// that sector size; wrap them in an AlignedReader to issue arbitrary reads.
package source

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrOpen matches every *OpenError.
	ErrOpen = errors.New("source open failed")

	// ErrAlignment matches every *AlignmentError.
	ErrAlignment = errors.New("aligned read failed")

	// ErrUnaligned is returned by sector-granular sources when a request does
	// not start and end on a sector boundary.
	ErrUnaligned = errors.New("request is not sector aligned")
)

// ByteSource is a random-access, read-only view of a medium.
type ByteSource interface {
	io.ReaderAt
	io.Closer

	// Name identifies the source in diagnostics (a path or device node).
	Name() string

	// Size is the logical length of the medium in bytes.
	Size() int64

	// SectorSize is the read granularity of the medium. 1 means any offset
	// and length can be read.
	SectorSize() int
}

// OpenError reports a source that could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("could not open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}

// AlignmentError reports a physical read, issued on behalf of a logical
// request, that the medium could not satisfy.
type AlignmentError struct {
	Offset        int64
	Length        int
	AlignedOffset int64
	AlignedLength int
	Err           error
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("read of %d bytes at offset %d (aligned to %d bytes at offset %d) failed: %v",
		e.Length, e.Offset, e.AlignedLength, e.AlignedOffset, e.Err)
}

func (e *AlignmentError) Unwrap() error {
	return e.Err
}

func (e *AlignmentError) Is(target error) bool {
	return target == ErrAlignment
}

// checkAligned rejects a physical request that a sector-granular medium
// cannot serve.
func checkAligned(off int64, length int, sectorSize int) error {
	if sectorSize <= 1 {
		return nil
	}

	if off%int64(sectorSize) != 0 || length%sectorSize != 0 {
		return &AlignmentError{
			Offset:        off,
			Length:        length,
			AlignedOffset: off,
			AlignedLength: length,
			Err:           fmt.Errorf("%w: sector size is %d", ErrUnaligned, sectorSize),
		}
	}

	return nil
}

// readAtBounded serves ReadAt for sources that can read any range below size
// and signal the end of the medium with io.EOF.
func readAtBounded(p []byte, off int64, size int64, read func(p []byte, off int64) (int, error)) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}

	if off >= size {
		return 0, io.EOF
	}

	want := len(p)
	short := false

	if remaining := size - off; int64(want) > remaining {
		want = int(remaining)
		short = true
	}

	n, err := read(p[:want], off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}

	if n < len(p) {
		if !short && n < want {
			return n, io.ErrUnexpectedEOF
		}

		return n, io.EOF
	}

	return n, nil
}
