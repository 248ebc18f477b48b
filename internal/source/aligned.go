package source

import (
	"errors"
	"io"
)

// AlignedReader lets callers read arbitrary byte ranges from a sector-granular
// ByteSource. Each request is widened to whole sectors, read with a single
// physical read into a scratch buffer and trimmed back to what was asked for.
// For byte-granular sources it passes reads straight through.
//
// An AlignedReader is not safe for concurrent use.
type AlignedReader struct {
	src     ByteSource
	scratch []byte
	reads   int
}

func NewAlignedReader(src ByteSource) *AlignedReader {
	return &AlignedReader{src: src}
}

// PhysicalReads is the number of reads issued to the underlying source.
func (r *AlignedReader) PhysicalReads() int {
	return r.reads
}

// AlignRange expands [off, off+length) to the smallest sector-aligned range
// that contains it.
func AlignRange(off int64, length int, sectorSize int) (int64, int) {
	if sectorSize <= 1 {
		return off, length
	}

	ss := int64(sectorSize)
	alignedOff := (off / ss) * ss
	end := off + int64(length)
	alignedEnd := ((end + ss - 1) / ss) * ss

	return alignedOff, int(alignedEnd - alignedOff)
}

// ReadAt fills p with the bytes at off. It follows io.ReaderAt: a read that
// stops at the end of the source returns the bytes available and io.EOF. Any
// other failure of the physical read is returned as an *AlignmentError.
func (r *AlignedReader) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	size := r.src.Size()
	if off >= size {
		return 0, io.EOF
	}

	// Never ask the medium for anything past its end.
	want := len(p)
	if remaining := size - off; int64(want) > remaining {
		want = int(remaining)
	}

	sectorSize := r.src.SectorSize()
	alignedOff, alignedLen := AlignRange(off, want, sectorSize)

	if sectorSize <= 1 {
		n, err := r.physicalRead(p[:want], off, want)
		if err != nil {
			return n, &AlignmentError{Offset: off, Length: len(p), AlignedOffset: off, AlignedLength: want, Err: err}
		}

		return r.finish(n, len(p))
	}

	if cap(r.scratch) < alignedLen {
		r.scratch = make([]byte, alignedLen)
	}

	scratch := r.scratch[:alignedLen]

	skip := int(off - alignedOff)

	// The last sector of a medium whose size is not a sector multiple may
	// come back short; only the requested bytes have to be present.
	n, err := r.physicalRead(scratch, alignedOff, skip+want)
	if err != nil {
		return 0, &AlignmentError{Offset: off, Length: len(p), AlignedOffset: alignedOff, AlignedLength: alignedLen, Err: err}
	}

	copied := copy(p[:want], scratch[skip:n])

	return r.finish(copied, len(p))
}

// physicalRead issues one read to the source. Reaching the end of the medium
// is only an error when fewer than need bytes came back.
func (r *AlignedReader) physicalRead(buf []byte, off int64, need int) (int, error) {
	r.reads++

	n, err := r.src.ReadAt(buf, off)
	if n >= need && (err == nil || errors.Is(err, io.EOF)) {
		return n, nil
	}

	if err == nil {
		return n, io.ErrUnexpectedEOF
	}

	if errors.Is(err, io.EOF) {
		return n, io.ErrUnexpectedEOF
	}

	return n, err
}

func (r *AlignedReader) finish(n int, requested int) (int, error) {
	if n < requested {
		return n, io.EOF
	}

	return n, nil
}
