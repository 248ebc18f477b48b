package internal

import (
	"bytes"
	"io"
)

// OutputCounter tallies what actually reached Writer: bytes and complete
// lines. A short write counts only the bytes that were accepted.
type OutputCounter struct {
	Writer io.Writer
	bytes  int64
	lines  int64
}

func (oc *OutputCounter) Write(p []byte) (int, error) {
	n, err := oc.Writer.Write(p)
	oc.bytes += int64(n)
	oc.lines += int64(bytes.Count(p[:n], []byte{'\n'}))
	return n, err
}

func (oc *OutputCounter) Bytes() int64 {
	return oc.bytes
}

func (oc *OutputCounter) Lines() int64 {
	return oc.lines
}
