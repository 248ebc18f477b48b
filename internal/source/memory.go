package source

import (
	"fmt"
	"io"
)

// Memory is a ByteSource over a byte slice. A sector size greater than one
// makes it behave like a block device, rejecting unaligned reads.
type Memory struct {
	name       string
	data       []byte
	sectorSize int
}

func NewMemory(name string, data []byte, sectorSize int) *Memory {
	if sectorSize < 1 {
		sectorSize = 1
	}

	return &Memory{name: name, data: data, sectorSize: sectorSize}
}

// ReadAll buffers r completely, the way stdin is scanned.
func ReadAll(name string, r io.Reader) (*Memory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &OpenError{Path: name, Err: fmt.Errorf("reading input: %w", err)}
	}

	return NewMemory(name, data, 1), nil
}

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	if err := checkAligned(off, len(p), m.sectorSize); err != nil {
		return 0, err
	}

	return readAtBounded(p, off, int64(len(m.data)), func(p []byte, off int64) (int, error) {
		return copy(p, m.data[off:]), nil
	})
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) Name() string {
	return m.name
}

func (m *Memory) Size() int64 {
	return int64(len(m.data))
}

func (m *Memory) SectorSize() int {
	return m.sectorSize
}
