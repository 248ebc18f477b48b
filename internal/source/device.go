package source

import (
	"fmt"
	"io"
	"os"
)

// Device is a sector-granular ByteSource over a raw block device. Reads must
// be sector aligned; use an AlignedReader for anything else.
type Device struct {
	path       string
	file       *os.File
	size       int64
	sectorSize int
}

// OpenDevice opens a block device read-only and queries its geometry.
// Opening a physical disk usually requires elevated privileges.
func OpenDevice(path string) (*Device, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			err = fmt.Errorf("%w (raw device access needs root or disk group membership)", err)
		}

		return nil, &OpenError{Path: path, Err: err}
	}

	sectorSize, err := querySectorSize(file)
	if err != nil {
		file.Close()
		return nil, &OpenError{Path: path, Err: fmt.Errorf("querying sector size: %w", err)}
	}

	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, &OpenError{Path: path, Err: fmt.Errorf("querying device size: %w", err)}
	}

	return &Device{path: path, file: file, size: size, sectorSize: sectorSize}, nil
}

func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if err := checkAligned(off, len(p), d.sectorSize); err != nil {
		return 0, err
	}

	return readAtBounded(p, off, d.size, d.file.ReadAt)
}

func (d *Device) Close() error {
	return d.file.Close()
}

func (d *Device) Name() string {
	return d.path
}

func (d *Device) Size() int64 {
	return d.size
}

func (d *Device) SectorSize() int {
	return d.sectorSize
}
