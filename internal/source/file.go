package source

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// File is a byte-granular ByteSource backed by a read-only memory mapping of
// an ordinary file.
type File struct {
	path   string
	file   *os.File
	mapped mmap.MMap
}

// OpenFile maps path read-only.
func OpenFile(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &OpenError{Path: path, Err: err}
	}

	if info.IsDir() {
		file.Close()
		return nil, &OpenError{Path: path, Err: fmt.Errorf("is a directory")}
	}

	f := &File{path: path, file: file}

	// Empty files cannot be mapped
	if info.Size() == 0 {
		return f, nil
	}

	if f.mapped, err = mmap.Map(file, mmap.RDONLY, 0); err != nil {
		file.Close()
		return nil, &OpenError{Path: path, Err: fmt.Errorf("error memory mapping file: %w", err)}
	}

	return f, nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return readAtBounded(p, off, f.Size(), func(p []byte, off int64) (int, error) {
		return copy(p, f.mapped[off:]), nil
	})
}

func (f *File) Close() error {
	var unmapErr error

	if f.mapped != nil {
		unmapErr = f.mapped.Unmap()
		f.mapped = nil
	}

	if err := f.file.Close(); err != nil {
		return err
	}

	return unmapErr
}

func (f *File) Name() string {
	return f.path
}

func (f *File) Size() int64 {
	return int64(len(f.mapped))
}

func (f *File) SectorSize() int {
	return 1
}
