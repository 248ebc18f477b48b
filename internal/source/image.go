package source

import (
	"github.com/timmattison/bingrep/internal/ewf"
)

// Image is a sector-granular ByteSource over an Expert Witness (E01) image.
// It enforces the same alignment rules as a physical device so images and
// disks take the same path through the scanner.
type Image struct {
	path  string
	image *ewf.Image
}

// OpenImage opens the EWF segment set whose first segment is path.
func OpenImage(path string) (*Image, error) {
	image, err := ewf.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	return &Image{path: path, image: image}, nil
}

func (i *Image) ReadAt(p []byte, off int64) (int, error) {
	if err := checkAligned(off, len(p), i.SectorSize()); err != nil {
		return 0, err
	}

	return i.image.ReadAt(p, off)
}

func (i *Image) Close() error {
	return i.image.Close()
}

func (i *Image) Name() string {
	return i.path
}

func (i *Image) Size() int64 {
	return i.image.Size()
}

func (i *Image) SectorSize() int {
	return i.image.BytesPerSector()
}

// Metadata exposes the acquisition details recorded in the image.
func (i *Image) Metadata() map[string]string {
	return i.image.Header()
}

// Segments lists the segment files backing the image.
func (i *Image) Segments() []string {
	return i.image.Segments()
}

// ChunkCount is the number of media chunks the image tables describe.
func (i *Image) ChunkCount() int {
	return i.image.ChunkCount()
}
