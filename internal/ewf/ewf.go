// Package ewf reads Expert Witness Compression Format (EWF-E01) disk images.
//
// An image is a set of segment files (image.E01, image.E02, ...). Each segment
// is a chain of sections; the volume section describes the media geometry and
// the table sections locate every chunk of media data. Chunks are either zlib
// compressed or stored raw followed by an Adler-32 checksum.
package ewf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/adler32"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zlib"
)

const (
	fileHeaderSize        = 13
	sectionDescriptorSize = 76
	tableHeaderSize       = 24
	smartVolumeSize       = 94
	compressedFlag        = 0x80000000
	offsetMask            = 0x7fffffff

	maxBytesPerSector = 64 * 1024
	maxChunkSize      = 64 * 1024 * 1024
)

var evfSignature = []byte{'E', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00}

var (
	ErrNotEWF  = errors.New("not an EWF image")
	ErrCorrupt = errors.New("corrupt EWF image")
)

type chunkLocation struct {
	segment    int
	offset     int64
	storedSize int64
	compressed bool
}

// Image is a random-access view of the media stored in an EWF segment set.
// It is not safe for concurrent use.
type Image struct {
	paths           []string
	segments        []*os.File
	chunks          []chunkLocation
	bytesPerSector  int
	sectorsPerChunk int
	mediaSize       int64
	header          map[string]string

	cachedIndex int
	cached      []byte
	scratch     []byte
}

// Open discovers every segment belonging to the image whose first segment is
// path and indexes its chunk tables.
func Open(path string) (*Image, error) {
	paths, err := SegmentPaths(path)
	if err != nil {
		return nil, err
	}

	img := &Image{paths: paths, cachedIndex: -1}

	for i, segmentPath := range paths {
		file, err := os.Open(segmentPath)
		if err != nil {
			img.Close()
			return nil, err
		}

		img.segments = append(img.segments, file)

		if err = img.indexSegment(i, file); err != nil {
			img.Close()
			return nil, fmt.Errorf("%s: %w", segmentPath, err)
		}
	}

	if img.bytesPerSector == 0 || img.sectorsPerChunk == 0 {
		img.Close()
		return nil, fmt.Errorf("%w: no volume section", ErrCorrupt)
	}

	if needed := (img.mediaSize + int64(img.ChunkSize()) - 1) / int64(img.ChunkSize()); int64(len(img.chunks)) < needed {
		img.Close()
		return nil, fmt.Errorf("%w: tables describe %d chunks, media needs %d", ErrCorrupt, len(img.chunks), needed)
	}

	return img, nil
}

type sectionDescriptor struct {
	kind   string
	offset int64
	next   int64
	size   int64
}

func readSectionDescriptor(r io.ReaderAt, off int64) (sectionDescriptor, error) {
	raw := make([]byte, sectionDescriptorSize)

	if _, err := r.ReadAt(raw, off); err != nil {
		return sectionDescriptor{}, fmt.Errorf("%w: section at %d: %v", ErrCorrupt, off, err)
	}

	if want, got := binary.LittleEndian.Uint32(raw[72:]), adler32.Checksum(raw[:72]); want != got {
		return sectionDescriptor{}, fmt.Errorf("%w: section at %d has checksum %08x, computed %08x", ErrCorrupt, off, want, got)
	}

	return sectionDescriptor{
		kind:   strings.TrimRight(string(raw[:16]), "\x00"),
		offset: off,
		next:   int64(binary.LittleEndian.Uint64(raw[16:])),
		size:   int64(binary.LittleEndian.Uint64(raw[24:])),
	}, nil
}

func (img *Image) indexSegment(index int, file *os.File) error {
	header := make([]byte, fileHeaderSize)

	if _, err := file.ReadAt(header, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrNotEWF, err)
	}

	if string(header[:len(evfSignature)]) != string(evfSignature) {
		return ErrNotEWF
	}

	if number := int(binary.LittleEndian.Uint16(header[9:])); number != index+1 {
		return fmt.Errorf("%w: segment number %d, expected %d", ErrCorrupt, number, index+1)
	}

	var sectorsEnd int64
	off := int64(fileHeaderSize)

	for {
		section, err := readSectionDescriptor(file, off)
		if err != nil {
			return err
		}

		data := io.NewSectionReader(file, off+sectionDescriptorSize, section.size-sectionDescriptorSize)

		switch section.kind {
		case "header":
			if img.header == nil {
				// Case metadata is informational; an unreadable header does not
				// make the media unreadable.
				img.header, _ = parseHeader(data)
			}
		case "volume", "disk":
			if err = img.parseVolume(data); err != nil {
				return err
			}
		case "sectors":
			sectorsEnd = off + section.size
		case "table":
			if err = img.parseTable(index, data, off, sectorsEnd); err != nil {
				return err
			}
		case "next", "done":
			return nil
		}

		if section.next <= off {
			return fmt.Errorf("%w: section %q at %d points back to %d", ErrCorrupt, section.kind, off, section.next)
		}

		off = section.next
	}
}

func (img *Image) parseVolume(r *io.SectionReader) error {
	if img.bytesPerSector != 0 {
		return nil
	}

	raw := make([]byte, 24)
	if _, err := io.ReadFull(r, raw); err != nil {
		return fmt.Errorf("%w: volume section: %v", ErrCorrupt, err)
	}

	img.sectorsPerChunk = int(binary.LittleEndian.Uint32(raw[8:]))
	img.bytesPerSector = int(binary.LittleEndian.Uint32(raw[12:]))

	var sectorCount int64
	if r.Size() == smartVolumeSize {
		sectorCount = int64(binary.LittleEndian.Uint32(raw[16:]))
	} else {
		sectorCount = int64(binary.LittleEndian.Uint64(raw[16:]))
	}

	if !validGeometry(img.sectorsPerChunk, img.bytesPerSector) {
		return fmt.Errorf("%w: volume geometry %d sectors per chunk, %d bytes per sector", ErrCorrupt, img.sectorsPerChunk, img.bytesPerSector)
	}

	if sectorCount < 0 || sectorCount > math.MaxInt64/int64(img.bytesPerSector) {
		return fmt.Errorf("%w: volume sector count %d", ErrCorrupt, sectorCount)
	}

	img.mediaSize = sectorCount * int64(img.bytesPerSector)

	return nil
}

// validGeometry accepts power of two sector sizes up to 64 KiB and chunks up
// to 64 MiB.
func validGeometry(sectorsPerChunk, bytesPerSector int) bool {
	if bytesPerSector <= 0 || bytesPerSector > maxBytesPerSector || bytesPerSector&(bytesPerSector-1) != 0 {
		return false
	}

	return sectorsPerChunk > 0 && sectorsPerChunk <= maxChunkSize/bytesPerSector
}

func (img *Image) parseTable(segment int, r *io.SectionReader, tableOffset int64, sectorsEnd int64) error {
	header := make([]byte, tableHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("%w: table header: %v", ErrCorrupt, err)
	}

	count := int(binary.LittleEndian.Uint32(header))
	base := int64(binary.LittleEndian.Uint64(header[8:]))

	if int64(count)*4 > r.Size()-tableHeaderSize {
		return fmt.Errorf("%w: table of %d entries in a %d byte section", ErrCorrupt, count, r.Size())
	}

	raw := make([]byte, count*4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return fmt.Errorf("%w: table entries: %v", ErrCorrupt, err)
	}

	locations := make([]chunkLocation, count)

	for i := range locations {
		entry := binary.LittleEndian.Uint32(raw[i*4:])
		locations[i] = chunkLocation{
			segment:    segment,
			offset:     base + int64(entry&offsetMask),
			compressed: entry&compressedFlag != 0,
		}
	}

	for i := range locations {
		var end int64

		switch {
		case i+1 < len(locations):
			end = locations[i+1].offset
		case sectorsEnd > locations[i].offset:
			end = sectorsEnd
		default:
			end = tableOffset
		}

		if end <= locations[i].offset {
			return fmt.Errorf("%w: chunk at %d has no data", ErrCorrupt, locations[i].offset)
		}

		locations[i].storedSize = end - locations[i].offset
	}

	img.chunks = append(img.chunks, locations...)

	return nil
}

// ReadAt reads media bytes. It follows io.ReaderAt and returns io.EOF when
// the read reaches the end of the media.
func (img *Image) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}

	chunkSize := int64(img.ChunkSize())
	n := 0

	for n < len(p) {
		pos := off + int64(n)
		if pos >= img.mediaSize {
			return n, io.EOF
		}

		data, err := img.chunk(int(pos / chunkSize))
		if err != nil {
			return n, err
		}

		n += copy(p[n:], data[pos%chunkSize:])
	}

	return n, nil
}

func (img *Image) chunk(index int) ([]byte, error) {
	if index == img.cachedIndex {
		return img.cached, nil
	}

	location := img.chunks[index]
	chunkSize := int64(img.ChunkSize())

	length := chunkSize
	if remaining := img.mediaSize - int64(index)*chunkSize; remaining < length {
		length = remaining
	}

	if cap(img.cached) < int(chunkSize) {
		img.cached = make([]byte, chunkSize)
	}

	data := img.cached[:length]
	segment := img.segments[location.segment]
	stored := io.NewSectionReader(segment, location.offset, location.storedSize)

	img.cachedIndex = -1

	if location.compressed {
		zr, err := zlib.NewReader(stored)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrCorrupt, index, err)
		}

		_, err = io.ReadFull(zr, data)
		zr.Close()

		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrCorrupt, index, err)
		}
	} else {
		if _, err := io.ReadFull(stored, data); err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrCorrupt, index, err)
		}

		if location.storedSize >= length+4 {
			if cap(img.scratch) < 4 {
				img.scratch = make([]byte, 4)
			}

			sum := img.scratch[:4]
			if _, err := io.ReadFull(stored, sum); err != nil {
				return nil, fmt.Errorf("%w: chunk %d checksum: %v", ErrCorrupt, index, err)
			}

			if want, got := binary.LittleEndian.Uint32(sum), adler32.Checksum(data); want != got {
				return nil, fmt.Errorf("%w: chunk %d has checksum %08x, computed %08x", ErrCorrupt, index, want, got)
			}
		}
	}

	img.cached = data
	img.cachedIndex = index

	return data, nil
}

func (img *Image) Close() error {
	var firstErr error

	for _, segment := range img.segments {
		if err := segment.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	img.segments = nil

	return firstErr
}

// Size is the media size in bytes.
func (img *Image) Size() int64 {
	return img.mediaSize
}

func (img *Image) BytesPerSector() int {
	return img.bytesPerSector
}

// ChunkSize is the number of media bytes each chunk holds.
func (img *Image) ChunkSize() int {
	return img.sectorsPerChunk * img.bytesPerSector
}

func (img *Image) ChunkCount() int {
	return len(img.chunks)
}

// Segments lists the segment files the image was assembled from.
func (img *Image) Segments() []string {
	return img.paths
}

// Header returns the case metadata recorded at acquisition, keyed by field
// name ("case_number", "examiner", ...). It is nil when the image carries no
// readable header section.
func (img *Image) Header() map[string]string {
	return img.header
}
