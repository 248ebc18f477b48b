package source

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}

	return data
}

// countingSource records every physical request it receives.
type countingSource struct {
	*Memory
	requests [][2]int64
}

func (c *countingSource) ReadAt(p []byte, off int64) (int, error) {
	c.requests = append(c.requests, [2]int64{off, int64(len(p))})
	return c.Memory.ReadAt(p, off)
}

func TestAlignRange(t *testing.T) {
	tests := []struct {
		off        int64
		length     int
		sectorSize int
		wantOff    int64
		wantLen    int
	}{
		{off: 10, length: 20, sectorSize: 512, wantOff: 0, wantLen: 512},
		{off: 500, length: 20, sectorSize: 512, wantOff: 0, wantLen: 1024},
		{off: 512, length: 512, sectorSize: 512, wantOff: 512, wantLen: 512},
		{off: 4095, length: 2, sectorSize: 4096, wantOff: 0, wantLen: 8192},
		{off: 10, length: 20, sectorSize: 1, wantOff: 10, wantLen: 20},
	}

	for _, tt := range tests {
		gotOff, gotLen := AlignRange(tt.off, tt.length, tt.sectorSize)
		if gotOff != tt.wantOff || gotLen != tt.wantLen {
			t.Errorf("AlignRange(%d, %d, %d) = %d, %d, want %d, %d", tt.off, tt.length, tt.sectorSize, gotOff, gotLen, tt.wantOff, tt.wantLen)
		}
	}
}

func TestAlignedReaderIsTransparent(t *testing.T) {
	data := pattern(512*8 + 100)

	tests := []struct {
		name string
		off  int64
		n    int
	}{
		{name: "inside first sector", off: 10, n: 20},
		{name: "across sectors", off: 500, n: 600},
		{name: "aligned", off: 1024, n: 512},
		{name: "into short last sector", off: 4000, n: 196},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &countingSource{Memory: NewMemory("disk", data, 512)}
			reader := NewAlignedReader(src)

			buf := make([]byte, tt.n)
			n, err := reader.ReadAt(buf, tt.off)
			if err != nil {
				t.Fatalf("ReadAt() error = %v", err)
			}

			if n != tt.n || !bytes.Equal(buf, data[tt.off:tt.off+int64(tt.n)]) {
				t.Errorf("ReadAt() returned %d bytes that differ from the source", n)
			}

			if len(src.requests) != 1 {
				t.Fatalf("issued %d physical reads, want 1", len(src.requests))
			}

			if off, length := src.requests[0][0], src.requests[0][1]; off%512 != 0 || length%512 != 0 {
				t.Errorf("physical read at %d of %d bytes is not sector aligned", off, length)
			}

			if reader.PhysicalReads() != 1 {
				t.Errorf("PhysicalReads() = %d", reader.PhysicalReads())
			}
		})
	}
}

func TestAlignedReaderAtEnd(t *testing.T) {
	data := pattern(1000)
	reader := NewAlignedReader(NewMemory("disk", data, 512))

	buf := make([]byte, 100)
	n, err := reader.ReadAt(buf, 950)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("ReadAt() error = %v, want io.EOF", err)
	}

	if n != 50 || !bytes.Equal(buf[:n], data[950:]) {
		t.Errorf("ReadAt() = %d bytes % X", n, buf[:n])
	}

	if n, err = reader.ReadAt(buf, 1000); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadAt() at end = %d, %v, want 0, io.EOF", n, err)
	}
}

func TestAlignedReaderPassThrough(t *testing.T) {
	data := pattern(100)
	src := &countingSource{Memory: NewMemory("mem", data, 1)}
	reader := NewAlignedReader(src)

	buf := make([]byte, 7)
	if _, err := reader.ReadAt(buf, 3); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(buf, data[3:10]) || src.requests[0] != [2]int64{3, 7} {
		t.Errorf("pass-through read = % X via %v", buf, src.requests)
	}
}

// failingSource fails every physical read.
type failingSource struct {
	*Memory
}

func (failingSource) ReadAt([]byte, int64) (int, error) {
	return 0, errors.New("input/output error")
}

func TestAlignedReaderWrapsFailures(t *testing.T) {
	reader := NewAlignedReader(failingSource{NewMemory("disk", pattern(4096), 512)})

	_, err := reader.ReadAt(make([]byte, 10), 600)

	var alignErr *AlignmentError
	if !errors.As(err, &alignErr) || !errors.Is(err, ErrAlignment) {
		t.Fatalf("ReadAt() error = %v, want *AlignmentError", err)
	}

	if alignErr.Offset != 600 || alignErr.Length != 10 || alignErr.AlignedOffset != 512 || alignErr.AlignedLength != 512 {
		t.Errorf("AlignmentError = %+v", alignErr)
	}
}

func TestSectorSourcesRejectUnalignedReads(t *testing.T) {
	mem := NewMemory("disk", pattern(4096), 512)

	for _, req := range [][2]int{{10, 512}, {512, 20}} {
		_, err := mem.ReadAt(make([]byte, req[1]), int64(req[0]))
		if !errors.Is(err, ErrUnaligned) || !errors.Is(err, ErrAlignment) {
			t.Errorf("ReadAt(%d bytes at %d) error = %v, want ErrUnaligned", req[1], req[0], err)
		}
	}

	if _, err := mem.ReadAt(make([]byte, 512), 512); err != nil {
		t.Errorf("aligned ReadAt() error = %v", err)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	data := pattern(3000)

	path := filepath.Join(dir, "evidence.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	file, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer file.Close()

	if file.Size() != 3000 || file.SectorSize() != 1 || file.Name() != path {
		t.Errorf("file = %s, %d bytes, sector %d", file.Name(), file.Size(), file.SectorSize())
	}

	buf := make([]byte, 100)
	if n, err := file.ReadAt(buf, 2950); n != 50 || !errors.Is(err, io.EOF) || !bytes.Equal(buf[:n], data[2950:]) {
		t.Errorf("ReadAt() at tail = %d, %v", n, err)
	}

	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	emptyFile, err := OpenFile(empty)
	if err != nil {
		t.Fatalf("OpenFile(empty) error = %v", err)
	}

	if n, err := emptyFile.ReadAt(buf, 0); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadAt() on empty file = %d, %v", n, err)
	}

	if err := emptyFile.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "disk.img")
	if err := os.WriteFile(path, pattern(10), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, ok := src.(*File); !ok {
		t.Errorf("Open() = %T, want *File", src)
	}

	src.Close()

	notImage := filepath.Join(dir, "fake.E01")
	if err := os.WriteFile(notImage, []byte("definitely not evidence"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing", path: filepath.Join(dir, "missing.bin")},
		{name: "directory", path: dir},
		{name: "not an image", path: notImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path)

			var openErr *OpenError
			if !errors.As(err, &openErr) || !errors.Is(err, ErrOpen) {
				t.Fatalf("Open() error = %v, want *OpenError", err)
			}

			if openErr.Path != tt.path {
				t.Errorf("OpenError.Path = %q, want %q", openErr.Path, tt.path)
			}
		})
	}
}

func TestReadAll(t *testing.T) {
	mem, err := ReadAll("stdin", strings.NewReader("piped bytes"))
	if err != nil {
		t.Fatal(err)
	}

	if mem.Size() != 11 || mem.SectorSize() != 1 || mem.Name() != "stdin" {
		t.Errorf("memory source = %s, %d bytes, sector %d", mem.Name(), mem.Size(), mem.SectorSize())
	}

	_, err = ReadAll("stdin", io.MultiReader(strings.NewReader("x"), errReader{}))
	if !errors.Is(err, ErrOpen) {
		t.Errorf("ReadAll() error = %v, want ErrOpen", err)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("pipe broke")
}

func TestPhysicalDrivePath(t *testing.T) {
	for path, want := range map[string]bool{
		`\\.\PHYSICALDRIVE0`:  true,
		`\\.\physicaldrive12`: true,
		`\\.\PHYSICALDRIVE`:   false,
		`/dev/sda`:            false,
	} {
		if got := physicalDrivePath.MatchString(path); got != want {
			t.Errorf("physicalDrivePath.MatchString(%q) = %v, want %v", path, got, want)
		}
	}
}
