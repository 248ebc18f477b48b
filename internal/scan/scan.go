// Package scan implements the streaming pattern scanner: a single forward pass
// over a byte source in bounded chunks that reports every pattern match as an
// absolute offset plus a fixed-width display window, or dumps the source as
// fixed-width records when no pattern is given.
//
// Consecutive chunks overlap by OverlapPadding bytes so a match straddling a
// chunk boundary is still seen whole. Matches in the overlap are found twice;
// only offsets beyond the last one emitted are reported, so the emitted
// offsets are strictly increasing.
package scan

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/timmattison/bingrep/internal/pattern"
	"github.com/timmattison/bingrep/internal/source"
)

const (
	// ChunkSize is the number of bytes read per fill.
	ChunkSize = 100 * 1024

	// MaxWidth is the largest display width accepted.
	MaxWidth = 8192

	// MaxPatternSpan is the longest match guaranteed to be found when it
	// straddles a chunk boundary.
	MaxPatternSpan = 4096

	// OverlapPadding is how many trailing bytes of a chunk are read again at
	// the start of the next one.
	OverlapPadding = MaxPatternSpan + MaxWidth
)

// Config describes one scan. It is not modified by the scanner.
type Config struct {
	// Pattern selects match mode. A nil Pattern dumps the source.
	Pattern *pattern.Pattern

	// Width is the number of bytes shown per hit or dumped per line.
	Width int

	// LineLimit stops the scan after this many hits. 0 means no limit.
	LineLimit int

	// StartOffset is the absolute offset the scan begins at.
	StartOffset int64
}

// Hit is one reported line. Bytes is only valid until the emit callback
// returns; copy it to keep it.
type Hit struct {
	Offset int64
	Bytes  []byte
}

// Stats summarizes a finished scan.
type Stats struct {
	BytesScanned  int64
	Chunks        int
	SideReads     int
	Lines         int
	PhysicalReads int
}

// Option adjusts a Scanner.
type Option func(*Scanner)

// WithDigest feeds every scanned byte, exactly once and in order, to h.
func WithDigest(h hash.Hash) Option {
	return func(s *Scanner) {
		s.digest = h
	}
}

// WithProgress calls fn with the absolute offset reached after each chunk.
func WithProgress(fn func(position int64)) Option {
	return func(s *Scanner) {
		s.progress = fn
	}
}

// withChunking overrides the fill size and overlap.
func withChunking(chunkSize int, overlap int) Option {
	return func(s *Scanner) {
		s.chunkSize = chunkSize
		s.overlap = overlap
	}
}

// Scanner runs a single scan over one source. It is not safe for concurrent
// use and must not be reused after Run returns.
type Scanner struct {
	src       source.ByteSource
	reader    *source.AlignedReader
	cfg       Config
	chunkSize int
	overlap   int
	digest    hash.Hash
	progress  func(int64)
	window    []byte
	stats     Stats
}

// cursor is the mutable progress of a scan.
type cursor struct {
	nextRead    int64
	lastEmitted int64
	lastEnd     int64
	open        bool
	hashedTo    int64
	lines       int
}

// New validates cfg against src and prepares a scan. No I/O happens until Run.
func New(src source.ByteSource, cfg Config, opts ...Option) (*Scanner, error) {
	s := &Scanner{
		src:       src,
		reader:    source.NewAlignedReader(src),
		cfg:       cfg,
		chunkSize: ChunkSize,
		overlap:   OverlapPadding,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := Validate(cfg, src.Size()); err != nil {
		return nil, err
	}

	if s.cfg.Pattern != nil && s.chunkSize <= s.overlap {
		return nil, &ConfigError{Field: "chunk size", Value: int64(s.chunkSize), Reason: fmt.Sprintf("must exceed the %d byte overlap", s.overlap)}
	}

	s.chunkSize = s.fillSize()

	return s, nil
}

// Validate checks cfg against a source of the given size. Literal patterns
// longer than MaxPatternSpan are rejected. Regular expression matches are not
// bounded; one longer than MaxPatternSpan that crosses a chunk boundary is
// only reported whole when the bytes it continues with match on their own,
// as runs like \x00+ do.
func Validate(cfg Config, size int64) error {
	if cfg.Width < 1 || cfg.Width > MaxWidth {
		return &ConfigError{Field: "width", Value: int64(cfg.Width), Reason: fmt.Sprintf("must be between 1 and %d", MaxWidth)}
	}

	if cfg.LineLimit < 0 {
		return &ConfigError{Field: "line limit", Value: int64(cfg.LineLimit), Reason: "must not be negative"}
	}

	if cfg.StartOffset < 0 {
		return &ConfigError{Field: "position", Value: cfg.StartOffset, Reason: "must not be negative"}
	}

	if int64(cfg.Width) > size-cfg.StartOffset {
		return &ConfigError{Field: "position", Value: cfg.StartOffset, Reason: fmt.Sprintf("must leave at least width (%d) bytes of a %d byte source", cfg.Width, size)}
	}

	if cfg.Pattern != nil && cfg.Pattern.Span() > MaxPatternSpan {
		return &ConfigError{Field: "pattern length", Value: int64(cfg.Pattern.Span()), Reason: fmt.Sprintf("must not exceed %d bytes", MaxPatternSpan)}
	}

	return nil
}

// fillSize rounds the configured chunk size to the source geometry. A dump
// reads whole multiples of width*sectorSize so records never straddle a
// fill; a match scan reads whole sectors.
func (s *Scanner) fillSize() int {
	sectorSize := s.src.SectorSize()

	if s.cfg.Pattern == nil {
		unit := s.cfg.Width * sectorSize
		size := (s.chunkSize / unit) * unit

		if size < unit {
			size = unit
		}

		return size
	}

	return ((s.chunkSize + sectorSize - 1) / sectorSize) * sectorSize
}

// resumeFloor is the first index of a re-read chunk that can hold a match
// the previous chunk did not see whole. Matching never starts below it, so
// anchors and lookbehinds see the bytes before the chunk rather than a start
// of input.
func (s *Scanner) resumeFloor() int {
	return max(1, s.overlap-MaxPatternSpan)
}

// ChunkSize is the number of bytes read per fill.
func (s *Scanner) ChunkSize() int {
	return s.chunkSize
}

// Run performs the scan, calling emit for each hit in increasing offset
// order. It stops at the end of the source, when LineLimit hits have been
// emitted, when emit returns an error or when ctx is done.
func (s *Scanner) Run(ctx context.Context, emit func(Hit) error) (Stats, error) {
	var err error

	if s.cfg.Pattern == nil {
		err = s.dump(ctx, emit)
	} else {
		err = s.match(ctx, emit)
	}

	s.stats.PhysicalReads = s.reader.PhysicalReads()

	return s.stats, err
}

func (s *Scanner) match(ctx context.Context, emit func(Hit) error) error {
	start := s.cfg.StartOffset
	cur := cursor{
		nextRead:    start,
		lastEmitted: -1,
		lastEnd:     start,
		hashedTo:    start,
	}

	buf := make([]byte, s.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		base := cur.nextRead

		n, final, err := s.fill(buf, base)
		if err != nil {
			return err
		}

		s.account(buf[:n], base, &cur)

		valid := buf[:n]
		done := false
		var emitErr error

		// Resume after the last accepted match so the overlap does not yield
		// matches a single pass over the whole source would have skipped.
		from := int(cur.lastEnd - base)
		if base != start {
			from = max(from, s.resumeFloor())
		}

		// Matches starting at or after owned are left to the next chunk,
		// which reads them again with the bytes that follow.
		owned := base + int64(n) - int64(s.overlap) + int64(s.resumeFloor())

		matchErr := s.cfg.Pattern.Each(valid, from, func(matchStart, matchEnd int) bool {
			offset := base + int64(matchStart)

			if !final && offset >= owned {
				return false
			}

			// A match cut off by the end of the chunk continues with the
			// match starting exactly where it stopped.
			if cur.open && offset == cur.lastEnd {
				cur.lastEnd = base + int64(matchEnd)
				cur.open = !final && matchEnd == n
				return true
			}

			if offset <= cur.lastEmitted {
				return true
			}

			display, err := s.displayWindow(valid, matchStart, offset)
			if err != nil {
				emitErr = err
				return false
			}

			cur.lastEmitted = offset
			cur.lastEnd = base + int64(matchEnd)
			cur.open = !final && matchEnd == n

			if err = emit(Hit{Offset: offset, Bytes: display}); err != nil {
				emitErr = err
				return false
			}

			cur.lines++
			s.stats.Lines = cur.lines

			if s.cfg.LineLimit != 0 && cur.lines >= s.cfg.LineLimit {
				done = true
				return false
			}

			return true
		})

		if emitErr != nil {
			return emitErr
		}

		if matchErr != nil {
			return fmt.Errorf("matching chunk at offset %d: %w", base, matchErr)
		}

		s.reportProgress(base + int64(n))

		if done || final {
			return nil
		}

		cur.nextRead = base + int64(n) - int64(s.overlap)
	}
}

func (s *Scanner) dump(ctx context.Context, emit func(Hit) error) error {
	width := s.cfg.Width
	cur := cursor{
		nextRead:    s.cfg.StartOffset,
		lastEmitted: -1,
		hashedTo:    s.cfg.StartOffset,
	}

	buf := make([]byte, s.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		base := cur.nextRead

		n, final, err := s.fill(buf, base)
		if err != nil {
			return err
		}

		s.account(buf[:n], base, &cur)

		for i := 0; i < n; i += width {
			end := min(i+width, n)
			offset := base + int64(i)

			if err = emit(Hit{Offset: offset, Bytes: buf[i:end]}); err != nil {
				return err
			}

			cur.lastEmitted = offset
			cur.lines++
			s.stats.Lines = cur.lines

			if s.cfg.LineLimit != 0 && cur.lines >= s.cfg.LineLimit {
				return nil
			}
		}

		s.reportProgress(base + int64(n))

		if final {
			return nil
		}

		cur.nextRead = base + int64(n)
	}
}

// fill reads the chunk starting at base into buf. A chunk is final when it
// reaches the end of the source. Whatever part of buf was not filled is
// zeroed so bytes from an earlier, longer chunk can never be matched.
func (s *Scanner) fill(buf []byte, base int64) (int, bool, error) {
	size := s.src.Size()

	n, err := s.reader.ReadAt(buf, base)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, true, &ReadError{Op: "chunk read", Offset: base, Length: len(buf), Got: n, Err: err}
	}

	expected := len(buf)
	if remaining := size - base; remaining < int64(expected) {
		expected = int(remaining)
	}

	if n < expected {
		return n, true, &ReadError{Op: "chunk read", Offset: base, Length: len(buf), Got: n, Err: ErrShortRead}
	}

	clear(buf[n:])
	s.stats.Chunks++

	return n, base+int64(n) >= size, nil
}

// account records the bytes of a chunk not covered by an earlier one.
func (s *Scanner) account(chunk []byte, base int64, cur *cursor) {
	end := base + int64(len(chunk))
	if end <= cur.hashedTo {
		return
	}

	fresh := chunk[cur.hashedTo-base:]

	if s.digest != nil {
		s.digest.Write(fresh)
	}

	s.stats.BytesScanned += int64(len(fresh))
	cur.hashedTo = end
}

func (s *Scanner) reportProgress(position int64) {
	if s.progress != nil {
		s.progress(position)
	}
}

// displayWindow returns the width bytes starting at a match. When they run
// past the loaded chunk they are fetched with a side read.
func (s *Scanner) displayWindow(chunk []byte, matchStart int, offset int64) ([]byte, error) {
	if matchStart+s.cfg.Width <= len(chunk) {
		return chunk[matchStart : matchStart+s.cfg.Width], nil
	}

	return s.readWindow(offset)
}

// readWindow reads width bytes at off directly from the source. It uses
// positionless reads and leaves the scan cursor untouched. A window that
// runs past the end of the source is returned truncated.
func (s *Scanner) readWindow(off int64) ([]byte, error) {
	width := s.cfg.Width
	s.stats.SideReads++

	if cap(s.window) < width {
		s.window = make([]byte, width)
	}

	window := s.window[:width]

	n, err := s.reader.ReadAt(window, off)
	if err == nil {
		return window, nil
	}

	if errors.Is(err, io.EOF) && off+int64(n) >= s.src.Size() {
		return window[:n], nil
	}

	if errors.Is(err, io.EOF) {
		err = ErrShortRead
	}

	return nil, &ReadError{Op: "display window read", Offset: off, Length: width, Got: n, Err: err}
}
