// Package presenter turns scan hits into text lines:
//
//	0001F0h : 48 65 6C 6C 6F
//
// The offset is upper-case hex, zero padded to the number of hex digits in the
// source size, so every line of one scan lines up.
package presenter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/timmattison/bingrep/internal"
	"github.com/timmattison/bingrep/internal/scan"
)

const hexDigits = "0123456789ABCDEF"

type Options struct {
	// Separator goes between the hex bytes of a line.
	Separator string

	// ShowOffset prefixes each line with "<offset>h : ".
	ShowOffset bool

	// Color highlights the offset even when the output is not a terminal.
	Color bool
}

// Presenter writes one line per hit to a buffered writer. Call Flush when the
// scan ends.
type Presenter struct {
	out         *bufio.Writer
	counter     *internal.OutputCounter
	opts        Options
	offsetWidth int
	offsetStyle *lipgloss.Style
	line        []byte
}

func New(w io.Writer, sourceSize int64, opts Options) *Presenter {
	counter := &internal.OutputCounter{Writer: w}

	p := &Presenter{
		out:         bufio.NewWriterSize(counter, 64*1024),
		counter:     counter,
		opts:        opts,
		offsetWidth: HexWidth(sourceSize),
	}

	if opts.Color && opts.ShowOffset {
		renderer := lipgloss.NewRenderer(w)
		renderer.SetColorProfile(termenv.ANSI256)

		style := renderer.NewStyle().Foreground(lipgloss.Color("39"))
		p.offsetStyle = &style
	}

	return p
}

// HexWidth is the number of hex digits needed to print size.
func HexWidth(size int64) int {
	return len(fmt.Sprintf("%X", size))
}

// FormatOffset renders offset as zero padded upper-case hex followed by 'h'.
func FormatOffset(offset int64, width int) string {
	return fmt.Sprintf("%0*Xh", width, offset)
}

// AppendHex appends b to dst as upper-case hex pairs joined by separator.
func AppendHex(dst []byte, b []byte, separator string) []byte {
	for i, c := range b {
		if i > 0 {
			dst = append(dst, separator...)
		}

		dst = append(dst, hexDigits[c>>4], hexDigits[c&0x0F])
	}

	return dst
}

// format renders hit without a trailing newline.
func (p *Presenter) format(hit scan.Hit) string {
	return string(p.appendLine(nil, hit))
}

func (p *Presenter) appendLine(dst []byte, hit scan.Hit) []byte {
	if p.opts.ShowOffset {
		offset := FormatOffset(hit.Offset, p.offsetWidth)

		if p.offsetStyle != nil {
			offset = p.offsetStyle.Render(offset)
		}

		dst = append(dst, offset...)
		dst = append(dst, " : "...)
	}

	return AppendHex(dst, hit.Bytes, p.opts.Separator)
}

// Emit writes hit as one line. It matches the emit callback of scan.Scanner.Run.
func (p *Presenter) Emit(hit scan.Hit) error {
	p.line = append(p.appendLine(p.line[:0], hit), '\n')

	_, err := p.out.Write(p.line)

	return err
}

func (p *Presenter) Flush() error {
	return p.out.Flush()
}

// BytesWritten is the number of bytes that have reached the underlying writer.
func (p *Presenter) BytesWritten() int64 {
	return p.counter.Bytes()
}

// LinesWritten is the number of complete lines that have reached the
// underlying writer. It trails the hits emitted while output is buffered or
// after the reader goes away.
func (p *Presenter) LinesWritten() int64 {
	return p.counter.Lines()
}

// IsBrokenPipe reports whether err means the reader of our output went away,
// as when piping into head.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe)
}
