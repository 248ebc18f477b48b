// Package pattern compiles the byte-oriented regular expressions bingrep
// searches for.
//
// Expressions use .NET/RE2-style syntax with literal byte escapes (\xHH) and
// byte-class ranges ([\x00-\x1F]). Input bytes are viewed as Latin-1, so each
// byte is exactly one character and \xHH always matches the raw byte HH. An
// unescaped '.' outside a character class matches any byte, newlines included.
package pattern

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/encoding/charmap"
)

// AnyByte is the class an unescaped '.' is rewritten to.
const AnyByte = `[\x00-\xFF]`

var ErrCompile = errors.New("pattern compile failed")

// CompileError reports an expression that cannot be used for searching.
type CompileError struct {
	Expr string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Expr, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func (e *CompileError) Is(target error) bool {
	return target == ErrCompile
}

// Pattern finds byte sequences in a buffer. Expressions made only of literal
// bytes are searched with bytes.Index; everything else goes through the
// regular expression engine. A Pattern reuses internal buffers and is not
// safe for concurrent use.
type Pattern struct {
	expr    string
	literal []byte
	re      *regexp2.Regexp
	runes   []rune
}

// Compile parses expr.
func Compile(expr string) (*Pattern, error) {
	if expr == "" {
		return nil, &CompileError{Expr: expr, Err: errors.New("empty pattern")}
	}

	if literal, ok := literalBytes(expr); ok {
		return &Pattern{expr: expr, literal: literal}, nil
	}

	re, err := regexp2.Compile(ExpandDot(expr), regexp2.Multiline)
	if err != nil {
		return nil, &CompileError{Expr: expr, Err: err}
	}

	matchesEmpty, err := re.MatchRunes([]rune{})
	if err != nil {
		return nil, &CompileError{Expr: expr, Err: err}
	}

	if matchesEmpty {
		return nil, &CompileError{Expr: expr, Err: errors.New("pattern matches empty input")}
	}

	return &Pattern{expr: expr, re: re}, nil
}

// FromHex builds a literal pattern from a hex string such as "f9beb4d9" or
// "0xf9beb4d9".
func FromHex(hexString string) (*Pattern, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(hexString, "0x"), "0X")
	trimmed = strings.ReplaceAll(trimmed, " ", "")

	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, &CompileError{Expr: hexString, Err: fmt.Errorf("error decoding hex string: %w", err)}
	}

	if len(decoded) == 0 {
		return nil, &CompileError{Expr: hexString, Err: errors.New("empty pattern")}
	}

	return &Pattern{expr: Escape(decoded), literal: decoded}, nil
}

// String returns the expression the pattern was built from.
func (p *Pattern) String() string {
	return p.expr
}

// IsLiteral reports whether the pattern is a fixed byte sequence.
func (p *Pattern) IsLiteral() bool {
	return p.literal != nil
}

// Span is the length of every match for literal patterns and 0 when the
// length of a match is not known in advance.
func (p *Pattern) Span() int {
	return len(p.literal)
}

// Each calls yield with the [start, end) bounds of every non-overlapping
// match in buf that starts at or after from, in increasing order, until
// yield returns false.
func (p *Pattern) Each(buf []byte, from int, yield func(start, end int) bool) error {
	if from < 0 {
		from = 0
	}

	if from > len(buf) {
		return nil
	}

	if p.literal != nil {
		p.eachLiteral(buf, from, yield)
		return nil
	}

	p.runes = Latin1Runes(p.runes, buf)

	match, err := p.re.FindRunesMatchStartingAt(p.runes, from)

	for err == nil && match != nil {
		if !yield(match.Index, match.Index+match.Length) {
			return nil
		}

		match, err = p.re.FindNextMatch(match)
	}

	return err
}

func (p *Pattern) eachLiteral(buf []byte, from int, yield func(start, end int) bool) {
	for from+len(p.literal) <= len(buf) {
		i := bytes.Index(buf[from:], p.literal)
		if i < 0 {
			return
		}

		start := from + i
		if !yield(start, start+len(p.literal)) {
			return
		}

		from = start + len(p.literal)
	}
}

// Latin1Runes decodes buf as ISO-8859-1 into dst, one rune per byte, reusing
// dst when it is large enough.
func Latin1Runes(dst []rune, buf []byte) []rune {
	if cap(dst) < len(buf) {
		dst = make([]rune, len(buf))
	}

	dst = dst[:len(buf)]

	for i, b := range buf {
		dst[i] = charmap.ISO8859_1.DecodeByte(b)
	}

	return dst
}

// Escape renders b as a sequence of \xHH escapes.
func Escape(b []byte) string {
	var sb strings.Builder

	for _, c := range b {
		fmt.Fprintf(&sb, `\x%02X`, c)
	}

	return sb.String()
}
