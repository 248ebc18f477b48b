package pattern

import (
	"bytes"
	"errors"
	"slices"
	"testing"
)

func matches(t *testing.T, p *Pattern, buf []byte, from int) [][2]int {
	t.Helper()

	var found [][2]int

	err := p.Each(buf, from, func(start, end int) bool {
		found = append(found, [2]int{start, end})
		return true
	})
	if err != nil {
		t.Fatalf("Each() error = %v", err)
	}

	return found
}

func TestExpandDot(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{expr: `a.b`, want: `a` + AnyByte + `b`},
		{expr: `\.`, want: `\.`},
		{expr: `[.]`, want: `[.]`},
		{expr: `[].]x.`, want: `[].]x` + AnyByte},
		{expr: `[^].].`, want: `[^].]` + AnyByte},
		{expr: `\x00..`, want: `\x00` + AnyByte + AnyByte},
		{expr: `[\].].`, want: `[\].]` + AnyByte},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			if got := ExpandDot(tt.expr); got != tt.want {
				t.Errorf("ExpandDot(%q) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}

func TestLiteralDetection(t *testing.T) {
	tests := []struct {
		expr    string
		literal []byte
	}{
		{expr: `\x01\x02\x03\x04`, literal: []byte{1, 2, 3, 4}},
		{expr: `MZ\x90\x00`, literal: []byte{'M', 'Z', 0x90, 0x00}},
		{expr: `PK\x03\x04`, literal: []byte("PK\x03\x04")},
		{expr: `a\.b\n`, literal: []byte("a.b\n")},
		{expr: `\xff\xD8`, literal: []byte{0xFF, 0xD8}},
		{expr: `a.b`},
		{expr: `\x01+`},
		{expr: `[\x00-\x1F]`},
		{expr: `\d`},
		{expr: `é`, literal: []byte{0xE9}},
		{expr: `€`},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			literal, ok := literalBytes(tt.expr)

			if ok != (tt.literal != nil) {
				t.Fatalf("literalBytes(%q) ok = %v", tt.expr, ok)
			}

			if !bytes.Equal(literal, tt.literal) && tt.literal != nil {
				t.Errorf("literalBytes(%q) = % X, want % X", tt.expr, literal, tt.literal)
			}
		})
	}
}

func TestHighBytesMatchRawBytes(t *testing.T) {
	buf := []byte{0x00, 0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0xC3, 0xA9, 0xFF, 0xD8, 0xFF, 0xDB}

	tests := []struct {
		expr string
		want [][2]int
	}{
		{expr: `\xFF\xD8\xFF[\xDB\xE0]`, want: [][2]int{{1, 5}, {8, 12}}},
		{expr: `[\x80-\xFF]{2}`, want: [][2]int{{1, 3}, {3, 5}, {6, 8}, {8, 10}, {10, 12}}},
		{expr: `\xE9`, want: nil},
		{expr: `\xC3\xA9`, want: [][2]int{{6, 8}}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := Compile(tt.expr)
			if err != nil {
				t.Fatal(err)
			}

			if got := matches(t, p, buf, 0); !slices.Equal(got, tt.want) {
				t.Errorf("matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDotMatchesEveryByte(t *testing.T) {
	buf := []byte{'A', '\n', 'B', 'A', 0x00, 'B', 'A', 0xFF, 'B'}

	p, err := Compile(`A.B`)
	if err != nil {
		t.Fatal(err)
	}

	want := [][2]int{{0, 3}, {3, 6}, {6, 9}}
	if got := matches(t, p, buf, 0); !slices.Equal(got, want) {
		t.Errorf("matches = %v, want %v", got, want)
	}
}

func TestEachFrom(t *testing.T) {
	buf := []byte("abXabXabXab")

	for _, expr := range []string{`ab`, `a[b]`} {
		t.Run(expr, func(t *testing.T) {
			p, err := Compile(expr)
			if err != nil {
				t.Fatal(err)
			}

			if got, want := matches(t, p, buf, 4), [][2]int{{6, 8}, {9, 11}}; !slices.Equal(got, want) {
				t.Errorf("matches from 4 = %v, want %v", got, want)
			}

			if got := matches(t, p, buf, len(buf)+5); got != nil {
				t.Errorf("matches past end = %v", got)
			}

			if got := matches(t, p, buf, -3); len(got) != 4 {
				t.Errorf("matches from negative offset = %v", got)
			}
		})
	}
}

func TestEachStops(t *testing.T) {
	p, err := Compile(`\x00`)
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	err = p.Each(make([]byte, 10), 0, func(int, int) bool {
		calls++
		return calls < 3
	})

	if err != nil || calls != 3 {
		t.Errorf("Each() made %d calls, err %v", calls, err)
	}
}

func TestLiteralMatchesAreNonOverlapping(t *testing.T) {
	p, err := Compile(`aa`)
	if err != nil {
		t.Fatal(err)
	}

	if got, want := matches(t, p, []byte("aaaaa"), 0), [][2]int{{0, 2}, {2, 4}}; !slices.Equal(got, want) {
		t.Errorf("matches = %v, want %v", got, want)
	}
}

func TestCompileErrors(t *testing.T) {
	for _, expr := range []string{``, `[\x00-`, `(ab`, `a*`, `\x00?`, `(|x)`} {
		t.Run(expr, func(t *testing.T) {
			_, err := Compile(expr)

			var compileErr *CompileError
			if !errors.As(err, &compileErr) || !errors.Is(err, ErrCompile) {
				t.Fatalf("Compile(%q) error = %v, want *CompileError", expr, err)
			}

			if compileErr.Expr != expr {
				t.Errorf("CompileError.Expr = %q", compileErr.Expr)
			}
		})
	}
}

func TestFromHex(t *testing.T) {
	tests := []struct {
		input   string
		want    []byte
		wantErr bool
	}{
		{input: "f9beb4d9", want: []byte{0xF9, 0xBE, 0xB4, 0xD9}},
		{input: "0xF9BEB4D9", want: []byte{0xF9, 0xBE, 0xB4, 0xD9}},
		{input: "de ad be ef", want: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{input: "abc", wantErr: true},
		{input: "zz", wantErr: true},
		{input: "0x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := FromHex(tt.input)

			if tt.wantErr {
				if !errors.Is(err, ErrCompile) {
					t.Errorf("FromHex(%q) error = %v, want ErrCompile", tt.input, err)
				}
				return
			}

			if err != nil {
				t.Fatal(err)
			}

			if !p.IsLiteral() || p.Span() != len(tt.want) {
				t.Errorf("FromHex(%q) literal %v span %d", tt.input, p.IsLiteral(), p.Span())
			}

			buf := append([]byte{0x00, 0x01}, tt.want...)
			if got, want := matches(t, p, buf, 0), [][2]int{{2, 2 + len(tt.want)}}; !slices.Equal(got, want) {
				t.Errorf("matches = %v, want %v", got, want)
			}

			recompiled, err := Compile(p.String())
			if err != nil || !recompiled.IsLiteral() || recompiled.Span() != len(tt.want) {
				t.Errorf("Compile(%q) did not round trip: %v", p.String(), err)
			}
		})
	}
}

func TestLatin1Runes(t *testing.T) {
	runes := Latin1Runes(nil, []byte{0x00, 0x41, 0xE9, 0xFF})

	if want := []rune{0x00, 'A', 'é', 'ÿ'}; !slices.Equal(runes, want) {
		t.Errorf("Latin1Runes() = %v, want %v", runes, want)
	}

	reused := Latin1Runes(runes, []byte{0x42})
	if len(reused) != 1 || reused[0] != 'B' || &reused[0] != &runes[0] {
		t.Errorf("Latin1Runes() did not reuse its buffer")
	}
}

func TestEscape(t *testing.T) {
	if got := Escape([]byte{0x00, 0xAB, 'z'}); got != `\x00\xAB\x7A` {
		t.Errorf("Escape() = %q", got)
	}
}
