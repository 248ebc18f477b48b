package pattern

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const metaCharacters = `.+*?()[]{}|^$`

// ExpandDot rewrites every unescaped '.' outside a character class to
// AnyByte. Dots inside classes and escaped dots are left alone.
func ExpandDot(expr string) string {
	var sb strings.Builder

	escaped := false
	inClass := false
	classLen := 0

	for i := 0; i < len(expr); i++ {
		c := expr[i]

		switch {
		case escaped:
			sb.WriteByte(c)
			escaped = false
			classLen++
		case c == '\\':
			sb.WriteByte(c)
			escaped = true
		case inClass:
			sb.WriteByte(c)

			// A ']' right after '[' or '[^' is a literal member
			if c == ']' && classLen > 0 {
				inClass = false
			} else if !(c == '^' && classLen == 0) {
				classLen++
			}
		case c == '[':
			sb.WriteByte(c)
			inClass = true
			classLen = 0
		case c == '.':
			sb.WriteString(AnyByte)
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String()
}

// literalBytes returns the bytes expr matches when it contains no regular
// expression operators, only plain characters and byte escapes.
func literalBytes(expr string) ([]byte, bool) {
	var literal []byte

	for i := 0; i < len(expr); {
		r, size := utf8.DecodeRuneInString(expr[i:])

		if r == '\\' {
			if i+1 >= len(expr) {
				return nil, false
			}

			next := expr[i+1]

			switch {
			case next == 'x' || next == 'X':
				if i+4 > len(expr) {
					return nil, false
				}

				value, err := strconv.ParseUint(expr[i+2:i+4], 16, 8)
				if err != nil {
					return nil, false
				}

				literal = append(literal, byte(value))
				i += 4
			case next == 'n':
				literal = append(literal, '\n')
				i += 2
			case next == 'r':
				literal = append(literal, '\r')
				i += 2
			case next == 't':
				literal = append(literal, '\t')
				i += 2
			case strings.IndexByte(metaCharacters+`\/-`, next) >= 0:
				literal = append(literal, next)
				i += 2
			default:
				return nil, false
			}

			continue
		}

		if strings.ContainsRune(metaCharacters, r) || r > 0xFF {
			return nil, false
		}

		literal = append(literal, byte(r))
		i += size
	}

	return literal, len(literal) > 0
}
