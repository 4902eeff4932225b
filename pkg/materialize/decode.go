package materialize

import (
	"unicode/utf16"
	"unicode/utf8"
)

// decodedLen returns the byte length of token after quote trimming and
// escape processing, without allocating. Unquoted tokens pass through
// verbatim.
func decodedLen(token []byte) int {
	if len(token) < 2 || token[0] != '"' {
		return len(token)
	}
	src := token[1 : len(token)-1]
	n := 0
	for i := 0; i < len(src); {
		c := src[i]
		if c != '\\' {
			n++
			i++
			continue
		}
		if i+1 >= len(src) {
			n++
			break
		}
		switch src[i+1] {
		case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
			n++
			i += 2
		case 'u':
			r, size := decodeUnicodeEscape(src[i:])
			n += utf8.RuneLen(r)
			i += size
		default:
			// Unknown escape: keep the backslash verbatim.
			n++
			i++
		}
	}
	return n
}

// decodeInto writes the decoded form of token into dst and returns the
// number of bytes written. dst must have room for decodedLen(token).
func decodeInto(dst, token []byte) int {
	if len(token) < 2 || token[0] != '"' {
		return copy(dst, token)
	}
	src := token[1 : len(token)-1]
	n := 0
	for i := 0; i < len(src); {
		c := src[i]
		if c != '\\' {
			dst[n] = c
			n++
			i++
			continue
		}
		if i+1 >= len(src) {
			dst[n] = c
			n++
			break
		}
		switch src[i+1] {
		case '"':
			dst[n] = '"'
			n, i = n+1, i+2
		case '\\':
			dst[n] = '\\'
			n, i = n+1, i+2
		case '/':
			dst[n] = '/'
			n, i = n+1, i+2
		case 'b':
			dst[n] = '\b'
			n, i = n+1, i+2
		case 'f':
			dst[n] = '\f'
			n, i = n+1, i+2
		case 'n':
			dst[n] = '\n'
			n, i = n+1, i+2
		case 'r':
			dst[n] = '\r'
			n, i = n+1, i+2
		case 't':
			dst[n] = '\t'
			n, i = n+1, i+2
		case 'u':
			r, size := decodeUnicodeEscape(src[i:])
			n += utf8.EncodeRune(dst[n:], r)
			i += size
		default:
			dst[n] = c
			n++
			i++
		}
	}
	return n
}

// decodeUnicodeEscape decodes a \uXXXX sequence at the start of src,
// combining surrogate pairs. It returns the rune and the number of source
// bytes consumed. Malformed sequences decode to U+FFFD over the two bytes
// of the escape introducer.
func decodeUnicodeEscape(src []byte) (rune, int) {
	if len(src) < 6 {
		return utf8.RuneError, 2
	}
	r, ok := hex4(src[2:6])
	if !ok {
		return utf8.RuneError, 2
	}
	if !utf16.IsSurrogate(r) {
		return r, 6
	}
	if len(src) >= 12 && src[6] == '\\' && src[7] == 'u' {
		if r2, ok := hex4(src[8:12]); ok {
			if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
				return dec, 12
			}
		}
	}
	return utf8.RuneError, 6
}

func hex4(b []byte) (rune, bool) {
	var r rune
	for _, c := range b[:4] {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			r |= rune(c-'A') + 10
		default:
			return 0, false
		}
	}
	return r, true
}
