// Copyright (C) 2025 M. Felden. All Rights Reserved.

// Package escape handles string escaping for the path expression language
// and for JSON rendering of tree values.
package escape

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"go4.org/mem"
)

var controlEsc = [...]byte{
	'\b': 'b',
	'\f': 'f',
	'\n': 'n',
	'\r': 'r',
	'\t': 't',
	' ':  ' ', // sentinel
}

var hexDigit = []byte("0123456789abcdef")

// Quote encodes src with JSON string escapes, without surrounding quotes.
func Quote(src mem.RO) []byte {
	buf := make([]byte, 0, src.Len())
	putByte := func(bs ...byte) { buf = append(buf, bs...) }

	i := 0
	for i < src.Len() {
		r, n := mem.DecodeRune(src.SliceFrom(i))
		if r < utf8.RuneSelf {
			if r < ' ' {
				if b := controlEsc[r]; b != 0 {
					putByte('\\', b)
				} else {
					putByte('\\', 'u', '0', '0', hexDigit[int(r>>4)], hexDigit[int(r&15)])
				}
			} else if r == '\\' || r == '"' {
				putByte('\\', byte(r))
			} else {
				putByte(byte(r))
			}
			i++
			continue
		}
		var rbuf [utf8.UTFMax]byte
		nb := utf8.EncodeRune(rbuf[:], r)
		putByte(rbuf[:nb]...)
		i += n
	}
	return buf
}

// Unquote decodes the escape sequences of a path-language string literal.
// The surrounding quotes must already have been removed. Both \' and \"
// are accepted regardless of the delimiter, along with \\, \/, \b, \f,
// \n, \r, \t, and \uXXXX (with surrogate pairs). Any other escape is an
// error.
func Unquote(src mem.RO) ([]byte, error) {
	buf := make([]byte, 0, src.Len())
	i := 0
	for i < src.Len() {
		b := src.At(i)
		if b != '\\' {
			buf = append(buf, b)
			i++
			continue
		}
		if i+1 >= src.Len() {
			return nil, fmt.Errorf("incomplete escape sequence at offset %d", i)
		}
		switch c := src.At(i + 1); c {
		case '\\', '/', '\'', '"':
			buf = append(buf, c)
			i += 2
		case 'b':
			buf = append(buf, '\b')
			i += 2
		case 'f':
			buf = append(buf, '\f')
			i += 2
		case 'n':
			buf = append(buf, '\n')
			i += 2
		case 'r':
			buf = append(buf, '\r')
			i += 2
		case 't':
			buf = append(buf, '\t')
			i += 2
		case 'u':
			r, n, err := decodeHexRune(src.SliceFrom(i))
			if err != nil {
				return nil, err
			}
			buf = utf8.AppendRune(buf, r)
			i += n
		default:
			return nil, fmt.Errorf("unknown escape sequence \\%c", c)
		}
	}
	return buf, nil
}

// decodeHexRune decodes a \uXXXX sequence at the head of src, combining a
// surrogate pair when one is present.
func decodeHexRune(src mem.RO) (rune, int, error) {
	r1, err := parseHex4(src.SliceFrom(2))
	if err != nil {
		return 0, 0, err
	}
	if utf16.IsSurrogate(r1) {
		if src.Len() >= 12 && src.At(6) == '\\' && src.At(7) == 'u' {
			r2, err := parseHex4(src.SliceFrom(8))
			if err != nil {
				return 0, 0, err
			}
			if r := utf16.DecodeRune(r1, r2); r != utf8.RuneError {
				return r, 12, nil
			}
		}
		return utf8.RuneError, 6, nil
	}
	return r1, 6, nil
}

func parseHex4(src mem.RO) (rune, error) {
	if src.Len() < 4 {
		return 0, fmt.Errorf("incomplete Unicode escape")
	}
	var r rune
	for i := 0; i < 4; i++ {
		r <<= 4
		switch b := src.At(i); {
		case b >= '0' && b <= '9':
			r += rune(b - '0')
		case b >= 'a' && b <= 'f':
			r += rune(b-'a') + 10
		case b >= 'A' && b <= 'F':
			r += rune(b-'A') + 10
		default:
			return 0, fmt.Errorf("invalid hex digit %q in Unicode escape", b)
		}
	}
	return r, nil
}
