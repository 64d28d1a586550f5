// Package output renders one-shot tables and JSON, and keeps anything that
// came out of external tools from corrupting the terminal.
package output

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const hexdigits = "0123456789abcdef"

// Clean rewrites control characters and invalid UTF-8 as visible escapes so
// decoded process names cannot smuggle terminal sequences into our output.
// Newlines and tabs are escaped too: every caller renders single-line cells.
func Clean(s string) string {
	idx := 0
	for idx < len(s) {
		r, size := utf8.DecodeRuneInString(s[idx:])
		if r == utf8.RuneError && size == 1 {
			break
		}
		if unicode.IsControl(r) {
			break
		}
		idx += size
	}
	if idx == len(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	b.WriteString(s[:idx])
	for idx < len(s) {
		r, size := utf8.DecodeRuneInString(s[idx:])
		switch {
		case r == utf8.RuneError && size == 1:
			escapeByte(&b, s[idx])
		case unicode.IsControl(r):
			escapeRune(&b, r)
		default:
			b.WriteString(s[idx : idx+size])
		}
		idx += size
	}
	return b.String()
}

func escapeByte(b *strings.Builder, c byte) {
	b.WriteString(`\x`)
	b.WriteByte(hexdigits[c>>4])
	b.WriteByte(hexdigits[c&0x0f])
}

// escapeRune renders \xHH below 0x100, \uHHHH in the BMP, \UHHHHHHHH above.
func escapeRune(b *strings.Builder, r rune) {
	switch {
	case r <= 0xFF:
		escapeByte(b, byte(r))
	case r <= 0xFFFF:
		b.WriteString(`\u`)
		for shift := 12; shift >= 0; shift -= 4 {
			b.WriteByte(hexdigits[(r>>shift)&0x0f])
		}
	default:
		b.WriteString(`\U`)
		for shift := 28; shift >= 0; shift -= 4 {
			b.WriteByte(hexdigits[(r>>shift)&0x0f])
		}
	}
}
