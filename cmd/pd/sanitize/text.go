package sanitize

import "strings"

// Text strips terminal control characters from untrusted model output while
// keeping printable content and common whitespace. Persona replies render
// directly to the terminal, so escape sequences must not pass through.
func Text(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		if r >= 0x80 && r <= 0x9f {
			return -1
		}
		return r
	}, value)
}
