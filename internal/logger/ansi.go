package logger

import "strings"

// stripAnsiCodes removes \x1b[...m style escape sequences so coloured
// terminal output never leaks into a JSON or file sink.
func stripAnsiCodes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inEscape := false
	for i := 0; i < len(s); i++ {
		if !inEscape {
			if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
				inEscape = true
				i++
				continue
			}
			b.WriteByte(s[i])
			continue
		}
		if (s[i] >= 'A' && s[i] <= 'Z') || (s[i] >= 'a' && s[i] <= 'z') {
			inEscape = false
		}
	}
	return b.String()
}
