package lineedit

import "unicode/utf8"

// Tokenize splits a raw chunk read from a tty into the events Handle expects:
// one rune, one control byte, or one escape sequence each. A CRLF pair stays
// one token so it submits once. A chunk usually holds a single keystroke, but
// pastes and fast typing deliver several.
func Tokenize(chunk string) []string {
	var out []string
	for i := 0; i < len(chunk); {
		n := tokenLen(chunk[i:])
		out = append(out, chunk[i:i+n])
		i += n
	}
	return out
}

func tokenLen(s string) int {
	if s[0] == '\r' && len(s) > 1 && s[1] == '\n' {
		return 2
	}
	if s[0] != 0x1b {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	if len(s) == 1 {
		return 1
	}
	switch s[1] {
	case '[':
		// CSI: parameters and intermediates, then a final byte in 0x40-0x7e
		for i := 2; i < len(s); i++ {
			if s[i] >= 0x40 && s[i] <= 0x7e {
				return i + 1
			}
		}
		return len(s)
	case 'O':
		// SS3, as sent for arrows in application cursor mode
		if len(s) >= 3 {
			return 3
		}
		return len(s)
	}
	return 2
}

// Normalize maps alternate encodings of the keys the editor understands onto
// the canonical sequences. SS3 arrows become CSI arrows and BS becomes DEL.
// A bare LF counts as Enter because a tty without raw mode, or one with
// ICRNL set, delivers Enter as LF. A CRLF pair from a paste is one Enter.
func Normalize(token string) string {
	switch token {
	case "\x1bOA":
		return KeyUp
	case "\x1bOB":
		return KeyDown
	case "\b":
		return KeyBackspace
	case "\n", "\r\n":
		return KeyEnter
	}
	return token
}
