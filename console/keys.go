package console

import "fmt"

// DefaultDetachChar is ^], the detach key.
const DefaultDetachChar byte = 0x1D

// FormatEscapeChar returns a human-readable representation of a control byte.
func FormatEscapeChar(b byte) string {
	if b >= 1 && b <= 0x1F {
		return "^" + string(rune(b+'@'))
	}
	return string(b)
}

// ParseEscapeChar parses the --detach-char flag value. It accepts:
//   - Caret notation for control characters: "^]", "^A", "^C", etc.
//   - A single character that is not a control key.
func ParseEscapeChar(s string) (byte, error) {
	if len(s) == 2 && s[0] == '^' {
		c := s[1]
		if c >= '@' && c <= '_' {
			return validateEscapeByte(c-'@', s)
		}
		if c >= 'a' && c <= 'z' {
			return validateEscapeByte(c-'a'+1, s)
		}
		return 0, fmt.Errorf("invalid caret notation %q (use ^A through ^_ or ^a through ^z)", s)
	}
	if len(s) == 1 {
		return validateEscapeByte(s[0], s)
	}
	return 0, fmt.Errorf("detach-char must be a single character or ^X caret notation, got %q", s)
}

func validateEscapeByte(b byte, original string) (byte, error) {
	switch {
	case b == 0:
		return 0, fmt.Errorf("NUL cannot be used as detach character")
	case b == '\r' || b == '\n':
		return 0, fmt.Errorf("CR/LF cannot be used as detach character")
	case isControlKey(b):
		return 0, fmt.Errorf("%q is a control key and cannot be used as detach character", original)
	case b == 0x7F: //nolint:mnd
		return 0, fmt.Errorf("DEL (0x7F) cannot be used as detach character")
	case b >= 0x80: //nolint:mnd
		return 0, fmt.Errorf("non-ASCII byte 0x%02X cannot be used as detach character", b)
	}
	return b, nil
}
