package device

import (
	"fmt"
	"strings"
)

// NormalizeIEEE canonicalises an IEEE address to 16 lowercase hex characters
// with separators stripped.
func NormalizeIEEE(s string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '-', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))

	if len(cleaned) != 16 {
		return "", fmt.Errorf("ieee %q: expected 16 hex characters: %w", s, ErrValidation)
	}
	for _, r := range cleaned {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("ieee %q: invalid character %q: %w", s, r, ErrValidation)
		}
	}
	return cleaned, nil
}

// IEEEWireBytes converts a canonical IEEE address to its 8-byte little-endian
// wire representation.
func IEEEWireBytes(ieee string) ([]byte, error) {
	canonical, err := NormalizeIEEE(ieee)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		hi := hexNibble(canonical[i*2])
		lo := hexNibble(canonical[i*2+1])
		out[7-i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) byte {
	if c >= 'a' {
		return c - 'a' + 10
	}
	return c - '0'
}

// SafeName renders a friendly name as an MQTT topic segment: characters
// outside [a-zA-Z0-9_-] become underscores.
func SafeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
