package colorutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformedColor = errors.New("malformed color")

// RGB is an opaque 8-bit colour
type RGB struct {
	R, G, B uint8
}

// ParseHex accepts #rgb and #rrggbb forms.
func ParseHex(s string) (RGB, error) {
	if !strings.HasPrefix(s, "#") {
		return RGB{}, fmt.Errorf("%w: %q", ErrMalformedColor, s)
	}
	hex := s[1:]

	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return RGB{}, fmt.Errorf("%w: %q", ErrMalformedColor, s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrMalformedColor, s)
	}

	return RGB{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}

// RGBA renders hex with the given alpha as a CSS rgba() value. Malformed input
// yields translucent white instead of an error.
func RGBA(hex string, alpha float64) string {
	c, err := ParseHex(hex)
	if err != nil {
		c = RGB{R: 255, G: 255, B: 255}
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, strconv.FormatFloat(alpha, 'f', -1, 64))
}
