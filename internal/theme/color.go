package theme

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Color is a 32-bit ARGB color.
type Color uint32

// Opaque black, used when a color is left unset.
const Black Color = 0xff000000

// ParseColor parses #rgb, #argb, #rrggbb or #aarrggbb. Forms without an
// alpha channel are fully opaque.
func ParseColor(s string) (Color, error) {
	trimmed := strings.TrimSpace(s)
	hex := strings.TrimPrefix(trimmed, "#")
	if len(hex) == len(trimmed) {
		return 0, fmt.Errorf("invalid color %q: missing '#'", s)
	}

	switch len(hex) {
	case 3, 4:
		var b strings.Builder
		for _, c := range hex {
			b.WriteRune(c)
			b.WriteRune(c)
		}
		hex = b.String()
	case 6, 8:
	default:
		return 0, fmt.Errorf("invalid color %q: want #rgb, #argb, #rrggbb or #aarrggbb", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v |= 0xff000000
	}
	return Color(v), nil
}

// A returns the alpha channel in 0..1.
func (c Color) A() float64 { return float64(c>>24&0xff) / 255 }

// R returns the red channel in 0..255.
func (c Color) R() uint8 { return uint8(c >> 16) }

// G returns the green channel in 0..255.
func (c Color) G() uint8 { return uint8(c >> 8) }

// B returns the blue channel in 0..255.
func (c Color) B() uint8 { return uint8(c) }

// String returns the #aarrggbb form.
func (c Color) String() string {
	return fmt.Sprintf("#%08x", uint32(c))
}

// CSS returns the color as a CSS rgba() expression.
func (c Color) CSS() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R(), c.G(), c.B(),
		strconv.FormatFloat(c.A(), 'f', 3, 64))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("color must be a string")
	}
	parsed, err := ParseColor(value.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c Color) MarshalYAML() (any, error) {
	return c.String(), nil
}
