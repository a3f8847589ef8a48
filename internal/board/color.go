package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// An RGBA color as exchanged with clients: channels 0-255, alpha 0.0-1.0
type Color struct {
	R uint8   `json:"r"`
	G uint8   `json:"g"`
	B uint8   `json:"b"`
	A float64 `json:"a"`
}

var ErrInvalidHexColor = errors.New("invalid hex color")

// Black, fully opaque
func DefaultColor() Color {
	return Color{R: 0, G: 0, B: 0, A: 1.0}
}

// Parses "#RRGGBB" or "#RRGGBBAA" (leading '#' optional).
// Alpha defaults to 1.0 for the 6-digit form.
func ParseHexColor(hex string) (Color, error) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return Color{}, ErrInvalidHexColor
	}

	channels := make([]uint8, 0, 4)
	for i := 0; i < len(hex); i += 2 {
		v, err := strconv.ParseUint(hex[i:i+2], 16, 8)
		if err != nil {
			return Color{}, ErrInvalidHexColor
		}
		channels = append(channels, uint8(v))
	}

	c := Color{R: channels[0], G: channels[1], B: channels[2], A: 1.0}
	if len(channels) == 4 {
		c.A = float64(channels[3]) / 255.0
	}
	return c, nil
}

// Returns a CSS-style "rgba(r, g, b, a)" string
func (c Color) ToRGBA() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %v)", c.R, c.G, c.B, c.A)
}

// Returns "#rrggbb", or "#rrggbbaa" when the color is not fully opaque
func (c Color) Hex() string {
	if c.A >= 1.0 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	alpha := uint8(c.A*255.0 + 0.5)
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, alpha)
}
