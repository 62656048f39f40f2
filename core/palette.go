package core

import (
	"errors"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/signalsfoundry/debris-tracking-scene/model"
)

// ErrInvalidColor is returned for colours that are not #rgb / #rrggbb hex.
var ErrInvalidColor = errors.New("invalid colour")

const (
	ColorTarget     = "#ef4444"
	ColorBackground = "#6b7280"
	ColorEarth      = "#1e3a8a"
	ColorSpace      = "#000008"

	TrackerPathOpacity = 0.3
	TargetPathOpacity  = 0.25
)

// DefaultColor is the colour used for a body whose definition leaves it empty.
// Trackers fall back to the first ATLAS colour.
func DefaultColor(role model.Role) string {
	switch role {
	case model.RoleTarget:
		return ColorTarget
	case model.RoleTracker:
		return TrackerOrbits()[0].Color
	default:
		return ColorBackground
	}
}

// ParseColor parses a hex colour.
func ParseColor(hex string) (colorful.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%w %q: %v", ErrInvalidColor, hex, err)
	}
	return c, nil
}

// Fade composites c at the given opacity over bg. Opacity is clamped to [0, 1].
func Fade(c, bg colorful.Color, opacity float64) colorful.Color {
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	return bg.BlendRgb(c, opacity).Clamped()
}
