package filters

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/tendant/simple-image-handler/internal/params"
)

func intParam(ps *params.Set, key string) (int, bool, error) {
	raw, ok := ps.Get(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidParameter, key, raw)
	}
	return n, true, nil
}

func floatParam(ps *params.Set, key string) (float64, bool, error) {
	raw, ok := ps.Get(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidParameter, key, raw)
	}
	return f, true, nil
}

func rangeParam(ps *params.Set, key string, lo, hi float64) (float64, bool, error) {
	f, ok, err := floatParam(ps, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if f < lo || f > hi {
		return 0, false, fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrInvalidParameter, key, f, lo, hi)
	}
	return f, true, nil
}

// ParseColor parses a hex colour such as "#ff0000", "ff0000" or "#f00".
func ParseColor(raw string) (color.Color, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(strings.ToLower(s))
	if err != nil {
		return nil, fmt.Errorf("%w: colour %q", ErrInvalidParameter, raw)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

func colorParam(ps *params.Set, key string, fallback color.Color) (color.Color, error) {
	raw, ok := ps.Get(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	return ParseColor(raw)
}
