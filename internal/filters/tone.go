package filters

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"

	"github.com/tendant/simple-image-handler/internal/params"
)

// Adjust changes brightness, contrast and saturation (each -100..100) and
// gamma (> 0, 1 is neutral). Steps apply in that order.
type Adjust struct{}

func (Adjust) Name() string { return "adjust" }

func (Adjust) Params() []string {
	return []string{"brightness", "contrast", "saturation", "gamma"}
}

func (Adjust) Process(ctx context.Context, ps *params.Set, img image.Image) (image.Image, bool, error) {
	modified := false

	steps := []struct {
		key string
		fn  func(image.Image, float64) *image.RGBA
	}{
		{"brightness", adjust.Brightness},
		{"contrast", adjust.Contrast},
		{"saturation", adjust.Saturation},
	}
	for _, s := range steps {
		v, ok, err := rangeParam(ps, s.key, -100, 100)
		if err != nil {
			return nil, false, err
		}
		if !ok || v == 0 {
			continue
		}
		img = s.fn(img, v/100)
		modified = true
	}

	gamma, ok, err := floatParam(ps, "gamma")
	if err != nil {
		return nil, false, err
	}
	if ok {
		if gamma <= 0 {
			return nil, false, fmt.Errorf("%w: gamma=%v must be positive", ErrInvalidParameter, gamma)
		}
		if gamma != 1 {
			img = adjust.Gamma(img, gamma)
			modified = true
		}
	}

	return img, modified, nil
}

// Blur applies a gaussian blur with the given radius.
type Blur struct{}

func (Blur) Name() string { return "blur" }

func (Blur) Params() []string { return []string{"blur"} }

func (Blur) Process(ctx context.Context, ps *params.Set, img image.Image) (image.Image, bool, error) {
	radius, ok, err := rangeParam(ps, "blur", 0, 100)
	if err != nil || !ok || radius == 0 {
		return img, false, err
	}
	return blur.Gaussian(img, radius), true, nil
}

// Sharpen applies an unsharp mask with the given sigma.
type Sharpen struct{}

func (Sharpen) Name() string { return "sharpen" }

func (Sharpen) Params() []string { return []string{"sharpen"} }

func (Sharpen) Process(ctx context.Context, ps *params.Set, img image.Image) (image.Image, bool, error) {
	sigma, ok, err := rangeParam(ps, "sharpen", 0, 50)
	if err != nil || !ok || sigma == 0 {
		return img, false, err
	}
	return imaging.Sharpen(img, sigma), true, nil
}

// Effect applies a named colour effect: grayscale, sepia or invert.
type Effect struct{}

func (Effect) Name() string { return "effect" }

func (Effect) Params() []string { return []string{"effect"} }

func (Effect) Process(ctx context.Context, ps *params.Set, img image.Image) (image.Image, bool, error) {
	name := strings.ToLower(ps.Value("effect"))
	switch name {
	case "":
		return img, false, nil
	case "grayscale", "greyscale":
		return effect.Grayscale(img), true, nil
	case "sepia":
		return effect.Sepia(img), true, nil
	case "invert":
		return effect.Invert(img), true, nil
	default:
		return nil, false, fmt.Errorf("%w: effect=%q", ErrInvalidParameter, name)
	}
}

// Flatten composites the image onto an opaque background colour, removing
// transparency.
type Flatten struct{}

func (Flatten) Name() string { return "flatten" }

func (Flatten) Params() []string { return []string{"background"} }

func (Flatten) Process(ctx context.Context, ps *params.Set, img image.Image) (image.Image, bool, error) {
	raw, ok := ps.Get("background")
	if !ok || raw == "" {
		return img, false, nil
	}
	bg, err := ParseColor(raw)
	if err != nil {
		return nil, false, err
	}

	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(canvas, img, image.Point{}, 1.0), true, nil
}
