package filters

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/tendant/simple-image-handler/internal/params"
)

// Resize scales the image to the requested width and/or height.
//
//	width, height  target dimensions in pixels; either may be omitted
//	mode           fit (default, keep aspect inside the box), fill (cover and
//	               crop centre) or stretch (ignore aspect)
type Resize struct {
	MaxWidth  int
	MaxHeight int
}

func (Resize) Name() string { return "resize" }

func (Resize) Params() []string { return []string{"width", "height", "mode"} }

func (r Resize) Process(ctx context.Context, ps *params.Set, img image.Image) (image.Image, bool, error) {
	width, hasW, err := intParam(ps, "width")
	if err != nil {
		return nil, false, err
	}
	height, hasH, err := intParam(ps, "height")
	if err != nil {
		return nil, false, err
	}
	if !hasW && !hasH {
		return img, false, nil
	}
	if width < 0 || height < 0 {
		return nil, false, fmt.Errorf("%w: negative dimensions %dx%d", ErrInvalidParameter, width, height)
	}
	if r.MaxWidth > 0 && width > r.MaxWidth {
		return nil, false, fmt.Errorf("%w: width %d exceeds %d", ErrInvalidParameter, width, r.MaxWidth)
	}
	if r.MaxHeight > 0 && height > r.MaxHeight {
		return nil, false, fmt.Errorf("%w: height %d exceeds %d", ErrInvalidParameter, height, r.MaxHeight)
	}

	b := img.Bounds()
	if width == 0 && height == 0 {
		return img, false, nil
	}

	mode := strings.ToLower(ps.Value("mode"))
	switch mode {
	case "", "fit":
		if width == 0 {
			width = math.MaxInt32
		}
		if height == 0 {
			height = math.MaxInt32
		}
		if b.Dx() <= width && b.Dy() <= height {
			return img, false, nil
		}
		return imaging.Fit(img, width, height, imaging.Lanczos), true, nil
	case "fill":
		if width == 0 || height == 0 {
			return nil, false, fmt.Errorf("%w: fill needs both width and height", ErrInvalidParameter)
		}
		return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos), true, nil
	case "stretch":
		// imaging.Resize keeps aspect ratio when one side is zero.
		if width == b.Dx() && height == b.Dy() {
			return img, false, nil
		}
		return imaging.Resize(img, width, height, imaging.Lanczos), true, nil
	default:
		return nil, false, fmt.Errorf("%w: mode=%q", ErrInvalidParameter, mode)
	}
}

// Crop cuts a rectangular region given as crop=x1,y1,x2,y2 in source pixels.
type Crop struct{}

func (Crop) Name() string { return "crop" }

func (Crop) Params() []string { return []string{"crop"} }

func (Crop) Process(ctx context.Context, ps *params.Set, img image.Image) (image.Image, bool, error) {
	raw, ok := ps.Get("crop")
	if !ok || raw == "" {
		return img, false, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, false, fmt.Errorf("%w: crop=%q wants x1,y1,x2,y2", ErrInvalidParameter, raw)
	}
	var coords [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, false, fmt.Errorf("%w: crop=%q", ErrInvalidParameter, raw)
		}
		coords[i] = n
	}

	b := img.Bounds()
	rect := image.Rect(coords[0], coords[1], coords[2], coords[3]).Add(b.Min)
	if rect.Empty() || !rect.In(b) {
		return nil, false, fmt.Errorf("%w: crop region %v outside %dx%d image",
			ErrInvalidParameter, rect.Sub(b.Min), b.Dx(), b.Dy())
	}
	if rect.Eq(b) {
		return img, false, nil
	}

	return imaging.Crop(img, rect), true, nil
}

// Rotate turns the image counter-clockwise by rotate degrees. Right angles are
// lossless; other angles expand the canvas and fill with background (default
// transparent).
type Rotate struct{}

func (Rotate) Name() string { return "rotate" }

func (Rotate) Params() []string { return []string{"rotate", "background"} }

func (Rotate) Process(ctx context.Context, ps *params.Set, img image.Image) (image.Image, bool, error) {
	angle, ok, err := floatParam(ps, "rotate")
	if err != nil || !ok {
		return img, false, err
	}

	angle = math.Mod(angle, 360)
	if angle < 0 {
		angle += 360
	}

	switch angle {
	case 0:
		return img, false, nil
	case 90:
		return imaging.Rotate90(img), true, nil
	case 180:
		return imaging.Rotate180(img), true, nil
	case 270:
		return imaging.Rotate270(img), true, nil
	}

	bg, err := colorParam(ps, "background", color.Transparent)
	if err != nil {
		return nil, false, err
	}
	return imaging.Rotate(img, angle, bg), true, nil
}

// Flip mirrors the image: flip=h (horizontal), v (vertical) or hv (both).
type Flip struct{}

func (Flip) Name() string { return "flip" }

func (Flip) Params() []string { return []string{"flip"} }

func (Flip) Process(ctx context.Context, ps *params.Set, img image.Image) (image.Image, bool, error) {
	raw := strings.ToLower(ps.Value("flip"))
	switch raw {
	case "":
		return img, false, nil
	case "h":
		return imaging.FlipH(img), true, nil
	case "v":
		return imaging.FlipV(img), true, nil
	case "hv", "vh":
		return imaging.Rotate180(img), true, nil
	default:
		return nil, false, fmt.Errorf("%w: flip=%q", ErrInvalidParameter, raw)
	}
}
