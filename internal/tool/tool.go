// Package tool decodes source bytes, runs the filter chain, and encodes the
// result.
package tool

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/tendant/simple-image-handler/internal/filters"
	"github.com/tendant/simple-image-handler/internal/params"
)

const (
	// FormatParam overrides the output format.
	FormatParam = "format"
	// QualityParam sets JPEG quality, 1..100.
	QualityParam = "quality"

	DefaultQuality = 85

	// DefaultMaxSourcePixels caps decoded sources at 50 megapixels.
	DefaultMaxSourcePixels = 50_000_000
)

// Tool is the capability the render workflow needs from an image toolkit.
type Tool interface {
	Decode(ctx context.Context, data []byte) (*Image, error)
	ApplyFilters(ctx context.Context, ps *params.Set, img *Image) (bool, error)
	Encode(ctx context.Context, ps *params.Set, img *Image) (*Output, error)
}

// Image is a decoded bitmap plus what is needed to re-emit it.
type Image struct {
	Bitmap   image.Image
	Format   string // decoder name: jpeg, png, gif, bmp, tiff, webp
	Source   []byte
	Modified bool
}

// Output is an encoded image.
type Output struct {
	Data        []byte
	Format      string
	ContentType string
}

// Config holds ImagingTool settings.
type Config struct {
	Filters       []string
	Quality       int
	MaxWidth      int
	MaxHeight     int
	DefaultFormat string
	// MaxSourcePixels bounds width*height of a source before it is decoded.
	MaxSourcePixels int64
}

// ImagingTool implements Tool on top of disintegration/imaging with the
// built-in filter chain.
type ImagingTool struct {
	chain         filters.Chain
	quality       int
	defaultFormat string
	maxPixels     int64
}

// NewImagingTool builds a tool. Unknown filter names are reported with
// filters.ErrUnknownFilter.
func NewImagingTool(cfg Config) (*ImagingTool, error) {
	chain, err := filters.Build(cfg.Filters, filters.Options{
		MaxWidth:  cfg.MaxWidth,
		MaxHeight: cfg.MaxHeight,
	})
	if err != nil {
		return nil, err
	}

	quality := cfg.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	def := strings.ToLower(cfg.DefaultFormat)
	if def == "" {
		def = "png"
	}
	if _, ok := encodable[def]; !ok {
		return nil, fmt.Errorf("default format %q cannot be encoded", cfg.DefaultFormat)
	}

	maxPixels := cfg.MaxSourcePixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxSourcePixels
	}

	return &ImagingTool{chain: chain, quality: quality, defaultFormat: def, maxPixels: maxPixels}, nil
}

// Chain returns the configured filter chain.
func (t *ImagingTool) Chain() filters.Chain {
	return t.chain
}

// Params lists every request parameter this tool and its filters read.
func (t *ImagingTool) Params() []string {
	return append(t.chain.Params(), FormatParam, QualityParam)
}

func (t *ImagingTool) Decode(ctx context.Context, data []byte) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &ToolError{Op: OpDecode, Err: ErrEmptySource}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &ToolError{Op: OpDecode, Err: fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)}
	}
	// Checked before the bitmap is allocated.
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > t.maxPixels {
		return nil, &ToolError{Op: OpDecode, Err: fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)}
	}

	bitmap, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ToolError{Op: OpDecode, Err: err}
	}

	return &Image{Bitmap: bitmap, Format: format, Source: data}, nil
}

func (t *ImagingTool) ApplyFilters(ctx context.Context, ps *params.Set, img *Image) (bool, error) {
	out, modified, err := t.chain.Apply(ctx, ps, img.Bitmap)
	if err != nil {
		return false, err
	}
	if modified {
		img.Bitmap = out
		img.Modified = true
	}
	return modified, nil
}

func (t *ImagingTool) Encode(ctx context.Context, ps *params.Set, img *Image) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, err := t.outputFormat(ps, img.Format)
	if err != nil {
		return nil, &ToolError{Op: OpEncode, Err: err}
	}

	quality := t.quality
	raw := ps.Value(QualityParam)
	if raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil || q < 1 || q > 100 {
			return nil, &ToolError{Op: OpEncode, Err: fmt.Errorf("%w: quality=%q", filters.ErrInvalidParameter, raw)}
		}
		quality = q
	}

	// An explicit JPEG quality always re-encodes.
	requantize := raw != "" && format == "jpeg"
	if !img.Modified && !requantize && format == img.Format && len(img.Source) > 0 {
		return &Output{Data: img.Source, Format: format, ContentType: ContentType(format)}, nil
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img.Bitmap, encodable[format], imaging.JPEGQuality(quality)); err != nil {
		return nil, &ToolError{Op: OpEncode, Err: err}
	}

	return &Output{Data: buf.Bytes(), Format: format, ContentType: ContentType(format)}, nil
}

// outputFormat resolves the requested format, falling back to the source
// format and then to the default when the source cannot be re-encoded.
func (t *ImagingTool) outputFormat(ps *params.Set, source string) (string, error) {
	if raw := ps.Value(FormatParam); raw != "" {
		f := normalizeFormat(raw)
		if _, ok := encodable[f]; !ok {
			return "", fmt.Errorf("%w: format=%q", filters.ErrInvalidParameter, raw)
		}
		return f, nil
	}
	if _, ok := encodable[source]; ok {
		return source, nil
	}
	return t.defaultFormat, nil
}

var encodable = map[string]imaging.Format{
	"jpeg": imaging.JPEG,
	"png":  imaging.PNG,
	"gif":  imaging.GIF,
	"bmp":  imaging.BMP,
	"tiff": imaging.TIFF,
}

func normalizeFormat(raw string) string {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
	if parsed, err := imaging.FormatFromExtension(f); err == nil {
		return strings.ToLower(parsed.String())
	}
	return f
}

// ContentType returns the MIME type for a decoder format name.
func ContentType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	case "webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

// SniffContentType guesses the MIME type of encoded bytes, used for cache hits
// where the format is not stored alongside the data.
func SniffContentType(data []byte) string {
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return ContentType(format)
	}
	return http.DetectContentType(data)
}
