package derive

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	xdraw "golang.org/x/image/draw"
)

const (
	// DefaultThumbnailMaxPx bounds the longer thumbnail edge.
	DefaultThumbnailMaxPx = 200

	thumbnailJPEGQuality = 85
)

// ImageDeriver extracts dimensions, EXIF metadata, and a JPEG thumbnail from
// image bytes using the registered stdlib decoders.
type ImageDeriver struct {
	thumbnailMaxPx int
	logger         *slog.Logger
}

// NewImageDeriver creates an ImageDeriver. thumbnailMaxPx <= 0 selects the
// default thumbnail bound.
func NewImageDeriver(thumbnailMaxPx int, logger *slog.Logger) *ImageDeriver {
	if thumbnailMaxPx <= 0 {
		thumbnailMaxPx = DefaultThumbnailMaxPx
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageDeriver{thumbnailMaxPx: thumbnailMaxPx, logger: logger}
}

// Derive probes dimensions, reads EXIF, and renders a thumbnail. Each step
// fails independently; an error return means the bytes are not a decodable
// image at all.
func (d *ImageDeriver) Derive(ctx context.Context, data []byte) (Result, error) {
	if d == nil {
		return Result{}, fmt.Errorf("deriver is not configured")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	result := Result{}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode image config: %w", err)
	}
	result.Metadata.Width = &cfg.Width
	result.Metadata.Height = &cfg.Height

	d.readEXIF(data, &result)

	if err := ctx.Err(); err != nil {
		// Downstream treats a partial result with nil error as success;
		// dimensions and EXIF are already in hand.
		return result, nil
	}

	thumb, err := d.renderThumbnail(data)
	if err != nil {
		d.logger.Debug("thumbnail generation failed", "format", format, "error", err)
		return result, nil
	}
	result.Thumbnail = thumb

	return result, nil
}

// readEXIF fills camera, capture-time, and GPS fields when present. EXIF is
// absent from most non-camera images; failures here are expected.
func (d *ImageDeriver) readEXIF(data []byte, result *Result) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		d.logger.Debug("no exif data", "error", err)
		return
	}

	if tm, err := x.DateTime(); err == nil {
		utc := tm.UTC()
		result.Metadata.TakenAt = &utc
	}
	if makeTag, err := x.Get(exif.Make); err == nil {
		if value, err := makeTag.StringVal(); err == nil {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				result.Metadata.CameraMake = &trimmed
			}
		}
	}
	if modelTag, err := x.Get(exif.Model); err == nil {
		if value, err := modelTag.StringVal(); err == nil {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				result.Metadata.CameraModel = &trimmed
			}
		}
	}
	if lat, lon, err := x.LatLong(); err == nil {
		result.Metadata.GPSLat = &lat
		result.Metadata.GPSLon = &lon
	}
}

// renderThumbnail decodes the full image and scales it into a bounded box,
// preserving aspect ratio, encoded as JPEG.
func (d *ImageDeriver) renderThumbnail(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("degenerate image bounds %v", bounds)
	}

	targetW, targetH := width, height
	if width > d.thumbnailMaxPx || height > d.thumbnailMaxPx {
		if width >= height {
			targetW = d.thumbnailMaxPx
			targetH = height * d.thumbnailMaxPx / width
		} else {
			targetH = d.thumbnailMaxPx
			targetW = width * d.thumbnailMaxPx / height
		}
		if targetW < 1 {
			targetW = 1
		}
		if targetH < 1 {
			targetH = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
