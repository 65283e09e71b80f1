package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// CoverProcessor prepares thumbnails for embedding as cover art.
//
// Thumbnails arrive as JPEG, PNG or WebP images of arbitrary size. Prepare
// scales them to fit within MaxSize x MaxSize and re-encodes them as JPEG,
// which every ID3 reader understands.
//
// Example usage:
//
//	covers := NewCoverProcessor(500)
//
//	thumb, _ := client.DownloadBytes(ctx, track.ThumbnailURL)
//	art, err := covers.Prepare(ctx, thumb)
type CoverProcessor struct {
	// MaxSize bounds both dimensions. Zero disables resizing.
	MaxSize int

	// Quality is the JPEG quality between 1 and 100.
	Quality int
}

// NewCoverProcessor creates a CoverProcessor with JPEG quality 90.
func NewCoverProcessor(maxSize int) *CoverProcessor {
	return &CoverProcessor{MaxSize: maxSize, Quality: 90}
}

// Prepare decodes data, fits it into the configured bounds and returns
// JPEG-encoded bytes.
//
// The aspect ratio is preserved. Images already within the bounds are
// re-encoded without scaling. The Catmull-Rom kernel is used for scaling.
//
// Example:
//
//	// With MaxSize 500:
//	// a 1280x720 thumbnail becomes 500x281
//	// a 320x180 thumbnail stays 320x180 (but re-encoded)
func (p *CoverProcessor) Prepare(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), p.MaxSize)

	var out image.Image = img
	if width != bounds.Dx() || height != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		out = dst
	}

	quality := p.Quality
	if quality <= 0 || quality > 100 {
		quality = 90
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fitWithin scales width and height down so that neither exceeds limit.
func fitWithin(width, height, limit int) (int, int) {
	if limit <= 0 || (width <= limit && height <= limit) {
		return width, height
	}
	if width >= height {
		return limit, max(height*limit/width, 1)
	}
	return max(width*limit/height, 1), limit
}
