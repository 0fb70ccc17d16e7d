package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
)

// jpegQuality is used for every re-encoded cover.
const jpegQuality = 90

// ImageService prepares cover art for embedding in mirrored MP3 files.
//
// Covers published through the site are usually PNG straight from the
// generator; ID3 players cope best with a bounded JPEG.
//
// Example usage:
//
//	svc := NewImageService()
//	cover, _ := httpClient.DownloadBytes(ctx, song.Cover)
//	jpegCover, err := svc.PrepareCover(ctx, cover, 1000, true, true)
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// PrepareCover optionally bounds data to maxSize x maxSize and optionally
// converts it to JPEG. With both options off data is returned unchanged.
func (s *ImageService) PrepareCover(ctx context.Context, data []byte, maxSize int, resize, toJPEG bool) ([]byte, error) {
	var err error
	if resize && maxSize > 0 {
		// ResizeImage always emits JPEG.
		return s.ResizeImage(ctx, data, maxSize, maxSize)
	}
	if toJPEG {
		data, err = s.ConvertToJPEG(ctx, data)
	}
	return data, err
}

// ResizeImage scales an image down to fit within maxWidth x maxHeight,
// preserving the aspect ratio, and returns it JPEG-encoded. Images that
// already fit keep their size but are still re-encoded.
//
// The Catmull-Rom algorithm is used for high-quality resizing.
//
// Example:
//
//	resized, err := svc.ResizeImage(ctx, imageData, 1000, 1000)
//	// A 1500x1000 image becomes 1000x666
//	// A 800x600 image remains 800x600 (but re-encoded)
func (s *ImageService) ResizeImage(ctx context.Context, data []byte, maxWidth, maxHeight int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxWidth || height > maxHeight {
		ratio := float64(width) / float64(height)
		if float64(maxWidth)/float64(maxHeight) > ratio {
			// Height is the limiting factor
			width = max(1, int(float64(maxHeight)*ratio))
			height = maxHeight
		} else {
			// Width is the limiting factor
			height = max(1, int(float64(maxWidth)/ratio))
			width = maxWidth
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ConvertToJPEG re-encodes an image (JPEG, PNG) as JPEG.
func (s *ImageService) ConvertToJPEG(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
