package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"

	xdraw "golang.org/x/image/draw"
)

// PreviewMaxSide bounds the longest side of preview thumbnails.
const PreviewMaxSide = 320

// Decode attempts to decode an image from bytes, trying JPEG first
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no image data provided")
	}

	// Try JPEG first (camera stills)
	if img, err := jpeg.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := png.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Try generic image decode as fallback
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("unsupported or invalid image format")
}

// Thumbnail decodes a captured still and re-encodes it downscaled to fit
// within PreviewMaxSide, for preview panes.
func Thumbnail(src *EncodedImage) (*EncodedImage, error) {
	if src == nil {
		return nil, fmt.Errorf("no image to preview")
	}

	img, err := Decode(src.Data)
	if err != nil {
		slog.Warn("Failed to decode still for preview", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	small := resizeToFit(img, PreviewMaxSide, PreviewMaxSide)
	preview, err := EncodeJPEG(small, DefaultQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	slog.Debug("Preview created", "width", preview.Width, "height", preview.Height, "size", len(preview.Data))
	return preview, nil
}

// DrawScaled renders src onto a new RGBA canvas of exactly w×h.
func DrawScaled(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// resizeToFit scales img to fit within maxW×maxH (keeping aspect ratio)
func resizeToFit(src image.Image, maxW, maxH int) image.Image {
	bw := src.Bounds().Dx()
	bh := src.Bounds().Dy()

	if maxW <= 0 && maxH <= 0 {
		return src
	}
	if maxW <= 0 {
		scale := float64(maxH) / float64(bh)
		maxW = int(math.Round(float64(bw) * scale))
	}
	if maxH <= 0 {
		scale := float64(maxW) / float64(bw)
		maxH = int(math.Round(float64(bh) * scale))
	}

	scale := math.Min(float64(maxW)/float64(bw), float64(maxH)/float64(bh))
	if scale >= 1.0 {
		return src // already small enough
	}
	w := int(math.Max(1, math.Round(float64(bw)*scale)))
	h := int(math.Max(1, math.Round(float64(bh)*scale)))

	return DrawScaled(src, w, h)
}
