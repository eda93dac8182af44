package images

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
)

// DefaultQuality is the JPEG quality used for captured stills.
const DefaultQuality = 90

const FormatJPEG = "image/jpeg"

var ErrInvalidDataURL = errors.New("invalid data URL")

// EncodedImage is an immutable still. A retake produces a new value, it never
// rewrites Data in place.
type EncodedImage struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// EncodeJPEG encodes img as a JPEG still at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) (*EncodedImage, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	b := img.Bounds()
	return &EncodedImage{
		Data:   buf.Bytes(),
		Format: FormatJPEG,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// DataURL renders the image as data:<format>;base64,<payload>.
func (e *EncodedImage) DataURL() string {
	return "data:" + e.Format + ";base64," + base64.StdEncoding.EncodeToString(e.Data)
}

// DataURLPayload is the decoded content of a data URL.
type DataURLPayload struct {
	MainType string
	SubType  string
	Data     []byte
}

// MIME returns the full media type, e.g. image/jpeg.
func (p DataURLPayload) MIME() string {
	return p.MainType + "/" + p.SubType
}

// ParseDataURL decodes a base64 data URL such as the ones produced by DataURL.
func ParseDataURL(dataURL string) (DataURLPayload, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return DataURLPayload{}, ErrInvalidDataURL
	}
	header, encoded, ok := strings.Cut(dataURL, ",")
	if !ok {
		return DataURLPayload{}, fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}
	mime, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	mainType, subType, ok := strings.Cut(mime, "/")
	if !ok || mainType == "" || subType == "" {
		return DataURLPayload{}, fmt.Errorf("%w: invalid mime type %q", ErrInvalidDataURL, mime)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return DataURLPayload{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return DataURLPayload{MainType: mainType, SubType: subType, Data: data}, nil
}
