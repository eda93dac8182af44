package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"go-giftcard-verifier/images"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

var ErrNoFrame = errors.New("no frame available")

// Session owns one camera handle and turns frames into encoded stills. It does
// not know which side of the card a still is for.
type Session struct {
	mode   Mode
	stream Stream

	// last delivered frame and its size; a released stream keeps showing it
	last          image.Image
	width, height int
}

// OpenSession requests the environment-facing camera. On failure no session
// is returned and the error wraps ErrDeviceUnavailable.
func OpenSession(ctx context.Context, device Device, mode Mode) (*Session, error) {
	if device == nil {
		return nil, fmt.Errorf("%w: no capture device configured", ErrDeviceUnavailable)
	}

	slog.Debug("Requesting camera access", "facing", FacingEnvironment, "mode", mode)
	stream, err := device.Open(ctx, FacingEnvironment)
	if err != nil {
		slog.Warn("Camera access failed", "error", err)
		if errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if stream == nil {
		return nil, fmt.Errorf("%w: device returned no stream", ErrDeviceUnavailable)
	}

	w, h := stream.Size()
	slog.Info("Camera stream opened", "width", w, "height", h, "mode", mode)
	return &Session{mode: mode, stream: stream}, nil
}

func (s *Session) Mode() Mode {
	return s.mode
}

// Active reports whether the camera handle is still held.
func (s *Session) Active() bool {
	return s.stream != nil
}

// CaptureFrame samples the current frame at the stream's native size (1280×720
// when the stream reports none) and encodes it as a JPEG still.
func (s *Session) CaptureFrame() (*images.EncodedImage, error) {
	if s.stream != nil {
		w, h := s.stream.Size()
		frame, err := s.stream.Frame()
		if err != nil {
			return nil, fmt.Errorf("failed to sample frame: %w", err)
		}
		s.last = frame
		s.width, s.height = w, h
	}
	if s.last == nil {
		return nil, ErrNoFrame
	}

	w, h := s.width, s.height
	if w <= 0 || h <= 0 {
		w, h = DefaultWidth, DefaultHeight
	}

	still, err := images.EncodeJPEG(images.DrawScaled(s.last, w, h), images.DefaultQuality)
	if err != nil {
		return nil, err
	}
	slog.Debug("Frame captured", "width", still.Width, "height", still.Height, "size", len(still.Data))
	return still, nil
}

// Release stops the camera. Safe to call any number of times.
func (s *Session) Release() {
	if s.stream == nil {
		return
	}
	s.stream.Stop()
	s.stream = nil
	slog.Debug("Camera stream released", "mode", s.mode)
}
