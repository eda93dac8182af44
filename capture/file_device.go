package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"go-giftcard-verifier/images"
)

// FileDevice is a camera backed by still images on disk. Each Frame call
// advances to the next file and then keeps returning the last one.
type FileDevice struct {
	paths []string
}

func NewFileDevice(paths ...string) *FileDevice {
	return &FileDevice{paths: paths}
}

func (d *FileDevice) Open(_ context.Context, facing FacingMode) (Stream, error) {
	if len(d.paths) == 0 {
		return nil, fmt.Errorf("%w: no frame files configured", ErrDeviceUnavailable)
	}

	frames := make([]image.Image, 0, len(d.paths))
	for _, p := range d.paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		img, err := images.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, p, err)
		}
		frames = append(frames, img)
	}

	slog.Debug("File camera opened", "facing", facing, "frames", len(frames))
	return &fileStream{frames: frames}, nil
}

type fileStream struct {
	mu      sync.Mutex
	frames  []image.Image
	next    int
	stopped bool
}

func (s *fileStream) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.frames[s.current()].Bounds()
	return b.Dx(), b.Dy()
}

func (s *fileStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, fmt.Errorf("stream stopped")
	}
	img := s.frames[s.current()]
	if s.next < len(s.frames) {
		s.next++
	}
	return img, nil
}

func (s *fileStream) current() int {
	if s.next >= len(s.frames) {
		return len(s.frames) - 1
	}
	return s.next
}

func (s *fileStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}
