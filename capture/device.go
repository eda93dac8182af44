package capture

import (
	"context"
	"errors"
	"image"
)

type FacingMode string

const (
	FacingEnvironment FacingMode = "environment"
	FacingUser        FacingMode = "user"
)

var ErrDeviceUnavailable = errors.New("camera permission denied or unavailable")

// Device is a camera-like source of live video.
type Device interface {
	// Open requests access to a camera with the given facing preference.
	Open(ctx context.Context, facing FacingMode) (Stream, error)
}

// Stream is a live video handle.
type Stream interface {
	// Size reports the native frame size, zero when unknown.
	Size() (width, height int)

	// Frame samples the current frame synchronously.
	Frame() (image.Image, error)

	// Stop ends frame delivery and releases the device.
	Stop()
}
