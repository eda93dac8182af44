package capture

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-giftcard-verifier/loop"
	"go-giftcard-verifier/models"

	"github.com/stretchr/testify/require"
)

// test doubles

type fakeStream struct {
	width, height int
	frame         image.Image
	stops         atomic.Int32
}

func newFakeStream(w, h int) *fakeStream {
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return &fakeStream{width: w, height: h, frame: img}
}

func (s *fakeStream) Size() (int, int)            { return s.width, s.height }
func (s *fakeStream) Frame() (image.Image, error) { return s.frame, nil }
func (s *fakeStream) Stop()                       { s.stops.Add(1) }

type fakeDevice struct {
	stream *fakeStream
	err    error
	gate   chan struct{} // when set, Open blocks until it is closed
	facing atomic.Value
}

func (d *fakeDevice) Open(ctx context.Context, facing FacingMode) (Stream, error) {
	d.facing.Store(facing)
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

type fakeClient struct {
	mu      sync.Mutex
	uploads []models.ScanUploadRequest
	err     error
	gate    chan struct{}
}

func (c *fakeClient) RequestVerification(context.Context, models.VerifyRequest) error { return nil }

func (c *fakeClient) UploadScan(ctx context.Context, req models.ScanUploadRequest) error {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads = append(c.uploads, req)
	return c.err
}

func (c *fakeClient) calls() []models.ScanUploadRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ScanUploadRequest(nil), c.uploads...)
}

type fakeAudit struct {
	mu    sync.Mutex
	modes []string
}

func (a *fakeAudit) LogScan(_ context.Context, _, _, _, _, mode string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.modes = append(a.modes, mode)
}

func (a *fakeAudit) entries() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.modes...)
}

// recordingNotifier is only touched on the loop
type recordingNotifier struct{ messages []string }

func (n *recordingNotifier) Notify(m string) { n.messages = append(n.messages, m) }

type harness struct {
	t        *testing.T
	loop     *loop.Loop
	ctrl     *Controller
	device   *fakeDevice
	client   *fakeClient
	audit    *fakeAudit
	notifier *recordingNotifier
	phases   []Phase
}

func newHarness(t *testing.T, device *fakeDevice, client *fakeClient) *harness {
	t.Helper()
	l := loop.Start(t.Context())
	h := &harness{t: t, loop: l, device: device, client: client, audit: &fakeAudit{}, notifier: &recordingNotifier{}}
	h.ctrl = NewController(t.Context(), l, Dependencies{
		Device:   device,
		Client:   client,
		Audit:    h.audit,
		Notifier: h.notifier,
	})
	h.ctrl.OnChange(func(s Snapshot) { h.phases = append(h.phases, s.Phase) })
	return h
}

func (h *harness) do(fn func()) {
	h.t.Helper()
	require.NoError(h.t, h.loop.Do(fn))
}

func (h *harness) snapshot() Snapshot {
	h.t.Helper()
	var s Snapshot
	h.do(func() { s = h.ctrl.Snapshot() })
	return s
}

func (h *harness) messages() []string {
	h.t.Helper()
	var m []string
	h.do(func() { m = append(m, h.notifier.messages...) })
	return m
}

func (h *harness) lastMessage() string {
	h.t.Helper()
	m := h.messages()
	if len(m) == 0 {
		return ""
	}
	return m[len(m)-1]
}

func (h *harness) waitPhase(want Phase) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.snapshot().Phase == want
	}, 2*time.Second, 5*time.Millisecond, "phase never reached %s", want)
}

func (h *harness) capture() error {
	h.t.Helper()
	var err error
	h.do(func() { err = h.ctrl.Capture() })
	return err
}

func (h *harness) upload(email string) error {
	h.t.Helper()
	var err error
	h.do(func() { err = h.ctrl.Upload(email) })
	return err
}

// readyToUpload opens a session and captures front and back
func (h *harness) readyToUpload(mode Mode) {
	h.t.Helper()
	h.do(func() { h.ctrl.Open("Amazon", mode) })
	h.waitPhase(CapturingFront)
	require.NoError(h.t, h.capture())
	require.NoError(h.t, h.capture())
	require.Equal(h.t, ReadyToUpload, h.snapshot().Phase)
}

func solidFrame(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
