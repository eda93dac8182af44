// Package capture drives the two-shot (front/back) card capture: camera
// access, stills, and the upload of both images.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go-giftcard-verifier/apiclient"
	"go-giftcard-verifier/images"
	"go-giftcard-verifier/loop"
	"go-giftcard-verifier/models"

	"github.com/google/uuid"
)

type Mode string

const (
	ModeScan    Mode = "scan"
	ModeBalance Mode = "balance"
)

// ParseMode accepts "scan" or "balance"; empty means balance.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeScan:
		return ModeScan, nil
	case ModeBalance, "":
		return ModeBalance, nil
	default:
		return "", fmt.Errorf("unknown capture mode %q", s)
	}
}

type Phase int

const (
	Idle Phase = iota
	AwaitingDevice
	CapturingFront
	CapturingBack
	ReadyToUpload
	Uploading
	Complete
	Failed
)

var phaseNames = [...]string{"Idle", "AwaitingDevice", "CapturingFront", "CapturingBack", "ReadyToUpload", "Uploading", "Complete", "Failed"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

type EventKind int

const (
	EventDeviceOpened EventKind = iota
	EventDeviceDenied
	EventCapture
	EventUpload
	EventUploadSucceeded
	EventUploadFailed
	EventClose
)

var eventNames = [...]string{"DeviceOpened", "DeviceDenied", "Capture", "Upload", "UploadSucceeded", "UploadFailed", "Close"}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("Event(%d)", int(k))
}

// Event is one input to the controller. SessionID ties asynchronous
// completions to the capture session that started them.
type Event struct {
	Kind      EventKind
	SessionID string
	Media     *Session
	Email     string
	Err       error
}

var (
	ErrNoSession         = errors.New("no capture session open")
	ErrStaleEvent        = errors.New("event belongs to a released capture session")
	ErrInvalidTransition = errors.New("event not accepted in current phase")
)

const (
	labelCaptureFront = "Capture Front"
	labelCaptureBack  = "Capture Back"
	labelRetakeBack   = "Retake Back"

	defaultBrand = "Card"
)

// Messages shown through the notification channel.
const (
	MsgDeviceUnavailable = "Camera permission denied or unavailable."
	MsgFrontCaptured     = "Front captured. Now snap the back."
	MsgBackCaptured      = "Back captured. Ready to upload."
	MsgBackUpdated       = "Back updated."
	MsgEmailRequired     = "Enter your email to continue."
	MsgUploadSucceeded   = "Verification in process. Please check your email."
	MsgUploadFailed      = "Upload failed."
	MsgUploadNetwork     = "Network error uploading images."
)

type Notifier interface {
	Notify(message string)
}

type AuditLog interface {
	LogScan(ctx context.Context, brand, email, front, back, mode string)
}

type Dependencies struct {
	Device   Device
	Client   apiclient.Client
	Audit    AuditLog
	Notifier Notifier
}

// captureSession is one camera-access-to-upload attempt.
type captureSession struct {
	id    string
	brand string
	mode  Mode
	media *Session

	front, back               *images.EncodedImage
	frontPreview, backPreview *images.EncodedImage
}

// Snapshot is a read-only view of the controller for rendering.
type Snapshot struct {
	SessionID      string
	Brand          string
	Mode           Mode
	Phase          Phase
	ModalOpen      bool
	Title          string
	ActionLabel    string
	CaptureEnabled bool
	UploadEnabled  bool
	DeviceActive   bool
	Front, Back    *images.EncodedImage
	FrontPreview   *images.EncodedImage
	BackPreview    *images.EncodedImage
}

type transitionKey struct {
	phase Phase
	event EventKind
}

type handler func(c *Controller, s *captureSession, ev Event)

// transitions is the dispatch table. Close is accepted in every phase and is
// handled before the lookup.
var transitions map[transitionKey]handler

func init() {
	transitions = map[transitionKey]handler{
		{AwaitingDevice, EventDeviceOpened}: (*Controller).onDeviceOpened,
		{AwaitingDevice, EventDeviceDenied}: (*Controller).onDeviceDenied,
		{CapturingFront, EventCapture}:      (*Controller).onCaptureFront,
		{CapturingBack, EventCapture}:       (*Controller).onCaptureBack,
		{ReadyToUpload, EventCapture}:       (*Controller).onRetakeBack,
		{ReadyToUpload, EventUpload}:        (*Controller).onUpload,
		{Uploading, EventUploadSucceeded}:   (*Controller).onUploadSucceeded,
		{Uploading, EventUploadFailed}:      (*Controller).onUploadFailed,
	}
}

// Controller is the capture state machine. Every method must run on the
// loop; device access and uploads run on helper goroutines and post their
// results back as events.
type Controller struct {
	ctx  context.Context
	loop *loop.Loop
	deps Dependencies

	current        *captureSession
	phase          Phase
	modalOpen      bool
	title          string
	actionLabel    string
	captureEnabled bool
	uploadEnabled  bool

	onChange func(Snapshot)
}

func NewController(ctx context.Context, l *loop.Loop, deps Dependencies) *Controller {
	return &Controller{ctx: ctx, loop: l, deps: deps, phase: Idle}
}

// OnChange registers a redraw hook called after every handled event.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.onChange = fn
}

// Open starts a fresh capture session for brand, discarding any previous one.
func (c *Controller) Open(brand string, mode Mode) {
	if c.current != nil {
		slog.Debug("Discarding previous capture session", "session_id", c.current.id)
		c.teardown(Idle)
	}
	if strings.TrimSpace(brand) == "" {
		brand = defaultBrand
	}

	s := &captureSession{id: uuid.NewString(), brand: brand, mode: mode}
	c.current = s
	c.phase = AwaitingDevice
	c.modalOpen = true
	c.title = "Scan Balance"
	if mode == ModeScan {
		c.title = "Scan Image"
	}
	c.actionLabel = labelCaptureFront
	c.captureEnabled = false
	c.uploadEnabled = false
	slog.Info("Capture session opened", "session_id", s.id, "brand", brand, "mode", mode)
	c.changed()

	id := s.id
	go func() {
		media, err := OpenSession(c.ctx, c.deps.Device, mode)
		c.loop.Post(func() {
			if err != nil {
				_ = c.Dispatch(Event{Kind: EventDeviceDenied, SessionID: id, Err: err})
				return
			}
			_ = c.Dispatch(Event{Kind: EventDeviceOpened, SessionID: id, Media: media})
		})
	}()
}

// Capture samples a still into the next slot (front, back, or a back retake).
func (c *Controller) Capture() error {
	if c.current == nil {
		return ErrNoSession
	}
	return c.Dispatch(Event{Kind: EventCapture, SessionID: c.current.id})
}

// Upload sends both images. Without both images it does nothing; without an
// email it only asks for one.
func (c *Controller) Upload(email string) error {
	if c.current == nil {
		return ErrNoSession
	}
	return c.Dispatch(Event{Kind: EventUpload, SessionID: c.current.id, Email: email})
}

// Close releases the camera and discards all progress. An upload already in
// flight is not cancelled; its result is ignored when it arrives.
func (c *Controller) Close() {
	_ = c.Dispatch(Event{Kind: EventClose})
}

// Dispatch applies ev to the current phase.
func (c *Controller) Dispatch(ev Event) error {
	if ev.Kind == EventClose {
		c.teardown(Idle)
		slog.Debug("Capture modal closed")
		return nil
	}

	s := c.current
	if s == nil || (ev.SessionID != "" && ev.SessionID != s.id) {
		if ev.Media != nil {
			ev.Media.Release()
		}
		slog.Debug("Discarding stale capture event", "event", ev.Kind, "session_id", ev.SessionID)
		return ErrStaleEvent
	}

	h, ok := transitions[transitionKey{c.phase, ev.Kind}]
	if !ok {
		slog.Debug("Ignoring capture event", "event", ev.Kind, "phase", c.phase)
		return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.Kind, c.phase)
	}

	from := c.phase
	h(c, s, ev)
	slog.Debug("Capture transition", "session_id", s.id, "event", ev.Kind, "from", from, "to", c.phase)
	c.changed()
	return nil
}

func (c *Controller) onDeviceOpened(s *captureSession, ev Event) {
	s.media = ev.Media
	c.phase = CapturingFront
	c.actionLabel = labelCaptureFront
	c.captureEnabled = true
}

func (c *Controller) onDeviceDenied(s *captureSession, ev Event) {
	slog.Warn("Capture aborted, camera unavailable", "session_id", s.id, "error", ev.Err)
	c.notify(MsgDeviceUnavailable)
	c.teardown(Failed)
}

func (c *Controller) onCaptureFront(s *captureSession, _ Event) {
	still, ok := c.snap(s)
	if !ok {
		return
	}
	s.front = still
	s.frontPreview = preview(still)
	c.phase = CapturingBack
	c.actionLabel = labelCaptureBack
	c.notify(MsgFrontCaptured)
}

func (c *Controller) onCaptureBack(s *captureSession, _ Event) {
	still, ok := c.snap(s)
	if !ok {
		return
	}
	s.back = still
	s.backPreview = preview(still)
	c.uploadEnabled = true
	c.actionLabel = labelRetakeBack
	c.phase = ReadyToUpload
	c.notify(MsgBackCaptured)
	s.media.Release()
}

func (c *Controller) onRetakeBack(s *captureSession, _ Event) {
	still, ok := c.snap(s)
	if !ok {
		return
	}
	s.back = still
	s.backPreview = preview(still)
	c.notify(MsgBackUpdated)
}

func (c *Controller) onUpload(s *captureSession, ev Event) {
	if s.front == nil || s.back == nil {
		return
	}
	email := strings.TrimSpace(ev.Email)
	if email == "" {
		c.notify(MsgEmailRequired)
		return
	}

	c.phase = Uploading
	c.captureEnabled = false
	c.uploadEnabled = false

	req := models.ScanUploadRequest{
		Brand: s.brand,
		Email: email,
		Front: s.front.DataURL(),
		Back:  s.back.DataURL(),
		Mode:  string(s.mode),
	}
	id := s.id
	slog.Info("Uploading capture", "session_id", id, "brand", s.brand, "mode", s.mode)

	go func() {
		if c.deps.Audit != nil {
			c.deps.Audit.LogScan(c.ctx, req.Brand, req.Email, req.Front, req.Back, req.Mode)
		}
		err := c.deps.Client.UploadScan(c.ctx, req)
		c.loop.Post(func() {
			if err != nil {
				_ = c.Dispatch(Event{Kind: EventUploadFailed, SessionID: id, Err: err})
				return
			}
			_ = c.Dispatch(Event{Kind: EventUploadSucceeded, SessionID: id})
		})
	}()
}

func (c *Controller) onUploadSucceeded(s *captureSession, _ Event) {
	slog.Info("Capture upload accepted", "session_id", s.id)
	c.teardown(Complete)
	c.notify(MsgUploadSucceeded)
}

func (c *Controller) onUploadFailed(s *captureSession, ev Event) {
	slog.Warn("Capture upload failed", "session_id", s.id, "error", ev.Err)
	c.phase = ReadyToUpload
	c.captureEnabled = true
	c.uploadEnabled = true

	var rerr *apiclient.RemoteError
	switch {
	case errors.As(ev.Err, &rerr) && rerr.Message != "":
		c.notify(rerr.Message)
	case errors.As(ev.Err, &rerr):
		c.notify(MsgUploadFailed)
	default:
		c.notify(MsgUploadNetwork)
	}
}

// snap captures a still, leaving state untouched when no frame is available.
func (c *Controller) snap(s *captureSession) (*images.EncodedImage, bool) {
	if s.media == nil {
		return nil, false
	}
	still, err := s.media.CaptureFrame()
	if err != nil {
		slog.Warn("Frame capture failed", "session_id", s.id, "error", err)
		return nil, false
	}
	return still, true
}

// teardown releases the camera, discards both images and closes the modal,
// leaving the controller in phase.
func (c *Controller) teardown(phase Phase) {
	if s := c.current; s != nil {
		if s.media != nil {
			s.media.Release()
		}
		s.front, s.back = nil, nil
		s.frontPreview, s.backPreview = nil, nil
		c.current = nil
	}
	c.phase = phase
	c.modalOpen = false
	c.captureEnabled = false
	c.uploadEnabled = false
	c.changed()
}

func (c *Controller) notify(msg string) {
	if c.deps.Notifier != nil {
		c.deps.Notifier.Notify(msg)
	}
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange(c.Snapshot())
	}
}

func (c *Controller) Phase() Phase {
	return c.phase
}

func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:          c.phase,
		ModalOpen:      c.modalOpen,
		Title:          c.title,
		ActionLabel:    c.actionLabel,
		CaptureEnabled: c.captureEnabled,
		UploadEnabled:  c.uploadEnabled,
	}
	if s := c.current; s != nil {
		snap.SessionID = s.id
		snap.Brand = s.brand
		snap.Mode = s.mode
		snap.DeviceActive = s.media != nil && s.media.Active()
		snap.Front, snap.Back = s.front, s.back
		snap.FrontPreview, snap.BackPreview = s.frontPreview, s.backPreview
	}
	return snap
}

func preview(still *images.EncodedImage) *images.EncodedImage {
	p, err := images.Thumbnail(still)
	if err != nil {
		slog.Warn("Preview unavailable", "error", err)
		return nil
	}
	return p
}
