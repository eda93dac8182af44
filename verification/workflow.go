// Package verification runs the e-mail verification request: optimistic
// pending view, one backend call, a simulated processing delay and a history
// entry.
package verification

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"go-giftcard-verifier/apiclient"
	"go-giftcard-verifier/loop"
	"go-giftcard-verifier/models"
	"go-giftcard-verifier/presenter"
)

const (
	MinDelay = 800 * time.Millisecond
	MaxDelay = 1500 * time.Millisecond
)

const (
	MsgEmailFailed  = "Email failed to send."
	MsgEmailNetwork = "Network error sending email."
)

var (
	ErrMissingInput = errors.New("code and email are required")
	ErrBusy         = errors.New("a verification request is already running")
)

type Outcome int

const (
	Pending Outcome = iota
	Verified
	Failed
	NeedsReview
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "Verified"
	case Failed:
		return "Failed"
	case NeedsReview:
		return "NeedsReview"
	default:
		return "Pending"
	}
}

type Request struct {
	Brand       string
	Code        string
	Email       string
	SubmittedAt time.Time
	Outcome     Outcome
}

// Submission tracks one running request. Its Request may only be read on the
// loop, or anywhere once Done is closed.
type Submission struct {
	Request Request
	done    chan struct{}
}

// Done is closed when the request sequence has finished.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

type Notifier interface {
	Notify(message string)
}

type AuditLog interface {
	LogVerification(ctx context.Context, brand, code, email string)
}

type Option func(*Workflow)

// WithDelay replaces the random processing delay.
func WithDelay(fn func() time.Duration) Option {
	return func(w *Workflow) { w.delay = fn }
}

func WithAudit(a AuditLog) Option {
	return func(w *Workflow) { w.audit = a }
}

// Workflow is owned by the loop: Submit and Loading must run on it.
type Workflow struct {
	ctx       context.Context
	loop      *loop.Loop
	presenter *presenter.Presenter
	notifier  Notifier
	client    apiclient.Client
	audit     AuditLog
	delay     func() time.Duration
	now       func() time.Time

	current   *Submission
	onLoading func(bool)
}

func New(ctx context.Context, l *loop.Loop, p *presenter.Presenter, n Notifier, client apiclient.Client, opts ...Option) *Workflow {
	w := &Workflow{
		ctx:       ctx,
		loop:      l,
		presenter: p,
		notifier:  n,
		client:    client,
		delay:     randomDelay,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnLoading registers a hook toggled with the submit control's loading state.
func (w *Workflow) OnLoading(fn func(bool)) {
	w.onLoading = fn
}

// Loading reports whether a submission is in flight.
func (w *Workflow) Loading() bool {
	return w.current != nil
}

// Submit validates the input and starts the request sequence. Empty code or
// email returns ErrMissingInput and touches nothing.
func (w *Workflow) Submit(brand, code, email string) (*Submission, error) {
	brand = strings.TrimSpace(brand)
	code = strings.TrimSpace(code)
	email = strings.TrimSpace(email)
	if code == "" || email == "" {
		return nil, ErrMissingInput
	}
	if w.current != nil {
		return nil, ErrBusy
	}

	sub := &Submission{
		Request: Request{Brand: brand, Code: code, Email: email, SubmittedAt: w.now(), Outcome: Pending},
		done:    make(chan struct{}),
	}
	w.current = sub
	w.setLoading(true)
	w.presenter.SetBadge(presenter.StatusNeutral)
	w.presenter.ShowPending(brand, email)
	slog.Info("Verification request submitted", "brand", brand)

	req := models.VerifyRequest{Brand: brand, Code: code, Email: email}
	go func() {
		if w.audit != nil {
			w.audit.LogVerification(w.ctx, brand, code, email)
		}
		err := w.client.RequestVerification(w.ctx, req)
		w.loop.Post(func() { w.requestDone(sub, err) })
	}()
	return sub, nil
}

func (w *Workflow) requestDone(sub *Submission, err error) {
	if err != nil {
		slog.Warn("Verification request failed", "brand", sub.Request.Brand, "error", err)
		var rerr *apiclient.RemoteError
		switch {
		case errors.As(err, &rerr) && rerr.Message != "":
			w.notify(rerr.Message)
		case errors.As(err, &rerr):
			w.notify(MsgEmailFailed)
		default:
			w.notify(MsgEmailNetwork)
		}
		w.presenter.SetBadge(presenter.StatusFailed)
	}

	d := w.delay()
	slog.Debug("Simulating processing", "brand", sub.Request.Brand, "delay", d)
	time.AfterFunc(d, func() {
		w.loop.Post(func() { w.finish(sub) })
	})
}

// finish always lands on Processing whatever the backend said.
func (w *Workflow) finish(sub *Submission) {
	r := &sub.Request
	r.Outcome = NeedsReview
	w.presenter.SetBadge(presenter.StatusProcessing)
	w.presenter.Record(r.Brand, r.Code, presenter.StatusProcessing)
	slog.Info("Verification request processed", "brand", r.Brand, "outcome", r.Outcome)

	if w.current == sub {
		w.current = nil
	}
	w.setLoading(false)
	close(sub.done)
}

func (w *Workflow) setLoading(on bool) {
	if w.onLoading != nil {
		w.onLoading(on)
	}
}

func (w *Workflow) notify(msg string) {
	if w.notifier != nil {
		w.notifier.Notify(msg)
	}
}

// randomDelay is uniform in [MinDelay, MaxDelay).
func randomDelay() time.Duration {
	return MinDelay + rand.N(MaxDelay-MinDelay)
}
