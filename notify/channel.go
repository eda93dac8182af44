// Package notify is a single-slot toast notifier. A newer message replaces the
// current one and cancels its pending dismissal.
package notify

import (
	"log/slog"
	"time"

	"go-giftcard-verifier/loop"
)

const DefaultDisplayTime = 2200 * time.Millisecond

type Notification struct {
	Message   string
	ExpiresAt time.Time
}

// Channel state is owned by the loop: Notify, Current and Dismiss must run on
// it. Expiry timers post back to the loop.
type Channel struct {
	loop        *loop.Loop
	displayTime time.Duration
	now         func() time.Time
	onChange    func(n Notification, visible bool)

	current    *Notification
	generation uint64
	timer      *time.Timer
}

type Option func(*Channel)

func WithDisplayTime(d time.Duration) Option {
	return func(c *Channel) { c.displayTime = d }
}

// OnChange registers a hook fired (on the loop) whenever a message is shown or
// dismissed.
func OnChange(fn func(n Notification, visible bool)) Option {
	return func(c *Channel) { c.onChange = fn }
}

func NewChannel(l *loop.Loop, opts ...Option) *Channel {
	c := &Channel{
		loop:        l,
		displayTime: DefaultDisplayTime,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify shows message, replacing whatever is displayed. Last writer wins, no
// queueing.
func (c *Channel) Notify(message string) {
	c.generation++
	gen := c.generation
	if c.timer != nil {
		c.timer.Stop()
	}

	n := Notification{Message: message, ExpiresAt: c.now().Add(c.displayTime)}
	c.current = &n
	c.timer = time.AfterFunc(c.displayTime, func() {
		c.loop.Post(func() { c.expire(gen) })
	})

	slog.Debug("Notification shown", "message", message, "generation", gen)
	c.fire(n, true)
}

// Current returns the displayed notification, if any.
func (c *Channel) Current() (Notification, bool) {
	if c.current == nil {
		return Notification{}, false
	}
	return *c.current, true
}

// Dismiss hides the current notification immediately.
func (c *Channel) Dismiss() {
	c.expire(c.generation)
}

func (c *Channel) expire(gen uint64) {
	// an older timer fired after a newer message replaced it
	if gen != c.generation || c.current == nil {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	n := *c.current
	c.current = nil
	slog.Debug("Notification dismissed", "message", n.Message, "generation", gen)
	c.fire(n, false)
}

func (c *Channel) fire(n Notification, visible bool) {
	if c.onChange != nil {
		c.onChange(n, visible)
	}
}
