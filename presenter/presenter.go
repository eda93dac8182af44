// Package presenter holds the result pane, the status badge and the bounded
// recent-checks history. All methods must run on the owning loop.
package presenter

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
)

const HistoryCapacity = 6

const resultTip = `Tip: Change the last digit to 0 or 5 for a "Verified" result.`

var ErrNoSuchEntry = errors.New("no such history entry")

type ViewKind int

const (
	ViewEmpty ViewKind = iota
	ViewPending
	ViewResult
)

// View is the content of the result pane. Brand, Code and Email are stored
// raw; Title and Detail are rendered text with user input escaped.
type View struct {
	Kind   ViewKind
	Brand  string
	Code   string
	Email  string
	Status Status
	Title  string
	Detail string
}

// Entry is a read-only history row.
type Entry struct {
	Brand  string
	Code   string
	Status Status
}

type Snapshot struct {
	View    View
	Badge   Status
	History []Entry
}

// Notifier is the slice of the notification channel the presenter needs.
type Notifier interface {
	Notify(message string)
}

type Presenter struct {
	notifier Notifier
	onChange func(Snapshot)

	view    View
	badge   Status
	history []Entry
}

func New(notifier Notifier) *Presenter {
	return &Presenter{
		notifier: notifier,
		badge:    StatusNeutral,
		history:  make([]Entry, 0, HistoryCapacity),
	}
}

// OnChange registers a redraw hook called after every mutation.
func (p *Presenter) OnChange(fn func(Snapshot)) {
	p.onChange = fn
}

// ShowPending renders the awaiting-confirmation view.
func (p *Presenter) ShowPending(brand, email string) {
	p.view = View{
		Kind:   ViewPending,
		Brand:  brand,
		Email:  email,
		Status: StatusNeutral,
		Title:  "Check your email for confirmation",
		Detail: fmt.Sprintf("We sent a confirmation link to %s for your %s request.", EscapeHTML(email), brand),
	}
	slog.Debug("Pending view rendered", "brand", brand)
	p.changed()
}

// ShowResult renders a terminal-looking status view. It has no effect on the
// badge or the history.
func (p *Presenter) ShowResult(brand, code string, status Status) {
	p.view = View{
		Kind:   ViewResult,
		Brand:  brand,
		Code:   code,
		Status: status,
		Title:  fmt.Sprintf("%s %s: %s", brand, EscapeHTML(code), status.ResultLabel()),
		Detail: resultTip,
	}
	slog.Debug("Result view rendered", "brand", brand, "status", status)
	p.changed()
}

func (p *Presenter) SetBadge(status Status) {
	p.badge = status
	p.changed()
}

// Record prepends an entry, evicting the oldest beyond HistoryCapacity.
func (p *Presenter) Record(brand, code string, status Status) {
	p.history = append([]Entry{{Brand: brand, Code: code, Status: status}}, p.history...)
	if len(p.history) > HistoryCapacity {
		p.history = p.history[:HistoryCapacity]
	}
	slog.Debug("History entry recorded", "brand", brand, "status", status, "size", len(p.history))
	p.changed()
}

// Replay re-renders history entry i (0 is the most recent) and its badge.
// The history itself is left untouched.
func (p *Presenter) Replay(i int) error {
	if i < 0 || i >= len(p.history) {
		return fmt.Errorf("%w: %d", ErrNoSuchEntry, i)
	}
	e := p.history[i]
	p.ShowResult(e.Brand, e.Code, e.Status)
	p.SetBadge(e.Status)
	return nil
}

// Clear empties the history and notifies the user.
func (p *Presenter) Clear() {
	p.history = p.history[:0]
	p.changed()
	if p.notifier != nil {
		p.notifier.Notify("Recent checks cleared.")
	}
}

func (p *Presenter) View() View {
	return p.view
}

func (p *Presenter) Badge() Status {
	return p.badge
}

// History returns a copy, newest first.
func (p *Presenter) History() []Entry {
	out := make([]Entry, len(p.history))
	copy(out, p.history)
	return out
}

func (p *Presenter) Snapshot() Snapshot {
	return Snapshot{View: p.view, Badge: p.badge, History: p.History()}
}

func (p *Presenter) changed() {
	if p.onChange != nil {
		p.onChange(p.Snapshot())
	}
}

// EscapeHTML escapes user-entered text before it is rendered.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}
