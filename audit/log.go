// Package audit keeps a best-effort record of verification attempts and scan
// uploads. Persistence failures are logged at debug level and dropped.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultKey is the fixed key the whole log lives under.
const DefaultKey = "adminLogs"

const (
	KindVerification = "verification"
	KindScan         = "scan"
)

type Entry struct {
	Kind  string `json:"kind"`
	Brand string `json:"brand"`
	Code  string `json:"code,omitempty"`
	Email string `json:"email"`
	Front string `json:"front,omitempty"`
	Back  string `json:"back,omitempty"`
	Mode  string `json:"mode,omitempty"`
	Time  string `json:"time"`
}

// Log appends entries to a JSON array stored under one key. Every append is a
// read-modify-write, serialised by mu.
type Log struct {
	store Store
	key   string
	now   func() time.Time
	mu    sync.Mutex
}

func NewLog(store Store) *Log {
	return &Log{store: store, key: DefaultKey, now: time.Now}
}

func (l *Log) LogVerification(ctx context.Context, brand, code, email string) {
	l.Append(ctx, Entry{Kind: KindVerification, Brand: brand, Code: code, Email: email})
}

func (l *Log) LogScan(ctx context.Context, brand, email, front, back, mode string) {
	l.Append(ctx, Entry{Kind: KindScan, Brand: brand, Email: email, Front: front, Back: back, Mode: mode})
}

// Append never reports failure to the caller.
func (l *Log) Append(ctx context.Context, e Entry) {
	if e.Time == "" {
		e.Time = l.now().Format(time.DateTime)
	}
	if err := l.append(ctx, e); err != nil {
		slog.Debug("Dropping audit entry", "kind", e.Kind, "brand", e.Brand, "error", err)
	}
}

func (l *Log) append(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.load(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(append(existing, e))
	if err != nil {
		return err
	}
	return l.store.Save(ctx, l.key, string(payload))
}

// Entries returns the stored entries, oldest first.
func (l *Log) Entries(ctx context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

func (l *Log) load(ctx context.Context) ([]Entry, error) {
	raw, err := l.store.Load(ctx, l.key)
	if errors.Is(err, ErrNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
