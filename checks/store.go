package checks

import (
	"context"
	"sync"
	"time"
)

// LogRecord is one row of the check log. Code is already masked.
type LogRecord struct {
	IP         string
	CardType   string
	CodeMasked string
	Status     string
	CheckedAt  string
	Reference  string
}

// Store keeps used codes and the check log. Should be safe for concurrent use.
type Store interface {
	IsUsed(ctx context.Context, code string) (bool, error)

	// MarkUsed must not fail when the code is already marked.
	MarkUsed(ctx context.Context, cardType, code, reference string) error

	LogCheck(ctx context.Context, rec LogRecord) error
}

type usedCode struct {
	cardType  string
	usedAt    string
	reference string
}

type InMemoryStore struct {
	mutex sync.Mutex
	used  map[string]usedCode
	logs  []LogRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{used: make(map[string]usedCode)}
}

func (s *InMemoryStore) IsUsed(_ context.Context, code string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.used[code]
	return ok, nil
}

func (s *InMemoryStore) MarkUsed(_ context.Context, cardType, code, reference string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.used[code]; !ok {
		s.used[code] = usedCode{cardType: cardType, usedAt: nowISO(time.Now()), reference: reference}
	}
	return nil
}

func (s *InMemoryStore) LogCheck(_ context.Context, rec LogRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.logs = append(s.logs, rec)
	return nil
}

// Logs returns a copy of the check log, oldest first.
func (s *InMemoryStore) Logs() []LogRecord {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]LogRecord(nil), s.logs...)
}

func nowISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
