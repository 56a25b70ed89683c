package memory

import (
	"context"
	"sync"
	"time"

	"budgetbuddy/internal/cloudsync"
)

// Store keeps user documents in process memory.
type Store struct {
	mu   sync.Mutex
	docs map[string]cloudsync.Document
	now  func() time.Time
}

var _ cloudsync.RemoteStore = (*Store)(nil)

func New() *Store {
	return &Store{docs: make(map[string]cloudsync.Document), now: time.Now}
}

// WithClock replaces the clock used for the sync timestamp.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Get(_ context.Context, userID string) (cloudsync.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		return nil, false, nil
	}
	return doc.Clone(), true, nil
}

func (s *Store) Merge(_ context.Context, userID string, fields cloudsync.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		doc = make(cloudsync.Document)
		s.docs[userID] = doc
	}
	for k, v := range fields.Clone() {
		doc[k] = v
	}
	doc[cloudsync.FieldLastSynced] = cloudsync.Timestamp(s.now())
	return nil
}
