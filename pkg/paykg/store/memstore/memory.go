package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/hebuildapps/paykg/pkg/paykg/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu       sync.RWMutex
	facts    []string
	rules    []string
	activity []store.ActivityRow
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// AppendFact stores a fact text, ignoring duplicates.
func (s *Store) AppendFact(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts = appendUnique(s.facts, text)
	return nil
}

// DeleteFact removes a fact text.
func (s *Store) DeleteFact(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts = remove(s.facts, text)
	return nil
}

// ListFacts returns fact texts in insertion order.
func (s *Store) ListFacts(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.facts...), nil
}

// AppendRule stores a rule text, ignoring duplicates.
func (s *Store) AppendRule(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = appendUnique(s.rules, text)
	return nil
}

// DeleteRule removes a rule text.
func (s *Store) DeleteRule(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = remove(s.rules, text)
	return nil
}

// ListRules returns rule texts in insertion order.
func (s *Store) ListRules(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.rules...), nil
}

// AppendActivity stores one activity record.
func (s *Store) AppendActivity(ctx context.Context, rec store.ActivityRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, rec)
	return nil
}

// ListActivity returns records at or after since, oldest first.
func (s *Store) ListActivity(ctx context.Context, since time.Time) ([]store.ActivityRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.ActivityRow
	for _, rec := range s.activity {
		if !rec.At.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// PruneActivity removes records older than before.
func (s *Store) PruneActivity(ctx context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.activity[:0]
	for _, rec := range s.activity {
		if !rec.At.Before(before) {
			kept = append(kept, rec)
		}
	}
	s.activity = kept
	return nil
}

func appendUnique(items []string, text string) []string {
	for _, it := range items {
		if it == text {
			return items
		}
	}
	return append(items, text)
}

func remove(items []string, text string) []string {
	out := items[:0]
	for _, it := range items {
		if it != text {
			out = append(out, it)
		}
	}
	return out
}
