// Package kb holds the knowledge store: asserted facts and rules indexed by
// predicate signature, with generation counters for cache staleness checks.
package kb

import (
	"fmt"
	"sync"

	"github.com/hebuildapps/paykg/pkg/paykg/internalerr"
	"github.com/hebuildapps/paykg/pkg/paykg/term"
)

// Store is the single shared mutable resource of the engine. Mutations are
// serialized behind a write lock; queries read an immutable Snapshot so an
// in-flight evaluation never observes a mid-mutation state.
type Store struct {
	mu sync.RWMutex

	factOrder []*term.Term            // global insertion order, for listings
	factSet   map[string]struct{}     // canonical text, for structural dedup
	factIndex map[string][]*term.Term // "name/arity" → facts in insertion order

	ruleOrder []Rule
	ruleSet   map[string]struct{}
	ruleIndex map[string][]Rule // head predicate name → rules

	generation uint64
	predGen    map[string]uint64 // per-predicate generation tags
}

// New creates an empty store.
func New() *Store {
	return &Store{
		factSet:   make(map[string]struct{}),
		factIndex: make(map[string][]*term.Term),
		ruleSet:   make(map[string]struct{}),
		ruleIndex: make(map[string][]Rule),
		predGen:   make(map[string]uint64),
	}
}

func sig(name string, arity int) string {
	return fmt.Sprintf("%s/%d", name, arity)
}

// AssertFact inserts a ground term as a fact. Re-asserting an existing fact
// is a no-op and reports false. The global and per-predicate generation
// counters are bumped only on a real insertion.
func (s *Store) AssertFact(t *term.Term) (bool, error) {
	if !t.IsGround() {
		return false, fmt.Errorf("%w: fact contains variables: %s", internalerr.ErrInvalidRule, t)
	}
	key := t.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.factSet[key]; dup {
		return false, nil
	}
	name, arity := t.Functor()
	s.factSet[key] = struct{}{}
	s.factOrder = append(s.factOrder, t)
	s.factIndex[sig(name, arity)] = append(s.factIndex[sig(name, arity)], t)
	s.bumpLocked(name)

	if len(s.factSet) != len(s.factOrder) {
		return false, fmt.Errorf("%w: fact index out of sync", internalerr.ErrInvalidState)
	}
	return true, nil
}

// RetractFact removes a fact if present. Retracting an absent fact is not
// an error; it reports false. Dependent cache entries are invalidated via
// the generation bump, never deleted here.
func (s *Store) RetractFact(t *term.Term) bool {
	key := t.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.factSet[key]; !ok {
		return false
	}
	delete(s.factSet, key)
	s.factOrder = removeTerm(s.factOrder, t)
	name, arity := t.Functor()
	k := sig(name, arity)
	s.factIndex[k] = removeTerm(s.factIndex[k], t)
	if len(s.factIndex[k]) == 0 {
		delete(s.factIndex, k)
	}
	s.bumpLocked(name)
	return true
}

// AssertRule inserts a rule after validating the safety condition: every
// variable in the head must occur in the body, otherwise a derivation could
// produce unbound results. Duplicate rules are a no-op.
func (s *Store) AssertRule(r Rule) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	key := r.Term().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.ruleSet[key]; dup {
		return false, nil
	}
	head, _ := r.Head.Functor()
	s.ruleSet[key] = struct{}{}
	s.ruleOrder = append(s.ruleOrder, r)
	s.ruleIndex[head] = append(s.ruleIndex[head], r)
	s.bumpLocked(head)
	return true, nil
}

// RetractRule removes a rule if present, reporting whether it was there.
func (s *Store) RetractRule(r Rule) bool {
	key := r.Term().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ruleSet[key]; !ok {
		return false
	}
	delete(s.ruleSet, key)
	s.ruleOrder = removeRule(s.ruleOrder, key)
	head, _ := r.Head.Functor()
	s.ruleIndex[head] = removeRule(s.ruleIndex[head], key)
	if len(s.ruleIndex[head]) == 0 {
		delete(s.ruleIndex, head)
	}
	s.bumpLocked(head)
	return true
}

// bumpLocked advances the global and per-predicate counters. Callers hold
// the write lock.
func (s *Store) bumpLocked(pred string) {
	s.generation++
	s.predGen[pred]++
}

// Generation returns the global mutation counter.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// PredGeneration returns the mutation counter for one predicate name.
// Unrelated predicate changes leave it untouched, which is what keeps cache
// invalidation scoped.
func (s *Store) PredGeneration(pred string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.predGen[pred]
}

// removeTerm returns items without the first structural match of t, in a
// fresh backing array so outstanding snapshots keep their view.
func removeTerm(items []*term.Term, t *term.Term) []*term.Term {
	out := make([]*term.Term, 0, len(items))
	removed := false
	for _, it := range items {
		if !removed && it.Equal(t) {
			removed = true
			continue
		}
		out = append(out, it)
	}
	return out
}

func removeRule(items []Rule, key string) []Rule {
	out := make([]Rule, 0, len(items))
	removed := false
	for _, it := range items {
		if !removed && it.Term().String() == key {
			removed = true
			continue
		}
		out = append(out, it)
	}
	return out
}
