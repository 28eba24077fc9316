package kb

import "github.com/hebuildapps/paykg/pkg/paykg/term"

// Snapshot is a point-in-time read view of the store. An evaluation runs
// entirely against one snapshot, so concurrent mutations can never change
// the fact set or generation it observes mid-query. Snapshots are cheap:
// slice headers are copied, term contents are shared and immutable.
type Snapshot struct {
	factOrder  []*term.Term
	ruleOrder  []Rule
	factIndex  map[string][]*term.Term
	ruleIndex  map[string][]Rule
	generation uint64
}

// Snapshot captures the current store state under the read lock.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		factOrder:  s.factOrder,
		ruleOrder:  s.ruleOrder,
		factIndex:  make(map[string][]*term.Term, len(s.factIndex)),
		ruleIndex:  make(map[string][]Rule, len(s.ruleIndex)),
		generation: s.generation,
	}
	for k, v := range s.factIndex {
		snap.factIndex[k] = v
	}
	for k, v := range s.ruleIndex {
		snap.ruleIndex[k] = v
	}
	return snap
}

// Generation returns the global counter at snapshot time.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Candidates returns the facts matching a predicate signature, in insertion
// order. The result must not be modified.
func (s *Snapshot) Candidates(name string, arity int) []*term.Term {
	return s.factIndex[sig(name, arity)]
}

// RulesFor returns the rules whose head predicate matches name, in
// insertion order.
func (s *Snapshot) RulesFor(name string) []Rule {
	return s.ruleIndex[name]
}

// Facts returns every fact in global insertion order.
func (s *Snapshot) Facts() []*term.Term { return s.factOrder }

// Rules returns every rule in global insertion order.
func (s *Snapshot) Rules() []Rule { return s.ruleOrder }
