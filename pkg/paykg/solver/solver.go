// Package solver answers queries against a knowledge-store snapshot by
// backward chaining: a goal is matched against facts first, then derived
// through rule bodies, depth-first and left to right.
package solver

import (
	"context"
	"errors"
	"fmt"

	"github.com/hebuildapps/paykg/pkg/paykg/internalerr"
	"github.com/hebuildapps/paykg/pkg/paykg/kb"
	"github.com/hebuildapps/paykg/pkg/paykg/term"
	"github.com/hebuildapps/paykg/pkg/paykg/unify"
)

// DefaultMaxDepth bounds rule recursion. Trust-chain style rule sets are
// legitimately recursive, so the bound is generous; hitting it is reported
// as inconclusive, never as plain failure.
const DefaultMaxDepth = 64

// Config tunes one evaluator.
type Config struct {
	// MaxDepth is the rule-recursion bound. Zero means DefaultMaxDepth.
	MaxDepth int
}

// Evaluator resolves queries. It is stateless between calls and safe for
// concurrent use; all per-query state lives in the run struct.
type Evaluator struct {
	maxDepth int
}

// New creates an evaluator.
func New(cfg Config) *Evaluator {
	d := cfg.MaxDepth
	if d <= 0 {
		d = DefaultMaxDepth
	}
	return &Evaluator{maxDepth: d}
}

// errStop is the internal signal used to cut enumeration short once a
// ground query has its single answer.
var errStop = errors.New("stop enumeration")

// Solve returns every substitution satisfying the query, restricted to the
// query's own variables, in deterministic order (facts before rules, each
// in store-insertion order). A ground query yields at most one empty
// substitution. Depth exhaustion returns ErrDepthExceeded and cancellation
// returns the context error; neither is ever folded into "no results".
func (e *Evaluator) Solve(ctx context.Context, snap *kb.Snapshot, query *term.Term) ([]term.Substitution, error) {
	qvars := query.Vars(nil)
	ground := len(qvars) == 0

	var results []term.Substitution
	r := &run{
		ctx:      ctx,
		snap:     snap,
		maxDepth: e.maxDepth,
		visited:  make(map[string]struct{}),
	}
	err := r.solve([]*term.Term{query}, term.Substitution{}, 0, func(sub term.Substitution) error {
		out := make(term.Substitution, len(qvars))
		for _, v := range qvars {
			out[v] = sub.Resolve(term.Var(v))
		}
		results = append(results, out)
		if ground {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return results, nil
}

// run carries the state of a single evaluation.
type run struct {
	ctx      context.Context
	snap     *kb.Snapshot
	maxDepth int
	visited  map[string]struct{} // "depth goal" keys on the current branch
	renameID int
}

// solve proves the conjunction of goals under sub, invoking yield for every
// complete proof.
func (r *run) solve(goals []*term.Term, sub term.Substitution, depth int, yield func(term.Substitution) error) error {
	if len(goals) == 0 {
		return yield(sub)
	}
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if depth > r.maxDepth {
		return fmt.Errorf("%w: depth %d", internalerr.ErrDepthExceeded, depth)
	}

	goal, rest := sub.Resolve(goals[0]), goals[1:]

	// Conjunction literals expand in place at the same depth.
	if goal.Kind == term.KindCompound && goal.Name == "and" {
		expanded := append(append([]*term.Term{}, goal.Args...), rest...)
		return r.solve(expanded, sub, depth, yield)
	}

	if isBuiltin(goal) {
		holds, err := r.evalBuiltin(goal, sub, depth)
		if err != nil {
			return err
		}
		if !holds {
			return nil
		}
		return r.solve(rest, sub, depth, yield)
	}

	// Re-entering the identical goal at the identical depth on this branch
	// can only loop; abandon the branch. Deeper re-entry is allowed and
	// runs into the depth bound instead.
	key := fmt.Sprintf("%d %s", depth, goal)
	if _, looping := r.visited[key]; looping {
		return nil
	}
	r.visited[key] = struct{}{}
	defer delete(r.visited, key)

	name, arity := goal.Functor()

	// Facts first: each acts as a rule with an empty body.
	for _, fact := range r.snap.Candidates(name, arity) {
		if next, ok := unify.Unify(goal, fact, sub); ok {
			if err := r.solve(rest, next, depth, yield); err != nil {
				return err
			}
		}
	}

	// Then rules, bodies proven left to right one level deeper.
	for _, rule := range r.snap.RulesFor(name) {
		renamed := r.rename(rule)
		next, ok := unify.Unify(goal, renamed.Head, sub)
		if !ok {
			continue
		}
		err := r.solve(renamed.Body, next, depth+1, func(bodySub term.Substitution) error {
			return r.solve(rest, bodySub, depth, yield)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// rename gives a rule fresh variable names for this resolution step so its
// variables cannot collide with bindings already in flight.
func (r *run) rename(rule kb.Rule) kb.Rule {
	r.renameID++
	mapping := make(map[string]string)
	out := kb.Rule{Head: r.renameTerm(rule.Head, mapping)}
	out.Body = make([]*term.Term, len(rule.Body))
	for i, b := range rule.Body {
		out.Body[i] = r.renameTerm(b, mapping)
	}
	return out
}

func (r *run) renameTerm(t *term.Term, mapping map[string]string) *term.Term {
	switch t.Kind {
	case term.KindVariable:
		fresh, ok := mapping[t.Name]
		if !ok {
			fresh = fmt.Sprintf("%s#%d", t.Name, r.renameID)
			mapping[t.Name] = fresh
		}
		return term.Var(fresh)
	case term.KindCompound:
		args := make([]*term.Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = r.renameTerm(a, mapping)
		}
		return term.Compound(t.Name, args...)
	default:
		return t
	}
}
