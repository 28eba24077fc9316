// Package paykg is the knowledge-graph reasoning engine behind the payment
// agent: a fact/rule store with unification-based query evaluation, a
// consistency-aware cache over derived facts, and the safety checks that
// gate payment authorization.
package paykg

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/hebuildapps/paykg/pkg/paykg/activity"
	"github.com/hebuildapps/paykg/pkg/paykg/cache"
	"github.com/hebuildapps/paykg/pkg/paykg/config"
	"github.com/hebuildapps/paykg/pkg/paykg/kb"
	"github.com/hebuildapps/paykg/pkg/paykg/safety"
	"github.com/hebuildapps/paykg/pkg/paykg/solver"
	"github.com/hebuildapps/paykg/pkg/paykg/store"
	"github.com/hebuildapps/paykg/pkg/paykg/term"
)

// Graph is the knowledge-graph API consumed by the payment and diagnostic
// endpoints. All methods are safe for concurrent use.
type Graph struct {
	kb        *kb.Store
	eval      *solver.Evaluator
	cache     *cache.Cache
	log       *activity.Log
	detector  *safety.Detector
	persist   store.Store // nil when running purely in memory
	retention time.Duration
}

// Options configures a Graph instance.
type Options struct {
	// Config supplies limits and thresholds; zero fields fall back to
	// config.Default().
	Config config.Config

	// Persist, when set, makes facts, rules and activity write-through to
	// durable storage and restores them at construction.
	Persist store.Store
}

// New creates a Graph, loads the bootstrap rule set and denylist, and
// restores persisted state.
func New(ctx context.Context, opts Options) (*Graph, error) {
	cfg := normalize(opts.Config)

	safetyCfg, err := cfg.SafetyConfig()
	if err != nil {
		return nil, err
	}

	kbStore := kb.New()
	log := activity.NewLog(time.Duration(cfg.Retention))
	g := &Graph{
		kb:        kbStore,
		eval:      solver.New(solver.Config{MaxDepth: cfg.MaxDepth}),
		cache:     cache.New(kbStore, cfg.CacheSize, time.Duration(cfg.CacheTTL)),
		log:       log,
		detector:  safety.New(safetyCfg, log),
		persist:   opts.Persist,
		retention: time.Duration(cfg.Retention),
	}

	if err := g.bootstrap(cfg); err != nil {
		return nil, err
	}
	if g.persist != nil {
		if err := g.restore(ctx); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func normalize(cfg config.Config) config.Config {
	def := config.Default()
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.Safety.MaxAmount == "" {
		cfg.Safety.MaxAmount = def.Safety.MaxAmount
	}
	if cfg.Safety.VelocityWindow <= 0 {
		cfg.Safety.VelocityWindow = def.Safety.VelocityWindow
	}
	if cfg.Safety.VelocityLimit <= 0 {
		cfg.Safety.VelocityLimit = def.Safety.VelocityLimit
	}
	if cfg.Safety.RepetitionWindow <= 0 {
		cfg.Safety.RepetitionWindow = def.Safety.RepetitionWindow
	}
	if cfg.Safety.RepetitionLimit <= 0 {
		cfg.Safety.RepetitionLimit = def.Safety.RepetitionLimit
	}
	return cfg
}

// bootstrap loads the configured rule set and denylist directly into the
// store. Bootstrap state is owned by config, so it is not written through
// to persistence.
func (g *Graph) bootstrap(cfg config.Config) error {
	rules, err := cfg.Rules()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	lines, err := config.SplitRules(rules)
	if err != nil {
		return err
	}
	for _, line := range lines {
		t, err := term.Parse(line.Text)
		if err != nil {
			return fmt.Errorf("rules line %d: %w", line.Num, err)
		}
		if rule, ok := kb.RuleFromTerm(t); ok {
			if _, err := g.kb.AssertRule(rule); err != nil {
				return fmt.Errorf("rules line %d: %w", line.Num, err)
			}
		} else if _, err := g.kb.AssertFact(t); err != nil {
			return fmt.Errorf("rules line %d: %w", line.Num, err)
		}
	}
	for _, name := range cfg.Denylist {
		if _, err := g.kb.AssertFact(term.Compound(safety.DenylistPredicate, term.Atom(name))); err != nil {
			return err
		}
	}
	return nil
}

// restore replays persisted facts, rules and recent activity.
func (g *Graph) restore(ctx context.Context) error {
	facts, err := g.persist.ListFacts(ctx)
	if err != nil {
		return err
	}
	for _, text := range facts {
		t, err := term.Parse(text)
		if err != nil {
			return fmt.Errorf("persisted fact %q: %w", text, err)
		}
		if _, err := g.kb.AssertFact(t); err != nil {
			return err
		}
	}

	rules, err := g.persist.ListRules(ctx)
	if err != nil {
		return err
	}
	for _, text := range rules {
		t, err := term.Parse(text)
		if err != nil {
			return fmt.Errorf("persisted rule %q: %w", text, err)
		}
		rule, ok := kb.RuleFromTerm(t)
		if !ok {
			return fmt.Errorf("persisted rule %q: not a rule", text)
		}
		if _, err := g.kb.AssertRule(rule); err != nil {
			return err
		}
	}

	cutoff := time.Now().Add(-g.retention)
	rows, err := g.persist.ListActivity(ctx, cutoff)
	if err != nil {
		return err
	}
	records := make([]activity.Record, 0, len(rows))
	for _, row := range rows {
		amount, _, err := apd.NewFromString(row.Amount)
		if err != nil {
			return fmt.Errorf("persisted activity %s: %w", row.ID, err)
		}
		records = append(records, activity.Record{
			ID:        row.ID,
			User:      row.User,
			Amount:    amount,
			Recipient: row.Recipient,
			Outcome:   activity.Outcome(row.Outcome),
			At:        row.At,
		})
	}
	g.log.Restore(records)
	return g.persist.PruneActivity(ctx, cutoff)
}

// Close releases the persistence handle.
func (g *Graph) Close() error {
	if g.persist != nil {
		return g.persist.Close()
	}
	return nil
}

// Assert parses term text and adds it to the store: (= head body...) is a
// rule, anything else a ground fact. It reports whether the store changed.
func (g *Graph) Assert(ctx context.Context, text string) (bool, error) {
	t, err := term.Parse(text)
	if err != nil {
		return false, err
	}
	if rule, ok := kb.RuleFromTerm(t); ok {
		added, err := g.kb.AssertRule(rule)
		if err != nil || !added {
			return added, err
		}
		if g.persist != nil {
			if err := g.persist.AppendRule(ctx, rule.Term().String()); err != nil {
				return true, err
			}
		}
		return true, nil
	}

	added, err := g.kb.AssertFact(t)
	if err != nil || !added {
		return added, err
	}
	if g.persist != nil {
		if err := g.persist.AppendFact(ctx, t.String()); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Retract parses term text and removes the matching fact or rule. Removing
// something absent reports false without error.
func (g *Graph) Retract(ctx context.Context, text string) (bool, error) {
	t, err := term.Parse(text)
	if err != nil {
		return false, err
	}
	if rule, ok := kb.RuleFromTerm(t); ok {
		removed := g.kb.RetractRule(rule)
		if removed && g.persist != nil {
			if err := g.persist.DeleteRule(ctx, rule.Term().String()); err != nil {
				return true, err
			}
		}
		return removed, nil
	}

	removed := g.kb.RetractFact(t)
	if removed && g.persist != nil {
		if err := g.persist.DeleteFact(ctx, t.String()); err != nil {
			return true, err
		}
	}
	return removed, nil
}

// Binding maps a query variable name to the text of the term it resolved
// to.
type Binding map[string]string

// Query evaluates term text against the current snapshot and returns one
// Binding per solution. A ground query yields at most one empty binding.
func (g *Graph) Query(ctx context.Context, text string) ([]Binding, error) {
	t, err := term.Parse(text)
	if err != nil {
		return nil, err
	}
	subs, err := g.eval.Solve(ctx, g.kb.Snapshot(), t)
	if err != nil {
		return nil, err
	}
	out := make([]Binding, len(subs))
	for i, sub := range subs {
		b := make(Binding, len(sub))
		for name, bound := range sub {
			b[name] = bound.String()
		}
		out[i] = b
	}
	return out, nil
}

// ListFacts returns every fact's wire text in insertion order, from one
// consistent snapshot.
func (g *Graph) ListFacts() []string {
	snap := g.kb.Snapshot()
	facts := snap.Facts()
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.String()
	}
	return out
}

// ListRules returns every rule's wire text in insertion order.
func (g *Graph) ListRules() []string {
	snap := g.kb.Snapshot()
	rules := snap.Rules()
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Term().String()
	}
	return out
}

// Cached memoizes an external derivation, e.g. an ENS resolution or a
// balance fetch, as the fact (predicate args... value). See the cache
// package for the invalidation contract.
func (g *Graph) Cached(ctx context.Context, predicate string, args []*term.Term, compute cache.ComputeFunc) (*term.Term, error) {
	return g.cache.LookupOrCompute(ctx, predicate, args, compute)
}

// CacheStats exposes cache counters for diagnostics.
func (g *Graph) CacheStats() cache.Stats {
	return g.cache.Stats()
}

// RecentActivity returns up to limit newest activity records.
func (g *Graph) RecentActivity(limit int) []activity.Record {
	return g.log.Recent(limit)
}
