// Package safety evaluates the fixed pattern checks that gate payment
// authorization: amount ceiling, velocity, repetition and recipient
// denylist. The rule set is fixed at construction; runtime facts only feed
// it, they cannot extend it.
package safety

import (
	"fmt"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/hebuildapps/paykg/pkg/paykg/activity"
	"github.com/hebuildapps/paykg/pkg/paykg/kb"
	"github.com/hebuildapps/paykg/pkg/paykg/term"
)

// DenylistPredicate is the fact predicate consulted by the reputation
// check, e.g. (denylisted scammer.eth).
const DenylistPredicate = "denylisted"

// Config holds the detector thresholds.
type Config struct {
	MaxAmount        *apd.Decimal  // ceiling per payment
	VelocityWindow   time.Duration // sliding window for the velocity check
	VelocityLimit    int           // allowed payments per user per window
	RepetitionWindow time.Duration // window for duplicate-send detection
	RepetitionLimit  int           // identical recipient+amount attempts allowed
}

// DefaultConfig mirrors the agent's production limits: 10,000 USDC ceiling,
// five payments per hour, three identical attempts per ten minutes.
func DefaultConfig() Config {
	max, _, _ := apd.NewFromString("10000")
	return Config{
		MaxAmount:        max,
		VelocityWindow:   time.Hour,
		VelocityLimit:    5,
		RepetitionWindow: 10 * time.Minute,
		RepetitionLimit:  3,
	}
}

// Check is one named verdict with its reason. Reason is set only when the
// check fails.
type Check struct {
	Name   string
	Pass   bool
	Reason string
}

// Verdict is the combined result. Allow is the AND of all checks; Reasons
// collects every failing check's reason so a denial is always explainable.
type Verdict struct {
	Allow   bool
	Checks  []Check
	Reasons []string
}

// Detector runs the pattern checks over the activity log and a store
// snapshot.
type Detector struct {
	cfg Config
	log *activity.Log
}

// New creates a detector.
func New(cfg Config, log *activity.Log) *Detector {
	def := DefaultConfig()
	if cfg.MaxAmount == nil {
		cfg.MaxAmount = def.MaxAmount
	}
	if cfg.VelocityWindow <= 0 {
		cfg.VelocityWindow = def.VelocityWindow
	}
	if cfg.VelocityLimit <= 0 {
		cfg.VelocityLimit = def.VelocityLimit
	}
	if cfg.RepetitionWindow <= 0 {
		cfg.RepetitionWindow = def.RepetitionWindow
	}
	if cfg.RepetitionLimit <= 0 {
		cfg.RepetitionLimit = def.RepetitionLimit
	}
	return &Detector{cfg: cfg, log: log}
}

// Evaluate runs every check for a proposed payment. The snapshot supplies
// denylist facts; the activity log supplies history.
func (d *Detector) Evaluate(snap *kb.Snapshot, user string, amount *apd.Decimal, recipient string) Verdict {
	checks := []Check{
		d.checkCeiling(amount),
		d.checkVelocity(user),
		d.checkRepetition(user, recipient, amount),
		d.checkDenylist(snap, recipient),
	}

	v := Verdict{Allow: true, Checks: checks}
	for _, c := range checks {
		if !c.Pass {
			v.Allow = false
			v.Reasons = append(v.Reasons, c.Reason)
		}
	}
	return v
}

func (d *Detector) checkCeiling(amount *apd.Decimal) Check {
	c := Check{Name: "amount-ceiling", Pass: true}
	if amount.Cmp(d.cfg.MaxAmount) > 0 {
		c.Pass = false
		c.Reason = fmt.Sprintf("amount %s exceeds maximum %s", amount, d.cfg.MaxAmount)
	}
	return c
}

func (d *Detector) checkVelocity(user string) Check {
	c := Check{Name: "velocity", Pass: true}
	n := d.log.CountByUser(user, activity.OutcomeAllowed, d.cfg.VelocityWindow)
	if n >= d.cfg.VelocityLimit {
		c.Pass = false
		c.Reason = fmt.Sprintf("velocity limit reached: %d payments within %s (limit %d)",
			n, d.cfg.VelocityWindow, d.cfg.VelocityLimit)
	}
	return c
}

func (d *Detector) checkRepetition(user, recipient string, amount *apd.Decimal) Check {
	c := Check{Name: "repetition", Pass: true}
	n := d.log.CountRepetition(user, recipient, amount, d.cfg.RepetitionWindow)
	if n > d.cfg.RepetitionLimit {
		c.Pass = false
		c.Reason = fmt.Sprintf("possible duplicate send: %d identical attempts to %s within %s",
			n, recipient, d.cfg.RepetitionWindow)
	}
	return c
}

func (d *Detector) checkDenylist(snap *kb.Snapshot, recipient string) Check {
	c := Check{Name: "recipient-reputation", Pass: true}
	target := term.Atom(recipient)
	for _, fact := range snap.Candidates(DenylistPredicate, 1) {
		if fact.Args[0].Equal(target) {
			c.Pass = false
			c.Reason = fmt.Sprintf("recipient %s is denylisted", recipient)
			break
		}
	}
	return c
}
