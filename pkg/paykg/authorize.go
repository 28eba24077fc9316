package paykg

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"github.com/hebuildapps/paykg/pkg/paykg/activity"
	"github.com/hebuildapps/paykg/pkg/paykg/internalerr"
	"github.com/hebuildapps/paykg/pkg/paykg/kb"
	"github.com/hebuildapps/paykg/pkg/paykg/store"
	"github.com/hebuildapps/paykg/pkg/paykg/term"
)

// Decision is the result of an authorization: never a bare boolean, always
// the reasons and the reasoning trace behind it. ID matches the activity
// record written for the attempt.
type Decision struct {
	ID      string
	Allow   bool
	Reasons []string
	Trace   []TraceStep
}

// TraceStep is one step of the reasoning trace.
type TraceStep struct {
	Step    int
	Action  string
	Query   string
	Outcome string
}

// AuthorizePayment runs the full gate for a proposed payment: the can-pay
// and payment-safe derivations, the suspicious-pattern rule, and the
// safety detector. Every failure denies; evaluator exhaustion and compute
// timeouts deny as inconclusive rather than allowing, so the gate never
// fails open. The attempt is recorded in the activity log either way.
func (g *Graph) AuthorizePayment(ctx context.Context, user, amount, recipient string) (Decision, error) {
	if user == "" || recipient == "" {
		return Decision{}, fmt.Errorf("%w: user and recipient are required", internalerr.ErrInvalidConfig)
	}
	amt, _, err := apd.NewFromString(amount)
	if err != nil {
		return Decision{}, &internalerr.ParseError{Input: amount, Msg: "malformed amount"}
	}

	snap := g.kb.Snapshot()
	d := Decision{Allow: true}
	userT, amountT, recipientT := term.Atom(user), term.Num(amt), term.Atom(recipient)

	steps := []struct {
		action   string
		goal     *term.Term
		reason   string
		mustHold bool
	}{
		{
			action:   "check-can-pay",
			goal:     term.Compound("can-pay", userT, amountT),
			reason:   fmt.Sprintf("cannot pay: (can-pay %s %s) not derivable", user, amountT),
			mustHold: true,
		},
		{
			action:   "check-payment-safe",
			goal:     term.Compound("payment-safe", userT, amountT, recipientT),
			reason:   fmt.Sprintf("(payment-safe %s %s %s) not derivable", user, amountT, recipient),
			mustHold: true,
		},
		{
			action:   "check-suspicious-pattern",
			goal:     term.Compound("suspicious-pattern", userT, amountT),
			reason:   fmt.Sprintf("suspicious pattern derived for %s", user),
			mustHold: false,
		},
	}
	for _, s := range steps {
		if err := g.authStep(ctx, snap, &d, s.action, s.goal, s.reason, s.mustHold); err != nil {
			return Decision{}, err
		}
	}

	verdict := g.detector.Evaluate(snap, user, amt, recipient)
	for _, c := range verdict.Checks {
		outcome := "pass"
		if !c.Pass {
			outcome = "fail: " + c.Reason
		}
		d.Trace = append(d.Trace, TraceStep{
			Step:    len(d.Trace) + 1,
			Action:  "safety-" + c.Name,
			Outcome: outcome,
		})
	}
	if !verdict.Allow {
		d.Allow = false
		d.Reasons = append(d.Reasons, verdict.Reasons...)
	}

	outcome := activity.OutcomeDenied
	if d.Allow {
		outcome = activity.OutcomeAllowed
	}
	rec := g.log.Append(user, amt, recipient, outcome)
	d.ID = rec.ID

	if g.persist != nil {
		if err := g.persist.AppendActivity(ctx, store.ActivityRow{
			ID:        rec.ID,
			User:      rec.User,
			Amount:    rec.Amount.String(),
			Recipient: rec.Recipient,
			Outcome:   string(rec.Outcome),
			At:        rec.At,
		}); err != nil {
			return d, err
		}
	}
	return d, nil
}

// authStep evaluates one ground goal and folds the outcome into the
// decision. mustHold marks goals whose absence denies; for flag goals like
// suspicious-pattern it is presence that denies. Recoverable evaluation
// errors deny as inconclusive; anything else is a fault and propagates.
func (g *Graph) authStep(ctx context.Context, snap *kb.Snapshot, d *Decision, action string, goal *term.Term, reason string, mustHold bool) error {
	results, err := g.eval.Solve(ctx, snap, goal)
	stepNo := len(d.Trace) + 1
	switch {
	case err != nil && inconclusive(err):
		d.Allow = false
		d.Reasons = append(d.Reasons, fmt.Sprintf("inconclusive: %v", err))
		d.Trace = append(d.Trace, TraceStep{Step: stepNo, Action: action, Query: goal.String(), Outcome: "inconclusive"})
	case err != nil:
		return err
	case (len(results) > 0) != mustHold:
		d.Allow = false
		d.Reasons = append(d.Reasons, reason)
		d.Trace = append(d.Trace, TraceStep{Step: stepNo, Action: action, Query: goal.String(), Outcome: "fail"})
	default:
		d.Trace = append(d.Trace, TraceStep{Step: stepNo, Action: action, Query: goal.String(), Outcome: "pass"})
	}
	return nil
}

// inconclusive reports whether an evaluation error means "cannot decide"
// rather than a fault.
func inconclusive(err error) bool {
	return errors.Is(err, internalerr.ErrDepthExceeded) ||
		errors.Is(err, internalerr.ErrComputeTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
