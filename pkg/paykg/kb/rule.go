package kb

import (
	"fmt"

	"github.com/hebuildapps/paykg/pkg/paykg/internalerr"
	"github.com/hebuildapps/paykg/pkg/paykg/term"
)

// Rule is a Horn-clause derivation: the head holds when every body literal
// holds, left to right.
type Rule struct {
	Head *term.Term
	Body []*term.Term
}

// RuleFromTerm interprets a parsed term as a rule. The wire form is
// (= head body...), and a single (and ...) body is flattened into its
// conjuncts so the original bootstrap rules read naturally.
func RuleFromTerm(t *term.Term) (Rule, bool) {
	if t.Kind != term.KindCompound || t.Name != "=" || len(t.Args) < 2 {
		return Rule{}, false
	}
	body := t.Args[1:]
	if len(body) == 1 && body[0].Kind == term.KindCompound && body[0].Name == "and" {
		body = body[0].Args
	}
	return Rule{Head: t.Args[0], Body: body}, true
}

// Term renders the rule back to its (= head body...) wire form.
func (r Rule) Term() *term.Term {
	args := make([]*term.Term, 0, len(r.Body)+1)
	args = append(args, r.Head)
	args = append(args, r.Body...)
	return term.Compound("=", args...)
}

// Validate enforces the safety condition: the head must be an atom or
// compound, and every head variable must be bound by the body.
func (r Rule) Validate() error {
	if r.Head == nil {
		return fmt.Errorf("%w: missing head", internalerr.ErrInvalidRule)
	}
	switch r.Head.Kind {
	case term.KindAtom, term.KindCompound:
	default:
		return fmt.Errorf("%w: head must be a predicate, got %s", internalerr.ErrInvalidRule, r.Head)
	}
	if len(r.Body) == 0 {
		return fmt.Errorf("%w: empty body (assert a fact instead)", internalerr.ErrInvalidRule)
	}

	var bodyVars []string
	for _, b := range r.Body {
		bodyVars = b.Vars(bodyVars)
	}
	for _, hv := range r.Head.Vars(nil) {
		found := false
		for _, bv := range bodyVars {
			if bv == hv {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: head variable ?%s not bound by body", internalerr.ErrInvalidRule, hv)
		}
	}
	return nil
}
