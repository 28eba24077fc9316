package solver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/hebuildapps/paykg/pkg/paykg/term"
)

// Comparison literals are evaluated directly rather than resolved against
// the store. They are decidable only over bound operands: an unbound
// operand fails the branch, it never guesses.
var builtinNames = map[string]bool{
	">=":        true,
	"<=":        true,
	">":         true,
	"<":         true,
	"=":         true,
	"!=":        true,
	"ends-with": true,
}

func isBuiltin(t *term.Term) bool {
	return t.Kind == term.KindCompound && len(t.Args) == 2 && builtinNames[t.Name]
}

// evalBuiltin decides a comparison goal. The returned bool is whether the
// goal holds; errors are reserved for depth/cancellation bubbling out of
// operand evaluation.
func (r *run) evalBuiltin(goal *term.Term, sub term.Substitution, depth int) (bool, error) {
	if goal.Name == "ends-with" {
		a := sub.Walk(goal.Args[0])
		suffix := sub.Walk(goal.Args[1])
		if a.Kind != term.KindAtom || suffix.Kind != term.KindAtom {
			return false, nil
		}
		return strings.HasSuffix(a.Name, suffix.Name), nil
	}

	left, ok, err := r.evalNumeric(goal.Args[0], sub, depth)
	if err != nil || !ok {
		return false, err
	}
	right, ok, err := r.evalNumeric(goal.Args[1], sub, depth)
	if err != nil || !ok {
		return false, err
	}

	cmp := left.Cmp(right)
	switch goal.Name {
	case ">=":
		return cmp >= 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case "<":
		return cmp < 0, nil
	case "=":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	}
	return false, nil
}

// evalNumeric reduces an operand to a decimal. Numbers evaluate to
// themselves. A compound (f a1 .. an) is read in functional notation: it is
// proven as the relation (f a1 .. an ?v) with one extra value argument, and
// the first derived ?v is taken — so (balance ?u) inside a comparison reads
// the (balance user amount) fact. Unbound variables and atoms do not
// evaluate.
func (r *run) evalNumeric(t *term.Term, sub term.Substitution, depth int) (*apd.Decimal, bool, error) {
	t = sub.Resolve(t)
	switch t.Kind {
	case term.KindNumber:
		return t.Num, true, nil
	case term.KindCompound:
		r.renameID++
		v := term.Var(fmt.Sprintf("value#%d", r.renameID))
		goal := term.Compound(t.Name, append(append([]*term.Term{}, t.Args...), v)...)

		var value *apd.Decimal
		err := r.solve([]*term.Term{goal}, sub, depth+1, func(s term.Substitution) error {
			got := s.Resolve(v)
			if got.Kind == term.KindNumber {
				value = got.Num
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			return nil, false, err
		}
		if value == nil {
			return nil, false, nil
		}
		return value, true, nil
	default:
		return nil, false, nil
	}
}
