// Package unify implements first-order unification over the term model,
// the matching primitive behind fact lookup and rule resolution.
package unify

import (
	"github.com/hebuildapps/paykg/pkg/paykg/term"
)

// Unify attempts to make a and b structurally identical under an extension
// of sub. On success it returns the extended substitution and true; on any
// mismatch it returns nil and false. The inputs and sub are never mutated,
// so a failed attempt leaves the caller's state untouched.
func Unify(a, b *term.Term, sub term.Substitution) (term.Substitution, bool) {
	if sub == nil {
		sub = term.Substitution{}
	}
	a = sub.Walk(a)
	b = sub.Walk(b)

	if a.Kind == term.KindVariable {
		return bindVar(a, b, sub)
	}
	if b.Kind == term.KindVariable {
		return bindVar(b, a, sub)
	}

	switch a.Kind {
	case term.KindAtom:
		if b.Kind == term.KindAtom && a.Name == b.Name {
			return sub, true
		}
	case term.KindNumber:
		if b.Kind == term.KindNumber && a.Num.Cmp(b.Num) == 0 {
			return sub, true
		}
	case term.KindCompound:
		if b.Kind != term.KindCompound || a.Name != b.Name || len(a.Args) != len(b.Args) {
			return nil, false
		}
		for i := range a.Args {
			var ok bool
			sub, ok = Unify(a.Args[i], b.Args[i], sub)
			if !ok {
				return nil, false
			}
		}
		return sub, true
	}
	return nil, false
}

// bindVar binds v (already walked, unbound) to t after the occurs check.
// Binding a variable to itself is a no-op success.
func bindVar(v, t *term.Term, sub term.Substitution) (term.Substitution, bool) {
	if t.Kind == term.KindVariable && t.Name == v.Name {
		return sub, true
	}
	if occurs(v.Name, t, sub) {
		return nil, false
	}
	return sub.Bind(v.Name, t), true
}

// occurs reports whether the variable name appears anywhere inside t under
// the current substitution. Without this check a binding like ?x = (f ?x)
// would build a cyclic substitution.
func occurs(name string, t *term.Term, sub term.Substitution) bool {
	t = sub.Walk(t)
	switch t.Kind {
	case term.KindVariable:
		return t.Name == name
	case term.KindCompound:
		for _, a := range t.Args {
			if occurs(name, a, sub) {
				return true
			}
		}
	}
	return false
}
