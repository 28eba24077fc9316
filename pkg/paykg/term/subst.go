package term

// Substitution maps variable names to terms. It is treated as immutable:
// Bind returns an extended copy and never touches the receiver, so partial
// proofs can share a common prefix safely.
type Substitution map[string]*Term

// Lookup returns the binding for a variable name.
func (s Substitution) Lookup(name string) (*Term, bool) {
	t, ok := s[name]
	return t, ok
}

// Bind returns a new substitution with name bound to t.
func (s Substitution) Bind(name string, t *Term) Substitution {
	next := make(Substitution, len(s)+1)
	for k, v := range s {
		next[k] = v
	}
	next[name] = t
	return next
}

// Walk follows variable bindings until it reaches a non-variable term or an
// unbound variable. It does not descend into compound arguments.
func (s Substitution) Walk(t *Term) *Term {
	for t.Kind == KindVariable {
		bound, ok := s[t.Name]
		if !ok {
			return t
		}
		t = bound
	}
	return t
}

// Resolve applies the substitution throughout t, producing a term in which
// every bound variable has been replaced by its binding.
func (s Substitution) Resolve(t *Term) *Term {
	t = s.Walk(t)
	if t.Kind != KindCompound {
		return t
	}
	args := make([]*Term, len(t.Args))
	changed := false
	for i, a := range t.Args {
		args[i] = s.Resolve(a)
		if args[i] != a {
			changed = true
		}
	}
	if !changed {
		return t
	}
	return Compound(t.Name, args...)
}
