// Package term defines the symbolic term model shared by facts, rules and
// queries: atoms, decimal numbers, variables and compound expressions, plus
// the textual s-expression form used on the wire.
package term

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Kind discriminates the term variants.
type Kind uint8

const (
	KindAtom Kind = iota
	KindNumber
	KindVariable
	KindCompound
)

// Term is an immutable symbolic expression. Exactly one of the payload
// fields is meaningful, selected by Kind: Name for atoms and variables,
// Name+Args for compounds, Num for numbers. Callers must not mutate a Term
// after construction.
type Term struct {
	Kind Kind
	Name string       // atom name, variable name, or compound functor
	Num  *apd.Decimal // KindNumber only
	Args []*Term      // KindCompound only
}

// Atom returns an atom term.
func Atom(name string) *Term {
	return &Term{Kind: KindAtom, Name: name}
}

// Var returns a variable term. The name excludes the leading '?'.
func Var(name string) *Term {
	return &Term{Kind: KindVariable, Name: name}
}

// Number returns a numeric term from decimal text, e.g. "25.5".
func Number(text string) (*Term, error) {
	d, _, err := apd.NewFromString(text)
	if err != nil {
		return nil, err
	}
	return Num(d), nil
}

// MustNumber is Number for literals known to be valid.
func MustNumber(text string) *Term {
	t, err := Number(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Num wraps a decimal as a numeric term. The decimal is reduced so that
// equal values share one printed form (25.50 and 25.5 are the same term).
func Num(d *apd.Decimal) *Term {
	r := new(apd.Decimal).Set(d)
	r.Reduce(r)
	return &Term{Kind: KindNumber, Num: r}
}

// Compound returns a compound term with the given functor and arguments.
func Compound(functor string, args ...*Term) *Term {
	return &Term{Kind: KindCompound, Name: functor, Args: args}
}

// Functor returns the predicate name and arity used for store indexing.
// Atoms are zero-arity predicates.
func (t *Term) Functor() (string, int) {
	if t.Kind == KindCompound {
		return t.Name, len(t.Args)
	}
	return t.Name, 0
}

// IsGround reports whether the term contains no variables.
func (t *Term) IsGround() bool {
	switch t.Kind {
	case KindVariable:
		return false
	case KindCompound:
		for _, a := range t.Args {
			if !a.IsGround() {
				return false
			}
		}
	}
	return true
}

// Vars appends the names of all variables in t to dst, in first-occurrence
// order, skipping names already present.
func (t *Term) Vars(dst []string) []string {
	switch t.Kind {
	case KindVariable:
		for _, n := range dst {
			if n == t.Name {
				return dst
			}
		}
		return append(dst, t.Name)
	case KindCompound:
		for _, a := range t.Args {
			dst = a.Vars(dst)
		}
	}
	return dst
}

// Equal reports structural equality. Numbers compare by value.
func (t *Term) Equal(o *Term) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindAtom, KindVariable:
		return t.Name == o.Name
	case KindNumber:
		return t.Num.Cmp(o.Num) == 0
	case KindCompound:
		if t.Name != o.Name || len(t.Args) != len(o.Args) {
			return false
		}
		for i := range t.Args {
			if !t.Args[i].Equal(o.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the canonical wire form. Parsing the result yields a
// structurally identical term.
func (t *Term) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Term) write(b *strings.Builder) {
	switch t.Kind {
	case KindAtom:
		writeAtom(b, t.Name)
	case KindNumber:
		b.WriteString(t.Num.Text('f'))
	case KindVariable:
		b.WriteByte('?')
		b.WriteString(t.Name)
	case KindCompound:
		b.WriteByte('(')
		writeAtom(b, t.Name)
		for _, a := range t.Args {
			b.WriteByte(' ')
			a.write(b)
		}
		b.WriteByte(')')
	}
}

// writeAtom quotes atoms that would not survive re-tokenizing bare, which
// includes names that would re-parse as numbers.
func writeAtom(b *strings.Builder, name string) {
	if name != "" && !strings.ContainsAny(name, " \t\n()\"?") && !looksNumeric(name) {
		b.WriteString(name)
		return
	}
	b.WriteByte('"')
	for _, r := range name {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
}
