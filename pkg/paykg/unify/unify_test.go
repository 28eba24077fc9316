package unify

import (
	"testing"

	"github.com/hebuildapps/paykg/pkg/paykg/term"
)

func parse(t *testing.T, text string) *term.Term {
	t.Helper()
	parsed, err := term.Parse(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return parsed
}

func TestUnifyTable(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		ok   bool
	}{
		{"identical atoms", "alice", "alice", true},
		{"different atoms", "alice", "bob", false},
		{"equal numbers", "25.5", "25.50", true},
		{"different numbers", "25.5", "30", false},
		{"atom vs number", "alice", "1", false},
		{"variable binds atom", "?x", "alice", true},
		{"variable binds compound", "?x", "(balance alice 10)", true},
		{"compound positional", "(balance ?u 25.5)", "(balance alice 25.5)", true},
		{"functor mismatch", "(balance alice 10)", "(credit alice 10)", false},
		{"arity mismatch", "(p a)", "(p a b)", false},
		{"shared variable consistent", "(p ?x ?x)", "(p a a)", true},
		{"shared variable conflict", "(p ?x ?x)", "(p a b)", false},
		{"both sides variables", "(p ?x b)", "(p a ?y)", true},
		{"occurs check", "?x", "(f ?x)", false},
		{"nested occurs check", "(p ?x)", "(p (f (g ?x)))", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := Unify(parse(t, tc.a), parse(t, tc.b), nil)
			if ok != tc.ok {
				t.Fatalf("Unify(%s, %s) ok = %v, want %v", tc.a, tc.b, ok, tc.ok)
			}
		})
	}
}

func TestUnifyBindings(t *testing.T) {
	sub, ok := Unify(parse(t, "(balance ?u ?a)"), parse(t, "(balance alice 25.5)"), nil)
	if !ok {
		t.Fatal("expected unification to succeed")
	}
	if got := sub.Resolve(term.Var("u")); got.String() != "alice" {
		t.Errorf("?u = %s, want alice", got)
	}
	if got := sub.Resolve(term.Var("a")); got.String() != "25.5" {
		t.Errorf("?a = %s, want 25.5", got)
	}
}

func TestUnifyChasesExistingBindings(t *testing.T) {
	sub := term.Substitution{}.Bind("x", term.Atom("alice"))
	if _, ok := Unify(term.Var("x"), term.Atom("bob"), sub); ok {
		t.Fatal("bound variable must unify through its binding, not rebind")
	}
	if _, ok := Unify(term.Var("x"), term.Atom("alice"), sub); !ok {
		t.Fatal("bound variable should match its binding")
	}
}

func TestUnifyDoesNotMutateInput(t *testing.T) {
	sub := term.Substitution{}.Bind("x", term.Atom("alice"))
	before := len(sub)
	next, ok := Unify(term.Var("y"), term.Atom("bob"), sub)
	if !ok {
		t.Fatal("expected success")
	}
	if len(sub) != before {
		t.Fatal("input substitution was mutated")
	}
	if _, bound := next.Lookup("y"); !bound {
		t.Fatal("returned substitution missing new binding")
	}
}

func TestUnifyVariableAliasing(t *testing.T) {
	// ?x unified with ?y, then ?y with a value: ?x resolves through the
	// alias chain.
	sub, ok := Unify(term.Var("x"), term.Var("y"), nil)
	if !ok {
		t.Fatal("variable aliasing failed")
	}
	sub, ok = Unify(term.Var("y"), term.Atom("alice"), sub)
	if !ok {
		t.Fatal("binding aliased variable failed")
	}
	if got := sub.Resolve(term.Var("x")); got.String() != "alice" {
		t.Fatalf("?x = %s, want alice", got)
	}
}
