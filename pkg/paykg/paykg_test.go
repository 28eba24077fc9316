package paykg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hebuildapps/paykg/pkg/paykg/config"
	"github.com/hebuildapps/paykg/pkg/paykg/internalerr"
	"github.com/hebuildapps/paykg/pkg/paykg/store/memstore"
	"github.com/hebuildapps/paykg/pkg/paykg/term"
)

func newGraph(t *testing.T, opts Options) *Graph {
	t.Helper()
	g, err := New(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func assertTerm(t *testing.T, g *Graph, text string) {
	t.Helper()
	if _, err := g.Assert(context.Background(), text); err != nil {
		t.Fatalf("assert %q: %v", text, err)
	}
}

func TestAssertThenQuery(t *testing.T) {
	g := newGraph(t, Options{})
	ctx := context.Background()

	added, err := g.Assert(ctx, "(balance user123 25.5)")
	if err != nil || !added {
		t.Fatalf("assert: added=%v err=%v", added, err)
	}

	results, err := g.Query(ctx, "(balance user123 25.5)")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || len(results[0]) != 0 {
		t.Fatalf("ground query = %v, want one empty binding", results)
	}

	// Idempotence: re-assert leaves the fact count unchanged.
	before := len(g.ListFacts())
	added, err = g.Assert(ctx, "(balance user123 25.5)")
	if err != nil {
		t.Fatal(err)
	}
	if added || len(g.ListFacts()) != before {
		t.Fatal("re-assert changed the store")
	}
}

func TestRetractThenQuery(t *testing.T) {
	g := newGraph(t, Options{})
	ctx := context.Background()

	assertTerm(t, g, "(balance user123 25.5)")
	removed, err := g.Retract(ctx, "(balance user123 25.5)")
	if err != nil || !removed {
		t.Fatalf("retract: removed=%v err=%v", removed, err)
	}

	results, err := g.Query(ctx, "(balance user123 25.5)")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatal("retracted fact still derivable")
	}

	removed, err = g.Retract(ctx, "(balance user123 25.5)")
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Fatal("retracting an absent fact should report false without error")
	}
}

func TestCanPayDerivation(t *testing.T) {
	g := newGraph(t, Options{})
	ctx := context.Background()

	assertTerm(t, g, "(balance user123 25.5)")

	results, err := g.Query(ctx, "(can-pay user123 20)")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatal("(can-pay user123 20) should succeed against the bootstrap rule")
	}

	results, err = g.Query(ctx, "(can-pay user123 30)")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatal("(can-pay user123 30) should fail")
	}
}

func TestQueryBindings(t *testing.T) {
	g := newGraph(t, Options{})
	ctx := context.Background()

	assertTerm(t, g, "(ens-address vitalik.eth 0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045)")
	results, err := g.Query(ctx, "(ens-address vitalik.eth ?addr)")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %v", results)
	}
	if results[0]["addr"] != "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045" {
		t.Fatalf("?addr = %q", results[0]["addr"])
	}
}

func TestUnsafeRuleRejected(t *testing.T) {
	g := newGraph(t, Options{})
	_, err := g.Assert(context.Background(), "(= (reward ?u ?prize) (balance ?u ?b))")
	if !errors.Is(err, internalerr.ErrInvalidRule) {
		t.Fatalf("error = %v, want ErrInvalidRule", err)
	}
}

func TestParseErrorSurfaced(t *testing.T) {
	g := newGraph(t, Options{})
	var parseErr *internalerr.ParseError
	if _, err := g.Assert(context.Background(), "(balance user123"); !errors.As(err, &parseErr) {
		t.Fatalf("assert error = %v, want ParseError", err)
	}
	if _, err := g.Query(context.Background(), "(((("); !errors.As(err, &parseErr) {
		t.Fatalf("query error = %v, want ParseError", err)
	}
}

func TestListRoundTrip(t *testing.T) {
	g := newGraph(t, Options{})
	ctx := context.Background()

	assertTerm(t, g, "(balance user123 25.5)")
	assertTerm(t, g, `(note "multi word note")`)

	for _, text := range append(g.ListFacts(), g.ListRules()...) {
		reparsed, err := term.Parse(text)
		if err != nil {
			t.Fatalf("listed term %q does not re-parse: %v", text, err)
		}
		if reparsed.String() != text {
			t.Fatalf("round trip changed %q to %q", text, reparsed.String())
		}
		// Re-asserting the listed form must be a no-op.
		added, err := g.Assert(ctx, text)
		if err != nil {
			t.Fatalf("re-assert %q: %v", text, err)
		}
		if added {
			t.Fatalf("listed term %q was not already present", text)
		}
	}
}

func TestCacheConsistency(t *testing.T) {
	g := newGraph(t, Options{})
	ctx := context.Background()

	calls := 0
	lookup := func() string {
		value, err := g.Cached(ctx, "balance", []*term.Term{term.Atom("user123")}, func(ctx context.Context) (*term.Term, error) {
			calls++
			return term.MustNumber("25.5"), nil
		})
		if err != nil {
			t.Fatal(err)
		}
		return value.String()
	}

	if got := lookup(); got != "25.5" {
		t.Fatalf("value = %s", got)
	}
	if got := lookup(); got != "25.5" {
		t.Fatalf("value = %s", got)
	}
	if calls != 1 {
		t.Fatalf("compute ran %d times within TTL, want 1", calls)
	}

	// The derived fact is queryable like any other.
	results, err := g.Query(ctx, "(balance user123 ?b)")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0]["b"] != "25.5" {
		t.Fatalf("derived fact query = %v", results)
	}

	// Retract and re-assert with a new value: the next lookup recomputes.
	if _, err := g.Retract(ctx, "(balance user123 25.5)"); err != nil {
		t.Fatal(err)
	}
	assertTerm(t, g, "(balance user123 40)")
	if _, err := g.Cached(ctx, "balance", []*term.Term{term.Atom("user123")}, func(ctx context.Context) (*term.Term, error) {
		calls++
		return term.MustNumber("40"), nil
	}); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("compute ran %d times after invalidation, want 2", calls)
	}
}

func TestAuthorizeAllowed(t *testing.T) {
	g := newGraph(t, Options{})
	assertTerm(t, g, "(balance user123 500)")

	d, err := g.AuthorizePayment(context.Background(), "user123", "100", "vitalik.eth")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allow {
		t.Fatalf("clean payment denied: %v", d.Reasons)
	}
	if d.ID == "" {
		t.Fatal("decision missing id")
	}
	if len(d.Trace) == 0 {
		t.Fatal("decision missing reasoning trace")
	}
}

func TestAuthorizeAmountCeiling(t *testing.T) {
	g := newGraph(t, Options{})
	assertTerm(t, g, "(balance user123 50000)")

	d, err := g.AuthorizePayment(context.Background(), "user123", "15000", "vitalik.eth")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allow {
		t.Fatal("payment above the ceiling allowed")
	}
	found := false
	for _, r := range d.Reasons {
		if strings.Contains(r, "exceeds maximum 10000") {
			found = true
		}
	}
	if !found {
		t.Fatalf("reasons %v do not cite the amount ceiling", d.Reasons)
	}
}

func TestAuthorizeVelocity(t *testing.T) {
	g := newGraph(t, Options{})
	assertTerm(t, g, "(balance user123 10000)")
	ctx := context.Background()

	// Amounts vary so the duplicate-send check stays quiet.
	for i := 0; i < 5; i++ {
		amount := fmt.Sprintf("%d", 100+i)
		d, err := g.AuthorizePayment(ctx, "user123", amount, "vitalik.eth")
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allow {
			t.Fatalf("payment %d denied: %v", i+1, d.Reasons)
		}
	}

	d, err := g.AuthorizePayment(ctx, "user123", "250", "vitalik.eth")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allow {
		t.Fatal("sixth payment within the window allowed")
	}
	found := false
	for _, r := range d.Reasons {
		if strings.Contains(r, "velocity") {
			found = true
		}
	}
	if !found {
		t.Fatalf("reasons %v do not cite velocity", d.Reasons)
	}
}

func TestPartialSafetyConfigKeepsCustomLimits(t *testing.T) {
	// Setting one threshold programmatically must not reset the others,
	// and the unset ceiling still falls back to the default.
	var cfg config.Config
	cfg.Safety.VelocityLimit = 2
	g := newGraph(t, Options{Config: cfg})
	assertTerm(t, g, "(balance user123 10000)")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := g.AuthorizePayment(ctx, "user123", fmt.Sprintf("%d", 100+i), "vitalik.eth")
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allow {
			t.Fatalf("payment %d denied: %v", i+1, d.Reasons)
		}
	}
	d, err := g.AuthorizePayment(ctx, "user123", "300", "vitalik.eth")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allow {
		t.Fatal("third payment allowed despite a velocity limit of 2")
	}

	assertTerm(t, g, "(balance other 20000)")
	d, err = g.AuthorizePayment(ctx, "other", "15000", "vitalik.eth")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allow {
		t.Fatal("default ceiling lost when another safety field was set")
	}
	found := false
	for _, r := range d.Reasons {
		if strings.Contains(r, "exceeds maximum 10000") {
			found = true
		}
	}
	if !found {
		t.Fatalf("reasons %v do not cite the default ceiling", d.Reasons)
	}
}

func TestAuthorizeInsufficientBalance(t *testing.T) {
	g := newGraph(t, Options{})
	assertTerm(t, g, "(balance user123 50)")

	d, err := g.AuthorizePayment(context.Background(), "user123", "100", "vitalik.eth")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allow {
		t.Fatal("payment above balance allowed")
	}
}

func TestAuthorizeDenylist(t *testing.T) {
	cfg := config.Default()
	cfg.Denylist = []string{"scammer.eth"}
	g := newGraph(t, Options{Config: cfg})
	assertTerm(t, g, "(balance user123 500)")

	d, err := g.AuthorizePayment(context.Background(), "user123", "100", "scammer.eth")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allow {
		t.Fatal("denylisted recipient allowed")
	}
}

func TestAuthorizeSuspiciousPattern(t *testing.T) {
	g := newGraph(t, Options{})
	assertTerm(t, g, "(balance newbie 5000)")
	assertTerm(t, g, "(user-age-days newbie 0)")

	d, err := g.AuthorizePayment(context.Background(), "newbie", "2000", "vitalik.eth")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allow {
		t.Fatal("large payment from a brand-new user allowed")
	}

	// An established user making the same payment is fine.
	assertTerm(t, g, "(balance veteran 5000)")
	assertTerm(t, g, "(user-age-days veteran 400)")
	d, err = g.AuthorizePayment(context.Background(), "veteran", "2000", "vitalik.eth")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allow {
		t.Fatalf("established user denied: %v", d.Reasons)
	}
}

func TestAuthorizeFailsClosedOnDepth(t *testing.T) {
	cfg := config.Default()
	cfg.MaxDepth = 8
	g := newGraph(t, Options{Config: cfg})
	assertTerm(t, g, "(balance user123 500)")
	// A cyclic derivation for can-pay makes the check inconclusive.
	assertTerm(t, g, "(= (can-pay ?u ?a) (can-pay ?a ?u))")

	d, err := g.AuthorizePayment(context.Background(), "user123", "999999", "vitalik.eth")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allow {
		t.Fatal("inconclusive evaluation must deny")
	}
	found := false
	for _, r := range d.Reasons {
		if strings.Contains(r, "inconclusive") {
			found = true
		}
	}
	if !found {
		t.Fatalf("reasons %v do not mark the result inconclusive", d.Reasons)
	}
}

func TestCyclicQueryReportsDepthExceeded(t *testing.T) {
	cfg := config.Default()
	cfg.MaxDepth = 16
	g := newGraph(t, Options{Config: cfg})
	assertTerm(t, g, "(= (trusts ?a ?b) (trusts ?b ?a))")

	_, err := g.Query(context.Background(), "(trusts alice bob)")
	if !errors.Is(err, internalerr.ErrDepthExceeded) {
		t.Fatalf("error = %v, want ErrDepthExceeded", err)
	}
}

func TestPersistenceRestore(t *testing.T) {
	persist := memstore.New()
	ctx := context.Background()

	g := newGraph(t, Options{Persist: persist})
	assertTerm(t, g, "(balance user123 500)")
	assertTerm(t, g, "(= (vip ?u) (>= (balance ?u) 400))")
	if _, err := g.AuthorizePayment(ctx, "user123", "100", "vitalik.eth"); err != nil {
		t.Fatal(err)
	}

	// A second graph over the same store sees the asserted state.
	g2 := newGraph(t, Options{Persist: persist})
	results, err := g2.Query(ctx, "(vip user123)")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatal("persisted fact and rule not restored")
	}
	if len(g2.RecentActivity(0)) != 1 {
		t.Fatal("persisted activity not restored")
	}
}
