package activity

import (
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
)

func dec(t *testing.T, text string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(text)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestAppendAssignsIDsAndTimestamps(t *testing.T) {
	l := NewLog(time.Hour)
	a := l.Append("user123", dec(t, "100"), "vitalik.eth", OutcomeAllowed)
	b := l.Append("user123", dec(t, "100"), "vitalik.eth", OutcomeDenied)

	if a.ID == "" || b.ID == "" {
		t.Fatal("records must carry ids")
	}
	if a.ID >= b.ID {
		t.Fatalf("ulids must be monotonic: %s then %s", a.ID, b.ID)
	}
	if a.At.IsZero() {
		t.Fatal("record timestamp missing")
	}
}

func TestCountByUserWindow(t *testing.T) {
	l := NewLog(24 * time.Hour)
	now := time.Now()
	clock := now
	l.now = func() time.Time { return clock }

	// Three allowed payments spread over 90 minutes.
	for _, back := range []time.Duration{80 * time.Minute, 30 * time.Minute, time.Minute} {
		clock = now.Add(-back)
		l.Append("user123", dec(t, "100"), "vitalik.eth", OutcomeAllowed)
	}
	clock = now
	l.Append("other", dec(t, "100"), "vitalik.eth", OutcomeAllowed)
	l.Append("user123", dec(t, "100"), "vitalik.eth", OutcomeDenied)

	if n := l.CountByUser("user123", OutcomeAllowed, time.Hour); n != 2 {
		t.Fatalf("count = %d, want 2 (only allowed, only in window, only this user)", n)
	}
	if n := l.CountByUser("user123", OutcomeAllowed, 2*time.Hour); n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
}

func TestCountRepetition(t *testing.T) {
	l := NewLog(time.Hour)
	for i := 0; i < 3; i++ {
		l.Append("user123", dec(t, "50"), "bob.eth", OutcomeAllowed)
	}
	l.Append("user123", dec(t, "51"), "bob.eth", OutcomeAllowed)
	l.Append("user123", dec(t, "50"), "carol.eth", OutcomeAllowed)

	if n := l.CountRepetition("user123", "bob.eth", dec(t, "50.0"), 10*time.Minute); n != 3 {
		t.Fatalf("repetition count = %d, want 3 (amount compared by value)", n)
	}
}

func TestRetentionPruning(t *testing.T) {
	l := NewLog(time.Hour)
	now := time.Now()
	clock := now.Add(-2 * time.Hour)
	l.now = func() time.Time { return clock }

	l.Append("user123", dec(t, "1"), "a.eth", OutcomeAllowed)
	clock = now
	l.Append("user123", dec(t, "2"), "b.eth", OutcomeAllowed)

	recent := l.Recent(0)
	if len(recent) != 1 {
		t.Fatalf("records = %d, want 1 after pruning", len(recent))
	}
	if recent[0].Recipient != "b.eth" {
		t.Fatal("pruning removed the wrong record")
	}
}

func TestRestoreDropsExpired(t *testing.T) {
	l := NewLog(time.Hour)
	l.Restore([]Record{
		{ID: "old", User: "u", Amount: dec(t, "1"), Recipient: "a.eth", Outcome: OutcomeAllowed, At: time.Now().Add(-2 * time.Hour)},
		{ID: "new", User: "u", Amount: dec(t, "2"), Recipient: "b.eth", Outcome: OutcomeAllowed, At: time.Now()},
	})
	recent := l.Recent(0)
	if len(recent) != 1 || recent[0].ID != "new" {
		t.Fatalf("restore kept %v, want only the fresh record", recent)
	}
}

func TestRecentLimit(t *testing.T) {
	l := NewLog(time.Hour)
	for i := 0; i < 5; i++ {
		l.Append("user123", dec(t, "1"), "a.eth", OutcomeAllowed)
	}
	if got := l.Recent(2); len(got) != 2 {
		t.Fatalf("Recent(2) = %d records, want 2", len(got))
	}
	if got := l.Recent(0); len(got) != 5 {
		t.Fatalf("Recent(0) = %d records, want all 5", len(got))
	}
}
