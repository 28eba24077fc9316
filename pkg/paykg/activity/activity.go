// Package activity keeps the append-only record of payment attempts the
// safety detector reasons over. Records outside the retention window are
// pruned on append.
package activity

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/oklog/ulid/v2"
)

// DefaultRetention bounds how far back the log keeps records.
const DefaultRetention = 24 * time.Hour

// Outcome classifies a payment attempt.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
)

// Record is one timestamped payment attempt.
type Record struct {
	ID        string
	User      string
	Amount    *apd.Decimal
	Recipient string
	Outcome   Outcome
	At        time.Time
}

// Log is an in-memory, time-ordered activity log.
type Log struct {
	mu        sync.Mutex
	entropy   *ulid.MonotonicEntropy
	retention time.Duration
	records   []Record
	now       func() time.Time
}

// NewLog creates a log. Zero retention selects DefaultRetention.
func NewLog(retention time.Duration) *Log {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Log{
		entropy:   ulid.Monotonic(rand.Reader, 0),
		retention: retention,
		now:       time.Now,
	}
}

// Append records an attempt and returns it with a fresh ULID and timestamp.
func (l *Log) Append(user string, amount *apd.Decimal, recipient string, outcome Outcome) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec := Record{
		ID:        ulid.MustNew(ulid.Timestamp(now), l.entropy).String(),
		User:      user,
		Amount:    new(apd.Decimal).Set(amount),
		Recipient: recipient,
		Outcome:   outcome,
		At:        now,
	}
	l.records = append(l.records, rec)
	l.pruneLocked(now)
	return rec
}

// Restore reloads persisted records, oldest first, dropping any already
// outside the retention window.
func (l *Log) Restore(records []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records[:0], records...)
	l.pruneLocked(l.now())
}

func (l *Log) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.retention)
	keep := 0
	for keep < len(l.records) && l.records[keep].At.Before(cutoff) {
		keep++
	}
	if keep > 0 {
		l.records = append(l.records[:0], l.records[keep:]...)
	}
}

// CountByUser counts records for user with the given outcome inside the
// sliding window ending now.
func (l *Log) CountByUser(user string, outcome Outcome, window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-window)
	n := 0
	for _, rec := range l.records {
		if rec.User == user && rec.Outcome == outcome && !rec.At.Before(cutoff) {
			n++
		}
	}
	return n
}

// CountRepetition counts attempts by user to the identical recipient and
// amount inside the window, regardless of outcome. Used for duplicate-send
// protection.
func (l *Log) CountRepetition(user, recipient string, amount *apd.Decimal, window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-window)
	n := 0
	for _, rec := range l.records {
		if rec.User == user && rec.Recipient == recipient &&
			rec.Amount.Cmp(amount) == 0 && !rec.At.Before(cutoff) {
			n++
		}
	}
	return n
}

// Recent returns up to limit newest records, newest last.
func (l *Log) Recent(limit int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := 0
	if limit > 0 && len(l.records) > limit {
		start = len(l.records) - limit
	}
	out := make([]Record, len(l.records)-start)
	copy(out, l.records[start:])
	return out
}
