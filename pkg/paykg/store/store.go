// Package store defines the persistence interface behind the knowledge
// graph: facts, rules and activity records survive restarts through an
// implementation of Store. The in-memory engine remains authoritative;
// persistence is write-through.
package store

import (
	"context"
	"time"
)

// Store persists the durable pieces of the knowledge graph.
type Store interface {
	Close() error

	// Facts and rules are stored as their canonical wire text, in
	// insertion order.
	AppendFact(ctx context.Context, text string) error
	DeleteFact(ctx context.Context, text string) error
	ListFacts(ctx context.Context) ([]string, error)

	AppendRule(ctx context.Context, text string) error
	DeleteRule(ctx context.Context, text string) error
	ListRules(ctx context.Context) ([]string, error)

	// Activity
	AppendActivity(ctx context.Context, rec ActivityRow) error
	ListActivity(ctx context.Context, since time.Time) ([]ActivityRow, error)
	PruneActivity(ctx context.Context, before time.Time) error
}

// ActivityRow is a persisted payment attempt. Amount is decimal text so no
// precision is lost in storage.
type ActivityRow struct {
	ID        string
	User      string
	Amount    string
	Recipient string
	Outcome   string
	At        time.Time
}
