package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hebuildapps/paykg/pkg/paykg/store"
)

// timeLayout is fixed-width so stored timestamps compare correctly as
// strings in WHERE clauses.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// Open opens a SQLite database with WAL mode enabled and initializes the
// schema.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS facts (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS rules (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS activity (
	id TEXT PRIMARY KEY,
	user TEXT NOT NULL,
	amount TEXT NOT NULL,
	recipient TEXT NOT NULL,
	outcome TEXT NOT NULL,
	at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activity_at ON activity(at);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// AppendFact stores a fact's canonical text. Re-appending an existing fact
// is a no-op so write-through stays idempotent with the in-memory dedup.
func (s *sqliteStore) AppendFact(ctx context.Context, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (text) VALUES (?) ON CONFLICT(text) DO NOTHING`, text)
	return err
}

// DeleteFact removes a fact by canonical text.
func (s *sqliteStore) DeleteFact(ctx context.Context, text string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE text = ?`, text)
	return err
}

// ListFacts returns fact texts in insertion order.
func (s *sqliteStore) ListFacts(ctx context.Context) ([]string, error) {
	return s.listTexts(ctx, `SELECT text FROM facts ORDER BY seq`)
}

// AppendRule stores a rule's canonical text.
func (s *sqliteStore) AppendRule(ctx context.Context, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rules (text) VALUES (?) ON CONFLICT(text) DO NOTHING`, text)
	return err
}

// DeleteRule removes a rule by canonical text.
func (s *sqliteStore) DeleteRule(ctx context.Context, text string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE text = ?`, text)
	return err
}

// ListRules returns rule texts in insertion order.
func (s *sqliteStore) ListRules(ctx context.Context) ([]string, error) {
	return s.listTexts(ctx, `SELECT text FROM rules ORDER BY seq`)
}

func (s *sqliteStore) listTexts(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// AppendActivity stores one activity record.
func (s *sqliteStore) AppendActivity(ctx context.Context, rec store.ActivityRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (id, user, amount, recipient, outcome, at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.User, rec.Amount, rec.Recipient, rec.Outcome,
		rec.At.UTC().Format(timeLayout))
	return err
}

// ListActivity returns records at or after since, oldest first.
func (s *sqliteStore) ListActivity(ctx context.Context, since time.Time) ([]store.ActivityRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user, amount, recipient, outcome, at FROM activity WHERE at >= ? ORDER BY at`,
		since.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ActivityRow
	for rows.Next() {
		var rec store.ActivityRow
		var at string
		if err := rows.Scan(&rec.ID, &rec.User, &rec.Amount, &rec.Recipient, &rec.Outcome, &at); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, at)
		if err != nil {
			return nil, err
		}
		rec.At = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneActivity removes records older than before.
func (s *sqliteStore) PruneActivity(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM activity WHERE at < ?`,
		before.UTC().Format(timeLayout))
	return err
}
