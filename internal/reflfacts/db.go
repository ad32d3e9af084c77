package reflfacts

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS facts (
	kind   TEXT NOT NULL,
	target TEXT NOT NULL,
	seq    INTEGER NOT NULL,
	PRIMARY KEY (kind, target)
)`,
	`CREATE INDEX IF NOT EXISTS idx_facts_seq ON facts(seq)`,
}

// DB is a reflection-facts database. Facts merged from several logs keep
// the order in which they were first imported.
type DB struct {
	db *sql.DB
}

// OpenDB opens (creating if needed) the facts database at path.
func OpenDB(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, ddl := range schema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating facts schema in %s: %w", path, err)
		}
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// Import merges facts into the database and returns how many were new.
func (d *DB) Import(ctx context.Context, facts *Facts) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM facts`).Scan(&next); err != nil {
		return 0, fmt.Errorf("reading sequence: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO facts (kind, target, seq) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, kind := range Kinds {
		for _, target := range facts.List(kind) {
			next++
			res, err := stmt.ExecContext(ctx, string(kind), target, next)
			if err != nil {
				return 0, fmt.Errorf("inserting %s %s: %w", kind, target, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return added, nil
}

// Facts reads every stored fact.
func (d *DB) Facts(ctx context.Context) (*Facts, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT kind, target FROM facts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	facts := NewFacts()
	for rows.Next() {
		var kind, target string
		if err := rows.Scan(&kind, &target); err != nil {
			return nil, err
		}
		if err := facts.Add(Kind(kind), target); err != nil {
			return nil, fmt.Errorf("stored fact: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return facts, nil
}

// Counts returns the number of stored facts per kind.
func (d *DB) Counts(ctx context.Context) (map[Kind]int, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM facts GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("counting facts: %w", err)
	}
	defer rows.Close()
	out := make(map[Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[Kind(kind)] = n
	}
	return out, rows.Err()
}
