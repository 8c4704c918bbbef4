// Package journal persists committed render passes to SQLite. Each pass's
// mutation script is stored as canonical JSON, so the journal doubles as a
// deterministic replay log: applying the scripts of a root in order
// rebuilds the surface state the engine produced.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loomkit/loom/internal/dom"
	"github.com/loomkit/loom/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on (root_id, seq) for per-root listing
const currentSchemaVersion = 1

// Journal is a durable commit log backed by SQLite. It implements the
// engine's commit sink contract.
type Journal struct {
	db *sql.DB
}

// Open creates or opens a journal database at the given path. Applies
// required pragmas and migrations automatically; safe to call repeatedly
// on the same file.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if _, err := db.Exec(
			"CREATE INDEX IF NOT EXISTS idx_passes_root_seq ON passes(root_id, seq)",
		); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Append inserts a committed pass record. Uses ON CONFLICT(pass_token)
// DO NOTHING for idempotency: re-appending a pass after a crash-retry is
// silently ignored.
//
// The script is serialized to canonical JSON per RFC 8785 so replay and
// golden comparisons are byte-stable.
func (j *Journal) Append(ctx context.Context, rec engine.CommitRecord) error {
	script, err := dom.MarshalCanonical(engine.ScriptValue(rec.Script))
	if err != nil {
		return fmt.Errorf("append pass %s: encode script: %w", rec.PassToken, err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO passes (pass_token, root_id, lane, seq, script)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pass_token) DO NOTHING
	`,
		rec.PassToken,
		rec.RootID,
		int(rec.Lane),
		rec.Seq,
		string(script),
	)
	if err != nil {
		return fmt.Errorf("append pass %s: %w", rec.PassToken, err)
	}
	return nil
}

// List returns every committed pass of a root in commit order:
// ORDER BY seq ASC, pass_token COLLATE BINARY ASC.
//
// Returns an empty slice, not nil, when the root has no passes.
func (j *Journal) List(ctx context.Context, rootID int64) ([]engine.CommitRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT pass_token, root_id, lane, seq, script
		FROM passes
		WHERE root_id = ?
		ORDER BY seq ASC, pass_token COLLATE BINARY ASC
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListAll returns every committed pass across all roots in commit order.
func (j *Journal) ListAll(ctx context.Context) ([]engine.CommitRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT pass_token, root_id, lane, seq, script
		FROM passes
		ORDER BY seq ASC, pass_token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// LastSeq returns the highest recorded seq, or 0 for an empty journal.
// Engines resuming over a journaled surface position their clock past it.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM passes").Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanRecords(rows *sql.Rows) ([]engine.CommitRecord, error) {
	records := []engine.CommitRecord{}
	for rows.Next() {
		var (
			rec    engine.CommitRecord
			lane   int
			script string
		)
		if err := rows.Scan(&rec.PassToken, &rec.RootID, &lane, &rec.Seq, &script); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		rec.Lane = engine.Lane(lane)

		v, err := dom.UnmarshalCanonical([]byte(script))
		if err != nil {
			return nil, fmt.Errorf("decode pass %s script: %w", rec.PassToken, err)
		}
		rec.Script, err = engine.DecodeScript(v)
		if err != nil {
			return nil, fmt.Errorf("decode pass %s script: %w", rec.PassToken, err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return records, nil
}
