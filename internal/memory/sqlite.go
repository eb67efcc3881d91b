package memory

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	// SQLite driver (required for database/sql registration).
	_ "github.com/mattn/go-sqlite3"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/pkg/protocol"
)

// SQLiteStore persists turns in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path, creating the file and schema
// if they don't exist.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreUnavailable,
				"create conversation store directory", errors.CategorySystem)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable,
			"open conversation store", errors.CategorySystem)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(err, errors.CodeStoreUnavailable,
				"configure conversation store", errors.CategorySystem)
		}
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS turns (
		id         TEXT PRIMARY KEY,
		caller_id  TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_caller ON turns(caller_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable,
			"initialize conversation schema", errors.CategorySystem)
	}
	return ensureSchemaVersion(s.db, 1, "Initial conversation schema")
}

func ensureSchemaVersion(db *sql.DB, version int, description string) error {
	var current sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&current); err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable,
			"read schema version", errors.CategorySystem)
	}

	if !current.Valid || int(current.Int64) < version {
		_, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			version,
			description,
		)
		if err != nil {
			return errors.Wrap(err, errors.CodeStoreUnavailable,
				"record schema version", errors.CategorySystem)
		}
	}
	return nil
}

// GetContext returns the caller's most recent turns, oldest first.
func (s *SQLiteStore) GetContext(ctx context.Context, callerID string, limit int) ([]protocol.Turn, error) {
	if limit <= 0 {
		limit = defaultContextTurns
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM turns
		WHERE caller_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, callerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreRetrieveFailed,
			"load conversation context", errors.CategoryTemporary)
	}
	defer rows.Close()

	var turns []protocol.Turn
	for rows.Next() {
		var turn protocol.Turn
		var createdMs int64
		if err := rows.Scan(&turn.Role, &turn.Content, &createdMs); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreRetrieveFailed,
				"scan conversation turn", errors.CategoryTemporary)
		}
		turn.CreatedAt = time.UnixMilli(createdMs)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreRetrieveFailed,
			"iterate conversation turns", errors.CategoryTemporary)
	}

	// The query returns newest first so LIMIT keeps the right rows.
	slices.Reverse(turns)
	return turns, nil
}

// Append records one turn for the caller.
func (s *SQLiteStore) Append(ctx context.Context, callerID string, turn protocol.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, caller_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), callerID, turn.Role, turn.Content, turn.CreatedAt.UnixMilli())
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreAppendFailed,
			"append conversation turn", errors.CategoryTemporary)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
