// Package ledger implements the completion ledger and the role cache.
//
// Both live in a machine-local SQLite file (modernc.org/sqlite, pure Go),
// deliberately disjoint from the primary Postgres store. The ledger is the
// single source of truth for a report's "completed" state: report rows in
// Postgres are never mutated, and operators marking a report completed append
// a snapshot here instead. There is no cross-machine sync; clearing the local
// file silently loses completion history.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rgoodwin/beacon/internal/domain"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// RoleCacheKeyPrefix is the fixed name under which roles are cached in
	// the kv table, one row per user ID.
	RoleCacheKeyPrefix = "beacon_user_role"
)

const schema = `
CREATE TABLE IF NOT EXISTS completion_entries (
    report_id TEXT PRIMARY KEY,
    report_json TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    completed_by TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kv_cache (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// =============================================================================
// Store
// =============================================================================

// Store is the handle to the local ledger file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the ledger file at path and ensures the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	// The ledger is written from request handlers and read by the triage
	// loader; a single connection sidesteps SQLITE_BUSY under modernc.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}

	logger.Info("completion ledger ready", "path", path)

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// Completion Ledger
// =============================================================================

// Add appends a completion entry. Inserting an entry whose report ID already
// exists is a no-op: the ledger keeps the first snapshot and completion time.
func (s *Store) Add(ctx context.Context, entry domain.CompletionEntry) error {
	const op = "ledger.Add"

	snapshot, err := json.Marshal(entry.Report)
	if err != nil {
		return domain.Internal(err, op, "Failed to snapshot report")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO completion_entries (report_id, report_json, completed_at, completed_by)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (report_id) DO NOTHING`,
		entry.Report.ID,
		string(snapshot),
		entry.CompletedAt.Format(time.RFC3339),
		entry.CompletedBy.String(),
	)
	if err != nil {
		return domain.Internal(err, op, "Failed to write completion entry")
	}

	s.logger.Debug("completion entry recorded", "report_id", entry.Report.ID)
	return nil
}

// Has reports whether an entry exists for the given report ID.
func (s *Store) Has(ctx context.Context, reportID string) (bool, error) {
	const op = "ledger.Has"

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM completion_entries WHERE report_id = ?`, reportID).Scan(&n)
	if err != nil {
		return false, domain.Internal(err, op, "Failed to check completion entry")
	}
	return n > 0, nil
}

// All returns every ledger entry, oldest first.
func (s *Store) All(ctx context.Context) ([]domain.CompletionEntry, error) {
	const op = "ledger.All"

	rows, err := s.db.QueryContext(ctx,
		`SELECT report_json, completed_at, completed_by
		 FROM completion_entries
		 ORDER BY completed_at ASC`)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to read ledger")
	}
	defer rows.Close()

	var entries []domain.CompletionEntry
	for rows.Next() {
		var (
			snapshot    string
			completedAt string
			completedBy string
		)
		if err := rows.Scan(&snapshot, &completedAt, &completedBy); err != nil {
			return nil, domain.Internal(err, op, "Failed to scan ledger entry")
		}

		var entry domain.CompletionEntry
		if err := json.Unmarshal([]byte(snapshot), &entry.Report); err != nil {
			return nil, domain.Internal(err, op, "Failed to decode report snapshot")
		}
		entry.CompletedAt, err = time.Parse(time.RFC3339, completedAt)
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to parse completion time")
		}
		entry.CompletedBy, err = uuid.Parse(completedBy)
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to parse operator ID")
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CompletedIDs returns the set of report IDs present in the ledger.
func (s *Store) CompletedIDs(ctx context.Context) (map[string]bool, error) {
	const op = "ledger.CompletedIDs"

	rows, err := s.db.QueryContext(ctx, `SELECT report_id FROM completion_entries`)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to read ledger IDs")
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.Internal(err, op, "Failed to scan ledger ID")
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// Size returns the number of ledger entries.
func (s *Store) Size(ctx context.Context) (int, error) {
	const op = "ledger.Size"

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM completion_entries`).Scan(&n)
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to count ledger entries")
	}
	return n, nil
}

// =============================================================================
// Role Cache
// =============================================================================

// SetRole caches a user's role. Called at login time; the role is decided
// from configuration, not from any server-issued claim.
func (s *Store) SetRole(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	const op = "ledger.SetRole"

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_cache (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		roleCacheKey(userID), string(role))
	if err != nil {
		return domain.Internal(err, op, "Failed to cache role")
	}
	return nil
}

// GetRole returns a user's cached role, or RoleRegular if none is cached.
func (s *Store) GetRole(ctx context.Context, userID uuid.UUID) (domain.Role, error) {
	const op = "ledger.GetRole"

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_cache WHERE key = ?`, roleCacheKey(userID)).Scan(&value)
	if err == sql.ErrNoRows {
		return domain.RoleRegular, nil
	}
	if err != nil {
		return domain.RoleRegular, domain.Internal(err, op, "Failed to read role cache")
	}

	role := domain.Role(value)
	if role != domain.RoleAdmin && role != domain.RoleRegular {
		return domain.RoleRegular, nil
	}
	return role, nil
}

func roleCacheKey(userID uuid.UUID) string {
	return RoleCacheKeyPrefix + ":" + userID.String()
}
