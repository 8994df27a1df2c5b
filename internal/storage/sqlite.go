package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is the durable backend. Timestamps are stored as UTC RFC 3339
// strings, so lexicographic range comparisons match chronological order.
type SQLiteStore struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
}

// OpenSQLite opens (or creates) the database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests). A retention of 0 falls back to 30 days.
func OpenSQLite(dataDir string, retention time.Duration) (*SQLiteStore, error) {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "nudge.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLiteStore{db: db, retention: retention, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *SQLiteStore) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *SQLiteStore) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Events ---

func (s *SQLiteStore) AddEvent(ctx context.Context, userID string, ev Event) error {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.Meta == nil {
		ev.Meta = map[string]string{}
	}
	meta, err := json.Marshal(ev.Meta)
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}

	// OR IGNORE turns a duplicate (user_id, event_id) into a silent no-op.
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events (user_id, event_id, timestamp, type, meta)
		VALUES (?, ?, ?, ?, ?)`,
		userID, ev.EventID, ev.Timestamp.UTC().Format(time.RFC3339), ev.Type, string(meta),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Events(ctx context.Context, userID string, since *time.Time) ([]Event, error) {
	query := `SELECT user_id, event_id, timestamp, type, meta FROM events WHERE user_id = ?`
	args := []any{userID}
	if since != nil {
		query += ` AND timestamp >= ?`
		args = append(args, since.UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var ts, meta string
		if err := rows.Scan(&ev.UserID, &ev.EventID, &ts, &ev.Type, &meta); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp for event %s: %w", ev.EventID, err)
		}
		ev.Timestamp = t
		if err := json.Unmarshal([]byte(meta), &ev.Meta); err != nil {
			ev.Meta = map[string]string{}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// --- Actions ---

func (s *SQLiteStore) AddAction(ctx context.Context, userID string, rec ActionRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (user_id, suggestion_id, suggestion_title, suggestion_severity, action, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, rec.SuggestionID, rec.SuggestionTitle, rec.SuggestionSeverity,
		rec.Action, rec.Details, ts.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting action: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Actions(ctx context.Context, userID string) ([]ActionRecord, error) {
	return s.queryActions(ctx, `
		SELECT user_id, suggestion_id, suggestion_title, suggestion_severity, action, details, timestamp
		FROM actions WHERE user_id = ? ORDER BY id ASC`, userID)
}

func (s *SQLiteStore) AllActions(ctx context.Context) ([]ActionRecord, error) {
	return s.queryActions(ctx, `
		SELECT user_id, suggestion_id, suggestion_title, suggestion_severity, action, details, timestamp
		FROM actions ORDER BY id ASC`)
}

func (s *SQLiteStore) queryActions(ctx context.Context, query string, args ...any) ([]ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var rec ActionRecord
		var ts string
		if err := rows.Scan(&rec.UserID, &rec.SuggestionID, &rec.SuggestionTitle,
			&rec.SuggestionSeverity, &rec.Action, &rec.Details, &ts); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.Timestamp = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Retention ---

// Prune deletes events and audit records older than the retention window.
func (s *SQLiteStore) Prune(ctx context.Context) (PruneStats, error) {
	cutoff := s.now().UTC().Add(-s.retention).Format(time.RFC3339)

	var stats PruneStats
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return stats, fmt.Errorf("pruning events: %w", err)
	}
	stats.Events, _ = res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `DELETE FROM actions WHERE timestamp < ?`, cutoff)
	if err != nil {
		return stats, fmt.Errorf("pruning actions: %w", err)
	}
	stats.Actions, _ = res.RowsAffected()

	return stats, nil
}
