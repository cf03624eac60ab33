package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/rshade/ecojourney/internal/logging"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Migrations returns the activity schema. Each string is one statement.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS activities (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			id           TEXT NOT NULL UNIQUE,
			user_id      TEXT NOT NULL,
			kind         TEXT NOT NULL,
			occurred_at  TEXT NOT NULL,
			points       INTEGER NOT NULL DEFAULT 0,
			details      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_kind ON activities(kind)`,
	}
}

// SQLiteLog stores activities in a SQLite database.
type SQLiteLog struct {
	db  *sql.DB
	now func() time.Time
}

var _ Log = (*SQLiteLog)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies
// migrations. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteLog, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating activity db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening activity db: %w", err)
	}
	// One writer keeps SQLite free of SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	for _, stmt := range Migrations() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrating activity db: %w", err)
		}
	}
	logging.FromContext(ctx).Debug().
		Str("component", "activity").
		Str("path", path).
		Msg("activity database ready")
	return &SQLiteLog{db: db, now: time.Now}, nil
}

// Close closes the database.
func (l *SQLiteLog) Close() error { return l.db.Close() }

// Ping checks the database connection.
func (l *SQLiteLog) Ping(ctx context.Context) error { return l.db.PingContext(ctx) }

// Append implements Log.
func (l *SQLiteLog) Append(ctx context.Context, a Activity) (Activity, error) {
	if err := validate(a); err != nil {
		return Activity{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = l.now()
	}
	a.OccurredAt = a.OccurredAt.UTC()

	details, err := json.Marshal(a.Details)
	if err != nil {
		return Activity{}, fmt.Errorf("encoding activity details: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO activities (id, user_id, kind, occurred_at, points, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, string(a.Kind()), a.OccurredAt.Format(timeLayout), a.Points, string(details))
	if err != nil {
		return Activity{}, fmt.Errorf("inserting activity %s: %w", a.ID, err)
	}
	return a, nil
}

// Query implements Log.
func (l *SQLiteLog) Query(ctx context.Context, f Filter) ([]Activity, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if !f.Since.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if len(f.Kinds) > 0 {
		marks := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			marks[i] = "?"
			args = append(args, string(k))
		}
		where = append(where, "kind IN ("+strings.Join(marks, ", ")+")")
	}

	q := "SELECT id, user_id, kind, occurred_at, points, details FROM activities"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	out := make([]Activity, 0)
	for rows.Next() {
		var (
			a        Activity
			kind     string
			occurred string
			details  string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &kind, &occurred, &a.Points, &details); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		if a.OccurredAt, err = time.Parse(timeLayout, occurred); err != nil {
			return nil, fmt.Errorf("activity %s has bad timestamp %q: %w", a.ID, occurred, err)
		}
		if a.Details, err = DecodeDetails(Kind(kind), []byte(details)); err != nil {
			return nil, fmt.Errorf("activity %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activities: %w", err)
	}

	// Rows came newest first so LIMIT keeps the most recent.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
