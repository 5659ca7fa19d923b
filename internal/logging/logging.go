// Package logging provides the structured log sink for review activity.
//
// A Logger is constructed explicitly and passed to the components that need
// it; there is no package-level singleton. Records go to a console writer
// and, when a database path is configured, to a SQLite table that the
// `logs` commands query.
package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Level classifies a log record.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Entry is one persisted log record.
type Entry struct {
	ID       int64          `json:"id"`
	Time     time.Time      `json:"time"`
	Level    Level          `json:"level"`
	Event    string         `json:"event"`
	ReviewID string         `json:"review_id,omitempty"`
	Message  string         `json:"message"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Logger writes records to a console writer and optionally to SQLite.
type Logger struct {
	console io.Writer
	db      *sql.DB
}

// NewConsole creates a Logger that writes to w only. A nil w means stderr.
func NewConsole(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{console: w}
}

// Open creates a Logger writing to w (stderr when nil) and to a SQLite
// database at dbPath, creating the file and schema as needed.
func Open(w io.Writer, dbPath string) (*Logger, error) {
	l := NewConsole(w)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open log database: %w", err)
	}

	// Single connection serializes writers through the pool; WAL keeps
	// concurrent readers from blocking on them.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME NOT NULL,
		level TEXT NOT NULL,
		event TEXT NOT NULL,
		review_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		fields TEXT NOT NULL DEFAULT '{}'
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create logs table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_logs_review ON logs(review_id)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create logs index: %w", err)
	}

	l.db = db
	return l, nil
}

// Close releases the database handle. Safe on console-only loggers.
func (l *Logger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Logger) log(level Level, event, reviewID, message string, fields map[string]any) {
	now := time.Now().UTC()

	line := fmt.Sprintf("%s [%s] %s", now.Format("2006-01-02 15:04:05"), level, event)
	if reviewID != "" {
		line += " review=" + reviewID
	}
	if message != "" {
		line += " " + message
	}
	fmt.Fprintln(l.console, line)

	if l.db == nil {
		return
	}
	encoded := "{}"
	if len(fields) > 0 {
		if b, err := json.Marshal(fields); err == nil {
			encoded = string(b)
		}
	}
	// A failed insert must not fail the review; the console line survives.
	_, _ = l.db.Exec(
		`INSERT INTO logs (ts, level, event, review_id, message, fields) VALUES (?, ?, ?, ?, ?, ?)`,
		now.Format(time.RFC3339Nano), string(level), event, reviewID, message, encoded,
	)
}

// Debug records a debug-level event.
func (l *Logger) Debug(event, reviewID, message string, fields map[string]any) {
	l.log(LevelDebug, event, reviewID, message, fields)
}

// Info records an info-level event.
func (l *Logger) Info(event, reviewID, message string, fields map[string]any) {
	l.log(LevelInfo, event, reviewID, message, fields)
}

// Warn records a warning-level event.
func (l *Logger) Warn(event, reviewID, message string, fields map[string]any) {
	l.log(LevelWarn, event, reviewID, message, fields)
}

// Error records an error-level event.
func (l *Logger) Error(event, reviewID, message string, fields map[string]any) {
	l.log(LevelError, event, reviewID, message, fields)
}

// QueryOptions filters a log query. Zero values mean no filter; Limit <= 0
// defaults to 100.
type QueryOptions struct {
	ReviewID string
	Level    Level
	Limit    int
}

// Query returns matching records, newest first.
func (l *Logger) Query(opts QueryOptions) ([]Entry, error) {
	if l.db == nil {
		return nil, fmt.Errorf("log database not configured")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, ts, level, event, review_id, message, fields FROM logs WHERE 1=1`
	args := []any{}
	if opts.ReviewID != "" {
		query += ` AND review_id = ?`
		args = append(args, opts.ReviewID)
	}
	if opts.Level != "" {
		query += ` AND level = ?`
		args = append(args, string(opts.Level))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts, level, fields string
		if err := rows.Scan(&e.ID, &ts, &level, &e.Event, &e.ReviewID, &e.Message, &fields); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		e.Level = Level(level)
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Time = parsed
		}
		if fields != "" && fields != "{}" {
			_ = json.Unmarshal([]byte(fields), &e.Fields)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats summarizes the log table.
type Stats struct {
	Total   int            `json:"total"`
	ByLevel map[string]int `json:"by_level"`
	ByEvent map[string]int `json:"by_event"`
}

// QueryStats aggregates record counts by level and event.
func (l *Logger) QueryStats() (*Stats, error) {
	if l.db == nil {
		return nil, fmt.Errorf("log database not configured")
	}
	stats := &Stats{
		ByLevel: map[string]int{},
		ByEvent: map[string]int{},
	}

	if err := l.db.QueryRow(`SELECT COUNT(*) FROM logs`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count logs: %w", err)
	}

	for column, dest := range map[string]map[string]int{
		"level": stats.ByLevel,
		"event": stats.ByEvent,
	} {
		rows, err := l.db.Query(fmt.Sprintf(`SELECT %s, COUNT(*) FROM logs GROUP BY %s`, column, column))
		if err != nil {
			return nil, fmt.Errorf("aggregate logs by %s: %w", column, err)
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan log aggregate: %w", err)
			}
			dest[key] = n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return stats, nil
}
