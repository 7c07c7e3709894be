// Package store keeps a SQLite ledger of processed calls and blocked records.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/SamuelRCrider/callbridge/utils"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// ErrNotFound is returned when a conversation has not been processed
var ErrNotFound = errors.New("call not found")

// Ledger wraps the SQLite connection
type Ledger struct {
	db     *sql.DB
	logger zerolog.Logger
}

// CallEntry is a row of processed_calls
type CallEntry struct {
	ConversationID string    `json:"conversation_id"`
	EventID        string    `json:"event_id"`
	CallerName     string    `json:"caller_name"`
	Outcome        string    `json:"outcome"`
	CreatedAt      time.Time `json:"created_at"`
}

// SecurityEvent is a row of security_events
type SecurityEvent struct {
	ID             int64                 `json:"id"`
	ConversationID string                `json:"conversation_id"`
	Field          string                `json:"field"`
	Message        string                `json:"message"`
	Findings       []utils.ThreatFinding `json:"findings"`
	CreatedAt      time.Time             `json:"created_at"`
}

// Open connects to the database at path, creating its directory and the
// schema when missing.
func Open(path string, logger zerolog.Logger) (*Ledger, error) {
	logger = logger.With().Str("component", "ledger").Logger()
	logger.Info().Str("db_path", path).Msg("Opening call ledger")

	if path != MemoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", path, err)
	}
	// sqlite allows one writer; a single connection also keeps :memory: shared
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, logger: logger}
	if err := l.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// InitSchema creates the ledger tables if they don't exist.
func (l *Ledger) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS processed_calls (
		conversation_id TEXT PRIMARY KEY,
		event_id TEXT,
		caller_name TEXT,
		outcome TEXT,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS security_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT,
		field TEXT NOT NULL,
		message TEXT NOT NULL,
		findings TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_security_events_created ON security_events(created_at);
	`
	if _, err := l.db.ExecContext(ctx, query); err != nil {
		l.logger.Error().Err(err).Msg("Failed to initialize schema")
		return err
	}
	return nil
}

// LookupCall returns the entry for conversationID or ErrNotFound.
func (l *Ledger) LookupCall(ctx context.Context, conversationID string) (*CallEntry, error) {
	query := `SELECT conversation_id, event_id, caller_name, outcome, created_at FROM processed_calls WHERE conversation_id = ?`

	var (
		entry   CallEntry
		eventID sql.NullString
		name    sql.NullString
		outcome sql.NullString
		created string
	)
	err := l.db.QueryRowContext(ctx, query, conversationID).Scan(&entry.ConversationID, &eventID, &name, &outcome, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up call %s: %w", conversationID, err)
	}

	entry.EventID = eventID.String
	entry.CallerName = name.String
	entry.Outcome = outcome.String
	entry.CreatedAt = parseTime(created)
	return &entry, nil
}

// ClaimCall reserves conversationID before it is delivered. It reports
// false when the conversation is already claimed or recorded. A claimed row
// has no event ID until RecordCall completes it.
func (l *Ledger) ClaimCall(ctx context.Context, conversationID string) (bool, error) {
	if strings.TrimSpace(conversationID) == "" {
		return false, errors.New("conversation id is required")
	}

	query := `INSERT INTO processed_calls (conversation_id, created_at) VALUES (?, ?) ON CONFLICT(conversation_id) DO NOTHING`
	res, err := l.db.ExecContext(ctx, query, conversationID, formatTime(time.Now()))
	if err != nil {
		return false, fmt.Errorf("failed to claim call %s: %w", conversationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	l.logger.Debug().Str("conversation_id", conversationID).Bool("claimed", n > 0).Msg("Claimed call")
	return n > 0, nil
}

// ReleaseCall drops a claim that was never completed so the conversation
// can be delivered again. Recorded calls are left alone.
func (l *Ledger) ReleaseCall(ctx context.Context, conversationID string) error {
	query := `DELETE FROM processed_calls WHERE conversation_id = ? AND event_id IS NULL`
	if _, err := l.db.ExecContext(ctx, query, conversationID); err != nil {
		return fmt.Errorf("failed to release call %s: %w", conversationID, err)
	}
	return nil
}

// RecordCall stores entry, completing a pending claim. It reports false when
// the conversation was already recorded, leaving the existing row untouched.
func (l *Ledger) RecordCall(ctx context.Context, entry CallEntry) (bool, error) {
	if strings.TrimSpace(entry.ConversationID) == "" {
		return false, errors.New("conversation id is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `INSERT INTO processed_calls (conversation_id, event_id, caller_name, outcome, created_at) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(conversation_id) DO UPDATE SET
		event_id = excluded.event_id,
		caller_name = excluded.caller_name,
		outcome = excluded.outcome,
		created_at = excluded.created_at
	WHERE processed_calls.event_id IS NULL`
	res, err := l.db.ExecContext(ctx, query,
		entry.ConversationID,
		nullString(entry.EventID),
		nullString(entry.CallerName),
		nullString(entry.Outcome),
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record call %s: %w", entry.ConversationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	l.logger.Debug().Str("conversation_id", entry.ConversationID).Bool("inserted", n > 0).Msg("Recorded call")
	return n > 0, nil
}

// RecordSecurityEvent stores a blocked record and returns its row ID.
func (l *Ledger) RecordSecurityEvent(ctx context.Context, event SecurityEvent) (int64, error) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	findings, err := json.Marshal(event.Findings)
	if err != nil {
		return 0, fmt.Errorf("failed to encode findings: %w", err)
	}

	query := `INSERT INTO security_events (conversation_id, field, message, findings, created_at) VALUES (?, ?, ?, ?, ?)`
	res, err := l.db.ExecContext(ctx, query,
		nullString(event.ConversationID),
		event.Field,
		event.Message,
		string(findings),
		formatTime(event.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record security event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	l.logger.Info().Int64("event_id", id).Str("field", event.Field).Msg("Recorded security event")
	return id, nil
}

// RecentSecurityEvents returns up to limit events, newest first.
func (l *Ledger) RecentSecurityEvents(ctx context.Context, limit int) ([]SecurityEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, conversation_id, field, message, findings, created_at FROM security_events ORDER BY id DESC LIMIT ?`
	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	var events []SecurityEvent
	for rows.Next() {
		var (
			ev       SecurityEvent
			convID   sql.NullString
			findings sql.NullString
			created  string
		)
		if err := rows.Scan(&ev.ID, &convID, &ev.Field, &ev.Message, &findings, &created); err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		ev.ConversationID = convID.String
		ev.CreatedAt = parseTime(created)
		if findings.Valid && findings.String != "" {
			if err := json.Unmarshal([]byte(findings.String), &ev.Findings); err != nil {
				l.logger.Warn().Err(err).Int64("event_id", ev.ID).Msg("Skipping undecodable findings")
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
