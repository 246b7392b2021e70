package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lBebol/Multi-Client-Chat-Application/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	ts     INTEGER NOT NULL,
	sender TEXT NOT NULL,
	scope  TEXT NOT NULL,
	target TEXT,
	text   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_scope_ts ON messages (scope, ts);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages (sender);
CREATE INDEX IF NOT EXISTS idx_messages_target ON messages (target);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the message log at dbPath, creating the file and schema when
// they do not exist yet. Pass ":memory:" for an ephemeral store in tests.
func New(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append persists a message. Each insert is a single atomic statement, so a
// concurrent read observes either all of the message or none of it. The
// autoincrement rowid becomes the message ID.
func (s *SQLiteStore) Append(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (ts, sender, scope, target, text)
		VALUES (?, ?, ?, ?, ?)
	`
	var target any
	if msg.Target != "" {
		target = msg.Target
	}

	result, err := s.db.ExecContext(ctx, query, msg.TS, msg.Sender, string(msg.Scope), target, msg.Text)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// GroupHistory returns up to limit most-recent group messages, oldest-first.
func (s *SQLiteStore) GroupHistory(ctx context.Context, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, ts, sender, text
		FROM messages
		WHERE scope = 'group'
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query group history: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg := store.Message{Scope: store.ScopeGroup}
		if err := rows.Scan(&msg.ID, &msg.TS, &msg.Sender, &msg.Text); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group history: %w", err)
	}

	reverse(messages)
	return messages, nil
}

// PrivateHistory returns up to limit most-recent private messages between
// userA and userB in either sender/target order, oldest-first.
func (s *SQLiteStore) PrivateHistory(ctx context.Context, userA, userB string, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, ts, sender, target, text
		FROM messages
		WHERE scope = 'pm'
		  AND ((sender = ? AND target = ?) OR (sender = ? AND target = ?))
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userA, userB, userB, userA, limit)
	if err != nil {
		return nil, fmt.Errorf("query private history: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg := store.Message{Scope: store.ScopePrivate}
		var target sql.NullString
		if err := rows.Scan(&msg.ID, &msg.TS, &msg.Sender, &target, &msg.Text); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if target.Valid {
			msg.Target = target.String
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate private history: %w", err)
	}

	reverse(messages)
	return messages, nil
}

// PrivatePartners returns the distinct usernames that have exchanged a
// private message with username, as sender or as target.
func (s *SQLiteStore) PrivatePartners(ctx context.Context, username string) ([]string, error) {
	query := `
		SELECT DISTINCT
			CASE WHEN sender = ? THEN target ELSE sender END
		FROM messages
		WHERE scope = 'pm'
		  AND (sender = ? OR target = ?)
	`
	rows, err := s.db.QueryContext(ctx, query, username, username, username)
	if err != nil {
		return nil, fmt.Errorf("query private partners: %w", err)
	}
	defer rows.Close()

	var partners []string
	for rows.Next() {
		var partner sql.NullString
		if err := rows.Scan(&partner); err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		if partner.Valid && partner.String != "" {
			partners = append(partners, partner.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate private partners: %w", err)
	}

	return partners, nil
}

// reverse flips DESC query results into chronological order.
func reverse(messages []*store.Message) {
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
