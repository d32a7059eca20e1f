package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/bratishka/bratishka/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id TEXT NOT NULL,
    author_id TEXT NOT NULL,
    author_name TEXT NOT NULL,
    text TEXT NOT NULL,
    reply_to INTEGER,
    ts INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages (chat_id, ts);`

// SQLite is the Store implementation backed by a local SQLite database.
// Timestamps are stored as unix nanoseconds so window comparisons are plain
// integer comparisons against the indexed ts column.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, msg *models.Message) error {
	query := `
        INSERT INTO messages (chat_id, author_id, author_name, text, reply_to, ts)
        VALUES (?, ?, ?, ?, ?, ?)
        RETURNING id`

	var replyTo sql.NullInt64
	if msg.ReplyTo != 0 {
		replyTo = sql.NullInt64{Int64: msg.ReplyTo, Valid: true}
	}

	return s.db.QueryRowContext(ctx, query,
		msg.ChatID, msg.AuthorID, msg.AuthorName, msg.Text, replyTo,
		msg.Timestamp.UTC().UnixNano(),
	).Scan(&msg.ID)
}

func (s *SQLite) Query(ctx context.Context, chatID string, w models.TimeWindow) ([]models.Message, error) {
	query := `
        SELECT id, chat_id, author_id, author_name, text, COALESCE(reply_to, 0), ts
        FROM messages
        WHERE chat_id = ? AND ts >= ? AND ts < ?
        ORDER BY ts ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, chatID,
		w.Start.UTC().UnixNano(), w.End.UTC().UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var ts int64
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.AuthorID, &msg.AuthorName,
			&msg.Text, &msg.ReplyTo, &ts); err != nil {
			return nil, err
		}
		msg.Timestamp = time.Unix(0, ts).UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// DeleteOlderThan removes messages whose timestamp is before cutoff and
// returns the number of rows deleted. Used by the retention job.
func (s *SQLite) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE ts < ?", cutoff.UTC().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
