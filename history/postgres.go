package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists the log in the chat_messages table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts m. Inserts into one channel are serialized with a
// transaction-scoped advisory lock so that id order and sent_at order agree;
// sent_at is clamped so it never goes backwards inside a channel.
func (s *PostgresStore) Append(ctx context.Context, m Message) (Message, error) {
	if m.At.IsZero() {
		m.At = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("%w: begin append: %w", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, m.Channel); err != nil {
		return Message{}, fmt.Errorf("%w: lock channel: %w", ErrStorage, err)
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO chat_messages (channel, sender, body, sent_at)
		 VALUES ($1, $2, $3, GREATEST($4::timestamptz,
			COALESCE((SELECT MAX(sent_at) FROM chat_messages WHERE channel=$1), $4::timestamptz)))
		 RETURNING id, sent_at`,
		m.Channel, m.Sender, m.Body, m.At).Scan(&m.ID, &m.At)
	if err != nil {
		return Message{}, fmt.Errorf("%w: insert chat message: %w", ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("%w: commit append: %w", ErrStorage, err)
	}
	return m, nil
}

// Query uses strpos rather than LIKE so the predicate needs no escaping.
func (s *PostgresStore) Query(ctx context.Context, channel, substr string) (Result, error) {
	msgs, err := s.scan(ctx,
		`SELECT id, channel, sender, body, sent_at FROM chat_messages
		 WHERE channel=$1 AND strpos(body, $2) > 0 ORDER BY id ASC`, channel, substr)
	if err != nil {
		return Result{}, err
	}
	return Result{Messages: msgs, Total: len(msgs)}, nil
}

func (s *PostgresStore) QueryFrequency(ctx context.Context, channel, substr string, since *Cursor) (FrequencyResult, error) {
	var (
		msgs []Message
		err  error
	)
	if since == nil {
		msgs, err = s.scan(ctx,
			`SELECT id, channel, sender, body, sent_at FROM chat_messages
			 WHERE channel=$1 AND strpos(body, $2) > 0 ORDER BY id ASC`, channel, substr)
	} else {
		msgs, err = s.scan(ctx,
			`SELECT id, channel, sender, body, sent_at FROM chat_messages
			 WHERE channel=$1 AND strpos(body, $2) > 0 AND (sent_at, id) > ($3, $4)
			 ORDER BY sent_at ASC, id ASC`, channel, substr, since.At, since.ID)
	}
	if err != nil {
		return FrequencyResult{}, err
	}
	return frequencyFrom(msgs, since), nil
}

func (s *PostgresStore) scan(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query chat messages: %w", ErrStorage, err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Channel, &m.Sender, &m.Body, &m.At); err != nil {
			return nil, fmt.Errorf("%w: scan chat message: %w", ErrStorage, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return out, nil
}
