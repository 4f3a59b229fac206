package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// CursorStore remembers the last frequency cursor per (channel, predicate).
type CursorStore interface {
	Load(ctx context.Context, channel, substr string) (*Cursor, error)
	Save(ctx context.Context, channel, substr string, c *Cursor) error
}

func cursorKey(channel, substr string) string {
	return "freq:" + channel + ":" + substr
}

// MemoryCursors is an in-process CursorStore.
type MemoryCursors struct {
	mu      sync.Mutex
	cursors map[string]Cursor
}

func NewMemoryCursors() *MemoryCursors {
	return &MemoryCursors{cursors: make(map[string]Cursor)}
}

func (m *MemoryCursors) Load(_ context.Context, channel, substr string) (*Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[cursorKey(channel, substr)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryCursors) Save(_ context.Context, channel, substr string, c *Cursor) error {
	if c == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[cursorKey(channel, substr)] = *c
	return nil
}

// KV is the key/value contract satisfied by db.KV.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// KVCursors stores cursors as JSON in a key/value table.
type KVCursors struct {
	KV KV
}

func (k *KVCursors) Load(ctx context.Context, channel, substr string) (*Cursor, error) {
	raw, ok, err := k.KV.Get(ctx, cursorKey(channel, substr))
	if err != nil {
		return nil, fmt.Errorf("%w: load cursor: %w", ErrStorage, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var c Cursor
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		// Restart from the beginning; the next Save replaces the bad value.
		slog.Warn("discarding undecodable frequency cursor",
			slog.String("channel", channel), slog.String("query", substr), slog.Any("err", err))
		return nil, nil
	}
	return &c, nil
}

func (k *KVCursors) Save(ctx context.Context, channel, substr string, c *Cursor) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := k.KV.Set(ctx, cursorKey(channel, substr), string(b)); err != nil {
		return fmt.Errorf("%w: save cursor: %w", ErrStorage, err)
	}
	return nil
}
