package streamers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

// MemoryStore keeps the registry in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Insert(_ context.Context, e Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.Key]; ok {
		return false, nil
	}
	m.entries[e.Key] = e
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

func (m *MemoryStore) List(context.Context) ([]Entry, error) {
	m.mu.Lock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.Unlock()
	sortEntries(out)
	return out, nil
}

// PostgresStore keeps the registry in the streamers table.
type PostgresStore struct {
	DB *sql.DB
}

func (p *PostgresStore) Insert(ctx context.Context, e Entry) (bool, error) {
	res, err := p.DB.ExecContext(ctx,
		`INSERT INTO streamers (key, display_name, user_id) VALUES ($1,$2,NULLIF($3,'')) ON CONFLICT (key) DO NOTHING`,
		e.Key, e.DisplayName, e.UserID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *PostgresStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM streamers WHERE key=$1`, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT key, display_name, COALESCE(user_id,'') FROM streamers ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.DisplayName, &e.UserID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RedisStore keeps the registry in a Redis hash of key -> JSON entry.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Insert(ctx context.Context, e Entry) (bool, error) {
	if s.key == "" {
		return false, fmt.Errorf("streamers hash key is not configured")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("marshal streamer: %w", err)
	}
	ok, err := s.client.HSetNX(ctx, s.key, e.Key, string(data)).Result()
	if err != nil {
		return false, fmt.Errorf("redis HSETNX %s: %w", s.key, err)
	}
	return ok, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	if s.key == "" {
		return false, fmt.Errorf("streamers hash key is not configured")
	}
	n, err := s.client.HDel(ctx, s.key, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis HDEL %s: %w", s.key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	if s.key == "" {
		return nil, fmt.Errorf("streamers hash key is not configured")
	}
	members, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %s: %w", s.key, err)
	}
	out := make([]Entry, 0, len(members))
	for field, raw := range members {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			// Skip malformed entries but continue.
			continue
		}
		if e.Key == "" {
			e.Key = field
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}
