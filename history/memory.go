package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the log in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	channels map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{channels: make(map[string][]Message)}
}

// Append stores m and returns it with its assigned id.
func (s *MemoryStore) Append(ctx context.Context, m Message) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if m.At.IsZero() {
		m.At = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.channels[m.Channel]
	if n := len(entries); n > 0 && m.At.Before(entries[n-1].At) {
		m.At = entries[n-1].At
	}
	s.seq++
	m.ID = s.seq
	s.channels[m.Channel] = append(entries, m)
	return m, nil
}

// snapshot returns the channel log as of now. Entries are never mutated after
// append, so the returned slice can be scanned without holding the lock.
func (s *MemoryStore) snapshot(channel string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels[channel]
}

func (s *MemoryStore) Query(ctx context.Context, channel, substr string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	var out []Message
	for _, m := range s.snapshot(channel) {
		if Matches(m.Body, substr) {
			out = append(out, m)
		}
	}
	return Result{Messages: out, Total: len(out)}, nil
}

func (s *MemoryStore) QueryFrequency(ctx context.Context, channel, substr string, since *Cursor) (FrequencyResult, error) {
	if err := ctx.Err(); err != nil {
		return FrequencyResult{}, err
	}
	var out []Message
	for _, m := range s.snapshot(channel) {
		if since.Before(m) && Matches(m.Body, substr) {
			out = append(out, m)
		}
	}
	return frequencyFrom(out, since), nil
}
