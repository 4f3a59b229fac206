// Package history is the append-only chat message log and its query engine.
//
// Every observed message is appended under its channel and never rewritten.
// Queries filter one channel by case-sensitive substring and return matches in
// append order. Frequency queries additionally take a Cursor so repeated calls
// only report messages newer than the previous call.
package history

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrStorage wraps every failure of the underlying storage layer.
var ErrStorage = errors.New("history storage failure")

// Message is one logged chat event.
type Message struct {
	ID      int64
	Channel string
	Sender  string
	At      time.Time
	Body    string
}

// Cursor marks a resumption point in a channel's log.
type Cursor struct {
	At time.Time `json:"at"`
	ID int64     `json:"id"`
}

// CursorOf returns the cursor positioned on m.
func CursorOf(m Message) *Cursor { return &Cursor{At: m.At, ID: m.ID} }

// Before reports whether m lies strictly after c. A nil cursor is the beginning of the log.
func (c *Cursor) Before(m Message) bool {
	if c == nil {
		return true
	}
	if m.At.Equal(c.At) {
		return m.ID > c.ID
	}
	return m.At.After(c.At)
}

// Result is the outcome of a substring query.
type Result struct {
	Messages []Message
	Total    int
}

// FrequencyResult is the outcome of a resumable query.
type FrequencyResult struct {
	Messages []Message
	// Since is the cursor the query resumed from (nil = the beginning).
	Since *Cursor
	// Next is the cursor to pass to the following call.
	Next *Cursor
}

// Store is the message log contract shared by all backends.
type Store interface {
	Append(ctx context.Context, m Message) (Message, error)
	Query(ctx context.Context, channel, substr string) (Result, error)
	QueryFrequency(ctx context.Context, channel, substr string, since *Cursor) (FrequencyResult, error)
}

// Matches reports whether body satisfies the substring predicate. An empty predicate matches everything.
func Matches(body, substr string) bool {
	return strings.Contains(body, substr)
}

func frequencyFrom(matches []Message, since *Cursor) FrequencyResult {
	res := FrequencyResult{Messages: matches, Since: since, Next: since}
	if n := len(matches); n > 0 {
		res.Next = CursorOf(matches[n-1])
	}
	return res
}
