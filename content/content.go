// Package content holds the lookup providers behind the text commands: the
// 8-ball, Hearthstone card descriptions, current weather and the message of
// the day.
package content

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
)

// ErrNotFound is returned when a lookup has no answer.
var ErrNotFound = errors.New("not found")

// Ball answers yes/no questions at random.
type Ball struct {
	answers []string
	pick    func(n int) int
}

func NewBall(answers []string) *Ball {
	return &Ball{answers: answers, pick: rand.IntN}
}

// Answer returns one of the configured answers, or "Ask again later" when none are configured.
func (b *Ball) Answer() string {
	if len(b.answers) == 0 {
		return "Ask again later"
	}
	return b.answers[b.pick(len(b.answers))]
}

// KV is the key/value contract satisfied by db.KV.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

const motdKey = "motd"

// Board stores the message of the day.
type Board struct {
	kv KV

	mu  sync.Mutex
	mem string
}

// NewBoard returns a Board backed by kv, or by process memory when kv is nil.
func NewBoard(kv KV) *Board {
	return &Board{kv: kv}
}

// Get returns the current message; ok is false when none was set.
func (b *Board) Get(ctx context.Context) (msg string, ok bool, err error) {
	if b.kv == nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.mem, b.mem != "", nil
	}
	return b.kv.Get(ctx, motdKey)
}

// Set replaces the message and returns it.
func (b *Board) Set(ctx context.Context, msg string) (string, error) {
	if b.kv == nil {
		b.mu.Lock()
		b.mem = msg
		b.mu.Unlock()
		return msg, nil
	}
	if err := b.kv.Set(ctx, motdKey, msg); err != nil {
		return "", err
	}
	return msg, nil
}
