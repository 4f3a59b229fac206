// Package streamers is the registry of tracked Twitch channels.
//
// The registry only records which channels the bot watches. Whether a channel
// is live is answered elsewhere (see package live).
package streamers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/onnwee/kawbot/twitchapi"
)

var (
	// ErrAlreadyTracked is returned by Add for a channel already in the registry.
	ErrAlreadyTracked = errors.New("already on the list")
	// ErrUnknownChannel is returned when a channel does not resolve to a Twitch account.
	ErrUnknownChannel = errors.New("channel does not exist")
)

// Entry is one tracked channel.
type Entry struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	UserID      string `json:"user_id,omitempty"`
}

// Store persists registry entries.
type Store interface {
	// Insert adds e unless its key is present; inserted reports which happened.
	Insert(ctx context.Context, e Entry) (inserted bool, err error)
	// Delete removes key; deleted is false when it was absent.
	Delete(ctx context.Context, key string) (deleted bool, err error)
	// List returns all entries sorted by key.
	List(ctx context.Context) ([]Entry, error)
}

// Resolver turns a channel key into a registry entry.
type Resolver interface {
	Resolve(ctx context.Context, key string) (Entry, error)
}

// HelixResolver resolves channels through the Helix users endpoint.
type HelixResolver struct {
	Client *twitchapi.HelixClient
}

func (h HelixResolver) Resolve(ctx context.Context, key string) (Entry, error) {
	u, err := h.Client.GetUser(ctx, key)
	if errors.Is(err, twitchapi.ErrUserNotFound) {
		return Entry{}, ErrUnknownChannel
	}
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: strings.ToLower(u.Login), DisplayName: u.DisplayName, UserID: u.ID}, nil
}

// Service is the registry used by commands and the live-status source.
type Service struct {
	store    Store
	resolver Resolver
}

// NewService builds a registry over store. A nil resolver accepts every key and uses it as the display name.
func NewService(store Store, resolver Resolver) *Service {
	return &Service{store: store, resolver: resolver}
}

// NormalizeKey lowercases a channel name and strips a leading '#' or channel URL.
func NormalizeKey(raw string) string {
	k := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range []string{"https://", "http://", "www.", "twitch.tv/"} {
		k = strings.TrimPrefix(k, p)
	}
	k = strings.TrimPrefix(k, "#")
	return strings.TrimRight(k, "/")
}

// Add tracks a channel and returns the stored entry.
func (s *Service) Add(ctx context.Context, raw string) (Entry, error) {
	key := NormalizeKey(raw)
	if key == "" {
		return Entry{}, ErrUnknownChannel
	}
	e := Entry{Key: key, DisplayName: key}
	if s.resolver != nil {
		var err error
		if e, err = s.resolver.Resolve(ctx, key); err != nil {
			return Entry{}, err
		}
	}
	ok, err := s.store.Insert(ctx, e)
	if err != nil {
		return Entry{}, fmt.Errorf("insert streamer %s: %w", key, err)
	}
	if !ok {
		return e, ErrAlreadyTracked
	}
	return e, nil
}

// Remove stops tracking a channel. It reports false when the channel was not tracked.
func (s *Service) Remove(ctx context.Context, raw string) (bool, error) {
	key := NormalizeKey(raw)
	if key == "" {
		return false, nil
	}
	return s.store.Delete(ctx, key)
}

// List returns tracked channels sorted by key.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	return s.store.List(ctx)
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool { return es[i].Key < es[j].Key })
}
