package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCardsURL is the HearthstoneJSON collectible card dump.
const DefaultCardsURL = "https://api.hearthstonejson.com/v1/latest/enUS/cards.collectible.json"

// Card is one Hearthstone card.
type Card struct {
	Name   string `json:"name"`
	Text   string `json:"text"`
	Type   string `json:"type"`
	Cost   *int   `json:"cost"`
	Attack *int   `json:"attack"`
	Health *int   `json:"health"`
}

var markup = regexp.MustCompile(`<[^>]*>|\[x\]`)

// Description renders the card as a single line.
func (c Card) Description() string {
	var stats []string
	if c.Cost != nil {
		stats = append(stats, fmt.Sprintf("%d Mana", *c.Cost))
	}
	if c.Attack != nil && c.Health != nil {
		stats = append(stats, fmt.Sprintf("%d/%d", *c.Attack, *c.Health))
	}
	if c.Type != "" {
		stats = append(stats, strings.ToLower(c.Type))
	}
	out := c.Name
	if len(stats) > 0 {
		out += " (" + strings.Join(stats, ", ") + ")"
	}
	if text := cleanCardText(c.Text); text != "" {
		out += ": " + text
	}
	return out
}

func cleanCardText(s string) string {
	s = markup.ReplaceAllString(s, "")
	s = strings.NewReplacer("$", "", "#", "", "_", " ", "\n", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// CardIndex looks cards up by name. The card dump is fetched on first use and
// refreshed after TTL; concurrent callers share one fetch.
type CardIndex struct {
	URL         string
	TTL         time.Duration
	LoadTimeout time.Duration // bounds one dump fetch; default 30s
	HTTPClient  *http.Client

	group singleflight.Group

	mu       sync.RWMutex
	byName   map[string]Card
	names    []string
	loadedAt time.Time
}

func (ci *CardIndex) fresh() bool {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	ttl := ci.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return ci.byName != nil && time.Since(ci.loadedAt) < ttl
}

func (ci *CardIndex) load(ctx context.Context) error {
	if ci.fresh() {
		return nil
	}
	// The shared fetch outlives any one caller's deadline; each caller only waits on its own ctx.
	ch := ci.group.DoChan("load", func() (any, error) {
		if ci.fresh() {
			return nil, nil
		}
		timeout := ci.LoadTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		cards, err := ci.fetch(fctx)
		if err != nil {
			return nil, err
		}
		byName := make(map[string]Card, len(cards))
		names := make([]string, 0, len(cards))
		for _, c := range cards {
			k := strings.ToLower(c.Name)
			if _, dup := byName[k]; dup || k == "" {
				continue
			}
			byName[k] = c
			names = append(names, k)
		}
		sort.Strings(names)
		ci.mu.Lock()
		ci.byName, ci.names, ci.loadedAt = byName, names, time.Now()
		ci.mu.Unlock()
		slog.Info("hscard: card index loaded", slog.Int("cards", len(byName)))
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ci *CardIndex) fetch(ctx context.Context) ([]Card, error) {
	url := ci.URL
	if url == "" {
		url = DefaultCardsURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := ci.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("card dump fetch failed: %s", resp.Status)
	}
	var cards []Card
	if err := json.NewDecoder(resp.Body).Decode(&cards); err != nil {
		return nil, fmt.Errorf("decode card dump: %w", err)
	}
	return cards, nil
}

// Describe returns the description of the card named name. An exact
// case-insensitive match wins; otherwise the alphabetically first card whose
// name starts with name is used.
func (ci *CardIndex) Describe(ctx context.Context, name string) (string, error) {
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return "", ErrNotFound
	}
	if err := ci.load(ctx); err != nil {
		return "", err
	}
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	if c, ok := ci.byName[q]; ok {
		return c.Description(), nil
	}
	i := sort.SearchStrings(ci.names, q)
	if i < len(ci.names) && strings.HasPrefix(ci.names[i], q) {
		return ci.byName[ci.names[i]].Description(), nil
	}
	return "", ErrNotFound
}
