// Package live polls the live status of tracked channels and announces channels
// that have just gone live.
//
// Each tick fetches the current live set, diffs it by key against the
// previous tick's snapshot and notifies for every key that is new. The snapshot
// is replaced after every successful fetch whether or not delivery succeeded,
// so an announcement is made at most once per offline-to-live transition.
// A failed or timed-out fetch leaves the snapshot untouched.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/kawbot/telemetry"
)

// Defaults used when no option overrides them.
const (
	DefaultInterval = 60 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// Streamer is a channel observed live.
type Streamer struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	Title       string    `json:"title,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
}

// Source reports the channels currently live.
type Source interface {
	FetchLive(ctx context.Context) ([]Streamer, error)
}

// Notifier announces one newly-live channel.
type Notifier interface {
	Notify(ctx context.Context, s Streamer) error
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(ctx context.Context, s Streamer) error

func (f NotifyFunc) Notify(ctx context.Context, s Streamer) error { return f(ctx, s) }

// Gate decides whether announcements are emitted. Polling continues while closed.
type Gate interface {
	Enabled() bool
}

type alwaysOn struct{}

func (alwaysOn) Enabled() bool { return true }

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout bounds each fetch from the source.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// Poller owns the live snapshot.
type Poller struct {
	src      Source
	notifier Notifier
	gate     Gate
	interval time.Duration
	timeout  time.Duration

	tickMu sync.Mutex // serializes ticks

	mu       sync.RWMutex
	snapshot map[string]Streamer
}

// New builds a Poller. A nil gate never blocks announcements.
func New(src Source, notifier Notifier, gate Gate, opts ...Option) *Poller {
	if gate == nil {
		gate = alwaysOn{}
	}
	p := &Poller{
		src:      src,
		notifier: notifier,
		gate:     gate,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		snapshot: map[string]Streamer{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Interval returns the configured tick interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Snapshot returns the channels live as of the last successful fetch, sorted by key.
func (p *Poller) Snapshot() []Streamer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedValues(p.snapshot)
}

// Run ticks immediately and then on every interval until ctx is canceled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	slog.Info("live poller: started", slog.Duration("interval", p.interval), slog.Duration("timeout", p.timeout))
	for {
		if ctx.Err() != nil {
			slog.Info("live poller: stopped")
			return
		}
		_, _ = p.Tick(ctx)
		select {
		case <-ctx.Done():
			slog.Info("live poller: stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one poll cycle and returns the channels it announced.
// The error is non-nil only when the fetch failed; delivery failures are logged.
func (p *Poller) Tick(ctx context.Context) ([]Streamer, error) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "live.tick")
	defer span.End()
	telemetry.Inc(telemetry.PollTicks)

	var (
		current []Streamer
		err     error
	)
	telemetry.TimeFunc(telemetry.PollDuration, func() {
		current, err = p.fetch(ctx)
	})
	if err != nil {
		telemetry.Inc(telemetry.PollFailures)
		telemetry.RecordError(span, err)
		slog.Warn("live poller: fetch failed; skipping tick", slog.Any("err", err))
		return nil, err
	}

	next := make(map[string]Streamer, len(current))
	for _, s := range current {
		next[s.Key] = s
	}

	p.mu.RLock()
	var fresh []Streamer
	for k, s := range next {
		if _, seen := p.snapshot[k]; !seen {
			fresh = append(fresh, s)
		}
	}
	p.mu.RUnlock()
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Key < fresh[j].Key })

	var announced []Streamer
	if p.gate.Enabled() {
		for _, s := range fresh {
			if ctx.Err() != nil {
				break
			}
			if err := p.notifier.Notify(ctx, s); err != nil {
				telemetry.Inc(telemetry.NotificationsFailed)
				slog.Warn("live poller: notify failed", slog.String("streamer", s.Key), slog.Any("err", err))
			} else {
				telemetry.Inc(telemetry.NotificationsSent)
			}
			announced = append(announced, s)
		}
	} else if len(fresh) > 0 {
		slog.Debug("live poller: power off; suppressing announcements", slog.Int("count", len(fresh)))
	}

	p.mu.Lock()
	p.snapshot = next
	p.mu.Unlock()
	telemetry.SetLiveStreamers(len(next))
	span.SetAttributes(attribute.Int("live", len(next)), attribute.Int("announced", len(announced)))
	return announced, nil
}

// ErrFetchTimeout is returned when the source does not answer within the poll timeout.
var ErrFetchTimeout = errors.New("live status fetch timed out")

// fetch calls the source bounded by the poll timeout, even if the source ignores its context.
func (p *Poller) fetch(ctx context.Context) ([]Streamer, error) {
	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		live []Streamer
		err  error
	}
	done := make(chan result, 1)
	go func() {
		live, err := p.src.FetchLive(fctx)
		done <- result{live, err}
	}()
	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("fetch live: %w", r.err)
		}
		return r.live, nil
	case <-fctx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrFetchTimeout
	}
}

func sortedValues(m map[string]Streamer) []Streamer {
	out := make([]Streamer, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
