package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/kawbot/history"
	"github.com/onnwee/kawbot/live"
	"github.com/onnwee/kawbot/telemetry"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// PowerState reports the bot power flag.
type PowerState interface {
	Enabled() bool
}

// LiveSnapshot reports the poller's current live set.
type LiveSnapshot interface {
	Snapshot() []live.Streamer
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db       *sql.DB // nil when running without Postgres
	history  history.Store
	power    PowerState
	live     LiveSnapshot // nil when the poller is disabled
	commands []string
	started  time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(db *sql.DB, store history.Store, power PowerState, snap LiveSnapshot, commands []string) *Handlers {
	return &Handlers{db: db, history: store, power: power, live: snap, commands: commands, started: time.Now()}
}

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"database", func(ctx context.Context) error {
			if h.db == nil {
				return nil
			}
			return h.db.PingContext(ctx)
		}},
		{"history", func(ctx context.Context) error {
			// No channel is named "", so this touches storage without scanning rows.
			_, err := h.history.Query(ctx, "", "")
			return err
		}},
	}

	for _, check := range checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := check.fn(ctx)
		cancel()
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	Power    bool            `json:"power"`
	Live     []live.Streamer `json:"live"`
	Polling  bool            `json:"polling"`
	Commands []string        `json:"commands"`
	Uptime   string          `json:"uptime"`
}

// HandleStatus reports the power flag, the live snapshot and the command set.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Power:    h.power.Enabled(),
		Live:     []live.Streamer{},
		Commands: h.commands,
		Uptime:   time.Since(h.started).Round(time.Second).String(),
	}
	if h.live != nil {
		resp.Polling = true
		resp.Live = h.live.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

type historyMessage struct {
	ID     int64     `json:"id"`
	Sender string    `json:"sender"`
	At     time.Time `json:"at"`
	Body   string    `json:"body"`
}

type historyResponse struct {
	Channel  string           `json:"channel"`
	Query    string           `json:"q"`
	Total    int              `json:"total"`
	Messages []historyMessage `json:"messages"`
}

// HandleHistory runs a substring query over one channel and returns the most recent matches.
// Query params: channel (required), q, limit (default 50, max 500).
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "channel required", http.StatusBadRequest)
		return
	}
	q := r.URL.Query().Get("q")
	limit := parseIntQuery(r, "limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	res, err := h.history.Query(r.Context(), channel, q)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		telemetry.LoggerWithCorr(r.Context()).Error("history query failed", slog.String("channel", channel), slog.Any("err", err))
		http.Error(w, "history query failed", status)
		return
	}
	msgs := res.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := historyResponse{Channel: channel, Query: q, Total: res.Total, Messages: make([]historyMessage, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, historyMessage{ID: m.ID, Sender: m.Sender, At: m.At, Body: m.Body})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("err", err))
	}
}
