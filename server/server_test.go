package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/kawbot/history"
	"github.com/onnwee/kawbot/live"
)

type fixedPower bool

func (p fixedPower) Enabled() bool { return bool(p) }

type fixedSnapshot []live.Streamer

func (s fixedSnapshot) Snapshot() []live.Streamer { return s }

type brokenStore struct{ history.Store }

func (brokenStore) Query(context.Context, string, string) (history.Result, error) {
	return history.Result{}, fmt.Errorf("%w: connection refused", history.ErrStorage)
}

func seededStore(t *testing.T, n int) *history.MemoryStore {
	t.Helper()
	s := history.NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		_, err := s.Append(context.Background(), history.Message{
			Channel: "kaw",
			Sender:  "alice",
			At:      base.Add(time.Duration(i) * time.Second),
			Body:    fmt.Sprintf("msg %d", i),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func serve(t *testing.T, h *Handlers, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rr := httptest.NewRecorder()
	NewMux(ctx, h).ServeHTTP(rr, req)
	return rr
}

func TestHealthzOK(t *testing.T) {
	h := NewHandlers(nil, history.NewMemoryStore(), fixedPower(true), nil, nil)
	rr := serve(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "ok" {
		t.Fatalf("expected ok body, got %q", got)
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected generated correlation id")
	}
}

func TestCorrelationHeaderReused(t *testing.T) {
	h := NewHandlers(nil, history.NewMemoryStore(), fixedPower(true), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rr := serve(t, h, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "abc-123" {
		t.Errorf("correlation id = %q", got)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name   string
		store  history.Store
		status int
		check  string
	}{
		{"memory store ready", history.NewMemoryStore(), http.StatusOK, ""},
		{"broken store", brokenStore{}, http.StatusServiceUnavailable, "history"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(nil, tt.store, fixedPower(true), nil, nil)
			rr := serve(t, h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			var body map[string]string
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["failed_check"] != tt.check {
				t.Errorf("failed_check = %q, want %q", body["failed_check"], tt.check)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	snap := fixedSnapshot{{Key: "b", DisplayName: "B"}}
	tests := []struct {
		name    string
		power   bool
		snap    LiveSnapshot
		polling bool
		live    int
	}{
		{"poller disabled", true, nil, false, 0},
		{"poller running, power off", false, snap, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(nil, history.NewMemoryStore(), fixedPower(tt.power), tt.snap, []string{"help", "time"})
			rr := serve(t, h, httptest.NewRequest(http.MethodGet, "/status", nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			var got statusResponse
			if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			if got.Power != tt.power || got.Polling != tt.polling || len(got.Live) != tt.live || len(got.Commands) != 2 {
				t.Errorf("status = %+v", got)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	store := seededStore(t, 60)
	tests := []struct {
		name   string
		url    string
		status int
		total  int
		count  int
		first  string
	}{
		{"missing channel", "/history", http.StatusBadRequest, 0, 0, ""},
		{"default limit keeps the newest", "/history?channel=kaw", http.StatusOK, 60, 50, "msg 10"},
		{"explicit limit", "/history?channel=kaw&limit=3", http.StatusOK, 60, 3, "msg 57"},
		{"invalid limit falls back", "/history?channel=kaw&limit=9999", http.StatusOK, 60, 50, "msg 10"},
		{"substring filter", "/history?channel=kaw&q=msg+5", http.StatusOK, 11, 11, "msg 5"},
		{"unknown channel", "/history?channel=other", http.StatusOK, 0, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(nil, store, fixedPower(true), nil, nil)
			rr := serve(t, h, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var got historyResponse
			if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			if got.Total != tt.total || len(got.Messages) != tt.count {
				t.Fatalf("total=%d count=%d, want %d/%d", got.Total, len(got.Messages), tt.total, tt.count)
			}
			if tt.count > 0 && got.Messages[0].Body != tt.first {
				t.Errorf("first = %q, want %q", got.Messages[0].Body, tt.first)
			}
		})
	}
}

func TestHistoryErrors(t *testing.T) {
	h := NewHandlers(nil, brokenStore{}, fixedPower(true), nil, nil)
	rr := serve(t, h, httptest.NewRequest(http.MethodGet, "/history?channel=kaw", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rr.Code)
	}
	rr = serve(t, h, httptest.NewRequest(http.MethodPost, "/history?channel=kaw", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewHandlers(nil, history.NewMemoryStore(), fixedPower(true), nil, nil)
	rr := serve(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("expected default collectors in /metrics output")
	}
}

func TestStartAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	h := NewHandlers(nil, history.NewMemoryStore(), fixedPower(true), nil, nil)
	done := make(chan error, 1)
	go func() { done <- Start(ctx, h, addr) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
