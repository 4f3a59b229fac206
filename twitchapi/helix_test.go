package twitchapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/kawbot/testutil"
)

func newTestClient(m *testutil.MockTwitchServer) *HelixClient {
	return &HelixClient{
		AppTokenSource: StaticToken("test-token"),
		ClientID:       "test-client-id",
		BaseURL:        m.URL + "/helix",
	}
}

func TestHelixClient_GetUser(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.MockUsers(map[string]string{"testuser": "TestUser"})
	client := newTestClient(m)

	tests := []struct {
		name        string
		login       string
		wantDisplay string
		wantErr     error
		errContains string
	}{
		{name: "successful user lookup", login: "testuser", wantDisplay: "TestUser"},
		{name: "user not found", login: "nonexistent", wantErr: ErrUserNotFound},
		{name: "empty login", login: "", errContains: "login empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := client.GetUser(context.Background(), tt.login)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("GetUser() error = %v, want %v", err, tt.wantErr)
				}
			case tt.errContains != "":
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("GetUser() error = %v, want error containing %q", err, tt.errContains)
				}
			default:
				if err != nil {
					t.Fatalf("GetUser() unexpected error = %v", err)
				}
				if user.DisplayName != tt.wantDisplay || user.Login != tt.login {
					t.Errorf("GetUser() = %+v, want display %q", user, tt.wantDisplay)
				}
			}
		})
	}
}

func TestHelixClient_SendsAuthHeaders(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.Handle("/helix/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Client-Id") != "test-client-id" {
			t.Errorf("missing or wrong Client-Id header")
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing or wrong Authorization header")
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"1","login":"a","display_name":"A"}]}`))
	})
	if _, err := newTestClient(m).GetUser(context.Background(), "a"); err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
}

func TestHelixClient_GetStreams(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.MockStreams(map[string]string{"livechannel": "LiveChannel"})

	streams, err := newTestClient(m).GetStreams(context.Background(), "livechannel", "offline")
	if err != nil {
		t.Fatalf("GetStreams() error = %v", err)
	}
	if len(streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(streams))
	}
	if streams[0].UserLogin != "livechannel" || streams[0].UserName != "LiveChannel" {
		t.Fatalf("stream = %+v", streams[0])
	}
	if streams[0].StartedAt.IsZero() {
		t.Errorf("started_at not parsed")
	}
}

func TestHelixClient_GetStreamsBatches(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.MockStreams(map[string]string{"user0": "User0", "user150": "User150"})

	logins := make([]string, 0, 201)
	for i := 0; i < 201; i++ {
		logins = append(logins, fmt.Sprintf("user%d", i))
	}
	streams, err := newTestClient(m).GetStreams(context.Background(), logins...)
	if err != nil {
		t.Fatalf("GetStreams() error = %v", err)
	}
	if len(streams) != 2 {
		t.Errorf("expected 2 live streams, got %d", len(streams))
	}
	if hits := m.Hits("/helix/streams"); hits != 3 {
		t.Errorf("expected 3 batched requests, got %d", hits)
	}
}

func TestHelixClient_GetStreamsNoLogins(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	streams, err := newTestClient(m).GetStreams(context.Background())
	if err != nil || len(streams) != 0 {
		t.Fatalf("GetStreams() = %v, %v; want empty", streams, err)
	}
	if hits := m.Hits("/helix/streams"); hits != 0 {
		t.Errorf("expected no requests, got %d", hits)
	}
}

func TestHelixClient_ErrorStatus(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.Handle("/helix/streams", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	})
	_, err := newTestClient(m).GetStreams(context.Background(), "a")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("GetStreams() error = %v, want 503", err)
	}
}

func TestTokenSource_ClientCredentials(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.MockOAuthToken("app-token", 3600)
	m.Handle("/helix/users", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer app-token" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"1","login":"a","display_name":"A"}]}`))
	})

	ts := &TokenSource{ClientID: "id", ClientSecret: "secret", TokenURL: m.URL + "/oauth2/token"}
	client := &HelixClient{AppTokenSource: ts, ClientID: "id", BaseURL: m.URL + "/helix"}
	for i := 0; i < 3; i++ {
		if _, err := client.GetUser(context.Background(), "a"); err != nil {
			t.Fatalf("GetUser() error = %v", err)
		}
	}
	if hits := m.Hits("/oauth2/token"); hits != 1 {
		t.Errorf("expected token to be cached after one fetch, got %d fetches", hits)
	}
}

func TestTokenSource_MissingCredentials(t *testing.T) {
	ts := &TokenSource{}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Fatal("expected error without client id/secret")
	}
}

// hangingTokenServer registers a token endpoint that never answers until the
// request is canceled or the test ends. entered receives one value per request.
func hangingTokenServer(t *testing.T) (*testutil.MockTwitchServer, <-chan struct{}) {
	t.Helper()
	m := testutil.NewMockTwitchServer(t)
	release := make(chan struct{})
	entered := make(chan struct{}, 8)
	t.Cleanup(func() { close(release) })
	m.Handle("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		select {
		case <-r.Context().Done():
		case <-release:
		case <-time.After(5 * time.Second):
		}
	})
	return m, entered
}

func TestTokenSource_RefreshHonorsContext(t *testing.T) {
	m, _ := hangingTokenServer(t)
	ts := &TokenSource{ClientID: "id", ClientSecret: "secret", TokenURL: m.URL + "/oauth2/token"}
	client := &HelixClient{AppTokenSource: ts, ClientID: "id", BaseURL: m.URL + "/helix"}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := client.GetUser(ctx, "foo")
	elapsed := time.Since(start)
	if err == nil {
		t.Fatal("expected error from hung token endpoint")
	}
	if elapsed > time.Second {
		t.Fatalf("GetUser took %v with a 150ms deadline", elapsed)
	}
}

func TestTokenSource_WaiterHonorsOwnContext(t *testing.T) {
	m, entered := hangingTokenServer(t)
	ts := &TokenSource{ClientID: "id", ClientSecret: "secret", TokenURL: m.URL + "/oauth2/token"}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstDone := make(chan error, 1)
	go func() {
		_, err := ts.Get(firstCtx)
		firstDone <- err
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first refresh never reached the token endpoint")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := ts.Get(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("waiting Get() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("waiting Get() took %v with a 100ms deadline", elapsed)
	}

	cancelFirst()
	select {
	case err := <-firstDone:
		if err == nil {
			t.Error("canceled refresh should fail")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("canceled refresh did not return")
	}
}
