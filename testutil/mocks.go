package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix API responses
type MockTwitchServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		handler, ok := m.handlers[r.URL.Path]
		m.hits[r.URL.Path]++
		m.mu.Unlock()
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle registers a raw handler for path.
func (m *MockTwitchServer) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = h
}

// Hits returns how many requests reached path.
func (m *MockTwitchServer) Hits(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

// MockUsers adds a handler for /helix/users that answers with the users whose login was requested.
// users maps login -> display name.
func (m *MockTwitchServer) MockUsers(users map[string]string) {
	m.Handle("/helix/users", func(w http.ResponseWriter, r *http.Request) {
		data := []map[string]string{}
		for _, login := range r.URL.Query()["login"] {
			login = strings.ToLower(login)
			if name, ok := users[login]; ok {
				data = append(data, map[string]string{"id": "id-" + login, "login": login, "display_name": name})
			}
		}
		writeJSON(w, map[string]interface{}{"data": data})
	})
}

// MockStreams adds a handler for /helix/streams reporting the given logins as live.
// live maps login -> display name; logins not requested are filtered out.
func (m *MockTwitchServer) MockStreams(live map[string]string) {
	m.Handle("/helix/streams", func(w http.ResponseWriter, r *http.Request) {
		data := []map[string]string{}
		for _, login := range r.URL.Query()["user_login"] {
			login = strings.ToLower(login)
			if name, ok := live[login]; ok {
				data = append(data, map[string]string{
					"user_login": login,
					"user_name":  name,
					"title":      name + " is live",
					"type":       "live",
					"started_at": "2024-10-15T14:30:00Z",
				})
			}
		}
		writeJSON(w, map[string]interface{}{"data": data})
	})
}

// MockOAuthToken adds a handler for the client-credentials token endpoint.
func (m *MockTwitchServer) MockOAuthToken(accessToken string, expiresIn int) {
	m.Handle("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		})
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}
