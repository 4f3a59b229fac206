package twitchapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the Twitch client-credentials endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// AppToken yields an app access token for Helix calls.
type AppToken interface {
	Get(ctx context.Context) (string, error)
}

// TokenSource fetches and caches a Twitch app access (client credentials) token.
// Refreshes run on the caller's context, so a hung token endpoint never
// outlives the command or poll tick waiting on it.
// NOTE: This token CANNOT be used for IRC chat; chat requires a user (bot) OAuth token with chat:read/chat:edit scopes.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTPClient   *http.Client // defaults to a client with a 10s timeout

	once sync.Once
	cc   *clientcredentials.Config
	sem  chan struct{} // held by the caller doing a refresh

	mu  sync.Mutex
	tok *oauth2.Token
}

var defaultTokenHTTPClient = &http.Client{Timeout: 10 * time.Second}

func (ts *TokenSource) init() {
	url := ts.TokenURL
	if url == "" {
		url = DefaultTokenURL
	}
	ts.cc = &clientcredentials.Config{
		ClientID:     ts.ClientID,
		ClientSecret: ts.ClientSecret,
		TokenURL:     url,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ts.sem = make(chan struct{}, 1)
}

func (ts *TokenSource) cached() (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.tok.Valid() {
		return ts.tok.AccessToken, true
	}
	return "", false
}

// Get returns a valid (fresh or cached) app access token.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", errors.New("missing client id/secret for twitch app token")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ts.once.Do(ts.init)
	if tok, ok := ts.cached(); ok {
		return tok, nil
	}

	select {
	case ts.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-ts.sem }()
	// Another caller may have refreshed while we waited.
	if tok, ok := ts.cached(); ok {
		return tok, nil
	}

	hc := ts.HTTPClient
	if hc == nil {
		hc = defaultTokenHTTPClient
	}
	tok, err := ts.cc.Token(context.WithValue(ctx, oauth2.HTTPClient, hc))
	if err != nil {
		return "", fmt.Errorf("fetch twitch app token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access_token in twitch response")
	}
	ts.mu.Lock()
	ts.tok = tok
	ts.mu.Unlock()
	return tok.AccessToken, nil
}

// StaticToken is an AppToken that always returns the same value.
type StaticToken string

func (s StaticToken) Get(context.Context) (string, error) { return string(s), nil }
