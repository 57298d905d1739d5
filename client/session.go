// Package client is the consumer-side session manager for the wordtrail
// auth API. It holds the access token in memory, keeps the refresh token
// exclusively in an in-process cookie jar, proactively refreshes before
// expiry and restores identity after a restart.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnauthenticated is returned when no valid session can be
	// established or restored.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRateLimited is returned when the server throttles the request.
	ErrRateLimited = errors.New("rate limited")
)

// User is the sanitized account identity held by the session manager.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Config holds session manager configuration.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:3000".
	BaseURL string
	// RefreshBuffer is how close to expiry the access token may get
	// before a request triggers a proactive refresh.
	RefreshBuffer time.Duration
	// RefreshInterval is the cadence of the background refresher, kept
	// well inside the access token TTL so idle sessions stay alive.
	RefreshInterval time.Duration
	// HTTPClient overrides the transport; a cookie jar is always attached.
	HTTPClient *http.Client
}

// SessionManager manages the client side of the session lifecycle.
type SessionManager struct {
	http    *http.Client
	baseURL string
	buffer  time.Duration

	mu           sync.RWMutex
	accessToken  string
	accessExpiry time.Time
	user         *User

	// sf collapses concurrent refresh and restore calls into one HTTP
	// request, so a double-invoked startup path cannot race two
	// conflicting rotations.
	sf singleflight.Group

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a SessionManager. The refresh token only ever lives in the
// attached cookie jar; it is never exposed or written anywhere else.
func New(config Config) (*SessionManager, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.RefreshBuffer <= 0 {
		config.RefreshBuffer = 30 * time.Second
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = 5 * time.Minute
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	m := &SessionManager{
		http:    httpClient,
		baseURL: config.BaseURL,
		buffer:  config.RefreshBuffer,
		stop:    make(chan struct{}),
	}
	go m.autoRefresh(config.RefreshInterval)
	return m, nil
}

// Close stops the background refresher.
func (m *SessionManager) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

// User returns the current identity, or nil when signed out.
func (m *SessionManager) User() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// AccessToken returns the held access token. Empty when signed out.
func (m *SessionManager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

type sessionPayload struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Register creates a new account and signs it in.
func (m *SessionManager) Register(ctx context.Context, email, password, displayName string) (*User, error) {
	body := map[string]string{"email": email, "password": password}
	if displayName != "" {
		body["display_name"] = displayName
	}
	return m.startSession(ctx, "/api/v1/auth/register", body, http.StatusCreated)
}

// Login signs in with credentials.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*User, error) {
	body := map[string]string{"email": email, "password": password}
	return m.startSession(ctx, "/api/v1/auth/login", body, http.StatusOK)
}

func (m *SessionManager) startSession(ctx context.Context, path string, body any, wantStatus int) (*User, error) {
	resp, err := m.postJSON(ctx, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, wantStatus); err != nil {
		return nil, err
	}

	var payload sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}

	m.setSession(payload.User, payload.AccessToken)
	return m.User(), nil
}

// Refresh exchanges the refresh cookie for a new access token. Concurrent
// callers share one request.
func (m *SessionManager) Refresh(ctx context.Context) error {
	_, err, _ := m.sf.Do("refresh", func() (any, error) {
		return nil, m.refresh(ctx)
	})
	return err
}

func (m *SessionManager) refresh(ctx context.Context) error {
	resp, err := m.postJSON(ctx, "/api/v1/auth/refresh", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return err
	}

	var payload sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}

	m.mu.Lock()
	m.accessToken = payload.AccessToken
	m.accessExpiry = tokenExpiry(payload.AccessToken)
	m.mu.Unlock()
	return nil
}

// Restore re-establishes identity from the held access token, refreshing
// first when no token survived (e.g. after a reload the cookie is all that
// is left). Duplicate concurrent invocations collapse to one call chain.
func (m *SessionManager) Restore(ctx context.Context) (*User, error) {
	v, err, _ := m.sf.Do("restore", func() (any, error) {
		return m.restore(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*User), nil
}

func (m *SessionManager) restore(ctx context.Context) (*User, error) {
	if m.AccessToken() == "" || m.nearExpiry() {
		if err := m.refresh(ctx); err != nil {
			return nil, ErrUnauthenticated
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/api/v1/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+m.AccessToken())

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}

	m.mu.Lock()
	m.user = &user
	m.mu.Unlock()
	return &user, nil
}

// Logout invalidates the session server-side and forgets the local state.
func (m *SessionManager) Logout(ctx context.Context) error {
	resp, err := m.postJSON(ctx, "/api/v1/auth/logout", nil)
	if err == nil {
		resp.Body.Close()
	}

	m.mu.Lock()
	m.accessToken = ""
	m.accessExpiry = time.Time{}
	m.user = nil
	m.mu.Unlock()
	return err
}

// Do performs an authenticated API request. The held access token is
// refreshed first when near expiry; on a 401 response exactly one
// refresh-and-retry cycle runs, and a second 401 propagates as
// ErrUnauthenticated.
func (m *SessionManager) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if m.nearExpiry() {
		if err := m.Refresh(ctx); err != nil {
			log.Printf("[client] proactive refresh failed: %v", err)
		}
	}

	resp, err := m.doOnce(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if err := m.Refresh(ctx); err != nil {
		return nil, ErrUnauthenticated
	}

	resp, err = m.doOnce(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, ErrUnauthenticated
	}
	return resp, nil
}

func (m *SessionManager) doOnce(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := m.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return m.http.Do(req)
}

// autoRefresh keeps idle sessions alive by refreshing on a timer.
func (m *SessionManager) autoRefresh(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if m.AccessToken() == "" {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := m.Refresh(ctx); err != nil {
				log.Printf("[client] background refresh failed: %v", err)
			}
			cancel()
		}
	}
}

func (m *SessionManager) setSession(user User, accessToken string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = &user
	m.accessToken = accessToken
	m.accessExpiry = tokenExpiry(accessToken)
}

func (m *SessionManager) nearExpiry() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.accessToken == "" || m.accessExpiry.IsZero() {
		return false
	}
	return time.Until(m.accessExpiry) <= m.buffer
}

func (m *SessionManager) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return m.http.Do(req)
}

// tokenExpiry reads the expiry claim without verifying the signature; the
// client only uses it to schedule refreshes, never to trust the token.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func checkStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}

	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &envelope)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if envelope.Message != "" {
			return fmt.Errorf("api error %d: %s", resp.StatusCode, envelope.Message)
		}
		return fmt.Errorf("api error %d", resp.StatusCode)
	}
}
