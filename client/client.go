package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	auth "github.com/srijanm/authbase"
)

// APIError is a non-2xx response from the server, carrying the decoded
// error body when the server sent one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Field      string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithHTTPClient sets a custom HTTP client (for timeouts, TLS config, etc.)
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *AuthClient) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// AuthClient is a typed client for an authbase server. Login stores the
// session in the SessionStore; subsequent calls attach it automatically.
type AuthClient struct {
	mu         sync.Mutex
	serverURL  string
	store      SessionStore
	httpClient *http.Client
}

// NewAuthClient creates a client for the server at serverURL. A nil
// store means the session lives only for the lifetime of the process.
func NewAuthClient(serverURL string, store SessionStore, opts ...ClientOption) *AuthClient {
	// Normalize server URL so session lookups are stable.
	if u, err := url.Parse(serverURL); err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	if store == nil {
		store = NewMemorySessionStore()
	}

	c := &AuthClient{
		serverURL:  serverURL,
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServerURL returns the server URL this client is configured for
func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

// Token returns the stored session token, or "" when not logged in or
// the session has expired.
func (c *AuthClient) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.store.Load(c.serverURL)
	if err != nil {
		return "", err
	}
	if session == nil || session.Expired() {
		return "", nil
	}
	return session.Token, nil
}

// Transport returns an http.RoundTripper that signs requests with the
// client's stored session, for host apps calling protected endpoints
// with their own http.Client. Requests go out unsigned when no live
// session is stored. A nil base means http.DefaultTransport.
func (c *AuthClient) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &sessionTransport{client: c, base: base}
}

// sessionTransport resolves the token per request, so a re-login or a
// logout between requests takes effect without rebuilding the client.
type sessionTransport struct {
	client *AuthClient
	base   http.RoundTripper
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if token, err := t.client.Token(); err == nil && token != "" {
		// Clone so the caller's request stays untouched.
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return t.base.RoundTrip(req)
}

// Register creates a new account and stores the returned session.
func (c *AuthClient) Register(ctx context.Context, name, email, password string) (*auth.Session, error) {
	var session auth.Session
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, &session)
	if err != nil {
		return nil, err
	}
	if err := c.storeSession(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Login authenticates and stores the returned session.
func (c *AuthClient) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	var session auth.Session
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &session)
	if err != nil {
		return nil, err
	}
	if err := c.storeSession(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ForgotPassword asks the server to send a reset link. The server
// responds identically whether or not the email is registered.
func (c *AuthClient) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email}, nil)
}

// ResetPassword redeems a reset token for a new password and stores the
// fresh session.
func (c *AuthClient) ResetPassword(ctx context.Context, token, password string) (*auth.Session, error) {
	var session auth.Session
	err := c.do(ctx, http.MethodPost, "/auth/reset-password/"+url.PathEscape(token),
		map[string]string{"password": password}, &session)
	if err != nil {
		return nil, err
	}
	if err := c.storeSession(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Me fetches the current user's profile using the stored session.
func (c *AuthClient) Me(ctx context.Context) (*auth.Profile, error) {
	var profile auth.Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile updates name and/or email. Empty fields keep their
// current value.
func (c *AuthClient) UpdateProfile(ctx context.Context, name, email string) (*auth.Profile, error) {
	var profile auth.Profile
	err := c.do(ctx, http.MethodPut, "/user/profile", map[string]string{
		"name":  name,
		"email": email,
	}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ChangePassword changes the password of the logged-in user.
func (c *AuthClient) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return c.do(ctx, http.MethodPut, "/user/password", map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	}, nil)
}

// DeleteAccount deletes the logged-in user's account and forgets the
// stored session.
func (c *AuthClient) DeleteAccount(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/user/profile", nil, nil); err != nil {
		return err
	}
	return c.forgetSession()
}

// Logout tells the server to drop its session state and forgets the
// stored session.
func (c *AuthClient) Logout(ctx context.Context) error {
	// Best effort on the server side; the local session always goes.
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if dropErr := c.forgetSession(); dropErr != nil && err == nil {
		err = dropErr
	}
	return err
}

func (c *AuthClient) storeSession(session *auth.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := &StoredSession{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		SavedAt:   time.Now(),
	}
	if session.User != nil {
		stored.UserID = session.User.ID
		stored.UserEmail = session.User.Email
	}
	return c.store.Store(c.serverURL, stored)
}

func (c *AuthClient) forgetSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.Drop(c.serverURL)
}

// do sends one JSON request and decodes the response into out (when
// non-nil). Non-2xx responses come back as *APIError.
func (c *AuthClient) do(ctx context.Context, method, path string, body map[string]string, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, err := c.Token(); err == nil && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var decoded auth.AuthError
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil {
			apiErr.Code = decoded.Code
			apiErr.Message = decoded.Message
			apiErr.Field = decoded.Field
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
