package oauth2_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/srijanm/authbase/oauth2"
	oauth2lib "golang.org/x/oauth2"
)

// mockOAuthServer stands in for the provider: it serves the token
// exchange and the userinfo document.
type mockOAuthServer struct {
	server *httptest.Server

	tokenResponse    map[string]any
	userInfoResponse map[string]any
	tokenError       bool
	userInfoError    bool
}

func newMockOAuthServer() *mockOAuthServer {
	mock := &mockOAuthServer{
		tokenResponse: map[string]any{
			"access_token": "mock_access_token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		},
		userInfoResponse: map[string]any{
			"id":    "12345",
			"email": "testuser@example.com",
			"name":  "Test User",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if mock.tokenError {
			http.Error(w, "token exchange failed", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.tokenResponse)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if mock.userInfoError {
			http.Error(w, "user info failed", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.userInfoResponse)
	})

	mock.server = httptest.NewServer(mux)
	return mock
}

func (m *mockOAuthServer) Close() {
	m.server.Close()
}

func newTestProvider(t *testing.T, mock *mockOAuthServer, handleUser oauth2.HandleUserFunc) *oauth2.GithubOAuth2 {
	t.Helper()
	p := oauth2.NewGithubOAuth2("test-client-id", "test-client-secret", "http://localhost:8080/callback", handleUser)
	p.Config().Endpoint = oauth2lib.Endpoint{
		AuthURL:  mock.server.URL + "/auth",
		TokenURL: mock.server.URL + "/token",
	}
	p.UserInfoURL = mock.server.URL + "/userinfo"
	return p
}

func TestRedirect(t *testing.T) {
	mock := newMockOAuthServer()
	defer mock.Close()
	provider := newTestProvider(t, mock, nil)

	req := httptest.NewRequest(http.MethodGet, "/?callbackURL=/dashboard", nil)
	rr := httptest.NewRecorder()
	provider.ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("Expected status %d, got %d", http.StatusFound, rr.Code)
	}

	location := rr.Header().Get("Location")
	if !strings.HasPrefix(location, mock.server.URL+"/auth") {
		t.Errorf("Expected redirect to OAuth provider, got: %s", location)
	}
	parsedURL, err := url.Parse(location)
	if err != nil {
		t.Fatalf("Failed to parse redirect URL: %v", err)
	}
	query := parsedURL.Query()
	if query.Get("client_id") != "test-client-id" {
		t.Errorf("Expected client_id in URL, got %q", query.Get("client_id"))
	}
	if query.Get("state") == "" {
		t.Errorf("Expected state parameter in URL")
	}

	var foundState, foundCallback bool
	for _, cookie := range rr.Result().Cookies() {
		switch cookie.Name {
		case "oauthstate":
			foundState = true
			if cookie.Value != query.Get("state") {
				t.Errorf("State cookie %q does not match URL state %q", cookie.Value, query.Get("state"))
			}
		case "oauthCallbackURL":
			foundCallback = true
			if cookie.Value != "/dashboard" {
				t.Errorf("Expected callback cookie /dashboard, got %q", cookie.Value)
			}
		}
	}
	if !foundState {
		t.Errorf("Expected oauthstate cookie to be set")
	}
	if !foundCallback {
		t.Errorf("Expected oauthCallbackURL cookie to be set")
	}
}

func TestCallback(t *testing.T) {
	t.Run("successful exchange calls HandleUser", func(t *testing.T) {
		mock := newMockOAuthServer()
		defer mock.Close()

		var gotProvider string
		var gotUserInfo map[string]any
		provider := newTestProvider(t, mock, func(name string, token *oauth2lib.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
			gotProvider = name
			gotUserInfo = userInfo
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/callback/?state=abc&code=testcode", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "abc"})
		rr := httptest.NewRecorder()
		provider.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
		}
		if gotProvider != "github" {
			t.Errorf("Expected provider github, got %q", gotProvider)
		}
		if gotUserInfo["email"] != "testuser@example.com" {
			t.Errorf("Expected userinfo email, got %v", gotUserInfo["email"])
		}
	})

	t.Run("missing state cookie rejected", func(t *testing.T) {
		mock := newMockOAuthServer()
		defer mock.Close()
		provider := newTestProvider(t, mock, nil)

		req := httptest.NewRequest(http.MethodGet, "/callback/?state=abc&code=testcode", nil)
		rr := httptest.NewRecorder()
		provider.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
		}
	})

	t.Run("state mismatch rejected", func(t *testing.T) {
		mock := newMockOAuthServer()
		defer mock.Close()
		provider := newTestProvider(t, mock, nil)

		req := httptest.NewRequest(http.MethodGet, "/callback/?state=evil&code=testcode", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "abc"})
		rr := httptest.NewRecorder()
		provider.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
		}
	})

	t.Run("failed exchange redirects to failure URL", func(t *testing.T) {
		mock := newMockOAuthServer()
		defer mock.Close()
		mock.tokenError = true
		provider := newTestProvider(t, mock, nil)

		req := httptest.NewRequest(http.MethodGet, "/callback/?state=abc&code=testcode", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "abc"})
		rr := httptest.NewRecorder()
		provider.ServeHTTP(rr, req)

		if rr.Code != http.StatusTemporaryRedirect {
			t.Fatalf("Expected status %d, got %d", http.StatusTemporaryRedirect, rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/auth/github/fail/" {
			t.Errorf("Expected failure redirect, got %q", loc)
		}
	})
}

func TestCallbackTarget(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/callback/", nil)
	if got := oauth2.CallbackTarget(req); got != "" {
		t.Errorf("Expected empty target without cookie, got %q", got)
	}
	req.AddCookie(&http.Cookie{Name: "oauthCallbackURL", Value: "/dashboard"})
	if got := oauth2.CallbackTarget(req); got != "/dashboard" {
		t.Errorf("Expected /dashboard, got %q", got)
	}
}
