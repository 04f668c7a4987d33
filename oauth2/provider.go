// Package oauth2 provides pluggable OAuth2 login providers (Google,
// GitHub) that mount under an auth router. Each provider serves two
// endpoints relative to its mount point: "/" redirects the browser to
// the provider's consent page, and "/callback/" completes the code
// exchange and hands the verified user info to a HandleUserFunc.
package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// HandleUserFunc receives the provider name, the exchanged token and the
// decoded userinfo document after a successful OAuth callback. The
// callback URL requested by the client (if any) is available via the
// CallbackTarget helper.
type HandleUserFunc func(provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request)

const (
	stateCookieName    = "oauthstate"
	callbackCookieName = "oauthCallbackURL"
)

// Provider is the common machinery shared by all OAuth2 providers. The
// concrete providers (Google, GitHub) embed it and supply the endpoint,
// scopes and userinfo fetcher.
type Provider struct {
	// Name identifies the provider ("google", "github") in logs and in
	// calls to HandleUser.
	Name string

	// HandleUser is invoked after a successful code exchange.
	HandleUser HandleUserFunc

	// FailureURL is where the browser is sent when the exchange or the
	// userinfo fetch fails. Defaults to "/auth/<name>/fail/".
	FailureURL string

	// Client is the HTTP client used for userinfo requests. Defaults to
	// http.DefaultClient. Overridable for tests.
	Client *http.Client

	config    oauth2.Config
	fetchUser func(ctx context.Context, client *http.Client, token *oauth2.Token) (map[string]any, error)
	mux       *http.ServeMux
	logger    *slog.Logger
}

func newProvider(name string, config oauth2.Config, handleUser HandleUserFunc) *Provider {
	p := &Provider{
		Name:       name,
		HandleUser: handleUser,
		FailureURL: "/auth/" + name + "/fail/",
		config:     config,
		mux:        http.NewServeMux(),
		logger:     slog.Default().With("provider", name),
	}
	p.mux.HandleFunc("/", p.handleRedirect)
	p.mux.HandleFunc("/callback/", p.handleCallback)
	return p
}

func (p *Provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// Config exposes the underlying oauth2 config, e.g. to override the
// endpoint in tests.
func (p *Provider) Config() *oauth2.Config {
	return &p.config
}

// handleRedirect starts the flow: it drops a random state cookie,
// remembers where the client wants to land afterwards, and sends the
// browser to the provider's consent page.
func (p *Provider) handleRedirect(w http.ResponseWriter, r *http.Request) {
	if target := r.URL.Query().Get("callbackURL"); target != "" {
		http.SetCookie(w, &http.Cookie{
			Name:    callbackCookieName,
			Value:   target,
			Path:    "/",
			Expires: time.Now().Add(2 * time.Minute),
			MaxAge:  120, // keep this short
		})
	}
	state := newStateCookie(w)
	http.Redirect(w, r, p.config.AuthCodeURL(state), http.StatusFound)
}

func (p *Provider) handleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, _ := r.Cookie(stateCookieName)
	if stateCookie == nil {
		http.Error(w, "missing oauth state", http.StatusBadRequest)
		return
	}
	if r.FormValue("state") != stateCookie.Value {
		http.SetCookie(w, &http.Cookie{Name: stateCookieName, MaxAge: -1})
		p.logger.Warn("oauth state mismatch")
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}

	token, err := p.config.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		p.logger.Warn("code exchange failed", "error", err)
		http.Redirect(w, r, p.FailureURL, http.StatusTemporaryRedirect)
		return
	}

	userInfo, err := p.fetchUser(r.Context(), p.httpClient(), token)
	if err != nil {
		p.logger.Warn("userinfo fetch failed", "error", err)
		http.Redirect(w, r, p.FailureURL, http.StatusTemporaryRedirect)
		return
	}

	p.HandleUser(p.Name, token, userInfo, w, r)
}

func (p *Provider) httpClient() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

// CallbackTarget returns the redirect target the client asked for when
// it started the flow, or "" when none was recorded.
func CallbackTarget(r *http.Request) string {
	cookie, err := r.Cookie(callbackCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func newStateCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:    stateCookieName,
		Value:   state,
		Path:    "/",
		Expires: time.Now().Add(time.Hour),
	})
	return state
}
