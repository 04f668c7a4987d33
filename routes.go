package authbase

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// CookieName is the cookie the session token is mirrored into for
	// browser clients (OAuth redirects land here, not in an API body).
	// Defaults to "authToken".
	CookieName string

	// CookieDomain scopes the token cookie. Empty means host-only.
	CookieDomain string

	// Session, when set, also records the logged-in user ID in a
	// server-side session (scs). Optional; API-only deployments skip it.
	Session *scs.SessionManager
}

func (c *RouterConfig) EnsureDefaults() {
	if c.CookieName == "" {
		c.CookieName = "authToken"
	}
}

// Router mounts the auth endpoints on a gorilla/mux router:
//
//	POST   /auth/register
//	POST   /auth/login
//	POST   /auth/forgot-password
//	POST   /auth/reset-password/{token}
//	GET    /auth/me
//	POST   /auth/logout
//	PUT    /user/profile
//	PUT    /user/password
//	DELETE /user/profile
//
// OAuth providers are mounted under /auth/{provider}/ via AddProvider.
type Router struct {
	*mux.Router

	service *Service
	local   *LocalAuth
	mw      *Middleware
	config  RouterConfig
}

// NewRouter builds the route table for the given service.
func NewRouter(service *Service, config RouterConfig) *Router {
	config.EnsureDefaults()

	r := &Router{
		Router:  mux.NewRouter(),
		service: service,
		local:   &LocalAuth{Service: service},
		mw: &Middleware{
			Service:    service,
			CookieName: config.CookieName,
			Logger:     service.logger,
		},
		config: config,
	}

	r.local.OnSession = func(session *Session, w http.ResponseWriter, req *http.Request) {
		r.setTokenCookie(w, req, session)
	}

	r.HandleFunc("/auth/register", r.local.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", r.local.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/forgot-password", r.local.HandleForgotPassword).Methods(http.MethodPost)
	r.HandleFunc("/auth/reset-password/{token}", r.local.HandleResetPassword).Methods(http.MethodPost)
	r.Handle("/auth/me", r.mw.ExtractUser(http.HandlerFunc(r.local.HandleCurrentUser))).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout", r.handleLogout).Methods(http.MethodPost, http.MethodGet)

	protected := r.PathPrefix("/user").Subrouter()
	protected.Use(r.mw.RequireUser)
	protected.HandleFunc("/profile", r.local.HandleCurrentUser).Methods(http.MethodGet)
	protected.HandleFunc("/profile", r.local.HandleUpdateProfile).Methods(http.MethodPut)
	protected.HandleFunc("/password", r.local.HandleChangePassword).Methods(http.MethodPut)
	protected.HandleFunc("/profile", r.local.HandleDeleteAccount).Methods(http.MethodDelete)

	return r
}

// Middleware returns the bearer-token middleware so host apps can protect
// their own routes with it.
func (r *Router) Middleware() *Middleware {
	return r.mw
}

// AddProvider mounts an OAuth provider's handler under /auth/{name}/.
// The provider calls back into CompleteOAuth on success.
func (r *Router) AddProvider(name string, handler http.Handler) *Router {
	prefix := "/auth/" + name
	r.PathPrefix(prefix + "/").Handler(http.StripPrefix(prefix, handler))
	return r
}

// CompleteOAuth finishes an OAuth login: it ensures the account exists,
// sets the token cookie and redirects the browser to target ("/" when
// empty). Intended as the HandleUserFunc for oauth2 providers.
func (r *Router) CompleteOAuth(w http.ResponseWriter, req *http.Request, provider, email, name, target string) {
	session, err := r.service.EnsureOAuthUser(req.Context(), provider, email, name)
	if err != nil {
		r.service.logger.Warn("oauth login failed", "provider", provider, "error", err)
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	r.setTokenCookie(w, req, session)
	if target == "" {
		target = "/"
	}
	http.Redirect(w, req, target, http.StatusFound)
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if r.config.Session != nil {
		if err := r.config.Session.Clear(req.Context()); err != nil {
			r.service.logger.Warn("error clearing session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:    r.config.CookieName,
		Value:   "",
		Domain:  r.config.CookieDomain,
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Now(),
	})

	// Logout when already logged out is a no-op, not an error.
	if to := req.URL.Query().Get("to"); to != "" {
		http.Redirect(w, req, to, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

func (r *Router) setTokenCookie(w http.ResponseWriter, req *http.Request, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     r.config.CookieName,
		Value:    session.Token,
		Domain:   r.config.CookieDomain,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if r.config.Session != nil {
		r.config.Session.Put(req.Context(), "loggedInUserId", session.User.ID)
	}
}
