package authbase

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey string

const contextKeyUserID contextKey = "authbase_user_id"

// UserIDFromContext returns the authenticated user ID set by the
// middleware, or "" when the request is unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(contextKeyUserID); v != nil {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}

// SetUserIDInContext stashes the authenticated user ID in the context.
func SetUserIDInContext(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns "" when the header is absent or malformed.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Middleware authenticates requests by their bearer token. The token is
// only ever a pointer to an identity: the user is re-fetched from the
// store on every request, so deleted accounts lose access immediately
// even while their tokens are unexpired.
type Middleware struct {
	Service *Service

	// CookieName, when set, is also checked for a token so browser
	// clients can authenticate without an Authorization header.
	CookieName string

	Logger *slog.Logger
}

func (m *Middleware) token(r *http.Request) string {
	if token := BearerToken(r); token != "" {
		return token
	}
	if m.CookieName != "" {
		if cookie, err := r.Cookie(m.CookieName); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

func (m *Middleware) authenticate(r *http.Request) (string, bool) {
	token := m.token(r)
	if token == "" {
		return "", false
	}

	userID, err := m.Service.Issuer().Verify(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("token verification failed", "error", err)
		}
		return "", false
	}

	// Re-fetch so a token for a since-deleted user is rejected.
	if _, err := m.Service.Store().GetUserByID(r.Context(), userID); err != nil {
		return "", false
	}
	return userID, true
}

// ExtractUser sets the user ID in the request context when a valid token
// is present, and passes the request through either way.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := m.authenticate(r); ok {
			r = r.WithContext(SetUserIDInContext(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects unauthenticated requests with a 401.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.authenticate(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="authbase"`)
			writeJSON(w, http.StatusUnauthorized,
				NewAuthError(ErrCodeInvalidToken, "Not authorized to access this route. Please log in.", ""))
			return
		}
		next.ServeHTTP(w, r.WithContext(SetUserIDInContext(r.Context(), userID)))
	})
}

// RequireRole rejects requests whose user does not hold one of the given
// roles. Roles are re-read from the store, never taken from the token.
func (m *Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return m.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			user, err := m.Service.Store().GetUserByID(r.Context(), userID)
			if err != nil || !allowed[user.Role] {
				writeJSON(w, http.StatusForbidden,
					NewAuthError("forbidden", "You do not have permission to perform this action", ""))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
