package authbase

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// LocalAuth serves the username/password flows over HTTP. Request bodies
// may be JSON or form-encoded; responses are always JSON. Input shape is
// validated here, before anything reaches the Service.
type LocalAuth struct {
	Service *Service

	// OnSession, when set, is called with every freshly issued session
	// before the response is written (e.g. to mirror the token into a
	// cookie for browser clients).
	OnSession func(session *Session, w http.ResponseWriter, r *http.Request)

	// OnAuthError, when set, intercepts validation/auth failures (e.g.
	// to redirect browser clients). Return true to stop default handling.
	OnAuthError func(err *AuthError, w http.ResponseWriter, r *http.Request) bool
}

func (a *LocalAuth) writeSession(w http.ResponseWriter, r *http.Request, status int, session *Session) {
	if a.OnSession != nil {
		a.OnSession(session, w, r)
	}
	writeJSON(w, status, session)
}

// HandleRegister handles POST /auth/register.
func (a *LocalAuth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	creds, parseErr := parseCredentials(r, "name", "email", "password")
	if parseErr != nil {
		a.handleError(parseErr, w, r)
		return
	}
	if authErr := ValidateRegistration(creds); authErr != nil {
		a.handleError(authErr, w, r)
		return
	}

	session, err := a.Service.Register(r.Context(), creds.Name, creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			a.writeError(w, http.StatusConflict, NewAuthError(ErrCodeEmailExists, ErrEmailExists.Error(), "email"))
			return
		}
		a.writeServerError(w, r, err)
		return
	}

	a.writeSession(w, r, http.StatusCreated, session)
}

// HandleLogin handles POST /auth/login.
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	creds, parseErr := parseCredentials(r, "", "email", "password")
	if parseErr != nil {
		a.handleError(parseErr, w, r)
		return
	}
	if authErr := ValidateLogin(creds); authErr != nil {
		a.handleError(authErr, w, r)
		return
	}

	session, err := a.Service.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			a.writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidCreds, ErrInvalidCredentials.Error(), ""))
			return
		}
		a.writeServerError(w, r, err)
		return
	}

	a.writeSession(w, r, http.StatusOK, session)
}

// HandleForgotPassword handles POST /auth/forgot-password. The response
// is identical whether or not the email is registered, so this endpoint
// discloses no more than login does. Only a delivery failure surfaces.
func (a *LocalAuth) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	body, parseErr := parseBody(r)
	if parseErr != nil {
		a.handleError(parseErr, w, r)
		return
	}
	email := body["email"]
	if authErr := ValidateEmail(email); authErr != nil {
		a.handleError(authErr, w, r)
		return
	}

	err := a.Service.RequestPasswordReset(r.Context(), email)
	switch {
	case err == nil, errors.Is(err, ErrUserNotFound):
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "If that email is registered, a password reset link has been sent",
		})
	case errors.Is(err, ErrDeliveryFailed):
		a.writeError(w, http.StatusInternalServerError, NewAuthError(ErrCodeSendFailed, ErrDeliveryFailed.Error(), ""))
	default:
		a.writeServerError(w, r, err)
	}
}

// HandleResetPassword handles POST /auth/reset-password/{token}.
func (a *LocalAuth) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if token == "" {
		a.handleError(NewAuthError(ErrCodeMissingField, "Reset token is required", "token"), w, r)
		return
	}

	body, parseErr := parseBody(r)
	if parseErr != nil {
		a.handleError(parseErr, w, r)
		return
	}
	if authErr := ValidatePassword(body["password"]); authErr != nil {
		a.handleError(authErr, w, r)
		return
	}

	session, err := a.Service.ResetPassword(r.Context(), token, body["password"])
	if err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			a.writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeInvalidReset, ErrInvalidResetToken.Error(), "token"))
			return
		}
		a.writeServerError(w, r, err)
		return
	}

	a.writeSession(w, r, http.StatusOK, session)
}

// HandleCurrentUser handles GET /auth/me. An identity already installed
// by the middleware (header or cookie token) wins; otherwise the bearer
// header is verified directly.
func (a *LocalAuth) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		user, err := a.Service.Store().GetUserByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				a.writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidToken, ErrInvalidToken.Error(), ""))
				return
			}
			a.writeServerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user.PublicProfile())
		return
	}

	token := BearerToken(r)
	if token == "" {
		a.writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidToken, "Not authorized to access this route. Please log in.", ""))
		return
	}

	profile, err := a.Service.CurrentUser(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			a.writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidToken, ErrInvalidToken.Error(), ""))
			return
		}
		a.writeServerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateProfile handles PUT /user/profile. Requires the Bearer
// middleware to have authenticated the request.
func (a *LocalAuth) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		a.writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidToken, "Authentication required", ""))
		return
	}

	body, parseErr := parseBody(r)
	if parseErr != nil {
		a.handleError(parseErr, w, r)
		return
	}
	if email := body["email"]; email != "" && !emailRegex.MatchString(email) {
		a.handleError(NewAuthError(ErrCodeInvalidEmail, "Please include a valid email", "email"), w, r)
		return
	}

	profile, err := a.Service.UpdateProfile(r.Context(), userID, body["name"], body["email"])
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailExists):
			a.writeError(w, http.StatusConflict, NewAuthError(ErrCodeEmailExists, ErrEmailExists.Error(), "email"))
		case errors.Is(err, ErrUserNotFound):
			a.writeError(w, http.StatusNotFound, NewAuthError(ErrCodeInvalidToken, "User not found", ""))
		default:
			a.writeServerError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// HandleChangePassword handles PUT /user/password.
func (a *LocalAuth) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		a.writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidToken, "Authentication required", ""))
		return
	}

	body, parseErr := parseBody(r)
	if parseErr != nil {
		a.handleError(parseErr, w, r)
		return
	}
	if body["current_password"] == "" {
		a.handleError(NewAuthError(ErrCodeMissingField, "Current password is required", "current_password"), w, r)
		return
	}
	if authErr := ValidatePassword(body["new_password"]); authErr != nil {
		authErr.Field = "new_password"
		a.handleError(authErr, w, r)
		return
	}

	err := a.Service.ChangePassword(r.Context(), userID, body["current_password"], body["new_password"])
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			a.writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidCreds, "Current password is incorrect", "current_password"))
		case errors.Is(err, ErrUserNotFound):
			a.writeError(w, http.StatusNotFound, NewAuthError(ErrCodeInvalidToken, "User not found", ""))
		default:
			a.writeServerError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Password updated successfully"})
}

// HandleDeleteAccount handles DELETE /user/profile.
func (a *LocalAuth) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		a.writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidToken, "Authentication required", ""))
		return
	}

	if err := a.Service.DeleteAccount(r.Context(), userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			a.writeError(w, http.StatusNotFound, NewAuthError(ErrCodeInvalidToken, "User not found", ""))
			return
		}
		a.writeServerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "User account deleted successfully"})
}

func (a *LocalAuth) handleError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnAuthError != nil && a.OnAuthError(err, w, r) {
		return
	}
	a.writeError(w, http.StatusBadRequest, err)
}

func (a *LocalAuth) writeError(w http.ResponseWriter, status int, err *AuthError) {
	writeJSON(w, status, err)
}

func (a *LocalAuth) writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	a.Service.logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, NewAuthError("server_error", "Internal server error", ""))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseBody reads a JSON or form body into a flat string map.
func parseBody(r *http.Request) (map[string]string, *AuthError) {
	out := map[string]string{}
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, NewAuthError(ErrCodeParseError, "Error parsing form", "")
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				out[key] = values[0]
			}
		}
		return out, nil
	}

	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
		return nil, NewAuthError(ErrCodeParseError, "Invalid post body", "")
	}
	for key, value := range data {
		if s, ok := value.(string); ok {
			out[key] = s
		}
	}
	return out, nil
}

func parseCredentials(r *http.Request, nameField, emailField, passwordField string) (*Credentials, *AuthError) {
	body, err := parseBody(r)
	if err != nil {
		return nil, err
	}
	creds := &Credentials{
		Email:    body[emailField],
		Password: body[passwordField],
	}
	if nameField != "" {
		creds.Name = body[nameField]
	}
	return creds, nil
}
