// Package authbase implements the credential and reset-token lifecycle for
// username/password plus OAuth authentication in Go web applications.
//
// Authbase centers on a single Service (the auth orchestrator) that ties
// together four smaller pieces:
//
// UserStore: the persistent record of identities - name, normalized email,
// password hash, role, and pending reset-token state. Implementations live
// under stores/ (file-based for development, GORM and Google Cloud Datastore
// for production).
//
// Hasher: one-way salted password hashing (bcrypt). Verification never
// errors for a wrong password - it simply reports a mismatch.
//
// TokenIssuer: signed short-lived bearer tokens (JWT, HS256) carrying only
// the user ID. Verification re-fetches the user from the store; no claims
// beyond the subject are ever trusted.
//
// Reset tokens: single-use, time-boxed secrets for password recovery. Only
// the SHA-256 hash of a reset token is persisted; consuming a token is a
// single conditional store update so concurrent submissions cannot both
// succeed.
//
// # Basic Usage
//
// Wire a Service from a store, then mount the HTTP handlers:
//
//	import (
//	    "github.com/srijanm/authbase"
//	    "github.com/srijanm/authbase/stores/fs"
//	)
//
//	store := fs.NewFSUserStore("/path/to/storage")
//	svc := authbase.NewService(store, authbase.ServiceConfig{
//	    JWTSecretKey: "change-me",
//	    BaseURL:      "https://yourapp.com",
//	    Mailer:       &authbase.ConsoleMailer{},
//	})
//
//	router := authbase.NewRouter(svc, authbase.RouterConfig{})
//	http.ListenAndServe(":8080", router)
//
// The router exposes register, login, forgot-password, reset-password,
// current-user and profile endpoints; see routes.go for the full table.
//
// # Security
//
// Passwords are hashed with bcrypt at default cost. Reset tokens are
// 32 random bytes, hex-encoded; the plaintext is returned exactly once for
// out-of-band delivery and only its hash is stored, with a one hour expiry.
// Login failures and invalid reset tokens produce deliberately generic
// errors so account existence cannot be probed. Session tokens carry no
// revocation mechanism; a leaked token stays valid until expiry.
//
// # Testing
//
// Handlers are testable with httptest against the file-based store; tests
// use temporary directories for isolation.
package authbase
