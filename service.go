package authbase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session is the single well-typed artifact returned by every successful
// register/login/reset exchange: the public profile plus a signed bearer
// token. Nothing is persisted server-side for it; discarding the token is
// the only "logout" the core knows about.
type Session struct {
	User      *Profile  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ServiceConfig carries the knobs for NewService. Zero values get
// reasonable defaults from EnsureDefaults.
type ServiceConfig struct {
	// JWTSecretKey signs session tokens. Falls back to the
	// AUTHBASE_JWT_SECRET env var if empty.
	JWTSecretKey string

	// JWTIssuer is the iss claim on session tokens.
	JWTIssuer string

	// SessionExpiry is how long a session token is valid. Defaults to 24h.
	SessionExpiry time.Duration

	// ResetExpiry is the reset-token window. Defaults to 1h.
	ResetExpiry time.Duration

	// BaseURL is the public URL used in reset links.
	BaseURL string

	// Mailer delivers reset emails. Defaults to ConsoleMailer.
	Mailer Mailer

	// Hasher hashes passwords. Defaults to bcrypt.
	Hasher Hasher

	// Logger for structured logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Service is the auth orchestrator: the flow-level state machine tying the
// store, hasher, token issuer and mailer together. It holds no mutable
// state of its own - every request is independent and the store is the
// only point of serialization.
type Service struct {
	store       UserStore
	hasher      Hasher
	issuer      *TokenIssuer
	mailer      Mailer
	logger      *slog.Logger
	baseURL     string
	resetExpiry time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewService wires up a Service over the given store.
func NewService(store UserStore, config ServiceConfig) *Service {
	config.EnsureDefaults()
	return &Service{
		store:  store,
		hasher: config.Hasher,
		issuer: &TokenIssuer{
			SecretKey: config.JWTSecretKey,
			Issuer:    config.JWTIssuer,
			Expiry:    config.SessionExpiry,
		},
		mailer:      config.Mailer,
		logger:      config.Logger,
		baseURL:     strings.TrimSuffix(config.BaseURL, "/"),
		resetExpiry: config.ResetExpiry,
		now:         time.Now,
	}
}

// EnsureDefaults fills unset config fields with reasonable defaults.
func (c *ServiceConfig) EnsureDefaults() {
	if c.JWTSecretKey == "" {
		c.JWTSecretKey = strings.TrimSpace(os.Getenv("AUTHBASE_JWT_SECRET"))
	}
	if c.SessionExpiry <= 0 {
		c.SessionExpiry = TokenExpirySession
	}
	if c.ResetExpiry <= 0 {
		c.ResetExpiry = TokenExpiryReset
	}
	if c.Mailer == nil {
		c.Mailer = &ConsoleMailer{}
	}
	if c.Hasher == nil {
		c.Hasher = NewBcryptHasher()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.JWTSecretKey == "" {
		// An empty HMAC key would let anyone forge session tokens. Sign
		// with a process-local random key instead; sessions then die on
		// restart, which beats accepting forged ones.
		c.JWTSecretKey = randomSecretKey()
		c.Logger.Warn("no JWT secret configured; using an ephemeral signing key, sessions will not survive a restart")
	}
}

func randomSecretKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("reading random bytes for signing key: %v", err))
	}
	return hex.EncodeToString(b)
}

// Issuer exposes the token issuer for middleware that verifies bearer
// tokens without going through CurrentUser.
func (s *Service) Issuer() *TokenIssuer {
	return s.issuer
}

// Store exposes the underlying user store.
func (s *Service) Store() UserStore {
	return s.store
}

// Register creates a new account and logs it in. Returns ErrEmailExists
// when the (case-insensitive) email is already registered; the store's
// uniqueness constraint backstops concurrent registrations.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	email = NormalizeEmail(email)

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.now()
	user := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Role:         RoleUser,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.newSession(user)
}

// Login authenticates by email and password. Unknown email and wrong
// password return the identical ErrInvalidCredentials; a dummy hash is
// verified for unknown emails to level the response time.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.hasher.Verify(password, dummyPasswordHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.newSession(user)
}

// RequestPasswordReset mints a single-use reset token for the account,
// persists only its hash, and emails the plaintext link. A second request
// before the first is consumed supersedes the earlier token. If the email
// cannot be delivered the pending token is rolled back so no live token
// exists that the user never received.
//
// Unknown emails return ErrUserNotFound; the HTTP layer answers with the
// same generic response either way so this flow discloses no more than
// login does.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("request password reset: %w", err)
	}

	token, tokenHash, err := GenerateResetToken()
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}

	expiresAt := s.now().Add(s.resetExpiry)
	if err := s.store.SetResetToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.baseURL, token)
	mail := Email{
		To:      user.Email,
		Subject: "Password Reset Request",
		Body: fmt.Sprintf(
			"You requested a password reset. Please click on the link below to reset your password:\n%s\n\nIf you didn't request this, please ignore this email.",
			resetURL),
	}
	if err := s.mailer.Send(mail); err != nil {
		// Roll back: a valid-but-undelivered token must not stay live.
		if clearErr := s.store.ClearResetToken(ctx, user.ID); clearErr != nil {
			s.logger.Error("failed to roll back reset token", "user_id", user.ID, "error", clearErr)
		}
		s.logger.Warn("reset email delivery failed", "user_id", user.ID, "error", err)
		return ErrDeliveryFailed
	}

	s.logger.Info("password reset requested", "user_id", user.ID)
	return nil
}

// ResetPassword exchanges a presented reset token for a password rewrite
// and a fresh session. The lookup-and-clear is one conditional store
// update, so a token consumes exactly once even under concurrent
// submissions. Wrong, expired and superseded tokens are indistinguishable.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (*Session, error) {
	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}

	user, err := s.store.ConsumeResetToken(ctx, HashResetToken(token), s.now(), newHash)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("reset password: %w", err)
	}

	s.logger.Info("password reset completed", "user_id", user.ID)
	return s.newSession(user)
}

// CurrentUser verifies a session token and re-fetches the user from the
// store. The token's subject is the sole authorization input; a token for
// a since-deleted user fails with ErrInvalidToken.
func (s *Service) CurrentUser(ctx context.Context, token string) (*Profile, error) {
	userID, err := s.issuer.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("current user: %w", err)
	}
	return user.PublicProfile(), nil
}

// UpdateProfile changes the user's name and/or email. Empty arguments
// leave the corresponding field untouched.
func (s *Service) UpdateProfile(ctx context.Context, userID, name, email string) (*Profile, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if name != "" {
		user.Name = name
	}
	if email != "" {
		user.Email = NormalizeEmail(email)
	}
	user.UpdatedAt = s.now()

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user.PublicProfile(), nil
}

// ChangePassword rewrites the password for a logged-in user after
// verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	user.PasswordHash = newHash
	user.UpdatedAt = s.now()
	return s.store.UpdateUser(ctx, user)
}

// DeleteAccount removes the user's own account.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("account deleted", "user_id", userID)
	return nil
}

// EnsureOAuthUser finds or creates the account for an OAuth login. OAuth
// accounts carry no usable local password until one is set explicitly;
// their stored hash matches nothing.
func (s *Service) EnsureOAuthUser(ctx context.Context, provider, email, name string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("oauth login via %s returned no email", provider)
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		now := s.now()
		user = &User{
			ID:        uuid.NewString(),
			Name:      name,
			Email:     email,
			Role:      RoleUser,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			// Lost a race with a concurrent signup for the same email.
			if errors.Is(err, ErrEmailExists) {
				user, err = s.store.GetUserByEmail(ctx, email)
				if err != nil {
					return nil, fmt.Errorf("oauth login: %w", err)
				}
			} else {
				return nil, fmt.Errorf("oauth login: %w", err)
			}
		} else {
			s.logger.Info("user registered via oauth", "user_id", user.ID, "provider", provider)
		}
	} else if err != nil {
		return nil, fmt.Errorf("oauth login: %w", err)
	}

	return s.newSession(user)
}

func (s *Service) newSession(user *User) (*Session, error) {
	token, expiresAt, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return &Session{
		User:      user.PublicProfile(),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
