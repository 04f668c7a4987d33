package authbase

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes.
const (
	TokenExpirySession = 24 * time.Hour // session bearer tokens
	TokenExpiryReset   = 1 * time.Hour  // password reset tokens
)

// ResetTokenBytes is the entropy of a reset token (hex-encoded to 64 chars).
const ResetTokenBytes = 32

// TokenIssuer signs and verifies session bearer tokens. Tokens embed only
// the user ID; callers re-fetch the user at verification time.
type TokenIssuer struct {
	// SecretKey signs tokens (HS256). Required.
	SecretKey string

	// Issuer is the iss claim. Optional; verified when set.
	Issuer string

	// Expiry is the token lifetime. Defaults to TokenExpirySession.
	Expiry time.Duration
}

func (t *TokenIssuer) expiry() time.Duration {
	if t.Expiry > 0 {
		return t.Expiry
	}
	return TokenExpirySession
}

// Issue creates a signed session token for the given user ID and returns
// the token string and its expiry time.
func (t *TokenIssuer) Issue(userID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(t.expiry())

	claims := jwt.MapClaims{
		"sub":  userID,
		"type": "auth",
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}
	if t.Issuer != "" {
		claims["iss"] = t.Issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.SecretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the token's signature, expiry and type, and returns the
// embedded user ID. Nothing about an unverified token is ever trusted:
// malformed tokens, bad signatures and expired claims all fail here.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(t.SecretKey), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("token validation failed")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}
	if tokenType, ok := claims["type"].(string); !ok || tokenType != "auth" {
		return "", fmt.Errorf("invalid token type")
	}
	if t.Issuer != "" {
		if iss, ok := claims["iss"].(string); !ok || iss != t.Issuer {
			return "", fmt.Errorf("invalid issuer")
		}
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("missing subject")
	}
	return userID, nil
}

// GenerateResetToken creates a cryptographically random reset token and
// its SHA-256 hash. The plaintext goes to the user out-of-band exactly
// once; only the hash is ever stored.
func GenerateResetToken() (token, hash string, err error) {
	b := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token = hex.EncodeToString(b)
	return token, HashResetToken(token), nil
}

// HashResetToken computes the storable hash of a reset token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyResetToken reports whether the plaintext token matches the stored
// hash, in constant time.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashResetToken(token)), []byte(hash)) == 1
}
