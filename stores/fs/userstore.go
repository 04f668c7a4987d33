// Package fs implements the authbase.UserStore on top of plain JSON
// files. It is meant for development, demos and small single-process
// deployments; use the gorm or gae stores when several processes share
// the data.
package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	auth "github.com/srijanm/authbase"
)

// fsUser is the on-disk representation of a user. Unlike auth.User it
// serializes the password hash and reset-token state too.
type fsUser struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         auth.Role  `json:"role"`
	PasswordHash string     `json:"password_hash"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ResetHash    string     `json:"reset_token_hash,omitempty"`
	ResetExpiry  *time.Time `json:"reset_token_expiry,omitempty"`
}

// indexEntry maps a lookup key (normalized email, reset-token hash) back
// to the owning user ID.
type indexEntry struct {
	UserID string `json:"user_id"`
}

// FSUserStore implements auth.UserStore using filesystem storage.
//
// # File Structure
//
//	{StoragePath}/
//	├── users/
//	│   └── {userID}.json      # full user record
//	├── emails/
//	│   └── {email}.json       # {"user_id": "..."} uniqueness index
//	└── resets/
//	    └── {tokenHash}.json   # {"user_id": "..."} pending reset index
//
// # Concurrency Model
//
// A single mutex serializes every operation, which is what makes email
// uniqueness checks and ConsumeResetToken atomic. The atomic file write
// (write to temp, rename) additionally guards against partial writes.
type FSUserStore struct {
	StoragePath string

	mu sync.Mutex
}

// NewFSUserStore creates a filesystem-backed UserStore rooted at storagePath.
func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) userPath(id string) string {
	return filepath.Join(s.StoragePath, "users", id+".json")
}

func (s *FSUserStore) emailPath(email string) string {
	return filepath.Join(s.StoragePath, "emails", auth.NormalizeEmail(email)+".json")
}

func (s *FSUserStore) resetPath(tokenHash string) string {
	return filepath.Join(s.StoragePath, "resets", tokenHash+".json")
}

func (s *FSUserStore) readUser(id string) (*fsUser, error) {
	data, err := os.ReadFile(s.userPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Not found
		}
		return nil, err
	}
	var record fsUser
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *FSUserStore) writeUser(record *fsUser) error {
	path := s.userPath(record.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

func (s *FSUserStore) readIndex(path string) (*indexEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry indexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *FSUserStore) writeIndex(path, userID string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(indexEntry{UserID: userID})
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

func (s *FSUserStore) removeIndex(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func toAuthUser(record *fsUser) *auth.User {
	return &auth.User{
		ID:               record.ID,
		Name:             record.Name,
		Email:            record.Email,
		Role:             record.Role,
		PasswordHash:     record.PasswordHash,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
		ResetTokenHash:   record.ResetHash,
		ResetTokenExpiry: record.ResetExpiry,
	}
}

func fromAuthUser(user *auth.User) *fsUser {
	return &fsUser{
		ID:           user.ID,
		Name:         user.Name,
		Email:        auth.NormalizeEmail(user.Email),
		Role:         user.Role,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
		ResetHash:    user.ResetTokenHash,
		ResetExpiry:  user.ResetTokenExpiry,
	}
}

func (s *FSUserStore) CreateUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readIndex(s.emailPath(user.Email))
	if err != nil {
		return err
	}
	if existing != nil {
		return auth.ErrEmailExists
	}

	record := fromAuthUser(user)
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if err := s.writeUser(record); err != nil {
		return err
	}
	if err := s.writeIndex(s.emailPath(record.Email), record.ID); err != nil {
		// Roll the user file back so a retry is not blocked by a
		// half-created account.
		os.Remove(s.userPath(record.ID))
		return err
	}
	user.Email = record.Email
	user.CreatedAt = record.CreatedAt
	user.UpdatedAt = record.UpdatedAt
	return nil
}

func (s *FSUserStore) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readUser(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, auth.ErrUserNotFound
	}
	return toAuthUser(record), nil
}

func (s *FSUserStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getByEmailLocked(email)
}

func (s *FSUserStore) getByEmailLocked(email string) (*auth.User, error) {
	entry, err := s.readIndex(s.emailPath(email))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, auth.ErrUserNotFound
	}
	record, err := s.readUser(entry.UserID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// Stale index entry pointing at a removed user.
		return nil, auth.ErrUserNotFound
	}
	return toAuthUser(record), nil
}

func (s *FSUserStore) UpdateUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readUser(user.ID)
	if err != nil {
		return err
	}
	if record == nil {
		return auth.ErrUserNotFound
	}

	newEmail := auth.NormalizeEmail(user.Email)
	if newEmail != record.Email {
		entry, err := s.readIndex(s.emailPath(newEmail))
		if err != nil {
			return err
		}
		if entry != nil && entry.UserID != user.ID {
			return auth.ErrEmailExists
		}
		if err := s.writeIndex(s.emailPath(newEmail), user.ID); err != nil {
			return err
		}
		if err := s.removeIndex(s.emailPath(record.Email)); err != nil {
			return err
		}
	}

	record.Name = user.Name
	record.Email = newEmail
	record.Role = user.Role
	record.PasswordHash = user.PasswordHash
	record.UpdatedAt = time.Now()
	if err := s.writeUser(record); err != nil {
		return err
	}
	user.Email = newEmail
	user.UpdatedAt = record.UpdatedAt
	return nil
}

func (s *FSUserStore) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readUser(userID)
	if err != nil {
		return err
	}
	if record == nil {
		return auth.ErrUserNotFound
	}

	// A newer request supersedes any pending token.
	if record.ResetHash != "" {
		if err := s.removeIndex(s.resetPath(record.ResetHash)); err != nil {
			return err
		}
	}

	record.ResetHash = tokenHash
	record.ResetExpiry = &expiresAt
	record.UpdatedAt = time.Now()
	if err := s.writeUser(record); err != nil {
		return err
	}
	return s.writeIndex(s.resetPath(tokenHash), userID)
}

func (s *FSUserStore) ClearResetToken(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readUser(userID)
	if err != nil {
		return err
	}
	if record == nil {
		return auth.ErrUserNotFound
	}
	if record.ResetHash == "" {
		return nil
	}

	if err := s.removeIndex(s.resetPath(record.ResetHash)); err != nil {
		return err
	}
	record.ResetHash = ""
	record.ResetExpiry = nil
	record.UpdatedAt = time.Now()
	return s.writeUser(record)
}

func (s *FSUserStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.readIndex(s.resetPath(tokenHash))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, auth.ErrUserNotFound
	}
	record, err := s.readUser(entry.UserID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.ResetHash != tokenHash {
		return nil, auth.ErrUserNotFound
	}
	if record.ResetExpiry == nil || !now.Before(*record.ResetExpiry) {
		return nil, auth.ErrUserNotFound
	}

	if err := s.removeIndex(s.resetPath(tokenHash)); err != nil {
		return nil, err
	}
	record.PasswordHash = newPasswordHash
	record.ResetHash = ""
	record.ResetExpiry = nil
	record.UpdatedAt = time.Now()
	if err := s.writeUser(record); err != nil {
		return nil, err
	}
	return toAuthUser(record), nil
}

func (s *FSUserStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readUser(id)
	if err != nil {
		return err
	}
	if record == nil {
		return auth.ErrUserNotFound
	}

	if err := s.removeIndex(s.emailPath(record.Email)); err != nil {
		return err
	}
	if record.ResetHash != "" {
		if err := s.removeIndex(s.resetPath(record.ResetHash)); err != nil {
			return err
		}
	}
	return os.Remove(s.userPath(id))
}
