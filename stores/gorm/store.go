//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	auth "github.com/srijanm/authbase"
)

// UserModel is the GORM model for user accounts. Email is stored
// normalized and carries the uniqueness constraint the store contract
// requires.
type UserModel struct {
	ID           string     `gorm:"primaryKey;size:64"`
	Name         string     `gorm:"size:255"`
	Email        string     `gorm:"size:320;uniqueIndex"`
	Role         string     `gorm:"size:32;default:user"`
	PasswordHash string     `gorm:"size:255"`
	ResetHash    string     `gorm:"size:64;index"`
	ResetExpiry  *time.Time `gorm:""`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *auth.User {
	return &auth.User{
		ID:               m.ID,
		Name:             m.Name,
		Email:            m.Email,
		Role:             auth.Role(m.Role),
		PasswordHash:     m.PasswordHash,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		ResetTokenHash:   m.ResetHash,
		ResetTokenExpiry: m.ResetExpiry,
	}
}

func UserToModel(u *auth.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        auth.NormalizeEmail(u.Email),
		Role:         string(u.Role),
		PasswordHash: u.PasswordHash,
		ResetHash:    u.ResetTokenHash,
		ResetExpiry:  u.ResetTokenExpiry,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// AutoMigrate runs database migrations for the authbase tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements auth.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// isDuplicate reports whether err is the database's unique-constraint
// violation. gorm.ErrDuplicatedKey requires a translating driver, so we
// also sniff the common error strings.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func (s *UserStore) CreateUser(ctx context.Context, user *auth.User) error {
	model := UserToModel(user)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicate(err) {
			return auth.ErrEmailExists
		}
		return err
	}
	user.Email = model.Email
	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, "email = ?", auth.NormalizeEmail(email)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) UpdateUser(ctx context.Context, user *auth.User) error {
	result := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"name":          user.Name,
			"email":         auth.NormalizeEmail(user.Email),
			"role":          string(user.Role),
			"password_hash": user.PasswordHash,
		})
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return auth.ErrEmailExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	result := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"reset_hash":   tokenHash,
			"reset_expiry": expiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) ClearResetToken(ctx context.Context, userID string) error {
	result := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"reset_hash":   "",
			"reset_expiry": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// ConsumeResetToken is a single conditional UPDATE: only the row whose
// pending token matches and is unexpired is touched, so two concurrent
// submissions of the same token cannot both succeed.
func (s *UserStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*auth.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, "reset_hash = ?", tokenHash).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}

	result := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ? AND reset_hash = ? AND reset_expiry > ?", model.ID, tokenHash, now).
		Updates(map[string]any{
			"password_hash": newPasswordHash,
			"reset_hash":    "",
			"reset_expiry":  nil,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Expired in the meantime, or a concurrent submission won.
		return nil, auth.ErrUserNotFound
	}

	model.PasswordHash = newPasswordHash
	model.ResetHash = ""
	model.ResetExpiry = nil
	return model.ToUser(), nil
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&UserModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}
