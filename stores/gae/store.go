//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	auth "github.com/srijanm/authbase"
)

const (
	kindUser       = "User"
	kindEmailIndex = "EmailIndex"
	kindResetIndex = "ResetIndex"
)

// UserEntity is the Datastore entity for user accounts
type UserEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Name         string         `datastore:"name,noindex"`
	Email        string         `datastore:"email"`
	Role         string         `datastore:"role"`
	PasswordHash string         `datastore:"password_hash,noindex"`
	ResetHash    string         `datastore:"reset_hash"`
	ResetExpiry  time.Time      `datastore:"reset_expiry,noindex"`
	CreatedAt    time.Time      `datastore:"created_at"`
	UpdatedAt    time.Time      `datastore:"updated_at"`
}

func (e *UserEntity) ToUser() *auth.User {
	user := &auth.User{
		ID:             e.Key.Name,
		Name:           e.Name,
		Email:          e.Email,
		Role:           auth.Role(e.Role),
		PasswordHash:   e.PasswordHash,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
		ResetTokenHash: e.ResetHash,
	}
	if !e.ResetExpiry.IsZero() {
		expiry := e.ResetExpiry
		user.ResetTokenExpiry = &expiry
	}
	return user
}

// indexEntity points a lookup key (email, reset-token hash) back at the
// owning user.
type indexEntity struct {
	UserID string `datastore:"user_id"`
}

// UserStore implements auth.UserStore using Google Cloud Datastore
type UserStore struct {
	client    *datastore.Client
	namespace string
}

func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{client: client, namespace: namespace}
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) userToEntity(user *auth.User) *UserEntity {
	entity := &UserEntity{
		Key:          s.namespacedKey(kindUser, user.ID),
		Name:         user.Name,
		Email:        auth.NormalizeEmail(user.Email),
		Role:         string(user.Role),
		PasswordHash: user.PasswordHash,
		ResetHash:    user.ResetTokenHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	if user.ResetTokenExpiry != nil {
		entity.ResetExpiry = *user.ResetTokenExpiry
	}
	return entity
}

func (s *UserStore) CreateUser(ctx context.Context, user *auth.User) error {
	entity := s.userToEntity(user)
	now := time.Now()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now
	emailKey := s.namespacedKey(kindEmailIndex, entity.Email)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing indexEntity
		err := tx.Get(emailKey, &existing)
		if err == nil {
			return auth.ErrEmailExists
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		if _, err := tx.Put(emailKey, &indexEntity{UserID: user.ID}); err != nil {
			return err
		}
		_, err = tx.Put(entity.Key, entity)
		return err
	})
	if err != nil {
		return err
	}
	user.Email = entity.Email
	user.CreatedAt = entity.CreatedAt
	user.UpdatedAt = entity.UpdatedAt
	return nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	var entity UserEntity
	err := s.client.Get(ctx, s.namespacedKey(kindUser, id), &entity)
	if err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	var index indexEntity
	err := s.client.Get(ctx, s.namespacedKey(kindEmailIndex, auth.NormalizeEmail(email)), &index)
	if err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserByID(ctx, index.UserID)
}

func (s *UserStore) UpdateUser(ctx context.Context, user *auth.User) error {
	newEmail := auth.NormalizeEmail(user.Email)
	userKey := s.namespacedKey(kindUser, user.ID)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(userKey, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return auth.ErrUserNotFound
			}
			return err
		}

		if newEmail != entity.Email {
			newKey := s.namespacedKey(kindEmailIndex, newEmail)
			var existing indexEntity
			err := tx.Get(newKey, &existing)
			if err == nil && existing.UserID != user.ID {
				return auth.ErrEmailExists
			}
			if err != nil && !errors.Is(err, datastore.ErrNoSuchEntity) {
				return err
			}
			if _, err := tx.Put(newKey, &indexEntity{UserID: user.ID}); err != nil {
				return err
			}
			if err := tx.Delete(s.namespacedKey(kindEmailIndex, entity.Email)); err != nil {
				return err
			}
		}

		entity.Key = userKey
		entity.Name = user.Name
		entity.Email = newEmail
		entity.Role = string(user.Role)
		entity.PasswordHash = user.PasswordHash
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(userKey, &entity)
		return err
	})
	if err != nil {
		return err
	}
	user.Email = newEmail
	return nil
}

func (s *UserStore) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	userKey := s.namespacedKey(kindUser, userID)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(userKey, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return auth.ErrUserNotFound
			}
			return err
		}

		// A newer request supersedes any pending token.
		if entity.ResetHash != "" {
			if err := tx.Delete(s.namespacedKey(kindResetIndex, entity.ResetHash)); err != nil {
				return err
			}
		}
		if _, err := tx.Put(s.namespacedKey(kindResetIndex, tokenHash), &indexEntity{UserID: userID}); err != nil {
			return err
		}

		entity.Key = userKey
		entity.ResetHash = tokenHash
		entity.ResetExpiry = expiresAt
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(userKey, &entity)
		return err
	})
	return err
}

func (s *UserStore) ClearResetToken(ctx context.Context, userID string) error {
	userKey := s.namespacedKey(kindUser, userID)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(userKey, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return auth.ErrUserNotFound
			}
			return err
		}
		if entity.ResetHash == "" {
			return nil
		}

		if err := tx.Delete(s.namespacedKey(kindResetIndex, entity.ResetHash)); err != nil {
			return err
		}
		entity.Key = userKey
		entity.ResetHash = ""
		entity.ResetExpiry = time.Time{}
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(userKey, &entity)
		return err
	})
	return err
}

// ConsumeResetToken runs the whole match-check-swap inside one
// transaction, so a token can only ever be consumed once.
func (s *UserStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*auth.User, error) {
	resetKey := s.namespacedKey(kindResetIndex, tokenHash)
	var consumed *UserEntity

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var index indexEntity
		if err := tx.Get(resetKey, &index); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return auth.ErrUserNotFound
			}
			return err
		}

		userKey := s.namespacedKey(kindUser, index.UserID)
		var entity UserEntity
		if err := tx.Get(userKey, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return auth.ErrUserNotFound
			}
			return err
		}
		if entity.ResetHash != tokenHash || !now.Before(entity.ResetExpiry) {
			return auth.ErrUserNotFound
		}

		if err := tx.Delete(resetKey); err != nil {
			return err
		}
		entity.Key = userKey
		entity.PasswordHash = newPasswordHash
		entity.ResetHash = ""
		entity.ResetExpiry = time.Time{}
		entity.UpdatedAt = time.Now()
		if _, err := tx.Put(userKey, &entity); err != nil {
			return err
		}
		consumed = &entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed.ToUser(), nil
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	userKey := s.namespacedKey(kindUser, id)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(userKey, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return auth.ErrUserNotFound
			}
			return err
		}
		if err := tx.Delete(s.namespacedKey(kindEmailIndex, entity.Email)); err != nil {
			return err
		}
		if entity.ResetHash != "" {
			if err := tx.Delete(s.namespacedKey(kindResetIndex, entity.ResetHash)); err != nil {
				return err
			}
		}
		return tx.Delete(userKey)
	})
	return err
}

// ListUsers returns every account in the namespace, ordered by creation
// time. Admin/debug convenience; not part of the UserStore contract.
func (s *UserStore) ListUsers(ctx context.Context) ([]*auth.User, error) {
	query := datastore.NewQuery(kindUser).Namespace(s.namespace).Order("created_at")
	it := s.client.Run(ctx, query)

	var users []*auth.User
	for {
		var entity UserEntity
		_, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		users = append(users, entity.ToUser())
	}
	return users, nil
}
