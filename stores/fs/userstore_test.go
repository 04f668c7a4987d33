package fs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	auth "github.com/srijanm/authbase"
	"github.com/srijanm/authbase/stores/fs"
)

func newStore(t *testing.T) *fs.FSUserStore {
	t.Helper()
	return fs.NewFSUserStore(t.TempDir())
}

func newUser(id, email string) *auth.User {
	return &auth.User{
		ID:           id,
		Name:         "Test User",
		Email:        email,
		Role:         auth.RoleUser,
		PasswordHash: "$2a$04$fakehashfakehashfakehash",
	}
}

func TestCreateAndGetUser(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	user := newUser("u1", "Jane@Example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.Email != "jane@example.com" {
		t.Errorf("expected normalized email, got %q", user.Email)
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	byID, err := store.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if byID.Email != "jane@example.com" || byID.PasswordHash != user.PasswordHash {
		t.Errorf("unexpected user %+v", byID)
	}

	byEmail, err := store.GetUserByEmail(ctx, "JANE@example.COM")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if byEmail.ID != "u1" {
		t.Errorf("ID = %q, want u1", byEmail.ID)
	}

	if _, err := store.GetUserByID(ctx, "missing"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := store.GetUserByEmail(ctx, "missing@example.com"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateUserEmailUniqueness(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.CreateUser(ctx, newUser("u1", "jane@example.com")); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	// Uniqueness is case-insensitive.
	err := store.CreateUser(ctx, newUser("u2", "JANE@example.com"))
	if !errors.Is(err, auth.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	// The losing user must not have been persisted.
	if _, err := store.GetUserByID(ctx, "u2"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound for losing user, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.CreateUser(ctx, newUser("u1", "jane@example.com")); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateUser(ctx, newUser("u2", "john@example.com")); err != nil {
		t.Fatal(err)
	}

	t.Run("rename and re-email", func(t *testing.T) {
		user, _ := store.GetUserByID(ctx, "u1")
		user.Name = "Jane Doe"
		user.Email = "jane.doe@example.com"
		if err := store.UpdateUser(ctx, user); err != nil {
			t.Fatalf("UpdateUser() error = %v", err)
		}

		// New email resolves, old one does not.
		if got, err := store.GetUserByEmail(ctx, "jane.doe@example.com"); err != nil || got.ID != "u1" {
			t.Errorf("GetUserByEmail(new) = %v, %v", got, err)
		}
		if _, err := store.GetUserByEmail(ctx, "jane@example.com"); !errors.Is(err, auth.ErrUserNotFound) {
			t.Errorf("expected old email index to be gone, got %v", err)
		}
	})

	t.Run("email collision", func(t *testing.T) {
		user, _ := store.GetUserByID(ctx, "u1")
		user.Email = "john@example.com"
		if err := store.UpdateUser(ctx, user); !errors.Is(err, auth.ErrEmailExists) {
			t.Errorf("expected ErrEmailExists, got %v", err)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		err := store.UpdateUser(ctx, newUser("ghost", "ghost@example.com"))
		if !errors.Is(err, auth.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestResetTokenLifecycle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.CreateUser(ctx, newUser("u1", "jane@example.com")); err != nil {
		t.Fatal(err)
	}

	hash := auth.HashResetToken("some-reset-token")
	if err := store.SetResetToken(ctx, "u1", hash, now.Add(time.Hour)); err != nil {
		t.Fatalf("SetResetToken() error = %v", err)
	}

	user, err := store.ConsumeResetToken(ctx, hash, now, "newhash")
	if err != nil {
		t.Fatalf("ConsumeResetToken() error = %v", err)
	}
	if user.ID != "u1" || user.PasswordHash != "newhash" {
		t.Errorf("unexpected user %+v", user)
	}
	if user.ResetTokenHash != "" || user.ResetTokenExpiry != nil {
		t.Error("expected reset state to be cleared")
	}

	// Single-use: a second consume fails.
	if _, err := store.ConsumeResetToken(ctx, hash, now, "anotherhash"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound on reuse, got %v", err)
	}
	// The first consume's password stuck.
	again, _ := store.GetUserByID(ctx, "u1")
	if again.PasswordHash != "newhash" {
		t.Errorf("password hash = %q, want newhash", again.PasswordHash)
	}
}

func TestConsumeResetTokenExpired(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.CreateUser(ctx, newUser("u1", "jane@example.com")); err != nil {
		t.Fatal(err)
	}
	hash := auth.HashResetToken("expired-token")
	if err := store.SetResetToken(ctx, "u1", hash, now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	if _, err := store.ConsumeResetToken(ctx, hash, now, "newhash"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound for expired token, got %v", err)
	}
}

func TestSetResetTokenSupersedes(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.CreateUser(ctx, newUser("u1", "jane@example.com")); err != nil {
		t.Fatal(err)
	}

	first := auth.HashResetToken("first-token")
	second := auth.HashResetToken("second-token")
	if err := store.SetResetToken(ctx, "u1", first, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := store.SetResetToken(ctx, "u1", second, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if _, err := store.ConsumeResetToken(ctx, first, now, "newhash"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected superseded token to fail, got %v", err)
	}
	if _, err := store.ConsumeResetToken(ctx, second, now, "newhash"); err != nil {
		t.Errorf("expected latest token to work, got %v", err)
	}
}

func TestClearResetToken(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.CreateUser(ctx, newUser("u1", "jane@example.com")); err != nil {
		t.Fatal(err)
	}

	// Clearing with nothing pending is a no-op.
	if err := store.ClearResetToken(ctx, "u1"); err != nil {
		t.Fatalf("ClearResetToken() no-op error = %v", err)
	}

	hash := auth.HashResetToken("cleared-token")
	if err := store.SetResetToken(ctx, "u1", hash, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := store.ClearResetToken(ctx, "u1"); err != nil {
		t.Fatalf("ClearResetToken() error = %v", err)
	}

	if _, err := store.ConsumeResetToken(ctx, hash, now, "newhash"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected cleared token to fail, got %v", err)
	}
	user, _ := store.GetUserByID(ctx, "u1")
	if user.ResetTokenHash != "" || user.ResetTokenExpiry != nil {
		t.Error("expected reset state to be cleared")
	}
}

func TestDeleteUser(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.CreateUser(ctx, newUser("u1", "jane@example.com")); err != nil {
		t.Fatal(err)
	}
	hash := auth.HashResetToken("pending-token")
	if err := store.SetResetToken(ctx, "u1", hash, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if _, err := store.GetUserByID(ctx, "u1"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	// Email is free again immediately.
	if err := store.CreateUser(ctx, newUser("u2", "jane@example.com")); err != nil {
		t.Errorf("CreateUser() after delete error = %v", err)
	}
	// The pending reset died with the account.
	if _, err := store.ConsumeResetToken(ctx, hash, now, "newhash"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	if err := store.DeleteUser(ctx, "u1"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound on double delete, got %v", err)
	}
}
