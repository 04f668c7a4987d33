package fs_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/srijanm/authbase/client"
	"github.com/srijanm/authbase/client/stores/fs"
)

func newSession(token string) *client.StoredSession {
	return &client.StoredSession{
		Token:     token,
		UserID:    "u1",
		UserEmail: "jane@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
		SavedAt:   time.Now(),
	}
}

func newStore(t *testing.T) *fs.FSSessionStore {
	t.Helper()
	store, err := fs.NewFSSessionStore(filepath.Join(t.TempDir(), "sessions"), "")
	if err != nil {
		t.Fatalf("NewFSSessionStore() error = %v", err)
	}
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	store := newStore(t)

	if err := store.Store("https://api.example.com", newSession("tok-1")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	// A fresh store over the same directory sees the session.
	reloaded, err := fs.NewFSSessionStore(store.Dir, "")
	if err != nil {
		t.Fatal(err)
	}
	session, err := reloaded.Load("https://api.example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if session == nil || session.Token != "tok-1" || session.UserEmail != "jane@example.com" {
		t.Errorf("unexpected session %+v", session)
	}

	// Unknown servers load as nil, not an error.
	session, err = store.Load("https://other.example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if session != nil {
		t.Errorf("expected nil session, got %+v", session)
	}
}

func TestSessionKeyedByHost(t *testing.T) {
	store := newStore(t)

	if err := store.Store("https://api.example.com/some/path", newSession("tok-1")); err != nil {
		t.Fatal(err)
	}

	// Path and query are not part of the key; the port is.
	session, err := store.Load("https://api.example.com/other?x=1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if session == nil || session.Token != "tok-1" {
		t.Errorf("unexpected session %+v", session)
	}

	session, err = store.Load("https://api.example.com:8443")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if session != nil {
		t.Errorf("expected no session for a different port, got %+v", session)
	}
}

func TestSessionReplacedOnStore(t *testing.T) {
	store := newStore(t)

	if err := store.Store("https://api.example.com", newSession("old")); err != nil {
		t.Fatal(err)
	}
	if err := store.Store("https://api.example.com", newSession("new")); err != nil {
		t.Fatal(err)
	}

	session, err := store.Load("https://api.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if session.Token != "new" {
		t.Errorf("token = %q, want new", session.Token)
	}
}

func TestDropSession(t *testing.T) {
	store := newStore(t)

	// Dropping an absent session is a no-op.
	if err := store.Drop("https://api.example.com"); err != nil {
		t.Fatalf("Drop() no-op error = %v", err)
	}

	if err := store.Store("https://api.example.com", newSession("tok-1")); err != nil {
		t.Fatal(err)
	}
	if err := store.Drop("https://api.example.com"); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}

	session, err := store.Load("https://api.example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if session != nil {
		t.Errorf("expected nil session after drop, got %+v", session)
	}
}

func TestServers(t *testing.T) {
	store := newStore(t)

	// Empty directory (even a nonexistent one) lists nothing.
	servers, err := store.Servers()
	if err != nil {
		t.Fatalf("Servers() error = %v", err)
	}
	if len(servers) != 0 {
		t.Errorf("expected no servers, got %v", servers)
	}

	for _, server := range []string{"https://a.example.com", "http://localhost:8080"} {
		if err := store.Store(server, newSession("tok")); err != nil {
			t.Fatal(err)
		}
	}

	servers, err = store.Servers()
	if err != nil {
		t.Fatalf("Servers() error = %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("got %d servers, want 2: %v", len(servers), servers)
	}
	seen := map[string]bool{}
	for _, server := range servers {
		seen[server] = true
	}
	if !seen["https://a.example.com"] || !seen["http://localhost:8080"] {
		t.Errorf("unexpected server list %v", servers)
	}
}

func TestSessionFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes not enforced on windows")
	}

	store := newStore(t)
	if err := store.Store("https://api.example.com", newSession("secret")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(store.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 session file, got %d", len(entries))
	}
	info, err := entries[0].Info()
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("session file mode = %o, want 0600", mode)
	}
	dirInfo, err := os.Stat(store.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if mode := dirInfo.Mode().Perm(); mode != 0700 {
		t.Errorf("session dir mode = %o, want 0700", mode)
	}
}

func TestSessionExpiry(t *testing.T) {
	session := &client.StoredSession{
		Token:     "tok",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if !session.Expired() {
		t.Error("expected session with past expiry to be expired")
	}

	session.ExpiresAt = time.Now().Add(time.Hour)
	if session.Expired() {
		t.Error("expected session with future expiry to be live")
	}
	if !session.ExpiresWithin(2 * time.Hour) {
		t.Error("expected session to expire within 2h")
	}
	if session.ExpiresWithin(time.Minute) {
		t.Error("did not expect session to expire within 1m")
	}
}
