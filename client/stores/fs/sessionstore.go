// Package fs persists client sessions on the filesystem, one JSON file
// per server under a config directory.
package fs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/srijanm/authbase/client"
)

// sessionFile is the on-disk shape. The server URL is recorded inside
// the file because the filename encoding is lossy.
type sessionFile struct {
	Server  string                `json:"server"`
	Session *client.StoredSession `json:"session"`
}

// FSSessionStore implements client.SessionStore with one file per
// server:
//
//	{Dir}/
//	├── https_api.example.com.json
//	└── http_localhost_8080.json
//
// Files are written with owner-only permissions since they hold live
// bearer tokens. Writes land immediately; there is no separate flush.
type FSSessionStore struct {
	Dir string

	mu sync.Mutex
}

// NewFSSessionStore creates a session store rooted at dir. An empty dir
// defaults to ~/.config/<appName>/sessions (appName defaults to
// "authbase").
func NewFSSessionStore(dir, appName string) (*FSSessionStore, error) {
	if dir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, homeErr := os.UserHomeDir()
			if homeErr != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "authbase"
		}
		dir = filepath.Join(configDir, appName, "sessions")
	}
	return &FSSessionStore{Dir: dir}, nil
}

// serverKey canonicalizes a server URL to scheme://host and a matching
// filename-safe form.
func serverKey(serverURL string) (canonical, filename string, err error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	canonical = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	filename = strings.NewReplacer("://", "_", ":", "_", "/", "_").Replace(canonical) + ".json"
	return canonical, filename, nil
}

func (s *FSSessionStore) Load(serverURL string) (*client.StoredSession, error) {
	_, filename, err := serverKey(serverURL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.Dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var file sessionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return file.Session, nil
}

func (s *FSSessionStore) Store(serverURL string, session *client.StoredSession) error {
	canonical, filename, err := serverKey(serverURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(sessionFile{Server: canonical, Session: session}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, filename), data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (s *FSSessionStore) Drop(serverURL string) error {
	_, filename, err := serverKey(serverURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.Dir, filename)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FSSessionStore) Servers() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var servers []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var file sessionFile
		if err := json.Unmarshal(data, &file); err != nil || file.Server == "" {
			// Skip files that are not session files.
			continue
		}
		servers = append(servers, file.Server)
	}
	return servers, nil
}
