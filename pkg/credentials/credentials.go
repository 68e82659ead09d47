// Package credentials stores the logged-in session in credentials.toml in the
// .study/ directory.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cloudlearn/study/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// ErrNotLoggedIn is returned when a command needs a session and none is stored.
var ErrNotLoggedIn = errors.New("not logged in: run 'study auth login' first")

// Manager manages reading and writing credentials.toml in the .study/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
	now        func() time.Time
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .study/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{
		ddm: dotdir.NewManager(),
		now: time.Now,
	}

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{Version: currentVersion}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Version != currentVersion {
		return nil, fmt.Errorf("unsupported credentials version %d (expected %d)", creds.Version, currentVersion)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SaveSession stores s as the current session.
func (m *Manager) SaveSession(s *Session) error {
	if s == nil || s.Token == "" {
		return errors.New("cannot save a session without a token")
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	stored := *s
	if stored.SavedAt.IsZero() {
		stored.SavedAt = m.now().UTC().Truncate(time.Second)
	}
	creds.Session = &stored

	return m.Save(creds)
}

// Session returns the stored session, or ErrNotLoggedIn.
func (m *Manager) Session() (*Session, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	if creds.Session == nil || creds.Session.Token == "" {
		return nil, ErrNotLoggedIn
	}

	return creds.Session, nil
}

// ClearSession removes the stored session.
func (m *Manager) ClearSession() error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Session = nil

	return m.Save(creds)
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}
