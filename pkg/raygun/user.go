// user.go defines user identity and the per-install anonymous user.

package raygun

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// UserInfo identifies the user affected by a crash or RUM session.
// Values are comparable with ==.
type UserInfo struct {
	Identifier  string `json:"identifier"`
	IsAnonymous bool   `json:"isAnonymous"`
	Email       string `json:"email,omitempty"`
	FullName    string `json:"fullName,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	UUID        string `json:"uuid,omitempty"`
}

// NewUserInfo returns a UserInfo for identifier, or nil when identifier is
// blank.
func NewUserInfo(identifier string) *UserInfo {
	if strings.TrimSpace(identifier) == "" {
		return nil
	}
	return &UserInfo{Identifier: identifier}
}

// SameUser reports whether a and b describe the same user. Two nil users are
// the same.
func SameUser(a, b *UserInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// AnonymousUserStore persists the anonymous user id for this install.
type AnonymousUserStore interface {
	// Load returns the stored id. ok is false when nothing is stored yet.
	Load() (id string, ok bool, err error)

	// Save stores id.
	Save(id string) error
}

// FileUserStore keeps the anonymous user id in a single file.
type FileUserStore struct {
	Path string
}

// NewFileUserStore returns a store that keeps the id in dir/anonymous-user-id.
func NewFileUserStore(dir string) *FileUserStore {
	return &FileUserStore{Path: filepath.Join(dir, "anonymous-user-id")}
}

// DefaultUserStoreDir returns the per-user configuration directory used for
// install-scoped state.
func DefaultUserStoreDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "raygun4go")
}

// Load implements AnonymousUserStore.
func (s *FileUserStore) Load() (string, bool, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "read anonymous user id")
	}
	id := strings.TrimSpace(string(b))
	return id, id != "", nil
}

// Save implements AnonymousUserStore.
func (s *FileUserStore) Save(id string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return errors.Wrap(err, "create anonymous user directory")
	}
	if err := os.WriteFile(s.Path, []byte(id), 0o600); err != nil {
		return errors.Wrap(err, "write anonymous user id")
	}
	return nil
}

// MemoryUserStore keeps the anonymous user id in memory.
type MemoryUserStore struct {
	mu sync.Mutex
	id string
}

// Load implements AnonymousUserStore.
func (s *MemoryUserStore) Load() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.id != "", nil
}

// Save implements AnonymousUserStore.
func (s *MemoryUserStore) Save(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}

// DefaultUser lazily resolves the stable anonymous user for this install.
// Failures are logged and retried on the next call.
type DefaultUser struct {
	store  AnonymousUserStore
	logger *zap.Logger

	mu   sync.Mutex
	user *UserInfo
}

// NewDefaultUser creates a resolver backed by store.
func NewDefaultUser(store AnonymousUserStore, logger *zap.Logger) *DefaultUser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultUser{store: store, logger: logger}
}

// Get returns a copy of the anonymous user, or nil when no id could be loaded
// or created.
func (d *DefaultUser) Get() *UserInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.user == nil {
		id, err := d.loadOrCreate()
		if err != nil {
			d.logger.Warn("failed to get or generate a default user id", zap.Error(err))
			return nil
		}
		d.user = &UserInfo{Identifier: id, IsAnonymous: true}
	}
	u := *d.user
	return &u
}

func (d *DefaultUser) loadOrCreate() (string, error) {
	id, ok, err := d.store.Load()
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}
	id = strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := d.store.Save(id); err != nil {
		return "", err
	}
	return id, nil
}
