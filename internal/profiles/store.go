// Package profiles persists connection profiles as a JSON file.
package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// FileName is the default profile file inside the config directory.
const FileName = "connections.json"

var (
	// ErrProfileExists is returned when adding a profile whose name is taken.
	ErrProfileExists = errors.New("connection profile already exists")
	// ErrProfileNotFound is returned for unknown profile names.
	ErrProfileNotFound = errors.New("connection profile not found")
)

// Store reads and writes profiles in a single JSON file.
// Every operation reloads the file so concurrent CLI invocations see each
// other's changes.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a store backed by path. The file need not exist.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads every profile. A missing file yields an empty list.
func (s *Store) Load() ([]core.ConnectionProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]core.ConnectionProfile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []core.ConnectionProfile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read connections file: %w", err)
	}

	var list []core.ConnectionProfile
	if len(data) > 0 {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse connections file %s: %w", s.path, err)
		}
	}
	if list == nil {
		list = []core.ConnectionProfile{}
	}
	return list, nil
}

// Save replaces the stored profiles.
func (s *Store) Save(list []core.ConnectionProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(list)
}

// save writes atomically with owner-only permissions, since profiles hold passwords.
func (s *Store) save(list []core.ConnectionProfile) error {
	if list == nil {
		list = []core.ConnectionProfile{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".connections-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace connections file: %w", err)
	}
	return nil
}

// List returns the profiles sorted by name.
func (s *Store) List() ([]core.ConnectionProfile, error) {
	list, err := s.Load()
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// Get returns the profile called name as stored.
func (s *Store) Get(name string) (core.ConnectionProfile, error) {
	list, err := s.Load()
	if err != nil {
		return core.ConnectionProfile{}, err
	}
	if i := indexOf(list, name); i >= 0 {
		return list[i], nil
	}
	return core.ConnectionProfile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// Add stores a new profile. Names must be unique.
func (s *Store) Add(p core.ConnectionProfile) error {
	return s.update(func(list []core.ConnectionProfile) ([]core.ConnectionProfile, error) {
		if indexOf(list, p.Name) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrProfileExists, p.Name)
		}
		return append(list, p), nil
	})
}

// Upsert stores p, replacing a profile with the same name in place.
func (s *Store) Upsert(p core.ConnectionProfile) error {
	return s.update(func(list []core.ConnectionProfile) ([]core.ConnectionProfile, error) {
		if i := indexOf(list, p.Name); i >= 0 {
			list[i] = p
			return list, nil
		}
		return append(list, p), nil
	})
}

// Remove deletes the profile called name.
func (s *Store) Remove(name string) error {
	return s.update(func(list []core.ConnectionProfile) ([]core.ConnectionProfile, error) {
		i := indexOf(list, name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		return append(list[:i], list[i+1:]...), nil
	})
}

func (s *Store) update(fn func([]core.ConnectionProfile) ([]core.ConnectionProfile, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}
	list, err = fn(list)
	if err != nil {
		return err
	}
	return s.save(list)
}

// Resolve returns the profile called name with defaults applied and
// ${VAR} references expanded, ready for connecting.
func (s *Store) Resolve(name string) (core.ConnectionProfile, error) {
	p, err := s.Get(name)
	if err != nil {
		return core.ConnectionProfile{}, err
	}
	return Resolve(p), nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Resolve expands ${VAR} references in credentials and host names from
// the environment and applies defaults. Unset variables expand to "".
func Resolve(p core.ConnectionProfile) core.ConnectionProfile {
	expand := func(v string) string {
		return envRef.ReplaceAllStringFunc(v, func(m string) string {
			return os.Getenv(envRef.FindStringSubmatch(m)[1])
		})
	}
	p.Host = expand(p.Host)
	p.Username = expand(p.Username)
	p.Password = expand(p.Password)
	p.SSHHostname = expand(p.SSHHostname)
	p.SSHUsername = expand(p.SSHUsername)
	p.SSHPassword = expand(p.SSHPassword)
	p.ApplyDefaults()
	return p
}

func indexOf(list []core.ConnectionProfile, name string) int {
	for i, p := range list {
		if p.Name == name {
			return i
		}
	}
	return -1
}
