package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// ErrUnknownConnection is returned for names the manager cannot resolve.
var ErrUnknownConnection = errors.New("unknown connection")

// ProfileSource resolves a profile by name, ready for connecting.
type ProfileSource interface {
	Resolve(name string) (core.ConnectionProfile, error)
}

// Manager is a concurrency-safe set of named connections.
type Manager struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	loads  singleflight.Group
	source ProfileSource
	logger *slog.Logger
}

// NewManager creates a manager. When source is not nil, Connect loads
// profiles that were never added.
func NewManager(source ProfileSource, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		conns:  make(map[string]*Connection),
		source: source,
		logger: logger,
	}
}

// Add creates a connection for profile, replacing and disconnecting any
// existing connection with the same name.
func (m *Manager) Add(profile core.ConnectionProfile) (*Connection, error) {
	conn, err := New(profile, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	old := m.conns[profile.Name]
	m.conns[profile.Name] = conn
	m.mu.Unlock()

	if old != nil {
		if err := old.Disconnect(); err != nil {
			m.logger.Warn("failed to disconnect replaced connection", "name", profile.Name, "error", err)
		}
	}
	return conn, nil
}

// Get returns the connection called name.
func (m *Manager) Get(name string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[name]
	return c, ok
}

// Remove disconnects and forgets a connection. It reports whether the
// connection existed.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	c, ok := m.conns[name]
	delete(m.conns, name)
	m.mu.Unlock()

	if ok {
		if err := c.Disconnect(); err != nil {
			m.logger.Warn("failed to disconnect removed connection", "name", name, "error", err)
		}
	}
	return ok
}

// Names returns the connection names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connect returns the open connection called name, loading its profile
// from the source and connecting as needed. Concurrent callers asking for
// the same unknown name share one load and receive the same connection.
func (m *Manager) Connect(ctx context.Context, name string) (*Connection, error) {
	conn, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

func (m *Manager) lookup(name string) (*Connection, error) {
	if conn, ok := m.Get(name); ok {
		return conn, nil
	}
	if m.source == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, name)
	}

	v, err, _ := m.loads.Do(name, func() (any, error) {
		if conn, ok := m.Get(name); ok {
			return conn, nil
		}
		profile, err := m.source.Resolve(name)
		if err != nil {
			return nil, err
		}
		conn, err := New(profile, m.logger)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		// An Add that raced with the load wins.
		if existing, ok := m.conns[name]; ok {
			return existing, nil
		}
		m.conns[name] = conn
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Connection), nil
}

// DisconnectAll closes every connection and joins the errors.
func (m *Manager) DisconnectAll() error {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	var errs []error
	for _, c := range conns {
		if err := c.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
