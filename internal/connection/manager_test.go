package connection

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/internal/testutil"
	"github.com/leapstack-labs/workbench/pkg/core"
)

type mapSource map[string]core.ConnectionProfile

func (s mapSource) Resolve(name string) (core.ConnectionProfile, error) {
	p, ok := s[name]
	if !ok {
		return core.ConnectionProfile{}, fmt.Errorf("%w: %s", ErrUnknownConnection, name)
	}
	return p, nil
}

func TestManager_AddGetRemove(t *testing.T) {
	m := NewManager(nil, testutil.NewTestLogger(t))

	_, err := m.Add(testutil.SQLiteProfile(t, "b"))
	require.NoError(t, err)
	_, err = m.Add(testutil.SQLiteProfile(t, "a"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, m.Names())

	conn, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", conn.Name())

	assert.True(t, m.Remove("a"))
	assert.False(t, m.Remove("a"))
	assert.Equal(t, []string{"b"}, m.Names())
}

func TestManager_AddReplacesAndDisconnects(t *testing.T) {
	m := NewManager(nil, nil)
	ctx := context.Background()
	profile := testutil.SQLiteProfile(t, "shop")

	_, err := m.Add(profile)
	require.NoError(t, err)
	first, err := m.Connect(ctx, "shop")
	require.NoError(t, err)
	require.True(t, first.IsConnected())

	second, err := m.Add(profile)
	require.NoError(t, err)

	assert.False(t, first.IsConnected(), "replaced connection is closed")
	assert.NotSame(t, first, second)
	got, _ := m.Get("shop")
	assert.Same(t, second, got)
}

func TestManager_ConnectFromSource(t *testing.T) {
	profile := testutil.SQLiteProfile(t, "lazy")
	m := NewManager(mapSource{"lazy": profile}, nil)
	ctx := context.Background()

	conn, err := m.Connect(ctx, "lazy")
	require.NoError(t, err)
	assert.True(t, conn.IsConnected())

	again, err := m.Connect(ctx, "lazy")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	_, err = m.Connect(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownConnection)

	require.NoError(t, m.DisconnectAll())
	assert.False(t, conn.IsConnected())
}

func TestManager_ConnectWithoutSource(t *testing.T) {
	m := NewManager(nil, nil)
	_, err := m.Connect(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestManager_ConcurrentConnectSharesOneConnection(t *testing.T) {
	const callers = 8
	profile := testutil.SQLiteProfile(t, "shop")
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		m := NewManager(mapSource{"shop": profile}, nil)

		conns := make([]*Connection, callers)
		errs := make([]error, callers)
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				conns[i], errs[i] = m.Connect(ctx, "shop")
			}()
		}
		close(start)
		wg.Wait()

		for i := range callers {
			require.NoError(t, errs[i])
			assert.Same(t, conns[0], conns[i], "round %d caller %d", round, i)
			assert.True(t, conns[i].IsConnected(), "round %d caller %d", round, i)
		}
		assert.Equal(t, []string{"shop"}, m.Names())
		require.NoError(t, m.DisconnectAll())
	}
}
