package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/internal/connection"
	"github.com/leapstack-labs/workbench/internal/history"
	"github.com/leapstack-labs/workbench/internal/profiles"
	"github.com/leapstack-labs/workbench/internal/testutil"
	_ "github.com/leapstack-labs/workbench/pkg/adapters/sqlite"
	"github.com/leapstack-labs/workbench/pkg/core"
)

type fixture struct {
	server  *Server
	history *history.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	dir := t.TempDir()

	store := profiles.NewStore(filepath.Join(dir, profiles.FileName))
	shop := testutil.SQLiteProfile(t, "shop")
	require.NoError(t, store.Add(shop))
	require.NoError(t, store.Add(core.ConnectionProfile{
		Name:         "remote",
		DatabaseType: core.PostgreSQL,
		Host:         "db.example.com",
		Password:     "hunter2",
		Options: map[string]string{
			connection.OptionSSHKeyPassphrase: "topsecret",
			"password":                        "pgsecret",
			"sslmode":                         "require",
		},
	}))

	hist, err := history.Open(filepath.Join(dir, "history.db"), 100, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })

	manager := connection.NewManager(store, logger)
	t.Cleanup(func() { _ = manager.DisconnectAll() })

	return &fixture{
		server: NewServer(Config{
			Manager:  manager,
			Profiles: store,
			History:  hist,
			MaxRows:  2,
			Logger:   logger,
		}),
		history: hist,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestConnectionsAreRedacted(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/connections", "")
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]core.ConnectionProfile](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "remote", list[0].Name)
	assert.Equal(t, "********", list[0].Password)
	assert.Equal(t, "********", list[0].Options[connection.OptionSSHKeyPassphrase])
	assert.Equal(t, "********", list[0].Options["password"])
	assert.Equal(t, "require", list[0].Options["sslmode"])
	for _, secret := range []string{"hunter2", "topsecret", "pgsecret"} {
		assert.NotContains(t, rec.Body.String(), secret)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		path  string
		names []string
	}{
		{"tables by default", "/api/connections/shop/schemas/main/objects", []string{"orders", "users"}},
		{"views", "/api/connections/shop/schemas/main/objects?kind=views", []string{"big_orders"}},
		{"columns", "/api/connections/shop/schemas/main/tables/users/columns", []string{"id", "email", "name"}},
		{"indexes", "/api/connections/shop/schemas/main/tables/orders/indexes", []string{"idx_orders_user"}},
		{"foreign keys", "/api/connections/shop/schemas/main/tables/orders/foreign-keys", []string{"fk_0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			objs := decode[[]core.DatabaseObject](t, rec)
			got := make([]string, 0, len(objs))
			for _, o := range objs {
				got = append(got, o.Name)
			}
			assert.Equal(t, tt.names, got)
		})
	}

	rec := f.do(t, http.MethodGet, "/api/connections/shop/databases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[[]string](t, rec), "main")

	rec = f.do(t, http.MethodGet, "/api/connections/shop/databases/main/schemas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]string](t, rec))
}

func TestErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		msg    string
	}{
		{"unknown connection", http.MethodGet, "/api/connections/nope/databases", "", http.StatusNotFound, "connection profile not found"},
		{"bad kind", http.MethodGet, "/api/connections/shop/schemas/main/objects?kind=widget", "", http.StatusBadRequest, `unknown object kind "widget"`},
		{"bad body", http.MethodPost, "/api/connections/shop/query", "{", http.StatusBadRequest, "invalid request body"},
		{"unknown field", http.MethodPost, "/api/connections/shop/query", `{"query":"SELECT 1"}`, http.StatusBadRequest, "invalid request body"},
		{"empty sql", http.MethodPost, "/api/connections/shop/query", `{"sql":"  "}`, http.StatusBadRequest, "sql is required"},
		{"bad limit", http.MethodGet, "/api/history?limit=x", "", http.StatusBadRequest, "invalid limit"},
		{"no route", http.MethodGet, "/api/nothing", "", http.StatusNotFound, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decode[errorResponse](t, rec).Error, tt.msg)
		})
	}
}

func TestQuery(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/connections/shop/query",
		`{"sql": "UPDATE users SET name = 'A' WHERE id = 1; SELECT id FROM users ORDER BY id;"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[QueryResponse](t, rec)
	assert.Empty(t, resp.Error)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, core.ResultUpdate, resp.Results[0].Type)
	assert.EqualValues(t, 1, resp.Results[0].AffectedRows)
	assert.Equal(t, core.ResultSet, resp.Results[1].Type)
	assert.Len(t, resp.Results[1].Rows, 2, "server default max rows")
	assert.True(t, resp.Results[1].Truncated)

	rec = f.do(t, http.MethodPost, "/api/connections/shop/query", `{"sql": "SELECT id FROM users", "max_rows": 10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[QueryResponse](t, rec)
	assert.Len(t, resp.Results[0].Rows, 3)

	n, err := f.history.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestQueryStatementFailure(t *testing.T) {
	f := newFixture(t)

	body := `{"sql": "SELECT * FROM missing; SELECT 1;", "continue_on_error": true}`
	rec := f.do(t, http.MethodPost, "/api/connections/shop/query", body)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[QueryResponse](t, rec)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, core.ResultError, resp.Results[0].Type)
	assert.Contains(t, resp.Results[0].ErrorMessage, "no such table")
	assert.Equal(t, core.ResultSet, resp.Results[1].Type)
	assert.Contains(t, resp.Error, "statement 1")

	rec = f.do(t, http.MethodPost, "/api/connections/shop/query", `{"sql": "SELECT * FROM missing; SELECT 1;"}`)
	resp = decode[QueryResponse](t, rec)
	assert.Len(t, resp.Results, 1, "stops at the first failure")
}

func TestHistoryEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, e := range []history.Entry{
		{Connection: "shop", SQL: "SELECT 1", ResultType: core.ResultSet},
		{Connection: "other", SQL: "SELECT 2", ResultType: core.ResultSet},
		{Connection: "shop", SQL: "DELETE FROM t", ResultType: core.ResultUpdate},
	} {
		e.ExecutedAt = int64(i+1) * 1000
		_, err := f.history.Record(ctx, e)
		require.NoError(t, err)
	}

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"all", "/api/history", []string{"DELETE FROM t", "SELECT 2", "SELECT 1"}},
		{"by connection", "/api/history?connection=shop", []string{"DELETE FROM t", "SELECT 1"}},
		{"limit", "/api/history?limit=1", []string{"DELETE FROM t"}},
		{"search", "/api/history?q=select", []string{"SELECT 2", "SELECT 1"}},
		{"search by connection", "/api/history?q=select&connection=other", []string{"SELECT 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, rec.Code)
			entries := decode[[]history.Entry](t, rec)
			got := make([]string, 0, len(entries))
			for _, e := range entries {
				got = append(got, e.SQL)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventsStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// the handler subscribes after flushing headers, so publish until seen
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed early")
			if strings.HasPrefix(line, "data: ") {
				var e Event
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
				assert.Equal(t, "shop", e.Connection)
				return
			}
		case <-tick.C:
			f.server.Events().Publish(Event{Type: "query", Connection: "shop", Statements: 1})
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestBroker(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(Event{Type: "query"})
	assert.Equal(t, "query", (<-a).Type)
	assert.Equal(t, "query", (<-c).Type)

	b.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)

	for i := 0; i < 20; i++ {
		b.Publish(Event{Type: "flood"})
	}
	assert.Len(t, c, cap(c), "publish drops events for full subscribers")

	b.Close()
	b.Unsubscribe(c)
	late := b.Subscribe()
	_, open = <-late
	assert.False(t, open)
}
