package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/workbench/internal/connection"
	"github.com/leapstack-labs/workbench/internal/history"
	"github.com/leapstack-labs/workbench/internal/profiles"
	"github.com/leapstack-labs/workbench/pkg/core"
)

const (
	defaultHistoryLimit = 100
	maxRequestBody      = 1 << 20
)

// QueryRequest is the body of POST /api/connections/{name}/query.
type QueryRequest struct {
	SQL             string `json:"sql"`
	MaxRows         int    `json:"max_rows"`
	ContinueOnError bool   `json:"continue_on_error"`
}

// QueryResponse carries one result per executed statement. Error is set
// when any statement failed.
type QueryResponse struct {
	Results []*core.QueryResult `json:"results"`
	Error   string              `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps lookup failures to 404 and anything else from the
// database side to 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, connection.ErrUnknownConnection), errors.Is(err, profiles.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) (*connection.Connection, bool) {
	conn, err := s.manager.Connect(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return nil, false
	}
	return conn, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	if s.profiles == nil {
		writeJSON(w, http.StatusOK, []core.ConnectionProfile{})
		return
	}
	list, err := s.profiles.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]core.ConnectionProfile, 0, len(list))
	for _, p := range list {
		out = append(out, p.Redacted())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDatabases(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connect(w, r)
	if !ok {
		return
	}
	names, err := conn.ListDatabases(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connect(w, r)
	if !ok {
		return
	}
	names, err := conn.ListSchemas(r.Context(), chi.URLParam(r, "database"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	kind := core.ObjectTable
	if k := r.URL.Query().Get("kind"); k != "" {
		parsed, ok := core.ParseObjectKind(strings.ToLower(k))
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown object kind %q", k))
			return
		}
		kind = parsed
	}

	conn, ok := s.connect(w, r)
	if !ok {
		return
	}
	objs, err := conn.ListObjects(r.Context(), chi.URLParam(r, "schema"), kind)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, objs)
}

type tableLister func(c *connection.Connection, ctx context.Context, schema, table string) ([]core.DatabaseObject, error)

func (s *Server) handleTableDetail(list tableLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, ok := s.connect(w, r)
		if !ok {
			return
		}
		objs, err := list(conn, r.Context(), chi.URLParam(r, "schema"), chi.URLParam(r, "table"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, objs)
	}
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	s.handleTableDetail((*connection.Connection).ListColumns)(w, r)
}

func (s *Server) handleIndexes(w http.ResponseWriter, r *http.Request) {
	s.handleTableDetail((*connection.Connection).ListIndexes)(w, r)
}

func (s *Server) handleForeignKeys(w http.ResponseWriter, r *http.Request) {
	s.handleTableDetail((*connection.Connection).ListForeignKeys)(w, r)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(w, http.StatusBadRequest, errors.New("sql is required"))
		return
	}
	if req.MaxRows <= 0 {
		req.MaxRows = s.maxRows
	}

	conn, ok := s.connect(w, r)
	if !ok {
		return
	}

	results, err := conn.ExecuteScript(r.Context(), req.SQL, connection.ScriptOptions{
		ExecOptions:     core.ExecOptions{MaxRows: req.MaxRows},
		ContinueOnError: req.ContinueOnError,
	})

	if s.history != nil {
		if herr := s.history.RecordResults(r.Context(), conn.Name(), results); herr != nil {
			s.logger.Warn("failed to record history", "error", herr)
		}
	}

	failed := 0
	for _, res := range results {
		if res != nil && res.IsError() {
			failed++
		}
	}
	s.events.Publish(Event{
		Type:       "query",
		Connection: conn.Name(),
		Statements: len(results),
		Failed:     failed,
		At:         time.Now(),
	})

	resp := QueryResponse{Results: results}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultHistoryLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	if s.history == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}

	var (
		entries []history.Entry
		err     error
	)
	if term := q.Get("q"); term != "" {
		entries, err = s.history.Search(r.Context(), term, limit)
		if err == nil && q.Get("connection") != "" {
			entries = filterConnection(entries, q.Get("connection"))
		}
	} else {
		entries, err = s.history.List(r.Context(), history.ListOptions{
			Connection: q.Get("connection"),
			Limit:      limit,
		})
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func filterConnection(entries []history.Entry, conn string) []history.Entry {
	out := entries[:0]
	for _, e := range entries {
		if e.Connection == conn {
			out = append(out, e)
		}
	}
	return out
}
