package core

import "time"

// ResultType classifies the outcome of executing a statement.
type ResultType string

// Result types.
const (
	ResultSet     ResultType = "resultset"
	ResultUpdate  ResultType = "update"
	ResultError   ResultType = "error"
	ResultMessage ResultType = "message"
)

// ResultColumn describes one column of a result set.
type ResultColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// QueryResult is the result of executing a single SQL statement.
type QueryResult struct {
	Type         ResultType     `json:"type"`
	Statement    string         `json:"statement,omitempty"`
	Columns      []ResultColumn `json:"columns,omitempty"`
	Rows         [][]any        `json:"rows,omitempty"`
	AffectedRows int64          `json:"affected_rows"`
	Duration     time.Duration  `json:"duration"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
	Message      string         `json:"message,omitempty"`
	Truncated    bool           `json:"truncated,omitempty"`
}

// ColumnNames returns the result column names in order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// RowMaps returns rows keyed by column name.
// Duplicate column names keep the last value.
func (r *QueryResult) RowMaps() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for j, c := range r.Columns {
			if j < len(row) {
				m[c.Name] = row[j]
			}
		}
		out[i] = m
	}
	return out
}

// RowCount returns the number of rows returned or affected.
func (r *QueryResult) RowCount() int64 {
	if r.Type == ResultSet {
		return int64(len(r.Rows))
	}
	return r.AffectedRows
}

// IsError reports whether the result describes a failure.
func (r *QueryResult) IsError() bool {
	return r.Type == ResultError
}

// ExecOptions controls statement execution.
type ExecOptions struct {
	// MaxRows caps the rows kept from a result set. Zero means unlimited.
	MaxRows int
	// NoFetch executes the statement without reading rows.
	NoFetch bool
}
