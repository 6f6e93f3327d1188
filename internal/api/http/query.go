package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/minirel/minirel/internal/engine"
	"github.com/minirel/minirel/internal/server"
	"github.com/minirel/minirel/pkg/types"
)

// QueryRequest represents a statement request.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// QueryResponse represents the outcome of one statement. Rows are listed
// in projection order.
type QueryResponse struct {
	Kind      engine.ResultKind `json:"kind"`
	Columns   []string          `json:"columns,omitempty"`
	Rows      [][]types.Value   `json:"rows,omitempty"`
	RowID     int64             `json:"row_id,omitempty"`
	Affected  int               `json:"affected"`
	Stats     QueryStats        `json:"stats"`
	RequestID string            `json:"request_id"`
}

// QueryStats contains execution statistics.
type QueryStats struct {
	ExecutionTimeMs int64 `json:"execution_time_ms"`
}

// QueryHandler handles POST /v1/query requests.
type QueryHandler struct {
	serializer *server.Serializer
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(s *server.Serializer) *QueryHandler {
	return &QueryHandler{serializer: s}
}

// ServeHTTP handles the query HTTP request.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(w, http.StatusBadRequest, "sql is required", requestID)
		return
	}

	start := time.Now()
	res, err := h.serializer.Execute(r.Context(), req.SQL)
	if err != nil {
		writeEngineError(w, err, requestID)
		return
	}

	resp := QueryResponse{
		Kind:      res.Kind,
		Columns:   res.Columns,
		RowID:     res.RowID,
		Affected:  res.Affected,
		Stats:     QueryStats{ExecutionTimeMs: time.Since(start).Milliseconds()},
		RequestID: requestID,
	}
	if rs := res.ResultSet(); rs != nil {
		resp.Rows = make([][]types.Value, rs.Len())
		for i := range resp.Rows {
			resp.Rows[i] = rs.Row(i)
		}
		if resp.Columns == nil {
			resp.Columns = []string{}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
