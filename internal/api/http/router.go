package http

import (
	"net/http"

	"github.com/minirel/minirel/internal/engine"
	"github.com/minirel/minirel/internal/observability"
	"github.com/minirel/minirel/internal/server"
)

// RouterConfig holds what the HTTP front end is built from.
type RouterConfig struct {
	Serializer *server.Serializer
	Stats      *observability.StatementStats
	Shutdown   *server.ShutdownManager
	// StaticDir is served at "/" when non-empty.
	StaticDir string
}

// TableInfo describes one table in the stats response.
type TableInfo struct {
	Name        string   `json:"name"`
	Columns     []string `json:"columns"`
	Rows        int      `json:"rows"`
	NextRowID   int64    `json:"next_row_id"`
	Fingerprint string   `json:"fingerprint"`
}

// StatsResponse is returned by GET /v1/stats.
type StatsResponse struct {
	Tables     []TableInfo             `json:"tables"`
	Statements *observability.Snapshot `json:"statements,omitempty"`
	RequestID  string                  `json:"request_id"`
}

// NewRouter builds the HTTP handler with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	NewUsersHandler(cfg.Serializer).Register(mux)
	mux.Handle("POST /v1/query", NewQueryHandler(cfg.Serializer))
	mux.HandleFunc("GET /v1/stats", statsHandler(cfg.Serializer, cfg.Stats))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.StaticDir != "" {
		mux.Handle("GET /", NewStaticHandler(cfg.StaticDir))
	}

	var h http.Handler = mux
	if cfg.Shutdown != nil {
		h = server.ShutdownMiddleware(cfg.Shutdown)(h)
	}
	return DefaultMiddleware()(h)
}

func statsHandler(s *server.Serializer, stats *observability.StatementStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r.Context())
		resp := StatsResponse{Tables: []TableInfo{}, RequestID: requestID}

		err := s.Do(r.Context(), func(e *engine.Engine) error {
			for _, name := range e.TableNames() {
				tbl, err := e.Table(name)
				if err != nil {
					return err
				}
				cols := make([]string, 0, len(tbl.Columns()))
				for _, c := range tbl.Columns() {
					cols = append(cols, c.String())
				}
				resp.Tables = append(resp.Tables, TableInfo{
					Name:        name,
					Columns:     cols,
					Rows:        tbl.Len(),
					NextRowID:   tbl.NextRowID(),
					Fingerprint: tbl.Fingerprint(),
				})
			}
			return nil
		})
		if err != nil {
			writeEngineError(w, err, requestID)
			return
		}

		if stats != nil {
			snap := stats.Snapshot(10)
			resp.Statements = &snap
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
