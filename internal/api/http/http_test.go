package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minirel/minirel/internal/engine"
	"github.com/minirel/minirel/internal/observability"
	"github.com/minirel/minirel/internal/server"
)

type testServer struct {
	handler http.Handler
	stats   *observability.StatementStats
}

func newTestServer(t *testing.T, staticDir string) *testServer {
	t.Helper()
	stats := observability.NewStatementStats(time.Hour)
	s := server.NewSerializer(engine.New(engine.WithStats(stats)))
	require.NoError(t, BootstrapUsers(context.Background(), s))
	require.NoError(t, BootstrapUsers(context.Background(), s), "bootstrap is idempotent")
	return &testServer{
		handler: NewRouter(RouterConfig{Serializer: s, Stats: stats, StaticDir: staticDir}),
		stats:   stats,
	}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestUsers_CRUD(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPost, "/api/users", `{"id": 1, "name": "Ann", "email": "ann@x"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]interface{}
	decode(t, rec, &created)
	assert.Equal(t, map[string]interface{}{"id": float64(1), "name": "Ann", "email": "ann@x"}, created)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = ts.do(t, http.MethodPost, "/api/users", `{"id": "2", "name": " O'Neil ", "email": "o@x"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	decode(t, rec, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "O'Neil", list[1]["name"])

	rec = ts.do(t, http.MethodGet, "/api/users/2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/users/1", `{"email": "anne@x"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated map[string]interface{}
	decode(t, rec, &updated)
	assert.Equal(t, "anne@x", updated["email"])
	assert.Equal(t, "Ann", updated["name"])

	rec = ts.do(t, http.MethodDelete, "/api/users/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/users/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsers_Validation(t *testing.T) {
	ts := newTestServer(t, "")

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"missing body", http.MethodPost, "/api/users", "", http.StatusBadRequest},
		{"not an object", http.MethodPost, "/api/users", `[1]`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/users", `{`, http.StatusBadRequest},
		{"id not integer", http.MethodPost, "/api/users", `{"id": "x", "name": "a", "email": "b"}`, http.StatusBadRequest},
		{"id fractional", http.MethodPost, "/api/users", `{"id": 1.5, "name": "a", "email": "b"}`, http.StatusBadRequest},
		{"missing id", http.MethodPost, "/api/users", `{"name": "a", "email": "b"}`, http.StatusBadRequest},
		{"blank name", http.MethodPost, "/api/users", `{"id": 1, "name": "  ", "email": "b"}`, http.StatusBadRequest},
		{"invalid path id", http.MethodGet, "/api/users/abc", "", http.StatusBadRequest},
		{"put without fields", http.MethodPut, "/api/users/1", `{"age": 3}`, http.StatusBadRequest},
		{"put unknown user", http.MethodPut, "/api/users/99", `{"name": "x"}`, http.StatusNotFound},
		{"delete unknown user", http.MethodDelete, "/api/users/99", "", http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/users/1", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestUsers_ConstraintConflict(t *testing.T) {
	ts := newTestServer(t, "")
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/users", `{"id": 1, "name": "a", "email": "a@x"}`).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/users", `{"id": 2, "name": "b", "email": "b@x"}`).Code)

	rec := ts.do(t, http.MethodPost, "/api/users", `{"id": 3, "name": "c", "email": "a@x"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	var errResp ErrorResponse
	decode(t, rec, &errResp)
	assert.Equal(t, "CONSTRAINT_VIOLATION", errResp.Code)
	assert.Equal(t, "email", errResp.Details["column"])

	rec = ts.do(t, http.MethodPut, "/api/users/2", `{"email": "a@x"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/users/2", "")
	var user map[string]interface{}
	decode(t, rec, &user)
	assert.Equal(t, "b@x", user["email"])
}

func TestQueryEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPost, "/v1/query", `{"sql": "INSERT INTO users (id, name) VALUES (7, 'Zed')"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ins map[string]interface{}
	decode(t, rec, &ins)
	assert.Equal(t, "row_id", ins["kind"])
	assert.Equal(t, float64(1), ins["row_id"])

	rec = ts.do(t, http.MethodPost, "/v1/query", `{"sql": "SELECT id, name, email FROM users WHERE id = 7;"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var raw map[string]interface{}
	decode(t, rec, &raw)
	assert.Equal(t, "rows", raw["kind"])
	assert.Equal(t, []interface{}{"id", "name", "email"}, raw["columns"])
	assert.Equal(t, []interface{}{[]interface{}{float64(7), "Zed", nil}}, raw["rows"])

	rec = ts.do(t, http.MethodPost, "/v1/query", `{"sql": "SELEC * FROM users"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp ErrorResponse
	decode(t, rec, &errResp)
	assert.Equal(t, "SYNTAX_ERROR", errResp.Code)
	assert.Equal(t, "STATEMENT", errResp.Category)

	rec = ts.do(t, http.MethodPost, "/v1/query", `{"sql": "SELECT * FROM ghosts"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/query", `{"sql": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsAndHealth(t *testing.T) {
	ts := newTestServer(t, "")
	ts.do(t, http.MethodPost, "/api/users", `{"id": 1, "name": "a", "email": "a@x"}`)
	ts.do(t, http.MethodGet, "/api/users/1", "")

	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatsResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Tables, 1)
	assert.Equal(t, "users", resp.Tables[0].Name)
	assert.Equal(t, []string{"id:INT PK", "name:TEXT", "email:TEXT UQ"}, resp.Tables[0].Columns)
	assert.Equal(t, 1, resp.Tables[0].Rows)
	assert.Len(t, resp.Tables[0].Fingerprint, 32)
	require.NotNil(t, resp.Statements)
	require.NotEmpty(t, resp.Statements.TopPredicates)
	assert.Equal(t, "id", resp.Statements.TopPredicates[0].Column)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>minirel</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	ts := newTestServer(t, dir)

	rec := ts.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>minirel</h1>", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = ts.do(t, http.MethodGet, "/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/missing.css", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticHandler_Resolve(t *testing.T) {
	root := t.TempDir()
	h := NewStaticHandler(root)

	tests := []struct {
		path string
		ok   bool
	}{
		{"/", true},
		{"/css/site.css", true},
		{"/../etc/passwd", true},
		{"/a/../../b", true},
		{"/nul\x00byte", false},
	}
	for _, tt := range tests {
		full, ok := h.resolve(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		if ok {
			rel, err := filepath.Rel(root, full)
			require.NoError(t, err)
			assert.False(t, strings.HasPrefix(rel, ".."), "%s escaped root: %s", tt.path, full)
		}
	}
}

func TestShutdownRejectsRequests(t *testing.T) {
	sm := server.NewShutdownManager(time.Second)
	h := NewRouter(RouterConfig{Serializer: server.NewSerializer(engine.New()), Shutdown: sm})
	require.NoError(t, sm.Shutdown(context.Background(), "test"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusFromError(t *testing.T) {
	e := engine.New()
	_, err := e.Execute("SELECT * FROM nope")
	assert.Equal(t, http.StatusNotFound, StatusFromError(err))
	_, err = e.Execute("CREATE TABLE t (x FLOAT)")
	assert.Equal(t, http.StatusBadRequest, StatusFromError(err))
	assert.Equal(t, http.StatusInternalServerError, StatusFromError(os.ErrClosed))
}
