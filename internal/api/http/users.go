package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/minirel/minirel/internal/engine"
	"github.com/minirel/minirel/internal/server"
	"github.com/minirel/minirel/pkg/types"
)

// UsersTable is the table behind the /api/users resource.
const UsersTable = "users"

const usersSchema = "CREATE TABLE users (id INT PRIMARY KEY, name TEXT, email TEXT UNIQUE)"

const usersColumns = "id, name, email"

// BootstrapUsers creates the users table unless it already exists.
func BootstrapUsers(ctx context.Context, s *server.Serializer) error {
	return s.Do(ctx, func(e *engine.Engine) error {
		if e.HasTable(UsersTable) {
			return nil
		}
		_, err := e.Execute(usersSchema)
		return err
	})
}

// UsersHandler serves CRUD operations on the users table. Every operation
// is expressed as a statement and run through the serializer.
type UsersHandler struct {
	serializer *server.Serializer
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(s *server.Serializer) *UsersHandler {
	return &UsersHandler{serializer: s}
}

// Register installs the users routes on mux.
func (h *UsersHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users", h.list)
	mux.HandleFunc("GET /api/users/{$}", h.list)
	mux.HandleFunc("POST /api/users", h.create)
	mux.HandleFunc("GET /api/users/{id}", h.get)
	mux.HandleFunc("PUT /api/users/{id}", h.update)
	mux.HandleFunc("DELETE /api/users/{id}", h.delete)
}

func (h *UsersHandler) list(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	res, err := h.serializer.Execute(r.Context(), "SELECT "+usersColumns+" FROM users")
	if err != nil {
		writeEngineError(w, err, requestID)
		return
	}
	rows := res.Rows
	if rows == nil {
		rows = []types.Record{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *UsersHandler) get(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	id, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id", requestID)
		return
	}

	rec, found, err := h.fetch(r.Context(), id)
	if err != nil {
		writeEngineError(w, err, requestID)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "user not found", requestID)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *UsersHandler) create(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	body, err := decodeObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	idValue, err := types.ColumnDef{Name: "id", Type: types.TypeInt}.Normalize(body["id"])
	id, isInt := idValue.AsInt()
	if err != nil || !isInt {
		writeError(w, http.StatusBadRequest, "field 'id' must be an integer", requestID)
		return
	}
	name := strings.TrimSpace(stringField(body["name"]))
	email := strings.TrimSpace(stringField(body["email"]))
	if name == "" || email == "" {
		writeError(w, http.StatusBadRequest, "fields 'name' and 'email' are required", requestID)
		return
	}

	stmt := fmt.Sprintf("INSERT INTO users (%s) VALUES (%d, %s, %s)",
		usersColumns, id, types.QuoteText(name), types.QuoteText(email))
	if _, err := h.serializer.Execute(r.Context(), stmt); err != nil {
		writeEngineError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusCreated, types.Record{
		"id":    types.Int(id),
		"name":  types.Text(name),
		"email": types.Text(email),
	})
}

func (h *UsersHandler) update(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	id, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id", requestID)
		return
	}
	body, err := decodeObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	var sets []string
	for _, col := range []string{"name", "email"} {
		raw, present := body[col]
		if !present {
			continue
		}
		literal := "NULL"
		if raw != nil {
			literal = types.QuoteText(stringField(raw))
		}
		sets = append(sets, col+" = "+literal)
	}
	if len(sets) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update", requestID)
		return
	}

	var (
		rec   types.Record
		found bool
	)
	err = h.serializer.Do(r.Context(), func(e *engine.Engine) error {
		res, err := e.Execute(fmt.Sprintf("UPDATE users SET %s WHERE id = %d", strings.Join(sets, ", "), id))
		if err != nil {
			return err
		}
		if res.Affected == 0 {
			return nil
		}
		rec, found, err = selectUser(e, id)
		return err
	})
	if err != nil {
		writeEngineError(w, err, requestID)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "user not found", requestID)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *UsersHandler) delete(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	id, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id", requestID)
		return
	}

	res, err := h.serializer.Execute(r.Context(), fmt.Sprintf("DELETE FROM users WHERE id = %d", id))
	if err != nil {
		writeEngineError(w, err, requestID)
		return
	}
	if res.Affected == 0 {
		writeError(w, http.StatusNotFound, "user not found", requestID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UsersHandler) fetch(ctx context.Context, id int64) (types.Record, bool, error) {
	var (
		rec   types.Record
		found bool
	)
	err := h.serializer.Do(ctx, func(e *engine.Engine) error {
		var err error
		rec, found, err = selectUser(e, id)
		return err
	})
	return rec, found, err
}

func selectUser(e *engine.Engine, id int64) (types.Record, bool, error) {
	res, err := e.Execute(fmt.Sprintf("SELECT %s FROM users WHERE id = %d", usersColumns, id))
	if err != nil {
		return nil, false, err
	}
	if len(res.Rows) == 0 {
		return nil, false, nil
	}
	return res.Rows[0], true, nil
}

func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// decodeObject reads a JSON object body, keeping numbers exact.
func decodeObject(r *http.Request) (map[string]interface{}, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, fmt.Errorf("missing request body")
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}
	obj, ok := body.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("JSON body must be an object")
	}
	return obj, nil
}

func stringField(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
