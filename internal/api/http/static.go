package http

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StaticHandler serves files below a root directory. "/" serves index.html.
type StaticHandler struct {
	root string
}

// NewStaticHandler creates a static file handler rooted at dir.
func NewStaticHandler(dir string) *StaticHandler {
	return &StaticHandler{root: dir}
}

// resolve maps a URL path to a file below the root. It reports false when
// the cleaned path would leave the root.
func (h *StaticHandler) resolve(urlPath string) (string, bool) {
	if urlPath == "" || urlPath == "/" {
		urlPath = "/index.html"
	}
	if strings.Contains(urlPath, "\x00") {
		return "", false
	}
	root, err := filepath.Abs(h.root)
	if err != nil {
		return "", false
	}
	full := filepath.Join(root, filepath.FromSlash(path.Clean("/"+urlPath)))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

// ServeHTTP serves one file.
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	full, ok := h.resolve(r.URL.Path)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
