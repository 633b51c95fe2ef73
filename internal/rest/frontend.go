package rest

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FrontendHandler serves the compiled frontend bundle. Requests for paths
// that do not match a file fall back to indexFile so client-side routing
// keeps working on hard reloads.
type FrontendHandler struct {
	root      string
	indexFile string
	fs        http.Handler
}

func NewFrontendHandler(root, indexFile string) *FrontendHandler {
	return &FrontendHandler{
		root:      root,
		indexFile: indexFile,
		fs:        http.FileServer(http.Dir(root)),
	}
}

func (h *FrontendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(h.root, filepath.Clean(strings.TrimPrefix(r.URL.Path, "/")))

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.ServeFile(w, r, filepath.Join(h.root, h.indexFile))
		return
	}

	h.fs.ServeHTTP(w, r)
}
