// Package site serves the embedded audience display and reviewer pages.
package site

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the static pages to r. It must be registered after the
// API routes; chi matches the more specific patterns first.
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Handle("/*", NewRootHandler())
}

// RootHandler serves files from the embedded static directory.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.FileServer(FS())}
}

// ServeHTTP serves the display page at / and the other assets by name.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	h.files.ServeHTTP(w, r)
}
