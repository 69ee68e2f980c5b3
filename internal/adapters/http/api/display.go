package api

import (
	"context"
	"net/http"

	"github.com/liusai0820/smartscore/internal/domain/results"
	"github.com/liusai0820/smartscore/pkg/logger"
)

// DisplayDependencies defines the audience read operation.
type DisplayDependencies interface {
	Display(ctx context.Context) (results.Display, error)
}

// DisplayHandler serves the payload polled by the audience screen.
type DisplayHandler struct {
	deps DisplayDependencies
	log  logger.Logger
}

// NewDisplayHandler creates a new display handler.
func NewDisplayHandler(deps DisplayDependencies, log logger.Logger) *DisplayHandler {
	return &DisplayHandler{deps: deps, log: log}
}

// HandleDisplay handles GET /api/display.
func (h *DisplayHandler) HandleDisplay(w http.ResponseWriter, r *http.Request) {
	const op = "api.display"
	d, err := h.deps.Display(r.Context())
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, d)
}

// DashboardDependencies defines the reviewer's own view.
type DashboardDependencies interface {
	Dashboard(ctx context.Context, reviewerID string) (results.Dashboard, error)
}

// DashboardHandler serves the reviewer dashboard.
type DashboardHandler struct {
	deps DashboardDependencies
	log  logger.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps DashboardDependencies, log logger.Logger) *DashboardHandler {
	return &DashboardHandler{deps: deps, log: log}
}

// HandleDashboard handles GET /api/projects.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.dashboard"
	claims, _ := ClaimsFrom(r.Context())
	d, err := h.deps.Dashboard(r.Context(), claims.Subject)
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, d)
}
