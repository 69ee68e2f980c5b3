package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/liusai0820/smartscore/internal/adapters/importer"
	"github.com/liusai0820/smartscore/internal/domain/conflict"
	"github.com/liusai0820/smartscore/internal/domain/event"
	"github.com/liusai0820/smartscore/internal/domain/model"
	"github.com/liusai0820/smartscore/pkg/logger"
)

// AdminDependencies defines the event control and data management operations.
type AdminDependencies interface {
	State(ctx context.Context) (event.State, error)
	SetPhase(ctx context.Context, phase event.Phase) (event.State, error)
	SetSpotlight(ctx context.Context, projectID string) (event.State, error)
	Reset(ctx context.Context) (event.State, error)

	ListReviewers(ctx context.Context) ([]model.Reviewer, error)
	ToggleReviewer(ctx context.Context, id string) (model.Reviewer, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (model.Project, error)
	DeleteProject(ctx context.Context, id string) error

	Import(ctx context.Context, batch importer.Batch) (importer.Report, error)
	LoadMock(ctx context.Context) (importer.Report, error)
	ExtractProjects(ctx context.Context, text string) ([]importer.ProjectRecord, error)
	DepartmentCheck(ctx context.Context, maxDistance int) ([]conflict.Finding, error)
}

// AdminHandler handles /api/admin routes behind an admin session.
type AdminHandler struct {
	deps         AdminDependencies
	maxBodyBytes int64
	log          logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, maxBodyBytes int64, log logger.Logger) *AdminHandler {
	return &AdminHandler{deps: deps, maxBodyBytes: maxBodyBytes, log: log}
}

type phaseRequest struct {
	Phase string `json:"phase"`
}

type spotlightRequest struct {
	ProjectID *string `json:"projectId"`
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Projects []importer.ProjectRecord `json:"projects"`
}

type departmentCheckResponse struct {
	MaxDistance int                `json:"maxDistance"`
	Findings    []conflict.Finding `json:"findings"`
}

// HandleGetState handles GET /api/admin/state.
func (h *AdminHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.State(r.Context())
	if err != nil {
		fail(w, r, h.log, Wrap("api.get_state", err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleSetPhase handles POST /api/admin/state.
func (h *AdminHandler) HandleSetPhase(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_phase"
	var req phaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, op, err)
		return
	}
	phase, err := event.ParsePhase(req.Phase)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	st, err := h.deps.SetPhase(r.Context(), phase)
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleSetSpotlight handles POST /api/admin/spotlight. An empty projectId
// clears the spotlight.
func (h *AdminHandler) HandleSetSpotlight(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_spotlight"
	var req spotlightRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, op, err)
		return
	}
	if req.ProjectID == nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("projectId is required")))
		return
	}
	st, err := h.deps.SetSpotlight(r.Context(), strings.TrimSpace(*req.ProjectID))
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleReset handles POST /api/admin/reset.
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Reset(r.Context())
	if err != nil {
		fail(w, r, h.log, Wrap("api.reset", err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleListReviewers handles GET /api/admin/reviewers.
func (h *AdminHandler) HandleListReviewers(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.ListReviewers(r.Context())
	if err != nil {
		fail(w, r, h.log, Wrap("api.list_reviewers", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleToggleReviewer handles POST /api/admin/reviewers/{id}/toggle.
func (h *AdminHandler) HandleToggleReviewer(w http.ResponseWriter, r *http.Request) {
	rev, err := h.deps.ToggleReviewer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.log, Wrap("api.toggle_reviewer", err))
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// HandleListProjects handles GET /api/admin/projects.
func (h *AdminHandler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.ListProjects(r.Context())
	if err != nil {
		fail(w, r, h.log, Wrap("api.list_projects", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleUpdateProject handles PATCH /api/admin/projects/{id}.
func (h *AdminHandler) HandleUpdateProject(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_project"
	var patch model.ProjectPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeBodyError(w, op, err)
		return
	}
	p, err := h.deps.UpdateProject(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDeleteProject handles DELETE /api/admin/projects/{id}.
func (h *AdminHandler) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, h.log, Wrap("api.delete_project", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleImport handles POST /api/admin/import with a YAML or JSON batch.
func (h *AdminHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.import"
	batch, err := importer.Parse(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		writeBodyError(w, op, err)
		return
	}
	report, err := h.deps.Import(r.Context(), batch)
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleLoadMock handles POST /api/admin/load-mock.
func (h *AdminHandler) HandleLoadMock(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.LoadMock(r.Context())
	if err != nil {
		fail(w, r, h.log, Wrap("api.load_mock", err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleExtract handles POST /api/admin/extract. Nothing is stored.
func (h *AdminHandler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	const op = "api.extract"
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	var req extractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, op, err)
		return
	}
	projects, err := h.deps.ExtractProjects(r.Context(), req.Text)
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{Projects: projects})
}

// HandleDepartmentCheck handles GET /api/admin/department-check?maxDistance=N.
func (h *AdminHandler) HandleDepartmentCheck(w http.ResponseWriter, r *http.Request) {
	const op = "api.department_check"
	maxDistance := conflict.DefaultMaxDistance
	if raw := r.URL.Query().Get("maxDistance"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		maxDistance = n
	}
	findings, err := h.deps.DepartmentCheck(r.Context(), maxDistance)
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, departmentCheckResponse{MaxDistance: maxDistance, Findings: findings})
}
