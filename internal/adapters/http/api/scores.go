package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liusai0820/smartscore/internal/domain/model"
	"github.com/liusai0820/smartscore/internal/domain/scoring"
	"github.com/liusai0820/smartscore/pkg/logger"
)

// ScoringDependencies defines the submission operations.
type ScoringDependencies interface {
	Submit(ctx context.Context, reviewerID, projectID string, in scoring.DimensionInput) (model.Score, error)
	Score(ctx context.Context, reviewerID, projectID string) (model.Score, error)
}

// ScoresHandler handles score submission and read-back.
type ScoresHandler struct {
	deps ScoringDependencies
	log  logger.Logger
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoringDependencies, log logger.Logger) *ScoresHandler {
	return &ScoresHandler{deps: deps, log: log}
}

// submitRequest is the body of POST /api/scores. ReviewerID is optional
// and, when present, must name the session reviewer.
type submitRequest struct {
	ProjectID  string `json:"projectId"`
	ReviewerID string `json:"reviewerId,omitempty"`
	scoring.DimensionInput
}

type scoreResponse struct {
	ReviewerID string           `json:"reviewerId"`
	ProjectID  string           `json:"projectId"`
	Dimensions model.Dimensions `json:"dimensions"`
	Total      int              `json:"total"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func newScoreResponse(s model.Score) scoreResponse {
	return scoreResponse{
		ReviewerID: s.ReviewerID,
		ProjectID:  s.ProjectID,
		Dimensions: s.Dimensions,
		Total:      s.Total(),
		UpdatedAt:  s.UpdatedAt,
	}
}

// HandleSubmit handles POST /api/scores.
func (h *ScoresHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_score"
	claims, _ := ClaimsFrom(r.Context())

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, op, err)
		return
	}
	if req.ReviewerID != "" && req.ReviewerID != claims.Subject {
		writeError(w, http.StatusForbidden, "forbidden", NewKind(op, ErrForbidden))
		return
	}

	score, err := h.deps.Submit(r.Context(), claims.Subject, strings.TrimSpace(req.ProjectID), req.DimensionInput)
	if err != nil {
		h.log.Debug(r.Context(), "submission rejected",
			logger.String("reviewer_id", claims.Subject),
			logger.String("project_id", req.ProjectID),
			logger.Error(err))
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newScoreResponse(score))
}

// HandleGetScore handles GET /api/scores/{projectID}.
func (h *ScoresHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_score"
	claims, _ := ClaimsFrom(r.Context())
	score, err := h.deps.Score(r.Context(), claims.Subject, chi.URLParam(r, "projectID"))
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newScoreResponse(score))
}
