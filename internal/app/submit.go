package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	repository "github.com/liusai0820/smartscore/internal/adapters/repository"
	"github.com/liusai0820/smartscore/internal/domain/conflict"
	"github.com/liusai0820/smartscore/internal/domain/model"
	"github.com/liusai0820/smartscore/internal/domain/scoring"
	"github.com/liusai0820/smartscore/pkg/logger"
	"github.com/liusai0820/smartscore/pkg/metrics"
)

// Submit records reviewerID's score for projectID. Checks run in a fixed
// order and the first failure wins: the event must be accepting, the
// project must exist, every dimension must be present and in range, and the
// reviewer must not share the project's department. A resubmission fully
// replaces the previous score.
func (s *Service) Submit(ctx context.Context, reviewerID, projectID string, in scoring.DimensionInput) (sc model.Score, err error) {
	store, err := s.deps()
	if err != nil {
		return model.Score{}, err
	}

	ctx, span := s.tracer.Start(ctx, "service.submit", trace.WithAttributes(
		attribute.String("reviewer.id", reviewerID),
		attribute.String("project.id", projectID),
	))
	start := time.Now()
	defer func() {
		outcome := submitOutcome(err)
		if outcome == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordErrorByComponent("service", "submit")
		}
		span.SetAttributes(attribute.String("submit.outcome", outcome))
		metrics.RecordSubmission(outcome, float64(time.Since(start).Milliseconds()))
		span.End()
	}()

	st, err := store.State(ctx)
	if err != nil {
		return model.Score{}, fmt.Errorf("read event state: %w", err)
	}
	if !st.AcceptsSubmissions() {
		return model.Score{}, scoring.ErrEventClosed
	}

	project, err := store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Score{}, scoring.ErrProjectNotFound
		}
		return model.Score{}, fmt.Errorf("load project: %w", err)
	}

	dims, err := in.Resolve()
	if err != nil {
		return model.Score{}, err
	}

	reviewer, err := store.GetReviewer(ctx, reviewerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Score{}, scoring.ErrReviewerNotFound
		}
		return model.Score{}, fmt.Errorf("load reviewer: %w", err)
	}
	if !conflict.MayScore(reviewer, project) {
		s.logger.Info(ctx, "submission blocked by department conflict",
			logger.String("reviewer_id", reviewer.ID),
			logger.String("project_id", project.ID),
			logger.String("department", project.Department))
		return model.Score{}, scoring.ErrConflictOfInterest
	}

	sc = model.Score{
		ReviewerID: reviewer.ID,
		ProjectID:  project.ID,
		Dimensions: dims,
		UpdatedAt:  s.now().UTC(),
	}
	if err := store.SubmitScore(ctx, sc); err != nil {
		// The phase, project or reviewer can change between the checks and
		// the write; the store rechecks them atomically.
		switch {
		case errors.Is(err, repository.ErrNotAccepting):
			return model.Score{}, scoring.ErrEventClosed
		case errors.Is(err, repository.ErrNotFound):
			return model.Score{}, scoring.ErrProjectNotFound
		}
		return model.Score{}, fmt.Errorf("store score: %w", err)
	}

	s.logger.Debug(ctx, "score recorded",
		logger.String("reviewer_id", sc.ReviewerID),
		logger.String("project_id", sc.ProjectID),
		logger.Int("total", sc.Total()))
	return sc, nil
}

// Score returns reviewerID's own score for projectID.
func (s *Service) Score(ctx context.Context, reviewerID, projectID string) (model.Score, error) {
	store, err := s.deps()
	if err != nil {
		return model.Score{}, err
	}
	sc, err := store.GetScore(ctx, reviewerID, projectID)
	if err != nil {
		return model.Score{}, fmt.Errorf("load score: %w", err)
	}
	return sc, nil
}

func submitOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, scoring.ErrEventClosed):
		return "closed"
	case errors.Is(err, scoring.ErrProjectNotFound), errors.Is(err, scoring.ErrReviewerNotFound):
		return "not_found"
	case errors.Is(err, scoring.ErrInvalidDimension):
		return "invalid"
	case errors.Is(err, scoring.ErrConflictOfInterest):
		return "conflict"
	default:
		return "error"
	}
}
