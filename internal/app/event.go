package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	repository "github.com/liusai0820/smartscore/internal/adapters/repository"
	"github.com/liusai0820/smartscore/internal/domain/event"
	"github.com/liusai0820/smartscore/internal/domain/results"
	"github.com/liusai0820/smartscore/internal/domain/scoring"
	"github.com/liusai0820/smartscore/pkg/logger"
	"github.com/liusai0820/smartscore/pkg/metrics"
)

// State returns the current event state.
func (s *Service) State(ctx context.Context) (event.State, error) {
	store, err := s.deps()
	if err != nil {
		return event.State{}, err
	}
	return store.State(ctx)
}

// SetPhase moves the event to phase. Any phase may follow any other.
func (s *Service) SetPhase(ctx context.Context, phase event.Phase) (event.State, error) {
	if !phase.Valid() {
		return event.State{}, fmt.Errorf("%w: %q", event.ErrInvalidPhase, phase)
	}
	store, err := s.deps()
	if err != nil {
		return event.State{}, err
	}
	st, err := store.SetPhase(ctx, phase)
	if err != nil {
		return event.State{}, fmt.Errorf("set phase: %w", err)
	}
	metrics.RecordPhaseTransition(string(st.Phase))
	metrics.UpdateCurrentPhase(string(st.Phase))
	s.logger.Info(ctx, "event phase changed", logger.String("phase", string(st.Phase)))
	return st, nil
}

// SetSpotlight puts projectID on the audience screen. An empty id clears it.
func (s *Service) SetSpotlight(ctx context.Context, projectID string) (event.State, error) {
	store, err := s.deps()
	if err != nil {
		return event.State{}, err
	}
	st, err := store.SetSpotlight(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return event.State{}, scoring.ErrProjectNotFound
		}
		return event.State{}, fmt.Errorf("set spotlight: %w", err)
	}
	s.logger.Info(ctx, "spotlight changed", logger.String("project_id", st.SpotlightProjectID))
	return st, nil
}

// Reset deletes every score and returns the event to CLOSED with no
// spotlight. Reviewers and projects are kept.
func (s *Service) Reset(ctx context.Context) (event.State, error) {
	store, err := s.deps()
	if err != nil {
		return event.State{}, err
	}
	st, err := store.Reset(ctx)
	if err != nil {
		return event.State{}, fmt.Errorf("reset event: %w", err)
	}
	metrics.RecordReset()
	metrics.UpdateCurrentPhase(string(st.Phase))
	s.logger.Warn(ctx, "event reset, all scores deleted")
	return st, nil
}

// Display returns the audience payload. Concurrent callers share one
// computation.
func (s *Service) Display(ctx context.Context) (results.Display, error) {
	store, err := s.deps()
	if err != nil {
		return results.Display{}, err
	}

	v, err, _ := s.display.Do("display", func() (interface{}, error) {
		ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "service.display")
		defer span.End()

		start := time.Now()
		snap, err := s.snapshot(ctx, store)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		d := results.Project(snap)
		metrics.RecordDisplayLatency(float64(time.Since(start).Milliseconds()))
		return d, nil
	})
	if err != nil {
		metrics.RecordErrorByComponent("service", "display")
		return results.Display{}, fmt.Errorf("build display: %w", err)
	}
	return v.(results.Display), nil
}

// snapshot reads the four collections concurrently.
func (s *Service) snapshot(ctx context.Context, store repository.Store) (results.Snapshot, error) {
	var snap results.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.State, err = store.State(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Reviewers, err = store.ListReviewers(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Projects, err = store.ListProjects(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Scores, err = store.AllScores(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return results.Snapshot{}, err
	}
	return snap, nil
}

// Dashboard returns reviewerID's own view of the programme.
func (s *Service) Dashboard(ctx context.Context, reviewerID string) (results.Dashboard, error) {
	store, err := s.deps()
	if err != nil {
		return results.Dashboard{}, err
	}
	reviewer, err := store.GetReviewer(ctx, reviewerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return results.Dashboard{}, scoring.ErrReviewerNotFound
		}
		return results.Dashboard{}, fmt.Errorf("load reviewer: %w", err)
	}
	st, err := store.State(ctx)
	if err != nil {
		return results.Dashboard{}, fmt.Errorf("read event state: %w", err)
	}
	projects, err := store.ListProjects(ctx)
	if err != nil {
		return results.Dashboard{}, fmt.Errorf("list projects: %w", err)
	}
	own, err := store.ScoresByReviewer(ctx, reviewer.ID)
	if err != nil {
		return results.Dashboard{}, fmt.Errorf("list own scores: %w", err)
	}
	return results.ForReviewer(st, reviewer, projects, own), nil
}
