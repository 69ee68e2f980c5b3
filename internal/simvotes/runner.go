// Package simvotes casts random votes for the spotlighted project through
// the HTTP API, for rehearsals and demos.
package simvotes

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liusai0820/smartscore/internal/domain/event"
	"github.com/liusai0820/smartscore/internal/domain/results"
	"github.com/liusai0820/smartscore/pkg/logger"
)

// Preconditions checked against the display payload.
var (
	ErrNotAccepting = errors.New("event is not accepting scores")
	ErrNoSpotlight  = errors.New("no project is in the spotlight")
)

const conflictCode = "conflict_of_interest"

// Run logs in as every active reviewer who has not yet scored the
// spotlighted project and submits a random score for them.
func Run(ctx context.Context, cfg *Config) (Result, error) {
	log := logger.Get()
	start := time.Now()
	c := newClient(cfg.BaseURL, cfg.Timeout)

	d, err := c.display(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read display: %w", err)
	}
	if d.Phase != event.PhaseAccepting {
		return Result{}, fmt.Errorf("%w (phase %s)", ErrNotAccepting, d.Phase)
	}
	if d.Spotlight == nil {
		return Result{}, ErrNoSpotlight
	}

	res := Result{ProjectID: d.Spotlight.ID, ProjectName: d.Spotlight.Name}
	log.Info(ctx, "simulating votes",
		logger.String("project", d.Spotlight.Name),
		logger.String("department", d.Spotlight.Department),
		logger.Int("roster", len(d.Roster)),
		logger.Int("workers", cfg.Workers))

	var voted, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Workers))

	for _, r := range d.Roster {
		if r.HasVoted {
			res.AlreadyVoted++
			continue
		}
		g.Go(func() error {
			switch outcome := castVote(gctx, c, cfg.Passcode, d.Spotlight.ID, r); outcome {
			case "voted":
				voted.Add(1)
			case "skipped":
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Voted = int(voted.Load())
	res.Skipped = int(skipped.Load())
	res.Failed = int(failed.Load())
	res.Duration = time.Since(start)

	log.Info(ctx, "simulation complete",
		logger.Int("voted", res.Voted),
		logger.Int("skipped_conflict", res.Skipped),
		logger.Int("already_voted", res.AlreadyVoted),
		logger.Int("failed", res.Failed),
		logger.Duration("duration", res.Duration))

	if cfg.Verbose {
		if after, err := c.display(ctx); err == nil {
			logProgress(ctx, log, after)
		}
	}
	return res, nil
}

func castVote(ctx context.Context, c *client, passcode, projectID string, r results.ReviewerStatus) string {
	log := logger.Get()
	token, err := c.login(ctx, r.Name, passcode)
	if err != nil {
		log.Warn(ctx, "login failed", logger.String("reviewer", r.Name), logger.Error(err))
		return "failed"
	}
	err = c.submit(ctx, token, projectID, RandomDimensions())
	var apiErr *apiError
	switch {
	case err == nil:
		log.Debug(ctx, "voted", logger.String("reviewer", r.Name))
		return "voted"
	case errors.As(err, &apiErr) && apiErr.Code == conflictCode:
		log.Debug(ctx, "skipped, same department", logger.String("reviewer", r.Name))
		return "skipped"
	default:
		log.Warn(ctx, "submission failed", logger.String("reviewer", r.Name), logger.Error(err))
		return "failed"
	}
}

func logProgress(ctx context.Context, log logger.Logger, d results.Display) {
	log.Info(ctx, "display after run",
		logger.Int("voted", d.VotedCount),
		logger.Int("total", d.TotalReviewers))
}
