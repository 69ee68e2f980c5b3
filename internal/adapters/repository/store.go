// Package repository holds the reviewer/project identities, the score
// ledger and the event state singleton.
package repository

import (
	"context"

	"github.com/liusai0820/smartscore/internal/domain/event"
	"github.com/liusai0820/smartscore/internal/domain/model"
)

// IdentityStore owns reviewers and projects.
type IdentityStore interface {
	// ListReviewers returns every reviewer, active or not, ordered by id.
	ListReviewers(ctx context.Context) ([]model.Reviewer, error)
	// GetReviewer returns ErrNotFound for unknown ids.
	GetReviewer(ctx context.Context, id string) (model.Reviewer, error)
	// GetReviewerByName returns ErrNotFound for unknown names.
	GetReviewerByName(ctx context.Context, name string) (model.Reviewer, error)
	// AddReviewers inserts reviewers whose name is not yet taken and
	// reports how many were added. Existing names are left untouched.
	AddReviewers(ctx context.Context, reviewers []model.Reviewer) (int, error)
	// SetReviewerActive flips a reviewer in or out of aggregates.
	SetReviewerActive(ctx context.Context, id string, active bool) (model.Reviewer, error)

	// ListProjects returns projects in presentation order.
	ListProjects(ctx context.Context) ([]model.Project, error)
	// GetProject returns ErrNotFound for unknown ids.
	GetProject(ctx context.Context, id string) (model.Project, error)
	// ReplaceProjects swaps the whole programme. Every score is dropped and
	// the event goes back to its initial state.
	ReplaceProjects(ctx context.Context, projects []model.Project) error
	// UpdateProject rewrites name, department, presenter and description.
	UpdateProject(ctx context.Context, p model.Project) (model.Project, error)
	// DeleteProject removes the project, its scores and, if it was
	// spotlighted, the spotlight.
	DeleteProject(ctx context.Context, id string) error
	// Import adds reviewers as AddReviewers does and, when projects is
	// non-empty, replaces the programme as ReplaceProjects does. Both
	// apply or neither does.
	Import(ctx context.Context, reviewers []model.Reviewer, projects []model.Project) (ImportResult, error)
}

// ImportResult counts what an Import changed.
type ImportResult struct {
	ReviewersAdded   int
	ProjectsReplaced int
	ScoresCleared    int
}

// Ledger stores at most one score per (reviewer, project).
type Ledger interface {
	// UpsertScore inserts or fully replaces the score for its key.
	UpsertScore(ctx context.Context, s model.Score) error
	// SubmitScore upserts only while the event accepts submissions and
	// returns ErrNotAccepting otherwise. The phase is read in the same
	// critical section as the write, so no score lands after a close or
	// reset has returned.
	SubmitScore(ctx context.Context, s model.Score) error
	// GetScore returns ErrNotFound when the reviewer has not scored the project.
	GetScore(ctx context.Context, reviewerID, projectID string) (model.Score, error)
	ScoresByProject(ctx context.Context, projectID string) ([]model.Score, error)
	ScoresByReviewer(ctx context.Context, reviewerID string) ([]model.Score, error)
	AllScores(ctx context.Context) ([]model.Score, error)
	CountScores(ctx context.Context) (int, error)
}

// StateStore holds the event singleton. Every mutation is a single write.
type StateStore interface {
	State(ctx context.Context) (event.State, error)
	SetPhase(ctx context.Context, phase event.Phase) (event.State, error)
	// SetSpotlight points at projectID, or clears the spotlight when empty.
	// An unknown project id returns ErrNotFound.
	SetSpotlight(ctx context.Context, projectID string) (event.State, error)
	// Reset deletes every score and returns the event to its initial state.
	Reset(ctx context.Context) (event.State, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	IdentityStore
	Ledger
	StateStore
	Close() error
}
