package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liusai0820/smartscore/internal/adapters/extract"
	"github.com/liusai0820/smartscore/internal/adapters/importer"
	repository "github.com/liusai0820/smartscore/internal/adapters/repository"
	"github.com/liusai0820/smartscore/internal/auth"
	"github.com/liusai0820/smartscore/internal/domain/conflict"
	"github.com/liusai0820/smartscore/internal/domain/model"
	"github.com/liusai0820/smartscore/internal/domain/scoring"
	"github.com/liusai0820/smartscore/pkg/logger"
)

// LoginReviewer checks name and passcode and issues a reviewer session.
// Unknown names and wrong passcodes both report auth.ErrInvalidCredentials.
func (s *Service) LoginReviewer(ctx context.Context, name, passcode string) (auth.Session, error) {
	store, err := s.deps()
	if err != nil {
		return auth.Session{}, err
	}
	r, err := store.GetReviewerByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return auth.Session{}, auth.ErrInvalidCredentials
		}
		return auth.Session{}, fmt.Errorf("load reviewer: %w", err)
	}
	if err := auth.CheckPasscode(r.PasscodeHash, passcode); err != nil {
		s.logger.Debug(ctx, "reviewer login rejected", logger.String("reviewer_id", r.ID))
		return auth.Session{}, err
	}
	token, err := s.issuer.Issue(r.ID, auth.RoleReviewer, r.Name)
	if err != nil {
		return auth.Session{}, err
	}
	s.logger.Info(ctx, "reviewer logged in", logger.String("reviewer_id", r.ID), logger.String("bloc", string(r.Bloc)))
	return auth.Session{Token: token, Role: auth.RoleReviewer, ExpiresAt: s.now().Add(s.issuer.TTL()), Reviewer: &r}, nil
}

// LoginAdmin checks the admin password and issues an admin session.
func (s *Service) LoginAdmin(ctx context.Context, password string) (auth.Session, error) {
	if _, err := s.deps(); err != nil {
		return auth.Session{}, err
	}
	if s.adminHash == "" {
		return auth.Session{}, auth.ErrLoginDisabled
	}
	if err := auth.CheckPasscode(s.adminHash, password); err != nil {
		s.logger.Warn(ctx, "admin login rejected")
		return auth.Session{}, err
	}
	token, err := s.issuer.Issue("admin", auth.RoleAdmin, "admin")
	if err != nil {
		return auth.Session{}, err
	}
	s.logger.Info(ctx, "admin logged in")
	return auth.Session{Token: token, Role: auth.RoleAdmin, ExpiresAt: s.now().Add(s.issuer.TTL())}, nil
}

// Authenticate parses a session token.
func (s *Service) Authenticate(token string) (*auth.Claims, error) {
	return s.issuer.Parse(token)
}

// Reviewer returns one reviewer.
func (s *Service) Reviewer(ctx context.Context, id string) (model.Reviewer, error) {
	store, err := s.deps()
	if err != nil {
		return model.Reviewer{}, err
	}
	r, err := store.GetReviewer(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Reviewer{}, scoring.ErrReviewerNotFound
	}
	return r, err
}

// ListReviewers returns the whole panel, active or not.
func (s *Service) ListReviewers(ctx context.Context) ([]model.Reviewer, error) {
	store, err := s.deps()
	if err != nil {
		return nil, err
	}
	return store.ListReviewers(ctx)
}

// ToggleReviewer flips a reviewer's active flag. Their scores are kept.
func (s *Service) ToggleReviewer(ctx context.Context, id string) (model.Reviewer, error) {
	store, err := s.deps()
	if err != nil {
		return model.Reviewer{}, err
	}
	r, err := store.GetReviewer(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Reviewer{}, scoring.ErrReviewerNotFound
		}
		return model.Reviewer{}, err
	}
	r, err = store.SetReviewerActive(ctx, id, !r.Active)
	if err != nil {
		return model.Reviewer{}, fmt.Errorf("toggle reviewer: %w", err)
	}
	s.logger.Info(ctx, "reviewer toggled", logger.String("reviewer_id", r.ID), logger.Bool("active", r.Active))
	return r, nil
}

// ListProjects returns the programme in presentation order.
func (s *Service) ListProjects(ctx context.Context) ([]model.Project, error) {
	store, err := s.deps()
	if err != nil {
		return nil, err
	}
	return store.ListProjects(ctx)
}

// UpdateProject applies patch to project id.
func (s *Service) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (model.Project, error) {
	store, err := s.deps()
	if err != nil {
		return model.Project{}, err
	}
	p, err := store.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Project{}, scoring.ErrProjectNotFound
		}
		return model.Project{}, err
	}

	rec := importer.ProjectRecord{Name: p.Name, Department: p.Department, Presenter: p.Presenter, Description: p.Description}
	if patch.Name != nil {
		rec.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Department != nil {
		rec.Department = strings.TrimSpace(*patch.Department)
	}
	if patch.Presenter != nil {
		rec.Presenter = strings.TrimSpace(*patch.Presenter)
	}
	if patch.Description != nil {
		rec.Description = *patch.Description
	}
	if err := importer.ValidateProjects([]importer.ProjectRecord{rec}); err != nil {
		return model.Project{}, err
	}

	p.Name, p.Department, p.Presenter, p.Description = rec.Name, rec.Department, rec.Presenter, rec.Description
	p, err = store.UpdateProject(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Project{}, scoring.ErrProjectNotFound
		}
		return model.Project{}, fmt.Errorf("update project: %w", err)
	}
	s.logger.Info(ctx, "project updated", logger.String("project_id", p.ID))
	return p, nil
}

// DeleteProject removes a project with its scores.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	store, err := s.deps()
	if err != nil {
		return err
	}
	if err := store.DeleteProject(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return scoring.ErrProjectNotFound
		}
		return fmt.Errorf("delete project: %w", err)
	}
	s.logger.Warn(ctx, "project deleted", logger.String("project_id", id))
	return nil
}

// Import adds the batch's reviewers and, when it carries projects,
// replaces the whole programme. Replacing deletes every score and returns
// the event to CLOSED with no spotlight. The store applies both in one
// step, so a failed import changes nothing.
func (s *Service) Import(ctx context.Context, batch importer.Batch) (importer.Report, error) {
	store, err := s.deps()
	if err != nil {
		return importer.Report{}, err
	}
	if batch.Empty() {
		return importer.Report{}, fmt.Errorf("%w: nothing to import", importer.ErrInvalidBatch)
	}

	reviewers, err := batch.BuildReviewers(func(p string) (string, error) {
		return auth.HashPasscode(p, s.bcryptCost)
	})
	if err != nil {
		return importer.Report{}, err
	}

	var projects []model.Project
	if len(batch.Projects) > 0 {
		projects = batch.BuildProjects(s.now().UTC())
	}
	res, err := store.Import(ctx, reviewers, projects)
	if err != nil {
		return importer.Report{}, fmt.Errorf("apply import: %w", err)
	}

	report := importer.Report{
		ReviewersCreated: res.ReviewersAdded,
		ReviewersSkipped: len(reviewers) - res.ReviewersAdded,
	}
	if len(projects) > 0 {
		report.ProjectsCreated = len(projects)
		report.ProjectsReplaced = res.ProjectsReplaced
		report.ScoresCleared = res.ScoresCleared
		report.StateReset = true
	}

	s.logger.Info(ctx, "import applied",
		logger.Int("reviewers_created", report.ReviewersCreated),
		logger.Int("reviewers_skipped", report.ReviewersSkipped),
		logger.Int("projects_created", report.ProjectsCreated),
		logger.Int("scores_cleared", report.ScoresCleared))
	return report, nil
}

// LoadMock replaces the programme with the built-in demo projects.
func (s *Service) LoadMock(ctx context.Context) (importer.Report, error) {
	batch, err := importer.MockProjects()
	if err != nil {
		return importer.Report{}, err
	}
	return s.Import(ctx, batch)
}

// SeedDefaults imports the built-in panel when no reviewer exists yet.
// It reports how many reviewers were created.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	store, err := s.deps()
	if err != nil {
		return 0, err
	}
	existing, err := store.ListReviewers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reviewers: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	batch, err := importer.DefaultReviewers()
	if err != nil {
		return 0, err
	}
	report, err := s.Import(ctx, batch)
	if err != nil {
		return 0, err
	}
	return report.ReviewersCreated, nil
}

// SeedBatch imports a startup batch without disturbing a running event.
// Reviewers are added by name as usual; projects are only loaded while the
// programme is empty, so restarting never replaces projects or clears scores.
func (s *Service) SeedBatch(ctx context.Context, batch importer.Batch) (importer.Report, error) {
	store, err := s.deps()
	if err != nil {
		return importer.Report{}, err
	}
	if len(batch.Projects) > 0 {
		existing, err := store.ListProjects(ctx)
		if err != nil {
			return importer.Report{}, fmt.Errorf("list projects: %w", err)
		}
		if len(existing) > 0 {
			s.logger.Info(ctx, "programme already loaded; seed projects skipped",
				logger.Int("existing", len(existing)),
				logger.Int("skipped", len(batch.Projects)))
			batch.Projects = nil
		}
	}
	if batch.Empty() {
		return importer.Report{}, nil
	}
	return s.Import(ctx, batch)
}

// ExtractProjects previews the projects found in text. Nothing is stored.
func (s *Service) ExtractProjects(ctx context.Context, text string) ([]importer.ProjectRecord, error) {
	if _, err := s.deps(); err != nil {
		return nil, err
	}
	if s.extractor == nil {
		return nil, fmt.Errorf("%w: no extractor configured", extract.ErrUnavailable)
	}
	return s.extractor.Extract(ctx, text)
}

// DepartmentCheck lists reviewer/project department pairs that conflict
// or nearly do.
func (s *Service) DepartmentCheck(ctx context.Context, maxDistance int) ([]conflict.Finding, error) {
	store, err := s.deps()
	if err != nil {
		return nil, err
	}
	reviewers, err := store.ListReviewers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reviewers: %w", err)
	}
	projects, err := store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return conflict.Diagnose(reviewers, projects, maxDistance), nil
}
