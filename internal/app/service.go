// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/liusai0820/smartscore/internal/adapters/extract"
	repository "github.com/liusai0820/smartscore/internal/adapters/repository"
	"github.com/liusai0820/smartscore/internal/auth"
	"github.com/liusai0820/smartscore/pkg/logger"
	"github.com/liusai0820/smartscore/pkg/metrics"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for a scoring event.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	ownsStore bool
	extractor extract.Extractor
	issuer    *auth.Issuer

	// Configuration
	adminPassword string
	adminHash     string
	bcryptCost    int
	shardCount    int
	now           func() time.Time

	display singleflight.Group
	tracer  trace.Tracer

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects the persistence layer. The caller keeps ownership and
// closes it. Without a store Start creates an in-memory one.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithShardCount sizes the in-memory ledger created when no store is given.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithExtractor enables programme extraction from free text.
func WithExtractor(e extract.Extractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithIssuer sets the session token issuer. It is required.
func WithIssuer(issuer *auth.Issuer) Option {
	return func(s *Service) {
		if issuer != nil {
			s.issuer = issuer
		}
	}
}

// WithAdminPassword enables admin login. An empty password disables it.
func WithAdminPassword(password string) Option {
	return func(s *Service) {
		s.adminPassword = password
	}
}

// WithBcryptCost sets the cost used to hash passcodes.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a new service instance with the given options.
func New(opts ...Option) *Service {
	s := &Service{
		bcryptCost: bcrypt.DefaultCost,
		shardCount: 16,
		now:        time.Now,
		tracer:     otel.Tracer("smartscore/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes all components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.issuer == nil {
		return errors.New("service: a token issuer is required")
	}

	s.logger.Info(ctx, "starting scoring service",
		logger.Bool("admin_login", s.adminPassword != ""),
		logger.Bool("extraction", s.extractor != nil),
		logger.Int("bcrypt_cost", s.bcryptCost))

	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx, repository.WithShardCount(s.shardCount))
		s.ownsStore = true
	}

	if s.adminPassword != "" {
		hash, err := auth.HashPasscode(s.adminPassword, s.bcryptCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		s.adminHash = hash
		s.adminPassword = ""
	}

	st, err := s.store.State(ctx)
	if err != nil {
		return fmt.Errorf("read event state: %w", err)
	}
	metrics.UpdateCurrentPhase(string(st.Phase))

	s.started = true
	s.logger.Info(ctx, "scoring service started", logger.String("phase", string(st.Phase)))
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	var err error
	if s.ownsStore {
		err = s.store.Close()
		s.store = nil
		s.ownsStore = false
	}
	s.started = false
	if s.logger != nil {
		s.logger.Info(context.Background(), "scoring service stopped")
	}
	return err
}

// deps returns the components under the read lock.
func (s *Service) deps() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// GetStats returns population counts and updates the matching gauges.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"started":    false,
		"goroutines": runtime.NumGoroutine(),
	}
	store, err := s.deps()
	if err != nil {
		return stats
	}
	stats["started"] = true

	reviewers, err := store.ListReviewers(ctx)
	if err != nil {
		s.logger.Warn(ctx, "stats: list reviewers failed", logger.Error(err))
		return stats
	}
	projects, err := store.ListProjects(ctx)
	if err != nil {
		s.logger.Warn(ctx, "stats: list projects failed", logger.Error(err))
		return stats
	}
	scores, err := store.CountScores(ctx)
	if err != nil {
		s.logger.Warn(ctx, "stats: count scores failed", logger.Error(err))
		return stats
	}
	st, err := store.State(ctx)
	if err != nil {
		s.logger.Warn(ctx, "stats: read state failed", logger.Error(err))
		return stats
	}

	active := 0
	for _, r := range reviewers {
		if r.Active {
			active++
		}
	}
	metrics.UpdatePopulation(len(reviewers), active, len(projects), scores)

	stats["phase"] = string(st.Phase)
	stats["spotlight"] = st.SpotlightProjectID
	stats["reviewers"] = len(reviewers)
	stats["active_reviewers"] = active
	stats["projects"] = len(projects)
	stats["scores"] = scores
	return stats
}
