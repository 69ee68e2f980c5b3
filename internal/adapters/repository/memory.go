package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/liusai0820/smartscore/internal/domain/event"
	"github.com/liusai0820/smartscore/internal/domain/model"
	"github.com/liusai0820/smartscore/pkg/metrics"
)

type scoreKey struct {
	reviewerID string
	projectID  string
}

// shard is one independently locked slice of the ledger. Writes for
// different keys only contend when they hash to the same shard.
type shard struct {
	mu     sync.RWMutex
	scores map[scoreKey]model.Score
}

// MemoryStore is an in-process Store.
//
// Lock order: idMu, then shard locks in index order. Ledger writes hold
// idMu for reading; project deletion, reset and phase changes hold it for
// writing, so none of them interleave with an upsert.
type MemoryStore struct {
	idMu           sync.RWMutex
	reviewers      map[string]model.Reviewer
	reviewerByName map[string]string
	projects       map[string]model.Project
	seq            int64

	shards     []*shard
	shardCount int

	state atomic.Pointer[event.State]

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	closeOnce             sync.Once
}

// NewMemoryStore constructs a memory store with configuration options.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		reviewers:             make(map[string]model.Reviewer),
		reviewerByName:        make(map[string]string),
		projects:              make(map[string]model.Project),
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{scores: make(map[scoreKey]model.Score)}
	}
	initial := event.Initial()
	s.state.Store(&initial)

	metrics.UpdateRepositoryShardCount(s.shardCount)
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) shardFor(k scoreKey) *shard {
	h := xxhash.Sum64String(k.reviewerID + "\x00" + k.projectID)
	return s.shards[h%uint64(len(s.shards))]
}

// clearLedgerLocked removes every score drop reports true for. Caller holds idMu.
func (s *MemoryStore) clearLedgerLocked(drop func(model.Score) bool) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, v := range sh.scores {
			if drop(v) {
				delete(sh.scores, k)
			}
		}
		sh.mu.Unlock()
	}
}

func (s *MemoryStore) updateState(fn func(event.State) event.State) event.State {
	for {
		cur := s.state.Load()
		next := fn(*cur)
		if s.state.CompareAndSwap(cur, &next) {
			return next
		}
	}
}

// Identity

func (s *MemoryStore) ListReviewers(_ context.Context) ([]model.Reviewer, error) {
	s.idMu.RLock()
	out := make([]model.Reviewer, 0, len(s.reviewers))
	for _, r := range s.reviewers {
		out = append(out, r)
	}
	s.idMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetReviewer(_ context.Context, id string) (model.Reviewer, error) {
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	r, ok := s.reviewers[id]
	if !ok {
		return model.Reviewer{}, fmt.Errorf("reviewer %q: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *MemoryStore) GetReviewerByName(_ context.Context, name string) (model.Reviewer, error) {
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	id, ok := s.reviewerByName[name]
	if !ok {
		return model.Reviewer{}, fmt.Errorf("reviewer named %q: %w", name, ErrNotFound)
	}
	return s.reviewers[id], nil
}

func (s *MemoryStore) AddReviewers(_ context.Context, reviewers []model.Reviewer) (int, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	if err := s.checkReviewersLocked(reviewers); err != nil {
		return 0, err
	}
	return s.addReviewersLocked(reviewers), nil
}

// checkReviewersLocked rejects a batch whose new reviewers reuse an id.
// Caller holds idMu.
func (s *MemoryStore) checkReviewersLocked(reviewers []model.Reviewer) error {
	names := make(map[string]bool, len(reviewers))
	ids := make(map[string]bool, len(reviewers))
	for _, r := range reviewers {
		if _, taken := s.reviewerByName[r.Name]; taken || names[r.Name] {
			continue
		}
		if _, taken := s.reviewers[r.ID]; taken || ids[r.ID] {
			return fmt.Errorf("reviewer id %q: %w", r.ID, ErrDuplicate)
		}
		names[r.Name] = true
		ids[r.ID] = true
	}
	return nil
}

func (s *MemoryStore) addReviewersLocked(reviewers []model.Reviewer) int {
	added := 0
	for _, r := range reviewers {
		if _, taken := s.reviewerByName[r.Name]; taken {
			continue
		}
		s.reviewers[r.ID] = r
		s.reviewerByName[r.Name] = r.ID
		added++
	}
	return added
}

func (s *MemoryStore) SetReviewerActive(_ context.Context, id string, active bool) (model.Reviewer, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	r, ok := s.reviewers[id]
	if !ok {
		return model.Reviewer{}, fmt.Errorf("reviewer %q: %w", id, ErrNotFound)
	}
	r.Active = active
	s.reviewers[id] = r
	return r, nil
}

func (s *MemoryStore) ListProjects(_ context.Context) ([]model.Project, error) {
	s.idMu.RLock()
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	s.idMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (model.Project, error) {
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return model.Project{}, fmt.Errorf("project %q: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *MemoryStore) ReplaceProjects(_ context.Context, projects []model.Project) error {
	next, err := indexProjects(projects)
	if err != nil {
		return err
	}
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.replaceProjectsLocked(next)
	return nil
}

func (s *MemoryStore) Import(_ context.Context, reviewers []model.Reviewer, projects []model.Project) (ImportResult, error) {
	var next map[string]model.Project
	if len(projects) > 0 {
		var err error
		if next, err = indexProjects(projects); err != nil {
			return ImportResult{}, err
		}
	}

	s.idMu.Lock()
	defer s.idMu.Unlock()
	if err := s.checkReviewersLocked(reviewers); err != nil {
		return ImportResult{}, err
	}
	res := ImportResult{ReviewersAdded: s.addReviewersLocked(reviewers)}
	if next != nil {
		res.ProjectsReplaced = len(s.projects)
		res.ScoresCleared = s.countScores()
		s.replaceProjectsLocked(next)
	}
	return res, nil
}

func indexProjects(projects []model.Project) (map[string]model.Project, error) {
	next := make(map[string]model.Project, len(projects))
	for i, p := range projects {
		if _, dup := next[p.ID]; dup {
			return nil, fmt.Errorf("project id %q: %w", p.ID, ErrDuplicate)
		}
		p.Seq = int64(i + 1)
		next[p.ID] = p
	}
	return next, nil
}

// replaceProjectsLocked installs next, drops every score and resets the
// event. Caller holds idMu.
func (s *MemoryStore) replaceProjectsLocked(next map[string]model.Project) {
	s.projects = next
	s.seq = int64(len(next))
	s.clearLedgerLocked(func(model.Score) bool { return true })
	s.updateState(func(event.State) event.State { return event.Initial() })
}

func (s *MemoryStore) UpdateProject(_ context.Context, p model.Project) (model.Project, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	cur, ok := s.projects[p.ID]
	if !ok {
		return model.Project{}, fmt.Errorf("project %q: %w", p.ID, ErrNotFound)
	}
	cur.Name = p.Name
	cur.Department = p.Department
	cur.Presenter = p.Presenter
	cur.Description = p.Description
	s.projects[p.ID] = cur
	return cur, nil
}

func (s *MemoryStore) DeleteProject(_ context.Context, id string) error {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return fmt.Errorf("project %q: %w", id, ErrNotFound)
	}
	delete(s.projects, id)
	s.clearLedgerLocked(func(sc model.Score) bool { return sc.ProjectID == id })
	s.updateState(func(st event.State) event.State {
		if st.SpotlightProjectID == id {
			st.SpotlightProjectID = ""
		}
		return st
	})
	return nil
}

// Ledger

func (s *MemoryStore) UpsertScore(_ context.Context, sc model.Score) error {
	return s.upsert(sc, false)
}

func (s *MemoryStore) SubmitScore(_ context.Context, sc model.Score) error {
	return s.upsert(sc, true)
}

func (s *MemoryStore) upsert(sc model.Score, requireAccepting bool) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	// Phase changes take idMu exclusively, so the phase cannot move while
	// this read lock is held.
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	if requireAccepting && !s.state.Load().AcceptsSubmissions() {
		return ErrNotAccepting
	}
	if _, ok := s.projects[sc.ProjectID]; !ok {
		return fmt.Errorf("project %q: %w", sc.ProjectID, ErrNotFound)
	}
	if _, ok := s.reviewers[sc.ReviewerID]; !ok {
		return fmt.Errorf("reviewer %q: %w", sc.ReviewerID, ErrNotFound)
	}

	k := scoreKey{reviewerID: sc.ReviewerID, projectID: sc.ProjectID}
	sh := s.shardFor(k)
	sh.mu.Lock()
	sh.scores[k] = sc
	sh.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetScore(_ context.Context, reviewerID, projectID string) (model.Score, error) {
	k := scoreKey{reviewerID: reviewerID, projectID: projectID}
	sh := s.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sc, ok := sh.scores[k]
	if !ok {
		return model.Score{}, fmt.Errorf("score %s/%s: %w", reviewerID, projectID, ErrNotFound)
	}
	return sc, nil
}

func (s *MemoryStore) collect(keep func(model.Score) bool) []model.Score {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	out := make([]model.Score, 0)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, v := range sh.scores {
			if keep(v) {
				out = append(out, v)
			}
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].ReviewerID < out[j].ReviewerID
	})
	return out
}

func (s *MemoryStore) ScoresByProject(_ context.Context, projectID string) ([]model.Score, error) {
	return s.collect(func(sc model.Score) bool { return sc.ProjectID == projectID }), nil
}

func (s *MemoryStore) ScoresByReviewer(_ context.Context, reviewerID string) ([]model.Score, error) {
	return s.collect(func(sc model.Score) bool { return sc.ReviewerID == reviewerID }), nil
}

func (s *MemoryStore) AllScores(_ context.Context) ([]model.Score, error) {
	return s.collect(func(model.Score) bool { return true }), nil
}

func (s *MemoryStore) CountScores(_ context.Context) (int, error) {
	return s.countScores(), nil
}

func (s *MemoryStore) countScores() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.scores)
		sh.mu.RUnlock()
	}
	return n
}

// State

func (s *MemoryStore) State(_ context.Context) (event.State, error) {
	return *s.state.Load(), nil
}

func (s *MemoryStore) SetPhase(_ context.Context, phase event.Phase) (event.State, error) {
	if !phase.Valid() {
		return event.State{}, fmt.Errorf("%w: %q", event.ErrInvalidPhase, phase)
	}
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return s.updateState(func(st event.State) event.State {
		st.Phase = phase
		return st
	}), nil
}

func (s *MemoryStore) SetSpotlight(_ context.Context, projectID string) (event.State, error) {
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	if projectID != "" {
		if _, ok := s.projects[projectID]; !ok {
			return event.State{}, fmt.Errorf("project %q: %w", projectID, ErrNotFound)
		}
	}
	return s.updateState(func(st event.State) event.State {
		st.SpotlightProjectID = projectID
		return st
	}), nil
}

func (s *MemoryStore) Reset(_ context.Context) (event.State, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.clearLedgerLocked(func(model.Score) bool { return true })
	return s.updateState(func(event.State) event.State { return event.Initial() }), nil
}

// startMetricsUpdater publishes per-shard record counts until Close or ctx end.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	for i, sh := range s.shards {
		sh.mu.RLock()
		n := len(sh.scores)
		sh.mu.RUnlock()
		metrics.UpdateRepositoryRecordsPerShard(fmt.Sprintf("shard_%d", i), n)
	}
}

var _ Store = (*MemoryStore)(nil)
