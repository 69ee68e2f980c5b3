package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/liusai0820/smartscore/internal/domain/event"
	"github.com/liusai0820/smartscore/internal/domain/model"
	"github.com/liusai0820/smartscore/pkg/metrics"
)

// Config keys for the event singleton.
const (
	configPhase     = "scoring_state"
	configSpotlight = "current_project"
)

const schemaV1 = `
CREATE TABLE IF NOT EXISTS reviewers (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	bloc          TEXT NOT NULL,
	department    TEXT NOT NULL DEFAULT '',
	active        INTEGER NOT NULL DEFAULT 1,
	passcode_hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	seq         INTEGER NOT NULL,
	name        TEXT NOT NULL,
	department  TEXT NOT NULL DEFAULT '',
	presenter   TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_projects_seq ON projects(seq);

CREATE TABLE IF NOT EXISTS scores (
	reviewer_id TEXT NOT NULL REFERENCES reviewers(id) ON DELETE CASCADE,
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	data        INTEGER NOT NULL,
	info        INTEGER NOT NULL,
	knowledge   INTEGER NOT NULL,
	insight     INTEGER NOT NULL,
	approval    INTEGER NOT NULL,
	award       INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (reviewer_id, project_id)
);
CREATE INDEX IF NOT EXISTS idx_scores_project ON scores(project_id);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
INSERT OR IGNORE INTO config (key, value) VALUES ('scoring_state', 'CLOSED');
INSERT OR IGNORE INTO config (key, value) VALUES ('current_project', '');
`

const scoreColumns = `reviewer_id, project_id, data, info, knowledge, insight, approval, award, updated_at`

// SQLiteStore is a Store persisted in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL allows concurrent readers but a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schemaV1); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReviewer(r rowScanner) (model.Reviewer, error) {
	var (
		rev    model.Reviewer
		bloc   string
		active int
	)
	if err := r.Scan(&rev.ID, &rev.Name, &bloc, &rev.Department, &active, &rev.PasscodeHash); err != nil {
		return model.Reviewer{}, err
	}
	rev.Bloc = model.Bloc(bloc)
	rev.Active = active != 0
	return rev, nil
}

func scanProject(r rowScanner) (model.Project, error) {
	var (
		p       model.Project
		created int64
	)
	if err := r.Scan(&p.ID, &p.Seq, &p.Name, &p.Department, &p.Presenter, &p.Description, &created); err != nil {
		return model.Project{}, err
	}
	p.CreatedAt = time.UnixMilli(created).UTC()
	return p, nil
}

func scanScore(r rowScanner) (model.Score, error) {
	var (
		sc      model.Score
		updated int64
	)
	d := &sc.Dimensions
	if err := r.Scan(&sc.ReviewerID, &sc.ProjectID, &d.Data, &d.Info, &d.Knowledge, &d.Insight, &d.Approval, &d.Award, &updated); err != nil {
		return model.Score{}, err
	}
	sc.UpdatedAt = time.UnixMilli(updated).UTC()
	return sc, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Identity

func (s *SQLiteStore) ListReviewers(ctx context.Context) ([]model.Reviewer, error) {
	const q = `SELECT id, name, bloc, department, active, passcode_hash FROM reviewers ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list reviewers: %w", err)
	}
	defer rows.Close()

	out := make([]model.Reviewer, 0)
	for rows.Next() {
		r, err := scanReviewer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reviewer: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetReviewer(ctx context.Context, id string) (model.Reviewer, error) {
	const q = `SELECT id, name, bloc, department, active, passcode_hash FROM reviewers WHERE id = ?`
	r, err := scanReviewer(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Reviewer{}, notFound(err, fmt.Sprintf("reviewer %q", id))
	}
	return r, nil
}

func (s *SQLiteStore) GetReviewerByName(ctx context.Context, name string) (model.Reviewer, error) {
	const q = `SELECT id, name, bloc, department, active, passcode_hash FROM reviewers WHERE name = ?`
	r, err := scanReviewer(s.db.QueryRowContext(ctx, q, name))
	if err != nil {
		return model.Reviewer{}, notFound(err, fmt.Sprintf("reviewer named %q", name))
	}
	return r, nil
}

func (s *SQLiteStore) AddReviewers(ctx context.Context, reviewers []model.Reviewer) (int, error) {
	added := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		added, err = addReviewers(ctx, tx, reviewers)
		return err
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

func addReviewers(ctx context.Context, tx *sql.Tx, reviewers []model.Reviewer) (int, error) {
	const q = `INSERT INTO reviewers (id, name, bloc, department, active, passcode_hash)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO NOTHING`

	added := 0
	for _, r := range reviewers {
		res, err := tx.ExecContext(ctx, q, r.ID, r.Name, string(r.Bloc), r.Department, boolInt(r.Active), r.PasscodeHash)
		if err != nil {
			return 0, fmt.Errorf("insert reviewer %q: %w", r.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("check rows affected: %w", err)
		}
		added += int(n)
	}
	return added, nil
}

func (s *SQLiteStore) SetReviewerActive(ctx context.Context, id string, active bool) (model.Reviewer, error) {
	const q = `UPDATE reviewers SET active = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, boolInt(active), id)
	if err != nil {
		return model.Reviewer{}, fmt.Errorf("update reviewer: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.Reviewer{}, fmt.Errorf("check rows affected: %w", err)
	} else if n == 0 {
		return model.Reviewer{}, fmt.Errorf("reviewer %q: %w", id, ErrNotFound)
	}
	return s.GetReviewer(ctx, id)
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	const q = `SELECT id, seq, name, department, presenter, description, created_at FROM projects ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]model.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (model.Project, error) {
	const q = `SELECT id, seq, name, department, presenter, description, created_at FROM projects WHERE id = ?`
	p, err := scanProject(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Project{}, notFound(err, fmt.Sprintf("project %q", id))
	}
	return p, nil
}

func (s *SQLiteStore) ReplaceProjects(ctx context.Context, projects []model.Project) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return replaceProjects(ctx, tx, projects)
	})
}

func (s *SQLiteStore) Import(ctx context.Context, reviewers []model.Reviewer, projects []model.Project) (ImportResult, error) {
	var res ImportResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		added, err := addReviewers(ctx, tx, reviewers)
		if err != nil {
			return err
		}
		res.ReviewersAdded = added
		if len(projects) == 0 {
			return nil
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&res.ProjectsReplaced); err != nil {
			return fmt.Errorf("count projects: %w", err)
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores`).Scan(&res.ScoresCleared); err != nil {
			return fmt.Errorf("count scores: %w", err)
		}
		return replaceProjects(ctx, tx, projects)
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

func replaceProjects(ctx context.Context, tx *sql.Tx, projects []model.Project) error {
	const ins = `INSERT INTO projects (id, seq, name, department, presenter, description, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := tx.ExecContext(ctx, `DELETE FROM scores`); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects`); err != nil {
		return fmt.Errorf("clear projects: %w", err)
	}
	seen := make(map[string]bool, len(projects))
	for i, p := range projects {
		if seen[p.ID] {
			return fmt.Errorf("project id %q: %w", p.ID, ErrDuplicate)
		}
		seen[p.ID] = true
		if _, err := tx.ExecContext(ctx, ins, p.ID, i+1, p.Name, p.Department, p.Presenter, p.Description, p.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("insert project %q: %w", p.Name, err)
		}
	}
	return writeState(ctx, tx, event.Initial())
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p model.Project) (model.Project, error) {
	const q = `UPDATE projects SET name = ?, department = ?, presenter = ?, description = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, p.Name, p.Department, p.Presenter, p.Description, p.ID)
	if err != nil {
		return model.Project{}, fmt.Errorf("update project: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.Project{}, fmt.Errorf("check rows affected: %w", err)
	} else if n == 0 {
		return model.Project{}, fmt.Errorf("project %q: %w", p.ID, ErrNotFound)
	}
	return s.GetProject(ctx, p.ID)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// Scores go with the project through ON DELETE CASCADE.
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("check rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("project %q: %w", id, ErrNotFound)
		}
		const clear = `UPDATE config SET value = '' WHERE key = ? AND value = ?`
		if _, err := tx.ExecContext(ctx, clear, configSpotlight, id); err != nil {
			return fmt.Errorf("clear spotlight: %w", err)
		}
		return nil
	})
}

// Ledger

func (s *SQLiteStore) UpsertScore(ctx context.Context, sc model.Score) error {
	return s.upsert(ctx, sc, false)
}

func (s *SQLiteStore) SubmitScore(ctx context.Context, sc model.Score) error {
	return s.upsert(ctx, sc, true)
}

func (s *SQLiteStore) upsert(ctx context.Context, sc model.Score, requireAccepting bool) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	const q = `INSERT INTO scores (` + scoreColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(reviewer_id, project_id) DO UPDATE SET
	data = excluded.data,
	info = excluded.info,
	knowledge = excluded.knowledge,
	insight = excluded.insight,
	approval = excluded.approval,
	award = excluded.award,
	updated_at = excluded.updated_at`

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if requireAccepting {
			st, err := readState(ctx, tx)
			if err != nil {
				return err
			}
			if !st.AcceptsSubmissions() {
				return ErrNotAccepting
			}
		}
		if err := exists(ctx, tx, `SELECT 1 FROM projects WHERE id = ?`, sc.ProjectID); err != nil {
			return notFound(err, fmt.Sprintf("project %q", sc.ProjectID))
		}
		if err := exists(ctx, tx, `SELECT 1 FROM reviewers WHERE id = ?`, sc.ReviewerID); err != nil {
			return notFound(err, fmt.Sprintf("reviewer %q", sc.ReviewerID))
		}
		d := sc.Dimensions
		if _, err := tx.ExecContext(ctx, q, sc.ReviewerID, sc.ProjectID,
			d.Data, d.Info, d.Knowledge, d.Insight, d.Approval, d.Award, sc.UpdatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("upsert score: %w", err)
		}
		return nil
	})
}

func exists(ctx context.Context, tx *sql.Tx, q string, arg any) error {
	var one int
	return tx.QueryRowContext(ctx, q, arg).Scan(&one)
}

func (s *SQLiteStore) GetScore(ctx context.Context, reviewerID, projectID string) (model.Score, error) {
	const q = `SELECT ` + scoreColumns + ` FROM scores WHERE reviewer_id = ? AND project_id = ?`
	sc, err := scanScore(s.db.QueryRowContext(ctx, q, reviewerID, projectID))
	if err != nil {
		return model.Score{}, notFound(err, fmt.Sprintf("score %s/%s", reviewerID, projectID))
	}
	return sc, nil
}

func (s *SQLiteStore) queryScores(ctx context.Context, q string, args ...any) ([]model.Score, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	out := make([]model.Score, 0)
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ScoresByProject(ctx context.Context, projectID string) ([]model.Score, error) {
	return s.queryScores(ctx, `SELECT `+scoreColumns+` FROM scores WHERE project_id = ? ORDER BY reviewer_id`, projectID)
}

func (s *SQLiteStore) ScoresByReviewer(ctx context.Context, reviewerID string) ([]model.Score, error) {
	return s.queryScores(ctx, `SELECT `+scoreColumns+` FROM scores WHERE reviewer_id = ? ORDER BY project_id`, reviewerID)
}

func (s *SQLiteStore) AllScores(ctx context.Context) ([]model.Score, error) {
	return s.queryScores(ctx, `SELECT `+scoreColumns+` FROM scores ORDER BY project_id, reviewer_id`)
}

func (s *SQLiteStore) CountScores(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scores: %w", err)
	}
	return n, nil
}

// State

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readState(ctx context.Context, q querier) (event.State, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, value FROM config WHERE key IN (?, ?)`, configPhase, configSpotlight)
	if err != nil {
		return event.State{}, fmt.Errorf("read state: %w", err)
	}
	defer rows.Close()

	st := event.Initial()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return event.State{}, fmt.Errorf("scan state: %w", err)
		}
		switch k {
		case configPhase:
			p, err := event.ParsePhase(v)
			if err != nil {
				return event.State{}, err
			}
			st.Phase = p
		case configSpotlight:
			st.SpotlightProjectID = v
		}
	}
	return st, rows.Err()
}

func writeState(ctx context.Context, tx *sql.Tx, st event.State) error {
	const q = `INSERT INTO config (key, value) VALUES (?, ?), (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, q, configPhase, string(st.Phase), configSpotlight, st.SpotlightProjectID); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) State(ctx context.Context) (event.State, error) {
	return readState(ctx, s.db)
}

func (s *SQLiteStore) mutateState(ctx context.Context, fn func(tx *sql.Tx, st event.State) (event.State, error)) (event.State, error) {
	var out event.State
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := readState(ctx, tx)
		if err != nil {
			return err
		}
		next, err := fn(tx, cur)
		if err != nil {
			return err
		}
		if err := writeState(ctx, tx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

func (s *SQLiteStore) SetPhase(ctx context.Context, phase event.Phase) (event.State, error) {
	if !phase.Valid() {
		return event.State{}, fmt.Errorf("%w: %q", event.ErrInvalidPhase, phase)
	}
	return s.mutateState(ctx, func(_ *sql.Tx, st event.State) (event.State, error) {
		st.Phase = phase
		return st, nil
	})
}

func (s *SQLiteStore) SetSpotlight(ctx context.Context, projectID string) (event.State, error) {
	return s.mutateState(ctx, func(tx *sql.Tx, st event.State) (event.State, error) {
		if projectID != "" {
			if err := exists(ctx, tx, `SELECT 1 FROM projects WHERE id = ?`, projectID); err != nil {
				return event.State{}, notFound(err, fmt.Sprintf("project %q", projectID))
			}
		}
		st.SpotlightProjectID = projectID
		return st, nil
	})
}

func (s *SQLiteStore) Reset(ctx context.Context) (event.State, error) {
	return s.mutateState(ctx, func(tx *sql.Tx, _ event.State) (event.State, error) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM scores`); err != nil {
			return event.State{}, fmt.Errorf("clear scores: %w", err)
		}
		return event.Initial(), nil
	})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLiteStore)(nil)
