// Package importer turns YAML or JSON rosters and programmes into domain
// records.
package importer

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/liusai0820/smartscore/internal/domain/model"
)

// ErrInvalidBatch wraps every parse or validation failure.
var ErrInvalidBatch = errors.New("invalid import batch")

//go:embed data/*.yaml
var builtin embed.FS

// ReviewerRecord is one roster line. Bloc accepts PRIMARY/SECONDARY or the
// legacy LEADER/DEPT_HEAD labels; Role is read as a fallback for Bloc.
type ReviewerRecord struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name" validate:"required,max=100"`
	Bloc       string `yaml:"bloc" json:"bloc"`
	Role       string `yaml:"role" json:"role"`
	Department string `yaml:"department" json:"department" validate:"max=200"`
	Passcode   string `yaml:"passcode" json:"passcode" validate:"required,max=72"`
	Active     *bool  `yaml:"active" json:"active"`
}

// ProjectRecord is one programme line.
type ProjectRecord struct {
	Name        string `yaml:"name" json:"name" validate:"required,max=200"`
	Department  string `yaml:"department" json:"department" validate:"max=200"`
	Presenter   string `yaml:"presenter" json:"presenter" validate:"max=100"`
	Description string `yaml:"description" json:"description" validate:"max=2000"`
}

// Batch is an import payload. Users is accepted as an alias of Reviewers.
type Batch struct {
	Reviewers []ReviewerRecord `yaml:"reviewers" json:"reviewers" validate:"dive"`
	Users     []ReviewerRecord `yaml:"users" json:"users" validate:"dive"`
	Projects  []ProjectRecord  `yaml:"projects" json:"projects" validate:"dive"`
}

// Report summarizes an applied batch.
type Report struct {
	ReviewersCreated int  `json:"reviewersCreated"`
	ReviewersSkipped int  `json:"reviewersSkipped"`
	ProjectsCreated  int  `json:"projectsCreated"`
	ProjectsReplaced int  `json:"projectsReplaced"`
	ScoresCleared    int  `json:"scoresCleared"`
	StateReset       bool `json:"stateReset"`
}

// Empty reports whether the batch carries nothing to import.
func (b Batch) Empty() bool {
	return len(b.Reviewers) == 0 && len(b.Users) == 0 && len(b.Projects) == 0
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes a YAML or JSON document. Unknown keys are rejected.
func Parse(r io.Reader) (Batch, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var b Batch
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return Batch{}, fmt.Errorf("%w: empty document", ErrInvalidBatch)
		}
		return Batch{}, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	b.Reviewers = append(b.Reviewers, b.Users...)
	b.Users = nil

	if err := validate.Struct(b); err != nil {
		return Batch{}, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	for i, r := range b.Reviewers {
		if _, err := r.bloc(); err != nil {
			return Batch{}, fmt.Errorf("%w: reviewer %d (%s): %w", ErrInvalidBatch, i, r.Name, err)
		}
	}
	return b, nil
}

func (r ReviewerRecord) bloc() (model.Bloc, error) {
	label := r.Bloc
	if strings.TrimSpace(label) == "" {
		label = r.Role
	}
	return model.ParseBloc(label)
}

// Hasher turns a plaintext passcode into its stored form.
type Hasher func(passcode string) (string, error)

// BuildReviewers converts roster lines into reviewers, hashing every
// passcode. Lines without an id get a fresh uuid.
func (b Batch) BuildReviewers(hash Hasher) ([]model.Reviewer, error) {
	out := make([]model.Reviewer, 0, len(b.Reviewers))
	for _, r := range b.Reviewers {
		bloc, err := r.bloc()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
		}
		h, err := hash(r.Passcode)
		if err != nil {
			return nil, fmt.Errorf("hash passcode for %s: %w", r.Name, err)
		}
		id := strings.TrimSpace(r.ID)
		if id == "" {
			id = uuid.NewString()
		}
		active := true
		if r.Active != nil {
			active = *r.Active
		}
		out = append(out, model.Reviewer{
			ID:           id,
			Name:         strings.TrimSpace(r.Name),
			Bloc:         bloc,
			Department:   strings.TrimSpace(r.Department),
			Active:       active,
			PasscodeHash: h,
		})
	}
	return out, nil
}

// BuildProjects converts programme lines into projects in input order.
func (b Batch) BuildProjects(now time.Time) []model.Project {
	return ProjectsFromRecords(b.Projects, now)
}

// ProjectsFromRecords assigns ids and creation time to records.
func ProjectsFromRecords(records []ProjectRecord, now time.Time) []model.Project {
	out := make([]model.Project, 0, len(records))
	for _, p := range records {
		out = append(out, model.Project{
			ID:          uuid.NewString(),
			Name:        strings.TrimSpace(p.Name),
			Department:  strings.TrimSpace(p.Department),
			Presenter:   strings.TrimSpace(p.Presenter),
			Description: strings.TrimSpace(p.Description),
			CreatedAt:   now,
		})
	}
	return out
}

// ValidateProjects checks records produced outside Parse, e.g. by extraction.
func ValidateProjects(records []ProjectRecord) error {
	for i, p := range records {
		if err := validate.Struct(p); err != nil {
			return fmt.Errorf("%w: project %d: %w", ErrInvalidBatch, i, err)
		}
	}
	return nil
}

func loadBuiltin(name string) (Batch, error) {
	data, err := builtin.ReadFile("data/" + name)
	if err != nil {
		return Batch{}, fmt.Errorf("read %s: %w", name, err)
	}
	return Parse(bytes.NewReader(data))
}

// DefaultReviewers returns the built-in judging panel.
func DefaultReviewers() (Batch, error) { return loadBuiltin("default_reviewers.yaml") }

// MockProjects returns the built-in demo programme.
func MockProjects() (Batch, error) { return loadBuiltin("mock_projects.yaml") }
