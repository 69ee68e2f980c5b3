// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownBloc is returned when a bloc label cannot be parsed.
var ErrUnknownBloc = errors.New("unknown bloc")

// Bloc is the weighting group a reviewer votes in.
type Bloc string

// Reviewer blocs. Primary is senior leadership, Secondary is department heads.
const (
	BlocPrimary   Bloc = "PRIMARY"
	BlocSecondary Bloc = "SECONDARY"
)

// ParseBloc accepts the canonical labels as well as the legacy role names
// LEADER and DEPT_HEAD used by older import files. Matching is case-insensitive.
func ParseBloc(s string) (Bloc, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PRIMARY", "LEADER":
		return BlocPrimary, nil
	case "SECONDARY", "DEPT_HEAD", "DEPTHEAD":
		return BlocSecondary, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBloc, s)
	}
}

// Valid reports whether b is one of the known blocs.
func (b Bloc) Valid() bool {
	return b == BlocPrimary || b == BlocSecondary
}

// Reviewer is a member of the judging panel.
type Reviewer struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Bloc       Bloc   `json:"bloc"`
	Department string `json:"department"`
	Active     bool   `json:"active"`
	// PasscodeHash is a bcrypt hash and never leaves the process.
	PasscodeHash string `json:"-"`
}

// Project is a presentation scored by the panel.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Department  string    `json:"department"`
	Presenter   string    `json:"presenter"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	// Seq preserves import order; listings are ordered by it.
	Seq int64 `json:"-"`
}

// ProjectPatch holds the editable project fields. Nil fields are unchanged.
type ProjectPatch struct {
	Name        *string `json:"name"`
	Department  *string `json:"department"`
	Presenter   *string `json:"presenter"`
	Description *string `json:"description"`
}

// Score is one reviewer's assessment of one project. The pair
// (ReviewerID, ProjectID) is unique in the ledger.
type Score struct {
	ReviewerID string     `json:"reviewerId"`
	ProjectID  string     `json:"projectId"`
	Dimensions Dimensions `json:"dimensions"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Total returns the unweighted sum of the six dimensions.
func (s Score) Total() int { return s.Dimensions.Total() }
