// Package event holds the global phase of the scoring event.
package event

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPhase is returned when a phase label cannot be parsed.
var ErrInvalidPhase = errors.New("invalid phase")

// Phase is the lifecycle stage of the event.
type Phase string

// Event phases. Any phase may move to any other.
const (
	PhaseClosed    Phase = "CLOSED"
	PhaseAccepting Phase = "ACCEPTING"
	PhaseRevealed  Phase = "REVEALED"
)

// ParsePhase is case-insensitive and also accepts SCORING as a synonym for
// ACCEPTING.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(PhaseClosed):
		return PhaseClosed, nil
	case string(PhaseAccepting), "SCORING":
		return PhaseAccepting, nil
	case string(PhaseRevealed):
		return PhaseRevealed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseClosed, PhaseAccepting, PhaseRevealed:
		return true
	default:
		return false
	}
}

// State is the event-wide singleton.
type State struct {
	Phase Phase `json:"phase"`
	// SpotlightProjectID is empty when no project is being presented.
	SpotlightProjectID string `json:"spotlightProjectId,omitempty"`
}

// Initial returns the state of a freshly created or reset event.
func Initial() State {
	return State{Phase: PhaseClosed}
}

// AcceptsSubmissions reports whether scores may be written.
func (s State) AcceptsSubmissions() bool { return s.Phase == PhaseAccepting }

// Revealed reports whether aggregates may be shown.
func (s State) Revealed() bool { return s.Phase == PhaseRevealed }

// HasSpotlight reports whether a project is currently being presented.
func (s State) HasSpotlight() bool { return s.SpotlightProjectID != "" }
