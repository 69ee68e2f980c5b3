package api

import (
	"errors"
	"net/http"

	"github.com/liusai0820/smartscore/internal/adapters/extract"
	"github.com/liusai0820/smartscore/internal/adapters/importer"
	repository "github.com/liusai0820/smartscore/internal/adapters/repository"
	"github.com/liusai0820/smartscore/internal/auth"
	"github.com/liusai0820/smartscore/internal/domain/event"
	"github.com/liusai0820/smartscore/internal/domain/scoring"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Error records the handler operation and the kind that selects the
// response status.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// message is what the client sees.
func (e *Error) message() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind attaches kind to err.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap records op on err and lets its own kind decide the status.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

type errorClass struct {
	kind   error
	status int
	code   string
}

// errorClasses is checked in order; the first match wins.
var errorClasses = []errorClass{
	{scoring.ErrEventClosed, http.StatusForbidden, "scoring_closed"},
	{scoring.ErrInvalidDimension, http.StatusBadRequest, "invalid_dimension"},
	{scoring.ErrConflictOfInterest, http.StatusForbidden, "conflict_of_interest"},
	{scoring.ErrProjectNotFound, http.StatusNotFound, "not_found"},
	{scoring.ErrReviewerNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{event.ErrInvalidPhase, http.StatusBadRequest, "bad_request"},
	{importer.ErrInvalidBatch, http.StatusBadRequest, "bad_request"},
	{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrLoginDisabled, http.StatusForbidden, "forbidden"},
	{ErrForbidden, http.StatusForbidden, "forbidden"},
	{extract.ErrUnavailable, http.StatusServiceUnavailable, "extraction_unavailable"},
	{extract.ErrBadResponse, http.StatusBadGateway, "extraction_failed"},
}

// classify maps err to a status and a stable error code.
func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.kind) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}
