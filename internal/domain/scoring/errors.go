package scoring

import (
	"errors"
	"fmt"
)

// Submission rejection kinds. Policy errors (closed event, conflict) are
// routine outcomes and are kept distinct from validation errors.
var (
	ErrEventClosed        = errors.New("event is not accepting submissions")
	ErrProjectNotFound    = errors.New("project not found")
	ErrReviewerNotFound   = errors.New("reviewer not found")
	ErrInvalidDimension   = errors.New("invalid dimension value")
	ErrConflictOfInterest = errors.New("conflict of interest")
)

// InvalidDimensionError names the first dimension that failed validation.
type InvalidDimensionError struct {
	Dimension string
	Value     int
	Max       int
	// Missing is set when the field was absent from the request.
	Missing bool
}

func (e *InvalidDimensionError) Error() string {
	if e.Missing {
		return fmt.Sprintf("%s: %s is required", ErrInvalidDimension, e.Dimension)
	}
	return fmt.Sprintf("%s: %s=%d, want 1..%d", ErrInvalidDimension, e.Dimension, e.Value, e.Max)
}

// Unwrap lets errors.Is match ErrInvalidDimension.
func (e *InvalidDimensionError) Unwrap() error { return ErrInvalidDimension }
