package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Error taxonomy shared by every service. Handlers map these onto status codes.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateNumber   = errors.New("duplicate number")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidInput      = errors.New("invalid input")
)

// CapacityError reports a volume request that does not fit. Committed is the
// volume already spoken for (completed plus reserved for a work item, already
// reported for an assignment).
type CapacityError struct {
	Scope     string          `json:"scope"`
	Total     decimal.Decimal `json:"total"`
	Committed decimal.Decimal `json:"committed"`
	Requested decimal.Decimal `json:"requested"`
	Remaining decimal.Decimal `json:"remaining"`
	Reason    string          `json:"reason"`
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: %s", e.Reason)
}

// Is lets errors.Is(err, ErrCapacityExceeded) match.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

func notFound(what string, id interface{}) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// lookupErr translates a repository lookup failure.
func lookupErr(err error, what string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what, id)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
