package appointment

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("appointment not found")

type Reason string

const (
	ReasonMissingField      Reason = "missing_field"
	ReasonInvalidNationalID Reason = "invalid_national_id"
	ReasonUnknownProcedure  Reason = "unknown_procedure"
	ReasonInvalidSchedule   Reason = "invalid_schedule"
	ReasonPastDate          Reason = "past_date"
	ReasonSlotTaken         Reason = "slot_taken"
)

// ValidationError rejects a Create or Update before anything is persisted.
type ValidationError struct {
	Reason Reason
	Field  string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s (%s)", e.Reason, e.Field)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// IsReason reports whether err is a ValidationError with the given reason.
func IsReason(err error, r Reason) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr) && vErr.Reason == r
}

// Repository is the persistence port of the Store. Mutate hands fn the
// persisted list and stores the complete list fn returns, with no other
// writer of the same list in between. An error from fn cancels the write
// and is returned as is.
type Repository interface {
	Load(ctx context.Context) ([]Appointment, error)
	Mutate(ctx context.Context, fn func(current []Appointment) ([]Appointment, error)) error
}
