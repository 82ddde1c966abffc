package appointment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var nationalIDPattern = regexp.MustCompile(`^[A-Z0-9]{18}$`)

// ValidNationalID reports whether id has the CURP shape: 18 alphanumerics.
func ValidNationalID(id string) bool {
	return nationalIDPattern.MatchString(id)
}

type Option func(*Store)

// WithClock replaces time.Now for past-date checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the facility time zone slots are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

func WithCatalog(c Catalog) Option {
	return func(s *Store) { s.catalog = c }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// Store owns one profile's appointment list. Every write re-reads the
// persisted list under the repository lock, so several stores over the same
// profile never overwrite each other's bookings.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	repo    Repository
	catalog Catalog
	loc     *time.Location
	now     func() time.Time
	newID   func() string

	list      []Appointment
	refreshed bool
}

// NewStore loads the persisted list through repo.
func NewStore(ctx context.Context, repo Repository, opts ...Option) (*Store, error) {
	s := &Store{
		repo:    repo,
		catalog: DefaultCatalog(),
		loc:     time.Local,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	list, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	s.list = s.localize(list)
	return s, nil
}

func (s *Store) Catalog() Catalog {
	return s.catalog
}

func (s *Store) Location() *time.Location {
	return s.loc
}

// List returns a snapshot in insertion order.
func (s *Store) List() []Appointment {
	out := make([]Appointment, len(s.list))
	copy(out, s.list)
	return out
}

func (s *Store) Len() int {
	return len(s.list)
}

func (s *Store) FindByID(id string) (Appointment, bool) {
	if i := indexOf(s.list, id); i >= 0 {
		return s.list[i], true
	}
	return Appointment{}, false
}

// IsSlotTaken reports whether an appointment other than excludingID holds t.
// Pass an empty excludingID for new bookings.
func (s *Store) IsSlotTaken(t time.Time, excludingID string) bool {
	return slotTaken(s.list, t, excludingID)
}

// Refreshed reports whether a write since the previous call found the
// persisted list changed by another store, and clears the flag. List then
// already reflects storage.
func (s *Store) Refreshed() bool {
	r := s.refreshed
	s.refreshed = false
	return r
}

func (s *Store) Create(ctx context.Context, in Input) (Appointment, error) {
	in = in.normalized()
	at, err := s.validate(in)
	if err != nil {
		return Appointment{}, err
	}

	appt := Appointment{
		ID:            s.newID(),
		HolderName:    in.HolderName,
		NationalID:    in.NationalID,
		ProcedureType: in.ProcedureType,
		ScheduledAt:   at,
	}

	err = s.commit(ctx, func(current []Appointment) ([]Appointment, error) {
		if slotTaken(current, at, "") {
			return nil, &ValidationError{Reason: ReasonSlotTaken, Field: "scheduledAt"}
		}
		next := make([]Appointment, 0, len(current)+1)
		next = append(next, current...)
		return append(next, appt), nil
	})
	if err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

// Update replaces every field but the id, keeping the list position.
func (s *Store) Update(ctx context.Context, id string, in Input) (Appointment, error) {
	in = in.normalized()

	var updated Appointment
	err := s.commit(ctx, func(current []Appointment) ([]Appointment, error) {
		idx := indexOf(current, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		at, err := s.validate(in)
		if err != nil {
			return nil, err
		}
		if slotTaken(current, at, id) {
			return nil, &ValidationError{Reason: ReasonSlotTaken, Field: "scheduledAt"}
		}

		updated = Appointment{
			ID:            id,
			HolderName:    in.HolderName,
			NationalID:    in.NationalID,
			ProcedureType: in.ProcedureType,
			ScheduledAt:   at,
		}
		next := make([]Appointment, len(current))
		copy(next, current)
		next[idx] = updated
		return next, nil
	})
	if err != nil {
		return Appointment{}, err
	}
	return updated, nil
}

// Delete reports false without persisting when id is unknown.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	err := s.commit(ctx, func(current []Appointment) ([]Appointment, error) {
		idx := indexOf(current, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		next := make([]Appointment, 0, len(current)-1)
		next = append(next, current[:idx]...)
		return append(next, current[idx+1:]...), nil
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// commit runs build against the persisted list while the repository holds
// the profile lock. A rejection from build comes back unwrapped and the live
// list adopts what storage held; a storage failure leaves it untouched.
func (s *Store) commit(ctx context.Context, build func(current []Appointment) ([]Appointment, error)) error {
	var (
		current  []Appointment
		next     []Appointment
		rejected error
	)
	err := s.repo.Mutate(ctx, func(persisted []Appointment) ([]Appointment, error) {
		current = s.localize(persisted)
		next, rejected = build(current)
		return next, rejected
	})
	if rejected != nil {
		s.replace(current, current)
		return rejected
	}
	if err != nil {
		return fmt.Errorf("persist appointments: %w", err)
	}
	s.replace(current, next)
	return nil
}

// replace makes next the live list, flagging a refresh when current holds
// writes this store had not seen.
func (s *Store) replace(current, next []Appointment) {
	if !sameList(s.list, current) {
		s.refreshed = true
	}
	s.list = next
}

// validate runs every check that does not depend on the other bookings.
func (s *Store) validate(in Input) (time.Time, error) {
	switch {
	case in.HolderName == "":
		return time.Time{}, &ValidationError{Reason: ReasonMissingField, Field: "holderName"}
	case in.NationalID == "":
		return time.Time{}, &ValidationError{Reason: ReasonMissingField, Field: "nationalId"}
	case in.ProcedureType == "":
		return time.Time{}, &ValidationError{Reason: ReasonMissingField, Field: "procedureType"}
	case in.ScheduledAt == "":
		return time.Time{}, &ValidationError{Reason: ReasonMissingField, Field: "scheduledAt"}
	}

	if !ValidNationalID(in.NationalID) {
		return time.Time{}, &ValidationError{Reason: ReasonInvalidNationalID, Field: "nationalId"}
	}
	if !s.catalog.Has(in.ProcedureType) {
		return time.Time{}, &ValidationError{Reason: ReasonUnknownProcedure, Field: "procedureType"}
	}

	at, err := ParseSlot(in.ScheduledAt, s.loc)
	if err != nil {
		return time.Time{}, &ValidationError{Reason: ReasonInvalidSchedule, Field: "scheduledAt"}
	}
	if s.IsPastDay(at) {
		return time.Time{}, &ValidationError{Reason: ReasonPastDate, Field: "scheduledAt"}
	}
	return at, nil
}

func (s *Store) localize(list []Appointment) []Appointment {
	out := make([]Appointment, len(list))
	for i, a := range list {
		a.ScheduledAt = a.ScheduledAt.In(s.loc)
		out[i] = a
	}
	return out
}

// IsPastDay compares against midnight of today, so later hours of the
// current day are still bookable.
func (s *Store) IsPastDay(t time.Time) bool {
	now := s.now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return t.In(s.loc).Before(midnight)
}

func indexOf(list []Appointment, id string) int {
	if id == "" {
		return -1
	}
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func slotTaken(list []Appointment, t time.Time, excludingID string) bool {
	for _, a := range list {
		if a.ID != excludingID && sameSlot(a.ScheduledAt, t) {
			return true
		}
	}
	return false
}

func sameList(a, b []Appointment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.HolderName != y.HolderName || x.NationalID != y.NationalID ||
			x.ProcedureType != y.ProcedureType || !x.ScheduledAt.Equal(y.ScheduledAt) {
			return false
		}
	}
	return true
}
