package appointment

import (
	"fmt"
	"strings"
	"time"
)

// SlotLayout is the literal form of a slot as typed in the booking form.
const SlotLayout = "2006-01-02 15:04"

type Appointment struct {
	ID            string
	HolderName    string
	NationalID    string
	ProcedureType string
	ScheduledAt   time.Time
}

// Slot returns the scheduled slot in its literal form.
func (a Appointment) Slot() string {
	return FormatSlot(a.ScheduledAt)
}

// Date and Time split the slot the way receipts print it.
func (a Appointment) Date() string {
	return a.ScheduledAt.Format("2006-01-02")
}

func (a Appointment) Time() string {
	return a.ScheduledAt.Format("15:04")
}

// Input carries raw form values for Create and Update.
type Input struct {
	HolderName    string `json:"holderName"`
	NationalID    string `json:"nationalId"`
	ProcedureType string `json:"procedureType"`
	ScheduledAt   string `json:"scheduledAt"`
}

func (in Input) normalized() Input {
	return Input{
		HolderName:    strings.TrimSpace(in.HolderName),
		NationalID:    strings.ToUpper(strings.TrimSpace(in.NationalID)),
		ProcedureType: strings.TrimSpace(in.ProcedureType),
		ScheduledAt:   strings.TrimSpace(in.ScheduledAt),
	}
}

// InputFrom pre-fills form values from an existing appointment.
func InputFrom(a Appointment) Input {
	return Input{
		HolderName:    a.HolderName,
		NationalID:    a.NationalID,
		ProcedureType: a.ProcedureType,
		ScheduledAt:   a.Slot(),
	}
}

// ParseSlot reads a slot literal in the facility location, truncated to the minute.
func ParseSlot(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(SlotLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot %q: %w", s, err)
	}
	return t.Truncate(time.Minute), nil
}

func FormatSlot(t time.Time) string {
	return t.Format(SlotLayout)
}

// sameSlot compares wall clock minutes so values loaded from storage match
// values parsed from the form regardless of monotonic readings.
func sameSlot(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}
