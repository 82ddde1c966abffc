package calendar

import (
	"github.com/hackgods/civil-registry-booking/internal/appointment"
)

const (
	// StartLayout is the ISO local literal the widget parses event starts from.
	StartLayout = "2006-01-02T15:04:05"
	EventColor  = "#2980b9"

	PropHolderName = "holderName"
	PropNationalID = "nationalId"
)

type DisplayEvent struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Start         string            `json:"start"`
	Color         string            `json:"color"`
	ExtendedProps map[string]string `json:"extendedProps"`
}

func ToDisplayEvent(a appointment.Appointment) DisplayEvent {
	return DisplayEvent{
		ID:    a.ID,
		Title: a.ProcedureType,
		Start: a.ScheduledAt.Format(StartLayout),
		Color: EventColor,
		ExtendedProps: map[string]string{
			PropHolderName: a.HolderName,
			PropNationalID: a.NationalID,
		},
	}
}

func ToDisplayEvents(list []appointment.Appointment) []DisplayEvent {
	out := make([]DisplayEvent, 0, len(list))
	for _, a := range list {
		out = append(out, ToDisplayEvent(a))
	}
	return out
}

// Resync replaces every widget event with the projection of list. It is a
// full replace; fine for the handful of bookings one profile holds.
func Resync(w Widget, list []appointment.Appointment) {
	for _, ev := range w.Events() {
		w.RemoveEvent(ev.ID())
	}
	for _, ev := range ToDisplayEvents(list) {
		w.AddEvent(ev)
	}
}

// ApplyEdit updates the single event of an edited appointment in place.
// An event the widget no longer shows is added back.
func ApplyEdit(w Widget, a appointment.Appointment) {
	ev, ok := w.EventByID(a.ID)
	if !ok {
		w.AddEvent(ToDisplayEvent(a))
		return
	}
	ev.SetTitle(a.ProcedureType)
	ev.SetStart(a.ScheduledAt.Format(StartLayout))
	ev.SetProp(PropHolderName, a.HolderName)
	ev.SetProp(PropNationalID, a.NationalID)
}
