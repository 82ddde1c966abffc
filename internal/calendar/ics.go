package calendar

import (
	"fmt"
	"io"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
)

const (
	ICSProductID    = "-//Registro Civil//Citas//ES"
	ICSUIDDomain    = "citas.registro-civil.local"
	AppointmentSpan = 30 * time.Minute

	icsLocalLayout = "20060102T150405"
)

// WriteICS writes the appointments as an iCalendar feed. Events carry the
// facility TZID, defined by a VTIMEZONE block, so calendar apps place them
// at office local time. Long lines are folded at 75 octets.
func WriteICS(w io.Writer, list []appointment.Appointment, catalog appointment.Catalog, loc *time.Location, now time.Time) error {
	tzid := loc.String()

	cal := ics.NewCalendar()
	cal.SetProductId(ICSProductID)
	cal.SetMethod(ics.MethodPublish)
	cal.SetCalscale("GREGORIAN")
	cal.SetXWRCalName("Citas Registro Civil")
	cal.SetXWRTimezone(tzid)

	addTimezone(cal, loc, list, now)

	for _, a := range list {
		start := a.ScheduledAt.In(loc)
		end := start.Add(AppointmentSpan)

		ev := cal.AddEvent(fmt.Sprintf("%s@%s", a.ID, ICSUIDDomain))
		ev.SetDtStampTime(now)
		ev.SetProperty(ics.ComponentPropertyDtStart, start.Format(icsLocalLayout), ics.WithTZID(tzid))
		ev.SetProperty(ics.ComponentPropertyDtEnd, end.Format(icsLocalLayout), ics.WithTZID(tzid))
		ev.SetSummary(catalog.Title(a.ProcedureType))
		ev.SetDescription(fmt.Sprintf("Cita de %s (CURP %s)", a.HolderName, a.NationalID))
	}

	return cal.SerializeTo(w)
}

type transition struct {
	at           time.Time
	from, to     int
	name         string
	daylightTime bool
}

// addTimezone describes loc over every year the feed touches. Zones without
// offset changes get a single STANDARD observance.
func addTimezone(cal *ics.Calendar, loc *time.Location, list []appointment.Appointment, now time.Time) {
	tz := cal.AddTimezone(loc.String())

	years := map[int]bool{now.In(loc).Year(): true}
	for _, a := range list {
		years[a.ScheduledAt.In(loc).Year()] = true
	}
	sorted := make([]int, 0, len(years))
	for y := range years {
		sorted = append(sorted, y)
	}
	sort.Ints(sorted)

	var found []transition
	for _, y := range sorted {
		found = append(found, transitionsIn(loc, y)...)
	}

	if len(found) == 0 {
		name, offset := now.In(loc).Zone()
		std := tz.AddStandard()
		setObservance(&std.ComponentBase, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), offset, offset, name)
		return
	}

	for _, tr := range found {
		// DTSTART of an observance is the wall time of the onset in the old offset.
		onset := tr.at.In(time.FixedZone("", tr.from))
		if tr.daylightTime {
			dl := &ics.Daylight{}
			setObservance(&dl.ComponentBase, onset, tr.from, tr.to, tr.name)
			tz.Components = append(tz.Components, dl)
			continue
		}
		std := tz.AddStandard()
		setObservance(&std.ComponentBase, onset, tr.from, tr.to, tr.name)
	}
}

func setObservance(cb *ics.ComponentBase, onset time.Time, from, to int, name string) {
	cb.SetProperty(ics.ComponentPropertyDtStart, onset.Format(icsLocalLayout))
	cb.SetProperty(ics.ComponentProperty(ics.PropertyTzoffsetfrom), formatOffset(from))
	cb.SetProperty(ics.ComponentProperty(ics.PropertyTzoffsetto), formatOffset(to))
	if name != "" {
		cb.SetProperty(ics.ComponentProperty(ics.PropertyTzname), name)
	}
}

// transitionsIn finds the offset changes of loc during year. Rules change at
// whole seconds, so an hourly scan narrowed by bisection finds each one.
func transitionsIn(loc *time.Location, year int) []transition {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, loc)
	end := time.Date(year+1, 1, 1, 0, 0, 0, 0, loc)

	var out []transition
	_, prev := start.Zone()
	for t := start.Add(time.Hour); !t.After(end); t = t.Add(time.Hour) {
		name, offset := t.Zone()
		if offset == prev {
			continue
		}

		lo, hi := t.Add(-time.Hour).Unix(), t.Unix()
		for hi-lo > 1 {
			mid := lo + (hi-lo)/2
			if _, o := time.Unix(mid, 0).In(loc).Zone(); o == prev {
				lo = mid
			} else {
				hi = mid
			}
		}
		out = append(out, transition{at: time.Unix(hi, 0), from: prev, to: offset, name: name, daylightTime: offset > prev})
		prev = offset
	}
	return out
}

func formatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d%02d", sign, seconds/3600, (seconds%3600)/60)
}
