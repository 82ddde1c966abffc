package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
)

var testLoc = time.FixedZone("CST", -6*3600)

func appt(t *testing.T, id, procedure, slot string) appointment.Appointment {
	t.Helper()
	at, err := appointment.ParseSlot(slot, testLoc)
	require.NoError(t, err)
	return appointment.Appointment{
		ID:            id,
		HolderName:    "Ana Lopez",
		NationalID:    "ABCD123456HVZLNN09",
		ProcedureType: procedure,
		ScheduledAt:   at,
	}
}

func TestToDisplayEvents(t *testing.T) {
	events := ToDisplayEvents([]appointment.Appointment{appt(t, "a1", "marriage", "2025-06-10 10:00")})

	require.Len(t, events, 1)
	assert.Equal(t, DisplayEvent{
		ID:    "a1",
		Title: "marriage",
		Start: "2025-06-10T10:00:00",
		Color: EventColor,
		ExtendedProps: map[string]string{
			PropHolderName: "Ana Lopez",
			PropNationalID: "ABCD123456HVZLNN09",
		},
	}, events[0])
}

func TestResyncReplacesEverything(t *testing.T) {
	w := NewMemoryWidget()
	w.AddEvent(DisplayEvent{ID: "stale", Title: "birth", Start: "2025-01-01T09:00:00"})

	list := []appointment.Appointment{
		appt(t, "a1", "marriage", "2025-06-10 10:00"),
		appt(t, "a2", "death", "2025-06-10 10:30"),
	}
	Resync(w, list)

	assert.Equal(t, ToDisplayEvents(list), w.Snapshot())
	_, ok := w.EventByID("stale")
	assert.False(t, ok)
}

func TestResyncIsIdempotent(t *testing.T) {
	list := []appointment.Appointment{
		appt(t, "a1", "marriage", "2025-06-10 10:00"),
		appt(t, "a2", "copies", "2025-06-11 11:00"),
	}

	once := NewMemoryWidget()
	Resync(once, list)

	twice := NewMemoryWidget()
	Resync(twice, list)
	Resync(twice, list)

	assert.Equal(t, once.Snapshot(), twice.Snapshot())
}

func TestApplyEdit(t *testing.T) {
	w := NewMemoryWidget()
	original := appt(t, "a1", "marriage", "2025-06-10 10:00")
	other := appt(t, "a2", "birth", "2025-06-10 12:00")
	Resync(w, []appointment.Appointment{original, other})

	edited := appt(t, "a1", "copies", "2025-06-12 09:30")
	edited.HolderName = "Ana María López"
	ApplyEdit(w, edited)

	ev, ok := w.EventByID("a1")
	require.True(t, ok)
	assert.Equal(t, "copies", ev.Title())
	assert.Equal(t, "2025-06-12T09:30:00", ev.Start())
	assert.Equal(t, "Ana María López", ev.Props()[PropHolderName])
	assert.Len(t, w.Events(), 2)

	untouched, ok := w.EventByID("a2")
	require.True(t, ok)
	assert.Equal(t, "birth", untouched.Title())
}

func TestApplyEditRestoresMissingEvent(t *testing.T) {
	w := NewMemoryWidget()
	ApplyEdit(w, appt(t, "a1", "marriage", "2025-06-10 10:00"))

	assert.Len(t, w.Events(), 1)
}

func TestRemoveEvent(t *testing.T) {
	w := NewMemoryWidget()
	Resync(w, []appointment.Appointment{
		appt(t, "a1", "marriage", "2025-06-10 10:00"),
		appt(t, "a2", "birth", "2025-06-10 12:00"),
	})

	w.RemoveEvent("a1")

	_, ok := w.EventByID("a1")
	assert.False(t, ok)
	assert.Len(t, w.Snapshot(), 1)
}

func TestDefaultWidgetConfig(t *testing.T) {
	cfg := DefaultWidgetConfig("America/Mexico_City")

	assert.Equal(t, "timeGridWeek", cfg.InitialView)
	assert.Equal(t, "es", cfg.Locale)
	assert.Equal(t, "00:30:00", cfg.SlotDuration)
	assert.Equal(t, 1, cfg.FirstDay)
	assert.False(t, cfg.SlotEventOverlap)
}

func TestWriteICS(t *testing.T) {
	var buf bytes.Buffer
	list := []appointment.Appointment{appt(t, "a1", "marriage", "2025-06-10 10:00")}

	err := WriteICS(&buf, list, appointment.DefaultCatalog(), testLoc, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	body := buf.String()

	for _, field := range []string{
		"BEGIN:VCALENDAR",
		"PRODID:" + ICSProductID,
		"BEGIN:VEVENT",
		"UID:a1@" + ICSUIDDomain,
		"DTSTAMP:20250601T000000Z",
		"DTSTART;TZID=CST:20250610T100000",
		"DTEND;TZID=CST:20250610T103000",
		"SUMMARY:Matrimonio Civil",
		"END:VCALENDAR",
	} {
		assert.Contains(t, body, field)
	}
	assert.Equal(t, 1, strings.Count(body, "BEGIN:VEVENT"))
}

func TestWriteICSFoldsLongLines(t *testing.T) {
	var buf bytes.Buffer
	long := appt(t, "a1", "marriage", "2025-06-10 10:00")
	long.HolderName = "María de los Ángeles Guadalupe Fernández de la Concepción Hernández y Villaseñor"
	long.NationalID = "FEHA900101MDFRRN05"

	err := WriteICS(&buf, []appointment.Appointment{long}, appointment.DefaultCatalog(), testLoc, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	body := buf.String()

	require.True(t, strings.HasSuffix(body, "\r\n"))
	lines := strings.Split(strings.TrimSuffix(body, "\r\n"), "\r\n")
	for _, line := range lines {
		assert.LessOrEqual(t, len(line), 75, "line %q", line)
		assert.True(t, utf8.ValidString(line), "fold split a character: %q", line)
	}

	// Unfolding restores the full description.
	unfolded := strings.ReplaceAll(body, "\r\n ", "")
	assert.Contains(t, unfolded, "DESCRIPTION:Cita de "+long.HolderName+" (CURP FEHA900101MDFRRN05)")
}

func TestWriteICSDefinesItsTimezone(t *testing.T) {
	var buf bytes.Buffer
	list := []appointment.Appointment{appt(t, "a1", "marriage", "2025-06-10 10:00")}

	err := WriteICS(&buf, list, appointment.DefaultCatalog(), testLoc, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	body := buf.String()

	for _, field := range []string{
		"BEGIN:VTIMEZONE\r\nTZID:CST\r\n",
		"BEGIN:STANDARD",
		"TZOFFSETFROM:-0600",
		"TZOFFSETTO:-0600",
		"TZNAME:CST",
		"END:VTIMEZONE",
	} {
		assert.Contains(t, body, field)
	}
	assert.Less(t, strings.Index(body, "END:VTIMEZONE"), strings.Index(body, "BEGIN:VEVENT"))
}

func TestWriteICSDaylightZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	at, err := appointment.ParseSlot("2025-07-01 10:00", ny)
	require.NoError(t, err)
	list := []appointment.Appointment{{ID: "a1", HolderName: "Ana", NationalID: "ABCD123456HVZLNN09", ProcedureType: "marriage", ScheduledAt: at}}

	var buf bytes.Buffer
	err = WriteICS(&buf, list, appointment.DefaultCatalog(), ny, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	body := buf.String()

	assert.Contains(t, body, "BEGIN:DAYLIGHT\r\nDTSTART:20250309T020000\r\nTZOFFSETFROM:-0500\r\nTZOFFSETTO:-0400\r\nTZNAME:EDT\r\n")
	assert.Contains(t, body, "BEGIN:STANDARD\r\nDTSTART:20251102T020000\r\nTZOFFSETFROM:-0400\r\nTZOFFSETTO:-0500\r\nTZNAME:EST\r\n")
	assert.Contains(t, body, "DTSTART;TZID=America/New_York:20250701T100000")
}
