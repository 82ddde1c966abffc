package calendar

// WidgetConfig holds the options the page hands to the calendar widget.
type WidgetConfig struct {
	InitialView      string            `json:"initialView"`
	HeaderToolbar    map[string]string `json:"headerToolbar"`
	Locale           string            `json:"locale"`
	SlotMinTime      string            `json:"slotMinTime"`
	SlotMaxTime      string            `json:"slotMaxTime"`
	SlotDuration     string            `json:"slotDuration"`
	FirstDay         int               `json:"firstDay"`
	NowIndicator     bool              `json:"nowIndicator"`
	AllDaySlot       bool              `json:"allDaySlot"`
	SlotEventOverlap bool              `json:"slotEventOverlap"`
	TimeZone         string            `json:"timeZone"`
}

// DefaultWidgetConfig is a Monday-first week view over office hours.
func DefaultWidgetConfig(timeZone string) WidgetConfig {
	return WidgetConfig{
		InitialView: "timeGridWeek",
		HeaderToolbar: map[string]string{
			"left":   "prev,next today",
			"center": "title",
			"right":  "dayGridMonth,timeGridWeek,timeGridDay",
		},
		Locale:           "es",
		SlotMinTime:      "09:00:00",
		SlotMaxTime:      "15:30:00",
		SlotDuration:     "00:30:00",
		FirstDay:         1,
		NowIndicator:     true,
		AllDaySlot:       false,
		SlotEventOverlap: false,
		TimeZone:         timeZone,
	}
}
