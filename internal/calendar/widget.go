// Package calendar projects appointments into the event shape the booking
// page's calendar widget renders, and keeps the widget's event set in step
// with the appointment store.
package calendar

import "sync"

// Widget is the slice of the calendar widget API the adapter relies on.
type Widget interface {
	Events() []Event
	AddEvent(ev DisplayEvent)
	RemoveEvent(id string)
	EventByID(id string) (Event, bool)
}

// Event is one event as the widget holds it.
type Event interface {
	ID() string
	Title() string
	Start() string
	Props() map[string]string
	SetTitle(title string)
	SetStart(start string)
	SetProp(key, value string)
}

// MemoryWidget is the server side event set the page fetches and draws.
type MemoryWidget struct {
	mu     sync.RWMutex
	events []*memoryEvent
}

func NewMemoryWidget() *MemoryWidget {
	return &MemoryWidget{}
}

func (w *MemoryWidget) Events() []Event {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Event, 0, len(w.events))
	for _, ev := range w.events {
		out = append(out, ev)
	}
	return out
}

func (w *MemoryWidget) AddEvent(ev DisplayEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	props := make(map[string]string, len(ev.ExtendedProps))
	for k, v := range ev.ExtendedProps {
		props[k] = v
	}
	w.events = append(w.events, &memoryEvent{
		widget: w,
		id:     ev.ID,
		title:  ev.Title,
		start:  ev.Start,
		color:  ev.Color,
		props:  props,
	})
}

func (w *MemoryWidget) RemoveEvent(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.events[:0]
	for _, ev := range w.events {
		if ev.id != id {
			kept = append(kept, ev)
		}
	}
	for i := len(kept); i < len(w.events); i++ {
		w.events[i] = nil
	}
	w.events = kept
}

func (w *MemoryWidget) EventByID(id string) (Event, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, ev := range w.events {
		if ev.id == id {
			return ev, true
		}
	}
	return nil, false
}

// Snapshot returns the displayed events in widget order.
func (w *MemoryWidget) Snapshot() []DisplayEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]DisplayEvent, 0, len(w.events))
	for _, ev := range w.events {
		out = append(out, ev.display())
	}
	return out
}

type memoryEvent struct {
	widget *MemoryWidget
	id     string
	title  string
	start  string
	color  string
	props  map[string]string
}

func (e *memoryEvent) ID() string { return e.id }

func (e *memoryEvent) Title() string {
	e.widget.mu.RLock()
	defer e.widget.mu.RUnlock()
	return e.title
}

func (e *memoryEvent) Start() string {
	e.widget.mu.RLock()
	defer e.widget.mu.RUnlock()
	return e.start
}

func (e *memoryEvent) Props() map[string]string {
	e.widget.mu.RLock()
	defer e.widget.mu.RUnlock()

	out := make(map[string]string, len(e.props))
	for k, v := range e.props {
		out[k] = v
	}
	return out
}

func (e *memoryEvent) SetTitle(title string) {
	e.widget.mu.Lock()
	e.title = title
	e.widget.mu.Unlock()
}

func (e *memoryEvent) SetStart(start string) {
	e.widget.mu.Lock()
	e.start = start
	e.widget.mu.Unlock()
}

func (e *memoryEvent) SetProp(key, value string) {
	e.widget.mu.Lock()
	e.props[key] = value
	e.widget.mu.Unlock()
}

// display must be called with the widget lock held.
func (e *memoryEvent) display() DisplayEvent {
	props := make(map[string]string, len(e.props))
	for k, v := range e.props {
		props[k] = v
	}
	return DisplayEvent{
		ID:            e.id,
		Title:         e.title,
		Start:         e.start,
		Color:         e.color,
		ExtendedProps: props,
	}
}
