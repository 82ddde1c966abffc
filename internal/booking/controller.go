// Package booking drives the booking form of one profile: opening it for a
// new or an existing appointment, submitting, deleting and closing it.
package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
	"github.com/hackgods/civil-registry-booking/internal/calendar"
	"github.com/hackgods/civil-registry-booking/internal/notify"
	"github.com/hackgods/civil-registry-booking/internal/receipt"
)

var (
	ErrNoSession   = errors.New("no booking session is open")
	ErrSessionOpen = errors.New("a booking session is already open")
)

type Mode string

const (
	ModeIdle    Mode = "idle"
	ModeNew     Mode = "new"
	ModeEditing Mode = "editing"
)

const deletePrompt = "¿Seguro que deseas eliminar esta cita?"

// Snapshot is the session as the booking form renders it.
type Snapshot struct {
	Mode      Mode              `json:"mode"`
	EditingID string            `json:"editingId,omitempty"`
	Form      appointment.Input `json:"form"`
}

type Deps struct {
	Receipts  ReceiptIssuer
	Notifier  Notifier
	Scheduler Scheduler
	Logger    zerolog.Logger
}

// Controller holds at most one session. A session either composes a new
// appointment or edits exactly one existing appointment; editingID is the
// only thing that tells the two apart. Not safe for concurrent use.
type Controller struct {
	store    *appointment.Store
	widget   calendar.Widget
	receipts ReceiptIssuer
	notifier Notifier
	sched    Scheduler
	logger   zerolog.Logger

	mode      Mode
	editingID string
	form      appointment.Input
}

func NewController(store *appointment.Store, widget calendar.Widget, deps Deps) *Controller {
	if deps.Scheduler == nil {
		deps.Scheduler = ImmediateScheduler{}
	}
	if deps.Notifier == nil {
		deps.Notifier = NotifierFunc(func(context.Context, notify.Severity, string) {})
	}
	if deps.Receipts == nil {
		deps.Receipts = ReceiptIssuerFunc(func(context.Context, receipt.Receipt) error { return nil })
	}
	return &Controller{
		store:    store,
		widget:   widget,
		receipts: deps.Receipts,
		notifier: deps.Notifier,
		sched:    deps.Scheduler,
		logger:   deps.Logger,
		mode:     ModeIdle,
	}
}

func (c *Controller) Store() *appointment.Store { return c.store }

func (c *Controller) Widget() calendar.Widget { return c.widget }

func (c *Controller) Snapshot() Snapshot {
	return Snapshot{Mode: c.mode, EditingID: c.editingID, Form: c.form}
}

// OpenNew starts a session for a new appointment, optionally pre-filled
// with the clicked slot. It does nothing and reports false while another
// session is open. A clicked slot on a past day is refused.
func (c *Controller) OpenNew(ctx context.Context, prefilled string) (bool, error) {
	if c.mode != ModeIdle {
		return false, nil
	}

	form := appointment.Input{}
	if strings.TrimSpace(prefilled) != "" {
		at, err := c.parsePrefill(prefilled)
		if err != nil {
			vErr := &appointment.ValidationError{Reason: appointment.ReasonInvalidSchedule, Field: "scheduledAt"}
			c.fail(ctx, vErr)
			return false, vErr
		}
		if c.store.IsPastDay(at) {
			vErr := &appointment.ValidationError{Reason: appointment.ReasonPastDate, Field: "scheduledAt"}
			c.fail(ctx, vErr)
			return false, vErr
		}
		form.ScheduledAt = appointment.FormatSlot(at)
	}

	c.mode = ModeNew
	c.editingID = ""
	c.form = form
	return true, nil
}

// OpenExisting starts a session editing id, pre-filled with its values.
func (c *Controller) OpenExisting(ctx context.Context, id string) error {
	if c.mode != ModeIdle {
		return ErrSessionOpen
	}

	appt, ok := c.store.FindByID(id)
	if !ok {
		c.notifier.Notify(ctx, notify.SeverityError, "Evento no encontrado.")
		return appointment.ErrNotFound
	}

	c.mode = ModeEditing
	c.editingID = appt.ID
	c.form = appointment.InputFrom(appt)
	return nil
}

// Submit saves the form. Errors keep the session open with the submitted
// values so the visitor can correct them.
func (c *Controller) Submit(ctx context.Context, form appointment.Input) (appointment.Appointment, error) {
	switch c.mode {
	case ModeNew:
		c.form = form
		appt, err := c.store.Create(ctx, form)
		resynced := c.resyncIfRefreshed()
		if err != nil {
			c.fail(ctx, err)
			return appointment.Appointment{}, err
		}

		if !resynced {
			c.widget.AddEvent(calendar.ToDisplayEvent(appt))
		}
		c.logger.Info().Str("appointment_id", appt.ID).Str("slot", appt.Slot()).Msg("appointment created")
		c.notifier.Notify(ctx, notify.SeveritySuccess, "Cita registrada. Descargando tu comprobante...")
		c.reset()
		c.issueReceipt(ctx, appt)
		return appt, nil

	case ModeEditing:
		c.form = form
		appt, err := c.store.Update(ctx, c.editingID, form)
		resynced := c.resyncIfRefreshed()
		if err != nil {
			c.fail(ctx, err)
			return appointment.Appointment{}, err
		}

		if !resynced {
			calendar.ApplyEdit(c.widget, appt)
		}
		c.logger.Info().Str("appointment_id", appt.ID).Str("slot", appt.Slot()).Msg("appointment updated")
		c.notifier.Notify(ctx, notify.SeveritySuccess, "Cita actualizada. Descargando comprobante...")
		c.reset()
		c.issueReceipt(ctx, appt)
		return appt, nil

	default:
		return appointment.Appointment{}, ErrNoSession
	}
}

// DeleteCurrent removes the appointment under edit once confirmer agrees.
// It reports false without side effects outside an editing session or when
// the visitor declines.
func (c *Controller) DeleteCurrent(ctx context.Context, confirmer Confirmer) (bool, error) {
	if c.mode != ModeEditing {
		return false, nil
	}
	if confirmer == nil || !confirmer.Confirm(deletePrompt) {
		return false, nil
	}

	id := c.editingID
	removed, err := c.store.Delete(ctx, id)
	c.resyncIfRefreshed()
	if err != nil {
		c.fail(ctx, err)
		return false, err
	}

	c.widget.RemoveEvent(id)
	c.reset()
	if !removed {
		c.notifier.Notify(ctx, notify.SeverityError, "Error: cita no encontrada.")
		return false, appointment.ErrNotFound
	}

	c.logger.Info().Str("appointment_id", id).Msg("appointment deleted")
	c.notifier.Notify(ctx, notify.SeveritySuccess, "Cita eliminada.")
	return true, nil
}

// Close discards the session without touching the store.
func (c *Controller) Close() {
	c.reset()
}

// resyncIfRefreshed redraws the calendar from the store when the last write
// picked up bookings made through another desk of the same profile.
func (c *Controller) resyncIfRefreshed() bool {
	if !c.store.Refreshed() {
		return false
	}
	calendar.Resync(c.widget, c.store.List())
	return true
}

func (c *Controller) reset() {
	c.mode = ModeIdle
	c.editingID = ""
	c.form = appointment.Input{}
}

// issueReceipt runs after the mutation has been committed. A failed
// receipt never affects the booking.
func (c *Controller) issueReceipt(ctx context.Context, appt appointment.Appointment) {
	rc := receipt.FromAppointment(appt)
	bg := context.WithoutCancel(ctx)
	logger := c.logger
	receipts := c.receipts

	c.sched.Schedule(func() {
		if err := receipts.IssueReceipt(bg, rc); err != nil {
			logger.Error().Err(err).Str("appointment_id", appt.ID).Msg("receipt generation failed")
		}
	})
}

func (c *Controller) fail(ctx context.Context, err error) {
	c.notifier.Notify(ctx, notify.SeverityError, MessageFor(err))

	var vErr *appointment.ValidationError
	if !errors.As(err, &vErr) && !errors.Is(err, appointment.ErrNotFound) {
		c.logger.Error().Err(err).Msg("booking action failed")
	}
}

func (c *Controller) parsePrefill(s string) (time.Time, error) {
	loc := c.store.Location()
	if at, err := appointment.ParseSlot(s, loc); err == nil {
		return at, nil
	}
	at, err := time.ParseInLocation(calendar.StartLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, err
	}
	return at.Truncate(time.Minute), nil
}

// MessageFor is the visitor facing text for a booking error.
func MessageFor(err error) string {
	var vErr *appointment.ValidationError
	if errors.As(err, &vErr) {
		switch vErr.Reason {
		case appointment.ReasonMissingField:
			return "Por favor completa todos los campos."
		case appointment.ReasonInvalidNationalID:
			return "CURP inválido. Debe tener 18 caracteres alfanuméricos."
		case appointment.ReasonUnknownProcedure:
			return "Selecciona un trámite válido."
		case appointment.ReasonInvalidSchedule:
			return "Fecha u hora inválida. Usa el formato AAAA-MM-DD HH:MM."
		case appointment.ReasonPastDate:
			return "No se pueden agendar citas en días pasados."
		case appointment.ReasonSlotTaken:
			return "Ya existe una cita en esa fecha/hora. Elige otro horario."
		}
	}
	if errors.Is(err, appointment.ErrNotFound) {
		return "Error: cita no encontrada."
	}
	return "No se pudo guardar la cita. Intenta de nuevo."
}
