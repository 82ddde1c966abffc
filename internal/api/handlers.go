package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
	"github.com/hackgods/civil-registry-booking/internal/assistant"
	"github.com/hackgods/civil-registry-booking/internal/booking"
	"github.com/hackgods/civil-registry-booking/internal/calendar"
	"github.com/hackgods/civil-registry-booking/internal/logging"
	"github.com/hackgods/civil-registry-booking/internal/receipt"
	redisclient "github.com/hackgods/civil-registry-booking/internal/redis"
)

type handlers struct {
	desks     *booking.Desks
	outbox    *receipt.Outbox
	renderer  *receipt.Renderer
	assistant *assistant.Assistant
}

func (h *handlers) desk(w http.ResponseWriter, r *http.Request) (*booking.Desk, bool) {
	desk, err := h.desks.Get(r.Context(), GetProfileID(r.Context()))
	if err != nil {
		handleBookingError(w, r, err)
		return nil, false
	}
	return desk, true
}

func (h *handlers) listProcedures(w http.ResponseWriter, r *http.Request) {
	procs := h.desks.Catalog().Sorted()
	resp := make([]ProcedureResponse, 0, len(procs))
	for _, p := range procs {
		resp = append(resp, ProcedureResponse{Key: p.Key, Title: p.Title, Requirements: p.Requirements})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) requirementsPDF(w http.ResponseWriter, r *http.Request) {
	doc, err := h.renderer.Requirements(chi.URLParam(r, "key"))
	if err != nil {
		if errors.Is(err, receipt.ErrUnknownProcedure) {
			writeError(w, http.StatusNotFound, "procedure_not_found", err.Error())
			return
		}
		handleBookingError(w, r, err)
		return
	}
	writeDocument(w, doc)
}

func (h *handlers) calendarConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, calendar.DefaultWidgetConfig(h.desks.Location().String()))
}

func (h *handlers) calendarEvents(w http.ResponseWriter, r *http.Request) {
	desk, ok := h.desk(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, desk.Events())
}

func (h *handlers) calendarICS(w http.ResponseWriter, r *http.Request) {
	desk, ok := h.desk(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="citas_registro_civil.ics"`)
	err := calendar.WriteICS(w, desk.Appointments(), h.desks.Catalog(), h.desks.Location(), h.desks.Now())
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("failed to write ics feed")
	}
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	desk, ok := h.desk(w, r)
	if !ok {
		return
	}

	list := desk.Appointments()
	resp := make([]AppointmentResponse, 0, len(list))
	for _, a := range list {
		resp = append(resp, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	desk, ok := h.desk(w, r)
	if !ok {
		return
	}

	appt, found := desk.FindAppointment(chi.URLParam(r, "id"))
	if !found {
		handleBookingError(w, r, appointment.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	desk, ok := h.desk(w, r)
	if !ok {
		return
	}

	var snap booking.Snapshot
	_ = desk.Do(func(c *booking.Controller) error {
		snap = c.Snapshot()
		return nil
	})
	writeJSON(w, http.StatusOK, SessionResponse{Snapshot: snap, Opened: snap.Mode != booking.ModeIdle})
}

func (h *handlers) openNew(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
	}

	desk, ok := h.desk(w, r)
	if !ok {
		return
	}

	var resp SessionResponse
	err := desk.Do(func(c *booking.Controller) error {
		opened, err := c.OpenNew(r.Context(), req.Slot)
		resp = SessionResponse{Snapshot: c.Snapshot(), Opened: opened}
		return err
	})
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) openExisting(w http.ResponseWriter, r *http.Request) {
	desk, ok := h.desk(w, r)
	if !ok {
		return
	}

	var snap booking.Snapshot
	err := desk.Do(func(c *booking.Controller) error {
		err := c.OpenExisting(r.Context(), chi.URLParam(r, "id"))
		snap = c.Snapshot()
		return err
	})
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Snapshot: snap, Opened: true})
}

func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	var form appointment.Input
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	desk, ok := h.desk(w, r)
	if !ok {
		return
	}

	var resp SubmitResponse
	err := desk.Do(func(c *booking.Controller) error {
		appt, err := c.Submit(r.Context(), form)
		if err != nil {
			return err
		}
		resp = SubmitResponse{Appointment: toAppointmentResponse(appt), Session: c.Snapshot()}
		return nil
	})
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) deleteCurrent(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
	}

	desk, ok := h.desk(w, r)
	if !ok {
		return
	}

	confirmer := booking.ConfirmFunc(func(string) bool { return req.Confirm })
	var resp DeleteResponse
	err := desk.Do(func(c *booking.Controller) error {
		deleted, err := c.DeleteCurrent(r.Context(), confirmer)
		resp = DeleteResponse{Deleted: deleted, Session: c.Snapshot()}
		return err
	})
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) closeSession(w http.ResponseWriter, r *http.Request) {
	desk, ok := h.desk(w, r)
	if !ok {
		return
	}

	var snap booking.Snapshot
	_ = desk.Do(func(c *booking.Controller) error {
		c.Close()
		snap = c.Snapshot()
		return nil
	})
	writeJSON(w, http.StatusOK, SessionResponse{Snapshot: snap})
}

func (h *handlers) currentMessage(w http.ResponseWriter, r *http.Request) {
	msg, ok, err := h.desks.Board().Current(r.Context(), GetProfileID(r.Context()))
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, MessageResponse{})
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: &msg})
}

func (h *handlers) latestReceipt(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.outbox.Latest(GetProfileID(r.Context()))
	if !ok {
		writeError(w, http.StatusNotFound, "receipt_not_found", "no receipt has been issued yet")
		return
	}
	writeDocument(w, doc)
}

func (h *handlers) greeting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, assistant.Reply{Text: assistant.Greeting})
}

func (h *handlers) ask(w http.ResponseWriter, r *http.Request) {
	var req AssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "empty_question", "question is required")
		return
	}
	writeJSON(w, http.StatusOK, h.assistant.Answer(req.Question))
}

func writeDocument(w http.ResponseWriter, doc receipt.Document) {
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

func handleBookingError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *appointment.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusUnprocessableEntity, string(vErr.Reason), booking.MessageFor(err))
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", booking.MessageFor(err))
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "profile_busy", "another request is saving this profile, please retry shortly")
	case errors.Is(err, booking.ErrSessionOpen):
		writeError(w, http.StatusConflict, "session_open", err.Error())
	case errors.Is(err, booking.ErrNoSession):
		writeError(w, http.StatusConflict, "no_session", err.Error())
	default:
		logging.FromContext(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", booking.MessageFor(err))
	}
}
