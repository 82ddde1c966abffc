package api

import (
	"encoding/json"
	"net/http"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
	"github.com/hackgods/civil-registry-booking/internal/booking"
	"github.com/hackgods/civil-registry-booking/internal/notify"
)

type AppointmentResponse struct {
	ID            string `json:"id"`
	HolderName    string `json:"holderName"`
	NationalID    string `json:"nationalId"`
	ProcedureType string `json:"procedureType"`
	ScheduledAt   string `json:"scheduledAt"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		HolderName:    a.HolderName,
		NationalID:    a.NationalID,
		ProcedureType: a.ProcedureType,
		ScheduledAt:   a.Slot(),
	}
}

type ProcedureResponse struct {
	Key          string   `json:"key"`
	Title        string   `json:"title"`
	Requirements []string `json:"requirements"`
}

type OpenSessionRequest struct {
	Slot string `json:"slot"`
}

type SessionResponse struct {
	booking.Snapshot
	Opened bool `json:"opened"`
}

type SubmitResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Session     booking.Snapshot    `json:"session"`
}

type DeleteRequest struct {
	Confirm bool `json:"confirm"`
}

type DeleteResponse struct {
	Deleted bool             `json:"deleted"`
	Session booking.Snapshot `json:"session"`
}

type MessageResponse struct {
	Message *notify.Message `json:"message"`
}

type AssistantRequest struct {
	Question string `json:"question"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
