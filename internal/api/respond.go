package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/caresched/telehealth-scheduling/internal/availability"
	"github.com/caresched/telehealth-scheduling/internal/booking"
	"github.com/caresched/telehealth-scheduling/internal/civil"
	redisclient "github.com/caresched/telehealth-scheduling/internal/redis"
	"github.com/caresched/telehealth-scheduling/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps sentinel errors from the scheduling core onto HTTP
// statuses. Slot conflicts deliberately carry a "pick another time" message
// rather than a generic conflict, so double-submitting users are not
// confused.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", "this time is no longer available, please choose another")
	case errors.Is(err, booking.ErrSlotBusy), errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrUnauthorized), errors.Is(err, booking.ErrNotEntitled):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, availability.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, availability.ErrBlackoutNotFound):
		writeError(w, http.StatusNotFound, "blackout_not_found", err.Error())
	case errors.Is(err, availability.ErrInvalidWindow),
		errors.Is(err, availability.ErrOverlappingWindows),
		errors.Is(err, booking.ErrInvalidApptType),
		errors.Is(err, schedule.ErrInvalidRange),
		errors.Is(err, civil.ErrBadDate),
		errors.Is(err, civil.ErrBadTimeOfDay):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}
