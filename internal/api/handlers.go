package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caresched/telehealth-scheduling/internal/availability"
	"github.com/caresched/telehealth-scheduling/internal/booking"
	"github.com/caresched/telehealth-scheduling/internal/civil"
	"github.com/caresched/telehealth-scheduling/internal/schedule"
)

// Upstream auth resolves the caller and forwards their ID in this header;
// the handlers trust it as-is.
const actingUserHeader = "X-Acting-User"

func actingUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	v := r.Header.Get(actingUserHeader)
	if v == "" {
		writeError(w, http.StatusBadRequest, "missing_acting_user", actingUserHeader+" header is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_acting_user", actingUserHeader+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+param, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// Availability

func replaceScheduleHandler(store availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "doctorID")
		if !ok {
			return
		}

		var req ReplaceScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		templates := make([]availability.Template, 0, len(req.Templates))
		for _, t := range req.Templates {
			day, err := parseWeekday(t.Weekday)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_weekday", err.Error())
				return
			}
			active := true
			if t.Active != nil {
				active = *t.Active
			}
			templates = append(templates, availability.Template{
				DoctorID: doctorID,
				Weekday:  day,
				Start:    t.StartTime,
				End:      t.EndTime,
				Active:   active,
			})
		}

		if err := store.ReplaceWeeklySchedule(r.Context(), doctorID, templates); err != nil {
			writeDomainError(w, err)
			return
		}

		stored, err := store.Templates(r.Context(), doctorID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]TemplateResponse, 0, len(stored))
		for _, t := range stored {
			resp = append(resp, toTemplateResponse(t))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSlotsHandler(resolver *schedule.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "doctorID")
		if !ok {
			return
		}

		from, err := civil.ParseDate(r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be formatted as YYYY-MM-DD")
			return
		}
		to, err := civil.ParseDate(r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be formatted as YYYY-MM-DD")
			return
		}

		slots, err := resolver.Resolve(r.Context(), doctorID, from, to)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slots)
	}
}

func addBlackoutHandler(store availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "doctorID")
		if !ok {
			return
		}

		var req AddBlackoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}
		if req.Date.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_date", "date is required")
			return
		}

		if err := store.AddBlackout(r.Context(), doctorID, req.Date); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func removeBlackoutHandler(store availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "doctorID")
		if !ok {
			return
		}

		date, err := civil.ParseDate(chi.URLParam(r, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as YYYY-MM-DD")
			return
		}

		if err := store.RemoveBlackout(r.Context(), doctorID, date); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// Appointments

func createAppointmentHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		if req.Date.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_date", "date is required")
			return
		}

		appt, err := engine.Book(r.Context(), booking.BookRequest{
			DoctorID:  doctorID,
			PatientID: patientID,
			Date:      req.Date,
			Start:     req.StartTime,
			Type:      booking.ApptType(req.Type),
			Reason:    req.Reason,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func getAppointmentHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		appt, err := engine.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func listAppointmentsHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		switch {
		case q.Get("doctor_id") != "":
			doctorID, err := uuid.Parse(q.Get("doctor_id"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			date, err := civil.ParseDate(q.Get("date"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date is required with doctor_id and must be YYYY-MM-DD")
				return
			}
			appts, err := engine.ListByDoctorDate(r.Context(), doctorID, date)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeAppointmentList(w, appts)

		case q.Get("patient_id") != "":
			patientID, err := uuid.Parse(q.Get("patient_id"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			limit := intQuery(q.Get("limit"))
			offset := intQuery(q.Get("offset"))
			appts, err := engine.ListByPatient(r.Context(), patientID, limit, offset)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeAppointmentList(w, appts)

		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "doctor_id+date or patient_id is required")
		}
	}
}

func confirmAppointmentHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		caller, ok := actingUser(w, r)
		if !ok {
			return
		}

		appt, err := engine.Confirm(r.Context(), id, caller)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func cancelAppointmentHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		caller, ok := actingUser(w, r)
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
				return
			}
		}

		appt, err := engine.Cancel(r.Context(), id, caller, req.Reason)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func completeAppointmentHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		caller, ok := actingUser(w, r)
		if !ok {
			return
		}

		var req CompleteAppointmentRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
				return
			}
		}

		appt, err := engine.Complete(r.Context(), id, caller, req.Notes)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func writeAppointmentList(w http.ResponseWriter, appts []booking.Appointment) {
	resp := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		resp = append(resp, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func intQuery(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
