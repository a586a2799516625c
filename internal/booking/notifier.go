package booking

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notifier receives lifecycle events after a state transition has been
// committed. Payment capture and patient/doctor notifications hang off this
// contract; implementations must tolerate being called concurrently and
// must not block booking (the engine invokes them fire-and-forget).
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt Appointment)
	AppointmentConfirmed(ctx context.Context, appt Appointment)
	AppointmentCancelled(ctx context.Context, appt Appointment)
	AppointmentCompleted(ctx context.Context, appt Appointment)
	AppointmentReminder(ctx context.Context, appt Appointment)
}

// LogNotifier is the default Notifier: it only logs. Real dispatch lives in
// external services.
type LogNotifier struct{}

func (LogNotifier) AppointmentBooked(_ context.Context, appt Appointment) {
	logLifecycle("appointment_booked", appt)
}

func (LogNotifier) AppointmentConfirmed(_ context.Context, appt Appointment) {
	logLifecycle("appointment_confirmed", appt)
}

func (LogNotifier) AppointmentCancelled(_ context.Context, appt Appointment) {
	logLifecycle("appointment_cancelled", appt)
}

func (LogNotifier) AppointmentCompleted(_ context.Context, appt Appointment) {
	logLifecycle("appointment_completed", appt)
}

func (LogNotifier) AppointmentReminder(_ context.Context, appt Appointment) {
	logLifecycle("appointment_reminder", appt)
}

func logLifecycle(event string, appt Appointment) {
	log.Info().
		Str("event", event).
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Str("patient_id", appt.PatientID.String()).
		Str("date", appt.Date.String()).
		Str("start", appt.Start.String()).
		Str("status", string(appt.Status)).
		Msg("appointment lifecycle")
}

// Entitlement gates booking on the patient's plan, replacing any
// client-supplied capability claims. Implementations return ErrNotEntitled
// (possibly wrapped) to reject.
type Entitlement interface {
	CanBook(ctx context.Context, patientID uuid.UUID, apptType ApptType) error
}

type allowAll struct{}

func (allowAll) CanBook(context.Context, uuid.UUID, ApptType) error { return nil }

// AllowAllEntitlement grants every booking. Used where no entitlement
// service is wired in.
func AllowAllEntitlement() Entitlement { return allowAll{} }
