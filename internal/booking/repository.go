package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/caresched/telehealth-scheduling/internal/civil"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken means a live appointment already holds the exact
	// (doctor, date, start) key. Callers should re-fetch slots and pick
	// another; retrying the same key cannot succeed.
	ErrSlotTaken = errors.New("slot already has a live appointment")

	// ErrStatusChanged means the appointment's status moved between the
	// engine's read and its compare-and-set write.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// StatusUpdate is a compare-and-set transition: the row is updated only if
// its current status is one of From. Notes and CancelReason are written only
// when non-nil.
type StatusUpdate struct {
	From         []Status
	To           Status
	Notes        *string
	CancelReason *string
}

// Repository contains all DB interactions needed by the engine, the slot
// resolver, and the reminder worker. The engine is the only writer of
// appointment rows.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CreateScheduled inserts the appointment with status SCHEDULED. The
	// check against existing live appointments and the insert are a single
	// atomic step; a conflict yields ErrSlotTaken.
	CreateScheduled(ctx context.Context, appt Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, upd StatusUpdate) (*Appointment, error)

	// BookedStarts feeds the slot resolver: start times on the date held by
	// a non-cancelled appointment.
	BookedStarts(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]civil.TimeOfDay, error)

	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Reminder worker
	FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error

	// Event logging
	InsertEvent(ctx context.Context, ev Event) error
}
