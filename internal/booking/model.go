package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/caresched/telehealth-scheduling/internal/civil"
)

type Status string

const (
	// StatusScheduled and StatusPending both mean "awaiting confirmation".
	// PENDING survives from an older API revision and is normalized to
	// SCHEDULED on write; reads may still encounter it.
	StatusScheduled Status = "SCHEDULED"
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// AwaitingConfirmation reports whether the doctor still has to confirm.
func (s Status) AwaitingConfirmation() bool {
	return s == StatusScheduled || s == StatusPending
}

// Terminal statuses admit no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type ApptType string

const (
	TypeInPerson ApptType = "in-person"
	TypeVideo    ApptType = "video"
)

func (t ApptType) Valid() bool {
	return t == TypeInPerson || t == TypeVideo
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	PatientID    uuid.UUID
	Date         civil.Date
	Start        civil.TimeOfDay
	End          civil.TimeOfDay
	Type         ApptType
	Status       Status
	Reason       string
	Notes        *string
	CancelReason *string
	RemindedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StartsAt is the appointment's concrete start instant (UTC).
func (a Appointment) StartsAt() time.Time {
	return a.Start.At(a.Date)
}

// Event is one row of the append-only lifecycle audit log.
type Event struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
