package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/caresched/telehealth-scheduling/internal/civil"
	redisclient "github.com/caresched/telehealth-scheduling/internal/redis"
	"github.com/caresched/telehealth-scheduling/internal/schedule"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentReminded  = "APPOINTMENT_REMINDED"
)

var (
	// ErrSlotBusy is transient: another request holds the booking lock for
	// the same slot right now.
	ErrSlotBusy = errors.New("slot is currently being booked, please retry")

	ErrInvalidTransition = errors.New("invalid appointment status transition")
	ErrUnauthorized      = errors.New("caller may not act on this appointment")
	ErrInvalidApptType   = errors.New("appointment type must be in-person or video")
	ErrNotEntitled       = errors.New("patient plan does not allow this booking")
)

// Engine owns every appointment write. All reads elsewhere (the resolver,
// the API list endpoints) observe only states this engine has committed.
type Engine struct {
	repo        Repository
	resolver    *schedule.Resolver
	locker      redisclient.Locker
	notifier    Notifier
	entitlement Entitlement
}

func NewEngine(repo Repository, resolver *schedule.Resolver, locker redisclient.Locker, notifier Notifier, entitlement Entitlement) *Engine {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if entitlement == nil {
		entitlement = AllowAllEntitlement()
	}
	return &Engine{
		repo:        repo,
		resolver:    resolver,
		locker:      locker,
		notifier:    notifier,
		entitlement: entitlement,
	}
}

type BookRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      civil.Date
	Start     civil.TimeOfDay
	Type      ApptType
	Reason    string
}

// Book reserves a slot for a patient. The resolver re-check rejects requests
// built from stale slot lists; the per-slot lock plus the repository's
// atomic check-and-insert guarantee at most one live appointment per
// (doctor, date, start). Not idempotent: a blind retry after a timeout can
// double-book the patient, so callers must look up their appointment before
// retrying.
func (e *Engine) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidApptType, req.Type)
	}

	if _, err := e.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if err := e.entitlement.CanBook(ctx, req.PatientID, req.Type); err != nil {
		return nil, err
	}

	slot, open, err := e.resolver.Lookup(ctx, req.DoctorID, req.Date, req.Start)
	if err != nil {
		return nil, fmt.Errorf("resolve slot: %w", err)
	}
	if !open {
		return nil, ErrSlotTaken
	}

	var created *Appointment

	err = e.locker.WithBookingLock(ctx, req.DoctorID, req.Date, req.Start, func(lockCtx context.Context) error {
		appt, err := e.repo.CreateScheduled(lockCtx, Appointment{
			DoctorID:  req.DoctorID,
			PatientID: req.PatientID,
			Date:      req.Date,
			Start:     slot.Start,
			End:       slot.End,
			Type:      req.Type,
			Reason:    req.Reason,
		})
		if err != nil {
			return err
		}

		created = appt

		e.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  req.DoctorID.String(),
			"patient_id": req.PatientID.String(),
			"date":       req.Date.String(),
			"start_time": slot.Start.String(),
			"appt_type":  string(req.Type),
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	e.notify(ctx, e.notifier.AppointmentBooked, *created)

	return created, nil
}

// Confirm moves an awaiting-confirmation appointment to CONFIRMED. Only the
// owning doctor may confirm.
func (e *Engine) Confirm(ctx context.Context, id, byDoctorID uuid.UUID) (*Appointment, error) {
	appt, err := e.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.DoctorID != byDoctorID {
		return nil, fmt.Errorf("%w: only the appointment's doctor may confirm", ErrUnauthorized)
	}
	if !appt.Status.AwaitingConfirmation() {
		return nil, fmt.Errorf("%w: cannot confirm from %s", ErrInvalidTransition, appt.Status)
	}

	updated, err := e.repo.UpdateAppointmentStatus(ctx, id, StatusUpdate{
		From: []Status{StatusScheduled, StatusPending},
		To:   StatusConfirmed,
	})
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, fmt.Errorf("%w: cannot confirm, status changed", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	e.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{
		"doctor_id": byDoctorID.String(),
	})
	e.notify(ctx, e.notifier.AppointmentConfirmed, *updated)

	return updated, nil
}

// Cancel moves any non-terminal appointment to CANCELLED, freeing its slot.
// Either party on the appointment may cancel.
func (e *Engine) Cancel(ctx context.Context, id, byUserID uuid.UUID, reason *string) (*Appointment, error) {
	appt, err := e.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.DoctorID != byUserID && appt.PatientID != byUserID {
		return nil, fmt.Errorf("%w: only the doctor or patient on the appointment may cancel", ErrUnauthorized)
	}
	if appt.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot cancel from %s", ErrInvalidTransition, appt.Status)
	}

	updated, err := e.repo.UpdateAppointmentStatus(ctx, id, StatusUpdate{
		From:         []Status{StatusScheduled, StatusPending, StatusConfirmed},
		To:           StatusCancelled,
		CancelReason: reason,
	})
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, fmt.Errorf("%w: cannot cancel, status changed", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	payload := map[string]any{"by_user_id": byUserID.String()}
	if reason != nil {
		payload["reason"] = *reason
	}
	e.logEvent(ctx, updated.ID, EventAppointmentCancelled, payload)
	e.notify(ctx, e.notifier.AppointmentCancelled, *updated)

	return updated, nil
}

// Complete moves a CONFIRMED appointment to COMPLETED, optionally attaching
// consultation notes. Doctor only.
func (e *Engine) Complete(ctx context.Context, id, byDoctorID uuid.UUID, notes *string) (*Appointment, error) {
	appt, err := e.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.DoctorID != byDoctorID {
		return nil, fmt.Errorf("%w: only the appointment's doctor may complete", ErrUnauthorized)
	}
	if appt.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: cannot complete from %s", ErrInvalidTransition, appt.Status)
	}

	updated, err := e.repo.UpdateAppointmentStatus(ctx, id, StatusUpdate{
		From:  []Status{StatusConfirmed},
		To:    StatusCompleted,
		Notes: notes,
	})
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, fmt.Errorf("%w: cannot complete, status changed", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	e.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{
		"doctor_id": byDoctorID.String(),
	})
	e.notify(ctx, e.notifier.AppointmentCompleted, *updated)

	return updated, nil
}

func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.repo.GetAppointmentByID(ctx, id)
}

func (e *Engine) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]Appointment, error) {
	return e.repo.ListByDoctorDate(ctx, doctorID, date)
}

func (e *Engine) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return e.repo.ListByPatient(ctx, patientID, limit, offset)
}

// SendDueReminders is called periodically by the reminder worker. Each
// CONFIRMED appointment starting within lead of now is reminded once.
func (e *Engine) SendDueReminders(ctx context.Context, now time.Time, lead time.Duration) error {
	due, err := e.repo.FindDueReminders(ctx, now, now.Add(lead))
	if err != nil {
		return fmt.Errorf("find due reminders: %w", err)
	}

	for _, appt := range due {
		if err := e.repo.MarkReminded(ctx, appt.ID, now); err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to mark appointment reminded")
			}
			continue
		}
		e.logEvent(ctx, appt.ID, EventAppointmentReminded, map[string]any{
			"starts_at": appt.StartsAt(),
		})
		e.notify(ctx, e.notifier.AppointmentReminder, appt)
	}

	return nil
}

// notify dispatches a lifecycle callback without tying it to the request's
// cancellation.
func (e *Engine) notify(ctx context.Context, fn func(context.Context, Appointment), appt Appointment) {
	go fn(context.WithoutCancel(ctx), appt)
}

func (e *Engine) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := Event{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := e.repo.InsertEvent(ctx, ev); err != nil {
		log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert appointment event")
	}
}
