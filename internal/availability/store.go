package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/caresched/telehealth-scheduling/internal/civil"
)

var (
	ErrDoctorNotFound     = errors.New("doctor not found")
	ErrBlackoutNotFound   = errors.New("blackout date not found")
	ErrInvalidWindow      = errors.New("availability window start must be before its end")
	ErrOverlappingWindows = errors.New("availability windows overlap on the same day")
)

// Store holds recurring weekly templates and one-off blackout dates.
// The slot resolver is its only consumer besides the schedule-editing API.
type Store interface {
	// ReplaceWeeklySchedule atomically swaps the doctor's full template set.
	// Partial schedules never become visible.
	ReplaceWeeklySchedule(ctx context.Context, doctorID uuid.UUID, templates []Template) error
	Templates(ctx context.Context, doctorID uuid.UUID) ([]Template, error)

	AddBlackout(ctx context.Context, doctorID uuid.UUID, date civil.Date) error
	RemoveBlackout(ctx context.Context, doctorID uuid.UUID, date civil.Date) error
	Blackouts(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]Blackout, error)

	// ConsultationMinutes is the doctor's configured slot length.
	ConsultationMinutes(ctx context.Context, doctorID uuid.UUID) (int, error)
}
