package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/caresched/telehealth-scheduling/internal/civil"
)

// Template is one recurring weekly availability window for a doctor, e.g.
// "Mondays 09:00-12:00". A doctor's bookable day is the union of their
// active templates for that weekday.
type Template struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Weekday   time.Weekday
	Start     civil.TimeOfDay
	End       civil.TimeOfDay
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Blackout suppresses slot generation for a doctor on a single date,
// whatever the weekly templates say.
type Blackout struct {
	DoctorID uuid.UUID
	Date     civil.Date
}

// Doctor carries the scheduling-relevant doctor attributes. Profile data
// lives elsewhere.
type Doctor struct {
	ID          uuid.UUID
	Name        string
	Specialty   *string
	SlotMinutes int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateWeek checks a full weekly schedule before it replaces the current
// one: every window must run forward, and windows on the same weekday must
// not overlap. Back-to-back windows (one ending exactly when the next
// starts) are allowed.
func ValidateWeek(templates []Template) error {
	byDay := make(map[time.Weekday][]Template)
	for _, t := range templates {
		if !t.Start.Before(t.End) {
			return fmt.Errorf("%w: %s %s-%s", ErrInvalidWindow, t.Weekday, t.Start, t.End)
		}
		byDay[t.Weekday] = append(byDay[t.Weekday], t)
	}

	for day, wins := range byDay {
		sort.Slice(wins, func(i, j int) bool { return wins[i].Start.Before(wins[j].Start) })
		for i := 1; i < len(wins); i++ {
			if wins[i].Start.Before(wins[i-1].End) {
				return fmt.Errorf("%w: %s %s-%s and %s-%s", ErrOverlappingWindows,
					day, wins[i-1].Start, wins[i-1].End, wins[i].Start, wins[i].End)
			}
		}
	}

	return nil
}
