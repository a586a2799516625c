// Package schedule turns recurring weekly availability into concrete
// bookable slots. Resolution is a pure read: slots are recomputed from the
// current templates, blackouts, and appointments on every call, never stored.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/caresched/telehealth-scheduling/internal/availability"
	"github.com/caresched/telehealth-scheduling/internal/civil"
)

var ErrInvalidRange = errors.New("range start must not be after range end")

// Slot is a single bookable consultation window. Derived only.
type Slot struct {
	DoctorID uuid.UUID       `json:"doctor_id"`
	Date     civil.Date      `json:"date"`
	Start    civil.TimeOfDay `json:"start_time"`
	End      civil.TimeOfDay `json:"end_time"`
}

// BookedLookup reports slot start times held by a live (non-cancelled)
// appointment on a given date. Implemented by the booking repository.
type BookedLookup interface {
	BookedStarts(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]civil.TimeOfDay, error)
}

type Resolver struct {
	store  availability.Store
	booked BookedLookup
}

func NewResolver(store availability.Store, booked BookedLookup) *Resolver {
	return &Resolver{store: store, booked: booked}
}

// Resolve returns every open slot for the doctor on the dates in [from, to],
// sorted by date then start time. A doctor with no active templates yields
// an empty result, not an error.
func (r *Resolver) Resolve(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]Slot, error) {
	if from.After(to) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, from, to)
	}

	minutes, err := r.store.ConsultationMinutes(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load consultation length: %w", err)
	}
	if minutes <= 0 {
		return nil, fmt.Errorf("consultation length must be positive, got %d", minutes)
	}
	slotLen := time.Duration(minutes) * time.Minute

	templates, err := r.store.Templates(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	byDay := make(map[time.Weekday][]availability.Template)
	for _, t := range templates {
		if !t.Active {
			continue
		}
		byDay[t.Weekday] = append(byDay[t.Weekday], t)
	}
	if len(byDay) == 0 {
		return []Slot{}, nil
	}

	blackouts, err := r.store.Blackouts(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load blackouts: %w", err)
	}
	blocked := make(map[string]struct{}, len(blackouts))
	for _, b := range blackouts {
		blocked[b.Date.String()] = struct{}{}
	}

	var slots []Slot
	for d := from; !d.After(to); d = d.AddDays(1) {
		windows := byDay[d.Weekday()]
		if len(windows) == 0 {
			continue
		}
		if _, ok := blocked[d.String()]; ok {
			continue
		}

		starts, err := r.booked.BookedStarts(ctx, doctorID, d)
		if err != nil {
			return nil, fmt.Errorf("load booked starts for %s: %w", d, err)
		}
		taken := make(map[int]struct{}, len(starts))
		for _, s := range starts {
			taken[s.Minutes()] = struct{}{}
		}

		day := expandDay(doctorID, d, windows, slotLen, taken)
		sort.Slice(day, func(i, j int) bool { return day[i].Start.Before(day[j].Start) })
		slots = append(slots, day...)
	}

	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// Lookup recomputes a single slot and reports whether it is currently open.
// The booking engine uses it to reject requests built from stale slot lists.
func (r *Resolver) Lookup(ctx context.Context, doctorID uuid.UUID, date civil.Date, start civil.TimeOfDay) (Slot, bool, error) {
	slots, err := r.Resolve(ctx, doctorID, date, date)
	if err != nil {
		return Slot{}, false, err
	}
	for _, s := range slots {
		if s.Start.Minutes() == start.Minutes() {
			return s, true, nil
		}
	}
	return Slot{}, false, nil
}

// expandDay walks each window in consultation-length steps. A trailing
// remainder shorter than one slot is dropped, not rounded.
func expandDay(doctorID uuid.UUID, date civil.Date, windows []availability.Template, slotLen time.Duration, taken map[int]struct{}) []Slot {
	var out []Slot
	for _, win := range windows {
		for start := win.Start; ; start = start.Add(slotLen) {
			end := start.Add(slotLen)
			if end.After(win.End) {
				break
			}
			if _, booked := taken[start.Minutes()]; booked {
				continue
			}
			out = append(out, Slot{
				DoctorID: doctorID,
				Date:     date,
				Start:    start,
				End:      end,
			})
		}
	}
	return out
}
