package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caresched/telehealth-scheduling/internal/civil"
)

// MemoryRepository is an in-process Repository for tests and local runs.
// CreateScheduled performs its conflict check and insert under one mutex
// hold, mirroring what the partial unique index gives the Postgres
// implementation.
type MemoryRepository struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	liveSlots    map[string]uuid.UUID // doctor|date|start -> live appointment
	events       []Event
	nextEventID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		appointments: make(map[uuid.UUID]Appointment),
		liveSlots:    make(map[string]uuid.UUID),
	}
}

func slotKey(doctorID uuid.UUID, date civil.Date, start civil.TimeOfDay) string {
	return fmt.Sprintf("%s|%s|%s", doctorID, date, start)
}

// AddPatient registers a patient for test setup.
func (r *MemoryRepository) AddPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

// Events returns a copy of the recorded audit log.
func (r *MemoryRepository) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) CreateScheduled(_ context.Context, appt Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := slotKey(appt.DoctorID, appt.Date, appt.Start)
	if _, taken := r.liveSlots[key]; taken {
		return nil, ErrSlotTaken
	}

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := time.Now()
	appt.Status = StatusScheduled
	appt.CreatedAt = now
	appt.UpdatedAt = now

	r.appointments[appt.ID] = appt
	r.liveSlots[key] = appt.ID

	return &appt, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, upd StatusUpdate) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	matched := false
	for _, s := range upd.From {
		if a.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrStatusChanged
	}

	a.Status = upd.To
	if upd.Notes != nil {
		a.Notes = upd.Notes
	}
	if upd.CancelReason != nil {
		a.CancelReason = upd.CancelReason
	}
	a.UpdatedAt = time.Now()
	r.appointments[id] = a

	if upd.To == StatusCancelled {
		delete(r.liveSlots, slotKey(a.DoctorID, a.Date, a.Start))
	}

	return &a, nil
}

func (r *MemoryRepository) BookedStarts(_ context.Context, doctorID uuid.UUID, date civil.Date) ([]civil.TimeOfDay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []civil.TimeOfDay
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Date == date && a.Status != StatusCancelled {
			result = append(result, a.Start)
		}
	}
	return result, nil
}

func (r *MemoryRepository) ListByDoctorDate(_ context.Context, doctorID uuid.UUID, date civil.Date) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Date == date {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result, nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[j].Date.Before(all[i].Date)
		}
		return all[j].Start.Before(all[i].Start)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRepository) FindDueReminders(_ context.Context, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.Status != StatusConfirmed || a.RemindedAt != nil {
			continue
		}
		at := a.StartsAt()
		if !at.Before(from) && !at.After(to) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *MemoryRepository) MarkReminded(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	if a.RemindedAt == nil {
		t := at
		a.RemindedAt = &t
		r.appointments[id] = a
	}
	return nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	ev.ID = r.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}
