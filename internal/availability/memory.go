package availability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caresched/telehealth-scheduling/internal/civil"
)

// MemoryStore is an in-process Store used in tests and single-node setups.
type MemoryStore struct {
	mu             sync.RWMutex
	templates      map[uuid.UUID][]Template
	blackouts      map[uuid.UUID]map[string]struct{}
	slotMinutes    map[uuid.UUID]int
	defaultMinutes int
}

func NewMemoryStore(defaultMinutes int) *MemoryStore {
	return &MemoryStore{
		templates:      make(map[uuid.UUID][]Template),
		blackouts:      make(map[uuid.UUID]map[string]struct{}),
		slotMinutes:    make(map[uuid.UUID]int),
		defaultMinutes: defaultMinutes,
	}
}

// SetConsultationMinutes overrides the slot length for one doctor.
func (s *MemoryStore) SetConsultationMinutes(doctorID uuid.UUID, minutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slotMinutes[doctorID] = minutes
}

func (s *MemoryStore) ReplaceWeeklySchedule(_ context.Context, doctorID uuid.UUID, templates []Template) error {
	if err := ValidateWeek(templates); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replacement := make([]Template, 0, len(templates))
	now := time.Now()
	for _, t := range templates {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.DoctorID = doctorID
		t.CreatedAt = now
		t.UpdatedAt = now
		replacement = append(replacement, t)
	}
	s.templates[doctorID] = replacement

	return nil
}

func (s *MemoryStore) Templates(_ context.Context, doctorID uuid.UUID) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Template, len(s.templates[doctorID]))
	copy(out, s.templates[doctorID])
	return out, nil
}

func (s *MemoryStore) AddBlackout(_ context.Context, doctorID uuid.UUID, date civil.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blackouts[doctorID] == nil {
		s.blackouts[doctorID] = make(map[string]struct{})
	}
	s.blackouts[doctorID][date.String()] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveBlackout(_ context.Context, doctorID uuid.UUID, date civil.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blackouts[doctorID][date.String()]; !ok {
		return ErrBlackoutNotFound
	}
	delete(s.blackouts[doctorID], date.String())
	return nil
}

func (s *MemoryStore) Blackouts(_ context.Context, doctorID uuid.UUID, from, to civil.Date) ([]Blackout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Blackout
	for d := from; !d.After(to); d = d.AddDays(1) {
		if _, ok := s.blackouts[doctorID][d.String()]; ok {
			result = append(result, Blackout{DoctorID: doctorID, Date: d})
		}
	}
	return result, nil
}

func (s *MemoryStore) ConsultationMinutes(_ context.Context, doctorID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.slotMinutes[doctorID]; ok {
		return m, nil
	}
	return s.defaultMinutes, nil
}
