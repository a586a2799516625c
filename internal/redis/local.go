package redisclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/caresched/telehealth-scheduling/internal/civil"
)

// LocalLocker is an in-process Locker for single-instance deployments and
// tests. It does not coordinate across processes; multi-instance setups
// must use the Redis locker and rely on the database uniqueness constraint.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) WithBookingLock(ctx context.Context, doctorID uuid.UUID, date civil.Date, start civil.TimeOfDay, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("%s:%s:%s", doctorID, date, start)

	l.mu.Lock()
	m, ok := l.slots[key]
	if !ok {
		m = &sync.Mutex{}
		l.slots[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	return fn(ctx)
}
