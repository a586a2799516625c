package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caresched/telehealth-scheduling/internal/civil"
)

func tmpl(day time.Weekday, start, end string) Template {
	s, err := civil.ParseTimeOfDay(start)
	if err != nil {
		panic(err)
	}
	e, err := civil.ParseTimeOfDay(end)
	if err != nil {
		panic(err)
	}
	return Template{Weekday: day, Start: s, End: e, Active: true}
}

func TestValidateWeek(t *testing.T) {
	tests := []struct {
		name      string
		templates []Template
		wantErr   error
	}{
		{
			name: "disjoint windows",
			templates: []Template{
				tmpl(time.Monday, "09:00", "12:00"),
				tmpl(time.Monday, "14:00", "17:00"),
				tmpl(time.Tuesday, "09:00", "12:00"),
			},
		},
		{
			name: "back to back windows allowed",
			templates: []Template{
				tmpl(time.Monday, "09:00", "12:00"),
				tmpl(time.Monday, "12:00", "15:00"),
			},
		},
		{
			name:      "start equals end",
			templates: []Template{tmpl(time.Monday, "09:00", "09:00")},
			wantErr:   ErrInvalidWindow,
		},
		{
			name:      "start after end",
			templates: []Template{tmpl(time.Monday, "12:00", "09:00")},
			wantErr:   ErrInvalidWindow,
		},
		{
			name: "same day overlap",
			templates: []Template{
				tmpl(time.Monday, "09:00", "12:00"),
				tmpl(time.Monday, "11:00", "14:00"),
			},
			wantErr: ErrOverlappingWindows,
		},
		{
			name: "contained window",
			templates: []Template{
				tmpl(time.Wednesday, "09:00", "17:00"),
				tmpl(time.Wednesday, "10:00", "11:00"),
			},
			wantErr: ErrOverlappingWindows,
		},
		{
			name: "same times on different days",
			templates: []Template{
				tmpl(time.Monday, "09:00", "12:00"),
				tmpl(time.Friday, "09:00", "12:00"),
			},
		},
		{
			name: "empty schedule",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWeek(tc.templates)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMemoryStoreReplaceWeeklySchedule(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(30)
	doctorID := uuid.New()

	require.NoError(t, store.ReplaceWeeklySchedule(ctx, doctorID, []Template{
		tmpl(time.Monday, "09:00", "12:00"),
		tmpl(time.Tuesday, "09:00", "12:00"),
	}))

	got, err := store.Templates(ctx, doctorID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, doctorID, got[0].DoctorID)
	assert.NotEqual(t, uuid.Nil, got[0].ID)

	// Replacement swaps the whole set, not a merge.
	require.NoError(t, store.ReplaceWeeklySchedule(ctx, doctorID, []Template{
		tmpl(time.Friday, "13:00", "16:00"),
	}))

	got, err = store.Templates(ctx, doctorID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Friday, got[0].Weekday)
}

func TestMemoryStoreReplaceRejectsInvalidWeek(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(30)
	doctorID := uuid.New()

	require.NoError(t, store.ReplaceWeeklySchedule(ctx, doctorID, []Template{
		tmpl(time.Monday, "09:00", "12:00"),
	}))

	err := store.ReplaceWeeklySchedule(ctx, doctorID, []Template{
		tmpl(time.Monday, "09:00", "12:00"),
		tmpl(time.Monday, "10:00", "11:00"),
	})
	require.ErrorIs(t, err, ErrOverlappingWindows)

	// Failed replace must leave the old schedule intact.
	got, err := store.Templates(ctx, doctorID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Monday, got[0].Weekday)
}

func TestMemoryStoreBlackouts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(30)
	doctorID := uuid.New()

	mon := civil.NewDate(2026, time.September, 7)
	wed := civil.NewDate(2026, time.September, 9)

	require.NoError(t, store.AddBlackout(ctx, doctorID, mon))
	require.NoError(t, store.AddBlackout(ctx, doctorID, wed))

	got, err := store.Blackouts(ctx, doctorID, mon, mon.AddDays(6))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, mon, got[0].Date)
	assert.Equal(t, wed, got[1].Date)

	// Range excludes dates outside [from, to].
	got, err = store.Blackouts(ctx, doctorID, mon.AddDays(1), mon.AddDays(6))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, wed, got[0].Date)

	require.NoError(t, store.RemoveBlackout(ctx, doctorID, mon))
	assert.ErrorIs(t, store.RemoveBlackout(ctx, doctorID, mon), ErrBlackoutNotFound)
}

func TestMemoryStoreConsultationMinutes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(30)
	doctorID := uuid.New()

	got, err := store.ConsultationMinutes(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, 30, got)

	store.SetConsultationMinutes(doctorID, 45)
	got, err = store.ConsultationMinutes(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, 45, got)
}
