package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caresched/telehealth-scheduling/internal/availability"
	"github.com/caresched/telehealth-scheduling/internal/booking"
	"github.com/caresched/telehealth-scheduling/internal/civil"
)

type TemplateRequest struct {
	Weekday   string          `json:"weekday"`
	StartTime civil.TimeOfDay `json:"start_time"`
	EndTime   civil.TimeOfDay `json:"end_time"`
	Active    *bool           `json:"active,omitempty"`
}

type ReplaceScheduleRequest struct {
	Templates []TemplateRequest `json:"templates"`
}

type TemplateResponse struct {
	ID        uuid.UUID       `json:"id"`
	Weekday   string          `json:"weekday"`
	StartTime civil.TimeOfDay `json:"start_time"`
	EndTime   civil.TimeOfDay `json:"end_time"`
	Active    bool            `json:"active"`
}

type AddBlackoutRequest struct {
	Date civil.Date `json:"date"`
}

type CreateAppointmentRequest struct {
	DoctorID  string          `json:"doctor_id"`
	PatientID string          `json:"patient_id"`
	Date      civil.Date      `json:"date"`
	StartTime civil.TimeOfDay `json:"start_time"`
	Type      string          `json:"type"`
	Reason    string          `json:"reason,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type CompleteAppointmentRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID           uuid.UUID       `json:"id"`
	DoctorID     uuid.UUID       `json:"doctor_id"`
	PatientID    uuid.UUID       `json:"patient_id"`
	Date         civil.Date      `json:"date"`
	StartTime    civil.TimeOfDay `json:"start_time"`
	EndTime      civil.TimeOfDay `json:"end_time"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	CancelReason *string         `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		DoctorID:     a.DoctorID,
		PatientID:    a.PatientID,
		Date:         a.Date,
		StartTime:    a.Start,
		EndTime:      a.End,
		Type:         string(a.Type),
		Status:       string(a.Status),
		Reason:       a.Reason,
		Notes:        a.Notes,
		CancelReason: a.CancelReason,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toTemplateResponse(t availability.Template) TemplateResponse {
	return TemplateResponse{
		ID:        t.ID,
		Weekday:   strings.ToLower(t.Weekday.String()),
		StartTime: t.Start,
		EndTime:   t.End,
		Active:    t.Active,
	}
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	if d, ok := weekdays[strings.ToLower(s)]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
