package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caresched/telehealth-scheduling/internal/availability"
	"github.com/caresched/telehealth-scheduling/internal/booking"
	"github.com/caresched/telehealth-scheduling/internal/civil"
	redisclient "github.com/caresched/telehealth-scheduling/internal/redis"
	"github.com/caresched/telehealth-scheduling/internal/schedule"
)

type testServer struct {
	srv       *httptest.Server
	repo      *booking.MemoryRepository
	store     *availability.MemoryStore
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := availability.NewMemoryStore(30)
	repo := booking.NewMemoryRepository()
	resolver := schedule.NewResolver(store, repo)
	engine := booking.NewEngine(repo, resolver, redisclient.NewLocalLocker(), booking.LogNotifier{}, nil)

	handler := NewRouter(RouterConfig{
		Engine:       engine,
		Resolver:     resolver,
		Availability: store,
		Env:          "test",
		Version:      "test",
	})

	ts := &testServer{
		srv:       httptest.NewServer(handler),
		repo:      repo,
		store:     store,
		doctorID:  uuid.New(),
		patientID: uuid.New(),
	}
	t.Cleanup(ts.srv.Close)

	repo.AddPatient(booking.Patient{ID: ts.patientID, Name: "Ada Kovacs"})

	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, actingUser *uuid.UUID) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actingUser != nil {
		req.Header.Set(actingUserHeader, actingUser.String())
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (ts *testServer) putMondaySchedule(t *testing.T) {
	t.Helper()
	resp := ts.do(t, http.MethodPut, "/availability/"+ts.doctorID.String()+"/schedule", ReplaceScheduleRequest{
		Templates: []TemplateRequest{
			{Weekday: "monday", StartTime: mustTime(t, "09:00"), EndTime: mustTime(t, "11:00")},
		},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func mustTime(t *testing.T, s string) civil.TimeOfDay {
	t.Helper()
	v, err := civil.ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

const mondayStr = "2026-09-07"

func (ts *testServer) bookAppointment(t *testing.T, start string) AppointmentResponse {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		DoctorID:  ts.doctorID.String(),
		PatientID: ts.patientID.String(),
		Date:      mustDate(t, mondayStr),
		StartTime: mustTime(t, start),
		Type:      "video",
		Reason:    "checkup",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[AppointmentResponse](t, resp)
}

func mustDate(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestReplaceScheduleValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPut, "/availability/"+ts.doctorID.String()+"/schedule", ReplaceScheduleRequest{
		Templates: []TemplateRequest{
			{Weekday: "monday", StartTime: mustTime(t, "09:00"), EndTime: mustTime(t, "12:00")},
			{Weekday: "monday", StartTime: mustTime(t, "11:00"), EndTime: mustTime(t, "14:00")},
		},
	}, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_request", body.Error)

	resp = ts.do(t, http.MethodPut, "/availability/"+ts.doctorID.String()+"/schedule", ReplaceScheduleRequest{
		Templates: []TemplateRequest{{Weekday: "moonday", StartTime: mustTime(t, "09:00"), EndTime: mustTime(t, "12:00")}},
	}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListSlots(t *testing.T) {
	ts := newTestServer(t)
	ts.putMondaySchedule(t)

	resp := ts.do(t, http.MethodGet, fmt.Sprintf("/availability/%s/slots?from=%s&to=%s", ts.doctorID, mondayStr, mondayStr), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	slots := decode[[]schedule.Slot](t, resp)
	require.Len(t, slots, 4)
	assert.Equal(t, "09:00", slots[0].Start.String())
	assert.Equal(t, "10:30", slots[3].Start.String())
}

func TestListSlotsBadRange(t *testing.T) {
	ts := newTestServer(t)
	ts.putMondaySchedule(t)

	resp := ts.do(t, http.MethodGet, fmt.Sprintf("/availability/%s/slots?from=2026-09-08&to=%s", ts.doctorID, mondayStr), nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/availability/%s/slots?from=bogus&to=%s", ts.doctorID, mondayStr), nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBlackoutLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.putMondaySchedule(t)

	resp := ts.do(t, http.MethodPost, "/availability/"+ts.doctorID.String()+"/blackouts",
		AddBlackoutRequest{Date: mustDate(t, mondayStr)}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/availability/%s/slots?from=%s&to=%s", ts.doctorID, mondayStr, mondayStr), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots := decode[[]schedule.Slot](t, resp)
	assert.Empty(t, slots)

	resp = ts.do(t, http.MethodDelete, "/availability/"+ts.doctorID.String()+"/blackouts/"+mondayStr, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = ts.do(t, http.MethodDelete, "/availability/"+ts.doctorID.String()+"/blackouts/"+mondayStr, nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBookAndConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.putMondaySchedule(t)

	appt := ts.bookAppointment(t, "10:00")
	assert.Equal(t, "SCHEDULED", appt.Status)
	assert.Equal(t, "10:30", appt.EndTime.String())

	// Same slot again: 409 with the pick-another-time error code.
	resp := ts.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		DoctorID:  ts.doctorID.String(),
		PatientID: ts.patientID.String(),
		Date:      mustDate(t, mondayStr),
		StartTime: mustTime(t, "10:00"),
		Type:      "in-person",
	}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "slot_taken", body.Error)

	// The slot list no longer offers 10:00.
	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/availability/%s/slots?from=%s&to=%s", ts.doctorID, mondayStr, mondayStr), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots := decode[[]schedule.Slot](t, resp)
	require.Len(t, slots, 3)
	for _, s := range slots {
		assert.NotEqual(t, "10:00", s.Start.String())
	}
}

func TestBookValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.putMondaySchedule(t)

	resp := ts.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		DoctorID:  "not-a-uuid",
		PatientID: ts.patientID.String(),
		Date:      mustDate(t, mondayStr),
		StartTime: mustTime(t, "10:00"),
		Type:      "video",
	}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		DoctorID:  ts.doctorID.String(),
		PatientID: ts.patientID.String(),
		Date:      mustDate(t, mondayStr),
		StartTime: mustTime(t, "10:00"),
		Type:      "carrier-pigeon",
	}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		DoctorID:  ts.doctorID.String(),
		PatientID: uuid.New().String(),
		Date:      mustDate(t, mondayStr),
		StartTime: mustTime(t, "10:00"),
		Type:      "video",
	}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfirmFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.putMondaySchedule(t)
	appt := ts.bookAppointment(t, "09:00")

	// No acting user header.
	resp := ts.do(t, http.MethodPatch, "/appointments/"+appt.ID.String()+"/confirm", nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Wrong user.
	resp = ts.do(t, http.MethodPatch, "/appointments/"+appt.ID.String()+"/confirm", nil, &ts.patientID)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Owning doctor.
	resp = ts.do(t, http.MethodPatch, "/appointments/"+appt.ID.String()+"/confirm", nil, &ts.doctorID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "CONFIRMED", updated.Status)

	// Re-confirming conflicts.
	resp = ts.do(t, http.MethodPatch, "/appointments/"+appt.ID.String()+"/confirm", nil, &ts.doctorID)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_status_transition", body.Error)
}

func TestCancelReopensSlot(t *testing.T) {
	ts := newTestServer(t)
	ts.putMondaySchedule(t)
	appt := ts.bookAppointment(t, "10:00")

	resp := ts.do(t, http.MethodPatch, "/appointments/"+appt.ID.String()+"/cancel",
		CancelAppointmentRequest{Reason: strPtr("conflict came up")}, &ts.patientID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "conflict came up", *cancelled.CancelReason)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/availability/%s/slots?from=%s&to=%s", ts.doctorID, mondayStr, mondayStr), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots := decode[[]schedule.Slot](t, resp)
	assert.Len(t, slots, 4)
}

func TestCompleteFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.putMondaySchedule(t)
	appt := ts.bookAppointment(t, "09:30")

	// Completing before confirmation is rejected.
	resp := ts.do(t, http.MethodPatch, "/appointments/"+appt.ID.String()+"/complete",
		CompleteAppointmentRequest{}, &ts.doctorID)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodPatch, "/appointments/"+appt.ID.String()+"/confirm", nil, &ts.doctorID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.do(t, http.MethodPatch, "/appointments/"+appt.ID.String()+"/complete",
		CompleteAppointmentRequest{Notes: strPtr("follow up in two weeks")}, &ts.doctorID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	done := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "COMPLETED", done.Status)
	require.NotNil(t, done.Notes)
	assert.Equal(t, "follow up in two weeks", *done.Notes)
}

func TestGetAndListAppointments(t *testing.T) {
	ts := newTestServer(t)
	ts.putMondaySchedule(t)
	appt := ts.bookAppointment(t, "09:00")
	ts.bookAppointment(t, "09:30")

	resp := ts.do(t, http.MethodGet, "/appointments/"+appt.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[AppointmentResponse](t, resp)
	assert.Equal(t, appt.ID, got.ID)

	resp = ts.do(t, http.MethodGet, "/appointments/"+uuid.New().String(), nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/appointments?doctor_id=%s&date=%s", ts.doctorID, mondayStr), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	byDoctor := decode[[]AppointmentResponse](t, resp)
	assert.Len(t, byDoctor, 2)

	resp = ts.do(t, http.MethodGet, "/appointments?patient_id="+ts.patientID.String(), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	byPatient := decode[[]AppointmentResponse](t, resp)
	assert.Len(t, byPatient, 2)

	resp = ts.do(t, http.MethodGet, "/appointments", nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthLiveness(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health/live", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[LivenessResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Env)
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health/live", nil, nil)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.srv.URL+"/health/live", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "fixed-id")
	resp2, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "fixed-id", resp2.Header.Get("X-Request-ID"))
}

func strPtr(s string) *string { return &s }
