package civil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-09-07")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-07", d.String())
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = ParseDate("07/09/2026")
	assert.ErrorIs(t, err, ErrBadDate)

	_, err = ParseDate("")
	assert.ErrorIs(t, err, ErrBadDate)
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2026, time.September, 7)

	assert.Equal(t, "2026-09-08", d.AddDays(1).String())
	assert.Equal(t, "2026-10-01", NewDate(2026, time.September, 30).AddDays(1).String())

	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.After(d))
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		minutes int
		wantErr bool
	}{
		{in: "09:00", want: "09:00", minutes: 540},
		{in: "00:00", want: "00:00", minutes: 0},
		{in: "23:59", want: "23:59", minutes: 1439},
		{in: "24:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "9am", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrBadTimeOfDay, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got.String())
		assert.Equal(t, tc.minutes, got.Minutes())
	}
}

func TestTimeOfDayAdd(t *testing.T) {
	start := NewTimeOfDay(9, 30)

	assert.Equal(t, "10:00", start.Add(30*time.Minute).String())
	assert.True(t, start.Before(start.Add(time.Minute)))
	assert.True(t, start.Add(time.Minute).After(start))
}

func TestTimeOfDayAt(t *testing.T) {
	at := NewTimeOfDay(14, 15).At(NewDate(2026, time.September, 7))
	assert.Equal(t, time.Date(2026, time.September, 7, 14, 15, 0, 0, time.UTC), at)
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Date  Date      `json:"date"`
		Start TimeOfDay `json:"start"`
	}

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2026-09-07","start":"09:30"}`), &p))
	assert.Equal(t, "2026-09-07", p.Date.String())
	assert.Equal(t, "09:30", p.Start.String())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2026-09-07","start":"09:30"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"date":"bad"}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"start":"25:00"}`), &p))
}
