package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepeatUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Repeat
		wantErr bool
	}{
		{name: "daily string", input: `"daily"`, want: Daily()},
		{name: "weekdays mixed case", input: `"Weekdays"`, want: Weekdays()},
		{name: "once without date", input: `"once"`, want: Repeat{Kind: RepeatOnce}},
		{name: "numeric days sunday zero", input: `{"days":[1,3,5]}`, want: OnDays(time.Monday, time.Wednesday, time.Friday)},
		{name: "named days", input: `{"days":["sun","Saturday"]}`, want: OnDays(time.Sunday, time.Saturday)},
		{name: "once with date", input: `{"kind":"once","date":"2025-11-10"}`, want: Repeat{Kind: RepeatOnce, Date: "2025-11-10"}},
		{name: "null", input: `null`, want: Repeat{}},
		{name: "empty days stays explicit", input: `{"days":[]}`, want: Repeat{Kind: RepeatDays}},
		{name: "day out of range", input: `{"days":[7]}`, wantErr: true},
		{name: "bad day name", input: `{"days":["funday"]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Repeat
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepeatMarshal(t *testing.T) {
	out, err := json.Marshal(OnDays(time.Monday, time.Friday))
	require.NoError(t, err)
	assert.JSONEq(t, `{"days":["mon","fri"]}`, string(out))

	out, err = json.Marshal(Repeat{})
	require.NoError(t, err)
	assert.Equal(t, `"daily"`, string(out))

	out, err = json.Marshal(Repeat{Kind: RepeatOnce, Date: "2025-11-10"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"once","date":"2025-11-10"}`, string(out))
}

func TestRepeatValidate(t *testing.T) {
	assert.NoError(t, Daily().Validate())
	assert.NoError(t, Repeat{Kind: RepeatOnce}.Validate())
	assert.Error(t, Repeat{Kind: RepeatOnce, Date: "10/11/2025"}.Validate())
	assert.Error(t, Repeat{Kind: RepeatDays}.Validate())
	assert.Error(t, Repeat{Kind: "fortnightly"}.Validate())
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("Tuesday")
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, d)

	_, err = ParseWeekday("tuesdays")
	assert.Error(t, err)
	_, err = ParseWeekday("tu")
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(ReminderStatusUpcoming, ReminderStatusMissed, true))
	assert.False(t, CanTransition(ReminderStatusCompleted, ReminderStatusMissed, true))
	assert.False(t, CanTransition(ReminderStatusUpcoming, ReminderStatusMissed, false))

	assert.True(t, CanTransition(ReminderStatusMissed, ReminderStatusCompleted, false))
	assert.True(t, CanTransition(ReminderStatusUpcoming, ReminderStatusCompleted, false))
	assert.True(t, CanTransition(ReminderStatusCompleted, ReminderStatusUpcoming, false))
	assert.False(t, CanTransition(ReminderStatusUpcoming, ReminderStatusUpcoming, false))
}

func TestReminderUpdateApply(t *testing.T) {
	days := 5
	r := Reminder{Title: "Vitamin D", Times: Times{"08:00"}, TotalDays: &days, Enabled: true}

	title := "Vitamin D3"
	zero := 0
	off := false
	u := ReminderUpdate{Title: &title, TotalDays: &zero, Enabled: &off}
	u.Apply(&r)

	assert.Equal(t, "Vitamin D3", r.Title)
	assert.Nil(t, r.TotalDays)
	assert.False(t, r.Enabled)
	assert.Equal(t, Times{"08:00"}, r.Times)
	assert.True(t, ReminderUpdate{}.IsEmpty())
	assert.False(t, u.IsEmpty())
}

func TestReminderCloneIsDeep(t *testing.T) {
	r := Reminder{Times: Times{"08:00"}, Repeat: OnDays(time.Monday)}
	c := r.Clone()
	c.Times[0] = "09:00"
	c.Repeat.Days[0] = time.Friday

	assert.Equal(t, "08:00", r.Times[0])
	assert.Equal(t, time.Monday, r.Repeat.Days[0])
}

func TestPrescriptionActiveOn(t *testing.T) {
	end := "2025-11-12"
	p := Prescription{StartDate: "2025-11-10", EndDate: &end, Enabled: true}

	day := func(s string) time.Time {
		d, err := time.ParseInLocation(DateLayout, s, time.Local)
		require.NoError(t, err)
		return d.Add(13 * time.Hour)
	}

	assert.False(t, p.ActiveOn(day("2025-11-09")))
	assert.True(t, p.ActiveOn(day("2025-11-10")))
	assert.True(t, p.ActiveOn(day("2025-11-12")))
	assert.False(t, p.ActiveOn(day("2025-11-13")))

	open := Prescription{StartDate: "2025-11-10"}
	assert.True(t, open.ActiveOn(day("2030-01-01")))

	bad := Prescription{StartDate: "soon"}
	assert.False(t, bad.ActiveOn(day("2025-11-10")))
}

func TestTimesScan(t *testing.T) {
	var ts Times
	require.NoError(t, ts.Scan([]byte(`["08:00","20:00"]`)))
	assert.Equal(t, Times{"08:00", "20:00"}, ts)

	v, err := Times(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)
}
