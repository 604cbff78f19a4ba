package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medreminder/internal/model"
)

func at(hour, minute, sec int) time.Time {
	// 2025-11-10 is a Monday.
	return time.Date(2025, 11, 10, hour, minute, sec, 0, time.Local)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "09:00", want: Clock{9, 0}},
		{in: "9:05", want: Clock{9, 5}},
		{in: "23:59", want: Clock{23, 59}},
		{in: " 00:00 ", want: Clock{0, 0}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "+9:00", wantErr: true},
		{in: "-0:00", wantErr: true},
		{in: "09:+5", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsDueNowExactMatch(t *testing.T) {
	for _, tolerance := range []time.Duration{0, time.Second, 40 * time.Second} {
		for h := 0; h < 24; h += 5 {
			for m := 0; m < 60; m += 13 {
				entry := Clock{h, m}.String()
				assert.True(t, IsDueNow(entry, at(h, m, 0), tolerance), "%s tolerance %s", entry, tolerance)
			}
		}
	}
}

func TestIsDueNowOutsideTolerance(t *testing.T) {
	tolerance := 40 * time.Second
	scheduled := at(9, 0, 0)

	assert.True(t, IsDueNow("09:00", scheduled.Add(39*time.Second), tolerance))
	assert.True(t, IsDueNow("09:00", scheduled.Add(-39*time.Second), tolerance))
	assert.False(t, IsDueNow("09:00", scheduled.Add(40*time.Second), tolerance))
	assert.False(t, IsDueNow("09:00", scheduled.Add(41*time.Second), tolerance))
	assert.False(t, IsDueNow("09:00", scheduled.Add(-41*time.Second), tolerance))
	assert.False(t, IsDueNow("09:00", scheduled.Add(3*time.Hour), tolerance))
}

func TestIsDueNowSkipsBadTimes(t *testing.T) {
	assert.False(t, IsDueNow("9am", at(9, 0, 0), time.Minute))
	assert.False(t, IsMissed("9am", at(12, 0, 0), time.Minute, model.ReminderStatusUpcoming))
}

func TestIsMissed(t *testing.T) {
	grace := 60 * time.Second
	scheduled := at(9, 0, 0)

	assert.False(t, IsMissed("09:00", scheduled, grace, model.ReminderStatusUpcoming))
	assert.False(t, IsMissed("09:00", scheduled.Add(grace), grace, model.ReminderStatusUpcoming))
	assert.True(t, IsMissed("09:00", scheduled.Add(grace+time.Second), grace, model.ReminderStatusUpcoming))

	late := scheduled.Add(2 * time.Hour)
	assert.False(t, IsMissed("09:00", late, grace, model.ReminderStatusMissed))
	assert.False(t, IsMissed("09:00", late, grace, model.ReminderStatusCompleted))
}

func TestAppliesOnWeekdays(t *testing.T) {
	monday := at(12, 0, 0)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		weekend := day.Weekday() == time.Saturday || day.Weekday() == time.Sunday
		assert.Equal(t, !weekend, AppliesOn(model.Weekdays(), day), day.Weekday().String())
	}
}

func TestAppliesOn(t *testing.T) {
	monday := at(12, 0, 0)
	tuesday := monday.AddDate(0, 0, 1)

	assert.True(t, AppliesOn(model.Daily(), tuesday))
	assert.True(t, AppliesOn(model.Repeat{}, tuesday), "unset repeat is daily")

	mwf := model.OnDays(time.Monday, time.Wednesday, time.Friday)
	assert.True(t, AppliesOn(mwf, monday))
	assert.False(t, AppliesOn(mwf, tuesday))

	dated := model.Repeat{Kind: model.RepeatOnce, Date: "2025-11-10"}
	assert.True(t, AppliesOn(dated, monday))
	assert.False(t, AppliesOn(dated, tuesday))

	assert.True(t, AppliesOn(model.Repeat{Kind: model.RepeatOnce}, tuesday))
	assert.False(t, AppliesOn(model.Repeat{Kind: "fortnightly"}, tuesday))
}

func TestWithinTotalDays(t *testing.T) {
	created := at(22, 30, 0)
	three := 3

	assert.True(t, WithinTotalDays(created, &three, created))
	assert.True(t, WithinTotalDays(created, &three, at(8, 0, 0).AddDate(0, 0, 2)))
	assert.False(t, WithinTotalDays(created, &three, at(0, 1, 0).AddDate(0, 0, 3)))

	assert.True(t, WithinTotalDays(created, nil, created.AddDate(1, 0, 0)))
	assert.True(t, WithinTotalDays(time.Time{}, &three, created.AddDate(1, 0, 0)))
}

func TestNormalizeTimes(t *testing.T) {
	got, err := NormalizeTimes([]string{"9:00", "21:30", "09:00"})
	require.NoError(t, err)
	assert.Equal(t, model.Times{"09:00", "21:30"}, got)

	_, err = NormalizeTimes([]string{"08:00", "25:00"})
	assert.Error(t, err)
}
