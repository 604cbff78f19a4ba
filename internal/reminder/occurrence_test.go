package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/store"
)

func keys(occs []Occurrence) []string {
	out := make([]string, len(occs))
	for i, o := range occs {
		out[i] = o.Key
	}
	return out
}

func TestExpandOrderAndKeys(t *testing.T) {
	end := "2025-11-30"
	snap := store.Snapshot{
		Reminders: []model.Reminder{
			{Base: model.Base{ID: "b"}, Title: "Evening", Times: model.Times{"20:00", "08:00"}, Enabled: true, Status: model.ReminderStatusUpcoming},
			{Base: model.Base{ID: "a"}, Title: "Morning", Times: model.Times{"07:30"}, Enabled: true, Status: model.ReminderStatusUpcoming},
		},
		Prescriptions: []model.Prescription{
			{Base: model.Base{ID: "p1"}, Name: "Amoxicillin", Dose: "500mg", Enabled: true,
				StartDate: "2025-11-01", EndDate: &end,
				Schedule: model.PrescriptionSchedule{Times: model.Times{"12:00"}, Repeat: model.Daily()}},
		},
	}

	occs, skips := Expand(snap, at(6, 0, 0))
	assert.Empty(t, skips)
	assert.Equal(t, []string{"b#08:00", "b#20:00", "a#07:30", "pres_p1#12:00"}, keys(occs))

	virtual := occs[3]
	assert.True(t, virtual.Virtual)
	assert.Equal(t, "Amoxicillin • 500mg", virtual.Title)
	assert.Equal(t, "p1", virtual.SourceID)
}

func TestExpandSkipsMalformedTimes(t *testing.T) {
	snap := store.Snapshot{Reminders: []model.Reminder{
		{Base: model.Base{ID: "r1"}, Title: "A", Times: model.Times{"25:00", "09:00", "09:00"}, Enabled: true},
		{Base: model.Base{ID: "r2"}, Title: "B", Enabled: true},
	}}

	occs, skips := Expand(snap, at(6, 0, 0))
	assert.Equal(t, []string{"r1#09:00"}, keys(occs))
	require.Len(t, skips, 2)
	assert.Equal(t, Skip{SourceID: "r1", Time: "25:00", Reason: SkipBadTime}, skips[0])
	assert.Equal(t, Skip{SourceID: "r2", Reason: SkipNoTimes}, skips[1])
}

func TestExpandFiltersInactiveSchedules(t *testing.T) {
	two := 2
	created := at(9, 0, 0).AddDate(0, 0, -5)
	future := "2025-12-01"
	snap := store.Snapshot{
		Reminders: []model.Reminder{
			{Base: model.Base{ID: "disabled"}, Times: model.Times{"09:00"}},
			{Base: model.Base{ID: "weekend"}, Times: model.Times{"09:00"}, Enabled: true, Repeat: model.OnDays(time.Saturday, time.Sunday)},
			{Base: model.Base{ID: "expired", CreatedAt: created}, Times: model.Times{"09:00"}, Enabled: true, TotalDays: &two},
			{Base: model.Base{ID: "once-done"}, Times: model.Times{"09:00"}, Enabled: true,
				Repeat: model.Repeat{Kind: model.RepeatOnce}, Status: model.ReminderStatusCompleted},
			{Base: model.Base{ID: "once-open"}, Times: model.Times{"09:00"}, Enabled: true,
				Repeat: model.Repeat{Kind: model.RepeatOnce}, Status: model.ReminderStatusUpcoming},
			{Base: model.Base{ID: "daily-done"}, Times: model.Times{"09:00"}, Enabled: true, Status: model.ReminderStatusCompleted},
		},
		Prescriptions: []model.Prescription{
			{Base: model.Base{ID: "off"}, Name: "X", Schedule: model.PrescriptionSchedule{Times: model.Times{"09:00"}}},
			{Base: model.Base{ID: "later"}, Name: "Y", Enabled: true, StartDate: future, Schedule: model.PrescriptionSchedule{Times: model.Times{"09:00"}}},
		},
	}

	occs, _ := Expand(snap, at(6, 0, 0))
	assert.Equal(t, []string{"once-open#09:00", "daily-done#09:00"}, keys(occs))
	assert.True(t, occs[0].DatelessOnce)
	assert.False(t, occs[1].DatelessOnce)
}
