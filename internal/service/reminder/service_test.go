package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/store"
	"github.com/jwalitptl/medreminder/pkg/errors"
)

func newService() (*Service, *store.Memory) {
	mem := store.NewMemory()
	return NewService(mem, nil), mem
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	r, err := svc.Create(ctx, "p1", &model.CreateReminderRequest{
		Title: "Vitamin D",
		Times: []string{"9:00", "21:00", "09:00"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, model.Times{"09:00", "21:00"}, r.Times)
	assert.Equal(t, model.RepeatDaily, r.Repeat.Kind)
	assert.True(t, r.Enabled)
	assert.Equal(t, model.ReminderStatusUpcoming, r.Status)
	assert.Nil(t, r.TotalDays)

	stored, err := svc.Get(ctx, "p1", r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Times, stored.Times)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "p1", &model.CreateReminderRequest{Title: "A", Times: []string{"25:00"}})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Create(ctx, "p1", &model.CreateReminderRequest{Title: "A"})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Create(ctx, "p1", &model.CreateReminderRequest{
		Title:  "A",
		Times:  []string{"08:00"},
		Repeat: &model.Repeat{Kind: model.RepeatDays},
	})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	missing := "nope"
	_, err = svc.Create(ctx, "p1", &model.CreateReminderRequest{
		Title:                "A",
		Times:                []string{"08:00"},
		LinkedPrescriptionID: &missing,
	})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestUpdateAndToggle(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	r, err := svc.Create(ctx, "p1", &model.CreateReminderRequest{Title: "A", Times: []string{"08:00"}})
	require.NoError(t, err)

	title := "B"
	times := []string{"7:30"}
	weekdays := model.Weekdays()
	updated, err := svc.Update(ctx, "p1", r.ID, &model.UpdateReminderRequest{Title: &title, Times: &times, Repeat: &weekdays})
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Title)
	assert.Equal(t, model.Times{"07:30"}, updated.Times)
	assert.Equal(t, model.RepeatWeekdays, updated.Repeat.Kind)

	_, err = svc.Update(ctx, "p1", r.ID, &model.UpdateReminderRequest{})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Update(ctx, "p1", "missing", &model.UpdateReminderRequest{Title: &title})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	toggled, err := svc.Toggle(ctx, "p1", r.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)
	toggled, err = svc.Toggle(ctx, "p1", r.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Enabled)
}

func TestSetStatus(t *testing.T) {
	svc, mem := newService()
	ctx := context.Background()

	r, err := svc.Create(ctx, "p1", &model.CreateReminderRequest{Title: "A", Times: []string{"08:00"}})
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, "p1", r.ID, model.ReminderStatusMissed)
	assert.True(t, errors.Is(err, errors.ErrConflict), "users cannot mark a reminder missed")

	done, err := svc.SetStatus(ctx, "p1", r.ID, model.ReminderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusCompleted, done.Status)

	again, err := svc.SetStatus(ctx, "p1", r.ID, model.ReminderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusCompleted, again.Status)

	reset, err := svc.SetStatus(ctx, "p1", r.ID, model.ReminderStatusUpcoming)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusUpcoming, reset.Status)

	require.NoError(t, mem.TransitionReminder(ctx, "p1", r.ID, model.ReminderStatusUpcoming, model.ReminderStatusMissed))
	done, err = svc.SetStatus(ctx, "p1", r.ID, model.ReminderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusCompleted, done.Status)
}

func TestListIsInDisplayOrder(t *testing.T) {
	mem := store.NewMemory()
	now := time.Date(2025, 11, 10, 8, 0, 0, 0, time.Local)
	mem.WithClock(func() time.Time { return now })
	svc := NewService(mem, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "p1", &model.CreateReminderRequest{Title: "Evening", Times: []string{"21:00"}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "p1", &model.CreateReminderRequest{Title: "Morning", Times: []string{"07:00"}})
	require.NoError(t, err)

	list, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Morning", list[0].Title)
	assert.Equal(t, "Evening", list[1].Title)
}

func TestLinkedPrescriptionAndDelete(t *testing.T) {
	svc, mem := newService()
	ctx := context.Background()

	pid, err := mem.CreatePrescription(ctx, "p1", &model.Prescription{
		Name:     "Amoxicillin",
		Dose:     "500mg",
		Schedule: model.PrescriptionSchedule{Times: model.Times{"08:00"}, Repeat: model.Daily()},
		Enabled:  true,
	})
	require.NoError(t, err)

	linked, err := svc.Create(ctx, "p1", &model.CreateReminderRequest{Title: "A", Times: []string{"08:00"}, LinkedPrescriptionID: &pid})
	require.NoError(t, err)
	plain, err := svc.Create(ctx, "p1", &model.CreateReminderRequest{Title: "B", Times: []string{"09:00"}})
	require.NoError(t, err)

	p, err := svc.LinkedPrescription(ctx, "p1", linked.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amoxicillin", p.Name)

	_, err = svc.LinkedPrescription(ctx, "p1", plain.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	require.NoError(t, svc.Delete(ctx, "p1", plain.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, "p1", plain.ID), errors.ErrNotFound))
}
