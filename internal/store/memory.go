package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/pkg/errors"
)

type patientData struct {
	reminders     map[string]model.Reminder
	prescriptions map[string]model.Prescription
	subs          map[*Subscription]struct{}
}

// Memory is an in-process ScheduleStore. Every write publishes a fresh
// snapshot to the patient's subscribers.
type Memory struct {
	mu       sync.Mutex
	patients map[string]*patientData
	prefs    map[string]model.NotificationPreference
	now      func() time.Time
}

var (
	_ ScheduleStore   = (*Memory)(nil)
	_ PreferenceStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		patients: make(map[string]*patientData),
		prefs:    make(map[string]model.NotificationPreference),
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source, for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) patient(id string) *patientData {
	p, ok := m.patients[id]
	if !ok {
		p = &patientData{
			reminders:     make(map[string]model.Reminder),
			prescriptions: make(map[string]model.Prescription),
			subs:          make(map[*Subscription]struct{}),
		}
		m.patients[id] = p
	}
	return p
}

func (p *patientData) snapshot() Snapshot {
	snap := Snapshot{
		Reminders:     make([]model.Reminder, 0, len(p.reminders)),
		Prescriptions: make([]model.Prescription, 0, len(p.prescriptions)),
	}
	for _, r := range p.reminders {
		snap.Reminders = append(snap.Reminders, r.Clone())
	}
	for _, pr := range p.prescriptions {
		snap.Prescriptions = append(snap.Prescriptions, pr.Clone())
	}
	SortReminders(snap.Reminders)
	SortPrescriptions(snap.Prescriptions)
	return snap
}

// notify must be called with m.mu held.
func (m *Memory) notify(patientID string) {
	p := m.patient(patientID)
	if len(p.subs) == 0 {
		return
	}
	snap := p.snapshot()
	for sub := range p.subs {
		sub.publish(snap.Clone())
	}
}

func (m *Memory) Subscribe(ctx context.Context, patientID string) (*Subscription, error) {
	if patientID == "" {
		return nil, errors.BadRequest("patient id is required", nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	var sub *Subscription
	sub = newSubscription(func() {
		cancel()
		m.mu.Lock()
		delete(m.patient(patientID).subs, sub)
		m.mu.Unlock()
	})

	m.mu.Lock()
	p := m.patient(patientID)
	p.subs[sub] = struct{}{}
	sub.publish(p.snapshot())
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()

	return sub, nil
}

func (m *Memory) CreateReminder(_ context.Context, patientID string, r *model.Reminder) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	r.ID = uuid.NewString()
	r.PatientID = patientID
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = model.ReminderStatusUpcoming
	}
	m.patient(patientID).reminders[r.ID] = r.Clone()
	m.notify(patientID)
	return r.ID, nil
}

func (m *Memory) UpdateReminderFields(_ context.Context, patientID, id string, u model.ReminderUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.patient(patientID)
	r, ok := p.reminders[id]
	if !ok {
		return errors.NotFound("reminder", nil)
	}
	u.Apply(&r)
	r.UpdatedAt = m.now()
	p.reminders[id] = r
	m.notify(patientID)
	return nil
}

func (m *Memory) TransitionReminder(_ context.Context, patientID, id string, from, to model.ReminderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.patient(patientID)
	r, ok := p.reminders[id]
	if !ok {
		return errors.NotFound("reminder", nil)
	}
	if r.Status != from {
		return errors.Conflict(fmt.Sprintf("reminder is %s, not %s", r.Status, from), nil)
	}
	r.Status = to
	r.UpdatedAt = m.now()
	p.reminders[id] = r
	m.notify(patientID)
	return nil
}

func (m *Memory) DeleteReminder(_ context.Context, patientID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.patient(patientID)
	if _, ok := p.reminders[id]; !ok {
		return errors.NotFound("reminder", nil)
	}
	delete(p.reminders, id)
	m.notify(patientID)
	return nil
}

func (m *Memory) GetReminder(_ context.Context, patientID, id string) (*model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.patient(patientID).reminders[id]
	if !ok {
		return nil, errors.NotFound("reminder", nil)
	}
	out := r.Clone()
	return &out, nil
}

func (m *Memory) ListReminders(_ context.Context, patientID string) ([]model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patient(patientID).snapshot().Reminders, nil
}

func (m *Memory) CreatePrescription(_ context.Context, patientID string, pr *model.Prescription) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	pr.ID = uuid.NewString()
	pr.PatientID = patientID
	pr.CreatedAt = now
	pr.UpdatedAt = now
	m.patient(patientID).prescriptions[pr.ID] = pr.Clone()
	m.notify(patientID)
	return pr.ID, nil
}

func (m *Memory) UpdatePrescription(_ context.Context, patientID string, pr *model.Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.patient(patientID)
	existing, ok := p.prescriptions[pr.ID]
	if !ok {
		return errors.NotFound("prescription", nil)
	}
	pr.PatientID = patientID
	pr.CreatedAt = existing.CreatedAt
	pr.UpdatedAt = m.now()
	p.prescriptions[pr.ID] = pr.Clone()
	m.notify(patientID)
	return nil
}

func (m *Memory) DeletePrescription(_ context.Context, patientID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.patient(patientID)
	if _, ok := p.prescriptions[id]; !ok {
		return errors.NotFound("prescription", nil)
	}
	delete(p.prescriptions, id)
	m.notify(patientID)
	return nil
}

func (m *Memory) GetPrescription(_ context.Context, patientID, id string) (*model.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pr, ok := m.patient(patientID).prescriptions[id]
	if !ok {
		return nil, errors.NotFound("prescription", nil)
	}
	out := pr.Clone()
	return &out, nil
}

func (m *Memory) ListPrescriptions(_ context.Context, patientID string) ([]model.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patient(patientID).snapshot().Prescriptions, nil
}

func (m *Memory) GetPreference(_ context.Context, patientID string) (*model.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pref, ok := m.prefs[patientID]
	if !ok {
		return nil, errors.NotFound("notification preference", nil)
	}
	return &pref, nil
}

func (m *Memory) SavePreference(_ context.Context, pref *model.NotificationPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pref.UpdatedAt = m.now()
	m.prefs[pref.PatientID] = *pref
	return nil
}
