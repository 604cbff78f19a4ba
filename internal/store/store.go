package store

import (
	"context"
	"sort"
	"sync"

	"github.com/jwalitptl/medreminder/internal/model"
)

// Snapshot is the complete schedule set of one patient at a point in time.
type Snapshot struct {
	Reminders     []model.Reminder
	Prescriptions []model.Prescription
}

// Clone returns a deep copy so holders never share slices with the store.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Reminders:     make([]model.Reminder, len(s.Reminders)),
		Prescriptions: make([]model.Prescription, len(s.Prescriptions)),
	}
	for i, r := range s.Reminders {
		out.Reminders[i] = r.Clone()
	}
	for i, p := range s.Prescriptions {
		out.Prescriptions[i] = p.Clone()
	}
	return out
}

// ScheduleStore holds reminders and prescriptions keyed by patient.
type ScheduleStore interface {
	// Subscribe delivers the current snapshot and a fresh full snapshot after every change.
	Subscribe(ctx context.Context, patientID string) (*Subscription, error)

	CreateReminder(ctx context.Context, patientID string, r *model.Reminder) (string, error)
	UpdateReminderFields(ctx context.Context, patientID, id string, u model.ReminderUpdate) error
	// TransitionReminder moves status from one value to another, failing with a
	// conflict when the stored status is no longer from.
	TransitionReminder(ctx context.Context, patientID, id string, from, to model.ReminderStatus) error
	DeleteReminder(ctx context.Context, patientID, id string) error
	GetReminder(ctx context.Context, patientID, id string) (*model.Reminder, error)
	ListReminders(ctx context.Context, patientID string) ([]model.Reminder, error)

	CreatePrescription(ctx context.Context, patientID string, p *model.Prescription) (string, error)
	UpdatePrescription(ctx context.Context, patientID string, p *model.Prescription) error
	DeletePrescription(ctx context.Context, patientID, id string) error
	GetPrescription(ctx context.Context, patientID, id string) (*model.Prescription, error)
	ListPrescriptions(ctx context.Context, patientID string) ([]model.Prescription, error)
}

// PreferenceStore holds per-patient notification preferences.
type PreferenceStore interface {
	GetPreference(ctx context.Context, patientID string) (*model.NotificationPreference, error)
	SavePreference(ctx context.Context, pref *model.NotificationPreference) error
}

// Subscription is a latest-wins feed of snapshots. A slow reader only ever
// sees the newest snapshot.
type Subscription struct {
	C <-chan Snapshot

	mu     sync.Mutex
	ch     chan Snapshot
	closed bool
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	ch := make(chan Snapshot, 1)
	return &Subscription{C: ch, ch: ch, cancel: cancel}
}

func (s *Subscription) publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

// Unsubscribe stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
}

// SortReminders orders reminders for display: first time of day, then creation.
func SortReminders(rs []model.Reminder) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := firstTime(rs[i]), firstTime(rs[j])
		if a != b {
			return a < b
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}

func SortPrescriptions(ps []model.Prescription) {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}

func firstTime(r model.Reminder) string {
	if len(r.Times) == 0 {
		return ""
	}
	first := r.Times[0]
	for _, t := range r.Times[1:] {
		if t < first {
			first = t
		}
	}
	return first
}
