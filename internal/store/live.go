package store

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/repository"
	"github.com/jwalitptl/medreminder/pkg/errors"
	"github.com/jwalitptl/medreminder/pkg/logger"
	"github.com/jwalitptl/medreminder/pkg/messaging"
	"github.com/jwalitptl/medreminder/pkg/metrics"
)

// ChangeChannel is the broker channel carrying change notices for a patient.
func ChangeChannel(patientID string) string {
	return "schedules." + patientID
}

// Change notice types published on ChangeChannel.
const (
	ChangeReminder     = "reminder.changed"
	ChangePrescription = "prescription.changed"
)

type LiveConfig struct {
	CacheTTL time.Duration
	// ResyncInterval reloads subscribed snapshots even without a notice, so a
	// lost broker message only delays a change. Zero disables it.
	ResyncInterval time.Duration
}

// Live is a ScheduleStore backed by Postgres repositories. Writes publish a
// change notice on the broker; subscribers reload the full snapshot on each
// notice, so every process sees every writer's changes.
type Live struct {
	reminders     repository.ReminderRepository
	prescriptions repository.PrescriptionRepository
	prefs         repository.PreferenceRepository
	broker        messaging.Broker
	cache         *gocache.Cache
	metrics       *metrics.Metrics
	logger        *logger.Logger
	resync        time.Duration
}

var (
	_ ScheduleStore   = (*Live)(nil)
	_ PreferenceStore = (*Live)(nil)
)

func NewLive(
	reminders repository.ReminderRepository,
	prescriptions repository.PrescriptionRepository,
	prefs repository.PreferenceRepository,
	broker messaging.Broker,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg LiveConfig,
) *Live {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Live{
		reminders:     reminders,
		prescriptions: prescriptions,
		prefs:         prefs,
		broker:        broker,
		cache:         gocache.New(ttl, 2*ttl),
		metrics:       m,
		logger:        log,
		resync:        cfg.ResyncInterval,
	}
}

func (s *Live) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveStore(op, err)
	s.metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *Live) announce(ctx context.Context, patientID, kind, id string) {
	msg := messaging.Message{Type: kind, Payload: map[string]string{"id": id}}
	if err := s.broker.Publish(ctx, ChangeChannel(patientID), msg); err != nil {
		s.logger.Error(err, "Failed to publish schedule change", "patient_id", patientID, "type", kind)
	}
}

func (s *Live) load(ctx context.Context, patientID string) (Snapshot, error) {
	start := time.Now()
	reminders, err := s.reminders.ListByPatient(ctx, patientID)
	if err == nil {
		var prescriptions []model.Prescription
		prescriptions, err = s.prescriptions.ListByPatient(ctx, patientID)
		if err == nil {
			SortReminders(reminders)
			SortPrescriptions(prescriptions)
			s.observe("snapshot", start, nil)
			return Snapshot{Reminders: reminders, Prescriptions: prescriptions}, nil
		}
	}
	s.observe("snapshot", start, err)
	return Snapshot{}, err
}

func (s *Live) Subscribe(ctx context.Context, patientID string) (*Subscription, error) {
	if patientID == "" {
		return nil, errors.BadRequest("patient id is required", nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	// Listen before the first load so no change between the two is lost.
	notices, err := s.broker.Subscribe(ctx, ChangeChannel(patientID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to schedule changes: %w", err)
	}

	snap, err := s.load(ctx, patientID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load schedules: %w", err)
	}

	sub := newSubscription(cancel)
	sub.publish(snap)

	go s.follow(ctx, sub, patientID, notices)
	return sub, nil
}

func (s *Live) follow(ctx context.Context, sub *Subscription, patientID string, notices <-chan []byte) {
	defer sub.Unsubscribe()

	var resync <-chan time.Time
	if s.resync > 0 {
		ticker := time.NewTicker(s.resync)
		defer ticker.Stop()
		resync = ticker.C
	}

	reload := func() {
		snap, err := s.load(ctx, patientID)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error(err, "Failed to reload schedules", "patient_id", patientID)
			}
			return
		}
		sub.publish(snap)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notices:
			if !ok {
				return
			}
			// Coalesce a burst of notices into one reload.
		drain:
			for {
				select {
				case _, ok := <-notices:
					if !ok {
						break drain
					}
				default:
					break drain
				}
			}
			reload()
		case <-resync:
			reload()
		}
	}
}

func (s *Live) CreateReminder(ctx context.Context, patientID string, r *model.Reminder) (id string, err error) {
	defer func(start time.Time) { s.observe("create_reminder", start, err) }(time.Now())

	r.ID = ""
	r.PatientID = patientID
	if err = s.reminders.Create(ctx, r); err != nil {
		return "", err
	}
	s.announce(ctx, patientID, ChangeReminder, r.ID)
	return r.ID, nil
}

func (s *Live) UpdateReminderFields(ctx context.Context, patientID, id string, u model.ReminderUpdate) (err error) {
	defer func(start time.Time) { s.observe("update_reminder", start, err) }(time.Now())

	current, err := s.reminders.Get(ctx, patientID, id)
	if err != nil {
		return err
	}

	status := u.Status
	u.Status = nil
	if !u.IsEmpty() {
		u.Apply(current)
		if err = s.reminders.Update(ctx, current); err != nil {
			return err
		}
	}
	if status != nil && *status != current.Status {
		if err = s.reminders.UpdateStatus(ctx, patientID, id, current.Status, *status); err != nil {
			return err
		}
	}

	s.announce(ctx, patientID, ChangeReminder, id)
	return nil
}

func (s *Live) TransitionReminder(ctx context.Context, patientID, id string, from, to model.ReminderStatus) (err error) {
	defer func(start time.Time) { s.observe("transition_reminder", start, err) }(time.Now())

	if err = s.reminders.UpdateStatus(ctx, patientID, id, from, to); err != nil {
		return err
	}
	s.announce(ctx, patientID, ChangeReminder, id)
	return nil
}

func (s *Live) DeleteReminder(ctx context.Context, patientID, id string) (err error) {
	defer func(start time.Time) { s.observe("delete_reminder", start, err) }(time.Now())

	if err = s.reminders.Delete(ctx, patientID, id); err != nil {
		return err
	}
	s.announce(ctx, patientID, ChangeReminder, id)
	return nil
}

func (s *Live) GetReminder(ctx context.Context, patientID, id string) (r *model.Reminder, err error) {
	defer func(start time.Time) { s.observe("get_reminder", start, err) }(time.Now())
	return s.reminders.Get(ctx, patientID, id)
}

func (s *Live) ListReminders(ctx context.Context, patientID string) (rs []model.Reminder, err error) {
	defer func(start time.Time) { s.observe("list_reminders", start, err) }(time.Now())

	rs, err = s.reminders.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	SortReminders(rs)
	return rs, nil
}

func prescriptionKey(patientID, id string) string {
	return patientID + "/" + id
}

func (s *Live) CreatePrescription(ctx context.Context, patientID string, p *model.Prescription) (id string, err error) {
	defer func(start time.Time) { s.observe("create_prescription", start, err) }(time.Now())

	p.ID = ""
	p.PatientID = patientID
	if err = s.prescriptions.Create(ctx, p); err != nil {
		return "", err
	}
	s.announce(ctx, patientID, ChangePrescription, p.ID)
	return p.ID, nil
}

func (s *Live) UpdatePrescription(ctx context.Context, patientID string, p *model.Prescription) (err error) {
	defer func(start time.Time) { s.observe("update_prescription", start, err) }(time.Now())

	p.PatientID = patientID
	if err = s.prescriptions.Update(ctx, p); err != nil {
		return err
	}
	s.cache.Delete(prescriptionKey(patientID, p.ID))
	s.announce(ctx, patientID, ChangePrescription, p.ID)
	return nil
}

func (s *Live) DeletePrescription(ctx context.Context, patientID, id string) (err error) {
	defer func(start time.Time) { s.observe("delete_prescription", start, err) }(time.Now())

	if err = s.prescriptions.Delete(ctx, patientID, id); err != nil {
		return err
	}
	s.cache.Delete(prescriptionKey(patientID, id))
	s.announce(ctx, patientID, ChangePrescription, id)
	return nil
}

// GetPrescription is a one-shot lookup, cached until the prescription is
// written through this store or the entry expires.
func (s *Live) GetPrescription(ctx context.Context, patientID, id string) (p *model.Prescription, err error) {
	key := prescriptionKey(patientID, id)
	if cached, ok := s.cache.Get(key); ok {
		out := cached.(model.Prescription).Clone()
		return &out, nil
	}

	defer func(start time.Time) { s.observe("get_prescription", start, err) }(time.Now())

	p, err = s.prescriptions.Get(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, p.Clone())
	return p, nil
}

func (s *Live) ListPrescriptions(ctx context.Context, patientID string) (ps []model.Prescription, err error) {
	defer func(start time.Time) { s.observe("list_prescriptions", start, err) }(time.Now())

	ps, err = s.prescriptions.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	SortPrescriptions(ps)
	return ps, nil
}

func (s *Live) GetPreference(ctx context.Context, patientID string) (pref *model.NotificationPreference, err error) {
	defer func(start time.Time) { s.observe("get_preference", start, err) }(time.Now())
	return s.prefs.Get(ctx, patientID)
}

func (s *Live) SavePreference(ctx context.Context, pref *model.NotificationPreference) (err error) {
	defer func(start time.Time) { s.observe("save_preference", start, err) }(time.Now())
	return s.prefs.Upsert(ctx, pref)
}
