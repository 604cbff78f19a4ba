package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/store"
	"github.com/jwalitptl/medreminder/pkg/errors"
	"github.com/jwalitptl/medreminder/pkg/logger"
	"github.com/jwalitptl/medreminder/pkg/metrics"
)

// Notifier delivers a user-visible alert. Implementations must not block for
// long and must not panic into the caller.
type Notifier interface {
	Notify(ctx context.Context, title, body, tag string)
}

type Config struct {
	PollInterval   time.Duration
	DueTolerance   time.Duration
	MissedGrace    time.Duration
	SuppressWindow time.Duration
	// WriteTimeout bounds a status write that outlives its scheduler.
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:   20 * time.Second,
		DueTolerance:   40 * time.Second,
		MissedGrace:    60 * time.Second,
		SuppressWindow: 54 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// gateRetention bounds how long fired records are kept; no occurrence can
// fire twice in the same day through a record older than this.
const gateRetention = 24 * time.Hour

type Option func(*Scheduler)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler evaluates one patient's schedules on a fixed interval and alerts
// on due occurrences. It is Idle until SetOwner names a patient.
type Scheduler struct {
	store    store.ScheduleStore
	notifier Notifier
	cfg      Config
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time

	mu     sync.Mutex
	owner  string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(st store.ScheduleStore, n Notifier, cfg Config, m *metrics.Metrics, log *logger.Logger, opts ...Option) *Scheduler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if m == nil {
		m = metrics.New("medreminder")
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &Scheduler{
		store:    st,
		notifier: n,
		cfg:      cfg,
		metrics:  m,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOwner moves the scheduler to Running for ownerID, tearing down any
// previous owner first. An empty ownerID tears down and leaves it Idle.
func (s *Scheduler) SetOwner(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ownerID != "" && ownerID == s.owner && s.runningLocked() {
		return nil
	}
	s.stopLocked()
	if ownerID == "" {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub, err := s.store.Subscribe(runCtx, ownerID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to schedules of %s: %w", ownerID, err)
	}

	l := &loop{
		Scheduler: s,
		patientID: ownerID,
		sub:       sub,
		gate:      NewGate(),
		pending:   make(map[string]bool),
		results:   make(chan missedResult, 16),
		noted:     make(map[string]bool),
		log:       s.logger.WithFields(map[string]interface{}{"patient_id": ownerID}),
	}

	s.owner = ownerID
	s.cancel = cancel
	s.done = make(chan struct{})
	s.metrics.ActiveSchedulers.Inc()

	go l.run(runCtx, s.done)
	return nil
}

// Stop tears the scheduler down and returns once no further alert can be
// dispatched.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done

	s.metrics.ActiveSchedulers.Dec()
	s.owner = ""
	s.cancel = nil
	s.done = nil
}

func (s *Scheduler) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runningLocked() {
		return StateRunning
	}
	return StateIdle
}

func (s *Scheduler) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

type missedResult struct {
	reminderID string
	err        error
}

// loop is the state of one Running period. Everything in it is touched only
// by the run goroutine.
type loop struct {
	*Scheduler
	patientID string
	sub       *store.Subscription
	view      store.Snapshot
	gate      *Gate
	pending   map[string]bool
	results   chan missedResult
	noted     map[string]bool
	log       *logger.Logger
}

func (l *loop) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if l.sub != nil {
			l.sub.Unsubscribe()
		}
	}()

	l.log.Info("Scheduler started")
	defer l.log.Info("Scheduler stopped")

	// The store delivers the current set on subscribe.
	select {
	case snap, ok := <-l.sub.C:
		if ok {
			l.view = snap
		}
	default:
	}
	l.evaluate(ctx)

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var snapshots <-chan store.Snapshot
		if l.sub != nil {
			snapshots = l.sub.C
		}

		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				l.log.Warn("Schedule subscription closed, will resubscribe")
				l.sub = nil
				continue
			}
			l.view = snap
			l.evaluate(ctx)
		case res := <-l.results:
			l.handleMissedResult(res)
		case <-ticker.C:
			if l.sub == nil {
				l.resubscribe(ctx)
			}
			l.evaluate(ctx)
		}
	}
}

func (l *loop) resubscribe(ctx context.Context) {
	sub, err := l.store.Subscribe(ctx, l.patientID)
	if err != nil {
		l.log.Error(err, "Failed to resubscribe to schedules")
		return
	}
	l.sub = sub
	select {
	case snap, ok := <-sub.C:
		if ok {
			l.view = snap
		}
	default:
	}
}

// evaluate runs one pass over the held snapshot.
func (l *loop) evaluate(ctx context.Context) {
	start := time.Now()
	now := l.now()
	defer func() {
		if r := recover(); r != nil {
			l.log.Error(fmt.Errorf("panic: %v", r), "Scheduler evaluation panicked")
		}
		l.metrics.SchedulerTicks.Inc()
		l.metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds())
	}()

	occs, skips := Expand(l.view, now)
	for _, skip := range skips {
		l.metrics.OccurrencesSkipped.WithLabelValues(skip.Reason).Inc()
		l.log.Debug("Skipping malformed occurrence", "source_id", skip.SourceID, "time", skip.Time, "reason", skip.Reason)
	}

	marked := make(map[string]bool)
	for _, occ := range occs {
		if ctx.Err() != nil {
			return
		}

		if occ.DatelessOnce && !l.noted[occ.SourceID] {
			l.noted[occ.SourceID] = true
			l.log.Debug("Once reminder has no date, repeating daily until completed", "reminder_id", occ.SourceID)
		}

		if IsDueNow(occ.Time, now, l.cfg.DueTolerance) && l.gate.ShouldFire(occ.Key, now, l.suppressFor()) {
			l.notifier.Notify(ctx, occ.Title, "It's time: "+occ.Time, occ.Key)
			l.gate.RecordFired(occ.Key, now)
			l.log.Debug("Alert dispatched", "occurrence", occ.Key)
		}

		if occ.Virtual || marked[occ.SourceID] || l.pending[occ.SourceID] {
			continue
		}
		if l.missed(occ, now) {
			marked[occ.SourceID] = true
			l.markMissed(ctx, occ.SourceID)
		}
	}

	l.gate.Prune(now, gateRetention)
}

// suppressFor never re-arms an occurrence inside the due window it already
// fired in, whatever the configured window.
func (l *loop) suppressFor() time.Duration {
	if w := 2 * l.cfg.DueTolerance; w > l.cfg.SuppressWindow {
		return w
	}
	return l.cfg.SuppressWindow
}

// missed also rejects occurrences scheduled before the reminder existed.
func (l *loop) missed(occ Occurrence, now time.Time) bool {
	if !IsMissed(occ.Time, now, l.cfg.MissedGrace, occ.Status) {
		return false
	}
	return occ.CreatedAt.IsZero() || !occ.Clock.On(now).Before(occ.CreatedAt)
}

// markMissed writes the transition without waiting for it. The result comes
// back through l.results while the loop is alive and is dropped afterwards.
func (l *loop) markMissed(ctx context.Context, reminderID string) {
	l.pending[reminderID] = true
	patientID := l.patientID
	timeout := l.cfg.WriteTimeout

	go func() {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		err := l.store.TransitionReminder(writeCtx, patientID, reminderID, model.ReminderStatusUpcoming, model.ReminderStatusMissed)
		select {
		case l.results <- missedResult{reminderID: reminderID, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (l *loop) handleMissedResult(res missedResult) {
	delete(l.pending, res.reminderID)

	switch {
	case res.err == nil:
		l.metrics.MissedTransitions.Inc()
		l.log.Info("Reminder marked missed", "reminder_id", res.reminderID)
	case errors.Is(res.err, errors.ErrConflict), errors.Is(res.err, errors.ErrNotFound):
		l.log.Debug("Reminder changed before it could be marked missed", "reminder_id", res.reminderID)
	default:
		// Status is still upcoming, so a later tick retries.
		l.log.Error(res.err, "Failed to mark reminder missed", "reminder_id", res.reminderID)
	}
}
