package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jwalitptl/medreminder/pkg/logger"
	"github.com/jwalitptl/medreminder/pkg/messaging"
)

// PresenceChannel carries PresenceMessage updates from connected clients.
const PresenceChannel = "presence"

type PresenceMessage struct {
	PatientID string `json:"patient_id"`
	Online    bool   `json:"online"`
}

// DefaultRetryInterval is how often static patients whose scheduler failed
// to start are retried.
const DefaultRetryInterval = 30 * time.Second

// Factory builds an Idle scheduler for one patient.
type Factory func(patientID string) *Scheduler

// Manager keeps one running scheduler per online patient. Static patients
// are scheduled for the manager's whole lifetime.
type Manager struct {
	factory Factory
	broker  messaging.Broker
	static  map[string]bool
	logger  *logger.Logger
	retry   time.Duration

	mu         sync.Mutex
	ctx        context.Context
	schedulers map[string]*Scheduler
}

type ManagerOption func(*Manager)

// WithRetryInterval overrides DefaultRetryInterval.
func WithRetryInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.retry = d
		}
	}
}

func NewManager(factory Factory, broker messaging.Broker, static []string, log *logger.Logger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		factory:    factory,
		broker:     broker,
		static:     make(map[string]bool, len(static)),
		logger:     log,
		retry:      DefaultRetryInterval,
		schedulers: make(map[string]*Scheduler),
	}
	for _, id := range static {
		if id != "" {
			m.static[id] = true
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the static schedulers, follows presence until ctx is done, and
// stops every scheduler before returning.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.ctx = nil
		m.mu.Unlock()
		m.StopAll()
	}()

	m.startStatic()

	var presence <-chan []byte
	if m.broker != nil {
		var err error
		presence, err = m.broker.Subscribe(ctx, PresenceChannel)
		if err != nil {
			return fmt.Errorf("failed to subscribe to presence: %w", err)
		}
	}

	retry := time.NewTicker(m.retry)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-retry.C:
			m.startStatic()
		case payload, ok := <-presence:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("presence subscription closed")
			}
			m.handlePresence(payload)
		}
	}
}

// startStatic starts every static patient that has no running scheduler.
// A failed start is retried on the next call.
func (m *Manager) startStatic() {
	for id := range m.static {
		if err := m.Start(id); err != nil {
			m.logger.Error(err, "Failed to start scheduler, will retry", "patient_id", id, "retry_in", m.retry.String())
		}
	}
}

func (m *Manager) handlePresence(payload []byte) {
	var msg PresenceMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.PatientID == "" {
		m.logger.Warn("Ignoring malformed presence message", "payload", string(payload))
		return
	}

	if msg.Online {
		if err := m.Start(msg.PatientID); err != nil {
			m.logger.Error(err, "Failed to start scheduler", "patient_id", msg.PatientID)
		}
		return
	}
	if m.static[msg.PatientID] {
		return
	}
	m.StopPatient(msg.PatientID)
}

// Start runs a scheduler for patientID if none is running.
func (m *Manager) Start(patientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return fmt.Errorf("manager is not running")
	}
	if s, ok := m.schedulers[patientID]; ok && s.State() == StateRunning {
		return nil
	}

	s := m.factory(patientID)
	if err := s.SetOwner(m.ctx, patientID); err != nil {
		return err
	}
	m.schedulers[patientID] = s
	return nil
}

// StopPatient tears down the patient's scheduler and waits for it.
func (m *Manager) StopPatient(patientID string) {
	m.mu.Lock()
	s, ok := m.schedulers[patientID]
	delete(m.schedulers, patientID)
	m.mu.Unlock()

	if ok {
		s.Stop()
	}
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	schedulers := m.schedulers
	m.schedulers = make(map[string]*Scheduler)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range schedulers {
		wg.Add(1)
		go func(s *Scheduler) {
			defer wg.Done()
			s.Stop()
		}(s)
	}
	wg.Wait()
}

// Active lists patients with a running scheduler.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.schedulers))
	for id, s := range m.schedulers {
		if s.State() == StateRunning {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
