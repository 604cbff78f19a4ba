// Package bootstrap builds the shared runtime of the api and worker commands
// from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/medreminder/config"
	"github.com/jwalitptl/medreminder/internal/alert"
	"github.com/jwalitptl/medreminder/internal/handler/health"
	"github.com/jwalitptl/medreminder/internal/reminder"
	"github.com/jwalitptl/medreminder/internal/repository/postgres"
	"github.com/jwalitptl/medreminder/internal/store"
	"github.com/jwalitptl/medreminder/pkg/logger"
	"github.com/jwalitptl/medreminder/pkg/messaging"
	"github.com/jwalitptl/medreminder/pkg/messaging/memory"
	"github.com/jwalitptl/medreminder/pkg/messaging/redis"
	"github.com/jwalitptl/medreminder/pkg/metrics"
)

const namespace = "medreminder"

// Runtime is everything a command needs besides its own server.
type Runtime struct {
	Config      *config.Config
	Logger      *logger.Logger
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Broker      messaging.Broker
	Schedules   store.ScheduleStore
	Preferences store.PreferenceStore
	Checks      map[string]health.Check

	closers []func() error
}

func NewLogger(cfg config.LoggerConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Format == "json",
	})
}

// New connects the broker and the store. component labels the metrics.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, component string) (*Runtime, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rt := &Runtime{
		Config:   cfg,
		Logger:   log,
		Registry: reg,
		Metrics:  metrics.NewMetrics(namespace, component, reg),
		Checks:   make(map[string]health.Check),
	}

	if err := rt.connectBroker(); err != nil {
		return nil, err
	}
	if err := rt.openStore(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) connectBroker() error {
	if rt.Config.Redis.URL == "" {
		rt.Logger.Warn("No redis url configured, using an in-process broker")
		b := memory.NewBroker()
		rt.Broker = b
		rt.closers = append(rt.closers, b.Close)
		return nil
	}

	rc := rt.Config.Redis
	b, err := redis.NewRedisBroker(redis.Config{
		URL:          rc.URL,
		MaxRetries:   rc.MaxRetries,
		RetryBackoff: rc.RetryBackoff,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
	}, rt.Logger.Zerolog())
	if err != nil {
		return err
	}
	rt.Broker = b
	rt.closers = append(rt.closers, b.Close)
	if p, ok := b.(interface{ Ping(context.Context) error }); ok {
		rt.Checks["redis"] = p.Ping
	}
	return nil
}

func (rt *Runtime) openStore(ctx context.Context) error {
	if rt.Config.Store.Driver == "memory" {
		mem := store.NewMemory()
		rt.Schedules = mem
		rt.Preferences = mem
		return nil
	}

	db, err := postgres.NewDB(ctx, rt.Config.Database)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, db.Close)
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	rt.Checks["postgres"] = pingDB(db)

	base := postgres.NewBaseRepository(db)
	live := store.NewLive(
		postgres.NewReminderRepository(base),
		postgres.NewPrescriptionRepository(base),
		postgres.NewPreferenceRepository(base),
		rt.Broker,
		rt.Metrics,
		rt.Logger,
		store.LiveConfig{
			CacheTTL:       rt.Config.Store.CacheTTL,
			ResyncInterval: rt.Config.Store.ResyncInterval,
		},
	)
	rt.Schedules = live
	rt.Preferences = live
	return nil
}

func pingDB(db *sqlx.DB) health.Check {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// NewManager builds the per-patient scheduler manager, alerting through the
// configured channel.
func (rt *Runtime) NewManager() *reminder.Manager {
	cfg := rt.Config
	var mailer alert.Mailer
	if cfg.Alert.Channel == "email" {
		smtp := cfg.Alert.SMTP
		mailer = gomail.NewDialer(smtp.Host, smtp.Port, smtp.Username, smtp.Password)
	}

	alertCfg := alert.Config{
		ToastDuration:   cfg.Scheduler.ToastDuration,
		VibrateDuration: cfg.Scheduler.VibrateDuration,
		CallTimeout:     cfg.Alert.CallTimeout,
	}
	schedCfg := reminder.Config{
		PollInterval:   cfg.Scheduler.PollInterval,
		DueTolerance:   cfg.Scheduler.DueTolerance,
		MissedGrace:    cfg.Scheduler.MissedGrace,
		SuppressWindow: cfg.Scheduler.SuppressWindow,
		WriteTimeout:   reminder.DefaultConfig().WriteTimeout,
	}

	factory := func(patientID string) *reminder.Scheduler {
		var platform alert.Platform
		if mailer != nil {
			platform = alert.NewMailPlatform(mailer, cfg.Alert.SMTP.From, rt.Preferences, patientID)
		} else {
			platform = alert.NewBrokerPlatform(rt.Broker, rt.Preferences, patientID)
		}
		log := rt.Logger.WithFields(map[string]interface{}{"patient_id": patientID})
		dispatcher := alert.NewDispatcher(platform, alertCfg, rt.Metrics, log)
		return reminder.NewScheduler(rt.Schedules, dispatcher, schedCfg, rt.Metrics, log)
	}
	return reminder.NewManager(factory, rt.Broker, cfg.Scheduler.Patients, rt.Logger)
}

// RateLimit converts the configured request rate.
func (rt *Runtime) RateLimit() rate.Limit {
	return rate.Limit(rt.Config.RateLimit.RequestsPerSecond)
}

// Close releases connections in reverse order of opening.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.Logger.Error(err, "Failed to close resource")
		}
	}
	rt.closers = nil
}

func (rt *Runtime) String() string {
	return fmt.Sprintf("store=%s alert=%s", rt.Config.Store.Driver, rt.Config.Alert.Channel)
}
