package alert

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jwalitptl/medreminder/pkg/logger"
	"github.com/jwalitptl/medreminder/pkg/metrics"
)

const (
	permissionUnknown int32 = iota
	permissionRequesting
	permissionGranted
	permissionDenied
)

type Config struct {
	ToastDuration   time.Duration
	VibrateDuration time.Duration
	// CallTimeout bounds each platform call.
	CallTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ToastDuration:   5400 * time.Millisecond,
		VibrateDuration: 200 * time.Millisecond,
		CallTimeout:     5 * time.Second,
	}
}

// Dispatcher sends alerts for one patient. Permission is requested once, in
// the background, the first time an alert is sent; until it is granted
// alerts fall back to a toast and a vibration.
type Dispatcher struct {
	platform Platform
	cfg      Config
	metrics  *metrics.Metrics
	logger   *logger.Logger

	permission atomic.Int32
	settled    chan struct{}
}

func NewDispatcher(platform Platform, cfg Config, m *metrics.Metrics, log *logger.Logger) *Dispatcher {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	if m == nil {
		m = metrics.New("medreminder")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		platform: platform,
		cfg:      cfg,
		metrics:  m,
		logger:   log,
		settled:  make(chan struct{}),
	}
}

// Settled is closed once the permission request has completed.
func (d *Dispatcher) Settled() <-chan struct{} {
	return d.settled
}

// Notify never panics. It waits on a pending permission request only when
// the platform has no in-app surface to fall back to, bounded by the call
// timeout.
func (d *Dispatcher) Notify(ctx context.Context, title, body, tag string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(fmt.Errorf("panic: %v", r), "Alert platform panicked", "tag", tag)
		}
	}()

	if d.permission.CompareAndSwap(permissionUnknown, permissionRequesting) {
		go d.requestPermission()
	}

	shown := false
	if d.permission.Load() == permissionGranted {
		shown = true
		if d.show(ctx, title, body, tag) {
			return
		}
	}

	err := d.fallback(ctx, title+" · "+body, tag)
	if !errors.Is(err, ErrUnsupported) {
		return
	}
	if !shown && d.awaitPermission(ctx) == permissionGranted && d.show(ctx, title, body, tag) {
		return
	}
	d.logger.Debug("Alert not delivered, platform has no in-app surface", "tag", tag)
}

func (d *Dispatcher) show(ctx context.Context, title, body, tag string) bool {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
	defer cancel()

	if err := d.platform.Show(callCtx, title, body, tag); err != nil {
		d.logger.Error(err, "System notification failed, falling back to toast", "tag", tag)
		return false
	}
	d.metrics.AlertsDispatched.WithLabelValues("system").Inc()
	return true
}

// fallback returns the toast error; ErrUnsupported means nothing was shown.
func (d *Dispatcher) fallback(ctx context.Context, message, tag string) error {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
	defer cancel()

	err := d.platform.Toast(callCtx, message, d.cfg.ToastDuration)
	switch {
	case err == nil:
		d.metrics.AlertsDispatched.WithLabelValues("toast").Inc()
	case errors.Is(err, ErrUnsupported):
		return err
	default:
		d.logger.Error(err, "Toast failed", "tag", tag)
	}

	if d.cfg.VibrateDuration > 0 {
		if verr := d.platform.Vibrate(callCtx, d.cfg.VibrateDuration); verr != nil && !errors.Is(verr, ErrUnsupported) {
			d.logger.Error(verr, "Vibrate failed", "tag", tag)
		}
	}
	return err
}

func (d *Dispatcher) awaitPermission(ctx context.Context) int32 {
	timer := time.NewTimer(d.cfg.CallTimeout)
	defer timer.Stop()

	select {
	case <-d.settled:
	case <-timer.C:
	case <-ctx.Done():
	}
	return d.permission.Load()
}

func (d *Dispatcher) requestPermission() {
	defer close(d.settled)
	defer func() {
		if r := recover(); r != nil {
			d.permission.Store(permissionDenied)
			d.logger.Error(fmt.Errorf("panic: %v", r), "Permission request panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.CallTimeout)
	defer cancel()

	granted, err := d.platform.RequestPermission(ctx)
	if err != nil {
		d.logger.Error(err, "Notification permission request failed")
	}
	if granted && err == nil {
		d.permission.Store(permissionGranted)
		return
	}
	d.permission.Store(permissionDenied)
}
