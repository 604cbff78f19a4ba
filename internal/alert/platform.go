// Package alert delivers reminder alerts to a patient through a platform:
// a system notification when the patient allowed it, otherwise an in-app
// toast with a short vibration.
package alert

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/medreminder/internal/model"
)

// ErrUnsupported is returned by platforms that cannot perform an operation.
var ErrUnsupported = errors.New("operation not supported by platform")

type Platform interface {
	RequestPermission(ctx context.Context) (bool, error)
	Show(ctx context.Context, title, body, tag string) error
	Toast(ctx context.Context, message string, duration time.Duration) error
	Vibrate(ctx context.Context, duration time.Duration) error
}

// PreferenceSource looks up a patient's notification preference.
type PreferenceSource interface {
	GetPreference(ctx context.Context, patientID string) (*model.NotificationPreference, error)
}
