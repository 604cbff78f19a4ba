package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/pkg/errors"
	"github.com/jwalitptl/medreminder/pkg/messaging"
)

// AlertChannel is the broker channel a patient's connected clients listen on.
func AlertChannel(patientID string) string {
	return "alerts." + patientID
}

// BrokerPlatform publishes alerts as events for the patient's connected
// clients, which render them. Permission is the patient's push preference.
type BrokerPlatform struct {
	broker    messaging.Broker
	prefs     PreferenceSource
	patientID string
	now       func() time.Time
}

var _ Platform = (*BrokerPlatform)(nil)

func NewBrokerPlatform(broker messaging.Broker, prefs PreferenceSource, patientID string) *BrokerPlatform {
	return &BrokerPlatform{
		broker:    broker,
		prefs:     prefs,
		patientID: patientID,
		now:       time.Now,
	}
}

func (p *BrokerPlatform) publish(ctx context.Context, event model.NotificationEvent) error {
	event.PatientID = p.patientID
	event.CreatedAt = p.now()
	if err := p.broker.Publish(ctx, AlertChannel(p.patientID), event); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Kind, err)
	}
	return nil
}

// RequestPermission reads the push preference. When push is not enabled the
// clients are asked to prompt the patient.
func (p *BrokerPlatform) RequestPermission(ctx context.Context) (bool, error) {
	pref, err := p.prefs.GetPreference(ctx, p.patientID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return false, err
	}
	if pref != nil && pref.PushEnabled {
		return true, nil
	}
	return false, p.publish(ctx, model.NotificationEvent{Kind: model.NotificationKindPermRequest})
}

func (p *BrokerPlatform) Show(ctx context.Context, title, body, tag string) error {
	return p.publish(ctx, model.NotificationEvent{
		Kind:  model.NotificationKindSystem,
		Title: title,
		Body:  body,
		Tag:   tag,
	})
}

func (p *BrokerPlatform) Toast(ctx context.Context, message string, duration time.Duration) error {
	return p.publish(ctx, model.NotificationEvent{
		Kind:       model.NotificationKindToast,
		Body:       message,
		DurationMs: duration.Milliseconds(),
	})
}

func (p *BrokerPlatform) Vibrate(ctx context.Context, duration time.Duration) error {
	return p.publish(ctx, model.NotificationEvent{
		Kind:       model.NotificationKindVibrate,
		DurationMs: duration.Milliseconds(),
	})
}
