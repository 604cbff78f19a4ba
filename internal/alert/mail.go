package alert

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/medreminder/pkg/errors"
)

// Mailer sends composed messages. *gomail.Dialer satisfies it.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailPlatform delivers system notifications as email to the address on the
// patient's preference. It has no in-app surface.
type MailPlatform struct {
	mailer    Mailer
	from      string
	prefs     PreferenceSource
	patientID string
}

var _ Platform = (*MailPlatform)(nil)

func NewMailPlatform(mailer Mailer, from string, prefs PreferenceSource, patientID string) *MailPlatform {
	return &MailPlatform{
		mailer:    mailer,
		from:      from,
		prefs:     prefs,
		patientID: patientID,
	}
}

func (p *MailPlatform) recipient(ctx context.Context) (string, error) {
	pref, err := p.prefs.GetPreference(ctx, p.patientID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return pref.Email, nil
}

// RequestPermission is granted when an email address is on file.
func (p *MailPlatform) RequestPermission(ctx context.Context) (bool, error) {
	to, err := p.recipient(ctx)
	if err != nil {
		return false, err
	}
	return to != "", nil
}

func (p *MailPlatform) Show(ctx context.Context, title, body, tag string) error {
	to, err := p.recipient(ctx)
	if err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("no email address for patient %s", p.patientID)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", title)
	m.SetHeader("X-Reminder-Tag", tag)
	m.SetBody("text/plain", body)

	// gomail has no context support; stop waiting when ctx ends.
	sent := make(chan error, 1)
	go func() { sent <- p.mailer.DialAndSend(m) }()

	select {
	case err := <-sent:
		if err != nil {
			return fmt.Errorf("failed to send reminder email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MailPlatform) Toast(context.Context, string, time.Duration) error {
	return ErrUnsupported
}

func (p *MailPlatform) Vibrate(context.Context, time.Duration) error {
	return ErrUnsupported
}
