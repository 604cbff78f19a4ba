package repository

import (
	"context"

	"github.com/jwalitptl/medreminder/internal/model"
)

// All repository interfaces in one file
type (
	// ReminderRepository persists patient reminders. Update never writes status;
	// status only moves through UpdateStatus.
	ReminderRepository interface {
		Create(ctx context.Context, reminder *model.Reminder) error
		Get(ctx context.Context, patientID, id string) (*model.Reminder, error)
		Update(ctx context.Context, reminder *model.Reminder) error
		UpdateStatus(ctx context.Context, patientID, id string, from, to model.ReminderStatus) error
		Delete(ctx context.Context, patientID, id string) error
		ListByPatient(ctx context.Context, patientID string) ([]model.Reminder, error)
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, prescription *model.Prescription) error
		Get(ctx context.Context, patientID, id string) (*model.Prescription, error)
		Update(ctx context.Context, prescription *model.Prescription) error
		Delete(ctx context.Context, patientID, id string) error
		ListByPatient(ctx context.Context, patientID string) ([]model.Prescription, error)
	}

	PreferenceRepository interface {
		Get(ctx context.Context, patientID string) (*model.NotificationPreference, error)
		Upsert(ctx context.Context, pref *model.NotificationPreference) error
	}
)
