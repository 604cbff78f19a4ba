package notification

import (
	"context"
	"fmt"

	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/store"
	"github.com/jwalitptl/medreminder/pkg/errors"
)

// Service manages how each patient wants to be alerted.
type Service interface {
	GetPreference(ctx context.Context, patientID string) (*model.NotificationPreference, error)
	SavePreference(ctx context.Context, patientID string, req *model.PreferenceRequest) (*model.NotificationPreference, error)
}

type service struct {
	prefs store.PreferenceStore
}

func NewService(prefs store.PreferenceStore) Service {
	return &service{prefs: prefs}
}

// GetPreference returns the stored preference, or an opted-out default.
func (s *service) GetPreference(ctx context.Context, patientID string) (*model.NotificationPreference, error) {
	pref, err := s.prefs.GetPreference(ctx, patientID)
	if errors.Is(err, errors.ErrNotFound) {
		return &model.NotificationPreference{PatientID: patientID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification preference: %w", err)
	}
	return pref, nil
}

func (s *service) SavePreference(ctx context.Context, patientID string, req *model.PreferenceRequest) (*model.NotificationPreference, error) {
	pref, err := s.GetPreference(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if req.PushEnabled != nil {
		pref.PushEnabled = *req.PushEnabled
	}
	if req.Email != nil {
		pref.Email = *req.Email
	}
	pref.PatientID = patientID

	if err := s.prefs.SavePreference(ctx, pref); err != nil {
		return nil, fmt.Errorf("failed to save notification preference: %w", err)
	}
	return pref, nil
}
