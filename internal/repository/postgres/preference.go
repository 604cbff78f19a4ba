package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/repository"
	"github.com/jwalitptl/medreminder/pkg/errors"
)

type preferenceRepository struct {
	*BaseRepository
}

func NewPreferenceRepository(base *BaseRepository) repository.PreferenceRepository {
	return &preferenceRepository{BaseRepository: base}
}

func (r *preferenceRepository) Get(ctx context.Context, patientID string) (*model.NotificationPreference, error) {
	query := `
		SELECT patient_id, push_enabled, email, updated_at
		FROM notification_preferences
		WHERE patient_id = $1
	`
	var pref model.NotificationPreference
	if err := r.db.GetContext(ctx, &pref, query, patientID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("notification preference", err)
		}
		return nil, fmt.Errorf("failed to get notification preference: %w", err)
	}
	return &pref, nil
}

func (r *preferenceRepository) Upsert(ctx context.Context, pref *model.NotificationPreference) error {
	query := `
		INSERT INTO notification_preferences (patient_id, push_enabled, email, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_id) DO UPDATE
		SET push_enabled = EXCLUDED.push_enabled, email = EXCLUDED.email, updated_at = EXCLUDED.updated_at
	`
	pref.UpdatedAt = time.Now()

	if _, err := r.db.ExecContext(ctx, query, pref.PatientID, pref.PushEnabled, pref.Email, pref.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert notification preference: %w", err)
	}
	return nil
}
