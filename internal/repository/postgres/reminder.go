package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/repository"
	"github.com/jwalitptl/medreminder/pkg/errors"
)

const reminderColumns = `
	id, patient_id, title, medicine_name, dosage, times, repeat,
	total_days, enabled, status, linked_prescription_id,
	created_at, updated_at`

type reminderRepository struct {
	*BaseRepository
}

func NewReminderRepository(base *BaseRepository) repository.ReminderRepository {
	return &reminderRepository{BaseRepository: base}
}

func (r *reminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	query := `
		INSERT INTO reminders (` + reminderColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	if reminder.Status == "" {
		reminder.Status = model.ReminderStatusUpcoming
	}
	reminder.CreatedAt = time.Now()
	reminder.UpdatedAt = reminder.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		reminder.ID,
		reminder.PatientID,
		reminder.Title,
		reminder.MedicineName,
		reminder.Dosage,
		reminder.Times,
		reminder.Repeat,
		reminder.TotalDays,
		reminder.Enabled,
		reminder.Status,
		reminder.LinkedPrescriptionID,
		reminder.CreatedAt,
		reminder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

func (r *reminderRepository) Get(ctx context.Context, patientID, id string) (*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1 AND patient_id = $2`

	var reminder model.Reminder
	if err := r.db.GetContext(ctx, &reminder, query, id, patientID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("reminder", err)
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &reminder, nil
}

func (r *reminderRepository) Update(ctx context.Context, reminder *model.Reminder) error {
	query := `
		UPDATE reminders
		SET title = $1, medicine_name = $2, dosage = $3, times = $4, repeat = $5,
			total_days = $6, enabled = $7, linked_prescription_id = $8, updated_at = $9
		WHERE id = $10 AND patient_id = $11
	`
	reminder.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		reminder.Title,
		reminder.MedicineName,
		reminder.Dosage,
		reminder.Times,
		reminder.Repeat,
		reminder.TotalDays,
		reminder.Enabled,
		reminder.LinkedPrescriptionID,
		reminder.UpdatedAt,
		reminder.ID,
		reminder.PatientID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	return expectAffected(result, "reminder")
}

func (r *reminderRepository) UpdateStatus(ctx context.Context, patientID, id string, from, to model.ReminderStatus) error {
	query := `
		UPDATE reminders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND patient_id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, to, time.Now(), id, patientID, from)
	if err != nil {
		return fmt.Errorf("failed to update reminder status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Nothing matched: either the reminder is gone or its status moved on.
	current, err := r.Get(ctx, patientID, id)
	if err != nil {
		return err
	}
	return errors.Conflict(fmt.Sprintf("reminder is %s, not %s", current.Status, from), nil)
}

func (r *reminderRepository) Delete(ctx context.Context, patientID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1 AND patient_id = $2`, id, patientID)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return expectAffected(result, "reminder")
}

func (r *reminderRepository) ListByPatient(ctx context.Context, patientID string) ([]model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE patient_id = $1 ORDER BY created_at ASC`

	var reminders []model.Reminder
	if err := r.db.SelectContext(ctx, &reminders, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}
