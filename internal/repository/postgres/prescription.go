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

const prescriptionColumns = `
	id, patient_id, name, dose, schedule, start_date, end_date,
	enabled, created_at, updated_at`

type prescriptionRepository struct {
	*BaseRepository
}

func NewPrescriptionRepository(base *BaseRepository) repository.PrescriptionRepository {
	return &prescriptionRepository{BaseRepository: base}
}

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (` + prescriptionColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.PatientID,
		p.Name,
		p.Dose,
		p.Schedule,
		p.StartDate,
		p.EndDate,
		p.Enabled,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, patientID, id string) (*model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE id = $1 AND patient_id = $2`

	var p model.Prescription
	if err := r.db.GetContext(ctx, &p, query, id, patientID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("prescription", err)
		}
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	return &p, nil
}

func (r *prescriptionRepository) Update(ctx context.Context, p *model.Prescription) error {
	query := `
		UPDATE prescriptions
		SET name = $1, dose = $2, schedule = $3, start_date = $4, end_date = $5,
			enabled = $6, updated_at = $7
		WHERE id = $8 AND patient_id = $9
	`
	p.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		p.Name,
		p.Dose,
		p.Schedule,
		p.StartDate,
		p.EndDate,
		p.Enabled,
		p.UpdatedAt,
		p.ID,
		p.PatientID,
	)
	if err != nil {
		return fmt.Errorf("failed to update prescription: %w", err)
	}
	return expectAffected(result, "prescription")
}

func (r *prescriptionRepository) Delete(ctx context.Context, patientID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = $1 AND patient_id = $2`, id, patientID)
	if err != nil {
		return fmt.Errorf("failed to delete prescription: %w", err)
	}
	return expectAffected(result, "prescription")
}

func (r *prescriptionRepository) ListByPatient(ctx context.Context, patientID string) ([]model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE patient_id = $1 ORDER BY created_at ASC`

	var prescriptions []model.Prescription
	if err := r.db.SelectContext(ctx, &prescriptions, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}
