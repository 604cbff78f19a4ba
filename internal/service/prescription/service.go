package prescription

import (
	"context"
	"fmt"

	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/reminder"
	"github.com/jwalitptl/medreminder/internal/store"
	"github.com/jwalitptl/medreminder/pkg/errors"
)

type PrescriptionService interface {
	List(ctx context.Context, patientID string) ([]model.Prescription, error)
	Get(ctx context.Context, patientID, id string) (*model.Prescription, error)
	Create(ctx context.Context, patientID string, req *model.PrescriptionRequest) (*model.Prescription, error)
	Update(ctx context.Context, patientID, id string, req *model.PrescriptionRequest) (*model.Prescription, error)
	Delete(ctx context.Context, patientID, id string) error
}

type Service struct {
	store store.ScheduleStore
}

func NewService(st store.ScheduleStore) *Service {
	return &Service{store: st}
}

func (s *Service) List(ctx context.Context, patientID string) ([]model.Prescription, error) {
	prescriptions, err := s.store.ListPrescriptions(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	store.SortPrescriptions(prescriptions)
	return prescriptions, nil
}

func (s *Service) Get(ctx context.Context, patientID, id string) (*model.Prescription, error) {
	p, err := s.store.GetPrescription(ctx, patientID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, patientID string, req *model.PrescriptionRequest) (*model.Prescription, error) {
	p, err := fromRequest(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.CreatePrescription(ctx, patientID, p); err != nil {
		return nil, fmt.Errorf("failed to create prescription: %w", err)
	}
	return p, nil
}

// Update replaces the prescription with the request contents.
func (s *Service) Update(ctx context.Context, patientID, id string, req *model.PrescriptionRequest) (*model.Prescription, error) {
	p, err := fromRequest(req)
	if err != nil {
		return nil, err
	}
	p.ID = id
	if err := s.store.UpdatePrescription(ctx, patientID, p); err != nil {
		return nil, fmt.Errorf("failed to update prescription: %w", err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, patientID, id string) error {
	if err := s.store.DeletePrescription(ctx, patientID, id); err != nil {
		return fmt.Errorf("failed to delete prescription: %w", err)
	}
	return nil
}

func fromRequest(req *model.PrescriptionRequest) (*model.Prescription, error) {
	times, err := reminder.NormalizeTimes(req.Times)
	if err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}
	if len(times) == 0 {
		return nil, errors.BadRequest("at least one time is required", nil)
	}

	p := &model.Prescription{
		Name:      req.Name,
		Dose:      req.Dose,
		Schedule:  model.PrescriptionSchedule{Times: times, Repeat: model.Daily()},
		StartDate: req.StartDate,
		Enabled:   true,
	}
	if req.Repeat != nil {
		p.Schedule.Repeat = req.Repeat.OrDaily()
	}
	if err := p.Schedule.Repeat.Validate(); err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}
	if req.EndDate != nil && *req.EndDate != "" {
		end := *req.EndDate
		if p.StartDate != "" && end < p.StartDate {
			return nil, errors.BadRequest("end_date is before start_date", nil)
		}
		p.EndDate = &end
	}
	if req.Enabled != nil {
		p.Enabled = *req.Enabled
	}
	return p, nil
}
