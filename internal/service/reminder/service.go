package reminder

import (
	"context"
	"fmt"

	"github.com/jwalitptl/medreminder/internal/model"
	schedule "github.com/jwalitptl/medreminder/internal/reminder"
	"github.com/jwalitptl/medreminder/internal/store"
	"github.com/jwalitptl/medreminder/pkg/errors"
	"github.com/jwalitptl/medreminder/pkg/logger"
)

type ReminderService interface {
	List(ctx context.Context, patientID string) ([]model.Reminder, error)
	Get(ctx context.Context, patientID, id string) (*model.Reminder, error)
	Create(ctx context.Context, patientID string, req *model.CreateReminderRequest) (*model.Reminder, error)
	Update(ctx context.Context, patientID, id string, req *model.UpdateReminderRequest) (*model.Reminder, error)
	Toggle(ctx context.Context, patientID, id string) (*model.Reminder, error)
	SetStatus(ctx context.Context, patientID, id string, to model.ReminderStatus) (*model.Reminder, error)
	Delete(ctx context.Context, patientID, id string) error
	LinkedPrescription(ctx context.Context, patientID, id string) (*model.Prescription, error)
}

type Service struct {
	store  store.ScheduleStore
	logger *logger.Logger
}

func NewService(st store.ScheduleStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: st, logger: log}
}

func (s *Service) List(ctx context.Context, patientID string) ([]model.Reminder, error) {
	reminders, err := s.store.ListReminders(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	store.SortReminders(reminders)
	return reminders, nil
}

func (s *Service) Get(ctx context.Context, patientID, id string) (*model.Reminder, error) {
	r, err := s.store.GetReminder(ctx, patientID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

func (s *Service) Create(ctx context.Context, patientID string, req *model.CreateReminderRequest) (*model.Reminder, error) {
	times, err := schedule.NormalizeTimes(req.Times)
	if err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}
	if len(times) == 0 {
		return nil, errors.BadRequest("at least one time is required", nil)
	}

	r := &model.Reminder{
		Title:        req.Title,
		MedicineName: req.MedicineName,
		Dosage:       req.Dosage,
		Times:        times,
		Repeat:       model.Daily(),
		Enabled:      true,
		Status:       model.ReminderStatusUpcoming,
	}
	if req.Repeat != nil {
		r.Repeat = req.Repeat.OrDaily()
	}
	if err := r.Repeat.Validate(); err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}
	if req.TotalDays != nil && *req.TotalDays > 0 {
		days := *req.TotalDays
		r.TotalDays = &days
	}
	if req.Enabled != nil {
		r.Enabled = *req.Enabled
	}
	if req.LinkedPrescriptionID != nil && *req.LinkedPrescriptionID != "" {
		if _, err := s.store.GetPrescription(ctx, patientID, *req.LinkedPrescriptionID); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return nil, errors.BadRequest("linked prescription does not exist", err)
			}
			return nil, fmt.Errorf("failed to check linked prescription: %w", err)
		}
		id := *req.LinkedPrescriptionID
		r.LinkedPrescriptionID = &id
	}

	if _, err := s.store.CreateReminder(ctx, patientID, r); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}
	return r, nil
}

func (s *Service) Update(ctx context.Context, patientID, id string, req *model.UpdateReminderRequest) (*model.Reminder, error) {
	u := model.ReminderUpdate{
		Title:        req.Title,
		MedicineName: req.MedicineName,
		Dosage:       req.Dosage,
		TotalDays:    req.TotalDays,
		Enabled:      req.Enabled,
	}
	if req.Times != nil {
		times, err := schedule.NormalizeTimes(*req.Times)
		if err != nil {
			return nil, errors.BadRequest(err.Error(), err)
		}
		if len(times) == 0 {
			return nil, errors.BadRequest("at least one time is required", nil)
		}
		u.Times = &times
	}
	if req.Repeat != nil {
		repeat := req.Repeat.OrDaily()
		if err := repeat.Validate(); err != nil {
			return nil, errors.BadRequest(err.Error(), err)
		}
		u.Repeat = &repeat
	}
	if u.IsEmpty() {
		return nil, errors.BadRequest("nothing to update", nil)
	}

	if err := s.store.UpdateReminderFields(ctx, patientID, id, u); err != nil {
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}
	return s.Get(ctx, patientID, id)
}

func (s *Service) Toggle(ctx context.Context, patientID, id string) (*model.Reminder, error) {
	r, err := s.Get(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	enabled := !r.Enabled
	if err := s.store.UpdateReminderFields(ctx, patientID, id, model.ReminderUpdate{Enabled: &enabled}); err != nil {
		return nil, fmt.Errorf("failed to toggle reminder: %w", err)
	}
	r.Enabled = enabled
	return r, nil
}

// SetStatus applies a user status action. The write only lands if the status
// is still the one that was read, so it never clobbers a concurrent change.
func (s *Service) SetStatus(ctx context.Context, patientID, id string, to model.ReminderStatus) (*model.Reminder, error) {
	r, err := s.Get(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if r.Status == to {
		return r, nil
	}
	if !model.CanTransition(r.Status, to, false) {
		return nil, errors.Conflict(fmt.Sprintf("reminder cannot move from %s to %s", r.Status, to), nil)
	}
	if err := s.store.TransitionReminder(ctx, patientID, id, r.Status, to); err != nil {
		return nil, fmt.Errorf("failed to update reminder status: %w", err)
	}

	s.logger.Debug("Reminder status changed", "patient_id", patientID, "reminder_id", id, "from", r.Status, "to", to)
	r.Status = to
	return r, nil
}

func (s *Service) Delete(ctx context.Context, patientID, id string) error {
	if err := s.store.DeleteReminder(ctx, patientID, id); err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return nil
}

func (s *Service) LinkedPrescription(ctx context.Context, patientID, id string) (*model.Prescription, error) {
	r, err := s.Get(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if r.LinkedPrescriptionID == nil {
		return nil, errors.NotFound("linked prescription", nil)
	}
	p, err := s.store.GetPrescription(ctx, patientID, *r.LinkedPrescriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get linked prescription: %w", err)
	}
	return p, nil
}
