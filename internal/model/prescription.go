package model

import (
	"database/sql/driver"
	"time"
)

// PrescriptionSchedule is the dosing times of a prescription, stored as jsonb.
type PrescriptionSchedule struct {
	Times  Times  `json:"times"`
	Repeat Repeat `json:"repeat"`
}

func (s PrescriptionSchedule) Value() (driver.Value, error) {
	if s.Times == nil {
		s.Times = Times{}
	}
	return jsonValue(s)
}

func (s *PrescriptionSchedule) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Prescription is a doctor-authored dosing plan. The scheduler only reads it.
type Prescription struct {
	Base
	Name      string               `db:"name" json:"name"`
	Dose      string               `db:"dose" json:"dose"`
	Schedule  PrescriptionSchedule `db:"schedule" json:"schedule"`
	StartDate string               `db:"start_date" json:"start_date,omitempty"`
	EndDate   *string              `db:"end_date" json:"end_date,omitempty"`
	Enabled   bool                 `db:"enabled" json:"enabled"`
}

// ActiveOn reports whether day (local) falls within the start and end dates.
// Unparseable dates make the prescription inactive.
func (p *Prescription) ActiveOn(day time.Time) bool {
	today := day.Format(DateLayout)
	if p.StartDate != "" {
		if _, err := time.Parse(DateLayout, p.StartDate); err != nil {
			return false
		}
		if today < p.StartDate {
			return false
		}
	}
	if p.EndDate != nil && *p.EndDate != "" {
		if _, err := time.Parse(DateLayout, *p.EndDate); err != nil {
			return false
		}
		if today > *p.EndDate {
			return false
		}
	}
	return true
}

func (p Prescription) Clone() Prescription {
	out := p
	out.Schedule.Times = append(Times(nil), p.Schedule.Times...)
	out.Schedule.Repeat.Days = append(p.Schedule.Repeat.Days[:0:0], p.Schedule.Repeat.Days...)
	if p.EndDate != nil {
		end := *p.EndDate
		out.EndDate = &end
	}
	return out
}

type PrescriptionRequest struct {
	Name      string   `json:"name" binding:"required,max=200"`
	Dose      string   `json:"dose" binding:"required,max=200"`
	Times     []string `json:"times" binding:"required,min=1,dive,clock"`
	Repeat    *Repeat  `json:"repeat"`
	StartDate string   `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   *string  `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Enabled   *bool    `json:"enabled"`
}
