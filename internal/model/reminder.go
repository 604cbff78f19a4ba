package model

type ReminderStatus string

const (
	ReminderStatusUpcoming  ReminderStatus = "upcoming"
	ReminderStatusMissed    ReminderStatus = "missed"
	ReminderStatusCompleted ReminderStatus = "completed"
)

func (s ReminderStatus) Valid() bool {
	switch s {
	case ReminderStatusUpcoming, ReminderStatusMissed, ReminderStatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether a reminder may move from one status to another.
// Automatic transitions are those made by the scheduler rather than the user.
func CanTransition(from, to ReminderStatus, automatic bool) bool {
	if automatic {
		return from == ReminderStatusUpcoming && to == ReminderStatusMissed
	}
	switch to {
	case ReminderStatusCompleted:
		return from == ReminderStatusUpcoming || from == ReminderStatusMissed
	case ReminderStatusUpcoming:
		return from == ReminderStatusMissed || from == ReminderStatusCompleted
	}
	return false
}

// Reminder is a user-authored medication cue.
type Reminder struct {
	Base
	Title                string         `db:"title" json:"title"`
	MedicineName         string         `db:"medicine_name" json:"medicine_name,omitempty"`
	Dosage               string         `db:"dosage" json:"dosage,omitempty"`
	Times                Times          `db:"times" json:"times"`
	Repeat               Repeat         `db:"repeat" json:"repeat"`
	TotalDays            *int           `db:"total_days" json:"total_days,omitempty"`
	Enabled              bool           `db:"enabled" json:"enabled"`
	Status               ReminderStatus `db:"status" json:"status"`
	LinkedPrescriptionID *string        `db:"linked_prescription_id" json:"linked_prescription_id,omitempty"`
}

// Label is the display name of the reminder.
func (r *Reminder) Label() string {
	if r.Title != "" {
		return r.Title
	}
	return r.MedicineName
}

// ReminderUpdate is a partial write; nil fields are left untouched.
type ReminderUpdate struct {
	Title                *string         `json:"title,omitempty"`
	MedicineName         *string         `json:"medicine_name,omitempty"`
	Dosage               *string         `json:"dosage,omitempty"`
	Times                *Times          `json:"times,omitempty"`
	Repeat               *Repeat         `json:"repeat,omitempty"`
	TotalDays            *int            `json:"total_days,omitempty"`
	Enabled              *bool           `json:"enabled,omitempty"`
	Status               *ReminderStatus `json:"status,omitempty"`
	LinkedPrescriptionID *string         `json:"linked_prescription_id,omitempty"`
}

func (u ReminderUpdate) IsEmpty() bool {
	return u == ReminderUpdate{}
}

// Apply copies the set fields of u onto r.
func (u ReminderUpdate) Apply(r *Reminder) {
	if u.Title != nil {
		r.Title = *u.Title
	}
	if u.MedicineName != nil {
		r.MedicineName = *u.MedicineName
	}
	if u.Dosage != nil {
		r.Dosage = *u.Dosage
	}
	if u.Times != nil {
		r.Times = append(Times(nil), (*u.Times)...)
	}
	if u.Repeat != nil {
		r.Repeat = *u.Repeat
	}
	if u.TotalDays != nil {
		days := *u.TotalDays
		if days <= 0 {
			r.TotalDays = nil
		} else {
			r.TotalDays = &days
		}
	}
	if u.Enabled != nil {
		r.Enabled = *u.Enabled
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.LinkedPrescriptionID != nil {
		if *u.LinkedPrescriptionID == "" {
			r.LinkedPrescriptionID = nil
		} else {
			id := *u.LinkedPrescriptionID
			r.LinkedPrescriptionID = &id
		}
	}
}

// Clone returns a deep copy.
func (r Reminder) Clone() Reminder {
	out := r
	out.Times = append(Times(nil), r.Times...)
	out.Repeat.Days = append(r.Repeat.Days[:0:0], r.Repeat.Days...)
	if r.TotalDays != nil {
		d := *r.TotalDays
		out.TotalDays = &d
	}
	if r.LinkedPrescriptionID != nil {
		id := *r.LinkedPrescriptionID
		out.LinkedPrescriptionID = &id
	}
	return out
}

type CreateReminderRequest struct {
	Title                string   `json:"title" binding:"required,max=200"`
	MedicineName         string   `json:"medicine_name" binding:"max=200"`
	Dosage               string   `json:"dosage" binding:"max=200"`
	Times                []string `json:"times" binding:"required,min=1,dive,clock"`
	Repeat               *Repeat  `json:"repeat"`
	TotalDays            *int     `json:"total_days" binding:"omitempty,min=1"`
	Enabled              *bool    `json:"enabled"`
	LinkedPrescriptionID *string  `json:"linked_prescription_id"`
}

type UpdateReminderRequest struct {
	Title        *string   `json:"title" binding:"omitempty,min=1,max=200"`
	MedicineName *string   `json:"medicine_name" binding:"omitempty,max=200"`
	Dosage       *string   `json:"dosage" binding:"omitempty,max=200"`
	Times        *[]string `json:"times" binding:"omitempty,min=1,dive,clock"`
	Repeat       *Repeat   `json:"repeat"`
	TotalDays    *int      `json:"total_days" binding:"omitempty,min=0"`
	Enabled      *bool     `json:"enabled"`
}
