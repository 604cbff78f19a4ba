package model

import (
	"time"
)

// NotificationPreference records how a patient agreed to be alerted.
type NotificationPreference struct {
	PatientID   string    `db:"patient_id" json:"patient_id"`
	PushEnabled bool      `db:"push_enabled" json:"push_enabled"`
	Email       string    `db:"email" json:"email,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type NotificationKind string

const (
	NotificationKindSystem      NotificationKind = "notification"
	NotificationKindToast       NotificationKind = "toast"
	NotificationKindVibrate     NotificationKind = "vibrate"
	NotificationKindPermRequest NotificationKind = "permission_request"
)

// NotificationEvent is what connected clients receive on a patient's alert channel.
type NotificationEvent struct {
	Kind       NotificationKind `json:"kind"`
	PatientID  string           `json:"patient_id"`
	Title      string           `json:"title,omitempty"`
	Body       string           `json:"body,omitempty"`
	Tag        string           `json:"tag,omitempty"`
	DurationMs int64            `json:"duration_ms,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

type PreferenceRequest struct {
	PushEnabled *bool   `json:"push_enabled"`
	Email       *string `json:"email" binding:"omitempty,email"`
}
