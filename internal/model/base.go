package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Base contains common fields for stored records
type Base struct {
	ID        string    `json:"id" db:"id"`
	PatientID string    `json:"patient_id" db:"patient_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DateLayout is the calendar date format used by prescriptions and once-repeats.
const DateLayout = "2006-01-02"

// Times is an ordered set of "HH:MM" local wall-clock strings, stored as jsonb.
type Times []string

func (t Times) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

func (t *Times) Scan(src interface{}) error {
	return scanJSON(src, (*[]string)(t))
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported scan type %T", src)
	}
}

func jsonValue(v interface{}) (driver.Value, error) {
	return json.Marshal(v)
}
