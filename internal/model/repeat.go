package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type RepeatKind string

const (
	RepeatDaily    RepeatKind = "daily"
	RepeatWeekdays RepeatKind = "weekdays"
	RepeatOnce     RepeatKind = "once"
	// RepeatDays is an explicit set of weekdays.
	RepeatDays RepeatKind = "days"
)

// Repeat governs which calendar days a schedule is active on.
//
// On the wire it is either a bare string ("daily", "weekdays", "once") or an
// object: {"days": ["mon", "wed"]} or {"kind": "once", "date": "2025-11-10"}.
// Weekday entries accept names or numbers with Sunday as 0.
type Repeat struct {
	Kind RepeatKind
	Days []time.Weekday
	// Date pins a once-repeat to one local calendar day.
	Date string
}

func Daily() Repeat { return Repeat{Kind: RepeatDaily} }

func Weekdays() Repeat { return Repeat{Kind: RepeatWeekdays} }

func OnDays(days ...time.Weekday) Repeat { return Repeat{Kind: RepeatDays, Days: days} }

func (r Repeat) IsZero() bool {
	return r.Kind == "" && len(r.Days) == 0 && r.Date == ""
}

// OrDaily returns r, or a daily repeat when r is unset.
func (r Repeat) OrDaily() Repeat {
	if r.IsZero() {
		return Daily()
	}
	return r
}

func (r Repeat) Validate() error {
	switch r.Kind {
	case RepeatDaily, RepeatWeekdays:
		return nil
	case RepeatOnce:
		if r.Date == "" {
			return nil
		}
		if _, err := time.Parse(DateLayout, r.Date); err != nil {
			return fmt.Errorf("invalid once date %q", r.Date)
		}
		return nil
	case RepeatDays:
		if len(r.Days) == 0 {
			return fmt.Errorf("weekday set must not be empty")
		}
		for _, d := range r.Days {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("invalid weekday %d", d)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown repeat pattern %q", r.Kind)
	}
}

func (r Repeat) String() string {
	switch r.Kind {
	case RepeatDays:
		names := make([]string, len(r.Days))
		for i, d := range r.Days {
			names[i] = weekdayName(d)
		}
		return strings.Join(names, ",")
	case RepeatOnce:
		if r.Date != "" {
			return "once@" + r.Date
		}
	}
	return string(r.Kind)
}

type repeatObject struct {
	Kind RepeatKind        `json:"kind,omitempty"`
	Days []json.RawMessage `json:"days,omitempty"`
	Date string            `json:"date,omitempty"`
}

func (r Repeat) MarshalJSON() ([]byte, error) {
	switch {
	case r.Kind == RepeatDays:
		days := make([]string, len(r.Days))
		for i, d := range r.Days {
			days[i] = weekdayName(d)
		}
		return json.Marshal(map[string]interface{}{"days": days})
	case r.Kind == RepeatOnce && r.Date != "":
		return json.Marshal(map[string]string{"kind": string(RepeatOnce), "date": r.Date})
	case r.Kind == "":
		return json.Marshal(string(RepeatDaily))
	default:
		return json.Marshal(string(r.Kind))
	}
}

func (r *Repeat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Repeat{}
		return nil
	}

	if data[0] == '"' {
		var kind string
		if err := json.Unmarshal(data, &kind); err != nil {
			return err
		}
		*r = Repeat{Kind: RepeatKind(strings.ToLower(strings.TrimSpace(kind)))}
		return nil
	}

	var obj repeatObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid repeat pattern: %w", err)
	}

	out := Repeat{Kind: obj.Kind, Date: obj.Date}
	// A present "days" key is an explicit set, even an empty one.
	if out.Kind == "" && obj.Days != nil {
		out.Kind = RepeatDays
	}
	for _, raw := range obj.Days {
		d, err := parseWeekday(raw)
		if err != nil {
			return err
		}
		out.Days = append(out.Days, d)
	}
	*r = out
	return nil
}

func (r Repeat) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *Repeat) Scan(src interface{}) error {
	return scanJSON(src, r)
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWeekday accepts "mon", "Monday", "MON" and similar.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) >= 3 {
		if d, ok := weekdayNames[n[:3]]; ok && strings.HasPrefix(strings.ToLower(d.String()), n) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", name)
}

func parseWeekday(raw json.RawMessage) (time.Weekday, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return ParseWeekday(name)
	}
	n, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("invalid weekday %s", raw)
	}
	return time.Weekday(n), nil
}

func weekdayName(d time.Weekday) string {
	return strings.ToLower(d.String()[:3])
}
