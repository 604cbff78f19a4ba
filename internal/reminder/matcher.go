package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jwalitptl/medreminder/internal/model"
)

// Clock is a local wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24-hour). A single-digit hour is accepted.
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 || !digits(hh) || !digits(mm) {
		return Clock{}, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the instant of c on the calendar day of ref, in ref's location.
func (c Clock) On(ref time.Time) time.Time {
	y, mo, d := ref.Date()
	return time.Date(y, mo, d, c.Hour, c.Minute, 0, 0, ref.Location())
}

// IsDueNow reports whether ref lies strictly within tolerance of today's
// instant for entry. An exact match is always due. Unparseable entries are
// never due.
func IsDueNow(entry string, ref time.Time, tolerance time.Duration) bool {
	c, err := ParseClock(entry)
	if err != nil {
		return false
	}
	diff := ref.Sub(c.On(ref))
	if diff < 0 {
		diff = -diff
	}
	return diff == 0 || diff < tolerance
}

// IsMissed reports whether today's instant for entry plus grace is strictly
// before ref. Only upcoming entries can be missed.
func IsMissed(entry string, ref time.Time, grace time.Duration, status model.ReminderStatus) bool {
	if status != model.ReminderStatusUpcoming {
		return false
	}
	c, err := ParseClock(entry)
	if err != nil {
		return false
	}
	return c.On(ref).Add(grace).Before(ref)
}

// AppliesOn reports whether a repeat pattern is active on day's local date.
// A once-repeat without a date applies every day; callers stop evaluating it
// once it is completed.
func AppliesOn(r model.Repeat, day time.Time) bool {
	r = r.OrDaily()
	switch r.Kind {
	case model.RepeatDaily:
		return true
	case model.RepeatWeekdays:
		wd := day.Weekday()
		return wd >= time.Monday && wd <= time.Friday
	case model.RepeatDays:
		wd := day.Weekday()
		for _, d := range r.Days {
			if d == wd {
				return true
			}
		}
		return false
	case model.RepeatOnce:
		if r.Date == "" {
			return true
		}
		return r.Date == day.Format(model.DateLayout)
	default:
		return false
	}
}

// WithinTotalDays reports whether day falls inside a totalDays window that
// starts on the local calendar day of createdAt. A nil or non-positive cap,
// or an unknown creation time, means no limit.
func WithinTotalDays(createdAt time.Time, totalDays *int, day time.Time) bool {
	if totalDays == nil || *totalDays <= 0 || createdAt.IsZero() {
		return true
	}
	return daysBetween(createdAt.In(day.Location()), day) < *totalDays
}

// daysBetween counts local calendar days from a to b, ignoring DST length changes.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// NormalizeTimes parses raw times into canonical "HH:MM" form, dropping
// duplicates while keeping the first occurrence order.
func NormalizeTimes(raw []string) (model.Times, error) {
	out := make(model.Times, 0, len(raw))
	seen := make(map[Clock]bool, len(raw))
	for _, s := range raw {
		c, err := ParseClock(s)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c.String())
	}
	return out, nil
}
