package reminder

import (
	"sort"
	"time"

	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/store"
)

const virtualPrefix = "pres_"

// Occurrence is one (schedule, time of day) pair for the current day.
type Occurrence struct {
	// Key identifies the occurrence to the dedup gate.
	Key string
	// SourceID is the reminder or prescription id.
	SourceID string
	Title    string
	Time     string
	Clock    Clock
	Status   model.ReminderStatus
	// Virtual occurrences come from prescriptions and are never written back.
	Virtual   bool
	CreatedAt time.Time
	// DatelessOnce marks a once-repeat without a date.
	DatelessOnce bool
}

// Skip reasons reported for malformed schedule data.
const (
	SkipBadTime = "bad_time"
	SkipNoTimes = "no_times"
)

type Skip struct {
	SourceID string
	Time     string
	Reason   string
}

func occurrenceKey(id string, c Clock) string {
	return id + "#" + c.String()
}

// Expand lists the occurrences of snap that are active on day's local date:
// reminders in snapshot order, then prescriptions in snapshot order, each
// schedule's times ascending. Malformed entries are reported in skips and
// otherwise ignored.
func Expand(snap store.Snapshot, day time.Time) (occs []Occurrence, skips []Skip) {
	for _, r := range snap.Reminders {
		if !r.Enabled || !reminderActive(r, day) {
			continue
		}
		clocks, bad := parseTimes(r.ID, r.Times)
		skips = append(skips, bad...)
		repeat := r.Repeat.OrDaily()
		for _, c := range clocks {
			occs = append(occs, Occurrence{
				Key:          occurrenceKey(r.ID, c),
				SourceID:     r.ID,
				Title:        r.Label(),
				Time:         c.String(),
				Clock:        c,
				Status:       r.Status,
				CreatedAt:    r.CreatedAt,
				DatelessOnce: repeat.Kind == model.RepeatOnce && repeat.Date == "",
			})
		}
	}

	for _, p := range snap.Prescriptions {
		if !p.Enabled || !p.ActiveOn(day) || !AppliesOn(p.Schedule.Repeat, day) {
			continue
		}
		clocks, bad := parseTimes(p.ID, p.Schedule.Times)
		skips = append(skips, bad...)
		title := p.Name
		if p.Dose != "" {
			title += " • " + p.Dose
		}
		for _, c := range clocks {
			occs = append(occs, Occurrence{
				Key:       occurrenceKey(virtualPrefix+p.ID, c),
				SourceID:  p.ID,
				Title:     title,
				Time:      c.String(),
				Clock:     c,
				Virtual:   true,
				CreatedAt: p.CreatedAt,
			})
		}
	}
	return occs, skips
}

func reminderActive(r model.Reminder, day time.Time) bool {
	if !AppliesOn(r.Repeat, day) {
		return false
	}
	if !WithinTotalDays(r.CreatedAt, r.TotalDays, day) {
		return false
	}
	// A once reminder is finished when completed.
	if r.Repeat.Kind == model.RepeatOnce && r.Status == model.ReminderStatusCompleted {
		return false
	}
	return true
}

// parseTimes returns the distinct valid clocks of times in ascending order.
func parseTimes(id string, times model.Times) ([]Clock, []Skip) {
	if len(times) == 0 {
		return nil, []Skip{{SourceID: id, Reason: SkipNoTimes}}
	}

	var (
		clocks []Clock
		skips  []Skip
		seen   = make(map[Clock]bool, len(times))
	)
	for _, t := range times {
		c, err := ParseClock(t)
		if err != nil {
			skips = append(skips, Skip{SourceID: id, Time: t, Reason: SkipBadTime})
			continue
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		clocks = append(clocks, c)
	}
	sort.Slice(clocks, func(i, j int) bool {
		if clocks[i].Hour != clocks[j].Hour {
			return clocks[i].Hour < clocks[j].Hour
		}
		return clocks[i].Minute < clocks[j].Minute
	})
	return clocks, skips
}
