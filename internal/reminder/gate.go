package reminder

import (
	"time"
)

// Gate remembers when each occurrence last fired so a due window that spans
// several ticks alerts once. It is owned by a single scheduler goroutine and
// is not safe for concurrent use.
type Gate struct {
	fired map[string]time.Time
}

func NewGate() *Gate {
	return &Gate{fired: make(map[string]time.Time)}
}

// ShouldFire is true when key never fired or last fired more than window ago.
func (g *Gate) ShouldFire(key string, now time.Time, window time.Duration) bool {
	last, ok := g.fired[key]
	if !ok {
		return true
	}
	return now.Sub(last) > window
}

func (g *Gate) RecordFired(key string, now time.Time) {
	g.fired[key] = now
}

// Prune drops records older than maxAge.
func (g *Gate) Prune(now time.Time, maxAge time.Duration) {
	for key, last := range g.fired {
		if now.Sub(last) > maxAge {
			delete(g.fired, key)
		}
	}
}

func (g *Gate) Len() int {
	return len(g.fired)
}
