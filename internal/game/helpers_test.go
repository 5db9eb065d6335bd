package game

import (
	"testing"
	"time"

	"survivor-arena/internal/config"
)

// fakeClock is a manually advanced clock for manual-tick engines.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T, cfg config.AppConfig) (*Engine, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	e := NewEngine(cfg, WithClock(clk.Now), WithSeed(42), WithManualTicks())
	t.Cleanup(e.Close)
	return e, clk
}

func newTestPlayer(id string, x, y float64) *Player {
	return &Player{
		ID:                id,
		Name:              id,
		X:                 x,
		Y:                 y,
		HP:                5,
		MaxHP:             5,
		Level:             1,
		DamageMultiplier:  1,
		CooldownReduction: 1,
		SpeedMultiplier:   1,
		BulletsPerShot:    1,
	}
}

func countEvents(events []Event, t EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func findEvents(events []Event, t EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
