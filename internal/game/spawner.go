package game

import (
	"math"
	"math/rand"
	"time"

	"survivor-arena/internal/config"
)

// Placement is the closed set of spawn placement patterns.
type Placement uint8

const (
	PlaceRandomEdge Placement = iota // Random point just outside a random border
	PlaceQuadrant                    // Random point in the quadrant opposite the anchor
	PlaceSurround                    // Fixed radius around the anchor
)

// String returns the wire name of the pattern.
func (p Placement) String() string {
	switch p {
	case PlaceRandomEdge:
		return "randomEdge"
	case PlaceQuadrant:
		return "quadrant"
	case PlaceSurround:
		return "surround"
	default:
		return "unknown"
	}
}

// MarshalText lets the pattern appear by name in JSON and MessagePack.
func (p Placement) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// RandomEdgePoint picks a random border side and a point offset just past it.
func RandomEdgePoint(world config.WorldConfig, rng *rand.Rand) (x, y float64) {
	switch rng.Intn(4) {
	case 0: // top
		return rng.Float64() * world.Width, -world.BorderOffset
	case 1: // right
		return world.Width + world.BorderOffset, rng.Float64() * world.Height
	case 2: // bottom
		return rng.Float64() * world.Width, world.Height + world.BorderOffset
	default: // left
		return -world.BorderOffset, rng.Float64() * world.Height
	}
}

// QuadrantPoint picks a random point in the quadrant diagonally opposite
// the anchor.
func QuadrantPoint(world config.WorldConfig, anchorX, anchorY float64, rng *rand.Rand) (x, y float64) {
	halfW, halfH := world.Width/2, world.Height/2

	x = rng.Float64() * halfW
	if anchorX < halfW {
		x += halfW
	}
	y = rng.Float64() * halfH
	if anchorY < halfH {
		y += halfH
	}
	return x, y
}

// SurroundPoint picks a random angle and places the point radius units from
// the anchor, clamped to the world.
func SurroundPoint(world config.WorldConfig, anchorX, anchorY, radius float64, rng *rand.Rand) (x, y float64) {
	angle := rng.Float64() * 2 * math.Pi
	x = math.Max(0, math.Min(world.Width, anchorX+math.Cos(angle)*radius))
	y = math.Max(0, math.Min(world.Height, anchorY+math.Sin(angle)*radius))
	return x, y
}

// Spawner turns a composition plan into a timed schedule and materializes
// due entries into the world.
type Spawner struct {
	world      config.WorldConfig
	waves      config.WaveConfig
	enemies    config.EnemyConfig
	maxEnemies int
	rng        *rand.Rand
}

// NewSpawner creates a spawner. rng is owned by the caller's serialization point.
func NewSpawner(cfg config.AppConfig, rng *rand.Rand) *Spawner {
	return &Spawner{
		world:      cfg.World,
		waves:      cfg.Waves,
		enemies:    cfg.Enemies,
		maxEnemies: cfg.Limits.MaxEnemies,
		rng:        rng,
	}
}

// interleave emits one of each remaining type per round, in spawnOrder.
func interleave(plan map[EnemyType]int, heavy bool) []EnemyType {
	left := make(map[EnemyType]int, len(plan))
	total := 0
	for _, t := range spawnOrder {
		if t.Heavy() == heavy && plan[t] > 0 {
			left[t] = plan[t]
			total += plan[t]
		}
	}

	out := make([]EnemyType, 0, total)
	for len(out) < total {
		for _, t := range spawnOrder {
			if left[t] > 0 {
				out = append(out, t)
				left[t]--
			}
		}
	}
	return out
}

// BuildSchedule lays the plan out in time starting at start.
//
// Regular enemies are interleaved across types and released in groups of
// GroupSize, SpawnDelay apart with an extra GroupDelay between groups; even
// groups come from the border, odd groups from the far quadrant. Heavy
// enemies follow BossLeadTime after the last regular one and surround the
// anchor player. The result is ordered by FireAt.
func (s *Spawner) BuildSchedule(plan map[EnemyType]int, start time.Time) []SpawnEntry {
	regular := interleave(plan, false)
	heavy := interleave(plan, true)
	schedule := make([]SpawnEntry, 0, len(regular)+len(heavy))

	groupSize := max(s.waves.GroupSize, 1)
	last := start
	for i, t := range regular {
		group := i / groupSize
		last = start.
			Add(time.Duration(i) * s.waves.SpawnDelay).
			Add(time.Duration(group) * s.waves.GroupDelay)

		placement := PlaceRandomEdge
		if group%2 == 1 {
			placement = PlaceQuadrant
		}
		schedule = append(schedule, SpawnEntry{Type: t, FireAt: last, Placement: placement})
	}

	at := last.Add(s.waves.BossLeadTime)
	for _, t := range heavy {
		schedule = append(schedule, SpawnEntry{Type: t, FireAt: at, Placement: PlaceSurround})
		at = at.Add(s.waves.SpawnDelay)
	}
	return schedule
}

// anchor returns the live player nearest the world centre, or the centre
// itself when nobody is alive.
func (s *Spawner) anchor(w *World) (x, y float64) {
	cx, cy := s.world.Width/2, s.world.Height/2
	x, y = cx, cy
	best := math.Inf(1)
	w.EachPlayer(func(p *Player) bool {
		if !p.Alive() {
			return true
		}
		if d := distance(cx, cy, p.X, p.Y); d < best {
			best, x, y = d, p.X, p.Y
		}
		return true
	})
	return x, y
}

func (s *Spawner) place(p Placement, anchorX, anchorY float64) (x, y float64) {
	switch p {
	case PlaceQuadrant:
		return QuadrantPoint(s.world, anchorX, anchorY, s.rng)
	case PlaceSurround:
		return SurroundPoint(s.world, anchorX, anchorY, s.waves.SurroundRadius, s.rng)
	default:
		return RandomEdgePoint(s.world, s.rng)
	}
}

// NewEnemy builds an enemy of type t for wave n at (x, y), with hp scaled
// by HPScalingPerWave for every wave after the first.
func (s *Spawner) NewEnemy(id string, t EnemyType, n int, x, y float64) *Enemy {
	stats, ok := s.enemies[string(t)]
	if !ok {
		stats = s.enemies[string(EnemyBasic)]
	}
	scale := 1 + float64(max(n-1, 0))*s.waves.HPScalingPerWave
	return &Enemy{
		ID:      id,
		X:       x,
		Y:       y,
		Type:    t,
		HP:      stats.HP * scale,
		Speed:   stats.Speed,
		Points:  stats.Points,
		XPValue: stats.XPValue,
	}
}

// SpawnDue materializes every schedule entry whose fire time has passed,
// as long as the enemy cap allows. Entries held back by the cap stay at the
// head of the schedule and are retried next tick.
func (s *Spawner) SpawnDue(now time.Time, w *World) []Event {
	rec := &w.Wave
	if rec.State != WaveSpawning || len(rec.Schedule) == 0 {
		return nil
	}

	var events []Event
	ax, ay := s.anchor(w)

	n := 0
	for n < len(rec.Schedule) {
		entry := rec.Schedule[n]
		if entry.FireAt.After(now) || rec.TotalSpawned >= rec.TotalPlanned {
			break
		}
		if s.maxEnemies > 0 && w.EnemyCount() >= s.maxEnemies {
			break
		}

		x, y := s.place(entry.Placement, ax, ay)
		enemy := s.NewEnemy(w.NextID("enemy"), entry.Type, rec.Number, x, y)
		w.AddEnemy(enemy)
		rec.TotalSpawned++
		n++

		events = append(events, broadcast(EventEnemySpawned, *enemy))
	}

	rec.Schedule = rec.Schedule[n:]
	if rec.TotalSpawned >= rec.TotalPlanned {
		rec.Schedule = nil
	}
	return events
}
