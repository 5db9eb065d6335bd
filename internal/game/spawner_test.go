package game

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"survivor-arena/internal/config"
)

func TestBuildScheduleInterleavesTypes(t *testing.T) {
	cfg := config.Default()
	sp := NewSpawner(cfg, rand.New(rand.NewSource(1)))
	start := time.Unix(0, 0)

	schedule := sp.BuildSchedule(map[EnemyType]int{EnemyBasic: 3, EnemyFast: 3}, start)

	want := []EnemyType{EnemyBasic, EnemyFast, EnemyBasic, EnemyFast, EnemyBasic, EnemyFast}
	if len(schedule) != len(want) {
		t.Fatalf("schedule has %d entries, want %d", len(schedule), len(want))
	}
	for i, entry := range schedule {
		if entry.Type != want[i] {
			t.Errorf("entry %d type = %s, want %s", i, entry.Type, want[i])
		}
	}
}

func TestBuildScheduleTiming(t *testing.T) {
	cfg := config.Default()
	wc := cfg.Waves
	sp := NewSpawner(cfg, rand.New(rand.NewSource(1)))
	start := time.Unix(0, 0)

	schedule := sp.BuildSchedule(map[EnemyType]int{EnemyBasic: 6, EnemyBoss: 1, EnemyElite: 1}, start)
	if len(schedule) != 8 {
		t.Fatalf("schedule has %d entries, want 8", len(schedule))
	}

	// Regular entries: group 0 is 0..3, group 1 is 4..5
	for i := 0; i < 6; i++ {
		group := i / wc.GroupSize
		want := start.Add(time.Duration(i)*wc.SpawnDelay + time.Duration(group)*wc.GroupDelay)
		if !schedule[i].FireAt.Equal(want) {
			t.Errorf("entry %d fires at %v, want %v", i, schedule[i].FireAt.Sub(start), want.Sub(start))
		}
		wantPlacement := PlaceRandomEdge
		if group == 1 {
			wantPlacement = PlaceQuadrant
		}
		if schedule[i].Placement != wantPlacement {
			t.Errorf("entry %d placement = %v, want %v", i, schedule[i].Placement, wantPlacement)
		}
	}

	// Heavy entries come last, after the lead time, surrounding the anchor
	lastRegular := schedule[5].FireAt
	for i, entry := range schedule[6:] {
		if !entry.Type.Heavy() {
			t.Errorf("entry %d is %s, want a heavy type", 6+i, entry.Type)
		}
		if entry.Placement != PlaceSurround {
			t.Errorf("heavy entry placement = %v, want surround", entry.Placement)
		}
		want := lastRegular.Add(wc.BossLeadTime + time.Duration(i)*wc.SpawnDelay)
		if !entry.FireAt.Equal(want) {
			t.Errorf("heavy entry %d fires at %v, want %v", i, entry.FireAt.Sub(start), want.Sub(start))
		}
	}

	for i := 1; i < len(schedule); i++ {
		if schedule[i].FireAt.Before(schedule[i-1].FireAt) {
			t.Fatalf("schedule not ordered at %d", i)
		}
	}
}

func TestPlacementPatterns(t *testing.T) {
	world := config.DefaultWorld()
	rng := rand.New(rand.NewSource(7))

	t.Run("random edge sits on the border margin", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			x, y := RandomEdgePoint(world, rng)
			onEdge := x == -world.BorderOffset || x == world.Width+world.BorderOffset ||
				y == -world.BorderOffset || y == world.Height+world.BorderOffset
			if !onEdge {
				t.Fatalf("(%.1f, %.1f) is not on the border margin", x, y)
			}
		}
	})

	t.Run("quadrant is opposite the anchor", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			x, y := QuadrantPoint(world, 100, 100, rng)
			if x < world.Width/2 || y < world.Height/2 {
				t.Fatalf("(%.1f, %.1f) not in the bottom-right quadrant", x, y)
			}
			x, y = QuadrantPoint(world, 1500, 1100, rng)
			if x >= world.Width/2 || y >= world.Height/2 {
				t.Fatalf("(%.1f, %.1f) not in the top-left quadrant", x, y)
			}
		}
	})

	t.Run("surround keeps the radius", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			x, y := SurroundPoint(world, 800, 600, 300, rng)
			if d := distance(800, 600, x, y); math.Abs(d-300) > 1e-9 {
				t.Fatalf("surround point at distance %.3f, want 300", d)
			}
		}
	})

	t.Run("surround clamps to the world", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			x, y := SurroundPoint(world, 0, 0, 300, rng)
			if x < 0 || y < 0 || x > world.Width || y > world.Height {
				t.Fatalf("(%.1f, %.1f) outside the world", x, y)
			}
		}
	})
}

func TestNewEnemyScalesHP(t *testing.T) {
	cfg := config.Default()
	sp := NewSpawner(cfg, rand.New(rand.NewSource(1)))

	tests := []struct {
		wave int
		want float64
	}{
		{1, 3},
		{2, 3.3},
		{11, 6},
	}
	for _, tt := range tests {
		e := sp.NewEnemy("e", EnemyBasic, tt.wave, 0, 0)
		if math.Abs(e.HP-tt.want) > 1e-9 {
			t.Errorf("wave %d basic hp = %v, want %v", tt.wave, e.HP, tt.want)
		}
		if e.Points != 10 || e.XPValue != 5 || e.Speed != 1 {
			t.Errorf("wave %d basic stats = %+v", tt.wave, e)
		}
	}
}

func TestSpawnDueRespectsTimeAndCap(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxEnemies = 2
	sp := NewSpawner(cfg, rand.New(rand.NewSource(1)))

	start := time.Unix(0, 0)
	w := NewWorld(start)
	w.AddPlayer(newTestPlayer("p1", 800, 600))
	w.Wave.State = WaveSpawning
	w.Wave.TotalPlanned = 4
	w.Wave.Schedule = sp.BuildSchedule(map[EnemyType]int{EnemyBasic: 4}, start)

	ev := sp.SpawnDue(start, w)
	if countEvents(ev, EventEnemySpawned) != 1 {
		t.Fatalf("expected only the first entry due at start, got %d spawns", countEvents(ev, EventEnemySpawned))
	}

	ev = sp.SpawnDue(start.Add(time.Hour), w)
	if n := countEvents(ev, EventEnemySpawned); n != 1 {
		t.Fatalf("cap of 2 allowed %d more spawns", n)
	}
	if w.Wave.TotalSpawned != 2 || len(w.Wave.Schedule) != 2 {
		t.Fatalf("spawned %d, %d left in schedule", w.Wave.TotalSpawned, len(w.Wave.Schedule))
	}

	// Free room; held-back entries go out next time
	for _, e := range w.Enemies() {
		w.RemoveEnemy(e.ID)
	}
	sp.SpawnDue(start.Add(time.Hour), w)
	if w.Wave.TotalSpawned != 4 || len(w.Wave.Schedule) != 0 {
		t.Errorf("spawned %d, %d left in schedule", w.Wave.TotalSpawned, len(w.Wave.Schedule))
	}
}

func TestSpawnDueIgnoredOutsideSpawning(t *testing.T) {
	cfg := config.Default()
	sp := NewSpawner(cfg, rand.New(rand.NewSource(1)))
	start := time.Unix(0, 0)
	w := NewWorld(start)
	w.Wave.Schedule = sp.BuildSchedule(map[EnemyType]int{EnemyBasic: 2}, start)
	w.Wave.TotalPlanned = 2

	if ev := sp.SpawnDue(start.Add(time.Hour), w); ev != nil {
		t.Errorf("SpawnDue while waiting returned %v", ev)
	}
}
