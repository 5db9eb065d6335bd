package game

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"pgregory.net/rapid"

	"survivor-arena/internal/config"
)

func TestPlanComposition(t *testing.T) {
	cfg := config.DefaultWaves()

	tests := []struct {
		name    string
		wave    int
		players int
		want    map[EnemyType]int
	}{
		{"wave 1 solo", 1, 1, map[EnemyType]int{EnemyBasic: 6, EnemyFast: 1}},
		{"no players counts as one", 1, 0, map[EnemyType]int{EnemyBasic: 6, EnemyFast: 1}},
		{"wave 1 four players doubles", 1, 4, map[EnemyType]int{EnemyBasic: 12, EnemyFast: 2}},
		{"wave 4 adds a boss", 4, 1, map[EnemyType]int{EnemyBasic: 8, EnemyFast: 4, EnemyBoss: 1}},
		{"wave 8 fast share capped", 8, 1, map[EnemyType]int{EnemyBasic: 10, EnemyFast: 9, EnemyBoss: 2}},
		{"wave 5 is elite only", 5, 1, map[EnemyType]int{EnemyElite: 1}},
		{"elite scales with players", 5, 4, map[EnemyType]int{EnemyElite: 2}},
		{"second elite wave", 10, 2, map[EnemyType]int{EnemyElite: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanComposition(cfg, tt.wave, tt.players)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PlanComposition(%d, %d) = %v, want %v", tt.wave, tt.players, got, tt.want)
			}
		})
	}
}

func newTestWaves(cfg config.AppConfig) (*WaveController, *Spawner) {
	sp := NewSpawner(cfg, rand.New(rand.NewSource(1)))
	return NewWaveController(cfg.Waves, sp), sp
}

func TestWaveStateCycle(t *testing.T) {
	cfg := config.Default()
	wc, sp := newTestWaves(cfg)
	start := time.Unix(1000, 0)
	w := NewWorld(start)
	w.AddPlayer(newTestPlayer("p1", 800, 600))

	// Waiting until the inter-wave delay has elapsed
	if ev := wc.Update(start.Add(cfg.Waves.InterWaveDelay-time.Millisecond), w); ev != nil {
		t.Fatalf("wave started early: %v", ev)
	}
	if w.Wave.State != WaveWaitingToStart {
		t.Fatalf("state = %v, want waitingToStart", w.Wave.State)
	}

	now := start.Add(cfg.Waves.InterWaveDelay)
	ev := wc.Update(now, w)
	if countEvents(ev, EventWaveStarted) != 1 || w.Wave.State != WaveSpawning {
		t.Fatalf("expected waveStarted and spawning, got %v / %v", ev, w.Wave.State)
	}
	if w.Wave.TotalPlanned != 7 || len(w.Wave.Schedule) != 7 {
		t.Fatalf("planned %d with %d scheduled, want 7", w.Wave.TotalPlanned, len(w.Wave.Schedule))
	}

	// Drain the schedule
	for i := 0; i < 100 && len(w.Wave.Schedule) > 0; i++ {
		now = now.Add(time.Second)
		sp.SpawnDue(now, w)
	}
	if w.Wave.TotalSpawned != w.Wave.TotalPlanned {
		t.Fatalf("spawned %d of %d", w.Wave.TotalSpawned, w.Wave.TotalPlanned)
	}

	wc.Update(now, w)
	if w.Wave.State != WaveInProgress {
		t.Fatalf("state = %v, want inProgress", w.Wave.State)
	}

	// Still enemies alive
	wc.Update(now, w)
	if w.Wave.State != WaveInProgress {
		t.Fatalf("left inProgress with %d enemies alive", w.EnemyCount())
	}

	for _, e := range w.Enemies() {
		w.RemoveEnemy(e.ID)
	}
	if ev := wc.Update(now, w); ev != nil || w.Wave.State != WaveComplete {
		t.Fatalf("expected silent move to complete, got %v / %v", ev, w.Wave.State)
	}

	// One tick later the wave-complete notification fires
	ev = wc.Update(now, w)
	done := findEvents(ev, EventWaveCompleted)
	if len(done) != 1 {
		t.Fatalf("expected one waveCompleted, got %v", ev)
	}
	if p := done[0].Payload.(WaveCompletedPayload); p.WaveNumber != 1 || p.NextWave != 2 {
		t.Errorf("waveCompleted payload = %+v", p)
	}
	if w.Wave.State != WaveWaitingToStart || w.Wave.Number != 2 {
		t.Errorf("after complete: state %v wave %d", w.Wave.State, w.Wave.Number)
	}
}

func TestWaveTryStartRefuses(t *testing.T) {
	cfg := config.Default()
	wc, _ := newTestWaves(cfg)
	now := time.Unix(1000, 0)

	t.Run("while spawning", func(t *testing.T) {
		w := NewWorld(now)
		w.Wave.State = WaveSpawning
		if ev := wc.TryStart(now, w); ev != nil {
			t.Errorf("TryStart during spawning returned %v", ev)
		}
		if w.Wave.State != WaveSpawning {
			t.Errorf("state changed to %v", w.Wave.State)
		}
	})

	t.Run("while in progress", func(t *testing.T) {
		w := NewWorld(now)
		w.Wave.State = WaveInProgress
		if ev := wc.TryStart(now, w); ev != nil {
			t.Errorf("TryStart during inProgress returned %v", ev)
		}
	})

	t.Run("enemies still alive", func(t *testing.T) {
		w := NewWorld(now)
		w.AddEnemy(&Enemy{ID: "straggler", HP: 1})
		if ev := wc.TryStart(now, w); ev != nil {
			t.Errorf("TryStart with a live enemy returned %v", ev)
		}
		if w.Wave.State != WaveWaitingToStart {
			t.Errorf("state changed to %v", w.Wave.State)
		}
	})
}

// Every tick, the wave record either stays put or moves one step around the
// cycle, never spawns beyond plan, and never starts over live enemies.
func TestWaveCycleProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := config.Default()
		cfg.Waves.InterWaveDelay = time.Duration(rapid.IntRange(0, 3000).Draw(t, "delayMs")) * time.Millisecond
		cfg.Limits.MaxEnemies = rapid.IntRange(1, 50).Draw(t, "maxEnemies")

		sp := NewSpawner(cfg, rand.New(rand.NewSource(rapid.Int64().Draw(t, "seed"))))
		wc := NewWaveController(cfg.Waves, sp)

		now := time.Unix(0, 0)
		w := NewWorld(now)
		players := rapid.IntRange(1, 6).Draw(t, "players")
		for i := 0; i < players; i++ {
			w.AddPlayer(newTestPlayer(w.NextID("p"), 800, 600))
		}

		steps := rapid.IntRange(1, 300).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			now = now.Add(time.Duration(rapid.IntRange(0, 2000).Draw(t, "dtMs")) * time.Millisecond)

			kills := rapid.IntRange(0, 5).Draw(t, "kills")
			for _, e := range w.Enemies() {
				if kills == 0 {
					break
				}
				w.RemoveEnemy(e.ID)
				kills--
			}

			before := w.Wave.State
			aliveBefore := w.EnemyCount()
			wc.Update(now, w)
			after := w.Wave.State

			if after != before && after != before.next() {
				t.Fatalf("illegal transition %v -> %v", before, after)
			}
			if before == WaveWaitingToStart && after == WaveSpawning && aliveBefore > 0 {
				t.Fatalf("wave started with %d enemies alive", aliveBefore)
			}

			sp.SpawnDue(now, w)
			if w.Wave.TotalSpawned > w.Wave.TotalPlanned {
				t.Fatalf("spawned %d > planned %d", w.Wave.TotalSpawned, w.Wave.TotalPlanned)
			}
			if w.EnemyCount() > cfg.Limits.MaxEnemies {
				t.Fatalf("%d enemies exceed cap %d", w.EnemyCount(), cfg.Limits.MaxEnemies)
			}
		}
	})
}
