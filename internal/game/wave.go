package game

import (
	"fmt"
	"log"
	"math"
	"time"

	"survivor-arena/internal/config"
)

// WaveState is the state of the wave state machine.
type WaveState uint8

const (
	WaveWaitingToStart WaveState = iota
	WaveSpawning
	WaveInProgress
	WaveComplete
)

// String returns the wire name of the state.
func (s WaveState) String() string {
	switch s {
	case WaveWaitingToStart:
		return "waitingToStart"
	case WaveSpawning:
		return "spawning"
	case WaveInProgress:
		return "inProgress"
	case WaveComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// next is the only state each state may move to.
func (s WaveState) next() WaveState {
	return (s + 1) % 4
}

// MarshalText lets the state appear by name in JSON and MessagePack.
func (s WaveState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *WaveState) UnmarshalText(b []byte) error {
	for st := WaveWaitingToStart; st <= WaveComplete; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown wave state %q", b)
}

// SpawnEntry is one scheduled enemy spawn.
type SpawnEntry struct {
	Type      EnemyType `json:"type"`
	FireAt    time.Time `json:"fireAt"`
	Placement Placement `json:"placement"`
}

// WaveRecord is the singleton wave-progress record.
type WaveRecord struct {
	State          WaveState         `json:"state"`
	Number         int               `json:"waveNumber"`
	Composition    map[EnemyType]int `json:"composition"`
	TotalPlanned   int               `json:"totalPlanned"`
	TotalSpawned   int               `json:"totalSpawned"`
	KilledThisWave int               `json:"killedThisWave"`
	StateEnteredAt time.Time         `json:"stateEnteredAt"`
	Schedule       []SpawnEntry      `json:"-"`
}

// NewWaveRecord returns the record for wave 1, waiting since now.
func NewWaveRecord(now time.Time) WaveRecord {
	return WaveRecord{
		State:          WaveWaitingToStart,
		Number:         1,
		StateEnteredAt: now,
	}
}

// advance moves the record to the next state in the cycle.
func (r *WaveRecord) advance(now time.Time) {
	r.State = r.State.next()
	r.StateEnteredAt = now
}

// PlanComposition returns how many enemies of each type wave number n spawns
// with the given player count. Zero counts are omitted.
//
// Counts scale with sqrt(players). Every EliteEvery-th wave is elite-only;
// otherwise the mix drifts from mostly basic toward fast, with a boss joining
// every BossEvery-th wave.
func PlanComposition(cfg config.WaveConfig, n, players int) map[EnemyType]int {
	if n < 1 {
		n = 1
	}
	scale := math.Sqrt(float64(max(players, 1)))
	plan := make(map[EnemyType]int)

	if cfg.EliteEvery > 0 && n%cfg.EliteEvery == 0 {
		plan[EnemyElite] = int(math.Ceil(scale)) * (n / cfg.EliteEvery)
		return plan
	}

	total := int(math.Round(float64(cfg.BaseEnemies+cfg.EnemiesPerWave*n) * scale))
	if total < 1 {
		total = 1
	}

	bosses := 0
	if cfg.BossEvery > 0 {
		bosses = min(n/cfg.BossEvery, total/4)
	}
	rest := total - bosses

	fastShare := math.Min(0.45, 0.15+0.05*float64(n-1))
	fast := int(math.Round(float64(rest) * fastShare))
	basic := rest - fast

	for t, c := range map[EnemyType]int{EnemyBasic: basic, EnemyFast: fast, EnemyBoss: bosses} {
		if c > 0 {
			plan[t] = c
		}
	}
	return plan
}

func planTotal(plan map[EnemyType]int) int {
	total := 0
	for _, c := range plan {
		total += c
	}
	return total
}

// WaveController drives the wave state machine. It is called once per tick
// and performs at most one transition per call.
type WaveController struct {
	cfg     config.WaveConfig
	spawner *Spawner
}

// NewWaveController creates a controller that schedules through spawner.
func NewWaveController(cfg config.WaveConfig, spawner *Spawner) *WaveController {
	return &WaveController{cfg: cfg, spawner: spawner}
}

// Update checks the current state's exit condition and transitions if it holds.
func (wc *WaveController) Update(now time.Time, w *World) []Event {
	rec := &w.Wave

	switch rec.State {
	case WaveWaitingToStart:
		if now.Sub(rec.StateEnteredAt) >= wc.cfg.InterWaveDelay {
			return wc.TryStart(now, w)
		}

	case WaveSpawning:
		if rec.TotalSpawned >= rec.TotalPlanned && len(rec.Schedule) == 0 {
			rec.advance(now)
		}

	case WaveInProgress:
		if w.EnemyCount() == 0 {
			rec.advance(now)
			log.Printf("✅ Wave %d cleared (%d kills)", rec.Number, rec.KilledThisWave)
		}

	case WaveComplete:
		finished := rec.Number
		killed := rec.KilledThisWave
		rec.Number++
		rec.advance(now)
		return []Event{broadcast(EventWaveCompleted, WaveCompletedPayload{
			WaveNumber: finished,
			Killed:     killed,
			NextWave:   rec.Number,
		})}
	}

	return nil
}

// TryStart starts the current wave. It refuses (returns nil) unless the
// record is WaitingToStart and no enemy is alive.
func (wc *WaveController) TryStart(now time.Time, w *World) []Event {
	rec := &w.Wave
	if rec.State != WaveWaitingToStart || w.EnemyCount() > 0 {
		return nil
	}

	plan := PlanComposition(wc.cfg, rec.Number, w.PlayerCount())
	rec.Composition = plan
	rec.TotalPlanned = planTotal(plan)
	rec.TotalSpawned = 0
	rec.KilledThisWave = 0
	rec.Schedule = wc.spawner.BuildSchedule(plan, now)
	rec.advance(now)

	_, elite := plan[EnemyElite]
	log.Printf("🌊 Wave %d started: %d enemies %v", rec.Number, rec.TotalPlanned, plan)

	composition := make(map[EnemyType]int, len(plan))
	for t, c := range plan {
		composition[t] = c
	}
	return []Event{broadcast(EventWaveStarted, WaveStartedPayload{
		WaveNumber:   rec.Number,
		Composition:  composition,
		TotalPlanned: rec.TotalPlanned,
		Elite:        elite,
	})}
}
