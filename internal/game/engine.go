package game

import (
	"log"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"survivor-arena/internal/config"
	"survivor-arena/internal/metrics"
)

// Engine is the single serialization point of the simulation. Every inbound
// message handler and every tick runs to completion under mu, so World State
// never sees two interleaved mutations.
//
// Each call returns the events it produced and hands them to the Dispatcher
// before the lock is released, so dispatch order equals mutation order.
type Engine struct {
	mu  sync.Mutex
	cfg config.AppConfig

	world       *World
	waves       *WaveController
	spawner     *Spawner
	resolver    *Resolver
	progression *Progression

	// Deterministic RNG, only touched under mu
	rng  *rand.Rand
	seed int64

	clock      func() time.Time
	dispatcher Dispatcher
	eventLog   *EventLog

	// Tick scheduler
	manual   bool // ticks only via Step
	running  bool
	runID    uint64
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Stats
	tickCount    uint64
	totalKills   int
	lastTickTime time.Duration
	startedAt    time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithSeed fixes the RNG seed for reproducible runs.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithDispatcher sets the initial dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// WithEventLog journals every dispatched event.
func WithEventLog(el *EventLog) Option {
	return func(e *Engine) { e.eventLog = el }
}

// WithManualTicks disables the background ticker; the engine only advances
// when Step is called. Running still reports scheduler state.
func WithManualTicks() Option {
	return func(e *Engine) { e.manual = true }
}

// NewEngine creates an idle engine. The tick scheduler starts on the first Join.
func NewEngine(cfg config.AppConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg,
		clock: time.Now,
		seed:  time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.rng = rand.New(rand.NewSource(e.seed))
	e.world = NewWorld(e.clock())
	e.spawner = NewSpawner(cfg, e.rng)
	e.waves = NewWaveController(cfg.Waves, e.spawner)
	e.progression = NewProgression(cfg.Player, cfg.XP, e.rng)
	e.resolver = NewResolver(cfg, e.progression)
	return e
}

// SetDispatcher replaces the dispatcher. Pass nil to drop events.
func (e *Engine) SetDispatcher(d Dispatcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatcher = d
}

// emit journals, counts and dispatches events. Callers hold mu.
func (e *Engine) emit(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		metrics.RecordEvent(ev.Type.String())
		if ev.Type == EventEnemyKilled {
			if p, ok := ev.Payload.(EnemyKilledPayload); ok && !p.Contact {
				e.totalKills++
			}
		}
	}
	if e.eventLog != nil {
		e.eventLog.Record(e.tickCount, events)
	}
	if e.dispatcher != nil {
		e.dispatcher.Dispatch(events)
	}
	return events
}

// =============================================================================
// TICK SCHEDULER
// =============================================================================

// startLocked resets the transient world and begins ticking.
func (e *Engine) startLocked() {
	if e.running {
		return
	}
	now := e.clock()
	e.world.Reset(now)
	e.running = true
	e.runID++
	e.startedAt = now

	if e.manual {
		return
	}

	stop := make(chan struct{})
	e.stopChan = stop
	e.wg.Add(1)
	go e.run(e.runID, stop)

	log.Printf("🎮 Game engine started at %d TPS", e.cfg.Simulation.TickRate)
}

// stopLocked halts the ticker. A tick already waiting on mu sees the new
// runID and returns without stepping.
func (e *Engine) stopLocked() {
	if !e.running {
		return
	}
	e.running = false
	if e.stopChan != nil {
		close(e.stopChan)
		e.stopChan = nil
	}
	if !e.manual {
		log.Println("🛑 Game engine stopped")
	}
}

func (e *Engine) run(id uint64, stop <-chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Simulation.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.scheduledTick(id)
		case <-stop:
			return
		}
	}
}

func (e *Engine) scheduledTick(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || e.runID != id {
		return
	}
	e.stepLocked()
}

// Step runs exactly one tick synchronously and returns its events.
func (e *Engine) Step() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepLocked()
}

// stepLocked runs Wave Controller, Spawner and Resolver, in that order.
func (e *Engine) stepLocked() []Event {
	start := time.Now()
	now := e.clock()
	e.tickCount++

	events := e.waves.Update(now, e.world)
	events = append(events, e.spawner.SpawnDue(now, e.world)...)
	events = append(events, e.resolver.Resolve(e.world)...)

	e.lastTickTime = time.Since(start)
	metrics.RecordTick(e.lastTickTime)
	metrics.UpdateEntityCounts(e.world.PlayerCount(), e.world.EnemyCount(), e.world.BulletCount(), e.world.PickupCount())
	metrics.UpdateWave(e.world.Wave.Number)

	return e.emit(events)
}

// Running reports whether the tick scheduler is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Close stops the scheduler and waits for the ticker goroutine to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	e.stopLocked()
	e.mu.Unlock()

	e.wg.Wait()
}

// =============================================================================
// INBOUND MESSAGES
// =============================================================================

// Join creates a player for sessionID with default stats. The joiner gets the
// full state; everyone else gets playerJoined. Joining twice is a no-op, and
// so is joining a full server.
func (e *Engine) Join(sessionID string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.world.Player(sessionID); exists || sessionID == "" {
		return nil
	}
	if limit := e.cfg.Limits.MaxPlayers; limit > 0 && e.world.PlayerCount() >= limit {
		log.Printf("⚠️ Join rejected for %s: server full (%d players)", sessionID, limit)
		return nil
	}

	e.startLocked()

	pc := e.cfg.Player
	p := &Player{
		ID:                sessionID,
		Name:              pc.DefaultName,
		X:                 pc.SpawnX,
		Y:                 pc.SpawnY,
		HP:                pc.MaxHP,
		MaxHP:             pc.MaxHP,
		Level:             1,
		DamageMultiplier:  1,
		CooldownReduction: 1,
		SpeedMultiplier:   1,
		BulletsPerShot:    1,
	}
	e.world.AddPlayer(p)

	log.Printf("👤 Player joined: %s (%d online)", sessionID, e.world.PlayerCount())

	state := snapshotWorld(e.world, e.bounds())
	state.SelfID = sessionID
	return e.emit([]Event{
		sendTo(sessionID, EventFullState, state),
		broadcastExcept(sessionID, EventPlayerJoined, *p),
	})
}

// SetName renames the player. Names are trimmed, defaulted when empty and
// cut to MaxNameLength runes.
func (e *Engine) SetName(sessionID, name string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.world.Player(sessionID)
	if !ok {
		return nil
	}
	p.Name = e.cleanName(name)
	return e.emit([]Event{broadcast(EventPlayerNameUpdated, PlayerNamePayload{ID: p.ID, Name: p.Name})})
}

func (e *Engine) cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return e.cfg.Player.DefaultName
	}
	if limit := e.cfg.Player.MaxNameLength; limit > 0 && utf8.RuneCountInString(name) > limit {
		name = string([]rune(name)[:limit])
	}
	return name
}

// livePlayer returns the player only if it exists and is alive.
func (e *Engine) livePlayer(sessionID string) (*Player, bool) {
	p, ok := e.world.Player(sessionID)
	if !ok || !p.Alive() {
		return nil, false
	}
	return p, true
}

// Move applies a client-reported position as-is.
func (e *Engine) Move(sessionID string, x, y float64) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.livePlayer(sessionID)
	if !ok {
		return nil
	}
	p.X, p.Y = x, y
	return e.emit([]Event{broadcastExcept(sessionID, EventPlayerMoved, PositionPayload{ID: p.ID, X: x, Y: y})})
}

// Shoot fires bulletsPerShot bullets from (x, y), fanned around angle.
// Damage is fixed now from the shooter's current multiplier. Shots inside
// the cooldown window or beyond the bullet cap are ignored.
func (e *Engine) Shoot(sessionID string, x, y, angle float64) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.livePlayer(sessionID)
	if !ok {
		return nil
	}

	sim := e.cfg.Simulation
	now := e.clock()
	cooldown := time.Duration(float64(sim.BaseShotCooldown) * p.CooldownReduction)
	if !p.lastShotAt.IsZero() && now.Sub(p.lastShotAt) < cooldown {
		return nil
	}

	n := max(p.BulletsPerShot, 1)
	if limit := e.cfg.Limits.MaxBullets; limit > 0 {
		n = min(n, limit-e.world.BulletCount())
	}
	if n <= 0 {
		return nil
	}
	p.lastShotAt = now

	damage := sim.BaseBulletDamage * p.DamageMultiplier
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		a := angle + (float64(i)-float64(n-1)/2)*sim.MultishotSpread
		b := &Bullet{
			ID:        e.world.NextID("bullet"),
			OwnerID:   p.ID,
			X:         x,
			Y:         y,
			VelocityX: math.Cos(a) * sim.BulletSpeed,
			VelocityY: math.Sin(a) * sim.BulletSpeed,
			Damage:    damage,
			ttl:       sim.BulletLifetimeTicks,
		}
		e.world.AddBullet(b)
		events = append(events, broadcast(EventBulletSpawned, *b))
	}
	return e.emit(events)
}

// ReportHit applies client-reported damage to an enemy. Unknown enemies are
// ignored.
func (e *Engine) ReportHit(sessionID, enemyID string, damage float64) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.livePlayer(sessionID); !ok || damage <= 0 {
		return nil
	}
	enemy, ok := e.world.Enemy(enemyID)
	if !ok {
		return nil
	}
	return e.emit(e.resolver.DamageEnemy(e.world, enemy, damage, sessionID))
}

// CollectPickup consumes a pickup on the client's word.
func (e *Engine) CollectPickup(sessionID, pickupID string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.livePlayer(sessionID)
	if !ok {
		return nil
	}
	pk, ok := e.world.Pickup(pickupID)
	if !ok {
		return nil
	}
	return e.emit(e.resolver.Collect(e.world, p, pk))
}

// ChooseUpgrade applies one upgrade from the player's oldest pending offer.
func (e *Engine) ChooseUpgrade(sessionID string, upgrade UpgradeType) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.livePlayer(sessionID)
	if !ok || !e.progression.Choose(p, upgrade) {
		return nil
	}
	return e.emit([]Event{broadcast(EventPlayerUpgraded, PlayerUpgradedPayload{
		ID:      p.ID,
		Upgrade: upgrade,
		Stats:   p.Stats(),
	})})
}

// Disconnect removes the player. Bullets and pickups it left behind stay.
// When the last player leaves the scheduler stops and the world resets.
// Disconnecting an unknown session is a no-op.
func (e *Engine) Disconnect(sessionID string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.world.RemovePlayer(sessionID); !ok {
		return nil
	}
	log.Printf("👋 Player left: %s (%d online)", sessionID, e.world.PlayerCount())

	events := e.emit([]Event{broadcast(EventPlayerDisconnected, PlayerRefPayload{ID: sessionID})})

	if e.world.PlayerCount() == 0 {
		e.stopLocked()
		e.world.Reset(e.clock())
		log.Println("🧹 Last player left, world reset")
	}
	return events
}

// =============================================================================
// READS
// =============================================================================

func (e *Engine) bounds() Bounds {
	return Bounds{Width: e.cfg.World.Width, Height: e.cfg.World.Height}
}

// Snapshot returns a copy of the whole world.
func (e *Engine) Snapshot() FullState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshotWorld(e.world, e.bounds())
}

// Stats returns counters for monitoring.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	alive := 0
	e.world.EachPlayer(func(p *Player) bool {
		if p.Alive() {
			alive++
		}
		return true
	})

	wave := e.world.Wave
	wave.Schedule = nil
	wave.Composition = nil
	if e.world.Wave.Composition != nil {
		wave.Composition = make(map[EnemyType]int, len(e.world.Wave.Composition))
		for t, c := range e.world.Wave.Composition {
			wave.Composition[t] = c
		}
	}

	var uptime time.Duration
	if e.running {
		uptime = e.clock().Sub(e.startedAt)
	}
	return EngineStats{
		Running:        e.running,
		Tick:           e.tickCount,
		Players:        e.world.PlayerCount(),
		AlivePlayers:   alive,
		Enemies:        e.world.EnemyCount(),
		Bullets:        e.world.BulletCount(),
		Pickups:        e.world.PickupCount(),
		Wave:           wave,
		TotalKills:     e.totalKills,
		LastTickTimeMs: float64(e.lastTickTime.Microseconds()) / 1000,
		Uptime:         uptime,
	}
}

// Leaderboard returns the top n players by score (all when n <= 0).
func (e *Engine) Leaderboard(n int) []LeaderboardEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return rankPlayers(e.world.Players(), n)
}

// PlayerCount returns the number of connected players.
func (e *Engine) PlayerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.world.PlayerCount()
}

// PendingUpgrades returns the pending choices for sessionID, oldest first.
func (e *Engine) PendingUpgrades(sessionID string) [][]UpgradeType {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.world.Player(sessionID)
	if !ok {
		return nil
	}
	out := make([][]UpgradeType, len(p.pendingChoices))
	for i, c := range p.pendingChoices {
		out[i] = append([]UpgradeType(nil), c...)
	}
	return out
}
