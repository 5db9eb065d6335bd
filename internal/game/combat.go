package game

import (
	"math"

	"survivor-arena/internal/config"
	"survivor-arena/internal/game/spatial"
)

// Resolver advances enemies and bullets and resolves every overlap once per
// tick. It never fails: a collision missed this tick is checked again next tick.
type Resolver struct {
	sim         config.SimulationConfig
	world       config.WorldConfig
	maxPickups  int
	progression *Progression

	// Broad phase over the enemies slice, rebuilt after enemy movement.
	grid    *spatial.Grid
	enemies []*Enemy
}

// NewResolver creates a resolver that hands collected pickups to progression.
func NewResolver(cfg config.AppConfig, progression *Progression) *Resolver {
	return &Resolver{
		sim:         cfg.Simulation,
		world:       cfg.World,
		maxPickups:  cfg.Limits.MaxPickups,
		progression: progression,
		grid: spatial.NewGrid(cfg.World.Width, cfg.World.Height, cfg.World.BorderOffset,
			cfg.Simulation.GridCellSize, cfg.Limits.MaxEnemies),
	}
}

// Resolve runs the five resolution steps in order. Later steps see the
// removals made by earlier ones.
func (r *Resolver) Resolve(w *World) []Event {
	var events []Event
	events = append(events, r.moveEnemies(w)...)
	events = append(events, r.moveBullets(w)...)

	r.rebuildGrid(w)
	events = append(events, r.bulletHits(w)...)
	events = append(events, r.contacts(w)...)
	events = append(events, r.collectPickups(w)...)
	return events
}

// moveEnemies steers every enemy straight at its nearest live player.
// With no live player, enemies hold position.
func (r *Resolver) moveEnemies(w *World) []Event {
	players := w.Players()
	var events []Event

	w.EachEnemy(func(e *Enemy) bool {
		var target *Player
		best := math.Inf(1)
		for _, p := range players {
			if !p.Alive() {
				continue
			}
			if d := distance(e.X, e.Y, p.X, p.Y); d < best {
				best, target = d, p
			}
		}
		if target == nil || best == 0 {
			return true
		}

		if best <= e.Speed {
			e.X, e.Y = target.X, target.Y
		} else {
			e.X += (target.X - e.X) / best * e.Speed
			e.Y += (target.Y - e.Y) / best * e.Speed
		}
		events = append(events, broadcast(EventEnemyMoved, PositionPayload{ID: e.ID, X: e.X, Y: e.Y}))
		return true
	})
	return events
}

func (r *Resolver) outOfBounds(x, y float64) bool {
	m := r.world.BorderOffset
	return x < -m || x > r.world.Width+m || y < -m || y > r.world.Height+m
}

// moveBullets advances every bullet by its velocity and destroys the ones
// that left the world (plus margin) or ran out of lifetime.
func (r *Resolver) moveBullets(w *World) []Event {
	var events []Event

	w.EachBullet(func(b *Bullet) bool {
		b.X += b.VelocityX
		b.Y += b.VelocityY
		b.ttl--

		reason := ""
		switch {
		case r.outOfBounds(b.X, b.Y):
			reason = BulletOutOfBounds
		case b.ttl <= 0:
			reason = BulletExpired
		}
		if reason != "" {
			w.RemoveBullet(b.ID)
			events = append(events, broadcast(EventBulletDestroyed, BulletDestroyedPayload{ID: b.ID, Reason: reason}))
			return true
		}

		events = append(events, broadcast(EventBulletMoved, PositionPayload{ID: b.ID, X: b.X, Y: b.Y}))
		return true
	})
	return events
}

func (r *Resolver) rebuildGrid(w *World) {
	r.enemies = r.enemies[:0]
	r.grid.Clear()
	w.EachEnemy(func(e *Enemy) bool {
		r.grid.Insert(uint32(len(r.enemies)), e.X, e.Y)
		r.enemies = append(r.enemies, e)
		return true
	})
}

// firstEnemyWithin returns the earliest-inserted live enemy within radius.
func (r *Resolver) firstEnemyWithin(w *World, x, y, radius float64) *Enemy {
	for _, idx := range r.grid.QueryRadius(x, y, radius) {
		e := r.enemies[idx]
		if _, ok := w.Enemy(e.ID); !ok {
			continue
		}
		if distance(x, y, e.X, e.Y) <= radius {
			return e
		}
	}
	return nil
}

// bulletHits lets each bullet damage at most one enemy: the first in
// insertion order within the hit radius.
func (r *Resolver) bulletHits(w *World) []Event {
	if len(r.enemies) == 0 {
		return nil
	}
	var events []Event

	w.EachBullet(func(b *Bullet) bool {
		e := r.firstEnemyWithin(w, b.X, b.Y, r.sim.BulletHitRadius)
		if e == nil {
			return true
		}
		w.RemoveBullet(b.ID)
		events = append(events, broadcast(EventBulletDestroyed, BulletDestroyedPayload{ID: b.ID, Reason: BulletHit}))
		events = append(events, r.DamageEnemy(w, e, b.Damage, b.OwnerID)...)
		return true
	})
	return events
}

// DamageEnemy applies damage from attackerID and kills the enemy at hp <= 0.
// It is shared by bullet hits and client hit reports.
func (r *Resolver) DamageEnemy(w *World, e *Enemy, damage float64, attackerID string) []Event {
	e.HP -= damage
	events := []Event{broadcast(EventEnemyDamaged, EnemyDamagedPayload{
		ID:         e.ID,
		HP:         math.Max(e.HP, 0),
		Damage:     damage,
		AttackerID: attackerID,
	})}
	if e.HP > 0 {
		return events
	}
	return append(events, r.killEnemy(w, e, attackerID)...)
}

// killEnemy removes e, credits its points to the killer if still connected,
// and drops a pickup worth its xpValue where it died.
func (r *Resolver) killEnemy(w *World, e *Enemy, killerID string) []Event {
	w.RemoveEnemy(e.ID)
	w.Wave.KilledThisWave++

	events := []Event{broadcast(EventEnemyKilled, EnemyKilledPayload{
		ID:       e.ID,
		Type:     e.Type,
		KillerID: killerID,
		Points:   e.Points,
		X:        e.X,
		Y:        e.Y,
	})}

	if killer, ok := w.Player(killerID); ok {
		killer.Score += e.Points
		events = append(events, broadcast(EventScoreUpdated, ScorePayload{ID: killer.ID, Score: killer.Score}))
	}

	if e.XPValue > 0 && (r.maxPickups <= 0 || w.PickupCount() < r.maxPickups) {
		pickup := &Pickup{ID: w.NextID("pickup"), X: e.X, Y: e.Y, Value: e.XPValue}
		w.AddPickup(pickup)
		events = append(events, broadcast(EventPickupSpawned, *pickup))
	}
	return events
}

// contacts hurts each live player touching an enemy and destroys the enemy
// outright, whatever its type or hp. Contact kills award nothing.
func (r *Resolver) contacts(w *World) []Event {
	var events []Event
	radius := r.sim.PlayerEnemyCollisionRadius

	w.EachPlayer(func(p *Player) bool {
		for p.Alive() {
			e := r.firstEnemyWithin(w, p.X, p.Y, radius)
			if e == nil {
				break
			}

			p.HP -= r.sim.ContactDamage
			w.RemoveEnemy(e.ID)
			events = append(events,
				broadcast(EventPlayerDamaged, PlayerDamagedPayload{
					ID:       p.ID,
					HP:       max(p.HP, 0),
					MaxHP:    p.MaxHP,
					Damage:   r.sim.ContactDamage,
					SourceID: e.ID,
				}),
				broadcast(EventEnemyKilled, EnemyKilledPayload{
					ID:       e.ID,
					Type:     e.Type,
					KillerID: p.ID,
					Contact:  true,
					X:        e.X,
					Y:        e.Y,
				}),
			)

			if p.HP <= 0 {
				p.HP = 0
				p.IsDead = true
				events = append(events, broadcast(EventPlayerDied, PlayerDiedPayload{ID: p.ID, KilledBy: e.ID}))
			}
		}
		return true
	})
	return events
}

// collectPickups consumes every pickup a live player stands on. The pickup
// radius widens with level.
func (r *Resolver) collectPickups(w *World) []Event {
	if w.PickupCount() == 0 {
		return nil
	}
	var events []Event

	w.EachPlayer(func(p *Player) bool {
		if !p.Alive() {
			return true
		}
		radius := r.progression.CollectionRadius(p.Level)
		w.EachPickup(func(pk *Pickup) bool {
			if distance(p.X, p.Y, pk.X, pk.Y) <= radius {
				events = append(events, r.Collect(w, p, pk)...)
			}
			return true
		})
		return true
	})
	return events
}

// Collect removes pk and grants its value with p as the collector.
func (r *Resolver) Collect(w *World, p *Player, pk *Pickup) []Event {
	w.RemovePickup(pk.ID)
	events := []Event{broadcast(EventPickupCollected, PickupCollectedPayload{
		ID:       pk.ID,
		PlayerID: p.ID,
		Value:    pk.Value,
	})}
	return append(events, r.progression.Grant(w, p.ID, pk.Value)...)
}
