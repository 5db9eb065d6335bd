package game

import (
	"strconv"
	"time"
)

// compactThreshold is the minimum number of tombstones before a store compacts.
const compactThreshold = 32

type slot[T any] struct {
	id string
	v  *T
}

// store is an insertion-ordered collection keyed by id.
// Insert, lookup and remove are O(1); removal leaves a tombstone so iteration
// order stays stable, and tombstones are compacted once they dominate.
type store[T any] struct {
	slots     []slot[T]
	index     map[string]int
	holes     int
	iterating int
}

func newStore[T any]() *store[T] {
	return &store[T]{index: make(map[string]int)}
}

func (s *store[T]) insert(id string, v *T) bool {
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = len(s.slots)
	s.slots = append(s.slots, slot[T]{id: id, v: v})
	return true
}

func (s *store[T]) get(id string) (*T, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.slots[i].v, true
}

func (s *store[T]) remove(id string) (*T, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	v := s.slots[i].v
	s.slots[i].v = nil
	delete(s.index, id)
	s.holes++
	s.maybeCompact()
	return v, true
}

func (s *store[T]) len() int {
	return len(s.index)
}

// each visits live values in insertion order until fn returns false.
// Removing entries from inside fn is allowed.
func (s *store[T]) each(fn func(v *T) bool) {
	s.iterating++
	defer func() {
		s.iterating--
		s.maybeCompact()
	}()
	// Entries inserted during iteration are not visited.
	n := len(s.slots)
	for i := 0; i < n; i++ {
		if v := s.slots[i].v; v != nil {
			if !fn(v) {
				return
			}
		}
	}
}

func (s *store[T]) values() []*T {
	out := make([]*T, 0, s.len())
	s.each(func(v *T) bool {
		out = append(out, v)
		return true
	})
	return out
}

func (s *store[T]) maybeCompact() {
	if s.iterating > 0 || s.holes < compactThreshold || s.holes*2 < len(s.slots) {
		return
	}
	n := 0
	for _, sl := range s.slots {
		if sl.v == nil {
			continue
		}
		s.slots[n] = sl
		s.index[sl.id] = n
		n++
	}
	clear(s.slots[n:])
	s.slots = s.slots[:n]
	s.holes = 0
}

func (s *store[T]) reset() {
	s.slots = nil
	s.index = make(map[string]int)
	s.holes = 0
}

// World is the in-memory store of every live entity plus the wave record.
// It holds no game rules; callers serialize access (see Engine).
type World struct {
	players *store[Player]
	enemies *store[Enemy]
	bullets *store[Bullet]
	pickups *store[Pickup]

	Wave WaveRecord

	nextID uint64
}

// NewWorld creates an empty world whose wave record starts waiting at now.
func NewWorld(now time.Time) *World {
	return &World{
		players: newStore[Player](),
		enemies: newStore[Enemy](),
		bullets: newStore[Bullet](),
		pickups: newStore[Pickup](),
		Wave:    NewWaveRecord(now),
	}
}

// NextID returns a world-unique id with the given prefix.
func (w *World) NextID(prefix string) string {
	w.nextID++
	return prefix + "-" + strconv.FormatUint(w.nextID, 10)
}

// Reset drops every transient entity and restarts the wave record.
// Players are left alone.
func (w *World) Reset(now time.Time) {
	w.enemies.reset()
	w.bullets.reset()
	w.pickups.reset()
	w.Wave = NewWaveRecord(now)
}

// Players

func (w *World) AddPlayer(p *Player) bool { return w.players.insert(p.ID, p) }
func (w *World) Player(id string) (*Player, bool) { return w.players.get(id) }
func (w *World) RemovePlayer(id string) (*Player, bool) { return w.players.remove(id) }
func (w *World) PlayerCount() int { return w.players.len() }
func (w *World) Players() []*Player { return w.players.values() }
func (w *World) EachPlayer(fn func(p *Player) bool) { w.players.each(fn) }

// Enemies

func (w *World) AddEnemy(e *Enemy) bool { return w.enemies.insert(e.ID, e) }
func (w *World) Enemy(id string) (*Enemy, bool) { return w.enemies.get(id) }
func (w *World) RemoveEnemy(id string) (*Enemy, bool) { return w.enemies.remove(id) }
func (w *World) EnemyCount() int { return w.enemies.len() }
func (w *World) Enemies() []*Enemy { return w.enemies.values() }
func (w *World) EachEnemy(fn func(e *Enemy) bool) { w.enemies.each(fn) }

// Bullets

func (w *World) AddBullet(b *Bullet) bool { return w.bullets.insert(b.ID, b) }
func (w *World) Bullet(id string) (*Bullet, bool) { return w.bullets.get(id) }
func (w *World) RemoveBullet(id string) (*Bullet, bool) { return w.bullets.remove(id) }
func (w *World) BulletCount() int { return w.bullets.len() }
func (w *World) Bullets() []*Bullet { return w.bullets.values() }
func (w *World) EachBullet(fn func(b *Bullet) bool) { w.bullets.each(fn) }

// Pickups

func (w *World) AddPickup(p *Pickup) bool { return w.pickups.insert(p.ID, p) }
func (w *World) Pickup(id string) (*Pickup, bool) { return w.pickups.get(id) }
func (w *World) RemovePickup(id string) (*Pickup, bool) { return w.pickups.remove(id) }
func (w *World) PickupCount() int { return w.pickups.len() }
func (w *World) Pickups() []*Pickup { return w.pickups.values() }
func (w *World) EachPickup(fn func(p *Pickup) bool) { w.pickups.each(fn) }
