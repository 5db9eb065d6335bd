package game

import (
	"sort"
	"time"
)

// FullState is an immutable copy of the world, sent to a joining session and
// served by the read API. Uses value types (not pointers) so callers can hold
// it after the lock is released.
type FullState struct {
	SelfID     string    `json:"selfId,omitempty"`
	Players    []Player  `json:"players"`
	Enemies    []Enemy   `json:"enemies"`
	Bullets    []Bullet  `json:"bullets"`
	Pickups    []Pickup  `json:"pickups"`
	WaveNumber int       `json:"waveNumber"`
	WaveState  WaveState `json:"waveState"`
	World      Bounds    `json:"world"`
}

// Bounds are the world dimensions clients need to lay out the arena.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func copyAll[T any](items []*T) []T {
	out := make([]T, len(items))
	for i, it := range items {
		out[i] = *it
	}
	return out
}

func snapshotWorld(w *World, bounds Bounds) FullState {
	players := copyAll(w.Players())
	for i := range players {
		players[i].pendingChoices = nil
	}
	return FullState{
		Players:    players,
		Enemies:    copyAll(w.Enemies()),
		Bullets:    copyAll(w.Bullets()),
		Pickups:    copyAll(w.Pickups()),
		WaveNumber: w.Wave.Number,
		WaveState:  w.Wave.State,
		World:      bounds,
	}
}

// EngineStats is a cheap summary for the stats endpoint and metrics.
type EngineStats struct {
	Running        bool          `json:"running"`
	Tick           uint64        `json:"tick"`
	Players        int           `json:"players"`
	AlivePlayers   int           `json:"alivePlayers"`
	Enemies        int           `json:"enemies"`
	Bullets        int           `json:"bullets"`
	Pickups        int           `json:"pickups"`
	Wave           WaveRecord    `json:"wave"`
	TotalKills     int           `json:"totalKills"`
	LastTickTimeMs float64       `json:"lastTickTimeMs"`
	Uptime         time.Duration `json:"uptimeNs"`
}

// LeaderboardEntry is one ranked player.
type LeaderboardEntry struct {
	Rank  int    `json:"rank"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Level int    `json:"level"`
	Dead  bool   `json:"dead"`
}

// rankPlayers orders players by score, then level, then id, and keeps the
// first n (all when n <= 0).
func rankPlayers(players []*Player, n int) []LeaderboardEntry {
	sorted := append([]*Player(nil), players...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		return a.ID < b.ID
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		out[i] = LeaderboardEntry{
			Rank:  i + 1,
			ID:    p.ID,
			Name:  p.Name,
			Score: p.Score,
			Level: p.Level,
			Dead:  p.IsDead,
		}
	}
	return out
}
