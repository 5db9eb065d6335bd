package game

import (
	"math"
	"math/rand"

	"survivor-arena/internal/config"
)

// RequiredXP returns the cumulative experience a player at level needs to
// reach the next level: floor(K * level^P).
func RequiredXP(cfg config.XPConfig, level int) int {
	if level < 1 {
		level = 1
	}
	return int(math.Floor(cfg.CurveK * math.Pow(float64(level), cfg.CurveP)))
}

// Progression turns experience into levels and applies chosen upgrades.
type Progression struct {
	player config.PlayerConfig
	xp     config.XPConfig
	rng    *rand.Rand
}

// NewProgression creates a progression service drawing choices from rng.
func NewProgression(player config.PlayerConfig, xp config.XPConfig, rng *rand.Rand) *Progression {
	return &Progression{player: player, xp: xp, rng: rng}
}

// CollectionRadius returns the pickup radius for a player of the given level.
func (p *Progression) CollectionRadius(level int) float64 {
	return p.xp.CollectionRadius + float64(max(level-1, 0))*p.xp.CollectionRadiusPerLevel
}

// Grant gives amount to the collector and ceil(amount/2) to every other
// connected player. It is a no-op if the collector is gone.
func (p *Progression) Grant(w *World, collectorID string, amount int) []Event {
	collector, ok := w.Player(collectorID)
	if !ok || amount <= 0 {
		return nil
	}

	shared := (amount + 1) / 2
	events := p.addExperience(collector, amount)

	recipients := 0
	w.EachPlayer(func(pl *Player) bool {
		if pl.ID == collectorID {
			return true
		}
		recipients++
		events = append(events, p.addExperience(pl, shared)...)
		return true
	})

	events = append(events, broadcast(EventExperienceShared, ExperienceSharedPayload{
		CollectorID: collectorID,
		Value:       amount,
		SharedValue: shared,
		Recipients:  recipients,
	}))
	return events
}

// addExperience adds amount and runs the level-up check. Several levels can
// be gained at once; each one rolls its own set of choices.
func (p *Progression) addExperience(pl *Player, amount int) []Event {
	pl.XP += amount

	var offers []Event
	leveledUp := false
	for pl.XP >= RequiredXP(p.xp, pl.Level) {
		pl.Level++
		leveledUp = true

		choices := p.rollChoices(pl)
		if len(choices) == 0 {
			continue
		}
		pl.pendingChoices = append(pl.pendingChoices, choices)
		offers = append(offers, sendTo(pl.ID, EventUpgradeChoicesOffered, UpgradeChoicesPayload{
			Level:   pl.Level,
			Choices: choices,
			Pending: len(pl.pendingChoices),
		}))
	}

	events := []Event{broadcast(EventExperienceUpdated, ExperiencePayload{
		ID:          pl.ID,
		XP:          pl.XP,
		Level:       pl.Level,
		LeveledUp:   leveledUp,
		NextLevelXP: RequiredXP(p.xp, pl.Level),
	})}
	return append(events, offers...)
}

// maxed reports whether an upgrade can no longer change the player.
func (p *Progression) maxed(pl *Player, u UpgradeType) bool {
	switch u {
	case UpgradeCooldown:
		return pl.CooldownReduction <= p.player.MinCooldown
	case UpgradeSpeed:
		return pl.SpeedMultiplier >= p.player.MaxSpeedMultiplier
	case UpgradeMultishot:
		return pl.BulletsPerShot >= p.player.MaxBulletsPerShot
	}
	return false
}

func (p *Progression) weight(u UpgradeType) float64 {
	w, ok := p.player.UpgradeWeights[string(u)]
	if !ok {
		return 1
	}
	return w
}

// rollChoices draws UpgradeChoices distinct upgrades, weighted, without
// replacement, skipping upgrades that are already maxed for pl.
func (p *Progression) rollChoices(pl *Player) []UpgradeType {
	pool := make([]UpgradeType, 0, len(AllUpgrades))
	weights := make([]float64, 0, len(AllUpgrades))
	for _, u := range AllUpgrades {
		if w := p.weight(u); w > 0 && !p.maxed(pl, u) {
			pool = append(pool, u)
			weights = append(weights, w)
		}
	}

	n := min(p.player.UpgradeChoices, len(pool))
	out := make([]UpgradeType, 0, n)
	for len(out) < n {
		total := 0.0
		for _, w := range weights {
			total += w
		}
		r := p.rng.Float64() * total
		i := 0
		for ; i < len(weights)-1; i++ {
			if r < weights[i] {
				break
			}
			r -= weights[i]
		}
		out = append(out, pool[i])
		pool = append(pool[:i], pool[i+1:]...)
		weights = append(weights[:i], weights[i+1:]...)
	}
	return out
}

// Choose applies u if it is part of the oldest pending offer. It reports
// false, changing nothing, otherwise.
func (p *Progression) Choose(pl *Player, u UpgradeType) bool {
	if len(pl.pendingChoices) == 0 {
		return false
	}
	offered := false
	for _, c := range pl.pendingChoices[0] {
		if c == u {
			offered = true
			break
		}
	}
	if !offered {
		return false
	}

	pl.pendingChoices = pl.pendingChoices[1:]
	p.Apply(pl, u)
	return true
}

// Apply changes pl's stats for one upgrade, respecting the configured bounds.
func (p *Progression) Apply(pl *Player, u UpgradeType) {
	cfg := p.player
	switch u {
	case UpgradeMaxHP:
		pl.MaxHP += cfg.MaxHPIncrease
		if cfg.HPUpgradeFullHeal {
			pl.HP = pl.MaxHP
		} else {
			pl.HP = min(pl.HP+cfg.MaxHPIncrease, pl.MaxHP)
		}
	case UpgradeDamage:
		pl.DamageMultiplier += cfg.DamageIncrease
	case UpgradeCooldown:
		pl.CooldownReduction = math.Max(cfg.MinCooldown, pl.CooldownReduction-cfg.CooldownDecrease)
	case UpgradeSpeed:
		pl.SpeedMultiplier = math.Min(cfg.MaxSpeedMultiplier, pl.SpeedMultiplier+cfg.SpeedIncrease)
	case UpgradeMultishot:
		pl.BulletsPerShot = min(cfg.MaxBulletsPerShot, pl.BulletsPerShot+cfg.BulletsIncrease)
	}
}
