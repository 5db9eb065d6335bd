package game

import (
	"math"
	"time"
)

// EnemyType is the closed set of enemy kinds.
type EnemyType string

const (
	EnemyBasic EnemyType = "basic"
	EnemyFast  EnemyType = "fast"
	EnemyBoss  EnemyType = "boss"
	EnemyElite EnemyType = "elite" // Rare, high value, only in elite waves
)

// spawnOrder is the fixed iteration order over enemy types.
// Map iteration is random in Go, so schedules and compositions walk this instead.
var spawnOrder = []EnemyType{EnemyBasic, EnemyFast, EnemyBoss, EnemyElite}

// Heavy reports whether the type is scheduled last with surround placement.
func (t EnemyType) Heavy() bool {
	return t == EnemyBoss || t == EnemyElite
}

// UpgradeType identifies one stat upgrade a player can pick on level-up.
type UpgradeType string

const (
	UpgradeMaxHP     UpgradeType = "hp"
	UpgradeDamage    UpgradeType = "damage"
	UpgradeCooldown  UpgradeType = "cooldown"
	UpgradeSpeed     UpgradeType = "speed"
	UpgradeMultishot UpgradeType = "multishot"
)

// AllUpgrades lists every upgrade in a stable order.
var AllUpgrades = []UpgradeType{UpgradeMaxHP, UpgradeDamage, UpgradeCooldown, UpgradeSpeed, UpgradeMultishot}

// ParseUpgrade maps a wire id to an UpgradeType.
func ParseUpgrade(s string) (UpgradeType, bool) {
	for _, u := range AllUpgrades {
		if string(u) == s {
			return u, true
		}
	}
	return "", false
}

// Player is one connected session's character.
type Player struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	HP    int     `json:"hp"`
	MaxHP int     `json:"maxHp"`
	XP    int     `json:"xp"`
	Level int     `json:"level"`
	Score int     `json:"score"`

	DamageMultiplier  float64 `json:"damageMultiplier"`
	CooldownReduction float64 `json:"cooldownReduction"`
	SpeedMultiplier   float64 `json:"speedMultiplier"`
	BulletsPerShot    int     `json:"bulletsPerShot"`

	IsDead bool `json:"dead"`

	lastShotAt time.Time
	// One entry per unresolved level-up, oldest first.
	pendingChoices [][]UpgradeType
}

// Alive reports whether the player can still move, shoot and be hit.
func (p *Player) Alive() bool {
	return !p.IsDead
}

// PendingUpgrades returns how many level-ups are still waiting for a choice.
func (p *Player) PendingUpgrades() int {
	return len(p.pendingChoices)
}

// Stats returns the upgradeable stat block.
func (p *Player) Stats() PlayerStats {
	return PlayerStats{
		MaxHP:             p.MaxHP,
		HP:                p.HP,
		DamageMultiplier:  p.DamageMultiplier,
		CooldownReduction: p.CooldownReduction,
		SpeedMultiplier:   p.SpeedMultiplier,
		BulletsPerShot:    p.BulletsPerShot,
	}
}

// PlayerStats is the stat block broadcast after an upgrade.
type PlayerStats struct {
	MaxHP             int     `json:"maxHp"`
	HP                int     `json:"hp"`
	DamageMultiplier  float64 `json:"damageMultiplier"`
	CooldownReduction float64 `json:"cooldownReduction"`
	SpeedMultiplier   float64 `json:"speedMultiplier"`
	BulletsPerShot    int     `json:"bulletsPerShot"`
}

// Enemy is a computer-controlled opponent.
type Enemy struct {
	ID      string    `json:"id"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Type    EnemyType `json:"type"`
	HP      float64   `json:"hp"`
	Speed   float64   `json:"speed"`
	Points  int       `json:"points"`
	XPValue int       `json:"xpValue"`
}

// Bullet is a player projectile. Damage is fixed when the bullet is fired.
type Bullet struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"ownerId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
	Damage    float64 `json:"damage"`

	ttl int // Remaining lifetime in ticks
}

// Pickup is an experience orb dropped by a dead enemy.
type Pickup struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value int     `json:"value"`
}

func distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}
