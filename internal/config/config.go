// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for world, simulation and balance settings.
//
// Everything here is static startup configuration: it is read once in main
// and handed to the engine and the API layer. Nothing mutates it at runtime.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// WORLD CONFIGURATION
// =============================================================================

// WorldConfig describes the playable rectangle.
type WorldConfig struct {
	Width        float64 // World width in world units
	Height       float64 // World height in world units
	BorderOffset float64 // Margin outside the bounds used for spawning and bullet culling
}

// DefaultWorld returns the default world bounds.
func DefaultWorld() WorldConfig {
	return WorldConfig{
		Width:        1600,
		Height:       1200,
		BorderOffset: 50,
	}
}

// WorldFromEnv returns world configuration with environment variable overrides.
func WorldFromEnv() WorldConfig {
	cfg := DefaultWorld()

	if w := getEnvFloat("WORLD_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvFloat("WORLD_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}

	return cfg
}

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimulationConfig holds the fixed-step simulation constants.
type SimulationConfig struct {
	TickRate                   int           // Ticks per second (~33ms at 30)
	BulletSpeed                float64       // Units per tick
	BulletHitRadius            float64       // Bullet <-> enemy hit distance
	PlayerEnemyCollisionRadius float64       // Player <-> enemy contact distance
	ContactDamage              int           // Damage a player takes on enemy contact
	BulletLifetimeTicks        int           // Bullets expire after this many ticks
	BaseBulletDamage           float64       // Damage before the shooter's multiplier
	BaseShotCooldown           time.Duration // Minimum time between shots before cooldownReduction
	MultishotSpread            float64       // Radians between fanned bullets
	GridCellSize               float64       // Broad-phase grid cell size
}

// DefaultSimulation returns the default simulation configuration.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		TickRate:                   30,
		BulletSpeed:                10,
		BulletHitRadius:            30,
		PlayerEnemyCollisionRadius: 40,
		ContactDamage:              1,
		BulletLifetimeTicks:        150, // 5 seconds at 30 TPS
		BaseBulletDamage:           1,
		BaseShotCooldown:           250 * time.Millisecond,
		MultishotSpread:            0.15,
		GridCellSize:               100,
	}
}

// SimulationFromEnv returns simulation configuration with environment variable overrides.
func SimulationFromEnv() SimulationConfig {
	cfg := DefaultSimulation()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}

	return cfg
}

// TickInterval returns the nominal duration of one tick.
func (c SimulationConfig) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.TickRate)
}

// =============================================================================
// PLAYER CONFIGURATION
// =============================================================================

// PlayerConfig holds initial stats and upgrade magnitudes.
type PlayerConfig struct {
	SpawnX, SpawnY float64
	MaxHP          int
	DefaultName    string
	MaxNameLength  int

	UpgradeChoices int                // Size of the offered subset on level-up
	UpgradeWeights map[string]float64 // Relative weight per upgrade id

	MaxHPIncrease      int
	HPUpgradeFullHeal  bool
	DamageIncrease     float64
	CooldownDecrease   float64
	MinCooldown        float64 // Floor for cooldownReduction
	SpeedIncrease      float64
	MaxSpeedMultiplier float64
	BulletsIncrease    int
	MaxBulletsPerShot  int
}

// DefaultPlayer returns the default player configuration.
func DefaultPlayer() PlayerConfig {
	return PlayerConfig{
		SpawnX:        800,
		SpawnY:        600,
		MaxHP:         5,
		DefaultName:   "Player",
		MaxNameLength: 24,

		UpgradeChoices: 3,
		UpgradeWeights: map[string]float64{
			"hp":        1.0,
			"damage":    1.0,
			"cooldown":  1.0,
			"speed":     0.8,
			"multishot": 0.5, // Rarer, it scales hardest
		},

		MaxHPIncrease:      3,
		HPUpgradeFullHeal:  true,
		DamageIncrease:     0.5,
		CooldownDecrease:   0.3,
		MinCooldown:        0.3,
		SpeedIncrease:      0.3,
		MaxSpeedMultiplier: 3.0,
		BulletsIncrease:    1,
		MaxBulletsPerShot:  7,
	}
}

// =============================================================================
// ENEMY CONFIGURATION
// =============================================================================

// EnemyStats are the base stats of one enemy type before wave scaling.
type EnemyStats struct {
	HP      float64
	Speed   float64
	Points  int
	XPValue int
}

// EnemyConfig maps enemy type ids to their stats.
type EnemyConfig map[string]EnemyStats

// DefaultEnemies returns the default enemy roster.
func DefaultEnemies() EnemyConfig {
	return EnemyConfig{
		"basic": {HP: 3, Speed: 1, Points: 10, XPValue: 5},
		"fast":  {HP: 2, Speed: 2, Points: 15, XPValue: 7},
		"boss":  {HP: 30, Speed: 0.7, Points: 100, XPValue: 50},
		"elite": {HP: 60, Speed: 1.2, Points: 300, XPValue: 120},
	}
}

// =============================================================================
// EXPERIENCE CONFIGURATION
// =============================================================================

// XPConfig holds pickup and leveling constants.
type XPConfig struct {
	CollectionRadius         float64 // Base pickup radius
	CollectionRadiusPerLevel float64 // Added per level above 1
	CurveK                   float64 // requiredXp(L) = floor(K * L^P)
	CurveP                   float64
}

// DefaultXP returns the default experience configuration.
func DefaultXP() XPConfig {
	return XPConfig{
		CollectionRadius:         50,
		CollectionRadiusPerLevel: 2,
		CurveK:                   80,
		CurveP:                   1.3,
	}
}

// =============================================================================
// WAVE CONFIGURATION
// =============================================================================

// WaveConfig holds wave pacing and composition constants.
type WaveConfig struct {
	InterWaveDelay   time.Duration // WaitingToStart -> Spawning
	SpawnDelay       time.Duration // Between consecutive spawns
	GroupSize        int           // Spawns per batch
	GroupDelay       time.Duration // Extra delay between batches
	BossLeadTime     time.Duration // Extra delay before boss/elite spawns
	BossEvery        int           // A boss joins every Nth wave
	EliteEvery       int           // Every Nth wave is an elite-only wave
	HPScalingPerWave float64       // +10% hp per wave
	SurroundRadius   float64       // Distance from the nearest player for surround placement
	BaseEnemies      int
	EnemiesPerWave   int
}

// DefaultWaves returns the default wave configuration.
func DefaultWaves() WaveConfig {
	return WaveConfig{
		InterWaveDelay:   25 * time.Second,
		SpawnDelay:       800 * time.Millisecond,
		GroupSize:        4,
		GroupDelay:       1500 * time.Millisecond,
		BossLeadTime:     2 * time.Second,
		BossEvery:        4,
		EliteEvery:       5,
		HPScalingPerWave: 0.1,
		SurroundRadius:   300,
		BaseEnemies:      5,
		EnemiesPerWave:   2,
	}
}

// WavesFromEnv returns wave configuration with environment variable overrides.
func WavesFromEnv() WaveConfig {
	cfg := DefaultWaves()

	if ms := getEnvInt("WAVE_DELAY_MS", -1); ms >= 0 {
		cfg.InterWaveDelay = time.Duration(ms) * time.Millisecond
	}
	if ms := getEnvInt("SPAWN_DELAY_MS", -1); ms >= 0 {
		cfg.SpawnDelay = time.Duration(ms) * time.Millisecond
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits controls DoS protection and performance limits.
type ResourceLimits struct {
	MaxPlayers               int     // Hard cap on connected players
	MaxBullets               int     // Hard cap on live bullets
	MaxEnemies               int     // Hard cap on live enemies
	MaxPickups               int     // Hard cap on live pickups
	MaxWSConnections         int     // Total WebSocket connections
	MaxWSConnectionsPerIP    int     // WebSocket connections per IP
	SessionMessagesPerSecond float64 // Inbound messages per session
	SessionMessageBurst      int
	MaxReportedDamage        float64 // Upper bound on reportHit damage
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxPlayers:               64,
		MaxBullets:               2000,
		MaxEnemies:               1000,
		MaxPickups:               2000,
		MaxWSConnections:         500,
		MaxWSConnectionsPerIP:    10,
		SessionMessagesPerSecond: 60,
		SessionMessageBurst:      120,
		MaxReportedDamage:        1000,
	}
}

// LimitsFromEnv returns resource limits with environment variable overrides.
func LimitsFromEnv() ResourceLimits {
	cfg := DefaultLimits()

	if mp := getEnvInt("MAX_PLAYERS", 0); mp > 0 {
		cfg.MaxPlayers = mp
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 3000,
		AllowedOrigins: []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		},
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	return cfg
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig configures the debug server and event journal.
type ObservabilityConfig struct {
	DebugEnabled bool
	DebugAddr    string // MUST stay on localhost in production
	EventLogPath string // Empty disables the journal
}

func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		DebugEnabled: true,
		DebugAddr:    "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv returns observability settings from the environment.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.DebugEnabled = false
	}
	cfg.DebugAddr = getEnvString("DEBUG_ADDR", cfg.DebugAddr)
	cfg.EventLogPath = os.Getenv("EVENT_LOG_PATH")

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server        ServerConfig
	World         WorldConfig
	Simulation    SimulationConfig
	Player        PlayerConfig
	Enemies       EnemyConfig
	XP            XPConfig
	Waves         WaveConfig
	Limits        ResourceLimits
	Observability ObservabilityConfig
}

// Default returns the complete configuration without environment overrides.
// Tests build on this so they never depend on the host environment.
func Default() AppConfig {
	return AppConfig{
		Server:        DefaultServer(),
		World:         DefaultWorld(),
		Simulation:    DefaultSimulation(),
		Player:        DefaultPlayer(),
		Enemies:       DefaultEnemies(),
		XP:            DefaultXP(),
		Waves:         DefaultWaves(),
		Limits:        DefaultLimits(),
		Observability: DefaultObservability(),
	}
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server:        ServerFromEnv(),
		World:         WorldFromEnv(),
		Simulation:    SimulationFromEnv(),
		Player:        DefaultPlayer(),
		Enemies:       DefaultEnemies(),
		XP:            DefaultXP(),
		Waves:         WavesFromEnv(),
		Limits:        LimitsFromEnv(),
		Observability: ObservabilityFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
