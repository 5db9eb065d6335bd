package config

import (
	"reflect"
	"testing"
	"time"
)

func TestDefaultsMatchArena(t *testing.T) {
	cfg := Default()

	if cfg.World.Width != 1600 || cfg.World.Height != 1200 || cfg.World.BorderOffset != 50 {
		t.Errorf("world = %+v", cfg.World)
	}
	if got := cfg.Simulation.TickInterval(); got != time.Second/30 {
		t.Errorf("tick interval = %v", got)
	}
	for _, name := range []string{"basic", "fast", "boss", "elite"} {
		if _, ok := cfg.Enemies[name]; !ok {
			t.Errorf("missing enemy stats for %s", name)
		}
	}
	if cfg.Waves.InterWaveDelay != 25*time.Second {
		t.Errorf("wave delay = %v, want 25s", cfg.Waves.InterWaveDelay)
	}
	if cfg.Enemies["basic"].HP != 3 {
		t.Errorf("basic hp = %v, want 3", cfg.Enemies["basic"].HP)
	}
	if !cfg.Observability.DebugEnabled || cfg.Observability.EventLogPath != "" {
		t.Errorf("observability = %+v", cfg.Observability)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("TICK_RATE", "60")
	t.Setenv("WAVE_DELAY_MS", "0")
	t.Setenv("MAX_PLAYERS", "8")
	t.Setenv("DISABLE_DEBUG_SERVER", "true")
	t.Setenv("EVENT_LOG_PATH", "/tmp/events.jsonl")

	cfg := Load()

	if cfg.Server.Port != 8081 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.Server.AllowedOrigins, want) {
		t.Errorf("origins = %v, want %v", cfg.Server.AllowedOrigins, want)
	}
	if cfg.Simulation.TickInterval() != time.Second/60 {
		t.Errorf("tick interval = %v", cfg.Simulation.TickInterval())
	}
	if cfg.Waves.InterWaveDelay != 0 {
		t.Errorf("wave delay = %v, want 0", cfg.Waves.InterWaveDelay)
	}
	if cfg.Limits.MaxPlayers != 8 {
		t.Errorf("max players = %d", cfg.Limits.MaxPlayers)
	}
	if cfg.Observability.DebugEnabled || cfg.Observability.EventLogPath != "/tmp/events.jsonl" {
		t.Errorf("observability = %+v", cfg.Observability)
	}
}

func TestLoadIgnoresBadValues(t *testing.T) {
	t.Setenv("TICK_RATE", "fast")
	t.Setenv("PORT", "-1")
	t.Setenv("WORLD_WIDTH", "0")

	cfg := Load()
	def := Default()

	if cfg.Simulation.TickRate != def.Simulation.TickRate {
		t.Errorf("tick rate = %d", cfg.Simulation.TickRate)
	}
	if cfg.Server.Port != def.Server.Port {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.World.Width != def.World.Width {
		t.Errorf("width = %v", cfg.World.Width)
	}
}
