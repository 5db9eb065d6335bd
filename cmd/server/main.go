package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"survivor-arena/internal/api"
	"survivor-arena/internal/config"
	"survivor-arena/internal/game"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  SURVIVOR ARENA - GO ENGINE")
	log.Println("🎮 ================================")

	cfg := config.Load()
	log.Printf("🎮 Config: %d TPS, %.0fx%.0f world, wave delay %s",
		cfg.Simulation.TickRate, cfg.World.Width, cfg.World.Height, cfg.Waves.InterWaveDelay)
	log.Printf("🛡️ Resource limits: %d players, %d enemies, %d bullets, %d pickups",
		cfg.Limits.MaxPlayers, cfg.Limits.MaxEnemies, cfg.Limits.MaxBullets, cfg.Limits.MaxPickups)

	var opts []game.Option
	eventLog := game.NewEventLog()
	if path := cfg.Observability.EventLogPath; path != "" {
		if err := eventLog.Start(path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", path)
			opts = append(opts, game.WithEventLog(eventLog))
		}
	}
	defer eventLog.Stop()

	engine := game.NewEngine(cfg, opts...)
	defer engine.Close()

	server := api.NewServer(engine, cfg)
	debug := api.NewDebugServer(cfg.Observability)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	if debug != nil {
		g.Go(func() error {
			if err := debug.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("⚠️ Debug server error: %v", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Println("🛑 Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if debug != nil {
			debug.Shutdown(shutdownCtx)
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("❌ %v", err)
	}
	log.Println("👋 Goodbye")
}
