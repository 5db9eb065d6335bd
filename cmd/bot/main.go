// Command bot connects a swarm of scripted players for load and soak tests.
//
//	BOT_SERVER=ws://localhost:3000/ws BOT_COUNT=20 BOT_CODEC=msgpack go run ./cmd/bot
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"survivor-arena/internal/game"
	"survivor-arena/internal/protocol"
)

const (
	actInterval    = 100 * time.Millisecond
	reconnectDelay = 2 * time.Second
	fleeDistance   = 120
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load(".env")

	server := getEnv("BOT_SERVER", "ws://localhost:3000/ws")
	codecName := getEnv("BOT_CODEC", "json")
	count, err := strconv.Atoi(getEnv("BOT_COUNT", "5"))
	if err != nil || count <= 0 {
		log.Fatalf("❌ invalid BOT_COUNT: %q", os.Getenv("BOT_COUNT"))
	}
	codec, ok := protocol.Lookup(codecName)
	if !ok {
		log.Fatalf("❌ unknown BOT_CODEC: %q", codecName)
	}

	url := server
	if codec.Name() != "json" {
		url += "?codec=" + codec.Name()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("🤖 Starting %d bots against %s (%s)", count, url, codec.Name())

	g, ctx := errgroup.WithContext(ctx)
	for i := range count {
		g.Go(func() error {
			runBot(ctx, url, codec, i)
			return nil
		})
	}
	g.Wait()
	log.Println("🤖 All bots stopped")
}

// runBot keeps one bot connected until ctx ends
func runBot(ctx context.Context, url string, codec protocol.Codec, n int) {
	for ctx.Err() == nil {
		b := newBot(n, codec)
		err := b.session(ctx, url)
		if ctx.Err() != nil {
			return
		}
		log.Printf("🤖 bot-%d session ended, reconnecting: %v", n, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

type bot struct {
	n     int
	codec protocol.Codec
	rng   *rand.Rand

	mu      sync.Mutex
	self    string
	x, y    float64
	dead    bool
	enemies map[string]game.PositionPayload
	offers  [][]game.UpgradeType
}

func newBot(n int, codec protocol.Codec) *bot {
	return &bot{
		n:       n,
		codec:   codec,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano() + int64(n))),
		enemies: make(map[string]game.PositionPayload),
	}
}

func (b *bot) session(ctx context.Context, url string) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.readLoop(ctx, conn) })
	g.Go(func() error { return b.actLoop(ctx, conn) })

	err = g.Wait()
	conn.Close(websocket.StatusNormalClosure, "bot leaving")
	return err
}

func (b *bot) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		ev, err := b.codec.DecodeEvent(frame)
		if err != nil {
			continue
		}
		b.apply(ev)
	}
}

// apply tracks just enough state to steer and shoot
func (b *bot) apply(ev protocol.Outbound) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Event {
	case game.EventFullState.String():
		var st game.FullState
		if ev.Bind(&st) != nil {
			return
		}
		b.self = st.SelfID
		for _, p := range st.Players {
			if p.ID == b.self {
				b.x, b.y = p.X, p.Y
			}
		}
		for _, e := range st.Enemies {
			b.enemies[e.ID] = game.PositionPayload{ID: e.ID, X: e.X, Y: e.Y}
		}
		log.Printf("🤖 bot-%d joined as %s", b.n, b.self)

	case game.EventEnemySpawned.String():
		var e game.Enemy
		if ev.Bind(&e) == nil {
			b.enemies[e.ID] = game.PositionPayload{ID: e.ID, X: e.X, Y: e.Y}
		}

	case game.EventEnemyMoved.String():
		var p game.PositionPayload
		if ev.Bind(&p) == nil {
			b.enemies[p.ID] = p
		}

	case game.EventEnemyKilled.String():
		var p game.EnemyKilledPayload
		if ev.Bind(&p) == nil {
			delete(b.enemies, p.ID)
		}

	case game.EventPlayerDied.String():
		var p game.PlayerDiedPayload
		if ev.Bind(&p) == nil && p.ID == b.self {
			b.dead = true
			log.Printf("💀 bot-%d died", b.n)
		}

	case game.EventUpgradeChoicesOffered.String():
		var p game.UpgradeChoicesPayload
		if ev.Bind(&p) == nil && len(p.Choices) > 0 {
			b.offers = append(b.offers, p.Choices)
		}
	}
}

// nearest returns the closest tracked enemy
func (b *bot) nearest() (game.PositionPayload, float64, bool) {
	var best game.PositionPayload
	bestDist := math.Inf(1)
	for _, e := range b.enemies {
		if d := math.Hypot(e.X-b.x, e.Y-b.y); d < bestDist {
			best, bestDist = e, d
		}
	}
	return best, bestDist, !math.IsInf(bestDist, 1)
}

func (b *bot) send(ctx context.Context, conn *websocket.Conn, t protocol.MessageType, data any) error {
	frame, err := b.codec.Encode(string(t), data)
	if err != nil {
		return err
	}
	kind := websocket.MessageText
	if b.codec.Binary() {
		kind = websocket.MessageBinary
	}
	if err := conn.Write(ctx, kind, frame); err != nil {
		return fmt.Errorf("write %s: %w", t, err)
	}
	return nil
}

func (b *bot) actLoop(ctx context.Context, conn *websocket.Conn) error {
	if err := b.send(ctx, conn, protocol.MsgSetName, protocol.NamePayload{Name: fmt.Sprintf("bot-%d", b.n)}); err != nil {
		return err
	}

	ticker := time.NewTicker(actInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			return errors.New("player died")
		}
		var choice game.UpgradeType
		if len(b.offers) > 0 {
			offer := b.offers[0]
			b.offers = b.offers[1:]
			choice = offer[b.rng.Intn(len(offer))]
		}
		target, dist, hasTarget := b.nearest()
		if hasTarget && dist < fleeDistance {
			// Back off along the line from the enemy
			b.x += (b.x - target.X) / dist * 4
			b.y += (b.y - target.Y) / dist * 4
		} else {
			b.x += (b.rng.Float64() - 0.5) * 8
			b.y += (b.rng.Float64() - 0.5) * 8
		}
		x, y := b.x, b.y
		b.mu.Unlock()

		if choice != "" {
			if err := b.send(ctx, conn, protocol.MsgChooseUpgrade, protocol.UpgradePayload{UpgradeID: string(choice)}); err != nil {
				return err
			}
		}
		if err := b.send(ctx, conn, protocol.MsgMove, protocol.MovePayload{X: x, Y: y}); err != nil {
			return err
		}
		if hasTarget {
			angle := math.Atan2(target.Y-y, target.X-x)
			if err := b.send(ctx, conn, protocol.MsgShoot, protocol.ShootPayload{X: x, Y: y, Angle: angle}); err != nil {
				return err
			}
		}
	}
}
