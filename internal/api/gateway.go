package api

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"survivor-arena/internal/config"
	"survivor-arena/internal/game"
	"survivor-arena/internal/protocol"
)

var (
	// ErrInvalidPayload wraps every payload rejected before it reaches the engine.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrRateLimited is returned when a session exceeds its message budget.
	ErrRateLimited = errors.New("rate limited")

	errSessionLeft = errors.New("session left")
)

// Gateway validates inbound messages and maps them to engine calls.
// Invalid references (unknown enemy, pickup) are left to the engine, which
// ignores them; only malformed payloads are rejected here.
type Gateway struct {
	engine        SessionEngine
	maxNameLength int
	maxDamage     float64
}

func NewGateway(engine SessionEngine, cfg config.AppConfig) *Gateway {
	return &Gateway{
		engine:        engine,
		maxNameLength: cfg.Player.MaxNameLength,
		maxDamage:     cfg.Limits.MaxReportedDamage,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Apply runs one inbound message for sessionID
func (g *Gateway) Apply(sessionID string, in protocol.Inbound) error {
	switch in.Type {
	case protocol.MsgJoin:
		g.engine.Join(sessionID)

	case protocol.MsgSetName:
		var name string
		var p protocol.NamePayload
		if err := in.BindString(&name, &p); err != nil {
			return invalid("%v", err)
		}
		if name == "" {
			name = p.Name
		}
		if !utf8.ValidString(name) || utf8.RuneCountInString(name) > g.maxNameLength {
			return invalid("name must be valid text of at most %d characters", g.maxNameLength)
		}
		g.engine.SetName(sessionID, name)

	case protocol.MsgMove:
		var p protocol.MovePayload
		if err := in.Bind(&p); err != nil {
			return invalid("%v", err)
		}
		if !finite(p.X, p.Y) {
			return invalid("move: non-finite position")
		}
		g.engine.Move(sessionID, p.X, p.Y)

	case protocol.MsgShoot:
		var p protocol.ShootPayload
		if err := in.Bind(&p); err != nil {
			return invalid("%v", err)
		}
		if !finite(p.X, p.Y, p.Angle) {
			return invalid("shoot: non-finite value")
		}
		g.engine.Shoot(sessionID, p.X, p.Y, p.Angle)

	case protocol.MsgReportHit:
		var p protocol.HitPayload
		if err := in.Bind(&p); err != nil {
			return invalid("%v", err)
		}
		if p.Target() == "" {
			return invalid("reportHit: missing enemy id")
		}
		if !finite(p.Damage) || p.Damage <= 0 || p.Damage > g.maxDamage {
			return invalid("reportHit: damage must be in (0, %g]", g.maxDamage)
		}
		g.engine.ReportHit(sessionID, p.Target(), p.Damage)

	case protocol.MsgCollectPickup:
		var id string
		var p protocol.PickupPayload
		if err := in.BindString(&id, &p); err != nil {
			return invalid("%v", err)
		}
		if id == "" {
			id = p.Target()
		}
		if id == "" {
			return invalid("collectPickup: missing pickup id")
		}
		g.engine.CollectPickup(sessionID, id)

	case protocol.MsgChooseUpgrade:
		var id string
		var p protocol.UpgradePayload
		if err := in.BindString(&id, &p); err != nil {
			return invalid("%v", err)
		}
		if id == "" {
			id = p.Target()
		}
		u, ok := game.ParseUpgrade(id)
		if !ok {
			return invalid("chooseUpgrade: unknown upgrade %q", id)
		}
		g.engine.ChooseUpgrade(sessionID, u)

	case protocol.MsgDisconnect:
		return errSessionLeft

	default:
		return fmt.Errorf("%w: %q", protocol.ErrUnknownMessage, in.Name)
	}
	return nil
}

// rejectReason maps an inbound error to its metric label
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limit"
	case errors.Is(err, protocol.ErrUnknownMessage):
		return "unknown"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid"
	default:
		return "decode"
	}
}
