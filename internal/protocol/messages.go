// Package protocol defines the wire envelope exchanged with game sessions and
// the codecs that frame it.
package protocol

import "errors"

var (
	// ErrEmptyFrame is returned when a frame carries no bytes.
	ErrEmptyFrame = errors.New("protocol: empty frame")

	// ErrUnknownMessage is returned for message names outside the inbound table.
	ErrUnknownMessage = errors.New("protocol: unknown message")
)

// MessageType is the canonical name of an inbound message.
type MessageType string

// ============================================================================
// Client → Server
// ============================================================================

const (
	MsgJoin          MessageType = "join"
	MsgSetName       MessageType = "setName"
	MsgMove          MessageType = "move"
	MsgShoot         MessageType = "shoot"
	MsgReportHit     MessageType = "reportHit"
	MsgCollectPickup MessageType = "collectPickup"
	MsgChooseUpgrade MessageType = "chooseUpgrade"
	MsgDisconnect    MessageType = "disconnect"
)

// inboundNames maps every accepted wire name to its canonical type.
// The second group are the names older browser clients still send.
var inboundNames = map[string]MessageType{
	"join":          MsgJoin,
	"setName":       MsgSetName,
	"move":          MsgMove,
	"shoot":         MsgShoot,
	"reportHit":     MsgReportHit,
	"collectPickup": MsgCollectPickup,
	"chooseUpgrade": MsgChooseUpgrade,
	"disconnect":    MsgDisconnect,

	"setPlayerName":  MsgSetName,
	"playerMovement": MsgMove,
	"playerShoot":    MsgShoot,
	"enemyHit":       MsgReportHit,
	"collectXpOrb":   MsgCollectPickup,
	"upgrade":        MsgChooseUpgrade,
}

// ParseMessageType resolves a wire name, including legacy aliases.
func ParseMessageType(name string) (MessageType, bool) {
	t, ok := inboundNames[name]
	return t, ok
}

// NamePayload carries setName. Legacy clients send the bare string instead.
type NamePayload struct {
	Name string `json:"name"`
}

// MovePayload carries a client-reported position.
type MovePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ShootPayload carries the muzzle position and aim angle in radians.
type ShootPayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

// HitPayload carries a client-detected bullet hit.
type HitPayload struct {
	EnemyID string  `json:"enemyId,omitempty"`
	ID      string  `json:"id,omitempty"`
	Damage  float64 `json:"damage"`
}

// Target returns the enemy id from whichever field the client filled.
func (p HitPayload) Target() string {
	if p.EnemyID != "" {
		return p.EnemyID
	}
	return p.ID
}

// PickupPayload carries collectPickup. Legacy clients send the bare id.
type PickupPayload struct {
	PickupID string `json:"pickupId,omitempty"`
	ID       string `json:"id,omitempty"`
}

func (p PickupPayload) Target() string {
	if p.PickupID != "" {
		return p.PickupID
	}
	return p.ID
}

// UpgradePayload carries chooseUpgrade. Legacy clients send the bare id.
type UpgradePayload struct {
	UpgradeID string `json:"upgradeId,omitempty"`
	ID        string `json:"id,omitempty"`
}

func (p UpgradePayload) Target() string {
	if p.UpgradeID != "" {
		return p.UpgradeID
	}
	return p.ID
}

// ============================================================================
// Server → Client
// ============================================================================

// ErrorPayload is sent to a session whose message was rejected.
type ErrorPayload struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// EventError is the outbound name for ErrorPayload.
const EventError = "error"
