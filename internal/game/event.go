package game

//go:generate go tool mockgen -destination=./mocks/mock_dispatcher.go -package=mocks . Dispatcher

// EventType enum for outbound event classification
type EventType uint8

const (
	EventUnknown EventType = iota
	EventFullState
	EventPlayerJoined
	EventPlayerMoved
	EventPlayerDisconnected
	EventPlayerDamaged
	EventPlayerDied
	EventPlayerUpgraded
	EventPlayerNameUpdated
	EventScoreUpdated
	EventExperienceUpdated
	EventExperienceShared
	EventUpgradeChoicesOffered
	EventEnemySpawned
	EventEnemyMoved
	EventEnemyDamaged
	EventEnemyKilled
	EventBulletSpawned
	EventBulletMoved
	EventBulletDestroyed
	EventPickupSpawned
	EventPickupCollected
	EventWaveStarted
	EventWaveCompleted
)

var eventNames = [...]string{
	EventUnknown:               "unknown",
	EventFullState:             "fullState",
	EventPlayerJoined:          "playerJoined",
	EventPlayerMoved:           "playerMoved",
	EventPlayerDisconnected:    "playerDisconnected",
	EventPlayerDamaged:         "playerDamaged",
	EventPlayerDied:            "playerDied",
	EventPlayerUpgraded:        "playerUpgraded",
	EventPlayerNameUpdated:     "playerNameUpdated",
	EventScoreUpdated:          "scoreUpdated",
	EventExperienceUpdated:     "experienceUpdated",
	EventExperienceShared:      "experienceShared",
	EventUpgradeChoicesOffered: "upgradeChoicesOffered",
	EventEnemySpawned:          "enemySpawned",
	EventEnemyMoved:            "enemyMoved",
	EventEnemyDamaged:          "enemyDamaged",
	EventEnemyKilled:           "enemyKilled",
	EventBulletSpawned:         "bulletSpawned",
	EventBulletMoved:           "bulletMoved",
	EventBulletDestroyed:       "bulletDestroyed",
	EventPickupSpawned:         "pickupSpawned",
	EventPickupCollected:       "pickupCollected",
	EventWaveStarted:           "waveStarted",
	EventWaveCompleted:         "waveCompleted",
}

// String returns the wire name of the event type.
func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// EventTypes returns every known event type, in declaration order.
func EventTypes() []EventType {
	out := make([]EventType, 0, len(eventNames)-1)
	for t := EventFullState; int(t) < len(eventNames); t++ {
		out = append(out, t)
	}
	return out
}

// Event is one outbound message produced by the engine.
// An empty Target means broadcast; Exclude skips one session of a broadcast.
type Event struct {
	Type    EventType
	Target  string
	Exclude string
	Payload any
}

// Broadcast reports whether the event goes to every session.
func (e Event) Broadcast() bool {
	return e.Target == ""
}

// Deliver reports whether sessionID should receive the event.
func (e Event) Deliver(sessionID string) bool {
	if e.Target != "" {
		return e.Target == sessionID
	}
	return e.Exclude != sessionID
}

func broadcast(t EventType, payload any) Event {
	return Event{Type: t, Payload: payload}
}

func broadcastExcept(exclude string, t EventType, payload any) Event {
	return Event{Type: t, Exclude: exclude, Payload: payload}
}

func sendTo(target string, t EventType, payload any) Event {
	return Event{Type: t, Target: target, Payload: payload}
}

// Dispatcher fans engine events out to sessions.
// Dispatch is called with the engine lock held; it must not block and must
// not call back into the engine.
type Dispatcher interface {
	Dispatch(events []Event)
}

// Typed payloads for each event type

// PositionPayload is shared by every *Moved event.
type PositionPayload struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// PlayerRefPayload names a single player.
type PlayerRefPayload struct {
	ID string `json:"id"`
}

// PlayerDamagedPayload is sent when enemy contact hurts a player.
type PlayerDamagedPayload struct {
	ID       string `json:"id"`
	HP       int    `json:"hp"`
	MaxHP    int    `json:"maxHp"`
	Damage   int    `json:"damage"`
	SourceID string `json:"sourceId"`
}

// PlayerDiedPayload is sent once when a player's hp reaches zero.
type PlayerDiedPayload struct {
	ID       string `json:"id"`
	KilledBy string `json:"killedBy"`
}

// PlayerUpgradedPayload carries the full stat block after an upgrade.
type PlayerUpgradedPayload struct {
	ID      string      `json:"id"`
	Upgrade UpgradeType `json:"upgrade"`
	Stats   PlayerStats `json:"stats"`
}

// PlayerNamePayload is sent after setName.
type PlayerNamePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ScorePayload is sent when a player's score changes.
type ScorePayload struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

// ExperiencePayload is sent after every experience grant.
type ExperiencePayload struct {
	ID          string `json:"id"`
	XP          int    `json:"xp"`
	Level       int    `json:"level"`
	LeveledUp   bool   `json:"leveledUp"`
	NextLevelXP int    `json:"nextLevelXp"`
}

// ExperienceSharedPayload summarizes one cooperative grant.
type ExperienceSharedPayload struct {
	CollectorID string `json:"collectorId"`
	Value       int    `json:"value"`
	SharedValue int    `json:"sharedValue"`
	Recipients  int    `json:"recipients"`
}

// UpgradeChoicesPayload is sent only to the player who leveled up.
type UpgradeChoicesPayload struct {
	Level   int           `json:"level"`
	Choices []UpgradeType `json:"choices"`
	Pending int           `json:"pending"`
}

// EnemyDamagedPayload is sent when an enemy survives a hit.
type EnemyDamagedPayload struct {
	ID         string  `json:"id"`
	HP         float64 `json:"hp"`
	Damage     float64 `json:"damage"`
	AttackerID string  `json:"attackerId"`
}

// EnemyKilledPayload names the killer. Contact kills carry no points.
type EnemyKilledPayload struct {
	ID       string    `json:"id"`
	Type     EnemyType `json:"type"`
	KillerID string    `json:"killerId"`
	Points   int       `json:"points"`
	Contact  bool      `json:"contact,omitempty"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
}

// Reasons a bullet can be destroyed.
const (
	BulletHit         = "hit"
	BulletOutOfBounds = "outOfBounds"
	BulletExpired     = "expired"
)

// BulletDestroyedPayload is sent exactly once per bullet.
type BulletDestroyedPayload struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// PickupCollectedPayload is sent when a player consumes a pickup.
type PickupCollectedPayload struct {
	ID       string `json:"id"`
	PlayerID string `json:"playerId"`
	Value    int    `json:"value"`
}

// WaveStartedPayload announces a wave and its composition.
type WaveStartedPayload struct {
	WaveNumber   int               `json:"waveNumber"`
	Composition  map[EnemyType]int `json:"composition"`
	TotalPlanned int               `json:"totalPlanned"`
	Elite        bool              `json:"elite,omitempty"`
}

// WaveCompletedPayload is sent one tick after the last enemy dies.
type WaveCompletedPayload struct {
	WaveNumber int `json:"waveNumber"`
	Killed     int `json:"killed"`
	NextWave   int `json:"nextWave"`
}
