package game

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/time/rate"
)

func TestEventLogWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLog()
	el.StartWriter(&buf)

	el.Record(7, []Event{
		broadcast(EventEnemyKilled, EnemyKilledPayload{ID: "enemy-1", KillerID: "p1", Points: 10}),
		sendTo("p1", EventUpgradeChoicesOffered, UpgradeChoicesPayload{Level: 2, Choices: []UpgradeType{UpgradeDamage}}),
	})
	el.Stop()

	scanner := bufio.NewScanner(&buf)
	var entries []JournalEntry
	for scanner.Scan() {
		var entry JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("bad journal line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}

	if len(entries) != 2 {
		t.Fatalf("journal has %d lines, want 2", len(entries))
	}
	if entries[0].Type != "enemyKilled" || entries[0].Tick != 7 || entries[0].Sequence != 0 {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Target != "p1" || entries[1].Sequence != 1 {
		t.Errorf("second entry = %+v", entries[1])
	}

	var kp EnemyKilledPayload
	if err := json.Unmarshal(entries[0].Payload, &kp); err != nil || kp.KillerID != "p1" {
		t.Errorf("payload round trip: %+v, %v", kp, err)
	}

	if s := el.Stats(); s.Total != 2 || s.Pending != 0 || s.Running {
		t.Errorf("stats after stop = %+v", s)
	}
}

func TestEventLogDropsOldestWhenFull(t *testing.T) {
	el := NewEventLog()
	// Running without a writer goroutine, so nothing drains
	el.running.Store(true)
	el.globalLimiter = rate.NewLimiter(rate.Inf, 0)
	el.typeLimiters[EventBulletMoved] = rate.NewLimiter(rate.Inf, 0)

	events := make([]Event, EventBufferSize+10)
	for i := range events {
		events[i] = broadcast(EventBulletMoved, PositionPayload{ID: "b"})
	}
	el.Record(1, events)

	s := el.Stats()
	if s.Pending != EventBufferSize {
		t.Errorf("pending = %d, want %d", s.Pending, EventBufferSize)
	}
	if s.Dropped != 10 {
		t.Errorf("dropped = %d, want 10", s.Dropped)
	}
}

func TestEventLogRateLimitsPerType(t *testing.T) {
	el := NewEventLog()
	el.running.Store(true)

	spam := make([]Event, 3*MaxEventsPerType/10)
	for i := range spam {
		spam[i] = broadcast(EventEnemyMoved, PositionPayload{ID: "e"})
	}
	el.Record(1, spam)
	el.Record(1, []Event{broadcast(EventWaveCompleted, WaveCompletedPayload{WaveNumber: 1})})

	s := el.Stats()
	if s.Dropped == 0 {
		t.Error("movement spam was never rate limited")
	}
	last := el.buffer[(el.head-1)%EventBufferSize]
	if last.Type != "waveCompleted" {
		t.Errorf("other event types were starved: last entry %q", last.Type)
	}
}

func TestEventLogIgnoredUntilStarted(t *testing.T) {
	el := NewEventLog()
	el.Record(1, []Event{broadcast(EventWaveStarted, WaveStartedPayload{WaveNumber: 1})})
	if s := el.Stats(); s.Total != 0 {
		t.Errorf("recorded %d entries before Start", s.Total)
	}
	el.Stop()
}

func TestEventLogStartFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatalf("Start: %v", err)
	}
	el.Record(1, []Event{broadcast(EventPlayerDisconnected, PlayerRefPayload{ID: "p1"})})
	el.Stop()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if !bytes.Contains(data, []byte(`"playerDisconnected"`)) {
		t.Errorf("journal missing entry: %s", data)
	}

	if err := NewEventLog().Start(""); err == nil {
		t.Error("Start with an empty path succeeded")
	}
}

func TestEventLogFloodDoesNotStarveOtherTypes(t *testing.T) {
	el := NewEventLog()
	// Running without a writer goroutine, so the buffer can be inspected
	el.running.Store(true)

	moves := make([]Event, 5000)
	for i := range moves {
		moves[i] = broadcast(EventEnemyMoved, PositionPayload{ID: "e"})
	}
	el.Record(1, moves)
	el.Record(1, []Event{broadcast(EventEnemyKilled, EnemyKilledPayload{ID: "e", KillerID: "p1", Points: 10})})

	s := el.Stats()
	if s.Dropped == 0 {
		t.Fatal("movement flood was never rate limited")
	}
	last := el.buffer[(el.head-1)%EventBufferSize]
	if last.Type != "enemyKilled" {
		t.Errorf("kill was not journaled after a movement flood: last entry %q, stats %+v", last.Type, s)
	}
	if s.Total+s.Dropped != uint64(len(moves)+1) {
		t.Errorf("total %d + dropped %d != %d recorded", s.Total, s.Dropped, len(moves)+1)
	}
}

func TestEventLogStopRefusesLateEntries(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLog()
	el.StartWriter(&buf)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			el.Record(uint64(i), []Event{broadcast(EventWaveStarted, WaveStartedPayload{WaveNumber: i})})
		}
	}()
	el.Stop()
	<-done

	s := el.Stats()
	if s.Running {
		t.Error("still running after Stop")
	}
	if s.Pending != 0 {
		t.Errorf("%d entries stranded in the buffer after Stop", s.Pending)
	}
	if lines := uint64(bytes.Count(buf.Bytes(), []byte("\n"))); lines != s.Total {
		t.Errorf("wrote %d lines for %d accepted entries", lines, s.Total)
	}

	el.Record(999, []Event{broadcast(EventWaveCompleted, WaveCompletedPayload{WaveNumber: 1})})
	if after := el.Stats(); after.Total != s.Total {
		t.Errorf("entry accepted after Stop: total %d -> %d", s.Total, after.Total)
	}
}
