package game

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize    = 1024                   // Circular buffer size
	MaxEventsPerSec    = 10000                  // Global rate limit
	MaxEventsPerType   = 2000                   // Per event type, keeps movement spam from drowning the rest
	BatchFlushSize     = 64                     // Events per batch write
	BatchFlushInterval = 100 * time.Millisecond // How often to flush
)

// JournalVersion is bumped whenever JournalEntry changes shape.
const JournalVersion uint8 = 1

// JournalEntry is one line of the JSONL event journal.
type JournalEntry struct {
	Version   uint8           `json:"version"`
	Sequence  uint64          `json:"sequence"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Tick      uint64          `json:"tick"`
	Type      string          `json:"type"`
	Target    string          `json:"target,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// EventLog is a bounded, rate-limited journal of dispatched events.
// Record never blocks the engine: when the writer falls behind, the oldest
// buffered entries are dropped.
type EventLog struct {
	mu      sync.Mutex
	buffer  [EventBufferSize]JournalEntry
	head    uint64 // next sequence to write
	tail    uint64 // next sequence to flush
	nowFunc func() time.Time

	globalLimiter *rate.Limiter
	typeLimiters  map[EventType]*rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	out    io.Writer
	closer io.Closer

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
}

// NewEventLog creates a journal. Nothing is recorded until Start.
func NewEventLog() *EventLog {
	return &EventLog{
		nowFunc:       time.Now,
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		typeLimiters:  make(map[EventType]*rate.Limiter),
		stopChan:      make(chan struct{}),
	}
}

// Start opens path for append and begins the async writer.
func (el *EventLog) Start(path string) error {
	if path == "" {
		return fmt.Errorf("event log: empty path")
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("event log: open %s: %w", path, err)
	}
	el.StartWriter(file)
	el.closer = file
	return nil
}

// StartWriter begins the async writer on an arbitrary destination.
func (el *EventLog) StartWriter(w io.Writer) {
	if el.running.Swap(true) {
		return
	}
	el.out = w
	el.writerWg.Add(1)
	go el.writerLoop()
}

// Stop flushes what is buffered and closes the file.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		// Refuse new entries before the final flush so none are stranded
		el.mu.Lock()
		wasRunning := el.running.Swap(false)
		el.mu.Unlock()
		if !wasRunning {
			return
		}
		close(el.stopChan)
		el.writerWg.Wait()

		if el.closer != nil {
			el.closer.Close()
		}
	})
}

// Record journals every event in the batch produced at tick.
func (el *EventLog) Record(tick uint64, events []Event) {
	if !el.running.Load() {
		return
	}
	now := el.nowFunc().UnixNano()
	for _, ev := range events {
		el.record(now, tick, ev)
	}
}

func (el *EventLog) record(now int64, tick uint64, ev Event) bool {
	// Type first: a refused flood must not spend the shared budget
	if !el.typeLimiter(ev.Type).Allow() || !el.globalLimiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		el.droppedCount.Add(1)
		return false
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if !el.running.Load() {
		el.droppedCount.Add(1)
		return false
	}

	// Drop oldest (rolling window) when the writer is behind
	if el.head-el.tail >= EventBufferSize {
		el.tail++
		el.droppedCount.Add(1)
	}
	el.buffer[el.head%EventBufferSize] = JournalEntry{
		Version:   JournalVersion,
		Sequence:  el.head,
		Timestamp: now,
		Tick:      tick,
		Type:      ev.Type.String(),
		Target:    ev.Target,
		Payload:   payload,
	}
	el.head++
	el.totalCount.Add(1)
	return true
}

// typeLimiter is only called from Record, which the engine serializes.
func (el *EventLog) typeLimiter(t EventType) *rate.Limiter {
	if l, ok := el.typeLimiters[t]; ok {
		return l
	}
	l := rate.NewLimiter(MaxEventsPerType, MaxEventsPerType/10)
	el.typeLimiters[t] = l
	return l
}

// writerLoop batches and writes entries asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]JournalEntry, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			// Final flush
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// collectBatch reads available entries from the circular buffer
func (el *EventLog) collectBatch(batch []JournalEntry) []JournalEntry {
	el.mu.Lock()
	defer el.mu.Unlock()

	for ; el.tail < el.head && len(batch) < BatchFlushSize; el.tail++ {
		batch = append(batch, el.buffer[el.tail%EventBufferSize])
	}
	return batch
}

// flushBatch writes entries as newline-delimited JSON
func (el *EventLog) flushBatch(batch []JournalEntry) {
	enc := json.NewEncoder(el.out)
	for _, entry := range batch {
		if err := enc.Encode(entry); err != nil {
			el.droppedCount.Add(1)
		}
	}
}

// EventLogStats are the journal counters exposed by the stats endpoint.
type EventLogStats struct {
	Total   uint64 `json:"total"`
	Dropped uint64 `json:"dropped"`
	Pending uint64 `json:"pending"`
	Running bool   `json:"running"`
}

// Stats returns journal counters for monitoring.
func (el *EventLog) Stats() EventLogStats {
	el.mu.Lock()
	pending := el.head - el.tail
	el.mu.Unlock()

	return EventLogStats{
		Total:   el.totalCount.Load(),
		Dropped: el.droppedCount.Load(),
		Pending: pending,
		Running: el.running.Load(),
	}
}
