package memory

import (
	"sync"

	"drone-spoof-sim/internal/storage"
	"drone-spoof-sim/internal/telemetry"
)

// Backend keeps the most recent records in a bounded ring.
type Backend struct {
	capacity int

	mu      sync.RWMutex
	records []telemetry.Record
	start   int
	events  []storage.FaultEvent
}

// New creates a memory backend holding at most capacity records. capacity
// <= 0 keeps everything.
func New(capacity int) *Backend {
	return &Backend{capacity: capacity}
}

func (b *Backend) Init() error  { return nil }
func (b *Backend) Close() error { return nil }

func (b *Backend) RecordTelemetry(r *telemetry.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity <= 0 || len(b.records) < b.capacity {
		b.records = append(b.records, *r)
		return nil
	}
	b.records[b.start] = *r
	b.start = (b.start + 1) % b.capacity
	return nil
}

func (b *Backend) RecordFaultEvent(e *storage.FaultEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, *e)
	return nil
}

func (b *Backend) Telemetry(limit int) ([]telemetry.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.records)
	ordered := make([]telemetry.Record, 0, n)
	ordered = append(ordered, b.records[b.start:]...)
	ordered = append(ordered, b.records[:b.start]...)

	if limit > 0 && limit < n {
		ordered = ordered[n-limit:]
	}
	return ordered, nil
}

// FaultEvents returns a copy of every recorded event.
func (b *Backend) FaultEvents() []storage.FaultEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]storage.FaultEvent, len(b.events))
	copy(out, b.events)
	return out
}
