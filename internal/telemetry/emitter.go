package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"drone-spoof-sim/internal/sim"
)

type Style string

const (
	// StyleJSONLines writes one compact JSON object per line.
	StyleJSONLines Style = "jsonl"
	// StyleStream writes a [STREAM_START] marker followed by indented JSON.
	StyleStream Style = "stream"
)

const StreamMarker = "[STREAM_START]"

// Emitter writes at most one record per interval to an append-only stream.
type Emitter struct {
	mu       sync.Mutex
	w        io.Writer
	style    Style
	interval time.Duration
	geo      sim.GeoRef
	last     time.Time
}

func NewEmitter(w io.Writer, style Style, interval time.Duration, geo sim.GeoRef) *Emitter {
	if style == "" {
		style = StyleJSONLines
	}
	return &Emitter{w: w, style: style, interval: interval, geo: geo}
}

// Offer emits the snapshot if the interval has elapsed since the last
// emission, measured on snapshot time. It reports whether a record was written.
func (e *Emitter) Offer(st sim.DroneState) (Record, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.last.IsZero() && st.TS.Sub(e.last) < e.interval {
		return Record{}, false, nil
	}
	r := Build(st, e.geo)
	if err := e.write(r); err != nil {
		return r, false, err
	}
	e.last = st.TS
	return r, true, nil
}

// Write emits r unconditionally.
func (e *Emitter) Write(r Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.write(r)
}

func (e *Emitter) write(r Record) error {
	switch e.style {
	case StyleStream:
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal telemetry: %w", err)
		}
		_, err = fmt.Fprintf(e.w, "\n%s\n%s\n", StreamMarker, b)
		return err
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal telemetry: %w", err)
		}
		_, err = fmt.Fprintf(e.w, "%s\n", b)
		return err
	}
}

// Sink receives every record the Pump emits.
type Sink interface {
	RecordTelemetry(r *Record) error
}

// Pump drains snapshots into the emitter until ctx is done or the channel
// closes. Every emitted record is also handed to sink, if set; sink errors
// are passed to onErr and do not stop the pump.
func Pump(ctx context.Context, snapshots <-chan sim.DroneState, e *Emitter, sink Sink, onErr func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-snapshots:
			if !ok {
				return
			}
			r, emitted, err := e.Offer(st)
			if err != nil && onErr != nil {
				onErr(err)
			}
			if !emitted || sink == nil {
				continue
			}
			if err := sink.RecordTelemetry(&r); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
