package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"drone-spoof-sim/internal/forensics"
	"drone-spoof-sim/internal/geometry/vector"
	"drone-spoof-sim/internal/remediation"
	"drone-spoof-sim/internal/sim"
	"drone-spoof-sim/internal/storage"
	"drone-spoof-sim/internal/telemetry"

	"github.com/rs/zerolog"
)

const maxBody = 4 << 20

type Options struct {
	// Store serves /telemetry and is the default audit input; may be nil
	Store storage.Backend
	Geo   sim.GeoRef
	// Target is used when a remediation payload names none, and is the
	// target audits hold the flight against
	Target vector.Vec2
	// FrameHz is the configured control rate audits expect; 0 means nominal
	FrameHz float64
	Logger  zerolog.Logger
}

type Server struct {
	eng  *sim.Engine
	opts Options
	log  zerolog.Logger
	mux  *http.ServeMux
}

func NewServer(eng *sim.Engine, opts Options) *Server {
	if opts.Target == (vector.Vec2{}) {
		opts.Target = sim.DefaultTarget
	}
	s := &Server{
		eng:  eng,
		opts: opts,
		log:  opts.Logger.With().Str("component", "api").Logger(),
		mux:  http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.health)
	s.mux.HandleFunc("/state", s.state)
	s.mux.HandleFunc("/faults", s.faults)

	s.mux.HandleFunc("/command/key", s.keyCmd)
	s.mux.HandleFunc("/command/fault", s.faultCmd)
	s.mux.HandleFunc("/command/remediate", s.remediateCmd)
	s.mux.HandleFunc("/command/reset", s.resetCmd)

	s.mux.HandleFunc("/stream", s.streamSSE)
	s.mux.HandleFunc("/telemetry", s.telemetry)
	s.mux.HandleFunc("/audit", s.audit)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// state returns the raw snapshot, or the telemetry record with
// ?format=telemetry.
func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	st, err := s.eng.GetState(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestTimeout)
		return
	}
	if r.URL.Query().Get("format") == "telemetry" {
		writeJSON(w, telemetry.Build(st, s.opts.Geo))
		return
	}
	writeJSON(w, st)
}

func (s *Server) faults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, sim.KeyBindings())
}

func (s *Server) keyCmd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	keys := []rune(body.Key)
	if len(keys) != 1 {
		http.Error(w, "key must be a single character", http.StatusBadRequest)
		return
	}
	action, ok := sim.KeyAction(keys[0])
	if !ok {
		http.Error(w, fmt.Sprintf("key %q is not bound", body.Key), http.StatusBadRequest)
		return
	}

	if !s.submit(w, sim.KeyCommand{At: time.Now(), Key: keys[0]}) {
		return
	}
	writeJSON(w, map[string]any{"status": "accepted", "type": "key", "action": action.Kind.String()})
}

func (s *Server) faultCmd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Fault string `json:"fault"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	f, err := sim.ParseFault(body.Fault)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.submit(w, sim.FaultCommand{At: time.Now(), Fault: f}) {
		return
	}
	writeJSON(w, map[string]any{"status": "accepted", "type": "fault", "fault": f.String()})
}

// remediateCmd injects the posted payload, or the configured one when the
// body is empty.
func (s *Server) remediateCmd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cmd := sim.RemediateCommand{At: time.Now()}
	if len(data) > 0 {
		gt, err := s.groundTruth(data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmd.Truth = &gt
	}

	if !s.submit(w, cmd) {
		return
	}
	writeJSON(w, map[string]any{"status": "accepted", "type": "remediate", "truth": cmd.Truth})
}

func (s *Server) resetCmd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if !s.submit(w, sim.ResetCommand{At: time.Now()}) {
		return
	}
	writeJSON(w, map[string]any{"status": "accepted", "type": "reset"})
}

func (s *Server) streamSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	ch, unsub := s.eng.Subscribe(ctx)
	defer unsub()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(telemetry.Build(st, s.opts.Geo))
			if err != nil {
				s.log.Error().Err(err).Msg("marshal telemetry")
				return
			}
			fmt.Fprintf(w, "event: telemetry\n")
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
	}
}

func (s *Server) telemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.stored(limit)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, records)
}

// audit runs the forensic audit over the posted samples, or over the stored
// telemetry when the body is empty. With ?apply=true the report's reset
// parameters are injected straight away.
func (s *Server) audit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var samples []forensics.Sample
	if len(data) > 0 {
		samples, err = forensics.ParseSamples(data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		records, err := s.stored(0)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		samples = forensics.FromRecords(records)
	}

	report, err := forensics.Audit(samples, forensics.UniverseFor(s.opts.Target, s.opts.FrameHz))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	s.log.Info().Str("verdict", report.Verdict).
		Int("failureIndex", report.ForensicReport.FailureIndex).
		Strs("hardware", report.ForensicReport.CompromisedHardware).
		Msg("forensic audit complete")

	if r.URL.Query().Get("apply") == "true" {
		payload := remediation.Payload{
			Verdict:         report.Verdict,
			ResetParameters: &report.SimulationResetParameters,
		}
		gt, err := payload.GroundTruth(s.opts.Target)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !s.submit(w, sim.RemediateCommand{At: time.Now(), Truth: &gt}) {
			return
		}
	}
	writeJSON(w, report)
}

func (s *Server) groundTruth(data []byte) (sim.GroundTruth, error) {
	p, err := remediation.Parse(data)
	if err != nil {
		return sim.GroundTruth{}, err
	}
	return p.GroundTruth(s.opts.Target)
}

func (s *Server) stored(limit int) ([]telemetry.Record, error) {
	if s.opts.Store == nil {
		return nil, errNoStore
	}
	return s.opts.Store.Telemetry(limit)
}

func (s *Server) submit(w http.ResponseWriter, cmd sim.Command) bool {
	if s.eng.Submit(cmd) {
		return true
	}
	http.Error(w, "command queue full", http.StatusServiceUnavailable)
	return false
}

var errNoStore = errors.New("no telemetry store configured")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, forensics.ErrNoSamples):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
