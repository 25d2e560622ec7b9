package sim

import (
	"context"
	"time"

	"drone-spoof-sim/internal/metrics"

	"github.com/rs/zerolog"
)

type stateReq struct {
	reply chan DroneState
}

type subscribeReq struct {
	ch chan DroneState
}

// Event kinds reported to Config.OnEvent.
const (
	EventInject    = "inject"
	EventRemediate = "remediate"
	EventReset     = "reset"
)

// Event is a change to the drone's integrity made by a command.
type Event struct {
	Time   time.Time
	Tick   uint64
	Kind   string
	Fault  string
	Active []string
}

type Engine struct {
	sim *Simulation

	// Actor channels
	cmdCh       chan Command
	stateReqCh  chan stateReq
	subscribeCh chan subscribeReq
	unsubCh     chan chan DroneState

	log     zerolog.Logger
	metrics *metrics.Instruments
	onEvent func(Event)
}

type Config struct {
	Options

	Logger  zerolog.Logger
	Metrics *metrics.Instruments
	// OnEvent, if set, is called from the engine goroutine after every
	// injection, remediation and reset. It must not block.
	OnEvent func(Event)
}

func New(cfg Config) *Engine {
	return &Engine{
		sim:         NewSimulation(cfg.Options),
		cmdCh:       make(chan Command, 128),
		stateReqCh:  make(chan stateReq, 32),
		subscribeCh: make(chan subscribeReq, 32),
		unsubCh:     make(chan chan DroneState, 32),
		log:         cfg.Logger.With().Str("component", "engine").Logger(),
		metrics:     cfg.Metrics,
		onEvent:     cfg.OnEvent,
	}
}

// Submit queues a command. It never blocks; commands are dropped when the
// queue is full.
func (e *Engine) Submit(cmd Command) bool {
	select {
	case e.cmdCh <- cmd:
		return true
	default:
		e.log.Warn().Str("command", string(cmd.Type())).Msg("command queue full, dropping")
		return false
	}
}

func (e *Engine) GetState(ctx context.Context) (DroneState, error) {
	req := stateReq{reply: make(chan DroneState, 1)}
	select {
	case e.stateReqCh <- req:
	case <-ctx.Done():
		return DroneState{}, ctx.Err()
	}

	select {
	case st := <-req.reply:
		return st, nil
	case <-ctx.Done():
		return DroneState{}, ctx.Err()
	}
}

func (e *Engine) Subscribe(ctx context.Context) (<-chan DroneState, func()) {
	ch := make(chan DroneState, 32)

	select {
	case e.subscribeCh <- subscribeReq{ch: ch}:
	case <-ctx.Done():
		close(ch)
		return ch, func() {}
	}

	unsub := func() {
		select {
		case e.unsubCh <- ch:
		default:
		}
	}
	return ch, unsub
}

func (e *Engine) Run(ctx context.Context) error {
	// Actor-owned state
	now := time.Now()
	subs := map[chan DroneState]struct{}{}

	publish := func(st DroneState) {
		for ch := range subs {
			select {
			case ch <- st:
			default:
				// slow subscriber -> drop frame
			}
		}
	}

	interval := e.sim.FrameInterval()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	// TIME_SKEW and clock-scale remediation change the frame rate
	retime := func() {
		if next := e.sim.FrameInterval(); next != interval {
			e.log.Info().Dur("from", interval).Dur("to", next).Msg("frame interval changed")
			interval = next
			tick.Reset(interval)
		}
	}

	e.log.Info().Float64("frameHz", e.sim.FrameHz()).
		Strs("faults", e.sim.Drone().Faults.Labels()).
		Msg("engine started")

	for {
		select {
		case <-ctx.Done():
			for ch := range subs {
				close(ch)
			}
			e.log.Info().Uint64("ticks", e.sim.TickCount()).Msg("engine stopped")
			return nil

		case req := <-e.subscribeCh:
			subs[req.ch] = struct{}{}
			req.ch <- e.sim.Snapshot(now)

		case ch := <-e.unsubCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case req := <-e.stateReqCh:
			req.reply <- e.sim.Snapshot(now)

		case cmd := <-e.cmdCh:
			e.handle(ctx, cmd)
			retime()

		case t := <-tick.C:
			now = t
			res := e.sim.Advance()
			e.metrics.Tick(ctx, res.Skipped, e.sim.Drone().DistanceToTarget())
			publish(e.sim.Snapshot(now))
		}
	}
}

func (e *Engine) handle(ctx context.Context, cmd Command) {
	at := cmd.ReceivedAt()
	if at.IsZero() {
		at = time.Now()
	}

	switch c := cmd.(type) {
	case KeyCommand:
		a, ok := KeyAction(c.Key)
		if !ok {
			e.log.Debug().Str("key", string(c.Key)).Msg("unbound key")
			return
		}
		switch a.Kind {
		case ActionFault:
			e.inject(ctx, at, a.Fault)
		case ActionReset:
			e.reset(ctx, at)
		case ActionRemediate:
			e.remediate(ctx, at, nil)
		}

	case FaultCommand:
		e.inject(ctx, at, c.Fault)

	case RemediateCommand:
		e.remediate(ctx, at, c.Truth)

	case ResetCommand:
		e.reset(ctx, at)
	}
}

func (e *Engine) inject(ctx context.Context, at time.Time, f Fault) {
	if err := e.sim.Inject(f); err != nil {
		e.log.Warn().Err(err).Msg("fault rejected")
		return
	}
	e.metrics.FaultInjected(ctx, f.String())
	e.log.Warn().Str("fault", f.String()).
		Strs("active", e.sim.Drone().Faults.Labels()).
		Msg("attack active")
	e.emit(at, EventInject, f.String())
}

func (e *Engine) remediate(ctx context.Context, at time.Time, gt *GroundTruth) {
	e.sim.Remediate(gt)
	e.metrics.Remediated(ctx)
	e.log.Info().Msg("ground truth injected, faults cleared")
	e.emit(at, EventRemediate, "")
}

func (e *Engine) reset(ctx context.Context, at time.Time) {
	e.sim.Reset()
	e.metrics.Reset(ctx)
	e.log.Info().Msg("systems purged")
	e.emit(at, EventReset, "")
}

func (e *Engine) emit(at time.Time, kind, fault string) {
	if e.onEvent == nil {
		return
	}
	e.onEvent(Event{
		Time:   at,
		Tick:   e.sim.TickCount(),
		Kind:   kind,
		Fault:  fault,
		Active: e.sim.Drone().Faults.Labels(),
	})
}
