package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	authTimeout = 5 * time.Second
	// loopInterval is the unconditional yield at the end of every loop
	// iteration and bounds how late a timer can fire.
	loopInterval = 50 * time.Millisecond
)

// agentDeps are the collaborators of an Agent. Nil fields get the real
// implementations.
type agentDeps struct {
	Dialer    Dialer
	Link      Link
	Registry  *Registry
	Presenter Presenter
	Telemetry Collector
	Logger    *slog.Logger
	Now       func() time.Time
	Sleep     func(ctx context.Context, d time.Duration) bool
}

// Agent runs the connection lifecycle on a single control loop. Machine
// state, timers and the channel are only touched from that loop. Command
// handlers run synchronously on it, so a slow handler delays heartbeats;
// the command context deadline is the only bound.
type Agent struct {
	cfg       Config
	node      NodeInfo
	dialer    Dialer
	link      Link
	dispatch  *Dispatcher
	telemetry Collector
	log       *slog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) bool

	fsm       Machine
	retry     *backoff.ExponentialBackOff
	delay     time.Duration
	ch        Channel
	heartbeat intervalTimer
	sysinfo   intervalTimer
}

func newAgent(cfg Config, node NodeInfo, deps agentDeps) *Agent {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	if deps.Dialer == nil {
		deps.Dialer = newWSDialer(cfg.DialTimeout, nil)
	}
	if deps.Link == nil {
		deps.Link = interfaceLink{}
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.Presenter == nil {
		deps.Presenter = logPresenter{log: deps.Logger}
	}
	if deps.Telemetry == nil {
		deps.Telemetry = newSystemCollector("")
	}

	return &Agent{
		cfg:       cfg,
		node:      node,
		dialer:    deps.Dialer,
		link:      deps.Link,
		dispatch:  newDispatcher(deps.Registry, deps.Presenter, deps.Logger, deps.Now),
		telemetry: deps.Telemetry,
		log:       deps.Logger,
		now:       deps.Now,
		sleep:     deps.Sleep,
		fsm:       NewMachine(),
		retry:     cfg.Reconnect.NewPolicy(),
		heartbeat: intervalTimer{every: cfg.HeartbeatInterval},
		sysinfo:   intervalTimer{every: cfg.TelemetryInterval},
	}
}

// Run drives the agent until ctx is cancelled. It never returns an error for
// gateway or network failures; those only move the state machine.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("agent starting", "gateway", a.cfg.Gateway.URL(), "node_id", a.node.NodeID)
	for {
		if ctx.Err() != nil {
			a.apply(Event{Kind: EventShutdown, At: a.now()})
			a.log.Info("agent stopped")
			return nil
		}

		if a.delay > 0 {
			a.log.Info("reconnecting", "attempt", a.fsm.Failures(), "delay", a.delay)
			if !a.sleep(ctx, a.delay) {
				continue
			}
		}
		if err := awaitLink(ctx, a.link, a.cfg.LinkRetry, a.log); err != nil {
			continue
		}
		a.runConnection(ctx)
	}
}

// runConnection performs one dial, auth and operate cycle. The channel is
// released on every exit path.
func (a *Agent) runConnection(ctx context.Context) {
	defer a.release()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("connection cycle panic", "panic", r)
			kind := EventConnectionLost
			if a.fsm.State() == StateConnecting {
				kind = EventConnectFailed
			}
			a.apply(Event{Kind: kind, At: a.now(), Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	a.apply(Event{Kind: EventDial, At: a.now()})
	ch, err := a.dialer.Dial(ctx, a.cfg.Gateway)
	if err != nil {
		a.log.Warn("gateway unreachable", "error", err)
		a.apply(Event{Kind: EventConnectFailed, At: a.now(), Err: err})
		return
	}
	a.ch = ch
	a.apply(Event{Kind: EventConnected, At: a.now()})

	if a.fsm.State() != StateAuthPending || !a.awaitAuth(ctx) {
		return
	}
	a.operate(ctx)
}

func (a *Agent) awaitAuth(ctx context.Context) bool {
	deadline := a.now().Add(authTimeout)
	for ctx.Err() == nil {
		msg, err := a.poll()
		if err != nil {
			a.lose(err)
			return false
		}
		if msg != nil {
			switch msg.Type {
			case TypeAuthOK:
				a.apply(Event{Kind: EventAuthOK, SessionID: msg.SessionID, At: a.now()})
				a.log.Info("authenticated", "session_id", msg.SessionID)
				if err := a.sendSysInfo(); err != nil {
					a.lose(err)
					return false
				}
				return true
			case TypeError:
				err := fmt.Errorf("%w: %s", ErrAuth, msg.Message)
				a.log.Error("authentication rejected", "code", msg.Code, "error", err)
				a.apply(Event{Kind: EventAuthRejected, At: a.now(), Err: err})
				return false
			default:
				a.log.Debug("ignoring message before auth", "type", msg.Type)
			}
		}
		if !a.now().Before(deadline) {
			err := fmt.Errorf("%w: no auth_ok within %s", ErrAuth, authTimeout)
			a.log.Error("authentication timed out", "error", err)
			a.apply(Event{Kind: EventAuthTimeout, At: a.now(), Err: err})
			return false
		}
		a.sleep(ctx, loopInterval)
	}
	return false
}

func (a *Agent) operate(ctx context.Context) {
	for a.fsm.State() == StateAuthenticated {
		if ctx.Err() != nil {
			return
		}
		if err := a.tick(ctx); err != nil {
			a.lose(err)
			return
		}
		a.sleep(ctx, loopInterval)
	}
}

// tick is one iteration of the authenticated loop: poll and route one frame,
// then fire whichever timers are due.
func (a *Agent) tick(ctx context.Context) error {
	msg, err := a.poll()
	if err != nil {
		return err
	}
	if msg != nil {
		if reply := a.dispatch.Handle(ctx, msg); reply != nil {
			if err := a.send(reply); err != nil {
				return err
			}
		}
	}

	now := a.now()
	if a.heartbeat.Due(now) {
		if err := a.send(&Message{Type: TypePing, Ts: nowMs(now)}); err != nil {
			return err
		}
		a.heartbeat.Reset(now)
	}
	if a.sysinfo.Due(now) {
		if err := a.sendSysInfo(); err != nil {
			return err
		}
		a.sysinfo.Reset(now)
	}
	return nil
}

// poll returns the next decoded message, or nil when nothing is pending.
// Malformed frames are dropped without touching the connection.
func (a *Agent) poll() (*Message, error) {
	frame, err := a.ch.ReadFrame()
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, nil
	}
	msg, err := decodeMessage(frame)
	if err != nil {
		a.log.Warn("dropping malformed frame", "error", err, "frame", truncateForLog(string(frame), 120))
		return nil, nil
	}
	return msg, nil
}

func (a *Agent) send(msg *Message) error {
	if msg.Ts == 0 {
		msg.Ts = nowMs(a.now())
	}
	frame, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	return a.ch.WriteFrame(frame)
}

func (a *Agent) sendSysInfo() error {
	info := a.telemetry.Collect()
	return a.send(&Message{Type: TypeSysInfo, Info: &info})
}

func (a *Agent) lose(err error) {
	a.log.Warn("connection lost", "error", err)
	a.apply(Event{Kind: EventConnectionLost, At: a.now(), Err: err})
}

// apply advances the state machine and runs the resulting effects. The
// reconnect policy steps once per counted failure and resets with the
// failure count.
func (a *Agent) apply(ev Event) {
	from, failures := a.fsm.State(), a.fsm.Failures()
	next, effects := a.fsm.Next(ev)
	a.fsm = next
	switch {
	case next.Failures() > failures:
		a.delay = a.retry.NextBackOff()
	case next.Failures() == 0 && failures > 0:
		a.retry.Reset()
		a.delay = 0
	}
	if to := next.State(); to != from {
		a.log.Info("state transition", "from", from.String(), "to", to.String(), "event", ev.Kind.String(), "failures", next.Failures())
	}

	for _, eff := range effects {
		switch eff {
		case EffectSendAuth:
			auth := &Message{Type: TypeAuth, Token: a.cfg.Token, Node: &a.node}
			if err := a.send(auth); err != nil {
				a.lose(err)
				return
			}
		case EffectResetTimers:
			now := a.now()
			a.heartbeat.Reset(now)
			a.sysinfo.Reset(now)
		case EffectCloseTransport:
			a.release()
		}
	}
}

// release closes the channel and drops the reference together.
func (a *Agent) release() {
	if a.ch == nil {
		return
	}
	if err := a.ch.Close(); err != nil {
		a.log.Debug("channel close", "error", err)
	}
	a.ch = nil
}

// intervalTimer is a countdown checked once per loop iteration.
type intervalTimer struct {
	every time.Duration
	last  time.Time
}

func (t intervalTimer) Due(now time.Time) bool {
	return now.Sub(t.last) >= t.every
}

func (t *intervalTimer) Reset(now time.Time) {
	t.last = now
}

// sleepContext waits d and reports false when ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
