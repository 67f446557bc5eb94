package main

import "time"

// State is the connection state of the agent.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthPending
	StateAuthenticated
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthPending:
		return "auth_pending"
	case StateAuthenticated:
		return "authenticated"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Session is the authenticated context of one live connection.
type Session struct {
	ID            string
	EstablishedAt time.Time
}

type EventKind int

const (
	// EventDial starts a connection attempt.
	EventDial EventKind = iota
	// EventConnected reports transport and handshake success.
	EventConnected
	// EventConnectFailed reports a transport or handshake failure.
	EventConnectFailed
	// EventAuthOK carries the session id from auth_ok.
	EventAuthOK
	// EventAuthRejected reports an error message before auth_ok.
	EventAuthRejected
	// EventAuthTimeout reports that auth_ok did not arrive in time.
	EventAuthTimeout
	// EventConnectionLost reports a read or write failure.
	EventConnectionLost
	// EventShutdown requests a local, orderly stop.
	EventShutdown
)

func (k EventKind) String() string {
	switch k {
	case EventDial:
		return "dial"
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect_failed"
	case EventAuthOK:
		return "auth_ok"
	case EventAuthRejected:
		return "auth_rejected"
	case EventAuthTimeout:
		return "auth_timeout"
	case EventConnectionLost:
		return "connection_lost"
	case EventShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind      EventKind
	SessionID string
	At        time.Time
	Err       error
}

// Effect is an action the caller must perform after a transition.
type Effect int

const (
	EffectSendAuth Effect = iota + 1
	EffectResetTimers
	EffectCloseTransport
)

// Machine is the connection state machine. It performs no I/O: Next maps
// (machine, event) to the next machine and the effects to run.
type Machine struct {
	state    State
	session  *Session
	failures int
}

func NewMachine() Machine {
	return Machine{state: StateDisconnected}
}

func (m Machine) State() State { return m.state }

func (m Machine) Failures() int { return m.failures }

// Session returns the current session. ok is true only while authenticated.
func (m Machine) Session() (Session, bool) {
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// Next applies ev. Events that are not valid in the current state leave the
// machine unchanged and produce no effects.
func (m Machine) Next(ev Event) (Machine, []Effect) {
	if ev.Kind == EventShutdown {
		if m.state == StateClosing {
			return m, nil
		}
		m.state = StateClosing
		m.session = nil
		return m, []Effect{EffectCloseTransport}
	}

	switch m.state {
	case StateDisconnected:
		if ev.Kind == EventDial {
			m.state = StateConnecting
		}
		return m, nil

	case StateConnecting:
		switch ev.Kind {
		case EventConnected:
			m.state = StateAuthPending
			return m, []Effect{EffectSendAuth}
		case EventConnectFailed:
			return m.fail(), []Effect{EffectCloseTransport}
		}

	case StateAuthPending:
		switch ev.Kind {
		case EventAuthOK:
			m.state = StateAuthenticated
			m.session = &Session{ID: ev.SessionID, EstablishedAt: ev.At}
			m.failures = 0
			return m, []Effect{EffectResetTimers}
		case EventAuthRejected, EventAuthTimeout, EventConnectionLost:
			return m.fail(), []Effect{EffectCloseTransport}
		}

	case StateAuthenticated:
		if ev.Kind == EventConnectionLost {
			return m.fail(), []Effect{EffectCloseTransport}
		}
	}
	return m, nil
}

func (m Machine) fail() Machine {
	m.state = StateDisconnected
	m.session = nil
	m.failures++
	return m
}
