// Package session implements the init handshake and reopen orchestration
// described in spec.md §4.2: Closed -> Opening -> Handshaking -> Ready ->
// (Reinitializing -> Handshaking -> Ready)* -> Closed|Failed.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"duofernd/internal/codec"
	"duofernd/internal/dispatcher"
	"duofernd/internal/events"
	"duofernd/internal/frame"
	"duofernd/internal/store"
	"duofernd/internal/transport"
)

// StepTimeout is the per-handshake-step wait (spec.md §4.2).
const StepTimeout = 3 * time.Second

// State is one point in the session lifecycle.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateHandshaking
	StateReady
	StateReinitializing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateReinitializing:
		return "reinitializing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrHandshakeStepTimeout = errors.New("session: handshake step timed out")
	ErrClosed               = errors.New("session: closed")
)

// OpenFunc opens a transport for a named port; substitutable in tests.
type OpenFunc func(portName string, logger *slog.Logger) (transport.Port, error)

// Session owns one Transport/Dispatcher pair and runs the handshake
// protocol against it.
type Session struct {
	portName string
	dongle   frame.DongleID
	openFunc OpenFunc
	bus      *events.Bus
	logger   *slog.Logger

	stepTimeout time.Duration
	persist     store.Store

	mu      sync.Mutex
	state   State
	pairSet []frame.DeviceCode
	port    transport.Port
	disp    *dispatcher.Dispatcher
	closing chan struct{}
}

// New creates a Session. initialPairSet is copied; order is preserved.
func New(portName string, dongle frame.DongleID, initialPairSet []frame.DeviceCode, bus *events.Bus, logger *slog.Logger) *Session {
	pairSet := make([]frame.DeviceCode, len(initialPairSet))
	copy(pairSet, initialPairSet)
	return &Session{
		portName:    portName,
		dongle:      dongle,
		openFunc:    func(name string, l *slog.Logger) (transport.Port, error) { return transport.Open(name, l) },
		bus:         bus,
		logger:      logger,
		pairSet:     pairSet,
		stepTimeout: StepTimeout,
	}
}

// SetStore installs the persistence backend used to snapshot dongle id
// and PairSet after every successful handshake, so a later process can
// seed its initial PairSet from the last-confirmed state.
func (s *Session) SetStore(st store.Store) {
	s.mu.Lock()
	s.persist = st
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatcher returns the Dispatcher bound to the current transport, or nil
// before the first successful Start.
func (s *Session) Dispatcher() *dispatcher.Dispatcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disp
}

// PairSet returns a copy of the current pair set.
func (s *Session) PairSet() []frame.DeviceCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]frame.DeviceCode, len(s.pairSet))
	copy(out, s.pairSet)
	return out
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Start opens the transport and runs the handshake once. Callers may
// retry after a Failed state.
func (s *Session) Start() error {
	return s.openAndHandshake(s.PairSet(), StateOpening)
}

// Reopen closes the current transport, replaces the pair set, and re-runs
// Open+Handshake. On failure the old pair set is restored (spec.md §4.2).
func (s *Session) Reopen(newPairSet []frame.DeviceCode) error {
	s.mu.Lock()
	oldPairSet := make([]frame.DeviceCode, len(s.pairSet))
	copy(oldPairSet, s.pairSet)
	s.state = StateReinitializing
	s.mu.Unlock()

	s.closeTransport()

	replacement := make([]frame.DeviceCode, len(newPairSet))
	copy(replacement, newPairSet)

	if err := s.openAndHandshake(replacement, StateReinitializing); err != nil {
		s.mu.Lock()
		s.pairSet = oldPairSet
		s.state = StateFailed
		s.mu.Unlock()
		return fmt.Errorf("session: reopen: %w", err)
	}
	return nil
}

// Close cancels any outstanding handshake wait, clears the queue, and
// closes the transport.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closing != nil {
		close(s.closing)
		s.closing = nil
	}
	s.mu.Unlock()
	s.closeTransport()
	s.setState(StateClosed)
	s.bus.Emit(events.Event{Kind: events.KindClosed})
	return nil
}

func (s *Session) closeTransport() {
	s.mu.Lock()
	port := s.port
	disp := s.disp
	s.port = nil
	s.mu.Unlock()

	if disp != nil {
		disp.SetReady(false)
		disp.Reset()
	}
	if port != nil {
		_ = port.Close()
	}
}

func (s *Session) openAndHandshake(pairSet []frame.DeviceCode, enteringState State) error {
	s.setState(enteringState)

	port, err := s.openFunc(s.portName, s.logger)
	if err != nil {
		s.setState(StateFailed)
		s.bus.Emit(events.Event{Kind: events.KindError, ErrKind: "PortUnavailable", Detail: err.Error()})
		return fmt.Errorf("session: open: %w", err)
	}

	disp := dispatcher.New(port, s.bus, s.logger)
	closing := make(chan struct{})

	s.mu.Lock()
	s.port = port
	s.disp = disp
	s.pairSet = pairSet
	s.closing = closing
	s.mu.Unlock()

	go s.driveEvents(port, disp, closing)

	s.setState(StateHandshaking)
	if err := s.runHandshake(disp, port, pairSet, closing); err != nil {
		s.setState(StateFailed)
		s.bus.Emit(events.Event{Kind: events.KindError, ErrKind: "HandshakeFailed", Detail: err.Error()})
		return err
	}

	disp.SetReady(true)
	s.setState(StateReady)
	s.bus.Emit(events.Event{Kind: events.KindInitialized})
	s.persistState(pairSet)
	return nil
}

func (s *Session) persistState(pairSet []frame.DeviceCode) {
	s.mu.Lock()
	persist := s.persist
	s.mu.Unlock()
	if persist == nil {
		return
	}
	snapshot := make([]frame.DeviceCode, len(pairSet))
	copy(snapshot, pairSet)
	if err := persist.SaveSessionState(&store.SessionState{
		DongleID:  s.dongle,
		PairSet:   snapshot,
		UpdatedAt: time.Now(),
	}); err != nil {
		s.logger.Error("session: failed to persist session state", "err", err)
	}
}

func (s *Session) driveEvents(port transport.Port, disp *dispatcher.Dispatcher, closing chan struct{}) {
	for {
		select {
		case ev, ok := <-port.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case transport.EventOpened:
				s.bus.Emit(events.Event{Kind: events.KindOpened})
			case transport.EventFrame:
				disp.HandleInbound(ev.Frame)
			case transport.EventError:
				s.logger.Error("transport error", "err", ev.Err)
				s.bus.Emit(events.Event{Kind: events.KindError, ErrKind: "PortIoError", Detail: ev.Err.Error()})
				s.setState(StateFailed)
			}
		case <-closing:
			return
		}
	}
}

// runHandshake executes the fixed 7-step sequence (spec.md §4.2). While it
// runs, the Dispatcher routes every inbound frame here instead of
// classifying it.
func (s *Session) runHandshake(disp *dispatcher.Dispatcher, port transport.Port, pairSet []frame.DeviceCode, closing chan struct{}) error {
	stepCh := make(chan frame.Frame, 1)
	disp.SetStepHandler(func(f frame.Frame) {
		select {
		case stepCh <- f:
		default:
		}
	})
	defer disp.SetStepHandler(nil)

	doStep := func(name string, f frame.Frame, ackAfter bool) error {
		if err := port.Write(f); err != nil {
			return fmt.Errorf("session: handshake step %s write: %w", name, err)
		}
		timer := time.NewTimer(s.stepTimeout)
		defer timer.Stop()
		select {
		case <-stepCh:
		case <-timer.C:
			return fmt.Errorf("session: step %s: %w", name, ErrHandshakeStepTimeout)
		case <-closing:
			return ErrClosed
		}
		if ackAfter {
			if err := port.Write(codec.AckFrame); err != nil {
				return fmt.Errorf("session: handshake step %s ack write: %w", name, err)
			}
		}
		return nil
	}

	init1, _ := codec.BuildInit1()
	if err := doStep("init1", init1, false); err != nil {
		return err
	}
	init2, _ := codec.BuildInit2()
	if err := doStep("init2", init2, false); err != nil {
		return err
	}
	setDongle, err := codec.BuildSetDongle(s.dongle)
	if err != nil {
		return fmt.Errorf("session: build set_dongle: %w", err)
	}
	if err := doStep("set_dongle", setDongle, true); err != nil {
		return err
	}
	init3, _ := codec.BuildInit3()
	if err := doStep("init3", init3, true); err != nil {
		return err
	}

	for i, dev := range pairSet {
		setPairs, err := codec.BuildSetPairs(i, dev)
		if err != nil {
			return fmt.Errorf("session: build set_pairs[%d]: %w", i, err)
		}
		if err := doStep("set_pairs", setPairs, true); err != nil {
			return err
		}
	}

	initEnd, _ := codec.BuildInitEnd()
	if err := doStep("init_end", initEnd, true); err != nil {
		return err
	}

	statusReq, err := codec.BuildStatusRequestBroadcast()
	if err != nil {
		return fmt.Errorf("session: build status_request: %w", err)
	}
	return doStep("status_request", statusReq, true)
}
