// Package dispatcher implements the ACK-gated outbound queue and inbound
// frame classification described in spec.md §4.3: at most one frame in
// flight, no retransmission on timeout, auto-ACK before any downstream
// dispatch.
package dispatcher

import (
	"log/slog"
	"sync"
	"time"

	"duofernd/internal/codec"
	"duofernd/internal/events"
	"duofernd/internal/frame"
	"duofernd/internal/transport"
)

// AckTimeout is the per-frame timer armed after a send; spec.md §4.3.
const AckTimeout = 5 * time.Second

// StepHandler receives one inbound frame while Session is mid-handshake.
// The dispatcher never inspects handshake-routed frames itself.
type StepHandler func(frame.Frame)

// Dispatcher owns the outbound queue and inbound classification for one
// Transport. It does not know about Session state beyond whether sends
// are currently permitted (Ready) and whether a handshake step handler is
// registered.
type Dispatcher struct {
	port   transport.Port
	bus    *events.Bus
	logger *slog.Logger

	mu        sync.Mutex
	queue     []frame.Frame
	ready     bool
	inFlight  bool
	inFlightF frame.Frame
	timer     *time.Timer
	step      StepHandler

	messageHandler func(frame.Frame)
}

// New creates a Dispatcher bound to port, publishing to bus.
func New(port transport.Port, bus *events.Bus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{port: port, bus: bus, logger: logger}
}

// SetReady toggles whether queued frames may be sent. Session calls this
// with true on entering Ready and false on leaving it (spec.md §5:
// "During Reinitializing, new submissions queue; they MUST NOT be
// delivered until Ready resumes.").
func (d *Dispatcher) SetReady(ready bool) {
	d.mu.Lock()
	d.ready = ready
	d.mu.Unlock()
	if ready {
		d.pump()
	}
}

// SetStepHandler installs or clears (with nil) the handshake step
// callback. While set, HandleInbound routes every frame there instead of
// classifying it (spec.md §4.3 step 1).
func (d *Dispatcher) SetStepHandler(h StepHandler) {
	d.mu.Lock()
	d.step = h
	d.mu.Unlock()
}

// Submit enqueues a frame for transmission. Frames are sent in
// submission order (spec.md §5).
func (d *Dispatcher) Submit(f frame.Frame) {
	d.mu.Lock()
	d.queue = append(d.queue, f)
	d.mu.Unlock()
	d.pump()
}

// Reset clears the queue and cancels any armed timer, logging what was
// dropped (spec.md §4.2 reopen, §5 close/cancel).
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	dropped := d.queue
	d.queue = nil
	d.inFlight = false
	d.inFlightF = frame.Frame{}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	for _, f := range dropped {
		d.logger.Warn("dropped queued frame on reset", "hex", f.Hex())
	}
}

// pump sends the head of queue if permitted and nothing is in flight.
func (d *Dispatcher) pump() {
	d.mu.Lock()
	if !d.ready || d.inFlight || len(d.queue) == 0 {
		d.mu.Unlock()
		return
	}
	head := d.queue[0]
	d.queue = d.queue[1:]
	d.inFlight = true
	d.inFlightF = head
	d.timer = time.AfterFunc(AckTimeout, d.onAckTimeout)
	d.mu.Unlock()

	if err := d.port.Write(head); err != nil {
		d.logger.Error("dispatcher write failed", "hex", head.Hex(), "err", err)
		return
	}
	d.bus.Emit(events.Event{Kind: events.KindFrameTx, FrameHex: head.Hex()})
}

func (d *Dispatcher) onAckTimeout() {
	d.mu.Lock()
	unacked := d.inFlightF
	d.inFlight = false
	d.inFlightF = frame.Frame{}
	d.timer = nil
	d.mu.Unlock()

	d.logger.Warn("queue ack timeout, advancing without retransmit", "hex", unacked.Hex())
	d.pump()
}

// HandleInbound implements spec.md §4.3's inbound classification and
// dispatch. It must be called from the same goroutine that drives the
// rest of session state (the single task loop).
func (d *Dispatcher) HandleInbound(f frame.Frame) {
	d.bus.Emit(events.Event{Kind: events.KindFrameRx, FrameHex: f.Hex()})

	d.mu.Lock()
	step := d.step
	d.mu.Unlock()
	if step != nil {
		step(f)
		return
	}

	c := codec.Classify(f)
	switch c.Kind {
	case codec.KindAck:
		d.onAck()
	case codec.KindPaired:
		d.bus.Emit(events.Event{Kind: events.KindPaired, DeviceCode: c.Device.String()})
	case codec.KindUnpaired:
		d.bus.Emit(events.Event{Kind: events.KindUnpaired, DeviceCode: c.Device.String()})
	case codec.KindMessage:
		d.autoAck()
		d.onMessage(f)
	}
}

func (d *Dispatcher) onAck() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.inFlight = false
	d.inFlightF = frame.Frame{}
	d.mu.Unlock()
	d.pump()
}

// autoAck writes the constant ACK frame unconditionally before any
// downstream handler observes the message (spec.md §4.3, §5 ordering
// guarantee).
func (d *Dispatcher) autoAck() {
	if err := d.port.Write(codec.AckFrame); err != nil {
		d.logger.Error("auto-ack write failed", "err", err)
	}
}

func (d *Dispatcher) onMessage(f frame.Frame) {
	d.mu.Lock()
	handler := d.messageHandler
	d.mu.Unlock()
	if handler != nil {
		handler(f)
	}
}

// OnMessage registers the handler for device-originated messages (after
// auto-ACK). Typically the Registrar and host gateway both subscribe
// indirectly via the event bus instead; this hook exists for components
// that need the raw Frame, such as the Registrar's status extraction.
func (d *Dispatcher) OnMessage(h func(frame.Frame)) {
	d.mu.Lock()
	d.messageHandler = h
	d.mu.Unlock()
}
