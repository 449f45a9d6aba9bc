// Package transport owns the serial endpoint to the DuoFern USB
// transceiver: it opens the port, frames the inbound byte stream into
// fixed-width frames, and writes outbound frames raw.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"go.bug.st/serial"

	"duofernd/internal/frame"
)

const baudRate = 115200

// Sentinel errors surfaced through Event.Err or returned from Write/Open.
var (
	ErrPortClosed       = errors.New("transport: port closed")
	ErrPortUnavailable  = errors.New("transport: port unavailable")
	ErrPermissionDenied = errors.New("transport: permission denied")
)

// EventKind distinguishes the three inbound event shapes from spec.md
// §4.1: opened, a fully-framed inbound frame, or an error.
type EventKind int

const (
	EventOpened EventKind = iota
	EventFrame
	EventError
)

// Event is one item on the inbound event stream.
type Event struct {
	Kind  EventKind
	Frame frame.Frame
	Err   error
}

// Port is the boundary Session and Dispatcher depend on, so tests can
// substitute a fake instead of a real serial endpoint.
type Port interface {
	Write(f frame.Frame) error
	Events() <-chan Event
	Close() error
}

var _ Port = (*Transport)(nil)

// Transport owns one serial port. There is no resynchronization: framing
// is purely fixed-width (spec.md §4.1), so any dropped byte desynchronizes
// the stream permanently until the caller reopens.
type Transport struct {
	portName string
	port     serial.Port
	reader   *bufio.Reader
	logger   *slog.Logger

	events chan Event

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Open opens the named serial endpoint at 115200/8-N-1 and starts the
// frame-reading loop. The returned Transport's Events channel begins with
// an EventOpened item.
func Open(portName string, logger *slog.Logger) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "permission") {
			return nil, fmt.Errorf("transport: open %s: %w", portName, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("transport: open %s: %w: %v", portName, ErrPortUnavailable, err)
	}

	t := &Transport{
		portName: portName,
		port:     port,
		reader:   bufio.NewReaderSize(port, 4*frame.ByteLen),
		logger:   logger,
		events:   make(chan Event, 32),
		done:     make(chan struct{}),
	}
	t.events <- Event{Kind: EventOpened}

	t.wg.Add(1)
	go t.readLoop()
	return t, nil
}

// Events returns the inbound event stream. Callers must keep draining it;
// it is closed once the read loop exits after Close.
func (t *Transport) Events() <-chan Event { return t.events }

// Write sends exactly one frame's bytes raw. The frame is always ByteLen
// bytes because frame.Frame is construction-validated; a short write by
// the serial port is returned as an error.
func (t *Transport) Write(f frame.Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	select {
	case <-t.done:
		return ErrPortClosed
	default:
	}
	b := f.Bytes()
	n, err := t.port.Write(b)
	if err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	if n != len(b) {
		return fmt.Errorf("transport: short write %d/%d bytes", n, len(b))
	}
	return nil
}

// Close stops the read loop and releases the serial port. Safe to call
// more than once.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.port.Close()
		t.wg.Wait()
		close(t.events)
	})
	return err
}

func (t *Transport) readLoop() {
	defer t.wg.Done()

	buf := make([]byte, 0, 4*frame.ByteLen)
	chunk := make([]byte, frame.ByteLen)

	for {
		n, err := t.reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for len(buf) >= frame.ByteLen {
				f, ferr := frame.FromBytes(buf[:frame.ByteLen])
				buf = buf[frame.ByteLen:]
				if ferr != nil {
					t.emit(Event{Kind: EventError, Err: fmt.Errorf("transport: %w", ferr)})
					continue
				}
				t.logger.Debug("frame received", "hex", f.Hex())
				t.emit(Event{Kind: EventFrame, Frame: f})
			}
		}
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				t.emit(Event{Kind: EventError, Err: fmt.Errorf("transport: %w", ErrPortClosed)})
				return
			}
			t.emit(Event{Kind: EventError, Err: fmt.Errorf("transport: read: %w", err)})
			return
		}
	}
}

// emit drops the event instead of blocking forever if the consumer has
// stopped draining after Close was requested.
func (t *Transport) emit(e Event) {
	select {
	case t.events <- e:
	case <-t.done:
	}
}
