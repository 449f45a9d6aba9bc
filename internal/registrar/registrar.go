// Package registrar implements spec.md §4.6: observes status frames,
// coalesces unknown device codes behind a 2s debounce, and triggers a
// re-handshake with exponential backoff on failure.
package registrar

import (
	"log/slog"
	"sync"
	"time"

	"duofernd/internal/codec"
	"duofernd/internal/events"
	"duofernd/internal/frame"
	"duofernd/internal/statusfields"
)

// DebounceInterval is the coalescing window (spec.md §4.6).
const DebounceInterval = 2 * time.Second

// MaxAttempts is the number of failed reopen attempts (the first attempt
// included) after which a pending batch is dropped.
const MaxAttempts = 3

// BackoffSchedule is the retry delay sequence (spec.md §4.6).
var BackoffSchedule = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// MessageSource lets the Registrar observe raw device-originated frames
// after the Dispatcher has classified and auto-ACKed them, mirroring the
// Dispatcher's single OnMessage hook (see dispatcher.Dispatcher.OnMessage).
type MessageSource interface {
	OnMessage(func(frame.Frame))
}

// Reopener is the Session surface the Registrar drives. Session satisfies
// this directly.
type Reopener interface {
	PairSet() []frame.DeviceCode
	Reopen(newPairSet []frame.DeviceCode) error
}

// Registrar coalesces newly-observed device codes and re-runs the
// handshake with the extended pair set.
type Registrar struct {
	reopener Reopener
	bus      *events.Bus
	logger   *slog.Logger

	debounceInterval time.Duration
	backoffSchedule  []time.Duration
	maxAttempts      int

	mu               sync.Mutex
	pending          []frame.DeviceCode
	pendingSet       map[frame.DeviceCode]bool
	timer            *time.Timer
	reopenInProgress bool
	retryCount       int
}

// New creates a Registrar and installs it as source's message hook.
func New(source MessageSource, reopener Reopener, bus *events.Bus, logger *slog.Logger) *Registrar {
	r := &Registrar{
		reopener:         reopener,
		bus:              bus,
		logger:           logger,
		debounceInterval: DebounceInterval,
		backoffSchedule:  BackoffSchedule,
		maxAttempts:      MaxAttempts,
		pendingSet:       make(map[frame.DeviceCode]bool),
	}
	source.OnMessage(r.onMessage)
	return r
}

// Pending returns a copy of the devices currently awaiting a coalesced
// reopen.
func (r *Registrar) Pending() []frame.DeviceCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]frame.DeviceCode, len(r.pending))
	copy(out, r.pending)
	return out
}

// Close cancels any outstanding debounce/backoff timer and drops the
// pending batch (spec.md §5 cancellation).
func (r *Registrar) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = nil
	r.pendingSet = make(map[frame.DeviceCode]bool)
}

func (r *Registrar) onMessage(f frame.Frame) {
	if !codec.IsStatusFrame(f) {
		return
	}
	dev, err := codec.StatusDeviceCode(f)
	if err != nil {
		r.logger.Warn("registrar: malformed status frame", "hex", f.Hex(), "err", err)
		return
	}

	fields := statusfields.Parse(f.Hex())
	strFields := make(map[string]string, len(fields))
	for name, v := range fields {
		strFields[name] = v.String()
	}
	r.bus.Emit(events.Event{Kind: events.KindStatus, DeviceCode: dev.String(), Fields: strFields})

	r.observe(dev)
}

// observe implements the coalescing rule: add unknown codes to pending,
// (re)start the debounce timer on each new observation within the window.
func (r *Registrar) observe(dev frame.DeviceCode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, known := range r.reopener.PairSet() {
		if known == dev {
			return
		}
	}
	if r.pendingSet[dev] {
		return
	}
	r.pendingSet[dev] = true
	r.pending = append(r.pending, dev)

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounceInterval, r.onTimerFire)
}

func (r *Registrar) onTimerFire() {
	r.mu.Lock()
	if r.reopenInProgress {
		r.timer = time.AfterFunc(r.debounceInterval, r.onTimerFire)
		r.mu.Unlock()
		return
	}
	batch := make([]frame.DeviceCode, len(r.pending))
	copy(batch, r.pending)
	current := r.reopener.PairSet()
	newPairSet := append(append([]frame.DeviceCode{}, current...), batch...)
	r.reopenInProgress = true
	r.timer = nil
	r.mu.Unlock()

	err := r.reopener.Reopen(newPairSet)

	r.mu.Lock()
	r.reopenInProgress = false
	remaining := r.pending[min(len(batch), len(r.pending)):]
	leftover := make([]frame.DeviceCode, len(remaining))
	copy(leftover, remaining)

	if err != nil {
		r.retryCount++
		r.logger.Warn("registrar: reopen failed", "attempt", r.retryCount, "devices", batch, "err", err)
		if r.retryCount >= r.maxAttempts {
			r.logger.Error("registrar: dropping pending batch after max attempts", "devices", batch)
			r.pending = leftover
			r.rebuildPendingSet()
			r.retryCount = 0
			if len(r.pending) > 0 {
				r.timer = time.AfterFunc(r.debounceInterval, r.onTimerFire)
			}
			r.mu.Unlock()
			return
		}
		delay := r.backoffSchedule[min(r.retryCount-1, len(r.backoffSchedule)-1)]
		r.timer = time.AfterFunc(delay, r.onTimerFire)
		r.mu.Unlock()
		return
	}

	r.retryCount = 0
	r.pending = leftover
	r.rebuildPendingSet()
	if len(r.pending) > 0 {
		r.timer = time.AfterFunc(r.debounceInterval, r.onTimerFire)
	}
	r.mu.Unlock()
}

func (r *Registrar) rebuildPendingSet() {
	set := make(map[frame.DeviceCode]bool, len(r.pending))
	for _, d := range r.pending {
		set[d] = true
	}
	r.pendingSet = set
}
