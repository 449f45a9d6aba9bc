// Package store persists the one piece of state that must survive a
// process restart: the last-confirmed dongle id and PairSet, so a fresh
// process can seed its initial handshake instead of starting from an
// empty pair set.
package store

import (
	"errors"
	"time"

	"duofernd/internal/frame"
)

// ErrNotFound is returned when no session state has been saved yet.
var ErrNotFound = errors.New("store: not found")

// SessionState is the durable snapshot of a Session's identity.
type SessionState struct {
	DongleID  frame.DongleID
	PairSet   []frame.DeviceCode
	UpdatedAt time.Time
}

// Store is the persistence boundary Session/Registrar depend on.
type Store interface {
	SaveSessionState(state *SessionState) error
	GetSessionState() (*SessionState, error)
	Close() error
}
