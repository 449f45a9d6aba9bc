package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"duofernd/internal/frame"
)

var (
	bucketSession = []byte("session")
	keySession    = []byte("state")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// sessionStateStorage is the on-disk shape; DongleID/DeviceCode are kept
// as plain strings so the schema does not depend on frame's validation
// changing across versions.
type sessionStateStorage struct {
	DongleID  string    `json:"dongle_id"`
	PairSet   []string  `json:"pair_set"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *BoltStore) SaveSessionState(state *SessionState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return fmt.Errorf("store: bucket %q not found", bucketSession)
		}
		pairSet := make([]string, len(state.PairSet))
		for i, d := range state.PairSet {
			pairSet[i] = d.String()
		}
		data, err := json.Marshal(sessionStateStorage{
			DongleID:  state.DongleID.String(),
			PairSet:   pairSet,
			UpdatedAt: state.UpdatedAt,
		})
		if err != nil {
			return err
		}
		return b.Put(keySession, data)
	})
}

func (s *BoltStore) GetSessionState() (*SessionState, error) {
	var st sessionStateStorage
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return fmt.Errorf("store: bucket %q not found", bucketSession)
		}
		data := b.Get(keySession)
		if data == nil {
			return fmt.Errorf("store: session state: %w", ErrNotFound)
		}
		return json.Unmarshal(data, &st)
	})
	if err != nil {
		return nil, err
	}

	dongle, err := frame.ParseDongleID(st.DongleID)
	if err != nil {
		return nil, fmt.Errorf("store: stored dongle id: %w", err)
	}
	pairSet := make([]frame.DeviceCode, len(st.PairSet))
	for i, raw := range st.PairSet {
		dev, err := frame.ParseDeviceCode(raw)
		if err != nil {
			return nil, fmt.Errorf("store: stored pair set[%d]: %w", i, err)
		}
		pairSet[i] = dev
	}
	return &SessionState{DongleID: dongle, PairSet: pairSet, UpdatedAt: st.UpdatedAt}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
