// Package busstate reads the telemetry-maintained live record of each bus
// (active flag plus route descriptor) from an embedded BadgerDB. The fare
// pipeline only reads here; the telemetry ingest path and the seeder write.
package busstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/LungheSam/FareFlow-Server/internal/domain"
)

const busKeyPrefix = "bus:"

// Store is the badger-backed live-state store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open busstate store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Live returns the live state for a plate, or domain.ErrBusNotFound.
func (s *Store) Live(ctx context.Context, plate string) (*domain.BusLiveState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var state domain.BusLiveState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(busKeyPrefix + plate))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrBusNotFound
		}
		if err != nil {
			return fmt.Errorf("get bus %s: %w", plate, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Put writes a bus's live state. Used by the telemetry ingest path and the
// seeder.
func (s *Store) Put(ctx context.Context, state *domain.BusLiveState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal bus state: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(busKeyPrefix+state.PlateNumber), data)
	})
}
