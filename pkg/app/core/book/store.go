package book

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/easyswap/easyswap/pkg/app/core/order"
)

// Store provides Pebble-based persistence for order records
// Thread-safe: all operations go through Book's mutex
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
		MaxOpenFiles: 500,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRecord persists an order record under its key
func (s *Store) SaveRecord(orderKey common.Hash, rec *order.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := s.db.Set(recordKey(orderKey), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

// DeleteRecord removes an order record; used when unwinding a failed batch
func (s *Store) DeleteRecord(orderKey common.Hash) error {
	if err := s.db.Delete(recordKey(orderKey), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// LoadRecord loads an order record from Pebble
// Returns nil if the record doesn't exist
func (s *Store) LoadRecord(orderKey common.Hash) (*order.Record, error) {
	data, closer, err := s.db.Get(recordKey(orderKey))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	defer closer.Close()

	var rec order.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &rec, nil
}
