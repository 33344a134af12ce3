package vault

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store provides Pebble-based persistence for the vault ledgers
// Thread-safe: all operations go through Vault's mutex
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(32 << 20),
		MemTableSize: 16 << 20,
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

// balanceRow is the persisted form of one custodial balance
type balanceRow struct {
	Maker   common.Address `json:"maker"`
	Balance *big.Int       `json:"balance"`
}

// custodyRow is the persisted form of one custodied token
type custodyRow struct {
	Collection common.Address `json:"collection"`
	TokenID    *big.Int       `json:"tokenId"`
	OrderKey   common.Hash    `json:"orderKey"`
}

// SaveBalance persists a maker's custodial balance
func (s *Store) SaveBalance(maker common.Address, balance *big.Int) error {
	data, err := json.Marshal(balanceRow{Maker: maker, Balance: balance})
	if err != nil {
		return fmt.Errorf("failed to marshal balance: %w", err)
	}

	if err := s.db.Set(balanceKey(maker), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}

	return nil
}

// SaveCustody records which order key an asset is held for
func (s *Store) SaveCustody(collection common.Address, tokenID *big.Int, orderKey common.Hash) error {
	data, err := json.Marshal(custodyRow{Collection: collection, TokenID: tokenID, OrderKey: orderKey})
	if err != nil {
		return fmt.Errorf("failed to marshal custody: %w", err)
	}

	if err := s.db.Set(custodyKey(collection, tokenID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save custody: %w", err)
	}

	return nil
}

// DeleteCustody removes a custody record after the asset leaves the vault
func (s *Store) DeleteCustody(collection common.Address, tokenID *big.Int) error {
	if err := s.db.Delete(custodyKey(collection, tokenID), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete custody: %w", err)
	}
	return nil
}

// LoadBalances hydrates every custodial balance from Pebble
func (s *Store) LoadBalances() (map[common.Address]*big.Int, error) {
	prefix := []byte(prefixBalance)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open balance iterator: %w", err)
	}
	defer iter.Close()

	balances := make(map[common.Address]*big.Int)
	for iter.First(); iter.Valid(); iter.Next() {
		var row balanceRow
		if err := json.Unmarshal(iter.Value(), &row); err != nil {
			continue // skip invalid entries
		}
		if row.Balance != nil && row.Balance.Sign() > 0 {
			balances[row.Maker] = row.Balance
		}
	}

	return balances, nil
}

// LoadCustody hydrates the asset -> order key index from Pebble.
// Keys are "{collection}:{tokenId}" matching Vault's in-memory index.
func (s *Store) LoadCustody() (map[string]custodyRow, error) {
	prefix := []byte(prefixCustody)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open custody iterator: %w", err)
	}
	defer iter.Close()

	custody := make(map[string]custodyRow)
	for iter.First(); iter.Valid(); iter.Next() {
		var row custodyRow
		if err := json.Unmarshal(iter.Value(), &row); err != nil {
			continue // skip invalid entries
		}
		id := strings.TrimPrefix(string(iter.Key()), prefixCustody)
		custody[id] = row
	}

	return custody, nil
}
