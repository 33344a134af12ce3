package account

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Manager manages all external balances in a thread-safe manner.
// Uses an in-memory cache + Pebble persistence for durability.
type Manager struct {
	mu       sync.RWMutex
	accounts map[common.Address]*Account // address -> account (in-memory cache)
	store    *Store                      // Pebble persistence layer
}

// NewManager creates an account manager with Pebble persistence
func NewManager(dbPath string) (*Manager, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	return &Manager{
		accounts: make(map[common.Address]*Account),
		store:    store,
	}, nil
}

// Close closes the underlying Pebble database
func (m *Manager) Close() error {
	return m.store.Close()
}

// getLocked returns the account, loading from Pebble or creating it.
// Assumes the write lock is held.
func (m *Manager) getLocked(addr common.Address) *Account {
	if acc, exists := m.accounts[addr]; exists {
		return acc
	}

	acc, err := m.store.LoadAccount(addr)
	if err != nil {
		// Fall through to a fresh account; the load error is not fatal
		// for a devnet ledger.
		acc = nil
	}
	if acc == nil {
		acc = NewAccount(addr)
	}

	m.accounts[addr] = acc
	return acc
}

// Deposit adds native currency to an account, creating it if needed
func (m *Manager) Deposit(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("deposit amount must be positive: %v", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.getLocked(addr)
	acc.Balance = new(big.Int).Add(acc.Balance, amount)

	return m.store.SaveAccount(acc)
}

// Withdraw removes native currency from an account
// Returns error if the balance is insufficient
func (m *Manager) Withdraw(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("withdraw amount must be positive: %v", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.getLocked(addr)
	if acc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance: have %s, need %s", acc.Balance, amount)
	}

	acc.Balance = new(big.Int).Sub(acc.Balance, amount)
	return m.store.SaveAccount(acc)
}

// Transfer moves native currency between two accounts atomically under the
// manager's lock. A zero amount is a no-op.
func (m *Manager) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("transfer amount cannot be negative: %v", amount)
	}
	if amount.Sign() == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.getLocked(from)
	if src.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance: have %s, need %s", src.Balance, amount)
	}
	dst := m.getLocked(to)

	src.Balance = new(big.Int).Sub(src.Balance, amount)
	dst.Balance = new(big.Int).Add(dst.Balance, amount)

	if err := m.store.SaveAccount(src); err != nil {
		return err
	}
	return m.store.SaveAccount(dst)
}

// BalanceOf returns the external balance of an account, loading it from
// Pebble on a cache miss so persisted balances are visible after restart.
// Returns zero for unknown accounts
func (m *Manager) BalanceOf(addr common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.getLocked(addr)
	return new(big.Int).Set(acc.Balance)
}

// Count returns the total number of cached accounts
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
