package vault

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/easyswap/easyswap/pkg/app/core/nft"
	"github.com/easyswap/easyswap/pkg/app/core/order"
)

// Vault custodies the assets pledged by open orders: per-maker native
// currency balances and NFTs held against an order key. The order book
// never holds assets itself; it commands the vault, and the vault accepts
// commands from exactly one order book identity.
type Vault struct {
	mu      sync.RWMutex
	address common.Address // the vault's own identity

	orderBook    common.Address // the one caller allowed to command escrow
	orderBookSet bool

	balances map[common.Address]*big.Int // maker -> custodial balance (wei)
	custody  map[string]common.Hash      // "{collection}:{tokenId}" -> order key

	registry *nft.Registry
	store    *Store
	log      *zap.SugaredLogger
}

// New creates a vault with the given identity, hydrating ledgers from the
// store if it holds prior state.
func New(address common.Address, registry *nft.Registry, store *Store, logger *zap.Logger) (*Vault, error) {
	v := &Vault{
		address:  address,
		balances: make(map[common.Address]*big.Int),
		custody:  make(map[string]common.Hash),
		registry: registry,
		store:    store,
		log:      logger.Sugar(),
	}

	if store != nil {
		balances, err := store.LoadBalances()
		if err != nil {
			return nil, fmt.Errorf("failed to load vault balances: %w", err)
		}
		v.balances = balances

		custody, err := store.LoadCustody()
		if err != nil {
			return nil, fmt.Errorf("failed to load vault custody: %w", err)
		}
		for id, row := range custody {
			v.custody[id] = row.OrderKey
		}
	}

	return v, nil
}

// Address returns the vault's own identity
func (v *Vault) Address() common.Address {
	return v.address
}

// SetOrderBook configures the one order book allowed to command the vault.
// Repeated calls are idempotent reconfiguration; deploy scripts call this
// more than once during setup.
func (v *Vault) SetOrderBook(book common.Address) error {
	if book == (common.Address{}) {
		return fmt.Errorf("order book address cannot be zero")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.orderBook = book
	v.orderBookSet = true
	v.log.Infow("order_book_set", "book", book.Hex())
	return nil
}

// OrderBook returns the configured order book identity
func (v *Vault) OrderBook() common.Address {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.orderBook
}

// authorize rejects any escrow command not coming from the configured book.
// Assumes the lock is held.
func (v *Vault) authorize(caller common.Address) error {
	if !v.orderBookSet || caller != v.orderBook {
		return fmt.Errorf("%w: %s is not the order book", order.ErrUnauthorizedCaller, caller.Hex())
	}
	return nil
}

// CustodyNFT transfers the referenced asset from `from` into vault custody,
// recorded against orderKey. Fails if `from` does not own the asset or has
// not approved the vault, leaving all state untouched.
func (v *Vault) CustodyNFT(caller, from common.Address, asset order.Asset, orderKey common.Hash) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.authorize(caller); err != nil {
		return err
	}

	id := assetID(asset)
	if _, held := v.custody[id]; held {
		return fmt.Errorf("asset %s already in custody", id)
	}

	owner, exists := v.registry.OwnerOf(asset.Collection, asset.TokenID)
	if !exists || owner != from {
		return fmt.Errorf("%w: %s", order.ErrNotAssetOwner, id)
	}
	if !v.registry.IsApprovedForAll(asset.Collection, from, v.address) {
		return fmt.Errorf("%w: %s", order.ErrNotApproved, id)
	}

	if err := v.registry.Transfer(asset.Collection, v.address, from, v.address, asset.TokenID); err != nil {
		return fmt.Errorf("custody transfer failed: %w", err)
	}

	v.custody[id] = orderKey
	if v.store != nil {
		if err := v.store.SaveCustody(asset.Collection, asset.TokenID, orderKey); err != nil {
			// Undo the registry move so ledger and holdings stay equal.
			_ = v.registry.Transfer(asset.Collection, v.address, v.address, from, asset.TokenID)
			delete(v.custody, id)
			return err
		}
	}

	v.log.Infow("nft_custodied", "asset", id, "from", from.Hex(), "order_key", orderKey.Hex())
	return nil
}

// WithdrawNFT releases a custodied asset back to `to`. Used by the cancel
// and settlement paths, and by the book to unwind a failed batch.
func (v *Vault) WithdrawNFT(caller, to common.Address, asset order.Asset, orderKey common.Hash) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.authorize(caller); err != nil {
		return err
	}

	id := assetID(asset)
	held, ok := v.custody[id]
	if !ok {
		return fmt.Errorf("asset %s not in custody", id)
	}
	if held != orderKey {
		return fmt.Errorf("asset %s held for a different order", id)
	}

	if err := v.registry.Transfer(asset.Collection, v.address, v.address, to, asset.TokenID); err != nil {
		return fmt.Errorf("withdraw transfer failed: %w", err)
	}

	delete(v.custody, id)
	if v.store != nil {
		if err := v.store.DeleteCustody(asset.Collection, asset.TokenID); err != nil {
			return err
		}
	}

	v.log.Infow("nft_withdrawn", "asset", id, "to", to.Hex(), "order_key", orderKey.Hex())
	return nil
}

// CreditBalance increases a maker's custodial balance by amount, recorded
// against orderKey. The caller is responsible for having moved the matching
// native currency to the vault's account first.
func (v *Vault) CreditBalance(caller, maker common.Address, amount *big.Int, orderKey common.Hash) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("credit amount must be positive: %v", amount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.authorize(caller); err != nil {
		return err
	}

	current, ok := v.balances[maker]
	if !ok {
		current = new(big.Int)
	}
	next := new(big.Int).Add(current, amount)

	if v.store != nil {
		if err := v.store.SaveBalance(maker, next); err != nil {
			return err
		}
	}
	v.balances[maker] = next

	v.log.Infow("balance_credited", "maker", maker.Hex(), "amount", amount.String(), "order_key", orderKey.Hex())
	return nil
}

// WithdrawBalance decreases a maker's custodial balance by amount. Used by
// the cancel and settlement paths, and by the book to unwind a failed
// batch.
func (v *Vault) WithdrawBalance(caller, maker common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("withdraw amount must be positive: %v", amount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.authorize(caller); err != nil {
		return err
	}

	current, ok := v.balances[maker]
	if !ok || current.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient custodial balance: have %v, need %s", current, amount)
	}
	next := new(big.Int).Sub(current, amount)

	if v.store != nil {
		if err := v.store.SaveBalance(maker, next); err != nil {
			return err
		}
	}
	if next.Sign() == 0 {
		delete(v.balances, maker)
	} else {
		v.balances[maker] = next
	}

	v.log.Infow("balance_withdrawn", "maker", maker.Hex(), "amount", amount.String())
	return nil
}

// BalanceOf returns a maker's custodial balance
func (v *Vault) BalanceOf(maker common.Address) *big.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	balance, ok := v.balances[maker]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balance)
}

// TotalBalances returns the sum of every custodial balance. The invariant
// is that this never exceeds the vault account's external balance.
func (v *Vault) TotalBalances() *big.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	total := new(big.Int)
	for _, balance := range v.balances {
		total.Add(total, balance)
	}
	return total
}

// CustodianOf returns the order key an asset is held for
// The second return is false if the asset is not in custody
func (v *Vault) CustodianOf(asset order.Asset) (common.Hash, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	key, ok := v.custody[assetID(asset)]
	return key, ok
}

// IsApproved reports whether owner has approved the vault as operator for
// a collection. The book checks this before accepting a List order.
func (v *Vault) IsApproved(collection, owner common.Address) bool {
	return v.registry.IsApprovedForAll(collection, owner, v.address)
}

func assetID(asset order.Asset) string {
	return fmt.Sprintf("%s:%s", asset.Collection.Hex(), asset.TokenID.String())
}
