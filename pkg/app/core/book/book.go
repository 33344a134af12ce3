package book

import (
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/easyswap/easyswap/pkg/app/core/account"
	"github.com/easyswap/easyswap/pkg/app/core/nft"
	"github.com/easyswap/easyswap/pkg/app/core/order"
	"github.com/easyswap/easyswap/pkg/app/core/vault"
	"github.com/easyswap/easyswap/pkg/crypto"
	"github.com/easyswap/easyswap/pkg/util"
)

// Config is the protocol configuration fixed at initialization. The share
// is taken on matched trades by the settlement path; the EIP-712 name and
// version feed the order key domain.
type Config struct {
	ProtocolShareBps int64
	EIP712Name       string
	EIP712Version    string
	ChainID          *big.Int
}

// Book owns the registry of known orders keyed by their EIP-712 digest. It
// validates make batches, commands the vault to escrow pledged assets, and
// emits one MakeEvent per accepted order. Batches are all-or-nothing.
type Book struct {
	mu      sync.Mutex
	entered atomic.Bool // reentrancy guard around the whole batch

	address common.Address // the book's own identity, bound into the hash domain
	cfg     Config

	hasher   *crypto.OrderHasher
	vault    *vault.Vault
	accounts *account.Manager
	registry *nft.Registry
	clock    util.Clock

	records  map[common.Hash]*order.Record // in-memory cache over the store
	store    *Store
	notifier *Notifier
	log      *zap.SugaredLogger
}

// New creates an order book with the given identity. The hash domain is
// derived from the config plus the identity, so two deployments never share
// order keys.
func New(cfg Config, address common.Address, v *vault.Vault, accounts *account.Manager, registry *nft.Registry, store *Store, clock util.Clock, logger *zap.Logger) *Book {
	hasher := crypto.NewOrderHasher(crypto.DomainContext{
		Name:              cfg.EIP712Name,
		Version:           cfg.EIP712Version,
		ChainID:           cfg.ChainID,
		VerifyingContract: address,
	})

	return &Book{
		address:  address,
		cfg:      cfg,
		hasher:   hasher,
		vault:    v,
		accounts: accounts,
		registry: registry,
		clock:    clock,
		records:  make(map[common.Hash]*order.Record),
		store:    store,
		notifier: NewNotifier(),
		log:      logger.Sugar(),
	}
}

// Address returns the book's own identity
func (b *Book) Address() common.Address {
	return b.address
}

// Config returns the protocol configuration fixed at initialization
func (b *Book) Config() Config {
	return b.cfg
}

// Hasher exposes the bound order hasher so external callers can recompute
// keys and verify what the book stored.
func (b *Book) Hasher() *crypto.OrderHasher {
	return b.hasher
}

// Subscribe returns a channel receiving one MakeEvent per accepted order
func (b *Book) Subscribe() <-chan MakeEvent {
	return b.notifier.Subscribe()
}

// escrowPlan is one validated order waiting for execution
type escrowPlan struct {
	index int
	ord   order.Order
	key   common.Hash
}

// MakeOrders accepts a batch of orders atomically: every order is hashed
// and validated before any state moves, then each pledged asset is
// escrowed and the record persisted. On any failure the whole batch is
// unwound and a BatchError identifies the offending position.
//
// attachedFunds is the native currency the caller pledges toward Bid
// orders. Only the cumulative Bid price is ever debited; surplus stays
// with the caller.
func (b *Book) MakeOrders(caller common.Address, orders []order.Order, attachedFunds *big.Int) ([]common.Hash, error) {
	if !b.entered.CompareAndSwap(false, true) {
		return nil, order.ErrReentrantCall
	}
	defer b.entered.Store(false)

	b.mu.Lock()
	defer b.mu.Unlock()

	attached := new(big.Int)
	if attachedFunds != nil {
		attached.Set(attachedFunds)
	}
	now := b.clock.Now().Unix()

	// Validation pass: hash and check every order before touching state.
	plans := make([]escrowPlan, 0, len(orders))
	seen := make(map[common.Hash]struct{}, len(orders))
	needed := new(big.Int)
	lastBid := -1

	for i, o := range orders {
		if err := o.Validate(); err != nil {
			return nil, &order.BatchError{Index: i, Err: err}
		}
		if o.Maker != caller {
			return nil, &order.BatchError{Index: i, Err: order.ErrInvalidMaker}
		}
		if o.Expiry <= now {
			return nil, &order.BatchError{Index: i, Err: order.ErrOrderExpired}
		}

		key, err := b.hasher.HashOrder(&o)
		if err != nil {
			return nil, &order.BatchError{Index: i, Err: err}
		}
		if _, dup := seen[key]; dup {
			return nil, &order.BatchError{Index: i, Err: order.ErrDuplicateOrder}
		}
		if rec, err := b.getRecordLocked(key); err != nil {
			return nil, &order.BatchError{Index: i, Err: err}
		} else if rec != nil {
			return nil, &order.BatchError{Index: i, Err: order.ErrDuplicateOrder}
		}

		switch o.Side {
		case order.SideList:
			owner, exists := b.registry.OwnerOf(o.Asset.Collection, o.Asset.TokenID)
			if !exists || owner != o.Maker {
				return nil, &order.BatchError{Index: i, Err: order.ErrNotAssetOwner}
			}
			if !b.vault.IsApproved(o.Asset.Collection, o.Maker) {
				return nil, &order.BatchError{Index: i, Err: order.ErrNotApproved}
			}
		case order.SideBid:
			needed.Add(needed, o.Price)
			lastBid = i
			if needed.Cmp(attached) > 0 {
				return nil, &order.BatchError{Index: i, Err: order.ErrInsufficientAttachedFunds}
			}
		}

		seen[key] = struct{}{}
		plans = append(plans, escrowPlan{index: i, ord: o, key: key})
	}

	// The declared attachment must be backed by the caller's real balance
	// for the part that will actually be consumed.
	if needed.Sign() > 0 && b.accounts.BalanceOf(caller).Cmp(needed) < 0 {
		return nil, &order.BatchError{Index: lastBid, Err: order.ErrInsufficientAttachedFunds}
	}

	// Execution pass: move assets, then commit records. Undo in reverse on
	// any failure so no partial batch is ever observable.
	var undo []func()
	fail := func(i int, err error) ([]common.Hash, error) {
		for j := len(undo) - 1; j >= 0; j-- {
			undo[j]()
		}
		return nil, &order.BatchError{Index: i, Err: err}
	}

	if needed.Sign() > 0 {
		if err := b.accounts.Transfer(caller, b.vault.Address(), needed); err != nil {
			return nil, &order.BatchError{Index: lastBid, Err: err}
		}
		consumed := new(big.Int).Set(needed)
		undo = append(undo, func() {
			_ = b.accounts.Transfer(b.vault.Address(), caller, consumed)
		})
	}

	keys := make([]common.Hash, len(orders))
	events := make([]MakeEvent, 0, len(orders))

	for _, p := range plans {
		p := p
		switch p.ord.Side {
		case order.SideList:
			if err := b.vault.CustodyNFT(b.address, p.ord.Maker, p.ord.Asset, p.key); err != nil {
				return fail(p.index, err)
			}
			undo = append(undo, func() {
				_ = b.vault.WithdrawNFT(b.address, p.ord.Maker, p.ord.Asset, p.key)
			})
		case order.SideBid:
			if err := b.vault.CreditBalance(b.address, p.ord.Maker, p.ord.Price, p.key); err != nil {
				return fail(p.index, err)
			}
			undo = append(undo, func() {
				_ = b.vault.WithdrawBalance(b.address, p.ord.Maker, p.ord.Price)
			})
		}

		rec := order.NewRecord(p.ord)
		if b.store != nil {
			if err := b.store.SaveRecord(p.key, rec); err != nil {
				return fail(p.index, err)
			}
		}
		b.records[p.key] = rec
		undo = append(undo, func() {
			delete(b.records, p.key)
			if b.store != nil {
				_ = b.store.DeleteRecord(p.key)
			}
		})

		keys[p.index] = p.key
		events = append(events, MakeEvent{OrderKey: p.key, Order: p.ord, Timestamp: now})
	}

	// Success: the batch is committed, notify observers.
	for _, ev := range events {
		b.notifier.Publish(ev)
		b.log.Infow("order_made",
			"order_key", ev.OrderKey.Hex(),
			"side", ev.Order.Side.String(),
			"maker", ev.Order.Maker.Hex(),
			"price", ev.Order.Price.String(),
		)
	}

	return keys, nil
}

// GetOrder returns the stored record for an order key
func (b *Book) GetOrder(orderKey common.Hash) (*order.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.getRecordLocked(orderKey)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, order.ErrOrderNotFound
	}

	// Copy so callers cannot mutate the registry through the pointer. The
	// big.Int fields need their own copies or they would still alias the
	// stored values.
	cp := *rec
	cp.Order.Price = new(big.Int).Set(rec.Order.Price)
	cp.Order.Asset.TokenID = new(big.Int).Set(rec.Order.Asset.TokenID)
	return &cp, nil
}

// getRecordLocked returns the record, loading from the store on a cache
// miss. Assumes the lock is held. Returns nil, nil when unknown.
func (b *Book) getRecordLocked(orderKey common.Hash) (*order.Record, error) {
	if rec, ok := b.records[orderKey]; ok {
		return rec, nil
	}
	if b.store == nil {
		return nil, nil
	}

	rec, err := b.store.LoadRecord(orderKey)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		b.records[orderKey] = rec
	}
	return rec, nil
}
