package book

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/easyswap/easyswap/pkg/app/core/account"
	"github.com/easyswap/easyswap/pkg/app/core/nft"
	"github.com/easyswap/easyswap/pkg/app/core/order"
	"github.com/easyswap/easyswap/pkg/app/core/vault"
	"github.com/easyswap/easyswap/pkg/util"
)

var (
	bookAddr  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	vaultAddr = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	maker     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	other     = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	coll      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

type fixture struct {
	book     *Book
	vault    *vault.Vault
	accounts *account.Manager
	registry *nft.Registry
	clock    *util.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	registry := nft.NewRegistry()

	accounts, err := account.NewManager(filepath.Join(dir, "accounts"))
	if err != nil {
		t.Fatalf("failed to create account manager: %v", err)
	}
	t.Cleanup(func() { accounts.Close() })

	vaultStore, err := vault.NewStore(filepath.Join(dir, "vault"))
	if err != nil {
		t.Fatalf("failed to create vault store: %v", err)
	}
	t.Cleanup(func() { vaultStore.Close() })

	v, err := vault.New(vaultAddr, registry, vaultStore, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create vault: %v", err)
	}
	if err := v.SetOrderBook(bookAddr); err != nil {
		t.Fatalf("set order book failed: %v", err)
	}

	bookStore, err := NewStore(filepath.Join(dir, "orders"))
	if err != nil {
		t.Fatalf("failed to create book store: %v", err)
	}
	t.Cleanup(func() { bookStore.Close() })

	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))
	cfg := Config{
		ProtocolShareBps: 200,
		EIP712Name:       "EasySwapOrderBook",
		EIP712Version:    "1",
		ChainID:          big.NewInt(1337),
	}
	b := New(cfg, bookAddr, v, accounts, registry, bookStore, clock, zap.NewNop())

	return &fixture{book: b, vault: v, accounts: accounts, registry: registry, clock: clock}
}

func (f *fixture) mintAndApprove(t *testing.T, owner common.Address, tokenID int64) {
	t.Helper()
	f.registry.Mint(coll, big.NewInt(tokenID), owner)
	f.registry.SetApprovalForAll(coll, owner, vaultAddr, true)
}

func listOrder(m common.Address, tokenID, salt int64, price *big.Int) order.Order {
	return order.Order{
		Side:     order.SideList,
		SaleKind: order.FixedPriceForItem,
		Maker:    m,
		Asset:    order.Asset{TokenID: big.NewInt(tokenID), Collection: coll, Amount: 1},
		Price:    price,
		Expiry:   1_700_100_000,
		Salt:     salt,
	}
}

func bidOrder(m common.Address, tokenID, salt int64, price *big.Int) order.Order {
	o := listOrder(m, tokenID, salt, price)
	o.Side = order.SideBid
	return o
}

// wei converts milli-ether to wei, exact in integer math
func wei(milliEth int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(milliEth), big.NewInt(1e15))
}

func batchIndex(t *testing.T, err error) int {
	t.Helper()
	var berr *order.BatchError
	if !errors.As(err, &berr) {
		t.Fatalf("error %v is not a BatchError", err)
	}
	return berr.Index
}

func TestMakeListOrder(t *testing.T) {
	f := newFixture(t)
	f.mintAndApprove(t, maker, 0)

	keys, err := f.book.MakeOrders(maker, []order.Order{listOrder(maker, 0, 1, wei(10))}, nil)
	if err != nil {
		t.Fatalf("make failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}

	// NFT moved into escrow against the order key
	owner, _ := f.registry.OwnerOf(coll, big.NewInt(0))
	if owner != vaultAddr {
		t.Errorf("owner = %s, want vault", owner.Hex())
	}
	key, held := f.vault.CustodianOf(order.Asset{TokenID: big.NewInt(0), Collection: coll, Amount: 1})
	if !held || key != keys[0] {
		t.Errorf("custodian = %s, want %s", key.Hex(), keys[0].Hex())
	}

	rec, err := f.book.GetOrder(keys[0])
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if rec.Status != order.StatusOpen || rec.FilledAmount != 0 {
		t.Errorf("record = %+v, want open unfilled", rec)
	}
}

func TestMakeBidOrderDebitsExactPrice(t *testing.T) {
	f := newFixture(t)
	f.accounts.Deposit(maker, wei(1000))

	// Attach 0.02 for a 0.01 bid; only 0.01 may leave the account.
	keys, err := f.book.MakeOrders(maker, []order.Order{bidOrder(maker, 0, 1, wei(10))}, wei(20))
	if err != nil {
		t.Fatalf("make failed: %v", err)
	}

	if got := f.accounts.BalanceOf(maker); got.Cmp(wei(990)) != 0 {
		t.Errorf("maker balance = %s, want %s", got, wei(990))
	}
	if got := f.accounts.BalanceOf(vaultAddr); got.Cmp(wei(10)) != 0 {
		t.Errorf("vault balance = %s, want %s", got, wei(10))
	}
	if got := f.vault.BalanceOf(maker); got.Cmp(wei(10)) != 0 {
		t.Errorf("custodial balance = %s, want %s", got, wei(10))
	}

	rec, err := f.book.GetOrder(keys[0])
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if rec.Order.Side != order.SideBid {
		t.Errorf("side = %v, want bid", rec.Order.Side)
	}
}

func TestMakeMixedBatch(t *testing.T) {
	f := newFixture(t)
	f.mintAndApprove(t, maker, 0)
	f.accounts.Deposit(maker, wei(1000))

	orders := []order.Order{
		listOrder(maker, 0, 1, wei(10)),
		bidOrder(maker, 1, 2, wei(20)),
	}
	keys, err := f.book.MakeOrders(maker, orders, wei(20))
	if err != nil {
		t.Fatalf("make failed: %v", err)
	}
	if len(keys) != 2 || keys[0] == keys[1] {
		t.Fatalf("keys = %v, want 2 distinct", keys)
	}

	if got := f.accounts.BalanceOf(maker); got.Cmp(wei(980)) != 0 {
		t.Errorf("maker balance = %s, want %s", got, wei(980))
	}
	for _, k := range keys {
		if _, err := f.book.GetOrder(k); err != nil {
			t.Errorf("get %s failed: %v", k.Hex(), err)
		}
	}
}

func TestMakeOrdersAtomicFailure(t *testing.T) {
	f := newFixture(t)
	f.mintAndApprove(t, maker, 0)
	f.accounts.Deposit(maker, wei(1000))

	// Second order fails validation (token 1 not owned by maker), so the
	// valid first order must not be admitted either.
	orders := []order.Order{
		listOrder(maker, 0, 1, wei(10)),
		listOrder(maker, 1, 2, wei(10)),
	}
	_, err := f.book.MakeOrders(maker, orders, nil)
	if !errors.Is(err, order.ErrNotAssetOwner) {
		t.Fatalf("error = %v, want ErrNotAssetOwner", err)
	}
	if idx := batchIndex(t, err); idx != 1 {
		t.Errorf("failing index = %d, want 1", idx)
	}

	// No state moved for the first order
	owner, _ := f.registry.OwnerOf(coll, big.NewInt(0))
	if owner != maker {
		t.Errorf("owner = %s, want maker", owner.Hex())
	}
	if got := f.accounts.BalanceOf(maker); got.Cmp(wei(1000)) != 0 {
		t.Errorf("maker balance = %s, want untouched", got)
	}

	firstKey, err := f.book.Hasher().HashOrder(&orders[0])
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if _, err := f.book.GetOrder(firstKey); !errors.Is(err, order.ErrOrderNotFound) {
		t.Errorf("first order was recorded despite batch failure: %v", err)
	}
}

func TestMakeOrdersDuplicateRejected(t *testing.T) {
	f := newFixture(t)
	f.mintAndApprove(t, maker, 0)
	f.mintAndApprove(t, maker, 1)

	o := listOrder(maker, 0, 1, wei(10))

	// Intra-batch duplicate
	_, err := f.book.MakeOrders(maker, []order.Order{o, o}, nil)
	if !errors.Is(err, order.ErrDuplicateOrder) {
		t.Fatalf("error = %v, want ErrDuplicateOrder", err)
	}
	if idx := batchIndex(t, err); idx != 1 {
		t.Errorf("failing index = %d, want 1", idx)
	}

	// Duplicate of a stored order
	if _, err := f.book.MakeOrders(maker, []order.Order{o}, nil); err != nil {
		t.Fatalf("make failed: %v", err)
	}
	_, err = f.book.MakeOrders(maker, []order.Order{o}, nil)
	if !errors.Is(err, order.ErrDuplicateOrder) {
		t.Errorf("error = %v, want ErrDuplicateOrder", err)
	}

	// A different salt is a different order
	o2 := listOrder(maker, 1, 2, wei(10))
	if _, err := f.book.MakeOrders(maker, []order.Order{o2}, nil); err != nil {
		t.Errorf("distinct order rejected: %v", err)
	}
}

func TestMakeOrdersExpiry(t *testing.T) {
	f := newFixture(t)
	f.mintAndApprove(t, maker, 0)

	f.clock.Advance(200_000 * time.Second) // past the order's expiry

	_, err := f.book.MakeOrders(maker, []order.Order{listOrder(maker, 0, 1, wei(10))}, nil)
	if !errors.Is(err, order.ErrOrderExpired) {
		t.Errorf("error = %v, want ErrOrderExpired", err)
	}
}

func TestMakeOrdersInvalidMaker(t *testing.T) {
	f := newFixture(t)
	f.mintAndApprove(t, maker, 0)

	_, err := f.book.MakeOrders(other, []order.Order{listOrder(maker, 0, 1, wei(10))}, nil)
	if !errors.Is(err, order.ErrInvalidMaker) {
		t.Errorf("error = %v, want ErrInvalidMaker", err)
	}
}

func TestMakeOrdersInsufficientAttachedFunds(t *testing.T) {
	f := newFixture(t)
	f.accounts.Deposit(maker, wei(1000))

	orders := []order.Order{
		bidOrder(maker, 0, 1, wei(10)),
		bidOrder(maker, 1, 2, wei(20)),
	}

	// 0.02 attached against a cumulative 0.03 of bids
	_, err := f.book.MakeOrders(maker, orders, wei(20))
	if !errors.Is(err, order.ErrInsufficientAttachedFunds) {
		t.Fatalf("error = %v, want ErrInsufficientAttachedFunds", err)
	}
	if idx := batchIndex(t, err); idx != 1 {
		t.Errorf("failing index = %d, want 1", idx)
	}
	if got := f.accounts.BalanceOf(maker); got.Cmp(wei(1000)) != 0 {
		t.Errorf("maker balance = %s, want untouched", got)
	}

	// Attachment declared but not backed by the account balance
	_, err = f.book.MakeOrders(other, []order.Order{bidOrder(other, 0, 1, wei(10))}, wei(10))
	if !errors.Is(err, order.ErrInsufficientAttachedFunds) {
		t.Errorf("error = %v, want ErrInsufficientAttachedFunds", err)
	}
}

func TestMakeOrdersApprovalRequired(t *testing.T) {
	f := newFixture(t)
	f.registry.Mint(coll, big.NewInt(0), maker) // owned but never approved

	_, err := f.book.MakeOrders(maker, []order.Order{listOrder(maker, 0, 1, wei(10))}, nil)
	if !errors.Is(err, order.ErrNotApproved) {
		t.Errorf("error = %v, want ErrNotApproved", err)
	}
}

func TestMakeOrdersEmptyBatch(t *testing.T) {
	f := newFixture(t)

	keys, err := f.book.MakeOrders(maker, nil, nil)
	if err != nil {
		t.Fatalf("empty batch failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("got %d keys, want 0", len(keys))
	}
}

func TestOrderKeyRecomputable(t *testing.T) {
	f := newFixture(t)
	f.mintAndApprove(t, maker, 0)

	o := listOrder(maker, 0, 7, wei(10))
	keys, err := f.book.MakeOrders(maker, []order.Order{o}, nil)
	if err != nil {
		t.Fatalf("make failed: %v", err)
	}

	recomputed, err := f.book.Hasher().HashOrder(&o)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if recomputed != keys[0] {
		t.Errorf("recomputed key %s != stored key %s", recomputed.Hex(), keys[0].Hex())
	}
}

func TestMakeEventsPublished(t *testing.T) {
	f := newFixture(t)
	f.mintAndApprove(t, maker, 0)
	sub := f.book.Subscribe()

	keys, err := f.book.MakeOrders(maker, []order.Order{listOrder(maker, 0, 1, wei(10))}, nil)
	if err != nil {
		t.Fatalf("make failed: %v", err)
	}

	select {
	case ev := <-sub:
		if ev.OrderKey != keys[0] {
			t.Errorf("event key = %s, want %s", ev.OrderKey.Hex(), keys[0].Hex())
		}
		if ev.Order.Maker != maker {
			t.Errorf("event maker = %s, want %s", ev.Order.Maker.Hex(), maker.Hex())
		}
	case <-time.After(time.Second):
		t.Fatal("no make event received")
	}
}

func TestGetOrderReturnsIsolatedCopy(t *testing.T) {
	f := newFixture(t)
	f.mintAndApprove(t, maker, 0)

	keys, err := f.book.MakeOrders(maker, []order.Order{listOrder(maker, 0, 1, wei(10))}, nil)
	if err != nil {
		t.Fatalf("make failed: %v", err)
	}

	rec, err := f.book.GetOrder(keys[0])
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}

	// Mutating the returned record must not leak into the registry.
	rec.Status = order.StatusCancelled
	rec.Order.Price.SetInt64(1)
	rec.Order.Asset.TokenID.SetInt64(99)

	again, err := f.book.GetOrder(keys[0])
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if again.Status != order.StatusOpen {
		t.Errorf("status = %v, want open", again.Status)
	}
	if again.Order.Price.Cmp(wei(10)) != 0 {
		t.Errorf("price = %s, want %s", again.Order.Price, wei(10))
	}
	if again.Order.Asset.TokenID.Cmp(big.NewInt(0)) != 0 {
		t.Errorf("tokenId = %s, want 0", again.Order.Asset.TokenID)
	}
}

func TestGetOrderUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.book.GetOrder(common.HexToHash("0xdead"))
	if !errors.Is(err, order.ErrOrderNotFound) {
		t.Errorf("error = %v, want ErrOrderNotFound", err)
	}
}

func TestRecordsSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	registry := nft.NewRegistry()

	accounts, err := account.NewManager(filepath.Join(dir, "accounts"))
	if err != nil {
		t.Fatalf("failed to create account manager: %v", err)
	}
	t.Cleanup(func() { accounts.Close() })

	vaultStore, err := vault.NewStore(filepath.Join(dir, "vault"))
	if err != nil {
		t.Fatalf("failed to create vault store: %v", err)
	}
	t.Cleanup(func() { vaultStore.Close() })
	v, err := vault.New(vaultAddr, registry, vaultStore, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create vault: %v", err)
	}
	v.SetOrderBook(bookAddr)

	cfg := Config{ProtocolShareBps: 200, EIP712Name: "EasySwapOrderBook", EIP712Version: "1", ChainID: big.NewInt(1337)}
	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))

	store1, err := NewStore(filepath.Join(dir, "orders"))
	if err != nil {
		t.Fatalf("failed to create book store: %v", err)
	}
	b1 := New(cfg, bookAddr, v, accounts, registry, store1, clock, zap.NewNop())

	registry.Mint(coll, big.NewInt(0), maker)
	registry.SetApprovalForAll(coll, maker, vaultAddr, true)
	keys, err := b1.MakeOrders(maker, []order.Order{listOrder(maker, 0, 1, wei(10))}, nil)
	if err != nil {
		t.Fatalf("make failed: %v", err)
	}
	store1.Close()

	store2, err := NewStore(filepath.Join(dir, "orders"))
	if err != nil {
		t.Fatalf("failed to reopen book store: %v", err)
	}
	t.Cleanup(func() { store2.Close() })
	b2 := New(cfg, bookAddr, v, accounts, registry, store2, clock, zap.NewNop())

	rec, err := b2.GetOrder(keys[0])
	if err != nil {
		t.Fatalf("get after restart failed: %v", err)
	}
	if rec.Status != order.StatusOpen {
		t.Errorf("status = %v, want open", rec.Status)
	}

	// A duplicate is still a duplicate across restarts
	_, err = b2.MakeOrders(maker, []order.Order{listOrder(maker, 0, 1, wei(10))}, nil)
	if !errors.Is(err, order.ErrDuplicateOrder) {
		t.Errorf("error = %v, want ErrDuplicateOrder", err)
	}
}
