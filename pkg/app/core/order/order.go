package order

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Side distinguishes the two order flavors: a List offers an NFT for native
// currency, a Bid offers native currency for an NFT.
type Side uint8

const (
	SideList Side = 1
	SideBid  Side = 2
)

func (s Side) String() string {
	switch s {
	case SideList:
		return "list"
	case SideBid:
		return "bid"
	default:
		return "unknown"
	}
}

// SaleKind identifies the pricing mechanism. Only fixed-price-for-item is
// live today; the enum exists so new kinds version cleanly into the hash.
type SaleKind uint8

const (
	FixedPriceForItem SaleKind = 1
)

func (k SaleKind) String() string {
	switch k {
	case FixedPriceForItem:
		return "fixed_price_for_item"
	default:
		return "unknown"
	}
}

// Asset references a token inside a collection.
// Amount is 1 for non-fungible items.
type Asset struct {
	TokenID    *big.Int       `json:"tokenId"`
	Collection common.Address `json:"collection"`
	Amount     int64          `json:"amount"`
}

// Order is a maker's intent to sell (List) or buy (Bid) a specific asset at
// a specific price until expiry. Immutable once accepted; the salt lets a
// maker post otherwise-identical orders.
type Order struct {
	Side     Side           `json:"side"`
	SaleKind SaleKind       `json:"saleKind"`
	Maker    common.Address `json:"maker"`
	Asset    Asset          `json:"nft"`
	Price    *big.Int       `json:"price"`  // native currency, wei
	Expiry   int64          `json:"expiry"` // unix seconds, absolute
	Salt     int64          `json:"salt"`
}

// Validate checks the content-level invariants that hold regardless of side.
// Side-specific preconditions (ownership, approval, funding) are checked by
// the order book against live state.
func (o *Order) Validate() error {
	if o.Side != SideList && o.Side != SideBid {
		return fmt.Errorf("%w: side %d", ErrInvalidOrder, o.Side)
	}
	if o.SaleKind != FixedPriceForItem {
		return fmt.Errorf("%w: sale kind %d", ErrInvalidOrder, o.SaleKind)
	}
	if o.Maker == (common.Address{}) {
		return fmt.Errorf("%w: zero maker", ErrInvalidOrder)
	}
	if o.Price == nil || o.Price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	if o.Asset.TokenID == nil || o.Asset.TokenID.Sign() < 0 {
		return fmt.Errorf("%w: bad token id", ErrInvalidOrder)
	}
	if o.Asset.Amount < 1 {
		return fmt.Errorf("%w: asset amount %d", ErrInvalidOrder, o.Asset.Amount)
	}
	return nil
}

// Status is the lifecycle state of an accepted order.
type Status int8

const (
	StatusOpen Status = iota
	StatusFilled
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Record is the stored form of an accepted order, indexed by its key.
// FilledAmount and Status are mutated only by the matching/cancellation
// paths; creation always produces an open record with zero fill.
type Record struct {
	Order        Order  `json:"order"`
	FilledAmount int64  `json:"filledAmount"`
	Status       Status `json:"status"`
}

// NewRecord returns the record the creation path persists.
func NewRecord(o Order) *Record {
	return &Record{Order: o, FilledAmount: 0, Status: StatusOpen}
}
