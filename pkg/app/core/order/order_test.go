package order

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func validOrder() Order {
	return Order{
		Side:     SideList,
		SaleKind: FixedPriceForItem,
		Maker:    common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		Asset: Asset{
			TokenID:    big.NewInt(0),
			Collection: common.HexToAddress("0x00000000000000000000000000000000000000c1"),
			Amount:     1,
		},
		Price:  big.NewInt(10_000_000_000_000_000),
		Expiry: 2_000_000_000,
		Salt:   1,
	}
}

func TestOrderValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Order)
		wantErr error
	}{
		{"valid", func(o *Order) {}, nil},
		{"zero price", func(o *Order) { o.Price = big.NewInt(0) }, ErrInvalidPrice},
		{"negative price", func(o *Order) { o.Price = big.NewInt(-1) }, ErrInvalidPrice},
		{"nil price", func(o *Order) { o.Price = nil }, ErrInvalidPrice},
		{"bad side", func(o *Order) { o.Side = 0 }, ErrInvalidOrder},
		{"bad sale kind", func(o *Order) { o.SaleKind = 9 }, ErrInvalidOrder},
		{"zero maker", func(o *Order) { o.Maker = common.Address{} }, ErrInvalidOrder},
		{"nil token id", func(o *Order) { o.Asset.TokenID = nil }, ErrInvalidOrder},
		{"zero amount", func(o *Order) { o.Asset.Amount = 0 }, ErrInvalidOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOrder()
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(validOrder())

	if rec.Status != StatusOpen {
		t.Errorf("status = %v, want open", rec.Status)
	}
	if rec.FilledAmount != 0 {
		t.Errorf("filled = %d, want 0", rec.FilledAmount)
	}
}

func TestBatchErrorUnwrap(t *testing.T) {
	err := &BatchError{Index: 3, Err: ErrOrderExpired}

	if !errors.Is(err, ErrOrderExpired) {
		t.Error("BatchError does not unwrap to its sentinel")
	}

	var batchErr *BatchError
	if !errors.As(error(err), &batchErr) || batchErr.Index != 3 {
		t.Error("BatchError lost its index")
	}
}
