package account

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Account holds a user's external native-currency balance, the funds a
// caller attaches to makeOrders before any of it is escrowed. Balances are
// in wei.
type Account struct {
	Address common.Address `json:"address"`
	Balance *big.Int       `json:"balance"`
	Nonce   uint64         `json:"nonce"`
}

// NewAccount creates a new account with zero balance
func NewAccount(addr common.Address) *Account {
	return &Account{
		Address: addr,
		Balance: new(big.Int),
	}
}

// Validate checks account invariants
func (a *Account) Validate() error {
	if a.Balance == nil {
		return fmt.Errorf("nil balance for %s", a.Address.Hex())
	}
	if a.Balance.Sign() < 0 {
		return fmt.Errorf("negative balance for %s: %s", a.Address.Hex(), a.Balance)
	}
	return nil
}
