package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema for the vault ledgers
// Balances and custody rows live under separate prefixes so each can be
// hydrated with a single range scan on startup.
const (
	prefixBalance = "vbal:"
	prefixCustody = "vnft:"
)

// balanceKey returns the key for a maker's custodial balance
// Format: "vbal:{address}"
func balanceKey(maker common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixBalance, maker.Hex()))
}

// custodyKey returns the key for a custodied token
// Format: "vnft:{collection}:{tokenId}"
func custodyKey(collection common.Address, tokenID *big.Int) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixCustody, collection.Hex(), tokenID.String()))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
