package book

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. The order key digest is the primary key.
const prefixRecord = "ord:"

// recordKey returns the key for an order record
// Format: "ord:{orderKey}"
func recordKey(orderKey common.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixRecord, orderKey.Hex()))
}
