package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/easyswap/easyswap/params"
	"github.com/easyswap/easyswap/pkg/app/core/order"
	"github.com/easyswap/easyswap/pkg/crypto"
)

// hash-order computes an order key standalone, outside the service, so any
// external party can verify what the book stored for a given order. It
// also demonstrates maker signing over the key.
func main() {
	cfg := params.LoadFromEnv("")

	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Maker: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	o := &order.Order{
		Side:     order.SideList,
		SaleKind: order.FixedPriceForItem,
		Maker:    signer.Address(),
		Asset: order.Asset{
			TokenID:    big.NewInt(0),
			Collection: crypto.DeriveIdentity("example:collection"),
			Amount:     1,
		},
		Price:  big.NewInt(10_000_000_000_000_000), // 0.01 in wei
		Expiry: time.Now().Unix() + 100000,
		Salt:   1,
	}

	bookAddr := crypto.DeriveIdentity(cfg.Protocol.EIP712Name + ":book")
	hasher := crypto.NewOrderHasher(crypto.DomainContext{
		Name:              cfg.Protocol.EIP712Name,
		Version:           cfg.Protocol.EIP712Version,
		ChainID:           big.NewInt(cfg.Protocol.ChainID),
		VerifyingContract: bookAddr,
	})

	key, err := hasher.HashOrder(o)
	if err != nil {
		fmt.Printf("Error hashing: %v\n", err)
		os.Exit(1)
	}

	signature, err := hasher.SignOrder(signer, o)
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	orderJSON, _ := json.MarshalIndent(o, "", "  ")
	fmt.Printf("Order:\n%s\n\n", orderJSON)
	fmt.Printf("Domain: name=%s version=%s chainId=%d book=%s\n",
		cfg.Protocol.EIP712Name, cfg.Protocol.EIP712Version, cfg.Protocol.ChainID, bookAddr.Hex())
	fmt.Printf("Order Key: %s\n", key.Hex())
	fmt.Printf("Signature: 0x%x\n", signature)
}
