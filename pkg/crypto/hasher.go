package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/easyswap/easyswap/pkg/app/core/order"
)

// DomainContext is the EIP-712 domain separator binding order keys to one
// deployment: protocol name, schema version, chain id, and the order book's
// own identity. Identical order content under a different domain hashes to
// a different key.
type DomainContext struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// OrderHasher computes the canonical key for an order: the EIP-712 digest
// of the order struct under a fixed domain. Pure; safe for concurrent use.
type OrderHasher struct {
	domain DomainContext
}

// NewOrderHasher creates a hasher bound to the given domain
func NewOrderHasher(domain DomainContext) *OrderHasher {
	return &OrderHasher{domain: domain}
}

// Domain returns the domain context the hasher is bound to
func (h *OrderHasher) Domain() DomainContext {
	return h.domain
}

// orderTypes is the typed-data descriptor for Order with its nested Asset.
// Field order is part of the schema: any change must come with a domain
// version bump, never a silent re-encode.
func orderTypes() apitypes.Types {
	return apitypes.Types{
		"EIP712Domain": []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"Asset": []apitypes.Type{
			{Name: "tokenId", Type: "uint256"},
			{Name: "collection", Type: "address"},
			{Name: "amount", Type: "uint256"},
		},
		"Order": []apitypes.Type{
			{Name: "side", Type: "uint8"},
			{Name: "saleKind", Type: "uint8"},
			{Name: "maker", Type: "address"},
			{Name: "nft", Type: "Asset"},
			{Name: "price", Type: "uint256"},
			{Name: "expiry", Type: "uint256"},
			{Name: "salt", Type: "uint256"},
		},
	}
}

// HashOrder returns the order key for o under the hasher's domain.
// Deterministic: the same order and domain always produce the same key.
func (h *OrderHasher) HashOrder(o *order.Order) (common.Hash, error) {
	typedData := apitypes.TypedData{
		Types:       orderTypes(),
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              h.domain.Name,
			Version:           h.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(h.domain.ChainID),
			VerifyingContract: h.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"side":     fmt.Sprintf("%d", o.Side),
			"saleKind": fmt.Sprintf("%d", o.SaleKind),
			"maker":    o.Maker.Hex(),
			"nft": apitypes.TypedDataMessage{
				"tokenId":    o.Asset.TokenID.String(),
				"collection": o.Asset.Collection.Hex(),
				"amount":     fmt.Sprintf("%d", o.Asset.Amount),
			},
			"price":  o.Price.String(),
			"expiry": fmt.Sprintf("%d", o.Expiry),
			"salt":   fmt.Sprintf("%d", o.Salt),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash order: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || structHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(structHash)))
	return crypto.Keccak256Hash(rawData), nil
}

// SignOrder hashes an order and signs the digest with the maker's key.
// Creation does not verify signatures today; this exists for wallets and
// the hash-order CLI.
func (h *OrderHasher) SignOrder(signer *Signer, o *order.Order) ([]byte, error) {
	digest, err := h.HashOrder(o)
	if err != nil {
		return nil, err
	}

	signature, err := signer.Sign(digest.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}

	return signature, nil
}

// RecoverOrderSigner recovers the address that signed an order key
func (h *OrderHasher) RecoverOrderSigner(o *order.Order, signature []byte) (common.Address, error) {
	digest, err := h.HashOrder(o)
	if err != nil {
		return common.Address{}, err
	}

	return RecoverAddress(digest.Bytes(), signature)
}
