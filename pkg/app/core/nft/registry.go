package nft

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry tracks token ownership and operator approvals across collections
// in a thread-safe manner. It is the authoritative asset ledger the vault
// transfers through: the List-side preconditions (maker owns the token, the
// vault is approved) are answered here, and custody is an ordinary transfer
// recorded here.
type Registry struct {
	mu        sync.RWMutex
	owners    map[string]common.Address // collection:tokenId -> owner
	approvals map[string]bool           // collection:owner:operator -> approved
}

// NewRegistry creates an empty collection registry
func NewRegistry() *Registry {
	return &Registry{
		owners:    make(map[string]common.Address),
		approvals: make(map[string]bool),
	}
}

func tokenKey(collection common.Address, tokenID *big.Int) string {
	return fmt.Sprintf("%s:%s", collection.Hex(), tokenID.String())
}

func approvalKey(collection, owner, operator common.Address) string {
	return fmt.Sprintf("%s:%s:%s", collection.Hex(), owner.Hex(), operator.Hex())
}

// Mint assigns a fresh token to an owner
// Returns error if the token already exists
func (r *Registry) Mint(collection common.Address, tokenID *big.Int, owner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := tokenKey(collection, tokenID)
	if _, exists := r.owners[key]; exists {
		return fmt.Errorf("token %s already minted", key)
	}

	r.owners[key] = owner
	return nil
}

// OwnerOf returns the current owner of a token
// The second return is false if the token does not exist
func (r *Registry) OwnerOf(collection common.Address, tokenID *big.Int) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, exists := r.owners[tokenKey(collection, tokenID)]
	return owner, exists
}

// SetApprovalForAll grants or revokes an operator's right to move every
// token the owner holds in a collection
func (r *Registry) SetApprovalForAll(collection, owner, operator common.Address, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := approvalKey(collection, owner, operator)
	if approved {
		r.approvals[key] = true
	} else {
		delete(r.approvals, key)
	}
}

// IsApprovedForAll reports whether operator may move owner's tokens in a
// collection
func (r *Registry) IsApprovedForAll(collection, owner, operator common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.approvals[approvalKey(collection, owner, operator)]
}

// Transfer moves a token from one owner to another. The operator must be
// the current owner or an approved operator for the owner's tokens.
func (r *Registry) Transfer(collection common.Address, operator, from, to common.Address, tokenID *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := tokenKey(collection, tokenID)
	owner, exists := r.owners[key]
	if !exists {
		return fmt.Errorf("token %s does not exist", key)
	}
	if owner != from {
		return fmt.Errorf("token %s not owned by %s", key, from.Hex())
	}
	if operator != owner && !r.approvals[approvalKey(collection, owner, operator)] {
		return fmt.Errorf("operator %s not approved for token %s", operator.Hex(), key)
	}

	r.owners[key] = to
	return nil
}
