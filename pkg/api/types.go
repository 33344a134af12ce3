package api

// API request/response types. Wei amounts and token ids travel as decimal
// strings so they survive JSON number precision.

// AssetJSON mirrors order.Asset
type AssetJSON struct {
	TokenID    string `json:"tokenId"`
	Collection string `json:"collection"`
	Amount     int64  `json:"amount"`
}

// OrderJSON mirrors order.Order
type OrderJSON struct {
	Side     string    `json:"side"` // "list" or "bid"
	SaleKind string    `json:"saleKind"`
	Maker    string    `json:"maker"`
	Asset    AssetJSON `json:"nft"`
	Price    string    `json:"price"`
	Expiry   int64     `json:"expiry"`
	Salt     int64     `json:"salt"`
}

// MakeOrdersRequest is the body of POST /api/v1/orders
type MakeOrdersRequest struct {
	Caller        string      `json:"caller"`
	AttachedFunds string      `json:"attachedFunds"`
	Orders        []OrderJSON `json:"orders"`
}

// MakeOrdersResponse carries one key per submitted order, positionally
type MakeOrdersResponse struct {
	OrderKeys []string `json:"orderKeys"`
}

// OrderRecordResponse is a stored order record
type OrderRecordResponse struct {
	Order        OrderJSON `json:"order"`
	FilledAmount int64     `json:"filledAmount"`
	Status       string    `json:"status"`
}

// BalanceResponse reports a single balance
type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// CustodyResponse reports which order key holds an asset
type CustodyResponse struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	OrderKey   string `json:"orderKey"`
}

// ConfigResponse exposes the protocol configuration
type ConfigResponse struct {
	ProtocolShareBps int64  `json:"protocolShareBps"`
	EIP712Name       string `json:"eip712Name"`
	EIP712Version    string `json:"eip712Version"`
	ChainID          int64  `json:"chainId"`
	OrderBook        string `json:"orderBook"`
	Vault            string `json:"vault"`
}

// DepositRequest is the devnet faucet body
type DepositRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// MintRequest is the devnet NFT fixture body
type MintRequest struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Owner      string `json:"owner"`
}

// ApproveRequest grants the vault operator rights over a collection
type ApproveRequest struct {
	Collection string `json:"collection"`
	Owner      string `json:"owner"`
	Approved   bool   `json:"approved"`
}

// ErrorResponse is the uniform error body. Index is the offending batch
// position for makeOrders failures, -1 otherwise.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Index   int    `json:"index"`
}

// WSMessage wraps every websocket broadcast
type WSMessage struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}
