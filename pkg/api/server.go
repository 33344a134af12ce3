package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/easyswap/easyswap/params"
	"github.com/easyswap/easyswap/pkg/app/core/account"
	"github.com/easyswap/easyswap/pkg/app/core/book"
	"github.com/easyswap/easyswap/pkg/app/core/nft"
	"github.com/easyswap/easyswap/pkg/app/core/order"
	"github.com/easyswap/easyswap/pkg/app/core/vault"
)

// Server handles the REST API and the WebSocket notification stream
type Server struct {
	cfg      params.Config
	book     *book.Book
	vault    *vault.Vault
	accounts *account.Manager
	registry *nft.Registry
	router   *mux.Router
	hub      *Hub
}

// NewServer creates a new API server
func NewServer(cfg params.Config, b *book.Book, v *vault.Vault, accounts *account.Manager, registry *nft.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		book:     b,
		vault:    v,
		accounts: accounts,
		registry: registry,
		router:   mux.NewRouter(),
		hub:      NewHub(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order endpoints
	api.HandleFunc("/orders", s.handleMakeOrders).Methods("POST")
	api.HandleFunc("/orders/{key}", s.handleGetOrder).Methods("GET")

	// Vault endpoints
	api.HandleFunc("/vault/balances/{address}", s.handleGetVaultBalance).Methods("GET")
	api.HandleFunc("/vault/custody/{collection}/{tokenId}", s.handleGetCustody).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/deposit", s.handleDeposit).Methods("POST")

	// Devnet NFT fixtures
	api.HandleFunc("/nft/mint", s.handleMint).Methods("POST")
	api.HandleFunc("/nft/approve", s.handleApprove).Methods("POST")

	// Protocol config
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")

	// WebSocket notification stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub, bridges the book's notification stream onto it, and
// serves HTTP on addr
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	events := s.book.Subscribe()
	go func() {
		for ev := range events {
			s.hub.Broadcast("make", makeEventJSON(ev))
		}
	}()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleMakeOrders(w http.ResponseWriter, r *http.Request) {
	var req MakeOrdersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error(), -1)
		return
	}

	if !common.IsHexAddress(req.Caller) {
		respondError(w, http.StatusBadRequest, "invalid caller address", req.Caller, -1)
		return
	}
	caller := common.HexToAddress(req.Caller)

	attached := new(big.Int)
	if req.AttachedFunds != "" {
		if _, ok := attached.SetString(req.AttachedFunds, 10); !ok {
			respondError(w, http.StatusBadRequest, "invalid attachedFunds", req.AttachedFunds, -1)
			return
		}
	}

	orders := make([]order.Order, len(req.Orders))
	for i, oj := range req.Orders {
		o, err := orderFromJSON(oj)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid order", err.Error(), i)
			return
		}
		orders[i] = o
	}

	keys, err := s.book.MakeOrders(caller, orders, attached)
	if err != nil {
		status, index := makeErrorStatus(err)
		respondError(w, status, "make orders failed", err.Error(), index)
		return
	}

	resp := MakeOrdersResponse{OrderKeys: make([]string, len(keys))}
	for i, k := range keys {
		resp.OrderKeys[i] = k.Hex()
	}
	respondJSON(w, resp)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	rec, err := s.book.GetOrder(common.HexToHash(key))
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "order not found", key, -1)
		} else {
			respondError(w, http.StatusInternalServerError, "failed to load order", err.Error(), -1)
		}
		return
	}

	respondJSON(w, OrderRecordResponse{
		Order:        orderToJSON(rec.Order),
		FilledAmount: rec.FilledAmount,
		Status:       rec.Status.String(),
	})
}

func (s *Server) handleGetVaultBalance(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addr) {
		respondError(w, http.StatusBadRequest, "invalid address", addr, -1)
		return
	}

	balance := s.vault.BalanceOf(common.HexToAddress(addr))
	respondJSON(w, BalanceResponse{Address: addr, Balance: balance.String()})
}

func (s *Server) handleGetCustody(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !common.IsHexAddress(vars["collection"]) {
		respondError(w, http.StatusBadRequest, "invalid collection", vars["collection"], -1)
		return
	}
	tokenID, ok := new(big.Int).SetString(vars["tokenId"], 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid tokenId", vars["tokenId"], -1)
		return
	}

	asset := order.Asset{
		TokenID:    tokenID,
		Collection: common.HexToAddress(vars["collection"]),
		Amount:     1,
	}
	key, held := s.vault.CustodianOf(asset)
	if !held {
		respondError(w, http.StatusNotFound, "asset not in custody", "", -1)
		return
	}

	respondJSON(w, CustodyResponse{
		Collection: asset.Collection.Hex(),
		TokenID:    tokenID.String(),
		OrderKey:   key.Hex(),
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addr) {
		respondError(w, http.StatusBadRequest, "invalid address", addr, -1)
		return
	}

	balance := s.accounts.BalanceOf(common.HexToAddress(addr))
	respondJSON(w, BalanceResponse{Address: addr, Balance: balance.String()})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error(), -1)
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", req.Address, -1)
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amount", req.Amount, -1)
		return
	}

	if err := s.accounts.Deposit(common.HexToAddress(req.Address), amount); err != nil {
		respondError(w, http.StatusBadRequest, "deposit failed", err.Error(), -1)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error(), -1)
		return
	}
	if !common.IsHexAddress(req.Collection) || !common.IsHexAddress(req.Owner) {
		respondError(w, http.StatusBadRequest, "invalid address", "", -1)
		return
	}
	tokenID, ok := new(big.Int).SetString(req.TokenID, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid tokenId", req.TokenID, -1)
		return
	}

	err := s.registry.Mint(common.HexToAddress(req.Collection), tokenID, common.HexToAddress(req.Owner))
	if err != nil {
		respondError(w, http.StatusConflict, "mint failed", err.Error(), -1)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error(), -1)
		return
	}
	if !common.IsHexAddress(req.Collection) || !common.IsHexAddress(req.Owner) {
		respondError(w, http.StatusBadRequest, "invalid address", "", -1)
		return
	}

	s.registry.SetApprovalForAll(
		common.HexToAddress(req.Collection),
		common.HexToAddress(req.Owner),
		s.vault.Address(),
		req.Approved,
	)
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, ConfigResponse{
		ProtocolShareBps: s.cfg.Protocol.ShareBps,
		EIP712Name:       s.cfg.Protocol.EIP712Name,
		EIP712Version:    s.cfg.Protocol.EIP712Version,
		ChainID:          s.cfg.Protocol.ChainID,
		OrderBook:        s.book.Address().Hex(),
		Vault:            s.vault.Address().Hex(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Conversions & helpers
// ==============================

func orderFromJSON(oj OrderJSON) (order.Order, error) {
	var o order.Order

	switch oj.Side {
	case "list":
		o.Side = order.SideList
	case "bid":
		o.Side = order.SideBid
	default:
		return o, fmt.Errorf("unknown side %q", oj.Side)
	}

	switch oj.SaleKind {
	case "fixed_price_for_item", "":
		o.SaleKind = order.FixedPriceForItem
	default:
		return o, fmt.Errorf("unknown saleKind %q", oj.SaleKind)
	}

	if !common.IsHexAddress(oj.Maker) {
		return o, fmt.Errorf("invalid maker %q", oj.Maker)
	}
	if !common.IsHexAddress(oj.Asset.Collection) {
		return o, fmt.Errorf("invalid collection %q", oj.Asset.Collection)
	}

	tokenID, ok := new(big.Int).SetString(oj.Asset.TokenID, 10)
	if !ok {
		return o, fmt.Errorf("invalid tokenId %q", oj.Asset.TokenID)
	}
	price, ok := new(big.Int).SetString(oj.Price, 10)
	if !ok {
		return o, fmt.Errorf("invalid price %q", oj.Price)
	}

	o.Maker = common.HexToAddress(oj.Maker)
	o.Asset = order.Asset{
		TokenID:    tokenID,
		Collection: common.HexToAddress(oj.Asset.Collection),
		Amount:     oj.Asset.Amount,
	}
	o.Price = price
	o.Expiry = oj.Expiry
	o.Salt = oj.Salt
	return o, nil
}

func orderToJSON(o order.Order) OrderJSON {
	return OrderJSON{
		Side:     o.Side.String(),
		SaleKind: o.SaleKind.String(),
		Maker:    o.Maker.Hex(),
		Asset: AssetJSON{
			TokenID:    o.Asset.TokenID.String(),
			Collection: o.Asset.Collection.Hex(),
			Amount:     o.Asset.Amount,
		},
		Price:  o.Price.String(),
		Expiry: o.Expiry,
		Salt:   o.Salt,
	}
}

func makeEventJSON(ev book.MakeEvent) map[string]interface{} {
	return map[string]interface{}{
		"orderKey": ev.OrderKey.Hex(),
		"order":    orderToJSON(ev.Order),
		"ts":       ev.Timestamp,
	}
}

// makeErrorStatus maps a MakeOrders error onto an HTTP status and the
// offending batch index
func makeErrorStatus(err error) (int, int) {
	index := -1
	var batchErr *order.BatchError
	if errors.As(err, &batchErr) {
		index = batchErr.Index
	}

	switch {
	case errors.Is(err, order.ErrDuplicateOrder):
		return http.StatusConflict, index
	case errors.Is(err, order.ErrInsufficientAttachedFunds):
		return http.StatusPaymentRequired, index
	case errors.Is(err, order.ErrReentrantCall):
		return http.StatusTooManyRequests, index
	default:
		return http.StatusBadRequest, index
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string, index int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
		Index:   index,
	})
}
