package main

import (
	"log"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/easyswap/easyswap/params"
	"github.com/easyswap/easyswap/pkg/api"
	"github.com/easyswap/easyswap/pkg/app/core/account"
	"github.com/easyswap/easyswap/pkg/app/core/book"
	"github.com/easyswap/easyswap/pkg/app/core/nft"
	"github.com/easyswap/easyswap/pkg/app/core/vault"
	"github.com/easyswap/easyswap/pkg/crypto"
	"github.com/easyswap/easyswap/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// Identities: pinned in config, or derived from the protocol name so
	// they stay stable across restarts.
	bookAddr := identity(cfg.Node.OrderBookAddr, cfg.Protocol.EIP712Name+":book")
	vaultAddr := identity(cfg.Node.VaultAddr, cfg.Protocol.EIP712Name+":vault")
	sugar.Infow("identities", "order_book", bookAddr.Hex(), "vault", vaultAddr.Hex())

	// ---- Ledgers ----
	registry := nft.NewRegistry()

	accounts, err := account.NewManager(filepath.Join(cfg.Node.DataDir, "accounts"))
	if err != nil {
		sugar.Fatalw("account_manager", "err", err)
	}
	defer accounts.Close()

	vaultStore, err := vault.NewStore(filepath.Join(cfg.Node.DataDir, "vault"))
	if err != nil {
		sugar.Fatalw("vault_store", "err", err)
	}
	defer vaultStore.Close()

	esVault, err := vault.New(vaultAddr, registry, vaultStore, logger)
	if err != nil {
		sugar.Fatalw("vault", "err", err)
	}

	bookStore, err := book.NewStore(filepath.Join(cfg.Node.DataDir, "orders"))
	if err != nil {
		sugar.Fatalw("book_store", "err", err)
	}
	defer bookStore.Close()

	// ---- Order book ----
	esBook := book.New(book.Config{
		ProtocolShareBps: cfg.Protocol.ShareBps,
		EIP712Name:       cfg.Protocol.EIP712Name,
		EIP712Version:    cfg.Protocol.EIP712Version,
		ChainID:          big.NewInt(cfg.Protocol.ChainID),
	}, bookAddr, esVault, accounts, registry, bookStore, util.RealClock{}, logger)

	if err := esVault.SetOrderBook(esBook.Address()); err != nil {
		sugar.Fatalw("set_order_book", "err", err)
	}

	sugar.Infow("swapd_started",
		"listen", cfg.Node.ListenAddr,
		"protocol_share_bps", cfg.Protocol.ShareBps,
		"chain_id", cfg.Protocol.ChainID,
	)

	server := api.NewServer(cfg, esBook, esVault, accounts, registry)
	go func() {
		if err := server.Start(cfg.Node.ListenAddr); err != nil {
			sugar.Fatalw("api_server", "err", err)
		}
	}()

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	sugar.Infow("swapd_stopping")
}

// identity parses a configured hex address, or derives one from the label
func identity(configured, label string) common.Address {
	if configured != "" && common.IsHexAddress(configured) {
		return common.HexToAddress(configured)
	}
	return crypto.DeriveIdentity(label)
}
