package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Protocol is the configuration fixed at order book initialization. The
// share is charged on matched trades; the EIP-712 name and version are
// part of every order key's domain, so changing them is a schema bump.
type Protocol struct {
	ShareBps      int64 // protocol fee in basis points (200 = 2.00%)
	EIP712Name    string
	EIP712Version string
	ChainID       int64
}

type Node struct {
	ListenAddr string
	DataDir    string
	LogFile    string

	// Identity addresses for the book and vault. Empty means derive a
	// stable identity from the protocol name.
	OrderBookAddr string
	VaultAddr     string
}

type Config struct {
	Protocol Protocol
	Node     Node
}

func Default() Config {
	return Config{
		Protocol: Protocol{
			ShareBps:      200,
			EIP712Name:    "EasySwapOrderBook",
			EIP712Version: "1",
			ChainID:       1337, // local dev chain
		},
		Node: Node{
			ListenAddr: ":8080",
			DataDir:    "./data",
			LogFile:    "data/swapd.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("PROTOCOL_SHARE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Protocol.ShareBps = bps
		}
	}
	if v := os.Getenv("EIP712_NAME"); v != "" {
		cfg.Protocol.EIP712Name = v
	}
	if v := os.Getenv("EIP712_VERSION"); v != "" {
		cfg.Protocol.EIP712Version = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Protocol.ChainID = id
		}
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Node.ListenAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("ORDER_BOOK_ADDR"); v != "" {
		cfg.Node.OrderBookAddr = v
	}
	if v := os.Getenv("VAULT_ADDR"); v != "" {
		cfg.Node.VaultAddr = v
	}

	return cfg
}
