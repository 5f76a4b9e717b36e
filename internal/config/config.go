package config

import (
	"fmt"
	"os"
	"time"
)

// Mode selects the ledger backend.
const (
	ModeRPC    = "rpc"    // real node + wallet gateway
	ModeMemory = "memory" // in-process ledger, demos and smoke tests
)

type Config struct {
	ListenAddr    string
	Mode          string
	NodeRPCURL    string
	WalletRPCURL  string
	EscrowAddress string
	PGDSN         string
	PollInterval  time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:    getenv("PAYSO_LISTEN_ADDR", ":8080"),
		Mode:          getenv("PAYSO_MODE", ModeRPC),
		NodeRPCURL:    os.Getenv("PAYSO_NODE_RPC_URL"),
		WalletRPCURL:  os.Getenv("PAYSO_WALLET_RPC_URL"),
		EscrowAddress: os.Getenv("PAYSO_ESCROW_ADDRESS"),
		PGDSN:         os.Getenv("PAYSO_PG_DSN"),
		PollInterval:  30 * time.Second,
	}

	if raw := os.Getenv("PAYSO_POLL_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("PAYSO_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}

	switch cfg.Mode {
	case ModeMemory:
	case ModeRPC:
		if cfg.NodeRPCURL == "" {
			return nil, fmt.Errorf("PAYSO_NODE_RPC_URL is required in rpc mode")
		}
		if cfg.WalletRPCURL == "" {
			return nil, fmt.Errorf("PAYSO_WALLET_RPC_URL is required in rpc mode")
		}
		if cfg.EscrowAddress == "" {
			return nil, fmt.Errorf("PAYSO_ESCROW_ADDRESS is required in rpc mode")
		}
	default:
		return nil, fmt.Errorf("PAYSO_MODE must be %q or %q", ModeRPC, ModeMemory)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
