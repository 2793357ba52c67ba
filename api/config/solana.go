package config

import (
	"os"
	"time"
)

// DefaultSolanaRPCURL is the default Solana RPC endpoint
const DefaultSolanaRPCURL = "https://api.mainnet-beta.solana.com"

// SolanaConfig configures the chain RPC used to confirm claim transactions.
type SolanaConfig struct {
	RPCURL         string
	RequestTimeout time.Duration
}

// SolanaConfigFromEnv reads SOLANA_RPC_URL and SOLANA_RPC_TIMEOUT, falling
// back to mainnet-beta and 10s.
func SolanaConfigFromEnv() SolanaConfig {
	cfg := SolanaConfig{
		RPCURL:         getenv("SOLANA_RPC_URL", DefaultSolanaRPCURL),
		RequestTimeout: 10 * time.Second,
	}
	if v := os.Getenv("SOLANA_RPC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RequestTimeout = d
		}
	}
	return cfg
}
