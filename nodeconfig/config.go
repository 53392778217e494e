// Package nodeconfig assembles a node's runtime configuration from
// defaults and environment overrides (spec §4.15); no config file is read.
package nodeconfig

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ubxchain/ubxnode/consensus"
)

// ChainProfile names the network profile a node runs under. Validate
// accepts mainnet, testnet and regtest; the profile does not change any
// retarget or reward parameter, so all three use the same consensus
// constants.
type ChainProfile string

const (
	ProfileMainnet ChainProfile = "mainnet"
	ProfileTestnet ChainProfile = "testnet"
	ProfileRegtest ChainProfile = "regtest"
)

// Config is the fully-resolved set of knobs cmd/ubxnode needs to bring up
// a node.
type Config struct {
	DataDir        string
	NodeID         string // empty: single-node layout
	ChainProfile   ChainProfile
	ListenAddr     string
	Seeds          []string
	MaxConnections int
	MinerAddress   string // empty disables mining
	FeeMode        consensus.FeeModeKind
	LogLevel       string
}

// Default returns the baseline configuration before flag/env overrides.
func Default() Config {
	return Config{
		DataDir:        "./data",
		ChainProfile:   ProfileMainnet,
		ListenAddr:     "0.0.0.0:8333",
		MaxConnections: 8,
		FeeMode:        consensus.FeeModeFixed,
		LogLevel:       "info",
	}
}

// ApplyEnv overlays environment variable overrides onto cfg, the
// lightweight "env beats whatever cfg already holds" layering this node
// uses instead of a general CLI framework (spec §4.15).
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv("UBXNODE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("UBXNODE_NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv("UBXNODE_CHAIN_PROFILE"); v != "" {
		cfg.ChainProfile = ChainProfile(v)
	}
	if v := os.Getenv("UBXNODE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("UBXNODE_SEEDS"); v != "" {
		cfg.Seeds = strings.Split(v, ",")
	}
	if v := os.Getenv("UBXNODE_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConnections = n
		}
	}
	if v := os.Getenv("UBXNODE_MINER_ADDRESS"); v != "" {
		cfg.MinerAddress = v
	}
	if v := os.Getenv("UBXNODE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// ChainDir returns the directory this node's bbolt file lives in:
// <DataDir>/node_<id>/ when NodeID is set (multi-node devnets on one
// machine), else <DataDir>/ directly (spec §4.15).
func (cfg Config) ChainDir() string {
	if cfg.NodeID == "" {
		return cfg.DataDir
	}
	return filepath.Join(cfg.DataDir, "node_"+cfg.NodeID)
}

// Validate checks the fields cmd/ubxnode cannot safely default.
func (cfg Config) Validate() error {
	if cfg.DataDir == "" {
		return consensus.NewError(consensus.ErrConfig, "data_dir is required")
	}
	if cfg.ListenAddr == "" {
		return consensus.NewError(consensus.ErrConfig, "listen_addr is required")
	}
	if cfg.MaxConnections <= 0 {
		return consensus.NewError(consensus.ErrConfig, "max_connections must be positive")
	}
	switch cfg.ChainProfile {
	case ProfileMainnet, ProfileTestnet, ProfileRegtest:
	default:
		return consensus.NewError(consensus.ErrConfig, "unknown chain_profile %q", cfg.ChainProfile)
	}
	return nil
}

// SeedAddrs returns the configured static seed list verbatim. DNS-based
// discovery is out of scope (spec §4.17); this function exists so
// cmd/ubxnode has a single place to extend later without touching the
// kernel.
func SeedAddrs(cfg Config) ([]string, error) {
	return cfg.Seeds, nil
}
