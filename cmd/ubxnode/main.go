// Command ubxnode boots a single node: load configuration, open the chain
// service, and start the P2P server. CLI surface is intentionally minimal
// (spec §4.15) — a handful of flags layered over nodeconfig.Default and
// environment overrides, not a general-purpose CLI framework.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/decred/slog"

	"github.com/ubxchain/ubxnode/chain"
	"github.com/ubxchain/ubxnode/consensus"
	"github.com/ubxchain/ubxnode/logging"
	"github.com/ubxchain/ubxnode/mempool"
	"github.com/ubxchain/ubxnode/nodeconfig"
	"github.com/ubxchain/ubxnode/p2p"
)

func main() {
	cfg := nodeconfig.Default()

	flag.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "directory holding this node's chain database")
	flag.StringVar(&cfg.NodeID, "node-id", cfg.NodeID, "suffix for multi-node devnets sharing one --datadir")
	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address to accept peer connections on")
	flag.StringVar(&cfg.MinerAddress, "miner", cfg.MinerAddress, "address to mine to; empty disables mining")
	flag.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "maximum inbound peer connections")
	flag.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "trace|debug|info|warn|error|critical")
	genesisAddress := flag.String("genesis-address", "", "address to receive the genesis block reward (required on first run)")
	seed := flag.String("seed", "", "seed node address to connect to on startup")
	flag.Parse()

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logging.InitLogRotator(cfg.ChainDir()); err != nil {
		fmt.Fprintln(os.Stderr, "init log rotator:", err)
		os.Exit(1)
	}
	level, ok := parseLevel(cfg.LogLevel)
	if !ok {
		fmt.Fprintln(os.Stderr, "invalid loglevel:", cfg.LogLevel)
		os.Exit(1)
	}
	logging.SetLevel(level)

	if err := run(cfg, *genesisAddress, *seed); err != nil {
		logging.ChainLog.Criticalf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(cfg nodeconfig.Config, genesisAddress, seed string) error {
	fees := consensus.NewFixedFeeEngine(consensus.DefaultFee)
	if cfg.FeeMode == consensus.FeeModeDynamic {
		fees = consensus.NewDynamicFeeEngine(consensus.DefaultDynamicFeeConfig())
	}

	var c *chain.Chain
	var err error
	if genesisAddress != "" {
		c, err = chain.Create(cfg.ChainDir(), genesisAddress, chain.Options{FeeEngine: fees})
	} else {
		c, err = chain.Open(cfg.ChainDir(), chain.Options{FeeEngine: fees})
	}
	if err != nil {
		return err
	}
	defer c.Store().Close()

	height, err := c.Height()
	if err != nil {
		return err
	}
	logging.ChainLog.Infof("chain open at height %d, tip %s", height, c.Tip())

	mp := mempool.New()
	srv := p2p.NewServer(p2p.Config{
		SelfAddr:       cfg.ListenAddr,
		MinerAddress:   cfg.MinerAddress,
		MaxConnections: cfg.MaxConnections,
		Chain:          c,
		Mempool:        mp,
	})

	seeds, err := nodeconfig.SeedAddrs(cfg)
	if err != nil {
		return err
	}
	if seed != "" {
		seeds = append(seeds, seed)
	}
	for _, addr := range seeds {
		if err := srv.ConnectToSeed(addr); err != nil {
			logging.P2PLog.Warnf("connecting to seed %s: %v", addr, err)
		}
	}

	return srv.ListenAndServe(cfg.ListenAddr)
}

func parseLevel(s string) (slog.Level, bool) {
	switch s {
	case "trace":
		return slog.LevelTrace, true
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "critical":
		return slog.LevelCritical, true
	}
	return slog.LevelInfo, false
}
