package p2p

import (
	"sync"
	"testing"
	"time"

	"github.com/ubxchain/ubxnode/chain"
	"github.com/ubxchain/ubxnode/crypto"
	"github.com/ubxchain/ubxnode/mempool"
)

// counterClock gives a chain a strictly increasing sequence of timestamps
// for the blocks it mines. Genesis seeding does not read the clock: every
// genesis block carries the same fixed timestamp, so two chains created
// with the same address share their genesis block.
func counterClock(start uint64) func() uint64 {
	var mu sync.Mutex
	n := start
	return func() uint64 {
		mu.Lock()
		defer mu.Unlock()
		n++
		return n
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// TestGossipConvergence reproduces spec §8's S7: a node that mines a block
// and a fresh peer that only knows genesis converge to the same tip after
// the Version/GetBlocks/Inv/GetData/Block handshake runs over real TCP
// connections.
func TestGossipConvergence(t *testing.T) {
	miner, _ := crypto.GenerateKeyPair()

	chainA, err := chain.Create(t.TempDir(), miner.Address(), chain.Options{Clock: counterClock(1000)})
	if err != nil {
		t.Fatalf("create chain A: %v", err)
	}
	chainB, err := chain.Create(t.TempDir(), miner.Address(), chain.Options{Clock: counterClock(1000)})
	if err != nil {
		t.Fatalf("create chain B: %v", err)
	}

	const addrA = "127.0.0.1:19733"
	const addrB = "127.0.0.1:19734"

	serverA := NewServer(Config{SelfAddr: addrA, Chain: chainA, Mempool: mempool.New()})
	serverB := NewServer(Config{SelfAddr: addrB, Chain: chainB, Mempool: mempool.New()})

	go func() { _ = serverA.ListenAndServe(addrA) }()
	go func() { _ = serverB.ListenAndServe(addrB) }()
	defer serverA.Close()
	defer serverB.Close()
	waitUntil(t, time.Second, func() bool { return serverA.ln != nil && serverB.ln != nil })

	if _, err := chainA.MineBlock(nil, miner.Address()); err != nil {
		t.Fatalf("MineBlock on A: %v", err)
	}

	if err := serverB.ConnectToSeed(addrA); err != nil {
		t.Fatalf("ConnectToSeed: %v", err)
	}

	waitUntil(t, 3*time.Second, func() bool {
		return chainB.Tip() == chainA.Tip()
	})

	heightA, _ := chainA.Height()
	heightB, _ := chainB.Height()
	if heightA != heightB {
		t.Fatalf("expected converged heights, got A=%d B=%d", heightA, heightB)
	}
}
