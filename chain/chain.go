// Package chain is the tip-tracking service tying the store, the UTXO
// index, and the mempool together under a single locking discipline: the
// pattern "acquire tip lock, validate, write block and new tip atomically,
// release" must never be split (spec §4.10, §9 Locks + durability).
package chain

import (
	"sort"
	"sync"

	"github.com/ubxchain/ubxnode/consensus"
	"github.com/ubxchain/ubxnode/crypto"
	"github.com/ubxchain/ubxnode/store"
	"github.com/ubxchain/ubxnode/utxoindex"
)

// Chain is the process-wide chain service. tipMu guards every operation
// that reads or advances the tip; it is never acquired while holding the
// mempool's lock (mempool draining happens before tip acquisition).
type Chain struct {
	tipMu sync.RWMutex

	st    *store.Store
	utxo  *utxoindex.Index
	fees  *consensus.FeeEngine
	clock func() uint64

	tipHash string
}

// genesisTimestamp is the fixed timestamp (ms since epoch) of every genesis
// block, so that chains created with the same genesis address produce
// byte-identical genesis blocks.
const genesisTimestamp = 0

// Options bundles the dependencies Chain needs beyond the store itself.
type Options struct {
	FeeEngine *consensus.FeeEngine
	Clock     func() uint64 // defaults to crypto.NowMillis
}

// Create opens a fresh store at dataDir and seeds it with a genesis block
// paying the entire initial reward to genesisAddress, iff the store has no
// tip yet (spec §4.10 create/open).
func Create(dataDir, genesisAddress string, opts Options) (*Chain, error) {
	st, err := store.Open(dataDir)
	if err != nil {
		return nil, err
	}
	c := newChain(st, opts)

	_, hasTip, err := st.Tip()
	if err != nil {
		return nil, err
	}
	if hasTip {
		if err := c.utxo.Reindex(); err != nil {
			return nil, err
		}
		tip, _, err := st.Tip()
		if err != nil {
			return nil, err
		}
		c.tipHash = tip
		return c, nil
	}

	pubKeyHash, err := crypto.DecodePubKeyHash(genesisAddress)
	if err != nil {
		return nil, consensus.NewError(consensus.ErrInvalidAddress, "chain: genesis address: %v", err)
	}
	reward, err := consensus.CoinbaseReward(0)
	if err != nil {
		return nil, err
	}
	coinbase := consensus.Tx{
		Inputs:  []consensus.TxInput{{PrevVout: consensus.CoinbaseVout}},
		Outputs: []consensus.TxOutput{{Value: reward, PubKeyHash: pubKeyHash}},
	}
	coinbase.ID = coinbase.ComputeID()

	genesis, err := consensus.NewBlock(nil, []consensus.Tx{coinbase}, 0, consensus.InitialDifficulty, genesisTimestamp, nil)
	if err != nil {
		return nil, err
	}
	if err := st.PutBlockAndAdvanceTip(genesis); err != nil {
		return nil, err
	}
	if err := c.utxo.Apply(genesis); err != nil {
		return nil, err
	}
	c.tipHash = genesis.Hash
	return c, nil
}

// Open opens an already-initialized store at dataDir.
func Open(dataDir string, opts Options) (*Chain, error) {
	st, err := store.Open(dataDir)
	if err != nil {
		return nil, err
	}
	c := newChain(st, opts)
	tip, ok, err := st.Tip()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, consensus.NewError(consensus.ErrDatabase, "chain: store has no tip; call Create first")
	}
	if err := c.utxo.Reindex(); err != nil {
		return nil, err
	}
	c.tipHash = tip
	return c, nil
}

func newChain(st *store.Store, opts Options) *Chain {
	fees := opts.FeeEngine
	if fees == nil {
		fees = consensus.NewFixedFeeEngine(consensus.DefaultFee)
	}
	clock := opts.Clock
	if clock == nil {
		clock = crypto.NowMillis
	}
	return &Chain{st: st, utxo: utxoindex.New(st), fees: fees, clock: clock}
}

// Store exposes the underlying store, e.g. for p2p's on-demand Block
// serving.
func (c *Chain) Store() *store.Store { return c.st }

// UTXOIndex exposes the spendable-output view, e.g. for wallet balance
// queries and spend construction.
func (c *Chain) UTXOIndex() *utxoindex.Index { return c.utxo }

// FeeEngine exposes the process-wide fee engine.
func (c *Chain) FeeEngine() *consensus.FeeEngine { return c.fees }

// Tip returns the current tip hash.
func (c *Chain) Tip() string {
	c.tipMu.RLock()
	defer c.tipMu.RUnlock()
	return c.tipHash
}

// Height returns the height of the block at tip, as recorded in that
// block's header; it does not walk prev_hash back to genesis.
func (c *Chain) Height() (uint64, error) {
	c.tipMu.RLock()
	tip := c.tipHash
	c.tipMu.RUnlock()
	blk, ok, err := c.st.GetBlock(tip)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, consensus.NewError(consensus.ErrDatabase, "chain: tip block %s missing from store", tip)
	}
	return blk.Height, nil
}

// GetBlock loads a block by hash, regardless of whether it is the tip.
func (c *Chain) GetBlock(hash string) (*consensus.Block, bool, error) {
	return c.st.GetBlock(hash)
}

// BlockExists reports whether hash names a known block.
func (c *Chain) BlockExists(hash string) (bool, error) {
	return c.st.BlockExists(hash)
}

// Iter walks the main chain from tip back to genesis, calling fn with each
// block until fn returns false or genesis is reached. This is a linear
// scan and must not be called while holding the tip write lock (spec §9
// Pagination note); Iter only takes the read lock, and only to snapshot
// the starting hash.
func (c *Chain) Iter(fn func(*consensus.Block) bool) error {
	c.tipMu.RLock()
	hash := c.tipHash
	c.tipMu.RUnlock()

	for hash != "" && hash != consensus.GenesisPrevHash {
		blk, ok, err := c.st.GetBlock(hash)
		if err != nil {
			return err
		}
		if !ok {
			return consensus.NewError(consensus.ErrDatabase, "chain: block %s missing from store", hash)
		}
		if !fn(blk) {
			return nil
		}
		hash = blk.PrevHash
	}
	return nil
}

// FindAllUTXOs recomputes the full spendable-output view directly from the
// chain, genesis to tip, respecting coinbase semantics (every transaction's
// outputs are spendable until a later block's non-coinbase input consumes
// one). It does not read the persisted chainstate subspace at all, so its
// result is an independent derivation that can be compared with the
// utxoindex view to detect chainstate drift; the two agree when chainstate
// is consistent (spec §4.12 find_all_utxos).
func (c *Chain) FindAllUTXOs() (map[[32]byte]map[uint32]consensus.TxOutput, error) {
	var blocks []*consensus.Block
	if err := c.Iter(func(blk *consensus.Block) bool {
		blocks = append(blocks, blk)
		return true
	}); err != nil {
		return nil, err
	}

	utxos := make(map[[32]byte]map[uint32]consensus.TxOutput)
	for i := len(blocks) - 1; i >= 0; i-- {
		for _, tx := range blocks[i].Transactions {
			if !tx.IsCoinbase() {
				for _, in := range tx.Inputs {
					m := utxos[in.PrevTxID]
					if m != nil {
						delete(m, in.PrevVout)
						if len(m) == 0 {
							delete(utxos, in.PrevTxID)
						}
					}
				}
			}
			m := utxos[tx.ID]
			if m == nil {
				m = make(map[uint32]consensus.TxOutput, len(tx.Outputs))
			}
			for idx, o := range tx.Outputs {
				m[uint32(idx)] = o
			}
			utxos[tx.ID] = m
		}
	}
	return utxos, nil
}

// FindTransaction scans the main chain for a transaction by id, a linear
// walk acceptable for an educational node (spec §9).
func (c *Chain) FindTransaction(txid [32]byte) (*consensus.Tx, bool, error) {
	var found *consensus.Tx
	err := c.Iter(func(blk *consensus.Block) bool {
		for i := range blk.Transactions {
			if blk.Transactions[i].ID == txid {
				found = &blk.Transactions[i]
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, false, err
	}
	return found, found != nil, nil
}

// IsOutputSpent reports whether (txid, vout) is absent from the current
// spendable view.
func (c *Chain) IsOutputSpent(txid [32]byte, vout uint32) bool {
	return c.utxo.IsOutputSpent(txid, vout)
}

// MineBlock validates txs against the current tip, rejects intra-batch
// double-spends, prepends a coinbase when miner is non-empty, and commits
// the resulting block atomically (spec §4.10 mine_block).
func (c *Chain) MineBlock(txs []consensus.Tx, minerAddress string) (*consensus.Block, error) {
	c.tipMu.Lock()
	defer c.tipMu.Unlock()

	seen := make(map[consensus.TxOutPoint]struct{})
	var feeSum uint64
	for _, tx := range txs {
		for _, in := range tx.Inputs {
			ref := consensus.TxOutPoint{TxID: in.PrevTxID, Vout: in.PrevVout}
			if _, dup := seen[ref]; dup {
				return nil, consensus.NewError(consensus.ErrTransaction, "Double-spending detected within candidate batch")
			}
			seen[ref] = struct{}{}
		}
		if err := consensus.VerifyTx(&tx, c.utxo); err != nil {
			return nil, err
		}
		var err error
		feeSum, err = consensus.CheckedAdd(feeSum, tx.Fee)
		if err != nil {
			return nil, err
		}
	}

	parent, ok, err := c.st.GetBlock(c.tipHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, consensus.NewError(consensus.ErrDatabase, "chain: tip block missing from store")
	}

	// A block's timestamp must exceed its parent's; the same value also
	// serves as the coinbase extranonce, so coinbases along one chain differ.
	timestamp := c.clock()
	if timestamp <= parent.Timestamp {
		timestamp = parent.Timestamp + 1
	}

	all := txs
	if minerAddress != "" {
		pubKeyHash, err := crypto.DecodePubKeyHash(minerAddress)
		if err != nil {
			return nil, consensus.NewError(consensus.ErrInvalidAddress, "chain: miner address: %v", err)
		}
		reward, err := consensus.CoinbaseReward(feeSum)
		if err != nil {
			return nil, err
		}
		coinbase := consensus.Tx{
			Inputs:  []consensus.TxInput{{PrevVout: consensus.CoinbaseVout, Signature: extranonce(timestamp)}},
			Outputs: []consensus.TxOutput{{Value: reward, PubKeyHash: pubKeyHash}},
		}
		coinbase.ID = coinbase.ComputeID()
		all = append([]consensus.Tx{coinbase}, txs...)
	}

	window, err := c.retargetWindow(parent)
	if err != nil {
		return nil, err
	}
	difficulty, err := consensus.NextDifficulty(parent.Height+1, parent.Difficulty, window)
	if err != nil {
		return nil, err
	}

	blk, err := consensus.NewBlock(parent, all, parent.Height+1, difficulty, timestamp, nil)
	if err != nil {
		return nil, err
	}
	if err := c.st.PutBlockAndAdvanceTip(blk); err != nil {
		return nil, err
	}
	if err := c.utxo.Apply(blk); err != nil {
		return nil, err
	}
	c.tipHash = blk.Hash
	return blk, nil
}

// AddBlock inserts block if unknown; if its height exceeds the current
// tip's height, the tip is advanced in the same atomic transaction (spec
// §4.10 add_block). Returns true if the tip advanced.
func (c *Chain) AddBlock(block *consensus.Block) (bool, error) {
	c.tipMu.Lock()
	defer c.tipMu.Unlock()

	exists, err := c.st.BlockExists(block.Hash)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	tip, ok, err := c.st.GetBlock(c.tipHash)
	if err != nil {
		return false, err
	}
	if ok && block.Height <= tip.Height {
		if err := c.st.PutBlock(block); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := c.st.PutBlockAndAdvanceTip(block); err != nil {
		return false, err
	}
	if err := c.utxo.Apply(block); err != nil {
		return false, err
	}
	c.tipHash = block.Hash
	return true, nil
}

// SyncWithPeer validates and applies a batch of blocks received from a
// peer, oldest first (spec §4.10 sync_with_peer). Each block runs through
// validate_block_for_sync: PoW, Merkle, every transaction, and a known
// parent (or the genesis sentinel). A block with an unknown parent is
// dropped; the caller may retry once a later batch supplies it.
func (c *Chain) SyncWithPeer(blocks []*consensus.Block) (bool, error) {
	sorted := append([]*consensus.Block(nil), blocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Height < sorted[j].Height })

	var appliedAny bool
	for _, blk := range sorted {
		known, err := c.st.BlockExists(blk.Hash)
		if err != nil {
			return appliedAny, err
		}
		if known {
			continue
		}

		var parentTimestamp *uint64
		if blk.PrevHash != consensus.GenesisPrevHash {
			parent, ok, err := c.st.GetBlock(blk.PrevHash)
			if err != nil {
				return appliedAny, err
			}
			if !ok {
				continue // unknown parent; caller may retry with a later batch
			}
			parentTimestamp = &parent.Timestamp
		}

		if err := consensus.ValidateBlock(blk, parentTimestamp, c.clock(), c.utxo); err != nil {
			continue // inbound validation failures are reported and dropped, not fatal
		}

		applied, err := c.AddBlock(blk)
		if err != nil {
			return appliedAny, err
		}
		appliedAny = appliedAny || applied
	}
	return appliedAny, nil
}

// retargetWindow collects the last DifficultyWindow block timestamps
// ending at parent, oldest first, or nil if the chain is not yet long
// enough for a retarget to be due.
func (c *Chain) retargetWindow(parent *consensus.Block) ([]consensus.BlockTimestamps, error) {
	if (parent.Height+1)%consensus.DifficultyWindow != 0 || parent.Height+1 < consensus.DifficultyWindow {
		return nil, nil
	}
	window := make([]consensus.BlockTimestamps, consensus.DifficultyWindow)
	cur := parent
	for i := consensus.DifficultyWindow - 1; i >= 0; i-- {
		window[i] = consensus.BlockTimestamps{Height: cur.Height, Timestamp: cur.Timestamp}
		if i == 0 {
			break
		}
		prev, ok, err := c.st.GetBlock(cur.PrevHash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		cur = prev
	}
	return window, nil
}

func extranonce(clockValue uint64) []byte {
	return []byte{
		byte(clockValue >> 56), byte(clockValue >> 48), byte(clockValue >> 40), byte(clockValue >> 32),
		byte(clockValue >> 24), byte(clockValue >> 16), byte(clockValue >> 8), byte(clockValue),
	}
}
