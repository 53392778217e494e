// Package utxoindex maintains the spendable-output view derived from the
// chainstate subspace: a reindex that reloads the whole view from the
// persisted chainstate (it does not rescan blocks), and an incremental
// apply that updates the view one block at a time (spec
// §4.9-§4.10). It implements the two narrow read interfaces the consensus
// package needs to build and verify spends.
package utxoindex

import (
	"bytes"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/ubxchain/ubxnode/consensus"
	"github.com/ubxchain/ubxnode/store"
)

type txidKey [32]byte

// Index is the process-wide UTXO view: txid -> (vout -> still-unspent
// output). Reads and writes are guarded by a single reader/writer lock;
// writers are block application and reindex, both rare relative to reads.
type Index struct {
	mu    sync.RWMutex
	st    *store.Store
	utxos map[txidKey]map[uint32]consensus.TxOutput
}

// New wraps st; callers must run Reindex or load persisted chainstate
// before the index is queried.
func New(st *store.Store) *Index {
	return &Index{st: st, utxos: make(map[txidKey]map[uint32]consensus.TxOutput)}
}

// Reindex rebuilds the in-memory view from the store's persisted
// chainstate. It neither walks the blocks nor clears or rewrites the
// chainstate subspace, so it reproduces whatever chainstate holds.
func (idx *Index) Reindex() error {
	fresh := make(map[txidKey]map[uint32]consensus.TxOutput)
	err := idx.st.ForEachChainstate(func(txid [32]byte, entries []consensus.UTXOEntry) error {
		m := make(map[uint32]consensus.TxOutput, len(entries))
		for _, e := range entries {
			m[e.Vout] = e.Output
		}
		fresh[txid] = m
		return nil
	})
	if err != nil {
		return err
	}
	idx.mu.Lock()
	idx.utxos = fresh
	idx.mu.Unlock()
	return nil
}

// Apply updates the view for one freshly accepted block (spec §4.9
// incremental apply): every non-coinbase input's referenced output is
// dropped, and every transaction's outputs become new spendable entries.
// The same updates are written to the store's chainstate subspace in one
// bbolt transaction, so the durable and in-memory views never diverge.
func (idx *Index) Apply(block *consensus.Block) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	touched := make(map[txidKey]struct{})
	for _, tx := range block.Transactions {
		if !tx.IsCoinbase() {
			for _, in := range tx.Inputs {
				key := txidKey(in.PrevTxID)
				m := idx.utxos[key]
				if m != nil {
					delete(m, in.PrevVout)
				}
				touched[key] = struct{}{}
			}
		}
		key := txidKey(tx.ID)
		m := idx.utxos[key]
		if m == nil {
			m = make(map[uint32]consensus.TxOutput, len(tx.Outputs))
		}
		for i, o := range tx.Outputs {
			m[uint32(i)] = o
		}
		idx.utxos[key] = m
		touched[key] = struct{}{}
	}

	updates := make([]store.ChainstateUpdate, 0, len(touched))
	for key := range touched {
		m := idx.utxos[key]
		if len(m) == 0 {
			delete(idx.utxos, key)
			updates = append(updates, store.ChainstateUpdate{TxID: key})
			continue
		}
		entries := make([]consensus.UTXOEntry, 0, len(m))
		for vout, out := range m {
			entries = append(entries, consensus.UTXOEntry{Vout: vout, Output: out})
		}
		updates = append(updates, store.ChainstateUpdate{TxID: key, Entries: entries})
	}
	return idx.st.ApplyChainstate(updates)
}

// GetUnspentOutput implements consensus.UTXOLookup.
func (idx *Index) GetUnspentOutput(txid [32]byte, vout uint32) (consensus.TxOutput, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	m, ok := idx.utxos[txidKey(txid)]
	if !ok {
		return consensus.TxOutput{}, false, nil
	}
	out, ok := m[vout]
	return out, ok, nil
}

// IsOutputSpent reports whether (txid, vout) is absent from the spendable
// view. It does not distinguish a spent output from one that never
// existed: an unknown txid also reports true. Used by chain.Chain's
// is_output_spent, an explicit pagination-safe query (spec §9).
func (idx *Index) IsOutputSpent(txid [32]byte, vout uint32) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	m, ok := idx.utxos[txidKey(txid)]
	if !ok {
		return true
	}
	_, ok = m[vout]
	return !ok
}

// FindSpendable implements consensus.UTXOSource: spec §4.10 find_spendable.
// It walks the view in an unspecified but stable order, accumulating
// outputs locked to pubKeyHash until the running total reaches amount (or
// the view is exhausted).
func (idx *Index) FindSpendable(pubKeyHash [20]byte, amount uint64) (uint64, map[string][]uint32, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	txids := make([]txidKey, 0, len(idx.utxos))
	for txid := range idx.utxos {
		txids = append(txids, txid)
	}
	sort.Slice(txids, func(i, j int) bool { return bytes.Compare(txids[i][:], txids[j][:]) < 0 })

	var accumulated uint64
	refs := make(map[string][]uint32)
	for _, txid := range txids {
		if accumulated >= amount {
			break
		}
		outputs := idx.utxos[txid]
		vouts := make([]uint32, 0, len(outputs))
		for vout := range outputs {
			vouts = append(vouts, vout)
		}
		sort.Slice(vouts, func(i, j int) bool { return vouts[i] < vouts[j] })
		for _, vout := range vouts {
			out := outputs[vout]
			if accumulated >= amount {
				break
			}
			if !out.IsLockedWithKey(pubKeyHash) {
				continue
			}
			accumulated += out.Value
			key := hex.EncodeToString(txid[:])
			refs[key] = append(refs[key], vout)
		}
	}
	return accumulated, refs, nil
}

// AllUTXOsForAddress returns every still-spendable output locked to
// pubKeyHash, used to compute a wallet's total balance.
func (idx *Index) AllUTXOsForAddress(pubKeyHash [20]byte) uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var total uint64
	for _, outputs := range idx.utxos {
		for _, out := range outputs {
			if out.IsLockedWithKey(pubKeyHash) {
				total += out.Value
			}
		}
	}
	return total
}
