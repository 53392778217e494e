// Package mempool holds unconfirmed transactions and the in-transit block
// request queue, both shared process-wide (spec §4.11).
package mempool

import (
	"sync"

	"github.com/ubxchain/ubxnode/consensus"
)

// Mempool is a concurrent txid_hex -> Transaction map.
type Mempool struct {
	mu  sync.RWMutex
	txs map[string]consensus.Tx
}

// New returns an empty mempool.
func New() *Mempool {
	return &Mempool{txs: make(map[string]consensus.Tx)}
}

// Add inserts tx, keyed by its hex-encoded id, overwriting any existing
// entry with the same id.
func (m *Mempool) Add(tx consensus.Tx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[idHex(tx.ID)] = tx
}

// Contains reports whether idHexStr names a transaction currently held.
func (m *Mempool) Contains(idHexStr string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txs[idHexStr]
	return ok
}

// Get returns the transaction named by idHexStr, if held.
func (m *Mempool) Get(idHexStr string) (consensus.Tx, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[idHexStr]
	return tx, ok
}

// Remove deletes the transaction named by idHexStr, a no-op if absent.
func (m *Mempool) Remove(idHexStr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.txs, idHexStr)
}

// Len reports the number of held transactions.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}

// DrainAll removes and returns every held transaction, in no particular
// order; used when a miner assembles a candidate block (spec §4.10
// mine_block, §4.13 Tx handler).
func (m *Mempool) DrainAll() []consensus.Tx {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]consensus.Tx, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, tx)
	}
	m.txs = make(map[string]consensus.Tx)
	return out
}

// IDHex hex-encodes a transaction id the same way the mempool keys its
// internal map, so callers (e.g. p2p advertising ids in an Inv message)
// stay consistent with Contains/Get/Remove.
func IDHex(id [32]byte) string { return idHex(id) }

func idHex(id [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range id {
		out[2*i] = hexDigits[b>>4]
		out[2*i+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

// InTransitSet is the ordered queue of block hashes this node has
// announced interest in but not yet received (spec §4.11, §4.13 Inv(Block)
// handler).
type InTransitSet struct {
	mu    sync.Mutex
	queue []string
}

// NewInTransitSet returns an empty queue.
func NewInTransitSet() *InTransitSet {
	return &InTransitSet{}
}

// PushBatch appends hashes to the back of the queue, in order.
func (s *InTransitSet) PushBatch(hashes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, hashes...)
}

// PeekFirst returns the hash at the front of the queue without removing
// it.
func (s *InTransitSet) PeekFirst() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return "", false
	}
	return s.queue[0], true
}

// Remove deletes the first occurrence of hash from the queue, wherever it
// sits (a peer may deliver blocks slightly out of request order within
// the same stream).
func (s *InTransitSet) Remove(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.queue {
		if h == hash {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// IsEmpty reports whether the queue holds no entries.
func (s *InTransitSet) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0
}
