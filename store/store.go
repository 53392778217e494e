// Package store persists blocks and chainstate in an embedded bbolt
// database (spec §4.9): two buckets, atomic multi-key transactions, and a
// sentinel key identifying the current tip. Nothing in this package knows
// about networking or mining; it is a narrow KV contract the chain service
// drives under its own locking discipline.
package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/ubxchain/ubxnode/consensus"
)

var (
	bucketBlocks     = []byte("blocks")
	bucketChainstate = []byte("chainstate")
)

// TipKey is the literal sentinel key identifying the current tip hash
// within the blocks bucket (spec §4.9).
const TipKey = "tip_block_hash"

// Store wraps a single bbolt file holding the blocks and chainstate
// subspaces for one node.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at dataDir/kv.db and
// ensures both subspaces exist.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "store: create data directory")
	}
	path := filepath.Join(dataDir, "kv.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "store: open bbolt")
	}
	s := &Store{db: db}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBlocks); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketChainstate); err != nil {
			return err
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "store: initialize buckets")
	}
	return s, nil
}

// Close releases the underlying bbolt file.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Tip returns the current tip hash hex, or ok=false if no tip has been set
// (a brand-new store awaiting genesis).
func (s *Store) Tip() (hash string, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get([]byte(TipKey))
		if v == nil {
			return nil
		}
		hash = string(v)
		ok = true
		return nil
	})
	return hash, ok, err
}

// GetBlock loads the block stored under hash.
func (s *Store) GetBlock(hash string) (*consensus.Block, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get([]byte(hash))
		if v == nil {
			return nil
		}
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "store: get block")
	}
	if raw == nil {
		return nil, false, nil
	}
	blk, err := consensus.DecodeBlock(raw)
	if err != nil {
		return nil, false, err
	}
	return blk, true, nil
}

// BlockExists reports whether hash is a known block.
func (s *Store) BlockExists(hash string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucketBlocks).Get([]byte(hash)) != nil
		return nil
	})
	return exists, err
}

// AllBlockHashes returns every known block hash, used for full-chain
// comparisons (spec §4.13 GetBlocks). This is a linear scan and must never
// be called while holding the chain service's tip write lock (spec §9
// Pagination note).
func (s *Store) AllBlockHashes() ([]string, error) {
	var hashes []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlocks)
		return b.ForEach(func(k, _ []byte) error {
			if string(k) == TipKey {
				return nil
			}
			hashes = append(hashes, string(k))
			return nil
		})
	})
	return hashes, err
}

// PutBlockAndAdvanceTip writes block under its hash and, in the same
// transaction, updates the tip sentinel. Callers must hold the chain
// service's tip write lock before calling this (spec §9 Locks +
// durability: the in-memory tip must never move ahead of the durable
// commit).
func (s *Store) PutBlockAndAdvanceTip(block *consensus.Block) error {
	encoded := consensus.EncodeBlock(block)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlocks)
		if err := b.Put([]byte(block.Hash), encoded); err != nil {
			return err
		}
		return b.Put([]byte(TipKey), []byte(block.Hash))
	})
}

// PutBlock writes block under its hash without touching the tip sentinel,
// used when add_block is accepting a block that does not extend the
// current tip height (spec §4.10 add_block).
func (s *Store) PutBlock(block *consensus.Block) error {
	encoded := consensus.EncodeBlock(block)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put([]byte(block.Hash), encoded)
	})
}

// SetTip advances the tip sentinel alone, for a block that is already
// durable. Nothing in this module calls it: add_block advances the tip
// through PutBlockAndAdvanceTip.
func (s *Store) SetTip(hash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put([]byte(TipKey), []byte(hash))
	})
}

// GetUTXORecord loads the surviving-outputs record for txid.
func (s *Store) GetUTXORecord(txid [32]byte) ([]consensus.UTXOEntry, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketChainstate).Get(txid[:])
		if v == nil {
			return nil
		}
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "store: get utxo record")
	}
	if raw == nil {
		return nil, false, nil
	}
	entries, err := consensus.DecodeUTXOEntries(raw)
	if err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// ChainstateUpdate is a single change to apply atomically: either a full
// replacement of txid's surviving-outputs record (Entries non-nil) or a
// deletion (Entries nil), used by the UTXO index's incremental apply
// (spec §4.9).
type ChainstateUpdate struct {
	TxID    [32]byte
	Entries []consensus.UTXOEntry // nil deletes the record
}

// ApplyChainstate performs every update in one bbolt transaction, the
// crash-consistency guarantee spec §4.9 requires of incremental apply.
func (s *Store) ApplyChainstate(updates []ChainstateUpdate) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChainstate)
		for _, u := range updates {
			if u.Entries == nil {
				if err := b.Delete(u.TxID[:]); err != nil {
					return err
				}
				continue
			}
			if err := b.Put(u.TxID[:], consensus.EncodeUTXOEntries(u.Entries)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetChainstate deletes every chainstate record, used before a full
// reindex (spec §4.9 Reindex).
func (s *Store) ResetChainstate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketChainstate); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketChainstate)
		return err
	})
}

// ForEachChainstate walks every (txid, surviving-outputs) record, used to
// rebuild the spendable index at startup. The callback must not write to
// the store.
func (s *Store) ForEachChainstate(fn func(txid [32]byte, entries []consensus.UTXOEntry) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChainstate)
		return b.ForEach(func(k, v []byte) error {
			var txid [32]byte
			copy(txid[:], k)
			entries, err := consensus.DecodeUTXOEntries(v)
			if err != nil {
				return err
			}
			return fn(txid, entries)
		})
	})
}
