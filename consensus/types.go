// Package consensus implements the blockchain kernel: the transaction and
// block data model, their invariants, proof-of-work, and the deterministic
// binary codec shared by persistence and the wire format. Nothing in this
// package touches a socket or a file; it is pure functions over values,
// the way the reference node keeps consensus rules independent of I/O.
package consensus

// TxOutPoint references a prior transaction output by its id and index.
type TxOutPoint struct {
	TxID [32]byte
	Vout uint32
}

// TxInput spends a prior output. In a coinbase input, TxID is the zero hash,
// Vout is CoinbaseVout, PubKey is empty, and Signature holds arbitrary
// extranonce bytes so that otherwise-identical coinbases still produce
// distinct transaction ids.
type TxInput struct {
	PrevTxID  [32]byte
	PrevVout  uint32
	Signature []byte
	PubKey    []byte
}

// CoinbaseVout is the sentinel Vout carried by a coinbase input.
const CoinbaseVout = ^uint32(0)

// TxOutput is locked to whoever holds the key that hashes to PubKeyHash.
type TxOutput struct {
	Value      uint64
	PubKeyHash [20]byte
}

// Tx is a value-transfer transaction. ID is the hash of the transaction's
// canonical encoding with ID itself held blank; see Tx.ComputeID.
type Tx struct {
	ID      [32]byte
	Inputs  []TxInput
	Outputs []TxOutput
	Fee     uint64
}

// IsCoinbase reports whether tx has the shape of a coinbase transaction:
// exactly one input whose PubKey is empty.
func (tx *Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && len(tx.Inputs[0].PubKey) == 0
}

// BlockHeader fields are documented in spec §3; Height and Difficulty are
// carried in the header itself so PoW verification needs no chain context
// beyond the header's own bytes.
type BlockHeader struct {
	Timestamp  uint64
	PrevHash   string // hex, or literal "None" for genesis
	Nonce      uint64
	Height     uint64
	Difficulty uint32
	MerkleRoot [32]byte
}

// Block is immutable once built: a header plus its ordered transaction list.
// Hash is the hex-encoded digest of the mining pre-image with the winning
// nonce (see pow.go).
type Block struct {
	BlockHeader
	Hash         string
	Transactions []Tx
}

// UtxoRecord is the logical shape of a transaction's still-unspent
// outputs: the subset of Outputs that have not been spent, keyed by
// original vout. The chainstate subspace persists the same data as a
// []UTXOEntry list (see EncodeUTXOEntries in codec.go).
type UtxoRecord struct {
	TxID    [32]byte
	Outputs map[uint32]TxOutput
}

// IsLockedWithKey reports whether o is spendable by the holder of the key
// hashing to pubKeyHash.
func (o TxOutput) IsLockedWithKey(pubKeyHash [20]byte) bool {
	return o.PubKeyHash == pubKeyHash
}
