package consensus

import (
	"encoding/binary"
	"sort"
)

// Codec: a single deterministic binary encoding shared by persistence,
// transaction-id hashing, and the wire format (spec §4.2). Every
// variable-length field is prefixed with its length as a 4-byte
// little-endian uint32. Encoding is round-trip stable and canonical:
// decode(encode(x)) == x, and encode(x) == encode(y) whenever x == y.

func putUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func putUint64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func putBytes(dst []byte, b []byte) []byte {
	dst = putUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) takeUint32(name string) (uint32, error) {
	if c.pos+4 > len(c.buf) {
		return 0, NewError(ErrSerialization, "%s: truncated", name)
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

func (c *cursor) takeUint64(name string) (uint64, error) {
	if c.pos+8 > len(c.buf) {
		return 0, NewError(ErrSerialization, "%s: truncated", name)
	}
	v := binary.LittleEndian.Uint64(c.buf[c.pos : c.pos+8])
	c.pos += 8
	return v, nil
}

func (c *cursor) takeBytes(name string) ([]byte, error) {
	n, err := c.takeUint32(name)
	if err != nil {
		return nil, err
	}
	if c.pos+int(n) > len(c.buf) {
		return nil, NewError(ErrSerialization, "%s: truncated body", name)
	}
	out := append([]byte(nil), c.buf[c.pos:c.pos+int(n)]...)
	c.pos += int(n)
	return out, nil
}

func (c *cursor) takeFixed(n int, name string) ([]byte, error) {
	if c.pos+n > len(c.buf) {
		return nil, NewError(ErrSerialization, "%s: truncated", name)
	}
	out := c.buf[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

func (c *cursor) done() error {
	if c.pos != len(c.buf) {
		return NewError(ErrSerialization, "trailing bytes after decode (%d unread)", len(c.buf)-c.pos)
	}
	return nil
}

// EncodeTxInput appends in's canonical encoding to dst.
func EncodeTxInput(dst []byte, in TxInput) []byte {
	dst = append(dst, in.PrevTxID[:]...)
	dst = putUint32(dst, in.PrevVout)
	dst = putBytes(dst, in.Signature)
	dst = putBytes(dst, in.PubKey)
	return dst
}

func decodeTxInput(c *cursor) (TxInput, error) {
	var in TxInput
	txid, err := c.takeFixed(32, "input.prev_txid")
	if err != nil {
		return in, err
	}
	copy(in.PrevTxID[:], txid)
	if in.PrevVout, err = c.takeUint32("input.prev_vout"); err != nil {
		return in, err
	}
	if in.Signature, err = c.takeBytes("input.signature"); err != nil {
		return in, err
	}
	if in.PubKey, err = c.takeBytes("input.pub_key"); err != nil {
		return in, err
	}
	return in, nil
}

// EncodeTxOutput appends o's canonical encoding to dst.
func EncodeTxOutput(dst []byte, o TxOutput) []byte {
	dst = putUint64(dst, o.Value)
	dst = append(dst, o.PubKeyHash[:]...)
	return dst
}

func decodeTxOutput(c *cursor) (TxOutput, error) {
	var o TxOutput
	var err error
	if o.Value, err = c.takeUint64("output.value"); err != nil {
		return o, err
	}
	hash, err := c.takeFixed(20, "output.pub_key_hash")
	if err != nil {
		return o, err
	}
	copy(o.PubKeyHash[:], hash)
	return o, nil
}

// EncodeTx returns tx's canonical binary encoding, ID field included
// verbatim. Callers computing a transaction id must pass a copy with ID
// zeroed (see Tx construction in tx.go).
func EncodeTx(tx *Tx) []byte {
	out := make([]byte, 0, 64+32*len(tx.Inputs)+28*len(tx.Outputs))
	out = append(out, tx.ID[:]...)
	out = putUint32(out, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		out = EncodeTxInput(out, in)
	}
	out = putUint32(out, uint32(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		out = EncodeTxOutput(out, o)
	}
	out = putUint64(out, tx.Fee)
	return out
}

// DecodeTx parses b as produced by EncodeTx.
func DecodeTx(b []byte) (*Tx, error) {
	c := &cursor{buf: b}
	tx := &Tx{}
	idBytes, err := c.takeFixed(32, "tx.id")
	if err != nil {
		return nil, err
	}
	copy(tx.ID[:], idBytes)

	nIn, err := c.takeUint32("tx.input_count")
	if err != nil {
		return nil, err
	}
	tx.Inputs = make([]TxInput, 0, nIn)
	for i := uint32(0); i < nIn; i++ {
		in, err := decodeTxInput(c)
		if err != nil {
			return nil, err
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	nOut, err := c.takeUint32("tx.output_count")
	if err != nil {
		return nil, err
	}
	tx.Outputs = make([]TxOutput, 0, nOut)
	for i := uint32(0); i < nOut; i++ {
		o, err := decodeTxOutput(c)
		if err != nil {
			return nil, err
		}
		tx.Outputs = append(tx.Outputs, o)
	}

	if tx.Fee, err = c.takeUint64("tx.fee"); err != nil {
		return nil, err
	}
	if err := c.done(); err != nil {
		return nil, err
	}
	return tx, nil
}

// EncodeBlockHeader appends header's canonical encoding to dst. The
// proof-of-work pre-image is not this encoding; it is the fixed-width
// big-endian layout built by MiningPreimage (see pow.go).
func EncodeBlockHeader(dst []byte, h BlockHeader) []byte {
	dst = putUint64(dst, h.Timestamp)
	dst = putBytes(dst, []byte(h.PrevHash))
	dst = putUint64(dst, h.Nonce)
	dst = putUint64(dst, h.Height)
	dst = putUint32(dst, h.Difficulty)
	dst = append(dst, h.MerkleRoot[:]...)
	return dst
}

func decodeBlockHeader(c *cursor) (BlockHeader, error) {
	var h BlockHeader
	var err error
	if h.Timestamp, err = c.takeUint64("header.timestamp"); err != nil {
		return h, err
	}
	prevHash, err := c.takeBytes("header.prev_hash")
	if err != nil {
		return h, err
	}
	h.PrevHash = string(prevHash)
	if h.Nonce, err = c.takeUint64("header.nonce"); err != nil {
		return h, err
	}
	if h.Height, err = c.takeUint64("header.height"); err != nil {
		return h, err
	}
	if h.Difficulty, err = c.takeUint32("header.difficulty"); err != nil {
		return h, err
	}
	root, err := c.takeFixed(32, "header.merkle_root")
	if err != nil {
		return h, err
	}
	copy(h.MerkleRoot[:], root)
	return h, nil
}

// EncodeBlock returns block's canonical binary encoding, used both for
// on-disk persistence and for wire delivery in a Block message.
func EncodeBlock(b *Block) []byte {
	out := make([]byte, 0, 256+256*len(b.Transactions))
	out = EncodeBlockHeader(out, b.BlockHeader)
	out = putBytes(out, []byte(b.Hash))
	out = putUint32(out, uint32(len(b.Transactions)))
	for i := range b.Transactions {
		txBytes := EncodeTx(&b.Transactions[i])
		out = putBytes(out, txBytes)
	}
	return out
}

// DecodeBlock parses b as produced by EncodeBlock.
func DecodeBlock(b []byte) (*Block, error) {
	c := &cursor{buf: b}
	blk := &Block{}
	header, err := decodeBlockHeader(c)
	if err != nil {
		return nil, err
	}
	blk.BlockHeader = header
	hashBytes, err := c.takeBytes("block.hash")
	if err != nil {
		return nil, err
	}
	blk.Hash = string(hashBytes)

	nTx, err := c.takeUint32("block.tx_count")
	if err != nil {
		return nil, err
	}
	blk.Transactions = make([]Tx, 0, nTx)
	for i := uint32(0); i < nTx; i++ {
		txBytes, err := c.takeBytes("block.tx")
		if err != nil {
			return nil, err
		}
		tx, err := DecodeTx(txBytes)
		if err != nil {
			return nil, err
		}
		blk.Transactions = append(blk.Transactions, *tx)
	}
	if err := c.done(); err != nil {
		return nil, err
	}
	return blk, nil
}

// UTXOEntry pairs a surviving output with its original vout, the shape
// persisted per transaction in the chainstate subspace (spec §3, §4.9).
type UTXOEntry struct {
	Vout   uint32
	Output TxOutput
}

// EncodeUTXOEntries returns the canonical encoding of a transaction's
// surviving outputs, ordered by ascending vout so that equal sets always
// produce equal bytes.
func EncodeUTXOEntries(entries []UTXOEntry) []byte {
	sorted := append([]UTXOEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Vout < sorted[j].Vout })
	out := make([]byte, 0, 8+32*len(sorted))
	out = putUint32(out, uint32(len(sorted)))
	for _, e := range sorted {
		out = putUint32(out, e.Vout)
		out = EncodeTxOutput(out, e.Output)
	}
	return out
}

// DecodeUTXOEntries parses b as produced by EncodeUTXOEntries.
func DecodeUTXOEntries(b []byte) ([]UTXOEntry, error) {
	c := &cursor{buf: b}
	n, err := c.takeUint32("utxo.entry_count")
	if err != nil {
		return nil, err
	}
	out := make([]UTXOEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		vout, err := c.takeUint32("utxo.vout")
		if err != nil {
			return nil, err
		}
		o, err := decodeTxOutput(c)
		if err != nil {
			return nil, err
		}
		out = append(out, UTXOEntry{Vout: vout, Output: o})
	}
	if err := c.done(); err != nil {
		return nil, err
	}
	return out, nil
}
