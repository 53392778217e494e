package consensus

import (
	"encoding/hex"

	"github.com/ubxchain/ubxnode/crypto"
)

// Block size and count bounds (spec §3).
const (
	MaxBlockBytes   = 1 << 20 // 1 MiB
	MaxTxBytes      = 100 << 10
	MaxTxsPerBlock  = 4000
	MaxTimestampFwd = 2 * 60 * 60 * 1000 // 2h, in ms
)

// GenesisPrevHash is the literal sentinel carried in a genesis header.
const GenesisPrevHash = "None"

// NewBlock constructs and mines a block atop prev (nil for genesis) from
// txs, whose first element must be the coinbase (spec §4.8 new_block).
// timestamp is the caller-supplied wall-clock reading in ms since epoch
// (the core never reads the clock itself; see crypto.NowMillis).
func NewBlock(prev *Block, txs []Tx, height uint64, difficulty uint32, timestamp uint64, stop <-chan struct{}) (*Block, error) {
	if len(txs) == 0 {
		return nil, NewError(ErrInvalidBlock, "block: transaction list is empty")
	}
	if !txs[0].IsCoinbase() {
		return nil, NewError(ErrInvalidBlock, "block: first transaction is not coinbase")
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].IsCoinbase() {
			return nil, NewError(ErrInvalidBlock, "block: coinbase at non-zero position %d", i)
		}
	}
	if len(txs) > MaxTxsPerBlock {
		return nil, NewError(ErrInvalidBlock, "block: %d transactions exceeds limit %d", len(txs), MaxTxsPerBlock)
	}
	for i, tx := range txs {
		if len(EncodeTx(&tx)) > MaxTxBytes {
			return nil, NewError(ErrInvalidBlock, "block: transaction %d exceeds %d bytes", i, MaxTxBytes)
		}
	}

	prevHash := GenesisPrevHash
	if prev != nil {
		prevHash = prev.Hash
	}

	leaves := make([][32]byte, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.ID
	}
	root, err := MerkleRoot(leaves)
	if err != nil {
		return nil, err
	}

	nonce, hashHex, found := MineNonce(prevHash, root, timestamp, height, difficulty, stop)
	if !found {
		return nil, NewError(ErrInvalidBlock, "block: mining exhausted nonce space without a solution")
	}

	blk := &Block{
		BlockHeader: BlockHeader{
			Timestamp:  timestamp,
			PrevHash:   prevHash,
			Nonce:      nonce,
			Height:     height,
			Difficulty: difficulty,
			MerkleRoot: root,
		},
		Hash:         hashHex,
		Transactions: txs,
	}
	if len(EncodeBlock(blk)) > MaxBlockBytes {
		return nil, NewError(ErrInvalidBlock, "block: encoded size exceeds %d bytes", MaxBlockBytes)
	}
	return blk, nil
}

// ValidateBlock runs the full seven-step validation of spec §4.8 against
// the UTXO view seen at the parent tip. parentTimestamp is nil for
// genesis, whose timestamp bound is not checked against a parent.
func ValidateBlock(block *Block, parentTimestamp *uint64, nowMillis uint64, lookup UTXOLookup) error {
	// 1. Timestamp bounds.
	if block.Timestamp > nowMillis+MaxTimestampFwd {
		return NewError(ErrInvalidBlock, "block: timestamp too far in the future")
	}
	if parentTimestamp != nil && block.Timestamp <= *parentTimestamp {
		return NewError(ErrInvalidBlock, "block: timestamp does not exceed parent's")
	}

	// 2. Size/count bounds.
	if len(block.Transactions) == 0 {
		return NewError(ErrInvalidBlock, "block: no transactions")
	}
	if len(block.Transactions) > MaxTxsPerBlock {
		return NewError(ErrInvalidBlock, "block: %d transactions exceeds limit %d", len(block.Transactions), MaxTxsPerBlock)
	}
	for i, tx := range block.Transactions {
		if len(EncodeTx(&tx)) > MaxTxBytes {
			return NewError(ErrInvalidBlock, "block: transaction %d exceeds %d bytes", i, MaxTxBytes)
		}
	}
	if len(EncodeBlock(block)) > MaxBlockBytes {
		return NewError(ErrInvalidBlock, "block: encoded size exceeds %d bytes", MaxBlockBytes)
	}

	// 3. Merkle root.
	leaves := make([][32]byte, len(block.Transactions))
	for i, tx := range block.Transactions {
		leaves[i] = tx.ID
	}
	okRoot, err := VerifyMerkleRoot(leaves, block.MerkleRoot)
	if err != nil {
		return err
	}
	if !okRoot {
		return NewError(ErrInvalidBlock, "block: merkle root mismatch")
	}

	// 4. Proof of work.
	preimage := MiningPreimage(block.PrevHash, block.MerkleRoot, block.Timestamp, block.Height, block.Difficulty, block.Nonce)
	if !PowValid(preimage, block.Difficulty) {
		return NewError(ErrInvalidBlock, "block: proof of work invalid")
	}
	digest := crypto.Sha256(preimage)
	if hex.EncodeToString(digest[:]) != block.Hash {
		return NewError(ErrInvalidBlock, "block: hash does not match its own preimage")
	}

	// 5. Coinbase placement.
	if !block.Transactions[0].IsCoinbase() {
		return NewError(ErrInvalidBlock, "block: first transaction is not coinbase")
	}
	for i := 1; i < len(block.Transactions); i++ {
		if block.Transactions[i].IsCoinbase() {
			return NewError(ErrInvalidBlock, "block: coinbase at non-zero position %d", i)
		}
	}
	if err := VerifyCoinbase(&block.Transactions[0]); err != nil {
		return err
	}

	// 6. Every non-coinbase transaction, and intra-block double-spend guard.
	var feeSum uint64
	seen := make(map[TxOutPoint]struct{}, len(block.Transactions))
	for i := 1; i < len(block.Transactions); i++ {
		tx := &block.Transactions[i]
		for _, in := range tx.Inputs {
			ref := TxOutPoint{TxID: in.PrevTxID, Vout: in.PrevVout}
			if _, dup := seen[ref]; dup {
				return NewError(ErrInvalidBlock, "block: double-spending detected within block")
			}
			seen[ref] = struct{}{}
		}
		if err := VerifyTx(tx, lookup); err != nil {
			return err
		}
		feeSum, err = addUint64(feeSum, tx.Fee)
		if err != nil {
			return err
		}
	}

	// 7. Coinbase reward.
	wantReward, err := CoinbaseReward(feeSum)
	if err != nil {
		return err
	}
	gotReward, err := sumOutputs(block.Transactions[0].Outputs)
	if err != nil {
		return err
	}
	if gotReward != wantReward {
		return NewError(ErrInvalidBlock, "block: coinbase reward mismatch: got %d want %d", gotReward, wantReward)
	}
	return nil
}
