package consensus

import (
	"testing"

	"github.com/ubxchain/ubxnode/crypto"
)

func genesisCoinbase(t *testing.T, to *crypto.KeyPair) Tx {
	t.Helper()
	reward, err := CoinbaseReward(0)
	if err != nil {
		t.Fatalf("CoinbaseReward: %v", err)
	}
	tx := Tx{
		Inputs:  []TxInput{{PrevVout: CoinbaseVout}},
		Outputs: []TxOutput{{Value: reward, PubKeyHash: crypto.PubKeyHash(to.PublicKey())}},
	}
	tx.ID = tx.ComputeID()
	return tx
}

func TestNewBlockThenValidateGenesis(t *testing.T) {
	kp, _ := crypto.GenerateKeyPair()
	coinbase := genesisCoinbase(t, kp)

	blk, err := NewBlock(nil, []Tx{coinbase}, 0, 1, 1_000_000, nil)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	src := newFakeUTXOSource()
	if err := ValidateBlock(blk, nil, 2_000_000, src); err != nil {
		t.Fatalf("ValidateBlock: %v", err)
	}
}

func TestNewBlockRejectsNonCoinbaseFirst(t *testing.T) {
	kp, _ := crypto.GenerateKeyPair()
	nonCoinbase := Tx{Inputs: []TxInput{{PrevTxID: Sha256Fixture("x"), PubKey: kp.PublicKey()}}}
	nonCoinbase.ID = nonCoinbase.ComputeID()
	if _, err := NewBlock(nil, []Tx{nonCoinbase}, 0, 1, 1000, nil); err == nil {
		t.Fatalf("expected error when first tx is not coinbase")
	}
}

func TestValidateBlockRejectsBadMerkleRoot(t *testing.T) {
	kp, _ := crypto.GenerateKeyPair()
	coinbase := genesisCoinbase(t, kp)
	blk, err := NewBlock(nil, []Tx{coinbase}, 0, 1, 1000, nil)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	blk.MerkleRoot[0] ^= 0xFF

	src := newFakeUTXOSource()
	if err := ValidateBlock(blk, nil, 2_000_000, src); err == nil {
		t.Fatalf("expected merkle root mismatch error")
	}
}

func TestValidateBlockRejectsTimestampNotAfterParent(t *testing.T) {
	kp, _ := crypto.GenerateKeyPair()
	coinbase := genesisCoinbase(t, kp)
	blk, err := NewBlock(nil, []Tx{coinbase}, 1, 1, 1000, nil)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	parentTS := uint64(2000)
	src := newFakeUTXOSource()
	if err := ValidateBlock(blk, &parentTS, 3000, src); err == nil {
		t.Fatalf("expected timestamp-not-after-parent error")
	}
}

func TestValidateBlockRejectsFutureTimestamp(t *testing.T) {
	kp, _ := crypto.GenerateKeyPair()
	coinbase := genesisCoinbase(t, kp)
	now := uint64(1_000_000)
	blk, err := NewBlock(nil, []Tx{coinbase}, 0, 1, now+MaxTimestampFwd+10_000, nil)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	src := newFakeUTXOSource()
	if err := ValidateBlock(blk, nil, now, src); err == nil {
		t.Fatalf("expected future-timestamp rejection")
	}
}

func TestValidateBlockRejectsWrongCoinbaseReward(t *testing.T) {
	kp, _ := crypto.GenerateKeyPair()
	coinbase := genesisCoinbase(t, kp)
	coinbase.Outputs[0].Value += 1 // desync from CoinbaseReward(0)
	coinbase.ID = coinbase.ComputeID()

	blk, err := NewBlock(nil, []Tx{coinbase}, 0, 1, 1000, nil)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	src := newFakeUTXOSource()
	if err := ValidateBlock(blk, nil, 2_000_000, src); err == nil {
		t.Fatalf("expected coinbase reward mismatch error")
	}
}

func TestValidateBlockDetectsIntraBlockDoubleSpend(t *testing.T) {
	from, _ := crypto.GenerateKeyPair()
	to, _ := crypto.GenerateKeyPair()
	miner, _ := crypto.GenerateKeyPair()

	src := newFakeUTXOSource()
	fundingTxID := Sha256Fixture("funding")
	src.put(fundingTxID, 0, TxOutput{Value: 5_000_000, PubKeyHash: crypto.PubKeyHash(from.PublicKey())})

	engine := NewFixedFeeEngine(DefaultFee)
	tx1, err := NewSpend(src, engine, 0, from.Address(), to.Address(), 1000, ByPriority(PriorityNormal), from)
	if err != nil {
		t.Fatalf("NewSpend tx1: %v", err)
	}
	tx2, err := NewSpend(src, engine, 0, from.Address(), to.Address(), 2000, ByPriority(PriorityNormal), from)
	if err != nil {
		t.Fatalf("NewSpend tx2: %v", err)
	}

	coinbase := genesisCoinbase(t, miner)
	blk, err := NewBlock(nil, []Tx{coinbase, *tx1, *tx2}, 0, 1, 1000, nil)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if err := ValidateBlock(blk, nil, 2_000_000, src); err == nil {
		t.Fatalf("expected double-spend rejection; both tx1 and tx2 spend the same output")
	}
}
