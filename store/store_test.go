package store

import (
	"testing"

	"github.com/ubxchain/ubxnode/consensus"
)

func mustOpen(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleBlock(hash string, height uint64, prevHash string) *consensus.Block {
	coinbase := consensus.Tx{
		Inputs:  []consensus.TxInput{{PrevVout: consensus.CoinbaseVout}},
		Outputs: []consensus.TxOutput{{Value: 5000, PubKeyHash: [20]byte{byte(height)}}},
	}
	coinbase.ID = coinbase.ComputeID()
	return &consensus.Block{
		BlockHeader: consensus.BlockHeader{
			Timestamp: 1000 + height,
			PrevHash:  prevHash,
			Height:    height,
		},
		Hash:         hash,
		Transactions: []consensus.Tx{coinbase},
	}
}

func TestStoreTipAbsentBeforeFirstWrite(t *testing.T) {
	st := mustOpen(t)
	_, ok, err := st.Tip()
	if err != nil {
		t.Fatalf("Tip: %v", err)
	}
	if ok {
		t.Fatalf("expected no tip on a fresh store")
	}
}

func TestStorePutBlockAndAdvanceTip(t *testing.T) {
	st := mustOpen(t)
	blk := sampleBlock("h1", 0, GenesisPrevHashForTest)
	if err := st.PutBlockAndAdvanceTip(blk); err != nil {
		t.Fatalf("PutBlockAndAdvanceTip: %v", err)
	}

	tip, ok, err := st.Tip()
	if err != nil || !ok || tip != "h1" {
		t.Fatalf("Tip() = %q, %v, %v; want h1, true, nil", tip, ok, err)
	}

	got, ok, err := st.GetBlock("h1")
	if err != nil || !ok {
		t.Fatalf("GetBlock: %v, ok=%v", err, ok)
	}
	if got.Height != 0 || got.Hash != "h1" {
		t.Fatalf("unexpected block: %+v", got.BlockHeader)
	}
}

func TestStoreBlockExists(t *testing.T) {
	st := mustOpen(t)
	exists, err := st.BlockExists("nope")
	if err != nil || exists {
		t.Fatalf("expected unknown block to not exist")
	}
	blk := sampleBlock("h2", 0, GenesisPrevHashForTest)
	if err := st.PutBlock(blk); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}
	exists, err = st.BlockExists("h2")
	if err != nil || !exists {
		t.Fatalf("expected h2 to exist after PutBlock")
	}
}

func TestStoreChainstateApplyAndReset(t *testing.T) {
	st := mustOpen(t)
	txid := [32]byte{1, 2, 3}
	updates := []ChainstateUpdate{
		{TxID: txid, Entries: []consensus.UTXOEntry{{Vout: 0, Output: consensus.TxOutput{Value: 100, PubKeyHash: [20]byte{9}}}}},
	}
	if err := st.ApplyChainstate(updates); err != nil {
		t.Fatalf("ApplyChainstate: %v", err)
	}
	entries, ok, err := st.GetUTXORecord(txid)
	if err != nil || !ok || len(entries) != 1 || entries[0].Output.Value != 100 {
		t.Fatalf("GetUTXORecord mismatch: %+v, ok=%v, err=%v", entries, ok, err)
	}

	if err := st.ResetChainstate(); err != nil {
		t.Fatalf("ResetChainstate: %v", err)
	}
	_, ok, err = st.GetUTXORecord(txid)
	if err != nil || ok {
		t.Fatalf("expected chainstate cleared after reset")
	}
}

func TestStoreApplyChainstateDeletion(t *testing.T) {
	st := mustOpen(t)
	txid := [32]byte{4, 5, 6}
	if err := st.ApplyChainstate([]ChainstateUpdate{{TxID: txid, Entries: []consensus.UTXOEntry{{Vout: 0, Output: consensus.TxOutput{Value: 1, PubKeyHash: [20]byte{1}}}}}}); err != nil {
		t.Fatalf("ApplyChainstate: %v", err)
	}
	if err := st.ApplyChainstate([]ChainstateUpdate{{TxID: txid, Entries: nil}}); err != nil {
		t.Fatalf("ApplyChainstate delete: %v", err)
	}
	_, ok, err := st.GetUTXORecord(txid)
	if err != nil || ok {
		t.Fatalf("expected record deleted")
	}
}

// GenesisPrevHashForTest avoids importing consensus.GenesisPrevHash just
// for a literal used only in this package's tests.
const GenesisPrevHashForTest = "None"
