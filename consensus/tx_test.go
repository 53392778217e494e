package consensus

import (
	"testing"

	"github.com/ubxchain/ubxnode/crypto"
)

// fakeUTXOSource is a minimal in-memory UTXOSource/UTXOLookup used to test
// spend construction and verification without the full store/utxoindex
// stack.
type fakeUTXOSource struct {
	outputs map[[32]byte]map[uint32]TxOutput
}

func newFakeUTXOSource() *fakeUTXOSource {
	return &fakeUTXOSource{outputs: make(map[[32]byte]map[uint32]TxOutput)}
}

func (f *fakeUTXOSource) put(txid [32]byte, vout uint32, out TxOutput) {
	m := f.outputs[txid]
	if m == nil {
		m = make(map[uint32]TxOutput)
		f.outputs[txid] = m
	}
	m[vout] = out
}

func (f *fakeUTXOSource) GetUnspentOutput(txid [32]byte, vout uint32) (TxOutput, bool, error) {
	m, ok := f.outputs[txid]
	if !ok {
		return TxOutput{}, false, nil
	}
	out, ok := m[vout]
	return out, ok, nil
}

func (f *fakeUTXOSource) FindSpendable(pubKeyHash [20]byte, amount uint64) (uint64, map[string][]uint32, error) {
	var accumulated uint64
	refs := make(map[string][]uint32)
	for txid, outputs := range f.outputs {
		if accumulated >= amount {
			break
		}
		for vout, out := range outputs {
			if accumulated >= amount {
				break
			}
			if out.PubKeyHash != pubKeyHash {
				continue
			}
			accumulated += out.Value
			key := hexEncode(txid)
			refs[key] = append(refs[key], vout)
		}
	}
	return accumulated, refs, nil
}

func hexEncode(b [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, c := range b {
		out[2*i] = hexDigits[c>>4]
		out[2*i+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

func TestNewSpendThenVerify(t *testing.T) {
	from, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	to, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	src := newFakeUTXOSource()
	fundingTxID := Sha256Fixture("funding")
	src.put(fundingTxID, 0, TxOutput{Value: 10_000_000, PubKeyHash: crypto.PubKeyHash(from.PublicKey())})

	engine := NewFixedFeeEngine(DefaultFee)
	tx, err := NewSpend(src, engine, 0, from.Address(), to.Address(), 1_000_000, ByPriority(PriorityNormal), from)
	if err != nil {
		t.Fatalf("NewSpend: %v", err)
	}

	if err := VerifyTx(tx, src); err != nil {
		t.Fatalf("VerifyTx rejected a freshly constructed spend: %v", err)
	}

	var outSum uint64
	for _, o := range tx.Outputs {
		outSum += o.Value
	}
	if outSum+tx.Fee != 10_000_000 {
		t.Fatalf("balance not conserved: outputs+fee=%d, input=%d", outSum+tx.Fee, 10_000_000)
	}
}

func TestVerifyTxRejectsTamperedSignature(t *testing.T) {
	from, _ := crypto.GenerateKeyPair()
	to, _ := crypto.GenerateKeyPair()
	src := newFakeUTXOSource()
	txid := Sha256Fixture("funding2")
	src.put(txid, 0, TxOutput{Value: 5_000_000, PubKeyHash: crypto.PubKeyHash(from.PublicKey())})

	engine := NewFixedFeeEngine(DefaultFee)
	tx, err := NewSpend(src, engine, 0, from.Address(), to.Address(), 1000, ByPriority(PriorityNormal), from)
	if err != nil {
		t.Fatalf("NewSpend: %v", err)
	}
	tx.Inputs[0].Signature[0] ^= 0xFF

	if err := VerifyTx(tx, src); err == nil {
		t.Fatalf("expected verification failure for tampered signature")
	}
}

func TestVerifyTxRejectsBrokenBalance(t *testing.T) {
	from, _ := crypto.GenerateKeyPair()
	to, _ := crypto.GenerateKeyPair()
	src := newFakeUTXOSource()
	txid := Sha256Fixture("funding3")
	src.put(txid, 0, TxOutput{Value: 5_000_000, PubKeyHash: crypto.PubKeyHash(from.PublicKey())})

	engine := NewFixedFeeEngine(DefaultFee)
	tx, err := NewSpend(src, engine, 0, from.Address(), to.Address(), 1000, ByPriority(PriorityNormal), from)
	if err != nil {
		t.Fatalf("NewSpend: %v", err)
	}
	tx.Outputs[0].Value += 1

	if err := VerifyTx(tx, src); err == nil {
		t.Fatalf("expected balance conservation failure")
	}
}

func TestVerifyCoinbaseShape(t *testing.T) {
	kp, _ := crypto.GenerateKeyPair()
	reward, err := CoinbaseReward(0)
	if err != nil {
		t.Fatalf("CoinbaseReward: %v", err)
	}
	coinbase := Tx{
		Inputs:  []TxInput{{PrevVout: CoinbaseVout}},
		Outputs: []TxOutput{{Value: reward, PubKeyHash: crypto.PubKeyHash(kp.PublicKey())}},
	}
	coinbase.ID = coinbase.ComputeID()
	if err := VerifyCoinbase(&coinbase); err != nil {
		t.Fatalf("VerifyCoinbase: %v", err)
	}
}

func TestInsufficientFundsError(t *testing.T) {
	from, _ := crypto.GenerateKeyPair()
	to, _ := crypto.GenerateKeyPair()
	src := newFakeUTXOSource()
	txid := Sha256Fixture("small")
	src.put(txid, 0, TxOutput{Value: 100, PubKeyHash: crypto.PubKeyHash(from.PublicKey())})

	engine := NewFixedFeeEngine(DefaultFee)
	_, err := NewSpend(src, engine, 0, from.Address(), to.Address(), 1_000_000, ByPriority(PriorityNormal), from)
	if err == nil {
		t.Fatalf("expected insufficient funds error")
	}
	if _, ok := err.(*InsufficientFundsError); !ok {
		t.Fatalf("expected *InsufficientFundsError, got %T: %v", err, err)
	}
}
