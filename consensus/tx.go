package consensus

import (
	"encoding/hex"

	"github.com/ubxchain/ubxnode/crypto"
)

// ComputeID hashes tx's canonical encoding with the ID field held blank
// (spec §4.4): id = sha256(encode(tx_with_id_field_blank)).
func (tx *Tx) ComputeID() [32]byte {
	cp := *tx
	cp.ID = [32]byte{}
	return crypto.Sha256(EncodeTx(&cp))
}

// UTXOSource is the read surface spend construction needs from the UTXO
// index: accumulate spendable outputs locked to pubKeyHash until at least
// amount is collected (spec §4.10 find_spendable). Returned refs maps a
// txid (hex) to the vout indices of its outputs that were selected.
type UTXOSource interface {
	FindSpendable(pubKeyHash [20]byte, amount uint64) (accumulated uint64, refs map[string][]uint32, err error)
}

// UTXOLookup resolves a single referenced output, used while signing and
// verifying (spec §4.4).
type UTXOLookup interface {
	GetUnspentOutput(txid [32]byte, vout uint32) (TxOutput, bool, error)
}

// FeeSpec selects how the fee for a new spend is determined: by priority
// (canonical, spec §4.5) or by an explicit legacy fee-rate in
// satoshis/byte, which is converted to an equivalent explicit fee before
// construction (spec §9 Open Question — both APIs are retained, priority
// is canonical).
type FeeSpec struct {
	byPriority bool
	priority   Priority
	satPerByte uint64
}

// ByPriority selects priority-based fee computation.
func ByPriority(p Priority) FeeSpec { return FeeSpec{byPriority: true, priority: p} }

// ByFeeRate selects the legacy sat/byte fee API.
func ByFeeRate(satPerByte uint64) FeeSpec { return FeeSpec{byPriority: false, satPerByte: satPerByte} }

func (f FeeSpec) resolve(engine *FeeEngine, estimatedSize, mempoolSize int) uint64 {
	if f.byPriority {
		return engine.Compute(estimatedSize, f.priority, mempoolSize)
	}
	return f.satPerByte * uint64(estimatedSize)
}

// NewSpend builds and signs a transaction sending amount to `to`, spending
// UTXOs locked to `from`'s key (spec §4.4 construction steps 1-5).
//
// signer must own the private key for `from`'s address; its PublicKey()
// must hash to the same pub_key_hash the address encodes.
func NewSpend(source UTXOSource, engine *FeeEngine, mempoolSize int, fromAddress, toAddress string, amount uint64, fee FeeSpec, signer crypto.Signer) (*Tx, error) {
	fromHash, err := crypto.DecodePubKeyHash(fromAddress)
	if err != nil {
		return nil, NewError(ErrInvalidAddress, "from: %v", err)
	}
	toHash, err := crypto.DecodePubKeyHash(toAddress)
	if err != nil {
		return nil, NewError(ErrInvalidAddress, "to: %v", err)
	}

	// Step 1: estimate size assuming 1 input, 2 outputs, then re-derive
	// the fee once the real input count is known.
	estimatedSize := EstimatedTxSize(1, 2)
	feeEstimate := fee.resolve(engine, estimatedSize, mempoolSize)

	accumulated, refs, err := source.FindSpendable(fromHash, amount+feeEstimate)
	if err != nil {
		return nil, err
	}
	if accumulated < amount+feeEstimate {
		return nil, &InsufficientFundsError{Required: amount + feeEstimate, Available: accumulated}
	}

	numInputs := 0
	for _, vouts := range refs {
		numInputs += len(vouts)
	}
	estimatedSize = EstimatedTxSize(numInputs, 2)
	actualFee := fee.resolve(engine, estimatedSize, mempoolSize)
	if accumulated < amount+actualFee {
		return nil, &InsufficientFundsError{Required: amount + actualFee, Available: accumulated}
	}

	// Step 3: build inputs (empty signatures, spender's public key) and
	// outputs.
	tx := &Tx{Fee: actualFee}
	for txidHex, vouts := range refs {
		txid, err := decodeTxidHex(txidHex)
		if err != nil {
			return nil, err
		}
		for _, vout := range vouts {
			tx.Inputs = append(tx.Inputs, TxInput{
				PrevTxID: txid,
				PrevVout: vout,
				PubKey:   signer.PublicKey(),
			})
		}
	}
	tx.Outputs = append(tx.Outputs, TxOutput{Value: amount, PubKeyHash: toHash})
	change, err := subUint64(accumulated, amount+actualFee)
	if err != nil {
		return nil, NewError(ErrTransaction, "spend: accounting error: %v", err)
	}
	if change > 0 {
		tx.Outputs = append(tx.Outputs, TxOutput{Value: change, PubKeyHash: fromHash})
	}

	// Step 4: compute id.
	tx.ID = tx.ComputeID()

	// Step 5: sign each input over the trimmed copy described in spec §4.4.
	for i := range tx.Inputs {
		digest, err := signingDigest(tx, i, fromHash)
		if err != nil {
			return nil, err
		}
		sig, err := signer.Sign(digest)
		if err != nil {
			return nil, NewError(ErrCrypto, "sign input %d: %v", i, err)
		}
		tx.Inputs[i].Signature = sig[:]
	}
	return tx, nil
}

// signingDigest hashes the trimmed copy of tx used for both signing and
// verifying input i: every input's signature is cleared and every input's
// PubKey field is cleared except input i, whose PubKey temporarily holds
// the pub_key_hash of the output it references (spec §4.4 step 5).
func signingDigest(tx *Tx, i int, refPubKeyHash [20]byte) ([32]byte, error) {
	trimmed := &Tx{
		ID:      tx.ID,
		Outputs: tx.Outputs,
		Fee:     tx.Fee,
	}
	trimmed.Inputs = make([]TxInput, len(tx.Inputs))
	for j, in := range tx.Inputs {
		trimmed.Inputs[j] = TxInput{PrevTxID: in.PrevTxID, PrevVout: in.PrevVout}
		if j == i {
			trimmed.Inputs[j].PubKey = append([]byte(nil), refPubKeyHash[:]...)
		}
	}
	return crypto.Sha256(EncodeTx(trimmed)), nil
}

func decodeTxidHex(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return out, NewError(ErrSerialization, "invalid txid hex %q", s)
	}
	copy(out[:], raw)
	return out, nil
}

// VerifyCoinbase checks the coinbase-specific invariants of spec §4.4:
// exactly one input whose pub_key is empty; at least one output; fee == 0.
func VerifyCoinbase(tx *Tx) error {
	if !tx.IsCoinbase() {
		return NewError(ErrTransaction, "not a coinbase shape")
	}
	if len(tx.Outputs) == 0 {
		return NewError(ErrTransaction, "coinbase must have at least one output")
	}
	if tx.Fee != 0 {
		return NewError(ErrTransaction, "coinbase fee must be zero")
	}
	return nil
}

// VerifyTx checks the non-coinbase invariants of spec §4.4:
//
//	(a) every referenced output exists on the main chain and is unspent;
//	(b) balance conservation (checked arithmetic);
//	(c) every input signature verifies under its claimed public key;
//	(d) the claimed pub_key_hash of each referenced output equals
//	    RIPEMD160(SHA256(input.pub_key)).
func VerifyTx(tx *Tx, lookup UTXOLookup) error {
	if tx.IsCoinbase() {
		return NewError(ErrTransaction, "VerifyTx called on a coinbase transaction")
	}
	if len(tx.Inputs) == 0 {
		return NewError(ErrTransaction, "non-coinbase transaction has no inputs")
	}

	var inputSum uint64
	for i, in := range tx.Inputs {
		output, ok, err := lookup.GetUnspentOutput(in.PrevTxID, in.PrevVout)
		if err != nil {
			return err
		}
		if !ok {
			return NewError(ErrTransaction, "input %d references missing or spent output %x:%d", i, in.PrevTxID, in.PrevVout)
		}

		gotHash := crypto.PubKeyHash(in.PubKey)
		if gotHash != output.PubKeyHash {
			return NewError(ErrTransaction, "input %d: pub_key does not hash to the locking pub_key_hash", i)
		}

		digest, err := signingDigest(tx, i, output.PubKeyHash)
		if err != nil {
			return err
		}
		var sig crypto.Signature
		if len(in.Signature) != len(sig) {
			return NewError(ErrTransaction, "input %d: malformed signature length", i)
		}
		copy(sig[:], in.Signature)
		if !crypto.Verify(in.PubKey, sig, digest) {
			return NewError(ErrTransaction, "input %d: signature verification failed", i)
		}

		inputSum, err = addUint64(inputSum, output.Value)
		if err != nil {
			return err
		}
	}

	outputSum, err := sumOutputs(tx.Outputs)
	if err != nil {
		return err
	}
	want, err := addUint64(outputSum, tx.Fee)
	if err != nil {
		return err
	}
	if inputSum != want {
		return NewError(ErrTransaction, "balance conservation violated: inputs=%d outputs+fee=%d", inputSum, want)
	}
	for i, o := range tx.Outputs {
		if o.Value == 0 {
			return NewError(ErrTransaction, "output %d has zero value", i)
		}
	}
	return nil
}
