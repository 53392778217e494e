package consensus

import (
	"encoding/hex"
	"math/big"

	"github.com/ubxchain/ubxnode/crypto"
)

// Target derives the proof-of-work target 2^(256-difficulty) (spec §4.7).
func Target(difficulty uint32) *big.Int {
	t := big.NewInt(1)
	t.Lsh(t, uint(256-difficulty))
	return t
}

// MiningPreimage builds the byte string a miner hashes while searching for
// a passing nonce: prev_hash_bytes || merkle_root || ts_be(8) ||
// height_be(8) || difficulty_be(4) || nonce_be(8). Unlike the persistence
// codec, the pre-image uses fixed big-endian fields with no length
// prefixes, matching the fixed-width integer interpretation PowValid needs.
func MiningPreimage(prevHashHex string, merkleRoot [32]byte, timestamp uint64, height uint64, difficulty uint32, nonce uint64) []byte {
	out := make([]byte, 0, len(prevHashHex)+32+8+8+4+8)
	out = append(out, []byte(prevHashHex)...)
	out = append(out, merkleRoot[:]...)
	out = appendBE64(out, timestamp)
	out = appendBE64(out, height)
	out = appendBE32(out, difficulty)
	out = appendBE64(out, nonce)
	return out
}

func appendBE32(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendBE64(dst []byte, v uint64) []byte {
	return append(dst,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// PowValid reports whether int_be(SHA256(preimage)) < target(difficulty)
// (spec §4.7, §8 invariant 6).
func PowValid(preimage []byte, difficulty uint32) bool {
	digest := crypto.Sha256(preimage)
	h := new(big.Int).SetBytes(digest[:])
	return h.Cmp(Target(difficulty)) < 0
}

// MaxNonce is the upper bound the miner scans up to before giving up on the
// current timestamp (spec §4.7).
const MaxNonce = int64(1<<63 - 1)

// MineNonce scans nonce = 0, 1, 2, ... looking for a passing value. It does
// not modify timestamp; an outer loop may refresh the timestamp and retry
// if the search is exhausted (unspecified by spec, left to the caller).
// stop, if non-nil, is polled between nonces to allow cooperative
// cancellation of this CPU-bound search.
func MineNonce(prevHashHex string, merkleRoot [32]byte, timestamp, height uint64, difficulty uint32, stop <-chan struct{}) (nonce uint64, hashHex string, found bool) {
	for n := int64(0); n <= MaxNonce; n++ {
		if stop != nil {
			select {
			case <-stop:
				return 0, "", false
			default:
			}
		}
		preimage := MiningPreimage(prevHashHex, merkleRoot, timestamp, height, difficulty, uint64(n))
		if PowValid(preimage, difficulty) {
			digest := crypto.Sha256(preimage)
			return uint64(n), hex.EncodeToString(digest[:]), true
		}
	}
	return 0, "", false
}
