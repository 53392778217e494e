// Package crypto provides the primitive operations the consensus and node
// layers build on: hashing, addresses, and signature verification. Nothing
// here is consensus logic; it is the narrow toolbox consensus code calls
// into, mirroring how the reference node keeps its crypto provider separate
// from block/transaction rules.
package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // ripemd160 is required by the address format, not a choice.
)

// Sha256 returns the single SHA-256 digest of b.
func Sha256(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// DoubleSha256 returns SHA-256(SHA-256(b)), used by the Merkle tree.
func DoubleSha256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Ripemd160 returns the RIPEMD-160 digest of b. Used to compress a SHA-256
// public-key digest down to the 20-byte pub_key_hash carried by outputs and
// addresses.
func Ripemd160(b []byte) [20]byte {
	h := ripemd160.New()
	_, _ = h.Write(b) // hash.Hash.Write never errors
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// PubKeyHash computes RIPEMD160(SHA256(pubKey)), the value an output's
// pub_key_hash locks against and that an address encodes.
func PubKeyHash(pubKey []byte) [20]byte {
	d := sha256.Sum256(pubKey)
	return Ripemd160(d[:])
}
