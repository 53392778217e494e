package consensus

import "github.com/ubxchain/ubxnode/crypto"

// Sha256Fixture hashes s, a terse way to produce distinct, deterministic
// 32-byte leaves/ids across the test files in this package.
func Sha256Fixture(s string) [32]byte {
	return crypto.Sha256([]byte(s))
}
