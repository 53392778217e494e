package crypto

import (
	"fmt"

	"github.com/decred/base58"
)

// AddressVersion is the single byte prefixed to every address payload before
// Base58Check encoding ("mainnet P2PKH"-style, per spec §6).
const AddressVersion = 0x00

// EncodeAddress builds a Base58Check address from a 20-byte pub_key_hash:
// version(1) || pub_key_hash(20) || checksum(4), checksum =
// double_sha256(version||hash)[0:4]. base58.CheckEncode does the version
// prefixing, checksumming, and Base58 encoding in one pass.
func EncodeAddress(pubKeyHash [20]byte) string {
	return base58.CheckEncode(pubKeyHash[:], AddressVersion)
}

// DecodePubKeyHash recovers the 20-byte pub_key_hash from an address,
// equivalent to ValidateAddress followed by extracting the payload.
// base58.CheckDecode rejects invalid characters and checksum mismatches
// before this even sees the payload.
func DecodePubKeyHash(address string) ([20]byte, error) {
	var out [20]byte
	raw, version, err := base58.CheckDecode(address)
	if err != nil {
		return out, fmt.Errorf("crypto: invalid address: %w", err)
	}
	if version != AddressVersion {
		return out, fmt.Errorf("crypto: unsupported address version 0x%02x", version)
	}
	if len(raw) != 20 {
		return out, fmt.Errorf("crypto: invalid address payload length %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// ValidateAddress reports whether address decodes to a well-formed,
// checksum-valid address, independent of any spend construction. A wallet
// or future RPC surface can call this before attempting to build a spend;
// spec §10 calls this out explicitly as a standalone check worth keeping.
func ValidateAddress(address string) bool {
	_, err := DecodePubKeyHash(address)
	return err == nil
}
