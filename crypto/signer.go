package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"
)

// Signature is a fixed-length ECDSA-P256 signature: r and s, each a
// 32-byte big-endian field element, concatenated. Fixed-length encoding
// keeps the signature's wire size predictable for fee and weight estimation.
type Signature [64]byte

// PublicKey is the uncompressed SEC1 encoding of an ECDSA-P256 point
// (0x04 || X(32) || Y(32)), 65 bytes.
type PublicKey []byte

// KeyPair is a local ECDSA-P256 keypair. It exists to let the core's own
// tests and the reference wallet exercise Sign/Verify without depending on
// an external HSM or keystore; production key custody is out of scope
// (spec §1) and is expected to sit behind the Signer interface below.
type KeyPair struct {
	priv *ecdsa.PrivateKey
}

// GenerateKeyPair creates a fresh ECDSA-P256 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// PublicKey returns the uncompressed SEC1 public key.
func (k *KeyPair) PublicKey() PublicKey {
	return elliptic.Marshal(elliptic.P256(), k.priv.PublicKey.X, k.priv.PublicKey.Y)
}

// Address returns the Base58Check address for this keypair's public key.
func (k *KeyPair) Address() string {
	return EncodeAddress(PubKeyHash(k.PublicKey()))
}

// Sign produces a fixed-length ECDSA-P256 signature over a 32-byte digest.
// It implements the Signer interface.
func (k *KeyPair) Sign(digest [32]byte) (Signature, error) {
	r, s, err := ecdsa.Sign(rand.Reader, k.priv, digest[:])
	if err != nil {
		return Signature{}, fmt.Errorf("crypto: sign: %w", err)
	}
	return encodeSignature(r, s), nil
}

// Signer is the capability the consensus layer consumes: given a private-key
// handle, produce a signature over a 32-byte digest. Any wallet backend
// (in-process, HSM, hardware token) implements this without the core ever
// seeing key material.
type Signer interface {
	PublicKey() PublicKey
	Sign(digest [32]byte) (Signature, error)
}

// Verify checks sig against digest under pubKey. It implements the P2PKH
// signature law of spec §8: flipping any bit of digest must flip the
// verdict to false.
func Verify(pubKey PublicKey, sig Signature, digest [32]byte) bool {
	x, y := elliptic.Unmarshal(elliptic.P256(), pubKey)
	if x == nil {
		return false
	}
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	r, s := decodeSignature(sig)
	return ecdsa.Verify(pub, digest[:], r, s)
}

func encodeSignature(r, s *big.Int) Signature {
	var out Signature
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(out[32-len(rBytes):32], rBytes)
	copy(out[64-len(sBytes):64], sBytes)
	return out
}

func decodeSignature(sig Signature) (*big.Int, *big.Int) {
	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	return r, s
}
