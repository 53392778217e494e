// Package wallet provides a reference FileWallet: local ECDSA-P256 key
// storage, encrypted at rest, for devnet bring-up. The core never imports
// this package; it consumes the narrow crypto.Signer capability instead
// (spec §4.16).
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"golang.org/x/crypto/scrypt"

	"github.com/ubxchain/ubxnode/consensus"
	"github.com/ubxchain/ubxnode/crypto"
)

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// record is the on-disk shape of an encrypted wallet file.
type record struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// FileWallet holds a single ECDSA-P256 keypair, decrypted in memory once
// and held for the life of the process. It implements crypto.Signer.
type FileWallet struct {
	priv *ecdsa.PrivateKey
}

// Generate creates a fresh keypair and immediately persists it to path,
// AES-256-GCM-encrypted under a key derived from passphrase via scrypt.
func Generate(path string, passphrase []byte) (*FileWallet, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, consensus.NewError(consensus.ErrWallet, "generate key: %v", err)
	}
	w := &FileWallet{priv: priv}
	if err := w.save(path, passphrase); err != nil {
		return nil, err
	}
	return w, nil
}

// Load decrypts the wallet file at path using passphrase.
func Load(path string, passphrase []byte) (*FileWallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, consensus.NewError(consensus.ErrWallet, "read %s: %v", path, err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, consensus.NewError(consensus.ErrWallet, "parse %s: %v", path, err)
	}

	gcm, err := newAEAD(passphrase, rec.Salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, rec.Nonce, rec.Ciphertext, nil)
	if err != nil {
		return nil, consensus.NewError(consensus.ErrWallet, "decrypt %s: wrong passphrase or corrupt file", path)
	}

	d := new(big.Int).SetBytes(plaintext)
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: elliptic.P256()},
		D:         d,
	}
	priv.PublicKey.X, priv.PublicKey.Y = elliptic.P256().ScalarBaseMult(d.Bytes())
	return &FileWallet{priv: priv}, nil
}

func (w *FileWallet) save(path string, passphrase []byte) error {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return consensus.NewError(consensus.ErrWallet, "generate salt: %v", err)
	}
	gcm, err := newAEAD(passphrase, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return consensus.NewError(consensus.ErrWallet, "generate nonce: %v", err)
	}
	plaintext := w.priv.D.Bytes()
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	rec := record{Salt: salt, Nonce: nonce, Ciphertext: ciphertext}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return consensus.NewError(consensus.ErrWallet, "encode wallet record: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return consensus.NewError(consensus.ErrWallet, "write %s: %v", path, err)
	}
	return nil
}

func newAEAD(passphrase, salt []byte) (cipher.AEAD, error) {
	kek, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, consensus.NewError(consensus.ErrWallet, "derive key: %v", err)
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, consensus.NewError(consensus.ErrWallet, "aes cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, consensus.NewError(consensus.ErrWallet, "aes-gcm: %v", err)
	}
	return gcm, nil
}

// PublicKey returns the uncompressed SEC1 public key. Implements
// crypto.Signer.
func (w *FileWallet) PublicKey() crypto.PublicKey {
	return elliptic.Marshal(elliptic.P256(), w.priv.PublicKey.X, w.priv.PublicKey.Y)
}

// Address returns this wallet's Base58Check address.
func (w *FileWallet) Address() string {
	return crypto.EncodeAddress(crypto.PubKeyHash(w.PublicKey()))
}

// Sign produces a fixed-length ECDSA-P256 signature over digest.
// Implements crypto.Signer.
func (w *FileWallet) Sign(digest [32]byte) (crypto.Signature, error) {
	r, s, err := ecdsa.Sign(rand.Reader, w.priv, digest[:])
	if err != nil {
		return crypto.Signature{}, fmt.Errorf("wallet: sign: %w", err)
	}
	var out crypto.Signature
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(out[32-len(rBytes):32], rBytes)
	copy(out[64-len(sBytes):64], sBytes)
	return out, nil
}
