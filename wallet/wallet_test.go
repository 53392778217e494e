package wallet

import (
	"path/filepath"
	"testing"

	"github.com/ubxchain/ubxnode/crypto"
)

func TestGenerateThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	passphrase := []byte("correct horse battery staple")

	w, err := Generate(path, passphrase)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	wantAddr := w.Address()

	loaded, err := Load(path, passphrase)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Address() != wantAddr {
		t.Fatalf("loaded wallet address mismatch: got %s, want %s", loaded.Address(), wantAddr)
	}
}

func TestLoadRejectsWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	if _, err := Generate(path, []byte("right-passphrase")); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := Load(path, []byte("wrong-passphrase")); err == nil {
		t.Fatalf("expected Load to fail under the wrong passphrase")
	}
}

func TestFileWalletSignVerifiesUnderCryptoVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	w, err := Generate(path, []byte("passphrase"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	digest := crypto.Sha256([]byte("payload"))
	sig, err := w.Sign(digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !crypto.Verify(w.PublicKey(), sig, digest) {
		t.Fatalf("signature produced by FileWallet did not verify")
	}
}
