package crypto

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	digest := Sha256([]byte("message"))
	sig, err := kp.Sign(digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(kp.PublicKey(), sig, digest) {
		t.Fatalf("signature did not verify against its own digest")
	}
}

func TestVerifyFlippedDigestBitFails(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	digest := Sha256([]byte("message"))
	sig, err := kp.Sign(digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tampered := digest
	tampered[0] ^= 0x01
	if Verify(kp.PublicKey(), sig, tampered) {
		t.Fatalf("expected verification to fail against a tampered digest")
	}
}

func TestVerifyWrongKeyFails(t *testing.T) {
	kp1, _ := GenerateKeyPair()
	kp2, _ := GenerateKeyPair()
	digest := Sha256([]byte("message"))
	sig, err := kp1.Sign(digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if Verify(kp2.PublicKey(), sig, digest) {
		t.Fatalf("expected verification under the wrong key to fail")
	}
}

func TestPubKeyHashDeterministic(t *testing.T) {
	kp, _ := GenerateKeyPair()
	a := PubKeyHash(kp.PublicKey())
	b := PubKeyHash(kp.PublicKey())
	if a != b {
		t.Fatalf("PubKeyHash must be deterministic for the same key")
	}
}
