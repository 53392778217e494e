package consensus

import "testing"

func TestMerkleRootSingleLeafIsNotTheLeafItself(t *testing.T) {
	leaf := Sha256Fixture("a")
	root, err := MerkleRoot([][32]byte{leaf})
	if err != nil {
		t.Fatalf("MerkleRoot: %v", err)
	}
	if root == leaf {
		t.Fatalf("single-leaf root must be double_sha256(leaf||leaf), not the leaf itself")
	}
	want := hashPair(leaf, leaf)
	if root != want {
		t.Fatalf("root = %x, want %x", root, want)
	}
}

func TestMerkleRootEmptyRejected(t *testing.T) {
	if _, err := MerkleRoot(nil); err == nil {
		t.Fatalf("expected error for empty leaf list")
	}
}

func TestMerkleRootOddCardinalityDuplicatesLastNode(t *testing.T) {
	leaves := [][32]byte{Sha256Fixture("a"), Sha256Fixture("b"), Sha256Fixture("c")}
	root, err := MerkleRoot(leaves)
	if err != nil {
		t.Fatalf("MerkleRoot: %v", err)
	}
	left := hashPair(leaves[0], leaves[1])
	right := hashPair(leaves[2], leaves[2])
	want := hashPair(left, right)
	if root != want {
		t.Fatalf("root = %x, want %x", root, want)
	}
}

func TestMerkleProofRoundTrip(t *testing.T) {
	leaves := [][32]byte{Sha256Fixture("a"), Sha256Fixture("b"), Sha256Fixture("c"), Sha256Fixture("d")}
	root, err := MerkleRoot(leaves)
	if err != nil {
		t.Fatalf("MerkleRoot: %v", err)
	}
	for i, leaf := range leaves {
		proof, err := BuildMerkleProof(leaves, i)
		if err != nil {
			t.Fatalf("BuildMerkleProof(%d): %v", i, err)
		}
		if !VerifyMerkleProof(leaf, proof, root) {
			t.Errorf("proof for leaf %d did not verify", i)
		}
	}
}

func TestMerkleProofSingleLeaf(t *testing.T) {
	leaf := Sha256Fixture("solo")
	root, err := MerkleRoot([][32]byte{leaf})
	if err != nil {
		t.Fatalf("MerkleRoot: %v", err)
	}
	proof, err := BuildMerkleProof([][32]byte{leaf}, 0)
	if err != nil {
		t.Fatalf("BuildMerkleProof: %v", err)
	}
	if !VerifyMerkleProof(leaf, proof, root) {
		t.Fatalf("single-leaf proof did not verify")
	}
}
