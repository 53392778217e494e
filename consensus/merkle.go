package consensus

import "github.com/ubxchain/ubxnode/crypto"

// MerkleRoot computes the commitment over an ordered list of transaction
// ids (spec §3): pair left||right and hash with SHA-256 applied twice; an
// odd level duplicates its last node. A single-leaf tree's root is
// double_sha256(leaf||leaf) — not the leaf itself, which is the "obvious"
// but wrong implementation spec §9 calls out explicitly.
func MerkleRoot(leaves [][32]byte) ([32]byte, error) {
	if len(leaves) == 0 {
		return [32]byte{}, NewError(ErrInvalidBlock, "merkle: empty leaf list")
	}
	if len(leaves) == 1 {
		return hashPair(leaves[0], leaves[0]), nil
	}

	level := make([][32]byte, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left // odd cardinality: duplicate the last node
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		level = next
	}
	return level[0], nil
}

func hashPair(left, right [32]byte) [32]byte {
	pair := make([]byte, 0, 64)
	pair = append(pair, left[:]...)
	pair = append(pair, right[:]...)
	return crypto.DoubleSha256(pair)
}

// VerifyMerkleRoot reports whether expected matches the recomputed root
// over leaves.
func VerifyMerkleRoot(leaves [][32]byte, expected [32]byte) (bool, error) {
	root, err := MerkleRoot(leaves)
	if err != nil {
		return false, err
	}
	return root == expected, nil
}

// MerkleProof is a sibling-hash path from a leaf to the root, not required
// on the hot path (spec §4.3) but useful for light-client style verification.
type MerkleProof struct {
	Siblings [][32]byte
	// IsRight[i] is true if Siblings[i] is the right-hand sibling at level i.
	IsRight []bool
}

// BuildMerkleProof returns the sibling path for leaves[index].
func BuildMerkleProof(leaves [][32]byte, index int) (MerkleProof, error) {
	if index < 0 || index >= len(leaves) {
		return MerkleProof{}, NewError(ErrInvalidBlock, "merkle: index out of range")
	}
	if len(leaves) == 1 {
		return MerkleProof{Siblings: [][32]byte{leaves[0]}, IsRight: []bool{true}}, nil
	}

	level := make([][32]byte, len(leaves))
	copy(level, leaves)
	var proof MerkleProof

	pos := index
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			if i == pos || i+1 == pos {
				if pos == i {
					proof.Siblings = append(proof.Siblings, right)
					proof.IsRight = append(proof.IsRight, true)
				} else {
					proof.Siblings = append(proof.Siblings, left)
					proof.IsRight = append(proof.IsRight, false)
				}
				pos = len(next)
			}
			next = append(next, hashPair(left, right))
		}
		level = next
	}
	return proof, nil
}

// VerifyMerkleProof recomputes the root from leaf using proof and compares
// it against expected.
func VerifyMerkleProof(leaf [32]byte, proof MerkleProof, expected [32]byte) bool {
	cur := leaf
	for i, sib := range proof.Siblings {
		if proof.IsRight[i] {
			cur = hashPair(cur, sib)
		} else {
			cur = hashPair(sib, cur)
		}
	}
	return cur == expected
}
