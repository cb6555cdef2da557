package merkle

import (
	"encoding/hex"

	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
)

// Root is a 32 byte merkle node.
type Root [32]byte

func (r Root) String() string {
	return "0x" + hex.EncodeToString(r[:])
}

// Proof is a list of sibling hashes ordered from the leaf up to the root.
type Proof []Root

// Hash is the SHA-256 combination of two nodes.
func Hash(a, b Root) Root {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return sha256.Sum256(buf[:])
}

// BuildProof collects the siblings of g up to the root of view.
func BuildProof(view MerkleTreeView, g GIndex) (Proof, error) {
	return BuildProofTo(view, g, 1)
}

// BuildProofTo collects the siblings of g up to (but excluding) ancestor.
// The result verifies g against the node stored at ancestor.
func BuildProofTo(view MerkleTreeView, g, ancestor GIndex) (Proof, error) {
	if !ancestor.IsAncestorOf(g) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "%d is not below %d", g, ancestor)
	}
	// the leaf itself has to exist, otherwise the siblings prove nothing
	if _, err := view.NodeAt(g); err != nil {
		return nil, err
	}

	proof := make(Proof, 0, g.Depth()-ancestor.Depth())
	for cur := g; cur != ancestor; cur = cur.Parent() {
		sibling, err := view.NodeAt(cur.Sibling())
		if err != nil {
			return nil, errors.Wrapf(err, "sibling of %d", cur)
		}
		proof = append(proof, sibling)
	}
	return proof, nil
}

// ComputeRoot folds the proof from leaf upward following the bits of g.
func ComputeRoot(leaf Root, proof Proof, g GIndex) (Root, error) {
	if g == 0 || len(proof) != int(g.Depth()) {
		return Root{}, errors.Wrapf(ErrInvalidProof, "proof length %d for gindex %d", len(proof), g)
	}
	node := leaf
	idx := g
	for _, sibling := range proof {
		if idx.IsLeft() {
			node = Hash(node, sibling)
		} else {
			node = Hash(sibling, node)
		}
		idx = idx.Parent()
	}
	return node, nil
}

// Verify checks that leaf sits at g under root.
func Verify(leaf Root, proof Proof, g GIndex, root Root) bool {
	computed, err := ComputeRoot(leaf, proof, g)
	if err != nil {
		return false
	}
	return computed == root
}

// ConcatProofs joins proof legs in order. Legs must already be ordered leaf
// to root, so the first leg is the deepest one.
func ConcatProofs(legs ...Proof) Proof {
	n := 0
	for _, leg := range legs {
		n += len(leg)
	}
	out := make(Proof, 0, n)
	for _, leg := range legs {
		out = append(out, leg...)
	}
	return out
}
