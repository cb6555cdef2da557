package report

import (
	"bytes"
	"encoding/json"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"

	"github.com/kysee/vault-proofs/types"
)

const standardFormat = "standard-v1"

var (
	ErrInvalidTree  = errors.New("report: invalid merkle tree")
	ErrRootMismatch = errors.New("report: tree root does not match anchor")
)

// TreeValue is one leaf of the dump, with its position in Tree.Nodes.
type TreeValue struct {
	Value     []string `json:"value"`
	TreeIndex int      `json:"treeIndex"`
}

func (v *TreeValue) UnmarshalJSON(b []byte) error {
	var raw struct {
		Value     []json.RawMessage `json:"value"`
		TreeIndex int               `json:"treeIndex"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v.TreeIndex = raw.TreeIndex
	v.Value = make([]string, len(raw.Value))
	for i, r := range raw.Value {
		// bigints are dumped as strings, small numbers sometimes are not
		if len(r) > 0 && r[0] == '"' {
			if err := json.Unmarshal(r, &v.Value[i]); err != nil {
				return err
			}
		} else {
			v.Value[i] = string(r)
		}
	}
	return nil
}

// Tree is an OpenZeppelin StandardMerkleTree dump carrying oracle report
// metadata.
type Tree struct {
	Format       string          `json:"format"`
	LeafEncoding []string        `json:"leafEncoding"`
	Nodes        []common.Hash   `json:"tree"`
	Values       []TreeValue     `json:"values"`
	RefSlot      types.Uint64Str `json:"refSlot"`
	BlockNumber  types.Uint64Str `json:"blockNumber"`
	Timestamp    types.Uint64Str `json:"timestamp"`
	PrevTreeCID  string          `json:"prevTreeCID"`

	// CID the dump was fetched under, set by LoadReport.
	CID cid.Cid `json:"-"`
}

// ParseTree decodes a dump and checks every node.
func ParseTree(data []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(ErrInvalidTree, err.Error())
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tree) Root() common.Hash {
	if len(t.Nodes) == 0 {
		return common.Hash{}
	}
	return t.Nodes[0]
}

// Validate recomputes every leaf from its value and every inner node from its
// children.
func (t *Tree) Validate() error {
	if t.Format != standardFormat {
		return errors.Wrapf(ErrInvalidTree, "format %q", t.Format)
	}
	if len(t.Nodes) == 0 {
		return errors.Wrap(ErrInvalidTree, "empty tree")
	}
	for i := range t.Nodes {
		l, r := leftChild(i), rightChild(i)
		switch {
		case r < len(t.Nodes):
			if hashPair(t.Nodes[l], t.Nodes[r]) != t.Nodes[i] {
				return errors.Wrapf(ErrInvalidTree, "node %d does not hash its children", i)
			}
		case l < len(t.Nodes):
			return errors.Wrapf(ErrInvalidTree, "node %d has a single child", i)
		}
	}
	seen := make(map[int]bool, len(t.Values))
	for i, v := range t.Values {
		if !t.isLeaf(v.TreeIndex) || seen[v.TreeIndex] {
			return errors.Wrapf(ErrInvalidTree, "value %d has bad tree index %d", i, v.TreeIndex)
		}
		seen[v.TreeIndex] = true
		leaf, err := LeafHash(t.LeafEncoding, v.Value)
		if err != nil {
			return errors.Wrapf(err, "value %d", i)
		}
		if leaf != t.Nodes[v.TreeIndex] {
			return errors.Wrapf(ErrInvalidTree, "value %d does not hash to node %d", i, v.TreeIndex)
		}
	}
	return nil
}

func (t *Tree) isLeaf(i int) bool {
	return i >= 0 && i < len(t.Nodes) && leftChild(i) >= len(t.Nodes)
}

func leftChild(i int) int { return 2*i + 1 }
func rightChild(i int) int { return 2*i + 2 }
func parentIndex(i int) int { return (i - 1) / 2 }

func siblingIndex(i int) int {
	if i%2 == 1 {
		return i + 1
	}
	return i - 1
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

func abiValue(typ, s string) (interface{}, error) {
	switch {
	case typ == "address":
		if !common.IsHexAddress(s) {
			return nil, errors.Errorf("bad address %q", s)
		}
		return common.HexToAddress(s), nil
	case typ == "bool":
		return s == "true", nil
	case typ == "bytes32":
		b, err := types.HexToFixed(s, 32)
		if err != nil {
			return nil, err
		}
		return common.BytesToHash(b), nil
	case typ == "uint256" || typ == "int256":
		base := 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "-0x") {
			base = 0
		}
		v, ok := new(big.Int).SetString(s, base)
		if !ok {
			return nil, errors.Errorf("bad integer %q", s)
		}
		return v, nil
	}
	return nil, errors.Errorf("unsupported leaf type %q", typ)
}

// LeafHash is keccak256(keccak256(abi.encode(values))).
func LeafHash(encoding []string, values []string) (common.Hash, error) {
	if len(encoding) != len(values) {
		return common.Hash{}, errors.Wrapf(ErrInvalidTree, "%d values for %d types", len(values), len(encoding))
	}
	args := make(abi.Arguments, len(encoding))
	vals := make([]interface{}, len(encoding))
	for i, typ := range encoding {
		at, err := abi.NewType(typ, "", nil)
		if err != nil {
			return common.Hash{}, errors.Wrap(ErrInvalidTree, err.Error())
		}
		args[i] = abi.Argument{Type: at}
		if vals[i], err = abiValue(typ, values[i]); err != nil {
			return common.Hash{}, errors.Wrap(ErrInvalidTree, err.Error())
		}
	}
	packed, err := args.Pack(vals...)
	if err != nil {
		return common.Hash{}, errors.Wrap(ErrInvalidTree, err.Error())
	}
	inner := crypto.Keccak256(packed)
	return crypto.Keccak256Hash(inner), nil
}

// Proof returns the siblings of node i up to the root.
func (t *Tree) Proof(i int) ([]common.Hash, error) {
	if !t.isLeaf(i) {
		return nil, errors.Wrapf(ErrInvalidTree, "%d is not a leaf", i)
	}
	var proof []common.Hash
	for ; i > 0; i = parentIndex(i) {
		proof = append(proof, t.Nodes[siblingIndex(i)])
	}
	return proof, nil
}

// VerifyProof folds a sorted-pair proof from leaf and compares with root.
func VerifyProof(root, leaf common.Hash, proof []common.Hash) bool {
	node := leaf
	for _, p := range proof {
		node = hashPair(node, p)
	}
	return node == root
}

// MultiProof proves several leaves at once. Leaves are ordered by descending
// tree index, matching the on-chain processMultiProof.
type MultiProof struct {
	Leaves     []common.Hash `json:"leaves"`
	Proof      []common.Hash `json:"proof"`
	ProofFlags []bool        `json:"proofFlags"`
	Indices    []int         `json:"-"`
}

func (t *Tree) MultiProof(indices []int) (*MultiProof, error) {
	sorted := append([]int{}, indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for i, idx := range sorted {
		if !t.isLeaf(idx) {
			return nil, errors.Wrapf(ErrInvalidTree, "%d is not a leaf", idx)
		}
		if i > 0 && sorted[i-1] == idx {
			return nil, errors.Errorf("duplicate leaf %d", idx)
		}
	}

	mp := &MultiProof{Indices: sorted}
	stack := append([]int{}, sorted...)
	for len(stack) > 0 && stack[0] > 0 {
		j := stack[0]
		stack = stack[1:]
		s, p := siblingIndex(j), parentIndex(j)
		if len(stack) > 0 && s == stack[0] {
			mp.ProofFlags = append(mp.ProofFlags, true)
			stack = stack[1:]
		} else {
			mp.ProofFlags = append(mp.ProofFlags, false)
			mp.Proof = append(mp.Proof, t.Nodes[s])
		}
		stack = append(stack, p)
	}
	if len(sorted) == 0 {
		mp.Proof = append(mp.Proof, t.Root())
	}
	for _, idx := range sorted {
		mp.Leaves = append(mp.Leaves, t.Nodes[idx])
	}
	return mp, nil
}

// ProcessMultiProof rebuilds the root from a multiproof.
func ProcessMultiProof(mp *MultiProof) (common.Hash, error) {
	if len(mp.Leaves)+len(mp.Proof) != len(mp.ProofFlags)+1 {
		return common.Hash{}, errors.Wrap(ErrInvalidTree, "multiproof sizes do not add up")
	}
	stack := append([]common.Hash{}, mp.Leaves...)
	proof := append([]common.Hash{}, mp.Proof...)
	pop := func(from *[]common.Hash) (common.Hash, error) {
		if len(*from) == 0 {
			return common.Hash{}, errors.Wrap(ErrInvalidTree, "multiproof exhausted")
		}
		h := (*from)[0]
		*from = (*from)[1:]
		return h, nil
	}
	for _, flag := range mp.ProofFlags {
		a, err := pop(&stack)
		if err != nil {
			return common.Hash{}, err
		}
		var b common.Hash
		if flag {
			b, err = pop(&stack)
		} else {
			b, err = pop(&proof)
		}
		if err != nil {
			return common.Hash{}, err
		}
		stack = append(stack, hashPair(a, b))
	}
	if len(stack) > 0 {
		return stack[len(stack)-1], nil
	}
	return pop(&proof)
}

func VerifyMultiProof(root common.Hash, mp *MultiProof) bool {
	got, err := ProcessMultiProof(mp)
	return err == nil && got == root
}

// lookup scans values for the first column equal to vault, ignoring case.
func (t *Tree) lookup(vault string) (int, error) {
	found := -1
	for i, v := range t.Values {
		if len(v.Value) == 0 || !strings.EqualFold(v.Value[0], vault) {
			continue
		}
		if found >= 0 {
			return 0, errors.Wrapf(ErrInvalidTree, "vault %s listed twice", vault)
		}
		found = i
	}
	if found < 0 {
		return 0, errors.Wrap(ErrVaultNotFoundInReport, vault)
	}
	return found, nil
}
