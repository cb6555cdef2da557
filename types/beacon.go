package types

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/protolambda/zrnt/eth2/beacon/common"

	"github.com/kysee/vault-proofs/merkle"
)

// Validator is a read-only snapshot of one registry entry.
type Validator struct {
	Pubkey                     [48]byte
	WithdrawalCredentials      merkle.Root
	EffectiveBalance           uint64
	Slashed                    bool
	ActivationEligibilityEpoch uint64
	ActivationEpoch            uint64
	ExitEpoch                  uint64
	WithdrawableEpoch          uint64
}

// PubkeyRoot is hash_tree_root of the 48 byte pubkey.
func PubkeyRoot(pubkey [48]byte) merkle.Root {
	var lo, hi merkle.Root
	copy(lo[:], pubkey[:32])
	copy(hi[:], pubkey[32:])
	return merkle.Hash(lo, hi)
}

// PubkeyWCRoot is the node at PubkeyWCParentGIndex of a validator.
func PubkeyWCRoot(pubkey [48]byte, wc merkle.Root) merkle.Root {
	return merkle.Hash(PubkeyRoot(pubkey), wc)
}

func leafUint64(r merkle.Root) uint64 {
	return binary.LittleEndian.Uint64(r[:8])
}

// ReadSlot reads the state slot leaf.
func ReadSlot(view merkle.MerkleTreeView, l StateLayout) (uint64, error) {
	r, err := view.NodeAt(l.SlotGIndex())
	if err != nil {
		return 0, errors.Wrap(err, "slot")
	}
	return leafUint64(r), nil
}

// ReadValidatorCount reads the length mix-in of the validators list.
func ReadValidatorCount(view merkle.MerkleTreeView, l StateLayout) (uint64, error) {
	r, err := view.NodeAt(l.ValidatorsLengthGIndex())
	if err != nil {
		return 0, errors.Wrap(err, "validators length")
	}
	return leafUint64(r), nil
}

// ReadValidator reads validators[index] leaf by leaf. The caller checks the
// index against the list length; past it the leaves are zero.
func ReadValidator(view merkle.MerkleTreeView, l StateLayout, index uint64) (*Validator, error) {
	g, err := l.ValidatorGIndex(index)
	if err != nil {
		return nil, err
	}
	base := g << ValidatorDepth

	var leaves [8]merkle.Root
	for i := range leaves {
		if leaves[i], err = view.NodeAt(base | merkle.GIndex(i)); err != nil {
			return nil, errors.Wrapf(err, "validator %d field %s", index, validatorFields[i])
		}
	}
	lo, err := view.NodeAt(base.Left())
	if err != nil {
		return nil, errors.Wrapf(err, "validator %d pubkey", index)
	}
	hi, err := view.NodeAt(base.Right())
	if err != nil {
		return nil, errors.Wrapf(err, "validator %d pubkey", index)
	}

	v := &Validator{
		WithdrawalCredentials:      leaves[1],
		EffectiveBalance:           leafUint64(leaves[2]),
		Slashed:                    leaves[3][0] == 1,
		ActivationEligibilityEpoch: leafUint64(leaves[4]),
		ActivationEpoch:            leafUint64(leaves[5]),
		ExitEpoch:                  leafUint64(leaves[6]),
		WithdrawableEpoch:          leafUint64(leaves[7]),
	}
	copy(v.Pubkey[:32], lo[:])
	copy(v.Pubkey[32:], hi[:16])
	if PubkeyRoot(v.Pubkey) != leaves[0] {
		return nil, errors.Errorf("validator %d pubkey chunks do not match field root", index)
	}
	return v, nil
}

// BeaconBlockHeader anchors a state root.
type BeaconBlockHeader struct {
	Slot          uint64
	ProposerIndex uint64
	ParentRoot    merkle.Root
	StateRoot     merkle.Root
	BodyRoot      merkle.Root
}

func HeaderFromZrnt(h *common.BeaconBlockHeader) *BeaconBlockHeader {
	return &BeaconBlockHeader{
		Slot:          uint64(h.Slot),
		ProposerIndex: uint64(h.ProposerIndex),
		ParentRoot:    merkle.Root(h.ParentRoot),
		StateRoot:     merkle.Root(h.StateRoot),
		BodyRoot:      merkle.Root(h.BodyRoot),
	}
}

func uint64Leaf(v uint64) merkle.Root {
	var r merkle.Root
	binary.LittleEndian.PutUint64(r[:8], v)
	return r
}

func (h *BeaconBlockHeader) leaves() []merkle.Root {
	return []merkle.Root{
		uint64Leaf(h.Slot),
		uint64Leaf(h.ProposerIndex),
		h.ParentRoot,
		h.StateRoot,
		h.BodyRoot,
	}
}

// View exposes the header as a depth-3 tree.
func (h *BeaconBlockHeader) View() (*merkle.NodeView, error) {
	return merkle.NewSubtreeView(h.leaves(), HeaderDepth, resolveHeaderPath)
}

func (h *BeaconBlockHeader) HashTreeRoot() merkle.Root {
	l := h.leaves()
	zero := merkle.Root{}
	a := merkle.Hash(merkle.Hash(l[0], l[1]), merkle.Hash(l[2], l[3]))
	b := merkle.Hash(merkle.Hash(l[4], zero), merkle.Hash(zero, zero))
	return merkle.Hash(a, b)
}

var headerFields = []string{"slot", "proposer_index", "parent_root", "state_root", "body_root"}

func resolveHeaderPath(path string) (merkle.GIndex, error) {
	for i, f := range headerFields {
		if f == path {
			return merkle.ComputeGIndex(HeaderDepth, uint64(i))
		}
	}
	return 0, errors.Wrapf(merkle.ErrUnknownPath, "header has no field %q", path)
}

// ValidatorLeaves returns the state-level leaves of validators[index], keyed
// by gindex, for building synthetic state trees.
func ValidatorLeaves(l StateLayout, index uint64, v Validator) map[merkle.GIndex]merkle.Root {
	g, err := l.ValidatorGIndex(index)
	if err != nil {
		return nil
	}
	base := g << ValidatorDepth
	var lo, hi, slashed merkle.Root
	copy(lo[:], v.Pubkey[:32])
	copy(hi[:], v.Pubkey[32:])
	if v.Slashed {
		slashed[0] = 1
	}
	leaves := map[merkle.GIndex]merkle.Root{
		base.Left():  lo,
		base.Right(): hi,
	}
	for i, r := range []merkle.Root{
		v.WithdrawalCredentials,
		uint64Leaf(v.EffectiveBalance),
		slashed,
		uint64Leaf(v.ActivationEligibilityEpoch),
		uint64Leaf(v.ActivationEpoch),
		uint64Leaf(v.ExitEpoch),
		uint64Leaf(v.WithdrawableEpoch),
	} {
		leaves[base|merkle.GIndex(i+1)] = r
	}
	return leaves
}

// Uint64Leaf is the SSZ chunk of a uint64.
func Uint64Leaf(v uint64) merkle.Root {
	return uint64Leaf(v)
}
