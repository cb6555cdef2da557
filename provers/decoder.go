package provers

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/protolambda/zrnt/eth2/beacon/capella"
	"github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/protolambda/zrnt/eth2/beacon/deneb"
	"github.com/protolambda/zrnt/eth2/beacon/electra"
	"github.com/protolambda/ztyp/codec"
	"github.com/protolambda/ztyp/view"

	"github.com/kysee/vault-proofs/merkle"
	cfgtypes "github.com/kysee/vault-proofs/provers/types"
	"github.com/kysee/vault-proofs/types"
)

// StateDecoder turns an SSZ state into a tree view with the layout of its
// fork.
type StateDecoder interface {
	Decode(state *cfgtypes.BeaconState) (merkle.MerkleTreeView, types.StateLayout, error)
}

// ZrntDecoder deserializes states with the zrnt type definitions.
type ZrntDecoder struct {
	Spec *common.Spec
}

func (d *ZrntDecoder) stateType(fork types.Fork) (*view.ContainerTypeDef, error) {
	switch fork {
	case types.ForkCapella:
		return capella.BeaconStateType(d.Spec), nil
	case types.ForkDeneb:
		return deneb.BeaconStateType(d.Spec), nil
	case types.ForkElectra:
		return electra.BeaconStateType(d.Spec), nil
	}
	return nil, errors.Wrap(types.ErrUnsupportedFork, fork.String())
}

func (d *ZrntDecoder) Decode(state *cfgtypes.BeaconState) (merkle.MerkleTreeView, types.StateLayout, error) {
	layout, err := state.Fork.Layout()
	if err != nil {
		return nil, types.StateLayout{}, err
	}
	typ, err := d.stateType(state.Fork)
	if err != nil {
		return nil, types.StateLayout{}, err
	}
	v, err := typ.Deserialize(codec.NewDecodingReader(bytes.NewReader(state.SSZ), uint64(len(state.SSZ))))
	if err != nil {
		return nil, types.StateLayout{}, errors.Wrapf(err, "deserialize %s state", state.Fork)
	}
	return merkle.NewNodeView(v.Backing(), layout.MaxDepth(), layout.ResolvePath), layout, nil
}
