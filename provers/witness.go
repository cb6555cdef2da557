package provers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kysee/vault-proofs/cache"
	"github.com/kysee/vault-proofs/merkle"
	cfgtypes "github.com/kysee/vault-proofs/provers/types"
	"github.com/kysee/vault-proofs/types"
)

var (
	ErrForkMismatch      = errors.New("provers: fork tag disagrees with slot")
	ErrStateRootMismatch = errors.New("provers: state root does not match header")
	ErrNoChildBlock      = errors.New("provers: block has no child yet")
)

// WitnessProver builds validator witnesses against a block header.
type WitnessProver struct {
	fetcher        cfgtypes.Fetcher
	decoder        StateDecoder
	schedule       types.ForkSchedule
	secondsPerSlot uint64
	store          cache.Store
}

func NewWitnessProver(config *cfgtypes.Config, fetcher cfgtypes.Fetcher, decoder StateDecoder, store cache.Store) *WitnessProver {
	return &WitnessProver{
		fetcher:        fetcher,
		decoder:        decoder,
		schedule:       config.Schedule(),
		secondsPerSlot: config.SecondsPerSlot,
		store:          store,
	}
}

// anchoredState is a decoded state checked against the header that commits
// to it.
type anchoredState struct {
	header         *types.BeaconBlockHeader
	headerRoot     merkle.Root
	headerView     *merkle.NodeView
	state          merkle.MerkleTreeView
	layout         types.StateLayout
	slot           uint64
	validators     uint64
	childTimestamp uint64
}

func (p *WitnessProver) load(ctx context.Context, blockID string) (*anchoredState, error) {
	hd, err := p.fetcher.BeaconHeader(ctx, blockID)
	if err != nil {
		return nil, err
	}
	header := types.HeaderFromZrnt(&hd.Header.Message)
	headerRoot := header.HashTreeRoot()
	if hd.Root != ([32]byte{}) && merkle.Root(hd.Root) != headerRoot {
		return nil, errors.Errorf("header %s: node reports root %s, computed %s", blockID, merkle.Root(hd.Root), headerRoot)
	}
	headerView, err := header.View()
	if err != nil {
		return nil, err
	}
	if headerView.Root() != headerRoot {
		return nil, errors.Errorf("header %s: tree root %s differs from %s", blockID, headerView.Root(), headerRoot)
	}

	raw, err := p.fetcher.BeaconState(ctx, header.StateRoot.String())
	if err != nil {
		return nil, err
	}
	state, layout, err := p.decoder.Decode(raw)
	if err != nil {
		return nil, err
	}
	// hashes every node, the views are read-only from here on
	stateRoot, err := state.NodeAt(1)
	if err != nil {
		return nil, err
	}
	if stateRoot != header.StateRoot {
		return nil, errors.Wrapf(ErrStateRootMismatch, "header %s commits to %s, state hashes to %s", headerRoot, header.StateRoot, stateRoot)
	}

	slot, err := types.ReadSlot(state, layout)
	if err != nil {
		return nil, err
	}
	if !p.schedule.Agrees(slot, layout.Fork) {
		return nil, errors.Wrapf(ErrForkMismatch, "slot %d is %s by schedule, state is tagged %s", slot, p.schedule.LayoutFamily(slot), layout.Fork)
	}
	count, err := types.ReadValidatorCount(state, layout)
	if err != nil {
		return nil, err
	}

	ts, err := p.childTimestamp(ctx, headerRoot)
	if err != nil {
		return nil, err
	}

	log.Info().Uint64("slot", slot).Str("fork", layout.Fork.String()).Uint64("validators", count).
		Str("header", headerRoot.String()).Msg("state anchored")
	return &anchoredState{
		header:         header,
		headerRoot:     headerRoot,
		headerView:     headerView,
		state:          state,
		layout:         layout,
		slot:           slot,
		validators:     count,
		childTimestamp: ts,
	}, nil
}

// childTimestamp is the timestamp of the block built on headerRoot, the
// block whose beacon root opcode exposes headerRoot on chain.
func (p *WitnessProver) childTimestamp(ctx context.Context, headerRoot merkle.Root) (uint64, error) {
	key := cache.Key{Subject: "child-timestamp", Range: headerRoot.String()}
	if ts, ok, err := cache.GetUint64(p.store, key); err != nil {
		return 0, err
	} else if ok {
		return ts, nil
	}

	child, err := p.fetcher.ChildHeader(ctx, headerRoot)
	if err != nil {
		return 0, err
	}
	if child == nil {
		return 0, errors.Wrap(ErrNoChildBlock, headerRoot.String())
	}
	genesis, err := p.fetcher.Genesis(ctx)
	if err != nil {
		return 0, err
	}
	ts := genesis + uint64(child.Header.Message.Slot)*p.secondsPerSlot
	if err := cache.SetUint64(p.store, key, ts); err != nil {
		return 0, err
	}
	return ts, nil
}

func (p *WitnessProver) prove(s *anchoredState, index uint64) (*types.ValidatorWitness, error) {
	if index >= s.validators {
		return nil, errors.Wrapf(merkle.ErrIndexOutOfRange, "validator %d of %d", index, s.validators)
	}
	validatorG, err := s.layout.ValidatorGIndex(index)
	if err != nil {
		return nil, err
	}
	if first := p.schedule.FirstValidatorGIndex(s.slot); validatorG-merkle.GIndex(index) != first {
		return nil, errors.Wrapf(ErrForkMismatch, "validators start at %d, schedule says %d", validatorG-merkle.GIndex(index), first)
	}
	v, err := types.ReadValidator(s.state, s.layout, index)
	if err != nil {
		return nil, err
	}

	leafG, err := merkle.Concat(validatorG, types.PubkeyWCParentGIndex)
	if err != nil {
		return nil, err
	}
	validatorLeg, err := merkle.BuildProofTo(s.state, leafG, validatorG)
	if err != nil {
		return nil, errors.Wrapf(err, "validator %d: pubkey/wc leg", index)
	}
	stateLeg, err := merkle.BuildProof(s.state, validatorG)
	if err != nil {
		return nil, errors.Wrapf(err, "validator %d: state leg", index)
	}
	headerLeg, err := merkle.BuildProof(s.headerView, types.StateRootGIndex)
	if err != nil {
		return nil, errors.Wrap(err, "header leg")
	}
	g, err := merkle.ConcatAll(types.StateRootGIndex, validatorG, types.PubkeyWCParentGIndex)
	if err != nil {
		return nil, err
	}

	w := &types.ValidatorWitness{
		Proof:                 merkle.ConcatProofs(validatorLeg, stateLeg, headerLeg),
		Pubkey:                v.Pubkey,
		ValidatorIndex:        index,
		ChildBlockTimestamp:   s.childTimestamp,
		WithdrawalCredentials: v.WithdrawalCredentials,
		Slot:                  s.slot,
		Fork:                  s.layout.Fork,
		HeaderRoot:            s.headerRoot,
		GIndex:                g,
	}
	if !w.Verify() {
		return nil, errors.Wrapf(merkle.ErrInvalidProof, "validator %d witness does not verify against %s", index, s.headerRoot)
	}
	log.Debug().Uint64("validator", index).Uint64("slot", s.slot).Int("proof", len(w.Proof)).Msg("witness built")
	return w, nil
}

// BuildWitness proves validators[index] under the header of blockID.
func (p *WitnessProver) BuildWitness(ctx context.Context, index uint64, blockID string) (*types.ValidatorWitness, error) {
	ws, err := p.BuildWitnesses(ctx, []uint64{index}, blockID)
	if err != nil {
		return nil, err
	}
	return ws[0], nil
}

// BuildWitnesses fetches the state once and proves every index concurrently.
// Witnesses come back in the order of indices.
func (p *WitnessProver) BuildWitnesses(ctx context.Context, indices []uint64, blockID string) ([]*types.ValidatorWitness, error) {
	s, err := p.load(ctx, blockID)
	if err != nil {
		return nil, err
	}

	out := make([]*types.ValidatorWitness, len(indices))
	g, _ := errgroup.WithContext(ctx)
	for i, index := range indices {
		i, index := i, index
		g.Go(func() error {
			w, err := p.prove(s, index)
			if err != nil {
				return err
			}
			out[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
