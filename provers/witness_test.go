package provers

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/protolambda/ztyp/tree"
	"github.com/stretchr/testify/require"

	"github.com/kysee/vault-proofs/cache"
	"github.com/kysee/vault-proofs/merkle"
	cfgtypes "github.com/kysee/vault-proofs/provers/types"
	"github.com/kysee/vault-proofs/types"
)

const (
	testElectraSlot = 1000
	testGenesis     = 1742213400
)

type fakeFetcher struct {
	header     cfgtypes.HeaderData
	state      *cfgtypes.BeaconState
	child      *cfgtypes.HeaderData
	childCalls int32
}

func (f *fakeFetcher) BeaconHeader(context.Context, string) (*cfgtypes.HeaderData, error) {
	h := f.header
	return &h, nil
}

func (f *fakeFetcher) BeaconState(context.Context, string) (*cfgtypes.BeaconState, error) {
	return f.state, nil
}

func (f *fakeFetcher) ChildHeader(_ context.Context, parent merkle.Root) (*cfgtypes.HeaderData, error) {
	atomic.AddInt32(&f.childCalls, 1)
	if f.child == nil || merkle.Root(f.child.Header.Message.ParentRoot) != parent {
		return nil, nil
	}
	return f.child, nil
}

func (f *fakeFetcher) Genesis(context.Context) (uint64, error) {
	return testGenesis, nil
}

// fakeDecoder hands out a prebuilt view regardless of the SSZ bytes.
type fakeDecoder struct {
	view merkle.MerkleTreeView
}

func (d *fakeDecoder) Decode(state *cfgtypes.BeaconState) (merkle.MerkleTreeView, types.StateLayout, error) {
	layout, err := state.Fork.Layout()
	return d.view, layout, err
}

func testValidator(i byte) types.Validator {
	var v types.Validator
	for j := range v.Pubkey {
		v.Pubkey[j] = i + byte(j)
	}
	v.WithdrawalCredentials[0] = 0x02
	v.WithdrawalCredentials[31] = i
	v.EffectiveBalance = 32_000_000_000
	v.ActivationEpoch = uint64(i)
	v.ExitEpoch = ^uint64(0)
	v.WithdrawableEpoch = ^uint64(0)
	return v
}

type testChain struct {
	fetcher    *fakeFetcher
	decoder    *fakeDecoder
	header     common.BeaconBlockHeader
	validators map[uint64]types.Validator
}

// newTestChain builds a sparse state holding the given validators, a header
// committing to it and a child block two slots later.
func newTestChain(t *testing.T, layoutFork, tagFork types.Fork, slot, count uint64, indices ...uint64) *testChain {
	t.Helper()
	layout, err := layoutFork.Layout()
	require.NoError(t, err)

	nodes := map[merkle.GIndex]merkle.Root{
		layout.SlotGIndex():             types.Uint64Leaf(slot),
		layout.ValidatorsLengthGIndex(): types.Uint64Leaf(count),
	}
	validators := map[uint64]types.Validator{}
	for _, idx := range indices {
		v := testValidator(byte(idx + 1))
		validators[idx] = v
		for g, r := range types.ValidatorLeaves(layout, idx, v) {
			nodes[g] = r
		}
	}
	view, err := merkle.NewSparseView(nodes, layout.MaxDepth(), layout.ResolvePath)
	require.NoError(t, err)

	header := common.BeaconBlockHeader{
		Slot:          common.Slot(slot),
		ProposerIndex: 7,
		ParentRoot:    common.Root{0xaa},
		StateRoot:     common.Root(view.Root()),
		BodyRoot:      common.Root{0xbb},
	}
	headerRoot := header.HashTreeRoot(tree.GetHashFn())
	child := common.BeaconBlockHeader{Slot: common.Slot(slot + 2), ParentRoot: headerRoot}

	return &testChain{
		fetcher: &fakeFetcher{
			header: cfgtypes.HeaderData{Root: headerRoot, Canonical: true, Header: common.SignedBeaconBlockHeader{Message: header}},
			state:  &cfgtypes.BeaconState{Fork: tagFork},
			child:  &cfgtypes.HeaderData{Canonical: true, Header: common.SignedBeaconBlockHeader{Message: child}},
		},
		decoder:    &fakeDecoder{view: view},
		header:     header,
		validators: validators,
	}
}

func (c *testChain) prover(store cache.Store) *WitnessProver {
	config := &cfgtypes.Config{ElectraSlot: testElectraSlot, SecondsPerSlot: 12}
	return NewWitnessProver(config, c.fetcher, c.decoder, store)
}

func TestBuildWitnesses_Deneb(t *testing.T) {
	chain := newTestChain(t, types.ForkDeneb, types.ForkDeneb, 900, 5, 1, 3)
	p := chain.prover(cache.NewMemoryStore())

	ws, err := p.BuildWitnesses(context.Background(), []uint64{3, 1}, "head")
	require.NoError(t, err)
	require.Len(t, ws, 2)

	headerRoot := merkle.Root(chain.header.HashTreeRoot(tree.GetHashFn()))
	for n, idx := range []uint64{3, 1} {
		w := ws[n]
		v := chain.validators[idx]
		require.Equal(t, idx, w.ValidatorIndex)
		require.Equal(t, v.Pubkey, w.Pubkey)
		require.Equal(t, v.WithdrawalCredentials, w.WithdrawalCredentials)
		require.Equal(t, types.ForkDeneb, w.Fork)
		require.EqualValues(t, 900, w.Slot)
		require.Equal(t, headerRoot, w.HeaderRoot)
		require.EqualValues(t, testGenesis+902*12, w.ChildBlockTimestamp)

		g, err := merkle.ConcatAll(types.StateRootGIndex, merkle.GIndex(86<<40)+merkle.GIndex(idx), types.PubkeyWCParentGIndex)
		require.NoError(t, err)
		require.Equal(t, g, w.GIndex)
		require.Len(t, w.Proof, 2+46+3)
		require.True(t, merkle.Verify(types.PubkeyWCRoot(v.Pubkey, v.WithdrawalCredentials), w.Proof, g, headerRoot))
	}
}

func TestBuildWitness_Electra(t *testing.T) {
	chain := newTestChain(t, types.ForkElectra, types.ForkElectra, testElectraSlot, 3, 2)
	p := chain.prover(cache.NewMemoryStore())

	w, err := p.BuildWitness(context.Background(), 2, "finalized")
	require.NoError(t, err)
	require.True(t, w.Verify())
	require.Equal(t, types.ForkElectra, w.Fork)
	require.Len(t, w.Proof, 2+47+3)

	g, err := merkle.ConcatAll(types.StateRootGIndex, merkle.GIndex(150<<40)+2, types.PubkeyWCParentGIndex)
	require.NoError(t, err)
	require.Equal(t, g, w.GIndex)
}

func TestBuildWitness_ForkMismatch(t *testing.T) {
	// deneb tag past the pivot
	chain := newTestChain(t, types.ForkDeneb, types.ForkDeneb, testElectraSlot+5, 3, 0)
	_, err := chain.prover(cache.NewMemoryStore()).BuildWitness(context.Background(), 0, "head")
	require.ErrorIs(t, err, ErrForkMismatch)

	// electra tag before the pivot
	chain = newTestChain(t, types.ForkElectra, types.ForkElectra, testElectraSlot-1, 3, 0)
	_, err = chain.prover(cache.NewMemoryStore()).BuildWitness(context.Background(), 0, "head")
	require.ErrorIs(t, err, ErrForkMismatch)

	// capella and deneb share a layout
	chain = newTestChain(t, types.ForkCapella, types.ForkCapella, testElectraSlot-1, 3, 0)
	_, err = chain.prover(cache.NewMemoryStore()).BuildWitness(context.Background(), 0, "head")
	require.NoError(t, err)
}

func TestBuildWitness_StateRootMismatch(t *testing.T) {
	chain := newTestChain(t, types.ForkDeneb, types.ForkDeneb, 10, 2, 0)
	chain.fetcher.header.Header.Message.StateRoot = common.Root{0x01}
	chain.fetcher.header.Root = common.Root{}

	_, err := chain.prover(cache.NewMemoryStore()).BuildWitness(context.Background(), 0, "head")
	require.ErrorIs(t, err, ErrStateRootMismatch)
}

func TestBuildWitness_IndexOutOfRange(t *testing.T) {
	chain := newTestChain(t, types.ForkDeneb, types.ForkDeneb, 10, 2, 0, 1)
	p := chain.prover(cache.NewMemoryStore())

	_, err := p.BuildWitness(context.Background(), 2, "head")
	require.ErrorIs(t, err, merkle.ErrIndexOutOfRange)
	_, err = p.BuildWitnesses(context.Background(), []uint64{0, 1 << 40}, "head")
	require.ErrorIs(t, err, merkle.ErrIndexOutOfRange)
}

func TestBuildWitness_NoChild(t *testing.T) {
	chain := newTestChain(t, types.ForkDeneb, types.ForkDeneb, 10, 1, 0)
	chain.fetcher.child = nil

	_, err := chain.prover(cache.NewMemoryStore()).BuildWitness(context.Background(), 0, "head")
	require.ErrorIs(t, err, ErrNoChildBlock)
}

func TestChildTimestampCached(t *testing.T) {
	chain := newTestChain(t, types.ForkDeneb, types.ForkDeneb, 10, 2, 0, 1)
	store := cache.NewMemoryStore()
	p := chain.prover(store)

	first, err := p.BuildWitness(context.Background(), 0, "head")
	require.NoError(t, err)
	second, err := p.BuildWitness(context.Background(), 1, "head")
	require.NoError(t, err)
	require.Equal(t, first.ChildBlockTimestamp, second.ChildBlockTimestamp)
	require.EqualValues(t, 1, atomic.LoadInt32(&chain.fetcher.childCalls))

	ts, ok, err := cache.GetUint64(store, cache.Key{Subject: "child-timestamp", Range: first.HeaderRoot.String()})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first.ChildBlockTimestamp, ts)
}
