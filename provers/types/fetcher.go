package types

import (
	"context"

	"github.com/protolambda/zrnt/eth2/beacon/common"

	"github.com/kysee/vault-proofs/merkle"
	"github.com/kysee/vault-proofs/types"
)

// HeaderData is one entry of the Beacon API headers endpoints.
type HeaderData struct {
	Root      common.Root                    `json:"root"`
	Canonical bool                           `json:"canonical"`
	Header    common.SignedBeaconBlockHeader `json:"header"`
}

// HeaderAPIResponse represents GET /eth/v1/beacon/headers/{block_id}
type HeaderAPIResponse struct {
	ExecutionOptimistic bool       `json:"execution_optimistic"`
	Finalized           bool       `json:"finalized"`
	Data                HeaderData `json:"data"`
}

// HeadersAPIResponse represents GET /eth/v1/beacon/headers?parent_root=
type HeadersAPIResponse struct {
	ExecutionOptimistic bool         `json:"execution_optimistic"`
	Finalized           bool         `json:"finalized"`
	Data                []HeaderData `json:"data"`
}

// BeaconState is an SSZ encoded state with the fork it was served under.
type BeaconState struct {
	Fork types.Fork
	SSZ  []byte
}

// Fetcher defines the consensus layer reads the provers need.
type Fetcher interface {
	BeaconHeader(ctx context.Context, blockID string) (*HeaderData, error)
	BeaconState(ctx context.Context, stateID string) (*BeaconState, error)
	// ChildHeader returns the first block built on parentRoot, or nil when
	// there is none yet.
	ChildHeader(ctx context.Context, parentRoot merkle.Root) (*HeaderData, error)
	// Genesis returns the genesis time in unix seconds.
	Genesis(ctx context.Context) (uint64, error)
}
