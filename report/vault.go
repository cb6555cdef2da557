package report

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrVaultNotFoundInReport = errors.New("report: vault not found in report")

// VaultReportLeaf is one vault's row of a report tree.
type VaultReportLeaf struct {
	VaultAddress    common.Address
	TotalValueWei   *big.Int
	Fee             *big.Int
	LiabilityShares *big.Int
	SlashingReserve *big.Int
	// InOutDelta is nil for reports that do not carry it.
	InOutDelta *big.Int

	TreeIndex int
	Hash      common.Hash
}

func parseInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidTree, "bad integer %q", s)
	}
	return v, nil
}

func leafFromValue(t *Tree, v TreeValue) (*VaultReportLeaf, error) {
	if len(v.Value) < 5 {
		return nil, errors.Wrapf(ErrInvalidTree, "vault row has %d columns", len(v.Value))
	}
	if !common.IsHexAddress(v.Value[0]) {
		return nil, errors.Wrapf(ErrInvalidTree, "bad vault address %q", v.Value[0])
	}
	l := &VaultReportLeaf{
		VaultAddress: common.HexToAddress(v.Value[0]),
		TreeIndex:    v.TreeIndex,
		Hash:         t.Nodes[v.TreeIndex],
	}
	var err error
	for i, dst := range []**big.Int{&l.TotalValueWei, &l.Fee, &l.LiabilityShares, &l.SlashingReserve} {
		if *dst, err = parseInt(v.Value[i+1]); err != nil {
			return nil, err
		}
	}
	if len(v.Value) > 5 {
		if l.InOutDelta, err = parseInt(v.Value[5]); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// GetVaultLeaf finds the unique row for vault, compared case-insensitively.
func GetVaultLeaf(t *Tree, vault string) (*VaultReportLeaf, error) {
	i, err := t.lookup(vault)
	if err != nil {
		return nil, err
	}
	return leafFromValue(t, t.Values[i])
}

// GetProof is the sibling path of vault's leaf.
func GetProof(t *Tree, vault string) ([]common.Hash, error) {
	i, err := t.lookup(vault)
	if err != nil {
		return nil, err
	}
	return t.Proof(t.Values[i].TreeIndex)
}

// GetMultiProof proves a set of vaults from the same tree.
func GetMultiProof(t *Tree, vaults []string) (*MultiProof, error) {
	indices := make([]int, len(vaults))
	for n, vault := range vaults {
		i, err := t.lookup(vault)
		if err != nil {
			return nil, err
		}
		indices[n] = t.Values[i].TreeIndex
	}
	return t.MultiProof(indices)
}

// VaultDataUpdate is the argument list of updateVaultData.
type VaultDataUpdate struct {
	Vault           common.Address `json:"vault"`
	TotalValue      *hexutil.Big   `json:"totalValue"`
	Fee             *hexutil.Big   `json:"fee"`
	LiabilityShares *hexutil.Big   `json:"liabilityShares"`
	SlashingReserve *hexutil.Big   `json:"slashingReserve"`
	Proof           []common.Hash  `json:"proof"`
}

func VaultUpdate(t *Tree, vault string) (*VaultDataUpdate, error) {
	leaf, err := GetVaultLeaf(t, vault)
	if err != nil {
		return nil, err
	}
	proof, err := t.Proof(leaf.TreeIndex)
	if err != nil {
		return nil, err
	}
	return &VaultDataUpdate{
		Vault:           leaf.VaultAddress,
		TotalValue:      (*hexutil.Big)(leaf.TotalValueWei),
		Fee:             (*hexutil.Big)(leaf.Fee),
		LiabilityShares: (*hexutil.Big)(leaf.LiabilityShares),
		SlashingReserve: (*hexutil.Big)(leaf.SlashingReserve),
		Proof:           proof,
	}, nil
}

// Anchor is what the oracle contract's latestReportData returns.
type Anchor struct {
	Timestamp  uint64
	MerkleRoot common.Hash
	CID        string
}

// LoadReport fetches the anchored report, checks its content against the CID
// and its root against the anchor.
func LoadReport(ctx context.Context, f Fetcher, anchor Anchor) (*Tree, error) {
	c, err := ParseCID(anchor.CID)
	if err != nil {
		return nil, err
	}
	t, err := loadTree(ctx, f, c)
	if err != nil {
		return nil, err
	}
	if t.Root() != anchor.MerkleRoot {
		return nil, errors.Wrapf(ErrRootMismatch, "tree %s root %s, anchor %s", c, t.Root(), anchor.MerkleRoot)
	}
	return t, nil
}

func loadTree(ctx context.Context, f Fetcher, c cid.Cid) (*Tree, error) {
	data, err := f.FetchAndVerify(ctx, c)
	if err != nil {
		return nil, err
	}
	t, err := ParseTree(data)
	if err != nil {
		return nil, errors.Wrapf(err, "report %s", c)
	}
	t.CID = c
	log.Debug().Str("cid", c.String()).Uint64("refSlot", uint64(t.RefSlot)).Int("vaults", len(t.Values)).Msg("report loaded")
	return t, nil
}
