package report

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/kysee/vault-proofs/cache"
)

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// RebaseReward is the value change between two reports that is not explained
// by deposits and withdrawals:
// (curr.totalValue - prev.totalValue) - (curr.inOutDelta - prev.inOutDelta).
func RebaseReward(prev, curr *VaultReport) (*big.Int, error) {
	if prev == nil || curr == nil || prev.Leaf == nil || curr.Leaf == nil {
		return nil, errors.New("rebase reward needs both reports")
	}
	if prev.Leaf.VaultAddress != curr.Leaf.VaultAddress {
		return nil, errors.Errorf("reports are for %s and %s", prev.Leaf.VaultAddress, curr.Leaf.VaultAddress)
	}
	value := new(big.Int).Sub(curr.Leaf.TotalValueWei, prev.Leaf.TotalValueWei)
	flows := new(big.Int).Sub(orZero(curr.Leaf.InOutDelta), orZero(prev.Leaf.InOutDelta))
	return value.Sub(value, flows), nil
}

func rewardKey(prev, curr *VaultReport) cache.Key {
	return cache.Key{
		Subject: "rebase-reward:" + strings.ToLower(curr.Leaf.VaultAddress.Hex()),
		Range:   fmt.Sprintf("%d-%d", prev.RefSlot, curr.RefSlot),
	}
}

// Rewards memoizes rebase rewards in a cache store.
type Rewards struct {
	Store cache.Store
}

func (r *Rewards) Between(prev, curr *VaultReport) (*big.Int, error) {
	if prev == nil || curr == nil || prev.Leaf == nil || curr.Leaf == nil {
		return RebaseReward(prev, curr)
	}
	key := rewardKey(prev, curr)
	if v, ok, err := cache.GetBig(r.Store, key); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}
	v, err := RebaseReward(prev, curr)
	if err != nil {
		return nil, err
	}
	if err := cache.SetBig(r.Store, key, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Series computes the reward of every consecutive pair of reports, ordered by
// ref slot. The result has one entry fewer than reports.
func (r *Rewards) Series(reports []VaultReport) ([]*big.Int, error) {
	sorted := append([]VaultReport{}, reports...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RefSlot < sorted[j].RefSlot })
	var out []*big.Int
	for i := 1; i < len(sorted); i++ {
		v, err := r.Between(&sorted[i-1], &sorted[i])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
