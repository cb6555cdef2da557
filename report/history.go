package report

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Direction orders a history walk's result.
type Direction int

const (
	NewestFirst Direction = iota
	OldestFirst
)

const DefaultHistoryLimit = 10

type HistoryOptions struct {
	// Limit caps the number of reports fetched, the starting one included.
	Limit        int
	Direction    Direction
	MinTimestamp uint64
}

// VaultReport is one vault's state in one report.
type VaultReport struct {
	CID         cid.Cid
	Root        common.Hash
	RefSlot     uint64
	BlockNumber uint64
	Timestamp   uint64
	Leaf        *VaultReportLeaf
}

// WalkHistory follows prevTreeCID links from start, collecting vault's rows.
//
// The starting report must load. Older hops stop the walk quietly when they
// cannot be fetched or parsed, when the chain ends or loops, or when a report
// is older than MinTimestamp. A CID mismatch anywhere is returned as an error.
// Reports that do not list the vault are walked through but not collected.
func WalkHistory(ctx context.Context, f Fetcher, start cid.Cid, vault string, opts HistoryOptions) ([]VaultReport, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	logger := log.With().Str("vault", vault).Str("start", start.String()).Logger()

	var out []VaultReport
	visited := make(map[string]bool)
	next := start
	for hop := 0; hop < limit; hop++ {
		if visited[next.KeyString()] {
			logger.Warn().Str("cid", next.String()).Msg("report chain loops, stopping")
			break
		}
		visited[next.KeyString()] = true

		t, err := loadTree(ctx, f, next)
		if err != nil {
			if hop == 0 || errors.Is(err, ErrCIDMismatch) {
				return nil, err
			}
			logger.Warn().Err(err).Str("cid", next.String()).Int("hop", hop).Msg("history walk stopped early")
			break
		}
		if uint64(t.Timestamp) < opts.MinTimestamp {
			logger.Debug().Str("cid", next.String()).Uint64("timestamp", uint64(t.Timestamp)).Msg("history reached timestamp bound")
			break
		}

		leaf, err := GetVaultLeaf(t, vault)
		switch {
		case errors.Is(err, ErrVaultNotFoundInReport):
			logger.Debug().Str("cid", next.String()).Msg("vault absent from report")
		case err != nil:
			return nil, err
		default:
			out = append(out, VaultReport{
				CID:         t.CID,
				Root:        t.Root(),
				RefSlot:     uint64(t.RefSlot),
				BlockNumber: uint64(t.BlockNumber),
				Timestamp:   uint64(t.Timestamp),
				Leaf:        leaf,
			})
		}

		if t.PrevTreeCID == "" {
			break
		}
		if next, err = ParseCID(t.PrevTreeCID); err != nil {
			logger.Warn().Err(err).Msg("bad prevTreeCID, stopping")
			break
		}
	}

	if opts.Direction == OldestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}
