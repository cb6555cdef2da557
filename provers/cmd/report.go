package main

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kysee/vault-proofs/report"
)

var (
	reportCID    string
	reportRoot   string
	reportVaults []string

	historyLimit        int
	historyOldestFirst  bool
	historyMinTimestamp uint64
)

type multiProofOutput struct {
	Root   common.Hash        `json:"root"`
	Vaults []string           `json:"vaults"`
	Proof  *report.MultiProof `json:"multiProof"`
}

type historyEntry struct {
	CID             string       `json:"cid"`
	Root            common.Hash  `json:"root"`
	RefSlot         uint64       `json:"refSlot"`
	BlockNumber     uint64       `json:"blockNumber"`
	Timestamp       uint64       `json:"timestamp"`
	TotalValue      *hexutil.Big `json:"totalValue"`
	InOutDelta      *hexutil.Big `json:"inOutDelta,omitempty"`
	LiabilityShares *hexutil.Big `json:"liabilityShares"`
}

// historyOutput lists rebase rewards by ascending ref slot, one fewer than
// reports.
type historyOutput struct {
	Vault         string         `json:"vault"`
	Reports       []historyEntry `json:"reports"`
	RebaseRewards []*hexutil.Big `json:"rebaseRewards"`
}

var reportProofCmd = &cobra.Command{
	Use:   "report-proof",
	Short: "Verify an oracle report and print the proof for one or more vaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(common.FromHex(reportRoot)) != common.HashLength {
			return errors.Errorf("root %q is not a 32 byte hex string", reportRoot)
		}
		gw, err := report.NewGateway(config.GatewayURL, config.FetchTimeout)
		if err != nil {
			return err
		}
		anchor := report.Anchor{MerkleRoot: common.HexToHash(reportRoot), CID: reportCID}
		t, err := report.LoadReport(cmd.Context(), gw, anchor)
		if err != nil {
			return err
		}

		if len(reportVaults) == 1 {
			update, err := report.VaultUpdate(t, reportVaults[0])
			if err != nil {
				return err
			}
			return printJSON(update)
		}
		mp, err := report.GetMultiProof(t, reportVaults)
		if err != nil {
			return err
		}
		return printJSON(multiProofOutput{Root: t.Root(), Vaults: reportVaults, Proof: mp})
	},
}

var reportHistoryCmd = &cobra.Command{
	Use:   "report-history",
	Short: "Walk a vault's report history and compute rebase rewards",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := report.ParseCID(reportCID)
		if err != nil {
			return err
		}
		gw, err := report.NewGateway(config.GatewayURL, config.FetchTimeout)
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		limit := historyLimit
		if !cmd.Flags().Changed("limit") {
			limit = config.HistoryLimit
		}
		opts := report.HistoryOptions{Limit: limit, MinTimestamp: historyMinTimestamp}
		if historyOldestFirst {
			opts.Direction = report.OldestFirst
		}
		vault := reportVaults[0]
		reports, err := report.WalkHistory(cmd.Context(), gw, start, vault, opts)
		if err != nil {
			return err
		}

		rewards := &report.Rewards{Store: store}
		series, err := rewards.Series(reports)
		if err != nil {
			return err
		}

		out := historyOutput{Vault: vault, Reports: make([]historyEntry, len(reports))}
		for i, r := range reports {
			out.Reports[i] = historyEntry{
				CID:             r.CID.String(),
				Root:            r.Root,
				RefSlot:         r.RefSlot,
				BlockNumber:     r.BlockNumber,
				Timestamp:       r.Timestamp,
				TotalValue:      (*hexutil.Big)(r.Leaf.TotalValueWei),
				InOutDelta:      (*hexutil.Big)(r.Leaf.InOutDelta),
				LiabilityShares: (*hexutil.Big)(r.Leaf.LiabilityShares),
			}
		}
		for _, v := range series {
			out.RebaseRewards = append(out.RebaseRewards, (*hexutil.Big)(v))
		}
		return printJSON(out)
	},
}

func init() {
	for _, c := range []*cobra.Command{reportProofCmd, reportHistoryCmd} {
		c.Flags().StringVar(&reportCID, "cid", "", "CID of the report tree")
		_ = c.MarkFlagRequired("cid")
	}

	reportProofCmd.Flags().StringVar(&reportRoot, "root", "", "merkle root anchored on-chain")
	reportProofCmd.Flags().StringSliceVar(&reportVaults, "vault", nil, "vault address; repeat for a multiproof")
	_ = reportProofCmd.MarkFlagRequired("root")
	_ = reportProofCmd.MarkFlagRequired("vault")

	reportHistoryCmd.Flags().StringSliceVar(&reportVaults, "vault", nil, "vault address")
	reportHistoryCmd.Flags().IntVar(&historyLimit, "limit", report.DefaultHistoryLimit, "maximum number of reports to fetch")
	reportHistoryCmd.Flags().BoolVar(&historyOldestFirst, "oldest-first", false, "print the oldest report first")
	reportHistoryCmd.Flags().Uint64Var(&historyMinTimestamp, "min-timestamp", 0, "stop at reports older than this unix time")
	_ = reportHistoryCmd.MarkFlagRequired("vault")
}
