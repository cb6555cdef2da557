package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kysee/vault-proofs/deposit"
	"github.com/kysee/vault-proofs/merkle"
	"github.com/kysee/vault-proofs/provers"
	"github.com/kysee/vault-proofs/types"
)

var (
	depositFile string
	depositWC   string
)

type depositCheck struct {
	Pubkey     types.HexBytes      `json:"pubkey"`
	Result     deposit.Result      `json:"result"`
	Predeposit *provers.Predeposit `json:"predeposit,omitempty"`
}

var depositCheckCmd = &cobra.Command{
	Use:   "deposit-check",
	Short: "Check a deposit_data file and expand valid entries for predeposit",
	RunE: func(cmd *cobra.Command, args []string) error {
		bz, err := os.ReadFile(depositFile)
		if err != nil {
			return errors.Wrap(err, "deposit data")
		}
		entries, err := deposit.ParseDepositData(bz)
		if err != nil {
			return err
		}

		var override *merkle.Root
		if depositWC != "" {
			wc, err := types.ParseRoot(depositWC)
			if err != nil {
				return errors.Wrap(err, "withdrawal credentials")
			}
			override = &wc
		}

		forkVersion, err := config.ForkVersion()
		if err != nil {
			return err
		}
		builder := provers.NewPredepositBuilder(forkVersion)

		out := make([]depositCheck, len(entries))
		for i := range entries {
			e := &entries[i]
			if e.Fork() != forkVersion {
				log.Warn().Int("entry", i).Str("fork", e.ForkVersion.String()).Str("network", config.Network).Msg("entry was generated for another fork version")
			}

			var wc merkle.Root
			if override != nil {
				wc = *override
			} else {
				copy(wc[:], e.WithdrawalCredentials)
			}
			p, res, err := builder.Build(e.Deposit(), wc)
			if err != nil {
				return errors.Wrapf(err, "entry %d", i)
			}
			out[i] = depositCheck{Pubkey: e.Pubkey, Result: res, Predeposit: p}
		}
		return printJSON(out)
	},
}

func init() {
	depositCheckCmd.Flags().StringVar(&depositFile, "file", "", "deposit_data-*.json file")
	depositCheckCmd.Flags().StringVar(&depositWC, "wc", "", "check against these withdrawal credentials instead of the file's")
	_ = depositCheckCmd.MarkFlagRequired("file")
}
