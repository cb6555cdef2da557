package main

import (
	"github.com/protolambda/zrnt/eth2/configs"
	"github.com/spf13/cobra"

	"github.com/kysee/vault-proofs/provers"
	cfgtypes "github.com/kysee/vault-proofs/provers/types"
)

var (
	witnessBlock   string
	witnessIndices []uint64
)

var witnessCmd = &cobra.Command{
	Use:   "witness",
	Short: "Prove validators' pubkey and withdrawal credentials against a block header",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var fetcher cfgtypes.Fetcher
		if config.DataDir != "" {
			fetcher = provers.NewFileFetcher(rootPath(config.DataDir))
		} else {
			fetcher = provers.NewAPIFetcher(config.ConsensusURL, config.FetchTimeout)
		}
		decoder := &provers.ZrntDecoder{Spec: configs.Mainnet}

		prover := provers.NewWitnessProver(config, fetcher, decoder, store)
		witnesses, err := prover.BuildWitnesses(cmd.Context(), witnessIndices, witnessBlock)
		if err != nil {
			return err
		}
		return printJSON(witnesses)
	},
}

func init() {
	witnessCmd.Flags().StringVar(&witnessBlock, "block", "head", "block id: head, finalized, a slot or a 0x root")
	witnessCmd.Flags().Uint64SliceVar(&witnessIndices, "index", nil, "validator indices")
	_ = witnessCmd.MarkFlagRequired("index")
}
