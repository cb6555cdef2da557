package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kysee/vault-proofs/cache"
	cfgtypes "github.com/kysee/vault-proofs/provers/types"
)

var (
	cfgFile string
	v       *viper.Viper
	config  *cfgtypes.Config
)

var rootCmd = &cobra.Command{
	Use:   "vault-proofs",
	Short: "Build and check staking vault proofs",
	Long: `vault-proofs builds validator witnesses against beacon block headers,
checks deposit data before predeposit and verifies oracle reports published
on IPFS.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if v, err = cfgtypes.NewViper(cfgFile); err != nil {
			return err
		}
		for _, name := range []string{"network", "consensus-url", "data-dir", "gateway-url", "cache-path", "log-level"} {
			if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
				return errors.Wrap(err, name)
			}
		}
		if config, err = cfgtypes.NewConfig(v); err != nil {
			return err
		}
		return setupLogger(config.LogLevel)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.String("network", "mainnet", "network preset: mainnet or hoodi")
	flags.String("consensus-url", "", "Beacon API endpoint")
	flags.String("data-dir", "", "read beacon data from a snapshot directory instead of the API")
	flags.String("gateway-url", "", "IPFS gateway base URL")
	flags.String("cache-path", "", "bbolt file for derived values; memory when empty")
	flags.String("log-level", "info", "trace, debug, info, warn or error")

	rootCmd.AddCommand(witnessCmd)
	rootCmd.AddCommand(depositCheckCmd)
	rootCmd.AddCommand(reportProofCmd)
	rootCmd.AddCommand(reportHistoryCmd)
}

func setupLogger(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	return nil
}

func openStore() (cache.Store, error) {
	if config.CachePath == "" {
		return cache.NewMemoryStore(), nil
	}
	return cache.NewBoltStore(rootPath(config.CachePath))
}

// rootPath resolves relative paths against the configured root directory.
func rootPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(config.RootDir, p)
}

func printJSON(out interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
