package types

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/kysee/vault-proofs/types"
)

const EnvPrefix = "VAULT_PROOFS"

// Network holds the chain constants a network is identified by.
type Network struct {
	Name               string
	ConsensusURL       string
	ElectraSlot        uint64
	GenesisForkVersion string
	SecondsPerSlot     uint64
}

var Networks = map[string]Network{
	"mainnet": {
		Name:               "mainnet",
		ConsensusURL:       "http://localhost:5052",
		ElectraSlot:        11649024,
		GenesisForkVersion: "0x00000000",
		SecondsPerSlot:     12,
	},
	"hoodi": {
		Name:               "hoodi",
		ConsensusURL:       "http://localhost:5052",
		ElectraSlot:        65536,
		GenesisForkVersion: "0x10000910",
		SecondsPerSlot:     12,
	},
}

// Config holds the prover configuration
type Config struct {
	RootDir string `mapstructure:"root"`
	Network string `mapstructure:"network"`

	// ConsensusURL is the Beacon API endpoint; DataDir replaces it for
	// offline runs
	ConsensusURL string `mapstructure:"consensus-url"`
	DataDir      string `mapstructure:"data-dir"`
	GatewayURL   string `mapstructure:"gateway-url"`
	CachePath    string `mapstructure:"cache-path"`

	ElectraSlot        uint64 `mapstructure:"electra-slot"`
	GenesisForkVersion string `mapstructure:"genesis-fork-version"`
	SecondsPerSlot     uint64 `mapstructure:"seconds-per-slot"`

	FetchTimeout time.Duration `mapstructure:"fetch-timeout"`
	HistoryLimit int           `mapstructure:"history-limit"`
	LogLevel     string        `mapstructure:"log-level"`
}

// NewViper reads VAULT_PROOFS_* variables and, when set, a YAML config file.
// Network dependent defaults are resolved later by NewConfig.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// keys without a default are invisible to Unmarshal unless bound
	for _, key := range []string{"consensus-url", "electra-slot", "genesis-fork-version", "seconds-per-slot"} {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrap(err, key)
		}
	}

	v.SetDefault("root", ".")
	v.SetDefault("network", "mainnet")
	v.SetDefault("gateway-url", "https://ipfs.io/ipfs")
	v.SetDefault("cache-path", "")
	v.SetDefault("data-dir", "")
	v.SetDefault("fetch-timeout", 30*time.Second)
	v.SetDefault("history-limit", 10)
	v.SetDefault("log-level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", cfgFile)
		}
	}
	return v, nil
}

// NewConfig resolves the configuration, filling network constants that were
// not set explicitly.
func NewConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	network, ok := Networks[strings.ToLower(config.Network)]
	if !ok {
		return nil, errors.Errorf("unknown network %q", config.Network)
	}
	config.Network = network.Name
	if !v.IsSet("consensus-url") {
		config.ConsensusURL = network.ConsensusURL
	}
	if !v.IsSet("electra-slot") {
		config.ElectraSlot = network.ElectraSlot
	}
	if !v.IsSet("genesis-fork-version") {
		config.GenesisForkVersion = network.GenesisForkVersion
	}
	if !v.IsSet("seconds-per-slot") {
		config.SecondsPerSlot = network.SecondsPerSlot
	}

	if _, err := config.ForkVersion(); err != nil {
		return nil, err
	}
	if config.SecondsPerSlot == 0 {
		return nil, errors.New("seconds-per-slot must be positive")
	}
	return &config, nil
}

func (c *Config) ForkVersion() ([4]byte, error) {
	var fv [4]byte
	b, err := types.HexToFixed(c.GenesisForkVersion, 4)
	if err != nil {
		return fv, errors.Wrapf(err, "genesis fork version %q", c.GenesisForkVersion)
	}
	copy(fv[:], b)
	return fv, nil
}

func (c *Config) Schedule() types.ForkSchedule {
	return types.ForkSchedule{ElectraSlot: c.ElectraSlot}
}
