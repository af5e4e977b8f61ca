package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/tonlight/tonlight/types"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output
	LogFormatJSON = "json"

	// DefaultLogLevel defines a default log level as INFO.
	DefaultLogLevel = "info"

	// MainnetGlobalID is the global id of the TON mainnet.
	MainnetGlobalID = -239
	// TestnetGlobalID is the global id of the TON testnet.
	TestnetGlobalID = -3
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
// NOTE: libs/cli must know to look in the config dir!
var (
	DefaultTonlightDir = ".tonlight"
	defaultConfigDir   = "config"
	defaultDataDir     = "data"

	defaultConfigFileName   = "config.toml"
	defaultTrustedStateName = "trusted_state.json"

	defaultConfigFilePath   = filepath.Join(defaultConfigDir, defaultConfigFileName)
	defaultTrustedStatePath = filepath.Join(defaultConfigDir, defaultTrustedStateName)
)

// Config defines the top level configuration for a light client.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	Light           *LightConfig           `mapstructure:"light"`
	Provider        *ProviderConfig        `mapstructure:"provider"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for a light client.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Light:           DefaultLightConfig(),
		Provider:        DefaultProviderConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Light:           TestLightConfig(),
		Provider:        TestProviderConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	cfg.Light.RootDir = root
	cfg.Provider.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Light.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [light] section: %w", err)
	}
	if err := cfg.Provider.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [provider] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a light client.
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// Database backend: goleveldb | memdb
	DBBackend string `mapstructure:"db_backend"`

	// Database directory
	DBPath string `mapstructure:"db_dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log_level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log_format"`
}

// DefaultBaseConfig returns a default base configuration.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		DBBackend: "goleveldb",
		DBPath:    defaultDataDir,
		LogLevel:  DefaultLogLevel,
		LogFormat: LogFormatPlain,
	}
}

// TestBaseConfig returns a base configuration for testing.
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = "memdb"
	return cfg
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log_format (must be 'plain' or 'json')")
	}
	if cfg.DBBackend == "" {
		return errors.New("db_backend can't be empty")
	}
	return nil
}

//-----------------------------------------------------------------------------
// LightConfig

// LightConfig defines how the light client verifies blocks.
type LightConfig struct {
	RootDir string `mapstructure:"home"`

	// Global id of the tracked network: -239 (mainnet) or -3 (testnet)
	GlobalID int32 `mapstructure:"global_id"`

	// Path to the JSON file holding the state the client starts from when
	// its database is empty
	TrustedStateFile string `mapstructure:"trusted_state_file"`

	// How signatures add up towards the quorum: validator | total
	// * validator: each distinct signer adds its own weight
	// * total: each valid signature adds the set's total weight, as the
	//   deployed light client contract does
	TallyMode string `mapstructure:"tally_mode"`

	// Reject key blocks whose validator set declares a total weight below
	// the sum of its members' weights
	VerifyTotalWeight bool `mapstructure:"verify_total_weight"`

	// Number of trusted states kept in the database. 0 keeps all of them.
	PruningSize uint16 `mapstructure:"pruning_size"`

	// Number of signature requests kept in flight while syncing
	FetchConcurrency int `mapstructure:"fetch_concurrency"`
}

// DefaultLightConfig returns a default configuration for the light client.
func DefaultLightConfig() *LightConfig {
	return &LightConfig{
		GlobalID:          MainnetGlobalID,
		TrustedStateFile:  defaultTrustedStatePath,
		TallyMode:         types.TallyValidatorWeight.String(),
		VerifyTotalWeight: true,
		PruningSize:       1000,
		FetchConcurrency:  8,
	}
}

// TestLightConfig returns a configuration for testing the light client.
func TestLightConfig() *LightConfig {
	cfg := DefaultLightConfig()
	cfg.PruningSize = 10
	cfg.FetchConcurrency = 2
	return cfg
}

// TrustedStatePath returns the full path to the trusted state file.
func (cfg *LightConfig) TrustedStatePath() string {
	return rootify(cfg.TrustedStateFile, cfg.RootDir)
}

// Tally returns the parsed tally mode.
func (cfg *LightConfig) Tally() (types.TallyMode, error) {
	return types.ParseTallyMode(cfg.TallyMode)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *LightConfig) ValidateBasic() error {
	if cfg.GlobalID == 0 {
		return errors.New("global_id can't be 0")
	}
	if cfg.TrustedStateFile == "" {
		return errors.New("trusted_state_file can't be empty")
	}
	if _, err := cfg.Tally(); err != nil {
		return fmt.Errorf("tally_mode: %w", err)
	}
	if cfg.FetchConcurrency < 1 {
		return errors.New("fetch_concurrency must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// ProviderConfig

// ProviderConfig defines where blocks and signatures are fetched from.
type ProviderConfig struct {
	RootDir string `mapstructure:"home"`

	// Base URL of the toncenter v2 API serving block signatures
	SignaturesURL string `mapstructure:"signatures_url"`

	// toncenter API key. Optional.
	APIKey string `mapstructure:"api_key"`

	// Directory of serialized blocks, named <network>-<seqno>.block or
	// <network>-<seqno>-key.block
	BlocksDir string `mapstructure:"blocks_dir"`

	// Network name used in block file names: mainnet | testnet
	Network string `mapstructure:"network"`

	// Timeout of a single request
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultProviderConfig returns a default provider configuration.
func DefaultProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		SignaturesURL: "https://toncenter.com/api/v2",
		BlocksDir:     filepath.Join(defaultDataDir, "blocks"),
		Network:       "mainnet",
		Timeout:       10 * time.Second,
	}
}

// TestProviderConfig returns a provider configuration for testing.
func TestProviderConfig() *ProviderConfig {
	cfg := DefaultProviderConfig()
	cfg.SignaturesURL = "http://127.0.0.1:8081"
	cfg.Timeout = time.Second
	return cfg
}

// BlocksPath returns the full path to the blocks directory.
func (cfg *ProviderConfig) BlocksPath() string {
	return rootify(cfg.BlocksDir, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *ProviderConfig) ValidateBasic() error {
	if cfg.SignaturesURL != "" {
		if _, err := url.Parse(cfg.SignaturesURL); err != nil {
			return fmt.Errorf("signatures_url: %w", err)
		}
	}
	if cfg.Network == "" {
		return errors.New("network can't be empty")
	}
	if cfg.Timeout < 0 {
		return errors.New("timeout can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		Namespace:            "tonlight",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus_listen_addr can't be empty when prometheus is on")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
