package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/stellar/go/strkey"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output
	LogFormatJSON = "json"

	// WalletProviderFile signs with a key file kept under the home directory.
	WalletProviderFile = "file"
	// WalletProviderRemote signs through a JSON-RPC wallet such as a browser
	// extension bridge.
	WalletProviderRemote = "remote"
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
var (
	DefaultHomeDir   = ".energymarket"
	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName = "config.toml"
	defaultWalletKeyName  = "wallet_key.json"

	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
	defaultWalletKeyPath  = filepath.Join(defaultConfigDir, defaultWalletKeyName)
)

// TestnetPassphrase identifies the public test network.
const TestnetPassphrase = "Test SDF Network ; September 2015"

// Config defines the top level configuration of the market client.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	Ledger          *LedgerConfig          `mapstructure:"ledger"`
	Contract        *ContractConfig        `mapstructure:"contract"`
	Market          *MarketConfig          `mapstructure:"market"`
	Wallet          *WalletConfig          `mapstructure:"wallet"`
	Feed            *FeedConfig            `mapstructure:"feed"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Ledger:          DefaultLedgerConfig(),
		Contract:        DefaultContractConfig(),
		Market:          DefaultMarketConfig(),
		Wallet:          DefaultWalletConfig(),
		Feed:            DefaultFeedConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing.
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Ledger:          TestLedgerConfig(),
		Contract:        TestContractConfig(),
		Market:          TestMarketConfig(),
		Wallet:          TestWalletConfig(),
		Feed:            TestFeedConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Ledger.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [ledger] section: %w", err)
	}
	if err := cfg.Contract.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [contract] section: %w", err)
	}
	if err := cfg.Market.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [market] section: %w", err)
	}
	if err := cfg.Wallet.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [wallet] section: %w", err)
	}
	if err := cfg.Feed.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [feed] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration.
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// Output level for logging
	LogLevel string `mapstructure:"log-level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log-format"`

	// Path to the JSON file holding the wallet key used by the file provider
	WalletKey string `mapstructure:"wallet-key-file"`
}

// DefaultBaseConfig returns a default base configuration.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		LogLevel:  "info",
		LogFormat: LogFormatPlain,
		WalletKey: defaultWalletKeyPath,
	}
}

// TestBaseConfig returns a base configuration for testing.
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.LogLevel = "debug"
	return cfg
}

// WalletKeyFile returns the full path to the wallet key file.
func (cfg BaseConfig) WalletKeyFile() string {
	return rootify(cfg.WalletKey, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log format (must be 'plain' or 'json')")
	}
	switch cfg.LogLevel {
	case "debug", "info", "error":
	default:
		return fmt.Errorf("unknown log level %q (must be 'debug', 'info' or 'error')", cfg.LogLevel)
	}
	return nil
}

//-----------------------------------------------------------------------------
// LedgerConfig

// LedgerConfig defines how the client reaches the ledger RPC node.
type LedgerConfig struct {
	// URL of the ledger JSON-RPC endpoint
	RPCAddress string `mapstructure:"rpc-address"`

	// Timeout of a single RPC request
	Timeout time.Duration `mapstructure:"timeout"`

	// Maximum number of RPC requests per second; 0 disables the limit
	RateLimit float64 `mapstructure:"rate-limit"`

	// Number of requests allowed to exceed the rate at once
	RateBurst int `mapstructure:"rate-burst"`
}

// DefaultLedgerConfig returns a default configuration for the ledger client.
func DefaultLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		RPCAddress: "https://soroban-testnet.stellar.org",
		Timeout:    10 * time.Second,
		RateLimit:  10,
		RateBurst:  20,
	}
}

// TestLedgerConfig returns a configuration for testing the ledger client.
func TestLedgerConfig() *LedgerConfig {
	cfg := DefaultLedgerConfig()
	cfg.RPCAddress = "http://127.0.0.1:8000"
	cfg.Timeout = time.Second
	cfg.RateLimit = 0
	return cfg
}

// ValidateBasic performs basic validation.
func (cfg *LedgerConfig) ValidateBasic() error {
	u, err := url.Parse(cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("invalid rpc-address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("rpc-address must be an http(s) url, got %q", cfg.RPCAddress)
	}
	if cfg.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if cfg.RateLimit < 0 {
		return errors.New("rate-limit can't be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst <= 0 {
		return errors.New("rate-burst must be positive when rate-limit is set")
	}
	return nil
}

//-----------------------------------------------------------------------------
// ContractConfig

// ContractConfig is fixed per deployment environment.
type ContractConfig struct {
	// Address of the marketplace contract
	ContractID string `mapstructure:"contract-id"`

	// Passphrase of the network the contract is deployed on
	NetworkPassphrase string `mapstructure:"network-passphrase"`

	// Inclusion fee offered per transaction, before resource fees
	BaseFee uint32 `mapstructure:"base-fee"`

	// How long a built transaction stays valid
	TxTimeout time.Duration `mapstructure:"tx-timeout"`
}

// DefaultContractConfig returns the testnet deployment without a contract.
// The contract id must be set before the client can be used.
func DefaultContractConfig() *ContractConfig {
	return &ContractConfig{
		NetworkPassphrase: TestnetPassphrase,
		BaseFee:           100,
		TxTimeout:         30 * time.Second,
	}
}

// TestContractConfig returns a contract configuration for testing.
func TestContractConfig() *ContractConfig {
	cfg := DefaultContractConfig()
	cfg.ContractID = "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABSC4"
	return cfg
}

// ValidateBasic performs basic validation. An empty contract id is allowed
// so that a freshly initialized home passes; commands that talk to the
// contract check it with Configured.
func (cfg *ContractConfig) ValidateBasic() error {
	if cfg.ContractID != "" {
		if raw, err := strkey.Decode(strkey.VersionByteContract, cfg.ContractID); err != nil || len(raw) != 32 {
			return fmt.Errorf("invalid contract-id %q", cfg.ContractID)
		}
	}
	if cfg.NetworkPassphrase == "" {
		return errors.New("network-passphrase is empty")
	}
	if cfg.BaseFee == 0 {
		return errors.New("base-fee must be positive")
	}
	if cfg.TxTimeout <= 0 {
		return errors.New("tx-timeout must be positive")
	}
	return nil
}

// Configured reports an error if no contract id has been set.
func (cfg *ContractConfig) Configured() error {
	if cfg.ContractID == "" {
		return errors.New("contract-id is not set (edit [contract] in config.toml or set EM_CONTRACT_CONTRACT_ID)")
	}
	return nil
}

//-----------------------------------------------------------------------------
// MarketConfig

// MarketConfig configures the market view and transaction confirmation.
type MarketConfig struct {
	// How often the market view refreshes
	PollInterval time.Duration `mapstructure:"poll-interval"`

	// How long to wait for a submitted transaction to be included
	ConfirmTimeout time.Duration `mapstructure:"confirm-timeout"`

	// How often to check for inclusion while waiting
	ConfirmPollInterval time.Duration `mapstructure:"confirm-poll-interval"`

	// Number of offers fetched in parallel during a refresh
	HydrateConcurrency int `mapstructure:"hydrate-concurrency"`
}

// DefaultMarketConfig returns a default market configuration.
func DefaultMarketConfig() *MarketConfig {
	return &MarketConfig{
		PollInterval:        30 * time.Second,
		ConfirmTimeout:      30 * time.Second,
		ConfirmPollInterval: time.Second,
		HydrateConcurrency:  4,
	}
}

// TestMarketConfig returns a market configuration for testing.
func TestMarketConfig() *MarketConfig {
	return &MarketConfig{
		PollInterval:        100 * time.Millisecond,
		ConfirmTimeout:      time.Second,
		ConfirmPollInterval: 10 * time.Millisecond,
		HydrateConcurrency:  2,
	}
}

// ValidateBasic performs basic validation.
func (cfg *MarketConfig) ValidateBasic() error {
	if cfg.PollInterval <= 0 {
		return errors.New("poll-interval must be positive")
	}
	if cfg.ConfirmTimeout <= 0 {
		return errors.New("confirm-timeout must be positive")
	}
	if cfg.ConfirmPollInterval <= 0 {
		return errors.New("confirm-poll-interval must be positive")
	}
	if cfg.ConfirmPollInterval > cfg.ConfirmTimeout {
		return errors.New("confirm-poll-interval can't be longer than confirm-timeout")
	}
	if cfg.HydrateConcurrency <= 0 {
		return errors.New("hydrate-concurrency must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// WalletConfig

// WalletConfig selects the wallet provider.
type WalletConfig struct {
	// Provider is "file" or "remote"
	Provider string `mapstructure:"provider"`

	// URL of the remote wallet JSON-RPC endpoint
	RemoteAddress string `mapstructure:"remote-address"`

	// Timeout of a remote wallet request. Signing waits for the user, so
	// this is much longer than the ledger timeout.
	RemoteTimeout time.Duration `mapstructure:"remote-timeout"`

	// Approve connection and signing requests of the file provider without
	// asking
	AutoApprove bool `mapstructure:"auto-approve"`
}

// DefaultWalletConfig returns a default wallet configuration.
func DefaultWalletConfig() *WalletConfig {
	return &WalletConfig{
		Provider:      WalletProviderFile,
		RemoteTimeout: 2 * time.Minute,
	}
}

// TestWalletConfig returns a wallet configuration for testing.
func TestWalletConfig() *WalletConfig {
	cfg := DefaultWalletConfig()
	cfg.AutoApprove = true
	return cfg
}

// ValidateBasic performs basic validation.
func (cfg *WalletConfig) ValidateBasic() error {
	switch cfg.Provider {
	case WalletProviderFile:
	case WalletProviderRemote:
		if cfg.RemoteAddress == "" {
			return errors.New("remote-address is required for the remote provider")
		}
	default:
		return fmt.Errorf("unknown provider %q (must be %q or %q)", cfg.Provider, WalletProviderFile, WalletProviderRemote)
	}
	if cfg.RemoteTimeout <= 0 {
		return errors.New("remote-timeout must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// FeedConfig

// FeedConfig configures the HTTP and websocket feed of market snapshots
// served by the watch command.
type FeedConfig struct {
	// TCP address to listen on; empty disables the feed
	ListenAddress string `mapstructure:"laddr"`

	// Maximum number of simultaneous connections, including websockets.
	// 0 means unlimited.
	MaxOpenConnections int `mapstructure:"max-open-connections"`

	// Origins a browser may call the feed from. "*" allows all.
	CORSAllowedOrigins []string `mapstructure:"cors-allowed-origins"`

	// Interval between websocket pings
	PingInterval time.Duration `mapstructure:"ping-interval"`
}

// DefaultFeedConfig returns a default feed configuration.
func DefaultFeedConfig() *FeedConfig {
	return &FeedConfig{
		ListenAddress:      "",
		MaxOpenConnections: 100,
		CORSAllowedOrigins: []string{},
		PingInterval:       30 * time.Second,
	}
}

// TestFeedConfig returns a feed configuration for testing.
func TestFeedConfig() *FeedConfig {
	cfg := DefaultFeedConfig()
	cfg.ListenAddress = "tcp://127.0.0.1:0"
	cfg.PingInterval = 100 * time.Millisecond
	return cfg
}

// IsCorsEnabled returns true if cross-origin requests are allowed.
func (cfg *FeedConfig) IsCorsEnabled() bool {
	return len(cfg.CORSAllowedOrigins) != 0
}

// ValidateBasic performs basic validation.
func (cfg *FeedConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max-open-connections can't be negative")
	}
	if cfg.PingInterval <= 0 {
		return errors.New("ping-interval must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	// Check out the documentation for the list of available metrics.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus-listen-addr"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		Namespace:            "energymarket",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus-listen-addr is required when prometheus is enabled")
	}
	if cfg.Namespace == "" {
		return errors.New("namespace is empty")
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
