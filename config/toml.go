package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	tmos "github.com/energymarket/marketclient/libs/os"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
	})
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't
// exist, and writes the default config file if there is none.
func EnsureRoot(rootDir string) error {
	for _, dir := range []string{
		rootDir,
		filepath.Join(rootDir, defaultConfigDir),
		filepath.Join(rootDir, defaultDataDir),
	} {
		if err := tmos.EnsureDir(dir, defaultDirPerm); err != nil {
			return err
		}
	}
	return writeDefaultConfigFileIfNone(rootDir)
}

// ConfigFile returns the path of the config file under rootDir.
func ConfigFile(rootDir string) string {
	return filepath.Join(rootDir, defaultConfigFilePath)
}

// WriteConfigFile renders config using the template and writes it to
// the config file under rootDir.
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(ConfigFile(rootDir))
}

// WriteToTemplate writes the config to the exact file specified by
// the path, in the default toml template and does not mangle the path
// or filename at all.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return err
	}

	return tmos.WriteFileAtomic(path, buffer.Bytes(), 0644)
}

func writeDefaultConfigFileIfNone(rootDir string) error {
	if !tmos.FileExists(ConfigFile(rootDir)) {
		return WriteConfigFile(rootDir, DefaultConfig())
	}
	return nil
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/energymarket/key.json") or
# relative to the home directory (e.g. "config/wallet_key.json"). The home
# directory is "$HOME/.energymarket" by default, but could be changed via
# $EMHOME env variable or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# Output level for logging: debug | info | error
log-level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log-format = "{{ .BaseConfig.LogFormat }}"

# Path to the JSON file holding the wallet key used by the file provider
wallet-key-file = "{{ js .BaseConfig.WalletKey }}"

#######################################################################
###                 Advanced Configuration Options                  ###
#######################################################################

#######################################################
###           Ledger RPC Configuration Options      ###
#######################################################
[ledger]

# URL of the ledger JSON-RPC endpoint
rpc-address = "{{ .Ledger.RPCAddress }}"

# Timeout of a single RPC request
timeout = "{{ .Ledger.Timeout }}"

# Maximum number of RPC requests per second; 0 disables the limit
rate-limit = {{ .Ledger.RateLimit }}

# Number of requests allowed to exceed the rate at once
rate-burst = {{ .Ledger.RateBurst }}

#######################################################
###             Contract Configuration Options      ###
#######################################################
[contract]

# Address of the marketplace contract (C...)
contract-id = "{{ .Contract.ContractID }}"

# Passphrase of the network the contract is deployed on
network-passphrase = "{{ .Contract.NetworkPassphrase }}"

# Inclusion fee offered per transaction, before resource fees
base-fee = {{ .Contract.BaseFee }}

# How long a built transaction stays valid
tx-timeout = "{{ .Contract.TxTimeout }}"

#######################################################
###               Market Configuration Options      ###
#######################################################
[market]

# How often the market view refreshes
poll-interval = "{{ .Market.PollInterval }}"

# How long to wait for a submitted transaction to be included
confirm-timeout = "{{ .Market.ConfirmTimeout }}"

# How often to check for inclusion while waiting
confirm-poll-interval = "{{ .Market.ConfirmPollInterval }}"

# Number of offers fetched in parallel during a refresh
hydrate-concurrency = {{ .Market.HydrateConcurrency }}

#######################################################
###               Wallet Configuration Options      ###
#######################################################
[wallet]

# Wallet provider: file | remote
# * file: signs with the key in wallet-key-file
# * remote: signs through a JSON-RPC wallet at remote-address
provider = "{{ .Wallet.Provider }}"

# URL of the remote wallet JSON-RPC endpoint
remote-address = "{{ .Wallet.RemoteAddress }}"

# Timeout of a remote wallet request, including the time the user takes
# to approve it
remote-timeout = "{{ .Wallet.RemoteTimeout }}"

# Approve connection and signing requests of the file provider without
# asking. Only use this on a throwaway testnet key.
auto-approve = {{ .Wallet.AutoApprove }}

#######################################################
###                 Feed Configuration Options      ###
#######################################################
[feed]

# TCP address the watch command serves snapshots on; empty disables the feed
laddr = "{{ .Feed.ListenAddress }}"

# Maximum number of simultaneous connections, including websockets.
# 0 means unlimited.
max-open-connections = {{ .Feed.MaxOpenConnections }}

# A list of origins a cross-domain request can be executed from
# Default value '[]' disables cors support
# Use '["*"]' to allow any origin
cors-allowed-origins = [{{ range .Feed.CORSAllowedOrigins }}{{ printf "%q, " . }}{{end}}]

# Interval between websocket pings
ping-interval = "{{ .Feed.PingInterval }}"

#######################################################
###       Instrumentation Configuration Options     ###
#######################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
# Check out the documentation for the list of available metrics.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus-listen-addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`

/****** these are for test settings ***********/

// ResetTestRoot creates a fresh home directory under dir holding the test
// configuration.
func ResetTestRoot(dir, testName string) (*Config, error) {
	// create a unique, concurrency-safe test directory under dir
	rootDir, err := os.MkdirTemp(dir, fmt.Sprintf("%s_", testName))
	if err != nil {
		return nil, err
	}
	if err := EnsureRoot(rootDir); err != nil {
		return nil, err
	}

	config := TestConfig().SetRoot(rootDir)
	if err := WriteConfigFile(rootDir, config); err != nil {
		return nil, err
	}
	return config, nil
}
