package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/energymarket/marketclient/config"
	"github.com/energymarket/marketclient/libs/cli"
	tmos "github.com/energymarket/marketclient/libs/os"
	"github.com/energymarket/marketclient/market"
	"github.com/energymarket/marketclient/types"
	"github.com/energymarket/marketclient/version"
	"github.com/energymarket/marketclient/wallet"
)

// writeConfigVals writes a toml file with the given values.
// It returns an error if writing was impossible.
func writeConfigVals(dir string, vals map[string]string) error {
	data := ""
	for k, v := range vals {
		data += fmt.Sprintf("%s = \"%s\"\n", k, v)
	}
	cfile := filepath.Join(dir, "config.toml")
	return os.WriteFile(cfile, []byte(data), 0600)
}

// clearConfig clears env vars, the given root dir, and resets viper.
func clearConfig(t *testing.T, dir string) *cfg.Config {
	t.Helper()
	for _, k := range []string{"EMHOME", "EM_HOME", "EM_LOG_LEVEL", "EM_CONTRACT_CONTRACT_ID"} {
		require.NoError(t, os.Unsetenv(k))
	}
	require.NoError(t, os.RemoveAll(dir))

	viper.Reset()
	conf := cfg.DefaultConfig()
	conf.SetRoot(dir)

	return conf
}

// run executes the root command with args and env, and returns what it
// wrote to stdout.
func run(ctx context.Context, t *testing.T, conf *cfg.Config, args []string, env map[string]string) (string, error) {
	t.Helper()

	cmd := RootCommand(conf)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))

	// run with the args and env
	args = append([]string{cmd.Use}, args...)
	err := cli.RunWithArgs(ctx, cmd, args, env)
	return out.String(), err
}

// testSetup is run with --home pointing at conf.RootDir.
func testSetup(ctx context.Context, t *testing.T, conf *cfg.Config, args []string, env map[string]string) (string, error) {
	t.Helper()
	return run(ctx, t, conf, append(args, "--home", conf.RootDir), env)
}

func TestRootHome(t *testing.T) {
	envRoot := t.TempDir()
	newRoot := filepath.Join(envRoot, "something-else")
	cases := []struct {
		args []string
		env  map[string]string
		root string
	}{
		{[]string{"init", "--home", newRoot}, nil, newRoot},
		{[]string{"init"}, map[string]string{"EMHOME": envRoot}, envRoot},
		{[]string{"init"}, map[string]string{"EM_HOME": envRoot}, envRoot},
		{[]string{"init", "--home", newRoot}, map[string]string{"EM_HOME": envRoot}, newRoot},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			conf := clearConfig(t, tc.root)
			t.Cleanup(func() { clearConfig(t, tc.root) })

			_, err := run(ctx, t, conf, tc.args, tc.env)
			require.NoError(t, err)

			require.Equal(t, tc.root, conf.RootDir)
			assert.True(t, tmos.FileExists(cfg.ConfigFile(tc.root)))
			assert.True(t, tmos.FileExists(conf.WalletKeyFile()))
		})
	}
}

func TestRootFlagsEnv(t *testing.T) {
	defaults := cfg.DefaultConfig()
	defaultDir := t.TempDir()

	cases := []struct {
		args     []string
		env      map[string]string
		logLevel string
	}{
		{[]string{"init"}, nil, defaults.LogLevel},
		{[]string{"init", "--log-level", "debug"}, nil, "debug"},
		{[]string{"init"}, map[string]string{"EM_LOG_LEVEL": "error"}, "error"},
		{[]string{"init", "--log-level", "debug"}, map[string]string{"EM_LOG_LEVEL": "error"}, "debug"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			conf := clearConfig(t, defaultDir)
			t.Cleanup(func() { clearConfig(t, defaultDir) })

			_, err := testSetup(ctx, t, conf, tc.args, tc.env)
			require.NoError(t, err)

			assert.Equal(t, tc.logLevel, conf.LogLevel)
		})
	}
}

func TestRootConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// write non-default config
	nonDefaultLogLvl := "debug"
	cvals := map[string]string{
		"log-level": nonDefaultLogLvl,
	}

	cases := []struct {
		args   []string
		env    map[string]string
		logLvl string
	}{
		{[]string{"init"}, nil, nonDefaultLogLvl},
		{[]string{"init", "--log-level=info"}, nil, "info"},
		{[]string{"init"}, map[string]string{"EM_LOG_LEVEL": "error"}, "error"},
	}

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			defaultRoot := t.TempDir()
			conf := clearConfig(t, defaultRoot)
			t.Cleanup(func() { clearConfig(t, defaultRoot) })

			configFilePath := filepath.Join(defaultRoot, "config")
			require.NoError(t, tmos.EnsureDir(configFilePath, 0700))
			require.NoError(t, writeConfigVals(configFilePath, cvals))

			_, err := testSetup(ctx, t, conf, tc.args, tc.env)
			require.NoError(t, err)

			require.Equal(t, tc.logLvl, conf.LogLevel)
		})
	}
}

func TestRootEnvOverridesSectionKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	conf := clearConfig(t, root)
	t.Cleanup(func() { clearConfig(t, root) })

	contractID := cfg.TestConfig().Contract.ContractID
	_, err := testSetup(ctx, t, conf, []string{"init"}, map[string]string{"EM_CONTRACT_CONTRACT_ID": contractID})
	require.NoError(t, err)
	assert.Equal(t, contractID, conf.Contract.ContractID)
}

func TestRootLoadsDotEnv(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	conf := clearConfig(t, root)
	t.Cleanup(func() { clearConfig(t, root) })

	require.NoError(t, tmos.EnsureDir(root, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(root, cli.DotEnvFile), []byte("EM_LOG_LEVEL=error\n"), 0600))

	_, err := testSetup(ctx, t, conf, []string{"init"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "error", conf.LogLevel)
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	conf := clearConfig(t, root)
	t.Cleanup(func() { clearConfig(t, root) })

	_, err := testSetup(ctx, t, conf, []string{"init", "--log-level", "loud"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

func TestInitPrintsWalletAddress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	conf := clearConfig(t, root)
	t.Cleanup(func() { clearConfig(t, root) })

	out, err := testSetup(ctx, t, conf, []string{"init"}, nil)
	require.NoError(t, err)

	key, err := wallet.LoadKeyFile(conf.WalletKeyFile())
	require.NoError(t, err)
	assert.Equal(t, key.Address+"\n", out)

	// A second init keeps the key.
	conf = clearConfig(t, root)
	require.NoError(t, os.MkdirAll(filepath.Dir(key.FilePath()), 0700))
	require.NoError(t, key.Save())
	out, err = testSetup(ctx, t, conf, []string{"init"}, nil)
	require.NoError(t, err)
	assert.Equal(t, key.Address+"\n", out)
}

func TestGenWallet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	conf := clearConfig(t, root)
	t.Cleanup(func() { clearConfig(t, root) })

	out, err := testSetup(ctx, t, conf, []string{"gen-wallet", "--save", "--output", "json"}, nil)
	require.NoError(t, err)

	var info walletInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, conf.WalletKeyFile(), info.File)

	key, err := wallet.LoadKeyFile(conf.WalletKeyFile())
	require.NoError(t, err)
	assert.Equal(t, key.Address, info.Address)

	conf = clearConfig(t, root)
	require.NoError(t, os.MkdirAll(filepath.Dir(key.FilePath()), 0700))
	require.NoError(t, key.Save())

	_, err = testSetup(ctx, t, conf, []string{"gen-wallet", "--save"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err = testSetup(ctx, t, conf, []string{"show-wallet"}, nil)
	require.NoError(t, err)
	assert.Equal(t, key.Address+"\n", out)
}

func TestCommandsValidateInputBeforeConnecting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cases := []struct {
		args []string
		want error
	}{
		{[]string{"offers", "--sort", "colour"}, market.ErrUnknownSortKey},
		{[]string{"watch", "--sort", "colour"}, market.ErrUnknownSortKey},
		{[]string{"offer", "abc"}, types.ErrInvalidQuantity},
		{[]string{"trade", "x"}, types.ErrInvalidQuantity},
		{[]string{"cancel-offer", "0"}, types.ErrInvalidQuantity},
		{[]string{"create-offer", "--amount", "1.5", "--price", "2", "--source", "solar"}, types.ErrInvalidQuantity},
		{[]string{"create-offer", "--amount", "1", "--price", "2", "--source", "coal"}, types.ErrUnknownEnergySource},
		{[]string{"buy", "7", "--amount", "0"}, types.ErrInvalidQuantity},
		{[]string{"set-reputation", "GABC", "101"}, errScoreRange},
	}

	for _, tc := range cases {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			root := t.TempDir()
			conf := clearConfig(t, root)
			t.Cleanup(func() { clearConfig(t, root) })

			_, err := testSetup(ctx, t, conf, tc.args, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestReadsRequireContractID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	conf := clearConfig(t, root)
	t.Cleanup(func() { clearConfig(t, root) })

	_, err := testSetup(ctx, t, conf, []string{"status"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EM_CONTRACT_CONTRACT_ID")
}

func TestUnknownOutputFormat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	conf := clearConfig(t, root)
	t.Cleanup(func() { clearConfig(t, root) })

	_, err := testSetup(ctx, t, conf, []string{"gen-wallet", "--output", "yaml"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml")
}

func TestVersion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf := clearConfig(t, t.TempDir())

	out, err := testSetup(ctx, t, conf, []string{"version"}, nil)
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", out)
}

func TestCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf := clearConfig(t, t.TempDir())

	out, err := run(ctx, t, conf, []string{"completion", "bash"}, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "marketd")
	assert.NoDirExists(t, conf.RootDir)
}
