package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/energymarket/marketclient/config"
	"github.com/energymarket/marketclient/libs/cli"
	"github.com/energymarket/marketclient/libs/log"
)

// EnvPrefix prefixes environment variables overriding config values, e.g.
// EM_CONTRACT_CONTRACT_ID.
const EnvPrefix = "EM"

const (
	outputText = "text"
	outputJSON = "json"
)

// app is shared by all commands. Its fields are filled in by the root
// command before any subcommand runs.
type app struct {
	conf   *config.Config
	logger log.Logger
}

// ParseConfig retrieves the default environment configuration,
// sets up the root and validates it.
func ParseConfig(conf *config.Config) (*config.Config, error) {
	if err := viper.Unmarshal(conf); err != nil {
		return nil, err
	}

	conf.SetRoot(conf.RootDir)

	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// RootCommand constructs the root command-line entry point.
func RootCommand(conf *config.Config) *cobra.Command {
	a := &app{conf: conf, logger: log.NewNopLogger()}

	cmd := &cobra.Command{
		Use:   "marketd",
		Short: "Buy and sell energy on the marketplace contract",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipConfig(cmd) {
				return nil
			}

			// The config file has to exist before viper reads it so that
			// environment overrides apply to every key.
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if err := config.EnsureRoot(viper.GetString(cli.HomeFlag)); err != nil {
				return err
			}
			if err := cli.BindFlagsLoadViper(cmd, args); err != nil {
				return err
			}

			if _, err := ParseConfig(conf); err != nil {
				return err
			}

			logger, err := log.NewLogger(cmd.ErrOrStderr(), conf.LogFormat, conf.LogLevel)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}
	cmd.PersistentFlags().StringP(cli.HomeFlag, "", os.ExpandEnv(filepath.Join("$HOME", config.DefaultHomeDir)), "directory for config and data")
	cmd.PersistentFlags().Bool(cli.TraceFlag, false, "print out full stack trace on errors")
	cmd.PersistentFlags().String("log-level", conf.LogLevel, "log level (debug, info or error)")
	cmd.PersistentFlags().String("log-format", conf.LogFormat, "log format (plain or json)")
	cmd.PersistentFlags().StringP(cli.OutputFlag, "o", outputText, "output format (text or json)")
	cobra.OnInitialize(func() { cli.InitEnv(EnvPrefix) })

	cmd.AddCommand(
		newInitCmd(a),
		newGenWalletCmd(a),
		newShowWalletCmd(a),
		newStatusCmd(a),
		newOffersCmd(a),
		newOfferCmd(a),
		newProfileCmd(a),
		newTradeCmd(a),
		newCreateOfferCmd(a),
		newBuyCmd(a),
		newCancelOfferCmd(a),
		newSetReputationCmd(a),
		newWatchCmd(a),
		VersionCmd,
	)
	return cmd
}

// skipConfig reports whether cmd runs without a home directory: version
// and the shell completion commands cobra adds.
func skipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}

// render writes v as indented JSON when --output=json, and calls text
// otherwise.
func render(cmd *cobra.Command, v interface{}, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	switch output := viper.GetString(cli.OutputFlag); output {
	case outputJSON:
		bz, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(bz))
		return err
	case outputText, "":
		text(w)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", output, outputText, outputJSON)
	}
}
