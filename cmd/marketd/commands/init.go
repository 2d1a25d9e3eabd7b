package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/energymarket/marketclient/config"
	"github.com/energymarket/marketclient/wallet"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the home directory and a file wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.EnsureRoot(a.conf.RootDir); err != nil {
				return err
			}
			a.logger.Info("using config", "file", config.ConfigFile(a.conf.RootDir))

			if a.conf.Wallet.Provider != config.WalletProviderFile {
				a.logger.Info("skipping key file", "provider", a.conf.Wallet.Provider)
				return nil
			}

			key, err := wallet.LoadOrGenKeyFile(a.conf.WalletKeyFile())
			if err != nil {
				return err
			}
			a.logger.Info("using wallet key", "file", key.FilePath())
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key.Address)
			return err
		},
	}
}
