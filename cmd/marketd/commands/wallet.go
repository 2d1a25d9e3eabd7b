package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/energymarket/marketclient/config"
	tmos "github.com/energymarket/marketclient/libs/os"
	"github.com/energymarket/marketclient/wallet"
)

type walletInfo struct {
	Address string `json:"address"`
	File    string `json:"file,omitempty"`
}

func newGenWalletCmd(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "gen-wallet",
		Short: "Generate a new wallet key",
		Long: `Generate a new ed25519 wallet key and print its address.
With --save the key is written to the configured key file, which must not
exist yet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := wallet.GenKeyFile(a.conf.WalletKeyFile())
			info := walletInfo{Address: key.Address}
			if save {
				if tmos.FileExists(key.FilePath()) {
					return fmt.Errorf("key file %s already exists", key.FilePath())
				}
				if err := key.Save(); err != nil {
					return err
				}
				info.File = key.FilePath()
			}
			return render(cmd, info, func(w io.Writer) {
				fmt.Fprintln(w, info.Address)
			})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "write the key to the wallet key file")
	return cmd
}

func newShowWalletCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show-wallet",
		Short: "Show the address of the configured wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var info walletInfo
			switch a.conf.Wallet.Provider {
			case config.WalletProviderFile:
				key, err := wallet.LoadKeyFile(a.conf.WalletKeyFile())
				if err != nil {
					return err
				}
				info = walletInfo{Address: key.Address, File: key.FilePath()}
			default:
				provider, err := newProvider(cmd, a.conf)
				if err != nil {
					return err
				}
				session := wallet.NewSession(provider, a.logger)
				if err := connect(cmd.Context(), session); err != nil {
					return err
				}
				info.Address = session.Identity().PublicKey
			}
			return render(cmd, info, func(w io.Writer) {
				fmt.Fprintln(w, info.Address)
			})
		},
	}
}
