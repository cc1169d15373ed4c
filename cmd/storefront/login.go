package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the marketplace with the configured wallet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ws, err := a.connectWallet(cmd.Context())
		if err != nil {
			return err
		}
		chainID, err := ws.signer.ChainID(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s wallet, chain %d)\n", ws.signer.Address().Hex(), ws.signer.Kind(), chainID)
		return nil
	},
}
