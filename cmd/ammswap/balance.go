package main

import (
	"github.com/spf13/cobra"

	"ammswap/internal/app"
)

func newBalanceCmd(opts *rootOptions) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the account's native or token balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				bal, err := a.Trade.Balance(cmd.Context(), token)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), bal)
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token address (native balance when empty)")
	return cmd
}
