package main

import (
	"github.com/spf13/cobra"

	"ammswap/internal/app"
	"ammswap/internal/trade"
)

func newBuyCmd(opts *rootOptions) *cobra.Command {
	var (
		token  string
		amount string
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Spend native currency on a token",
		Example: `  ammswap buy --token 0x69babE9811CC86dCfC3B8f9a14de6470Dd18EDA4 --amount 0.00001
  ammswap buy --token 0x69babE9811CC86dCfC3B8f9a14de6470Dd18EDA4 --amount 10000000000000 --raw`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := trade.BuyRequest{Token: token}
			if raw {
				req.NativeInWei = amount
			} else {
				req.NativeIn = amount
			}
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				rep, err := a.Trade.Buy(cmd.Context(), req)
				if rep != nil {
					_ = printJSON(cmd.OutOrStdout(), rep)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token address")
	cmd.Flags().StringVar(&amount, "amount", "", "native amount in whole units (wei with --raw)")
	cmd.Flags().BoolVar(&raw, "raw", false, "amount is in wei")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newSellCmd(opts *rootOptions) *cobra.Command {
	var (
		token    string
		amount   string
		raw      bool
		decimals uint8
	)
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Approve the router and sell a token for native currency",
		Example: `  ammswap sell --token 0x69babE9811CC86dCfC3B8f9a14de6470Dd18EDA4 --amount 100 --raw
  ammswap sell --token 0x69babE9811CC86dCfC3B8f9a14de6470Dd18EDA4 --amount 1.5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := trade.SellRequest{Token: token}
			if raw {
				req.AmountRaw = amount
			} else {
				req.Amount = amount
			}
			if cmd.Flags().Changed("decimals") {
				d := decimals
				req.TokenDecimals = &d
			}
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				rep, err := a.Trade.Sell(cmd.Context(), req)
				if rep != nil {
					_ = printJSON(cmd.OutOrStdout(), rep)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token address")
	cmd.Flags().StringVar(&amount, "amount", "", "token amount, scaled by the token's decimals unless --raw")
	cmd.Flags().BoolVar(&raw, "raw", false, "amount is in token base units")
	cmd.Flags().Uint8Var(&decimals, "decimals", 0, "override the on-chain decimals() lookup")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
