package main

import (
	"github.com/spf13/cobra"

	"ammswap/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and metrics endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.jsonLogs = true
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				return a.Serve(cmd.Context())
			})
		},
	}
}
