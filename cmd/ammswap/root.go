package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ammswap/internal/app"
	"ammswap/internal/config"
)

type rootOptions struct {
	configPath string
	debug      bool
	jsonLogs   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "ammswap",
		Short:         "Swap between the native currency and ERC20 tokens on a Uniswap V2 router",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (optional; env and .env are always read)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "debug logging")
	root.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "log as JSON")

	root.AddCommand(newBuyCmd(opts), newSellCmd(opts), newBalanceCmd(opts), newServeCmd(opts))
	return root
}

func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	if o.debug {
		level = slog.LevelDebug
	}
	return cfg, newLogger(os.Stderr, level, o.jsonLogs || cfg.Log.Format == "json"), nil
}

func newLogger(w io.Writer, level slog.Level, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// withApp connects, runs fn and closes the connection.
func (o *rootOptions) withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
