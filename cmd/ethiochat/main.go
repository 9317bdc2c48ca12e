package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/comigor/ethiochat/internal/config"
	"github.com/comigor/ethiochat/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:          "ethiochat",
		Short:        "EthioTravel assistant chat session controller",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				logger.L.Debug("no .env file loaded", "error", err)
			}
			loaded, err := config.Load()
			if err != nil {
				logger.L.Error("failed to load configuration", "error", err)
				return err
			}
			logger.SetLevel(loaded.Log.Level)
			cfg = loaded
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the chat widget over HTTP and websocket",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "repl",
			Short: "Chat with the assistant from the terminal",
			RunE: func(cmd *cobra.Command, args []string) error {
				logger.SetOutput(os.Stderr)
				return repl(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
			},
		},
	)
	return root
}
