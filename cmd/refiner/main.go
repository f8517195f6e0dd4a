// Command refiner serves and operates the adaptive quality refinement
// pipeline: an HTTP API plus batch, inspection and replay commands.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/config"
)

var (
	v       = config.New()
	cfg     config.Config
	logger  *slog.Logger
	envFile string

	rootCmd = &cobra.Command{
		Use:           "refiner",
		Short:         "Refine quality ratings of text records with a per-batch learning agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			c, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			l, err := config.NewLogger(c, os.Stderr)
			if err != nil {
				return err
			}
			cfg, logger = c, l
			slog.SetDefault(logger)
			return nil
		},
	}
)

// #region main
func init() {
	fs := rootCmd.PersistentFlags()
	config.RegisterFlags(fs)
	if err := config.BindFlags(v, fs); err != nil {
		panic(err)
	}
	fs.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd, runCmd, inspectCmd, replayCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errReplayMismatch) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

// #endregion main
