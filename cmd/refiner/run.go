package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run <batch.json>",
	Short: "Process one JSON batch from disk through the full pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read batch: %w", err)
		}
		var items []record.Input
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("parse batch %s: %w", args[0], err)
		}

		a, err := build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		sum, err := a.pipeline.Process(cmd.Context(), items)
		if err != nil {
			return err
		}

		if runJSON {
			return printJSON(sum.Records)
		}
		fmt.Printf("run %s  seed=%d  outcome=%s  degraded=%d\n",
			sum.RunID, sum.Seed, sum.Outcome.Kind, sum.Degraded)
		fmt.Printf("location: %s\n\n", sum.Outcome.Location)
		printRecords(sum.Records)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print refined records as JSON")
}
