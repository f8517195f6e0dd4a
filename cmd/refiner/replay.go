package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/pipeline"
)

var errReplayMismatch = errors.New("replay does not match stored run")

var replayCmd = &cobra.Command{
	Use:   "replay <run-id>",
	Short: "Re-run a stored batch with its seed and check the output matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		res := pipeline.Replay(run)
		fmt.Printf("Replay %s: %d records, seed %d\n", res.RunID, len(res.Records), run.Seed)
		if res.Matched {
			fmt.Println("PASS: refined records, log and table match")
			return nil
		}
		fmt.Printf("FAIL: %d mismatches\n", len(res.Mismatches))
		for _, m := range res.Mismatches {
			fmt.Printf("  %s\n", m)
		}
		return errReplayMismatch
	},
}
