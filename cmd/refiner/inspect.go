package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/ledger"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

var (
	inspectRun  string
	inspectList int
	inspectJSON bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the latest run (or --run ID) with its log and table, or list runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		ctx := cmd.Context()

		if inspectList > 0 {
			runs, err := store.ListRuns(ctx, inspectList)
			if err != nil {
				return err
			}
			if inspectJSON {
				return printJSON(runs)
			}
			printRunList(runs)
			return nil
		}

		var run ledger.Run
		if inspectRun != "" {
			run, err = store.GetRun(ctx, inspectRun)
		} else {
			run, err = store.Latest(ctx)
		}
		if err != nil {
			return err
		}
		if inspectJSON {
			return printJSON(run)
		}
		printRunDetail(run)
		return nil
	},
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectRun, "run", "", "show this run instead of the latest")
	f.IntVar(&inspectList, "list", 0, "list the N most recent runs instead")
	f.BoolVar(&inspectJSON, "json", false, "output as JSON instead of tables")
}

// #region printing
func printRunList(runs []ledger.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return
	}
	fmt.Printf("%-36s  %-20s  %-8s  %7s  %s\n", "Run", "Created", "Outcome", "Records", "Location")
	fmt.Printf("%-36s+-%-20s+-%-8s+-%7s+-%s\n",
		"------------------------------------", "--------------------", "--------", "-------", "--------------------")
	for _, r := range runs {
		fmt.Printf("%-36s  %-20s  %-8s  %7d  %s\n",
			r.ID, r.CreatedAt.Format("2006-01-02T15:04:05Z"), r.Outcome, r.Records, r.Location)
	}
}

func printRunDetail(run ledger.Run) {
	fmt.Printf("Run:      %s\n", run.ID)
	fmt.Printf("Created:  %s\n", run.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Seed:     %d\n", run.Seed)
	fmt.Printf("Agent:    alpha=%.3f gamma=%.3f epsilon=%.3f\n", run.Agent.Alpha, run.Agent.Gamma, run.Agent.Epsilon)
	fmt.Printf("Outcome:  %s (%s) %s\n", run.Outcome, run.Backend, run.Location)
	if len(run.Initial) > 0 {
		fmt.Printf("Initial:  %d table entries carried over\n", len(run.Initial))
	}
	fmt.Println()

	printRecords(run.Records)
	fmt.Println()

	fmt.Printf("%-10s  %-9s  %8s  %s\n", "Asset", "Action", "Reward", "Masked Text")
	fmt.Printf("%-10s+-%-9s+-%8s+-%s\n", "----------", "---------", "--------", "--------------------")
	for _, e := range run.Log {
		fmt.Printf("%-10s  %-9s  %8.4f  %s\n", e.AssetID, e.Action, e.Reward, truncate(e.MaskedText, 60))
	}
	fmt.Println()

	printTable(run.Table)
}

func printRecords(recs []record.Record) {
	fmt.Printf("%-10s  %6s  %7s  %-9s  %6s  %s\n", "Asset", "Rating", "Refined", "Sentiment", "Conf", "Text")
	fmt.Printf("%-10s+-%6s+-%7s+-%-9s+-%6s+-%s\n",
		"----------", "------", "-------", "---------", "------", "--------------------")
	for _, r := range recs {
		fmt.Printf("%-10s  %6.2f  %7.2f  %-9s  %6.3f  %s\n",
			r.AssetID, r.Rating, r.RefinedQuality, r.SentimentLabel, r.Confidence, truncate(r.Text, 60))
	}
}

func printTable(table map[string]float64) {
	if len(table) == 0 {
		fmt.Println("(empty table)")
		return
	}
	fmt.Printf("%-24s  %10s\n", "State|Action", "Value")
	fmt.Printf("%-24s+-%10s\n", "------------------------", "----------")
	for _, k := range slices.Sorted(maps.Keys(table)) {
		fmt.Printf("%-24s  %10.6f\n", k, table[k])
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// #endregion printing
