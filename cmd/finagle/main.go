package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"finagle/pkg/core/config"
	"finagle/pkg/core/pipeline"
	"finagle/pkg/core/report"
	"finagle/pkg/core/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose bool
	timeout time.Duration

	recordPath   string
	scenarioPath string
	htmlPath     string
	save         bool
	runID        string
	listTicker   string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "finagle",
	Short: "finagle - free cash flow forecasting and DCF valuation",
	Long: `finagle forecasts a company's free cash flows from its TTM financials,
applies capital allocation decisions (debt targeting, acquisitions, disposals,
buybacks, dividends) and values the equity with FCFE, FCFF and dividend
discount models.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(); err != nil {
			return err
		}
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Value a record under a scenario",
	Example: `  finagle run --record acme.hjson --scenario base.yaml
  finagle run --record acme.json --scenario lbo.yaml --html acme.html --save`,
	RunE: runValuation,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a stored valuation run or list a ticker's runs",
	RunE:  printStoredRun,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")

	runCmd.Flags().StringVar(&recordPath, "record", "", "Financial record (JSON or Hjson)")
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario (YAML)")
	runCmd.Flags().StringVar(&htmlPath, "html", "", "Also write the report as HTML to this file")
	runCmd.Flags().BoolVar(&save, "save", false, "Store the run in DATABASE_URL")
	runCmd.MarkFlagRequired("record")
	runCmd.MarkFlagRequired("scenario")

	reportCmd.Flags().StringVar(&runID, "id", "", "Run id to print")
	reportCmd.Flags().StringVar(&listTicker, "ticker", "", "List the stored runs of a ticker instead")
	reportCmd.MarkFlagsOneRequired("id", "ticker")
	reportCmd.MarkFlagsMutuallyExclusive("id", "ticker")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runValuation(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rec, err := config.LoadRecord(recordPath)
	if err != nil {
		return err
	}
	sc, err := config.LoadScenario(scenarioPath)
	if err != nil {
		return err
	}

	orch := pipeline.NewPipelineOrchestrator(logger)
	if save {
		if err := store.InitDB(ctx); err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx, store.GetPool()); err != nil {
			return err
		}
		orch.SetRepository(store.NewRunRepo(store.GetPool()))
	}

	res, err := orch.Run(ctx, rec, sc)
	if err != nil {
		return err
	}

	md := report.Markdown(res.Ledger, res.Summary)
	fmt.Println(md)
	if htmlPath != "" {
		html, err := report.HTML(md)
		if err != nil {
			return err
		}
		if err := os.WriteFile(htmlPath, []byte(html), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", htmlPath, err)
		}
		fmt.Printf("[REPORT] Wrote %s\n", htmlPath)
	}
	if save {
		fmt.Printf("[STORE] Saved run %s\n", res.RunID)
	}
	return nil
}

func printStoredRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := store.InitDB(ctx); err != nil {
		return err
	}
	defer store.Close()
	repo := store.NewRunRepo(nil)

	if listTicker != "" {
		ids, err := repo.ListByTicker(ctx, listTicker, 20)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}
	run, err := repo.Load(ctx, id)
	if err != nil {
		return err
	}
	logger.Debug("run loaded", zap.String("run_id", id.String()), zap.Int("years", len(run.Rows)))

	fmt.Printf("# %s (%s)\n\n", run.Ticker, run.Scenario)
	fmt.Printf("Stored %s, as of %s\n\n", run.CreatedAt.Format(time.RFC3339), run.AsOf.Format("2006-01-02"))
	fmt.Println("| model | value per share |\n|---|---:|")
	for _, item := range run.Summary.LineItems() {
		fmt.Printf("| %s | %s |\n", item.ModelName, report.Format(item.SharePrice))
	}
	fmt.Println()
	fmt.Print(report.RowsTable(run.Rows))
	return nil
}
