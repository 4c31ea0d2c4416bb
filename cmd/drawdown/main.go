package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vsinha/drawdown/pkg/interfaces/cli/commands"
)

var (
	// Global flags
	verbose bool

	integrateConfig commands.Config
	historyConfig   commands.HistoryConfig

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "drawdown",
	Short: "Resource contention integration for solution adoption scenarios",
	Long: `drawdown reconciles solution adoption with the shared resource pools
(land, feedstock, waste streams) the solutions draw on.

Each pass derives every solution's claims, resolves oversubscribed pools by
priority, commits the clipped adoption and recomputes the pools, until the
grants stop changing or the iteration bound is reached.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
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

// integrateCmd runs the fixed-point integration over a CSV scenario
var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Integrate a scenario and report clipped adoption",
	Long: `Loads adoption.csv, pools.csv and claims.csv from the scenario directory
together with its drawdown.yaml, runs the integration and prints the report.

Example:
  drawdown integrate --scenario ./scenarios/waste --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		integrateConfig.Verbose = verbose
		_, err := commands.NewIntegrateCommand(integrateConfig, logger, cmd.OutOrStdout()).Execute(cmd.Context())
		return err
	},
}

// historyCmd lists persisted runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List integration runs recorded in the history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return commands.NewHistoryCommand(historyConfig, logger, cmd.OutOrStdout()).Execute()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	flags := integrateCmd.Flags()
	flags.StringVar(&integrateConfig.ScenarioDir, "scenario", "", "Path to scenario directory containing CSV files")
	flags.StringVar(&integrateConfig.ConfigFile, "config", "", "Path to configuration file (default <scenario>/drawdown.yaml)")
	flags.StringVar(&integrateConfig.OutputDir, "output", "", "Output directory for results (optional)")
	flags.StringVar(&integrateConfig.Format, "format", "text", "Output format: text, json, csv")
	flags.StringVar(&integrateConfig.DBPath, "db", "", "Run history database (overrides configuration)")
	flags.StringVar(&integrateConfig.RunID, "run-id", "", "Run identifier (default random)")
	flags.IntVar(&integrateConfig.MaxIterations, "max-iterations", 0, "Iteration bound (overrides configuration)")
	flags.IntVar(&integrateConfig.Workers, "workers", 0, "Pools resolved in parallel (overrides configuration)")
	flags.IntVar(&integrateConfig.Places, "places", 3, "Decimal places in text and CSV output")
	flags.BoolVar(&integrateConfig.NoHistory, "no-history", false, "Do not record the run")

	historyCmd.Flags().StringVar(&historyConfig.DBPath, "db", "data/drawdown.db", "Run history database")
	historyCmd.Flags().IntVar(&historyConfig.Limit, "limit", 20, "Number of runs to list (0 for all)")
	historyCmd.Flags().StringVar(&historyConfig.RunID, "run", "", "Show the final records of one run")

	rootCmd.AddCommand(integrateCmd, historyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
