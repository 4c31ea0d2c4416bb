package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/vsinha/drawdown/pkg/infrastructure/persistence/sqlite"
)

// HistoryConfig holds configuration for the history command
type HistoryConfig struct {
	DBPath string
	Limit  int
	RunID  string
}

// HistoryCommand lists persisted integration runs
type HistoryCommand struct {
	config HistoryConfig
	logger *zap.Logger
	out    io.Writer
}

// NewHistoryCommand creates a new history command
func NewHistoryCommand(config HistoryConfig, logger *zap.Logger, out io.Writer) *HistoryCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = os.Stdout
	}
	return &HistoryCommand{config: config, logger: logger, out: out}
}

// Execute prints the run list, or the records of one run when RunID is set
func (c *HistoryCommand) Execute() error {
	if c.config.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if _, err := os.Stat(c.config.DBPath); err != nil {
		return fmt.Errorf("cannot open run history: %w", err)
	}

	store, err := sqlite.Open(c.config.DBPath, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if c.config.RunID != "" {
		return c.showRun(store)
	}

	runs, err := store.ListRuns(c.config.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "No runs recorded")
		return nil
	}

	fmt.Fprintf(c.out, "%-36s %-16s %-24s %-10s %8s %8s\n",
		"Run", "Scenario", "State", "Finished", "Passes", "Clipped")
	for _, run := range runs {
		clipped := "?"
		if ids, err := run.Clipped(); err != nil {
			c.logger.Warn("unreadable run history", zap.String("run_id", run.RunID), zap.Error(err))
		} else {
			clipped = strconv.Itoa(len(ids))
		}
		fmt.Fprintf(c.out, "%-36s %-16s %-24s %-10s %8d %8s\n",
			run.RunID,
			run.Scenario,
			run.State,
			run.FinishedAt.Format("2006-01-02"),
			run.Iterations,
			clipped)
	}
	return nil
}

func (c *HistoryCommand) showRun(store *sqlite.Store) error {
	run, err := store.GetRun(c.config.RunID)
	if err != nil {
		return err
	}
	rows, err := store.Records(c.config.RunID)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Run: %s (%s)\n", run.RunID, run.Scenario)
	fmt.Fprintf(c.out, "State: %s after %d passes, %d warnings\n\n", run.State, run.Iterations, run.Warnings)
	fmt.Fprintf(c.out, "%-24s %-28s %-6s %14s %14s\n", "Solution", "Pool", "Year", "Requested", "Granted")
	for _, row := range rows {
		rec := row.ClaimRecord()
		fmt.Fprintf(c.out, "%-24s %-28s %-6d %14.4f %14.4f\n",
			rec.SolutionID, rec.Pool, rec.Year, rec.Requested, rec.Granted)
	}
	return nil
}
