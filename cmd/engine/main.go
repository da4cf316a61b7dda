// Command engine performs one full-roster allocation run against the
// configured store and exits. A non-zero exit code means the ledger was left
// untouched.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-allocation/internal/allocation"
	"exam-allocation/internal/config"
	"exam-allocation/internal/db"
	applog "exam-allocation/internal/logger"
	"exam-allocation/internal/models"
	"exam-allocation/internal/progress"
	"exam-allocation/internal/store"
	"exam-allocation/internal/strategy"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// usageError marks bad arguments; main exits 2 for them.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(config.Load).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "engine:", err)
		stop()
		var usage usageError
		if errors.As(err, &usage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCommand(loadConfig func() *config.Config) *cobra.Command {
	var (
		strategyID int64
		examDate   string
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:           "engine",
		Short:         "Run one full-roster allocation and exit",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := allocation.RunOptions{StrategyID: strategyID}
			if examDate != "" {
				d, err := time.Parse(time.DateOnly, examDate)
				if err != nil {
					return usageError{fmt.Errorf("invalid --date %q: %w", examDate, err)}
				}
				opts.ExamDate = d
			}

			cfg := loadConfig()
			logger, err := applog.New(cfg.Log.Level, cfg.Log.Format, "exam-allocation-engine")
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := run(ctx, cfg, opts, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: strategy %q, %d groups, %d placed, %d unplaced, %d rooms used, %d cleared\n",
				res.RunID, res.Strategy, res.GroupCount, len(res.Assignments), len(res.UnplacedExaminees), res.RoomsUsed, res.Cleared)
			return nil
		},
	}
	cmd.Flags().Int64Var(&strategyID, "strategy", 0, "strategy id to run (0 uses the active strategy)")
	cmd.Flags().StringVar(&examDate, "date", "", "exam date for every group, YYYY-MM-DD (default alternates today and tomorrow)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall run timeout")
	return cmd
}

// run executes one allocation. A batch run never falls back to the memory
// store: with the database enabled it must be reachable.
func run(ctx context.Context, cfg *config.Config, opts allocation.RunOptions, logger *zap.Logger) (*models.RunResult, error) {
	var backend store.Backend
	if cfg.DBEnabled {
		conn, err := db.Connect(ctx, &cfg.Database)
		if err != nil {
			logger.Error("database unavailable", zap.Error(err))
			return nil, err
		}
		defer conn.Close()
		if err := db.EnsureSchema(ctx, conn); err != nil {
			logger.Error("schema check failed", zap.Error(err))
			return nil, err
		}
		backend = store.NewPostgresStore(conn)
	} else {
		mem := store.NewMemoryStore()
		mem.SeedDemo()
		logger.Warn("DB disabled, running against the demo memory store")
		backend = mem
	}

	registry := strategy.NewRegistry(backend, logger)
	engine := allocation.NewEngine(backend, registry,
		allocation.WithLogger(logger),
		allocation.WithProgress(progress.NewLogReporter(logger)),
		allocation.WithRosterLimit(cfg.Allocation.RosterLimit),
		allocation.WithCourseLabels(cfg.Allocation.CourseLabels...),
	)
	return engine.RunFullAllocation(ctx, opts)
}
