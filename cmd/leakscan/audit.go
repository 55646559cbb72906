package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/raaihank/incident-sentinel/internal/audit"
	"github.com/raaihank/incident-sentinel/internal/privacy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newAuditCmd(logLevel *string) *cobra.Command {
	var (
		inputPath  string
		workers    int
		batchSize  int
		failOnLeak bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Scan every record of a CSV, JSON lines or Parquet dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("input path is required")
			}

			log, err := newLogger(*logLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipeline := audit.NewPipeline(
				privacy.New(log.WithComponent("privacy")),
				audit.Config{BatchSize: batchSize, WorkerCount: workers},
				log.WithComponent("audit").Logger,
			)

			report, err := pipeline.ProcessFile(ctx, inputPath)
			if err != nil {
				log.Error("Audit failed", zap.String("input", inputPath), zap.Error(err))
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}

			if failOnLeak && report.FlaggedRecords > 0 {
				return &exitCodeError{code: leakExitCode}
			}
			return nil
		},
	}

	defaults := audit.DefaultConfig()
	cmd.Flags().StringVar(&inputPath, "input", "", "Dataset file (.csv, .jsonl or .parquet)")
	cmd.Flags().IntVar(&workers, "workers", defaults.WorkerCount, "Number of worker goroutines")
	cmd.Flags().IntVar(&batchSize, "batch-size", defaults.BatchSize, "Records read per batch")
	cmd.Flags().BoolVar(&failOnLeak, "fail-on-leak", false, "Exit with status 2 when any record is flagged")

	return cmd
}
