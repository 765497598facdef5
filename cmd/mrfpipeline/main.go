// Command mrfpipeline discovers, streams, normalizes, and batches
// Transparency-in-Coverage negotiated-rate files, grounded on the teacher's
// cmd/npi-rates CLI (cobra root command, signal-driven graceful shutdown,
// MPB/log/noop progress manager selection).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chrscato/bph-tic/internal/batch"
	"github.com/chrscato/bph-tic/internal/config"
	"github.com/chrscato/bph-tic/internal/logging"
	"github.com/chrscato/bph-tic/internal/objectstore"
	"github.com/chrscato/bph-tic/internal/orchestrator"
	"github.com/chrscato/bph-tic/internal/output"
	"github.com/chrscato/bph-tic/internal/progress"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mrfpipeline",
		Short: "Extract negotiated rates from payer Transparency-in-Coverage MRF files",
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newReportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		reportPath  string
		logLevel    string
		noProgress  bool
		logProgress bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full extraction pipeline against every configured payer",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(logLevel)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			var sink batch.Sink
			if cfg.Output.S3Bucket != "" {
				s3Client, err := objectstore.New(cmd.Context(), cfg.Output.S3Bucket, cfg.Output.S3Region)
				if err != nil {
					return fmt.Errorf("configuring S3 sink: %w", err)
				}
				sink = s3Client
			}

			var mgr progress.Manager
			switch {
			case logProgress:
				mgr = progress.NewLogManager()
			case noProgress:
				mgr = &progress.NoopManager{}
			default:
				mgr = progress.NewMPBManager()
			}

			// First ^C asks in-flight workers to wind down at their next
			// suspension point; a second forces an immediate exit.
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 2)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				fmt.Fprintf(os.Stderr, "\nreceived %s, shutting down... (^C again to force quit)\n", sig)
				cancel()
				sig = <-sigCh
				fmt.Fprintf(os.Stderr, "\nreceived %s, force quit\n", sig)
				os.Exit(1)
			}()

			orch := orchestrator.New(orchestrator.Config{
				PayerEndpoints:    cfg.PayerEndpoints,
				CPTWhitelist:      cfg.WhitelistSet(),
				BatchSize:         cfg.BatchSize,
				ParallelWorkers:   cfg.ParallelWorkers,
				MaxFilesPerPayer:  cfg.MaxFilesPerPayer,
				MaxRecordsPerFile: cfg.MaxRecordsPerFile,
				OutputLocalDir:    cfg.Output.LocalDir,
				OutputPrefix:      cfg.Output.S3Prefix,
				ProcessingVersion: cfg.ProcessingVersion,
			}, sink, mgr)

			report := orch.Run(ctx)
			mgr.Wait()

			if err := output.WriteReport(reportPath, report); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}

			fmt.Fprintf(os.Stderr, "\nrun complete: %d payers, %d files processed, %d succeeded, %d failed, %d records extracted in %.1fs\n",
				report.PayersProcessed, report.FilesProcessed, report.FilesSucceeded, report.FilesFailed,
				report.RecordsExtracted, report.ProcessingTimeSeconds)

			// Per-file failures are recorded in the report but never fail the
			// run itself; only a config error or total sink failure returns a
			// non-nil error here and triggers a non-zero exit in main().
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the pipeline YAML config file")
	cmd.Flags().StringVarP(&reportPath, "output", "o", "report.json", "run report output path (use '-' for stdout)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable progress bars")
	cmd.Flags().BoolVar(&logProgress, "log-progress", false, "use throttled log lines instead of progress bars (for non-TTY environments)")

	return cmd
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <path>",
		Short: "Print a previously written run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := output.ReadReport(args[0])
			if err != nil {
				return err
			}
			return output.WriteReport("-", report)
		},
	}
	return cmd
}
