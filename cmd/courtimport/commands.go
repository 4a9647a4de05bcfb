package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ignite/caseload-importer/internal/config"
	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/importer"
	"github.com/ignite/caseload-importer/internal/importerr"
	"github.com/ignite/caseload-importer/internal/pkg/logger"
	"github.com/ignite/caseload-importer/internal/worker"
)

type configFunc func() *config.Config

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// userError logs the full error and returns the message an operator sees.
func userError(err error) error {
	logger.Error("[CLI] import failed", "error", err)
	return errors.New(importerr.UserMessage(err))
}

func cmdInitiate(conf configFunc) *cobra.Command {
	var userID string
	var cmd = &cobra.Command{
		Use:          "initiate <csv-file>",
		Short:        "register an extract and queue it for a worker",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			a, err := newApp(ctx, conf(), appOptions{needQueue: true})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.orch.Initiate(ctx, importer.InitiateRequest{
				FilePath: args[0],
				Filename: filepath.Base(args[0]),
				UserID:   userID,
			})
			if err != nil {
				return userError(err)
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "id of the user starting the import")
	return cmd
}

func cmdProcess(conf configFunc) *cobra.Command {
	var batchID string
	var filePath string
	var cmd = &cobra.Command{
		Use:          "process",
		Short:        "process a queued batch inline",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			a, err := newApp(ctx, conf(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.orch.GetStatus(ctx, batchID)
			if err != nil {
				return err
			}
			b := view.Batch
			if filePath == "" {
				filePath = filepath.Join(a.cfg.Import.StagingDir, b.Filename)
			}
			res, err := a.orch.Process(ctx, domain.JobPayload{
				FilePath: filePath,
				Filename: b.Filename,
				FileSize: b.FileSize,
				Checksum: b.FileChecksum,
				UserID:   b.CreatedBy,
				BatchID:  b.ID,
			}, a.processOptions())
			if res != nil {
				if perr := printJSON(res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&batchID, "batch", "", "batch id to process")
	cmd.Flags().StringVar(&filePath, "file", "", "path of the staged file (default: staging dir + filename)")
	_ = cmd.MarkFlagRequired("batch")
	return cmd
}

func cmdRun(conf configFunc) *cobra.Command {
	var dryRun bool
	var userID string
	var cmd = &cobra.Command{
		Use:          "run <csv-file>",
		Short:        "initiate and process an extract inline",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			a, err := newApp(ctx, conf(), appOptions{dryRun: dryRun})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.orch.Run(ctx, importer.InitiateRequest{
				FilePath: args[0],
				Filename: filepath.Base(args[0]),
				UserID:   userID,
			}, a.processOptions())
			if res != nil {
				if perr := printJSON(res); perr != nil {
					return perr
				}
			}
			if err != nil {
				return userError(err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and import into memory only")
	cmd.Flags().StringVar(&userID, "user", "", "id of the user starting the import")
	return cmd
}

func cmdWorker(conf configFunc) *cobra.Command {
	var concurrency int
	var cmd = &cobra.Command{
		Use:          "worker",
		Short:        "consume queued imports until interrupted",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			a, err := newApp(ctx, conf(), appOptions{needQueue: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if concurrency <= 0 {
				concurrency = a.cfg.Worker.Concurrency
			}
			pool := worker.NewPool(a.queue, a.orch, a.locker(), worker.Config{
				Concurrency:  concurrency,
				PollInterval: a.cfg.Worker.PollInterval(),
				LockTTL:      a.cfg.Worker.LockTTL(),
				Process:      a.processOptions(),
			})
			return pool.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of consumers (default from config)")
	return cmd
}

func cmdStatus(conf configFunc) *cobra.Command {
	var cmd = &cobra.Command{
		Use:          "status <batch-id>",
		Short:        "show a batch and its latest progress",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, conf(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.orch.GetStatus(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(view)
		},
	}
	return cmd
}

func cmdHistory(conf configFunc) *cobra.Command {
	limit := 20
	var cmd = &cobra.Command{
		Use:          "history",
		Short:        "list recent batches, newest first",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, conf(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			batches, err := a.orch.GetHistory(ctx, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFILE\tSTATUS\tTOTAL\tOK\tFAILED\tDUPLICATES\tCREATED")
			for _, b := range batches {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n", b.ID, b.Filename, b.Status,
					b.TotalRecords, b.SuccessfulRecords, b.FailedRecords, b.DuplicatesSkipped,
					b.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", limit, "number of batches to show")
	return cmd
}

func cmdDiscover(conf configFunc) *cobra.Command {
	var initiate bool
	var cmd = &cobra.Command{
		Use:          "discover",
		Short:        "list available extracts, optionally queueing them",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			a, err := newApp(ctx, conf(), appOptions{needQueue: initiate})
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := a.source(ctx)
			if err != nil {
				return err
			}
			extracts, err := src.Discover(ctx)
			if err != nil {
				return err
			}
			if !initiate {
				return printJSON(extracts)
			}

			queued := 0
			for _, e := range extracts {
				path, err := src.Fetch(ctx, e)
				if err != nil {
					return err
				}
				res, err := a.orch.Initiate(ctx, importer.InitiateRequest{
					FilePath: path,
					Filename: filepath.Base(e.Key),
					FileSize: e.Size,
				})
				if errors.Is(err, importerr.ErrDuplicateImport) {
					logger.Info("[CLI] extract already imported", "key", e.Key)
					continue
				}
				if err != nil {
					return err
				}
				logger.Info("[CLI] extract queued", "key", e.Key, "batch_id", res.BatchID)
				queued++
			}
			fmt.Printf("%d of %d extracts queued\n", queued, len(extracts))
			return nil
		},
	}
	cmd.Flags().BoolVar(&initiate, "initiate", false, "download and queue every new extract")
	return cmd
}

func cmdMigrate(conf configFunc) *cobra.Command {
	var cmd = &cobra.Command{
		Use:          "migrate",
		Short:        "apply the database schema",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, conf(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.pg.Migrate(ctx); err != nil {
				return err
			}
			fmt.Println("schema applied")
			return nil
		},
	}
	return cmd
}
