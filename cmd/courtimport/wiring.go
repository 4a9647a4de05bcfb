package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/caseload-importer/internal/config"
	"github.com/ignite/caseload-importer/internal/importer"
	"github.com/ignite/caseload-importer/internal/pkg/distlock"
	"github.com/ignite/caseload-importer/internal/pkg/logger"
	"github.com/ignite/caseload-importer/internal/queue"
	"github.com/ignite/caseload-importer/internal/repository"
	"github.com/ignite/caseload-importer/internal/repository/memstore"
	"github.com/ignite/caseload-importer/internal/repository/postgres"
	"github.com/ignite/caseload-importer/internal/service/job"
	"github.com/ignite/caseload-importer/internal/storage"
)

// app holds the connections one command needs.
type app struct {
	cfg   *config.Config
	pg    *postgres.Store
	store repository.Store
	rdb   *redis.Client
	queue *queue.Queue
	orch  *importer.Orchestrator
}

type appOptions struct {
	// dryRun keeps everything in memory.
	dryRun bool
	// needQueue fails startup when Redis is not configured.
	needQueue bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	if opts.dryRun {
		a.store = memstore.New()
		a.orch = importer.New(importer.Deps{
			Store:   a.store,
			Jobs:    job.NewService(nil, nil),
			Reports: storage.NewFileReportSink(cfg.Import.ReportsDir),
		})
		logger.Info("[CLI] dry run, nothing will be persisted")
		return a, nil
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is not configured (set DATABASE_URL)")
	}
	pg, err := postgres.Open(ctx, postgres.Options{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
	})
	if err != nil {
		return nil, err
	}
	a.pg, a.store = pg, pg

	var (
		q     job.Queue
		cache job.StatusCache
	)
	switch {
	case cfg.Redis.URL != "":
		ropts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.rdb = redis.NewClient(ropts)
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.queue = queue.New(a.rdb, queue.Config{
			MaxAttempts: cfg.Worker.MaxAttempts,
			BackoffBase: cfg.Worker.BackoffBase(),
			BackoffMax:  cfg.Worker.BackoffMax(),
		})
		q, cache = a.queue, queue.NewStatusCache(a.rdb, cfg.Redis.StatusTTL())
	case opts.needQueue:
		a.Close()
		return nil, fmt.Errorf("redis url is not configured (set REDIS_URL)")
	}

	reports, err := a.reportSink(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orch = importer.New(importer.Deps{
		Store:   a.store,
		Jobs:    job.NewService(q, cache),
		Reports: reports,
	})
	return a, nil
}

// reportSink archives reports in S3 when a bucket is configured, otherwise
// on local disk.
func (a *app) reportSink(ctx context.Context) (importer.ReportSink, error) {
	ex := a.cfg.Extracts
	if ex.S3Bucket == "" {
		return storage.NewFileReportSink(a.cfg.Import.ReportsDir), nil
	}
	client, err := storage.NewS3Client(ctx, ex.S3Region, ex.GetAWSProfile())
	if err != nil {
		return nil, err
	}
	return storage.NewS3ReportSink(client, ex.S3Bucket, ex.ReportsPrefix), nil
}

// source lists extracts in S3 when a bucket is configured, otherwise in the
// staging directory.
func (a *app) source(ctx context.Context) (storage.Source, error) {
	ex := a.cfg.Extracts
	if ex.S3Bucket == "" {
		return storage.NewLocalSource(a.cfg.Import.StagingDir), nil
	}
	client, err := storage.NewS3Client(ctx, ex.S3Region, ex.GetAWSProfile())
	if err != nil {
		return nil, err
	}
	return storage.NewS3Source(client, storage.S3Options{
		Bucket:     ex.S3Bucket,
		Prefix:     ex.S3Prefix,
		Region:     ex.S3Region,
		Profile:    ex.GetAWSProfile(),
		StagingDir: a.cfg.Import.StagingDir,
	}), nil
}

func (a *app) locker() *distlock.Locker {
	var db = a.pg.DB().DB
	return distlock.NewLocker(a.rdb, db, a.cfg.Worker.LockTTL())
}

func (a *app) processOptions() importer.ProcessOptions {
	return importer.ProcessOptions{
		ChunkSize: a.cfg.Import.ChunkSize,
		TxTimeout: a.cfg.Import.TxTimeout(),
	}
}

func (a *app) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
