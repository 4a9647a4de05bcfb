package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ignite/caseload-importer/internal/csvstream"
	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/importerr"
	"github.com/ignite/caseload-importer/internal/pkg/logger"
	"github.com/ignite/caseload-importer/internal/repository"
	"github.com/ignite/caseload-importer/internal/service/batch"
	"github.com/ignite/caseload-importer/internal/service/cases"
	"github.com/ignite/caseload-importer/internal/service/job"
	"github.com/ignite/caseload-importer/internal/service/masterdata"
	"github.com/ignite/caseload-importer/internal/validation"
)

const (
	DefaultChunkSize = 100
	DefaultTxTimeout = 30 * time.Second
)

// Orchestrator runs imports. It holds no per-run state; every Process call
// builds its own tracker and counters, so one Orchestrator can serve
// concurrent jobs for different batches.
type Orchestrator struct {
	store     repository.Store
	parser    *csvstream.Parser
	validator *validation.Validator
	cases     *cases.Service
	batches   *batch.Service
	jobs      *job.Service
	reports   ReportSink
	now       func() time.Time
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store     repository.Store
	Parser    *csvstream.Parser
	Validator *validation.Validator
	Cases     *cases.Service
	Batches   *batch.Service
	Jobs      *job.Service
	// Reports is optional.
	Reports ReportSink
}

// New creates an Orchestrator. Missing parser, validator, case and batch
// services are built with their defaults.
func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		store:     d.Store,
		parser:    d.Parser,
		validator: d.Validator,
		cases:     d.Cases,
		batches:   d.Batches,
		jobs:      d.Jobs,
		reports:   d.Reports,
		now:       time.Now,
	}
	if o.parser == nil {
		o.parser = csvstream.NewParser()
	}
	if o.validator == nil {
		o.validator = validation.New()
	}
	if o.cases == nil {
		o.cases = cases.NewService(masterdata.NewNormalizer())
	}
	if o.batches == nil {
		o.batches = batch.NewService(d.Store)
	}
	if o.jobs == nil {
		o.jobs = job.NewService(nil, nil)
	}
	return o
}

// InitiateRequest describes a file to import.
type InitiateRequest struct {
	FilePath string
	Filename string
	// FileSize is taken from the file when zero.
	FileSize int64
	// UserID is optional; imports without a known user are attributed to
	// the system user.
	UserID string
}

// InitiateResult identifies the batch created for a file.
type InitiateResult struct {
	BatchID  string
	JobID    string
	Checksum string
	Payload  domain.JobPayload
}

// Initiate registers a new import and enqueues it. A file whose checksum
// matches any earlier batch fails with importerr.ErrDuplicateImport.
func (o *Orchestrator) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	res, err := o.initiate(ctx, req)
	if err != nil {
		return nil, err
	}

	h, err := o.jobs.Enqueue(ctx, res.Payload)
	if err != nil {
		o.markFailed(ctx, res.BatchID, domain.BatchStats{
			Status:          domain.BatchFailed,
			FailureCategory: domain.FailureSystem,
			FailureReason:   "Import could not be queued",
		})
		return nil, err
	}
	res.JobID = h.ID
	logger.Info("[Importer] import queued", "batch_id", res.BatchID, "job_id", h.ID, "filename", req.Filename)
	return res, nil
}

func (o *Orchestrator) initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if req.FileSize == 0 {
		fi, err := os.Stat(req.FilePath)
		if err != nil {
			return nil, fmt.Errorf("stat import file: %w", err)
		}
		req.FileSize = fi.Size()
	}
	if req.Filename == "" {
		req.Filename = filepath.Base(req.FilePath)
	}

	checksum, err := o.parser.Checksum(req.FilePath)
	if err != nil {
		return nil, err
	}

	prior, err := o.batches.CheckForDuplicateImport(ctx, checksum)
	if err != nil {
		return nil, fmt.Errorf("check duplicate import: %w", err)
	}
	if prior != nil {
		return nil, duplicateError(prior)
	}

	user, err := o.batches.ResolveUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	b, err := o.batches.CreateBatch(ctx, batch.CreateInput{
		Filename:  req.Filename,
		FileSize:  req.FileSize,
		Checksum:  checksum,
		CreatedBy: user.ID,
	})
	if errors.Is(err, batch.ErrDuplicate) {
		// Lost a race with a concurrent initiate of the same file.
		if prior, _ := o.batches.CheckForDuplicateImport(ctx, checksum); prior != nil {
			return nil, duplicateError(prior)
		}
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	return &InitiateResult{
		BatchID:  b.ID,
		Checksum: checksum,
		Payload: domain.JobPayload{
			FilePath: req.FilePath,
			Filename: req.Filename,
			FileSize: req.FileSize,
			Checksum: checksum,
			UserID:   user.ID,
			BatchID:  b.ID,
		},
	}, nil
}

// Run initiates and processes a file inline, without the job queue.
func (o *Orchestrator) Run(ctx context.Context, req InitiateRequest, opts ProcessOptions) (*ProcessResult, error) {
	res, err := o.initiate(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.Process(ctx, res.Payload, opts)
}

// StatusView combines the stored batch with its latest progress record.
type StatusView struct {
	Batch *domain.ImportBatch `json:"batch"`
	Job   *domain.JobStatus   `json:"job,omitempty"`
}

// GetStatus returns the batch and its cached progress. A cache failure
// leaves Job nil.
func (o *Orchestrator) GetStatus(ctx context.Context, batchID string) (*StatusView, error) {
	b, err := o.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{Batch: b}
	st, err := o.jobs.GetStatus(ctx, batchID)
	if err != nil {
		logger.Warn("[Importer] status cache read failed", "batch_id", batchID, "error", err)
	}
	view.Job = st
	return view, nil
}

// GetHistory lists recent batches, newest first.
func (o *Orchestrator) GetHistory(ctx context.Context, limit int) ([]domain.ImportBatch, error) {
	return o.batches.GetBatchHistory(ctx, limit)
}

func duplicateError(prior *domain.ImportBatch) error {
	return fmt.Errorf("%w: batch %s (%s) has the same checksum",
		importerr.ErrDuplicateImport, prior.ID, prior.Status)
}
