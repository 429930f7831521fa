package service

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/logger"
	"github.com/timmy/catalogsync/internal/queue"
	"github.com/timmy/catalogsync/internal/repository"
)

// JobQueue is the queue surface the workers drive. *queue.Store implements it.
type JobQueue interface {
	Name() domain.QueueName
	Enqueue(ctx context.Context, targetID string, payload queue.Payload, reason string) (bool, error)
	Lease(ctx context.Context, limit int) ([]domain.QueueJob, error)
	Get(ctx context.Context, id string) (*domain.QueueJob, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, job *domain.QueueJob, failure *domain.Failure) (queue.Outcome, error)
}

// Job outcomes reported by worker batches.
const (
	OutcomeCompleted   = "completed"
	OutcomeOrphaned    = "orphaned"
	OutcomeRescheduled = string(queue.OutcomeRescheduled)
	OutcomeDropped     = string(queue.OutcomeDropped)
	OutcomeDispatched  = "dispatched"
	OutcomeSkipped     = "skipped"
	OutcomeError       = "error"
)

// JobResult is the settled state of one job in a batch.
type JobResult struct {
	JobID      string  `json:"job_id"`
	RecordID   string  `json:"record_id"`
	TryCount   int     `json:"try_count"`
	Outcome    string  `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
	Stage      int     `json:"stage,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// BatchResult summarizes one worker invocation.
type BatchResult struct {
	Queue      string         `json:"queue"`
	Leased     int            `json:"leased"`
	Counts     map[string]int `json:"counts"`
	Jobs       []JobResult    `json:"jobs"`
	DurationMs int64          `json:"duration_ms"`
}

func newBatchResult(name domain.QueueName, leased int) *BatchResult {
	return &BatchResult{
		Queue:  string(name),
		Leased: leased,
		Counts: map[string]int{},
		Jobs:   make([]JobResult, 0, leased),
	}
}

func (b *BatchResult) add(r JobResult) {
	b.Counts[r.Outcome]++
	b.Jobs = append(b.Jobs, r)
}

// SyncWorker runs the metadata-sync pipeline: lease, resolve, write, settle.
type SyncWorker struct {
	queue      JobQueue
	records    CatalogStore
	resolver   Resolver
	writer     *Reconciler
	jobTimeout time.Duration
}

// NewSyncWorker creates a SyncWorker. jobTimeout bounds each job's external
// calls; zero disables the bound.
func NewSyncWorker(q JobQueue, records CatalogStore, resolver Resolver, writer *Reconciler, jobTimeout time.Duration) *SyncWorker {
	return &SyncWorker{
		queue:      q,
		records:    records,
		resolver:   resolver,
		writer:     writer,
		jobTimeout: jobTimeout,
	}
}

// RunBatch leases up to limit due jobs and settles each one in turn.
// Only a failed lease is returned as an error; per-job failures are recorded
// on the job and reported in the result.
func (w *SyncWorker) RunBatch(ctx context.Context, limit int) (*BatchResult, error) {
	start := time.Now()
	ctx = logger.SetComponent(ctx, "sync_worker")

	jobs, err := w.queue.Lease(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := newBatchResult(w.queue.Name(), len(jobs))
	for i := range jobs {
		result.add(w.process(ctx, &jobs[i]))
	}
	result.DurationMs = time.Since(start).Milliseconds()

	logger.With(logger.Fields{
		logger.FieldQueue: string(w.queue.Name()),
		"outcomes":        result.Counts,
	}).WithCount(len(jobs)).WithDuration(start).Info(ctx, "Sync batch completed")
	return result, nil
}

func (w *SyncWorker) process(ctx context.Context, job *domain.QueueJob) JobResult {
	ctx = logger.SetJob(ctx, string(job.Queue), job.ID, job.TargetRecordID, job.TryCount)
	res := JobResult{JobID: job.ID, RecordID: job.TargetRecordID, TryCount: job.TryCount}

	jobCtx, cancel := withOptionalTimeout(ctx, w.jobTimeout)
	defer cancel()

	record, err := w.records.GetByID(jobCtx, job.TargetRecordID)
	if errors.Is(err, repository.ErrNotFound) {
		return completeOrphan(ctx, w.queue, job, res)
	}
	if err != nil {
		return settleFailure(ctx, w.queue, job, res, domain.NewTransport(err))
	}

	match, err := w.resolver.Resolve(jobCtx, record, job.TryCount, job.ResolverKind == domain.ResolverKindRematch)
	if err != nil {
		return settleFailure(ctx, w.queue, job, res, domain.Classify(err))
	}
	if match.Candidate != nil {
		res.Confidence = match.Candidate.Confidence
	}
	res.Stage = match.Stage

	err = w.writer.ApplyPatch(jobCtx, record.ID, match.Record)
	if errors.Is(err, repository.ErrNotFound) {
		return completeOrphan(ctx, w.queue, job, res)
	}
	if err != nil {
		return settleFailure(ctx, w.queue, job, res, domain.NewTransport(err))
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		res.Outcome = OutcomeError
		res.Error = err.Error()
		logger.CtxError(ctx, "Failed to complete job after sync: %v", err)
		return res
	}
	res.Outcome = OutcomeCompleted
	logger.With(logger.Fields{
		logger.FieldConfidence: res.Confidence,
		logger.FieldStage:      res.Stage,
	}).Info(ctx, "Synced record to external id %d", match.Record.ID)
	return res
}

// completeOrphan settles a job whose target record is gone.
func completeOrphan(ctx context.Context, q JobQueue, job *domain.QueueJob, res JobResult) JobResult {
	res.Reason = domain.ReasonOrphaned
	if err := q.Complete(ctx, job.ID); err != nil {
		res.Outcome = OutcomeError
		res.Error = err.Error()
		return res
	}
	res.Outcome = OutcomeOrphaned
	logger.CtxInfo(ctx, "Completed orphaned job")
	return res
}

// settleFailure records failure on the job. Queue writes use ctx rather than
// the job's timed context so an expired job can still be rescheduled.
func settleFailure(ctx context.Context, q JobQueue, job *domain.QueueJob, res JobResult, failure *domain.Failure) JobResult {
	res.Reason = failure.ReasonCode()
	res.Error = failure.Error()
	if failure.Kind == domain.FailureUnmatched {
		res.Stage = failure.Stage
		res.Confidence = failure.BestConfidence
	}

	outcome, err := q.Fail(ctx, job, failure)
	if err != nil {
		res.Outcome = OutcomeError
		res.Error = err.Error()
		logger.CtxError(ctx, "Failed to settle job failure %s: %v", failure.ReasonCode(), err)
		return res
	}
	res.Outcome = string(outcome)
	logger.With(logger.Fields{
		logger.FieldReason: res.Reason,
	}).WithStatus(res.Outcome).Warn(ctx, "Job failed: %v", failure)
	return res
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
