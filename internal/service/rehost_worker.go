package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/logger"
	"github.com/timmy/catalogsync/internal/repository"
	"github.com/timmy/catalogsync/internal/storage"
)

// CompletionSignal is what the transfer worker reports for a dispatched job.
type CompletionSignal struct {
	JobID     string `json:"job_id" binding:"required"`
	ObjectKey string `json:"object_key"`
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	// Blocked marks an origin that refused the download (403, 451, hotlink
	// protection) as opposed to a network failure.
	Blocked bool `json:"blocked"`
}

// RehostWorker runs the asset-rehost pipeline. A batch resolves each job's
// source descriptor and dispatches it; the job stays leased until the
// transfer worker reports back through Complete.
type RehostWorker struct {
	queue       JobQueue
	records     CatalogStore
	resolver    *SourceResolver
	transfer    Dispatcher
	store       storage.DurableStore
	durableHost string
	jobTimeout  time.Duration
	now         func() time.Time
}

// NewRehostWorker creates a RehostWorker. An empty durableHost defaults to
// the store's public host.
func NewRehostWorker(
	q JobQueue,
	records CatalogStore,
	resolver *SourceResolver,
	transfer Dispatcher,
	store storage.DurableStore,
	durableHost string,
	jobTimeout time.Duration,
) *RehostWorker {
	if durableHost == "" {
		durableHost = store.Host()
	}
	return &RehostWorker{
		queue:       q,
		records:     records,
		resolver:    resolver,
		transfer:    transfer,
		store:       store,
		durableHost: durableHost,
		jobTimeout:  jobTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// DurableHost returns the host that counts as already rehosted.
func (w *RehostWorker) DurableHost() string {
	return w.durableHost
}

// RunBatch leases up to limit due jobs and dispatches each one in turn.
func (w *RehostWorker) RunBatch(ctx context.Context, limit int) (*BatchResult, error) {
	start := time.Now()
	ctx = logger.SetComponent(ctx, "rehost_worker")

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
	}).WithCount(len(jobs)).WithDuration(start).Info(ctx, "Rehost batch completed")
	return result, nil
}

func (w *RehostWorker) process(ctx context.Context, job *domain.QueueJob) JobResult {
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

	if w.isDurable(record) {
		return w.skip(ctx, job, res, "asset already on durable host")
	}

	desc, err := w.describe(job, record)
	if errors.Is(err, errNoSource) {
		return w.skip(ctx, job, res, err.Error())
	}
	if err != nil {
		return settleFailure(ctx, w.queue, job, res, domain.Classify(err))
	}

	if err := w.transfer.Dispatch(jobCtx, desc); err != nil {
		return settleFailure(ctx, w.queue, job, res, domain.NewTransport(err))
	}
	res.Outcome = OutcomeDispatched
	logger.CtxInfo(ctx, "Dispatched transfer of %s to %s", desc.SourceURL, desc.ObjectKey)
	return res
}

func (w *RehostWorker) skip(ctx context.Context, job *domain.QueueJob, res JobResult, why string) JobResult {
	res.Error = why
	if err := w.queue.Complete(ctx, job.ID); err != nil {
		res.Outcome = OutcomeError
		res.Error = err.Error()
		return res
	}
	res.Outcome = OutcomeSkipped
	logger.CtxInfo(ctx, "Skipped rehost job: %s", why)
	return res
}

func (w *RehostWorker) isDurable(record *domain.CatalogRecord) bool {
	return record.AssetURL != "" && record.AssetHost != "" && record.AssetHost == w.durableHost
}

func (w *RehostWorker) describe(job *domain.QueueJob, record *domain.CatalogRecord) (*Descriptor, error) {
	desc, err := w.resolver.Resolve(job, record)
	if err != nil {
		return nil, err
	}
	desc.ObjectKey = w.store.ObjectKey(record.ID, desc.SourceURL)
	return desc, nil
}

// ResolveDescriptor returns the current best source descriptor for a job
// without touching queue state.
func (w *RehostWorker) ResolveDescriptor(ctx context.Context, jobID string) (*Descriptor, error) {
	job, err := w.queue.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	record, err := w.records.GetByID(ctx, job.TargetRecordID)
	if err != nil {
		return nil, err
	}
	return w.describe(job, record)
}

// Complete settles a dispatched job from the transfer worker's report.
// On success the object is verified in durable storage before the record's
// asset URL and host are updated; the first pre-rehost URL is kept as the
// original. Returns queue.ErrJobNotFound for unknown jobs, and a plain error
// without touching queue state when storage cannot be checked.
func (w *RehostWorker) Complete(ctx context.Context, signal CompletionSignal) (*JobResult, error) {
	job, err := w.queue.Get(ctx, signal.JobID)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetJob(ctx, string(job.Queue), job.ID, job.TargetRecordID, job.TryCount)
	res := JobResult{JobID: job.ID, RecordID: job.TargetRecordID, TryCount: job.TryCount}

	if !signal.Success {
		cause := errors.New(firstNonEmpty(signal.Error, "transfer failed"))
		failure := domain.NewTransport(cause)
		if signal.Blocked {
			failure = domain.NewBlocked(cause)
		}
		res = settleFailure(ctx, w.queue, job, res, failure)
		return &res, nil
	}

	record, err := w.records.GetByID(ctx, job.TargetRecordID)
	if errors.Is(err, repository.ErrNotFound) {
		res = completeOrphan(ctx, w.queue, job, res)
		return &res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", job.TargetRecordID, err)
	}

	key := signal.ObjectKey
	if key == "" {
		desc, err := w.describe(job, record)
		if err != nil {
			return nil, fmt.Errorf("derive object key: %w", err)
		}
		key = desc.ObjectKey
	}

	if _, err := w.store.Stat(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			res = settleFailure(ctx, w.queue, job, res,
				domain.NewTransport(fmt.Errorf("object %s missing after transfer", key)))
			return &res, nil
		}
		return nil, fmt.Errorf("verify object %s: %w", key, err)
	}

	origin := record.SourceURL
	if record.AssetURL != "" && record.AssetHost != w.durableHost {
		origin = record.AssetURL
	}
	origin = firstNonEmpty(origin, job.SourceURL)

	err = w.records.RecordRehost(ctx, record.ID, w.store.PublicURL(key), w.durableHost, origin, w.now())
	if errors.Is(err, repository.ErrNotFound) {
		res = completeOrphan(ctx, w.queue, job, res)
		return &res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("record rehost for %s: %w", record.ID, err)
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		return nil, err
	}
	res.Outcome = OutcomeCompleted
	logger.CtxInfo(ctx, "Rehosted asset to %s", key)
	return &res, nil
}
