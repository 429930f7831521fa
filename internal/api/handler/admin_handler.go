package handler

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/logger"
	"github.com/timmy/catalogsync/internal/queue"
	"github.com/timmy/catalogsync/internal/service"
)

const (
	maxBatchLimit   = 100
	defaultScanSize = 1000
)

// JobQueue is the queue surface the admin endpoints drive. *queue.Store implements it.
type JobQueue interface {
	Name() domain.QueueName
	Enqueue(ctx context.Context, targetID string, payload queue.Payload, reason string) (bool, error)
	Lease(ctx context.Context, limit int) ([]domain.QueueJob, error)
	Get(ctx context.Context, id string) (*domain.QueueJob, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, job *domain.QueueJob, failure *domain.Failure) (queue.Outcome, error)
	Stats(ctx context.Context) (live int64, due int64, err error)
	ListDropped(ctx context.Context, limit int) ([]domain.DroppedJob, error)
}

// Deps wires the admin handler to the pipelines.
type Deps struct {
	Queues      map[domain.QueueName]JobQueue
	Maintenance *service.Maintenance
	Sync        *service.SyncWorker
	// Rehost is nil when durable storage or the transfer worker is not configured.
	Rehost     *service.RehostWorker
	Reconciler *service.Reconciler
	Records    RecordLookup
	BatchSize  int
}

// AdminHandler handles the request-triggered entry points of both pipelines.
type AdminHandler struct {
	deps Deps

	mu      sync.RWMutex
	lastRun map[string]RunStatus
}

// RunStatus is the last outcome of one operation, kept for the status endpoint.
type RunStatus struct {
	At         time.Time `json:"at"`
	Status     string    `json:"status"`
	DurationMs int64     `json:"duration_ms"`
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - deps: queues and services; Deps.Rehost may be nil.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(deps Deps) *AdminHandler {
	if deps.BatchSize <= 0 {
		deps.BatchSize = 10
	}
	return &AdminHandler{deps: deps, lastRun: map[string]RunStatus{}}
}

// MaintenanceRequest is the body of POST /maintenance.
type MaintenanceRequest struct {
	Pipeline    string `json:"pipeline" binding:"required"`
	Limit       int    `json:"limit" binding:"omitempty,min=0,max=10000"`
	MissingOnly bool   `json:"missing_only"`
}

// WorkerRequest is the body of POST /worker.
type WorkerRequest struct {
	Pipeline string `json:"pipeline" binding:"required"`
	Limit    int    `json:"limit" binding:"omitempty,min=0,max=100"`
}

// Maintenance scans the catalog and enqueues jobs for one pipeline, or both
// with pipeline "all".
func (h *AdminHandler) Maintenance(c *gin.Context) {
	ctx := c.Request.Context()

	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultScanSize
	}

	names := []domain.QueueName{domain.QueueMetadataSync, domain.QueueAssetRehost}
	if req.Pipeline != "all" {
		name, ok := domain.ParseQueueName(req.Pipeline)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown pipeline: " + req.Pipeline})
			return
		}
		names = []domain.QueueName{name}
	}

	logger.CtxInfo(ctx, "Received maintenance request: pipeline=%s, limit=%d, missing_only=%v, client_ip=%s",
		req.Pipeline, limit, req.MissingOnly, c.ClientIP())

	results := make([]*service.ScanResult, 0, len(names))
	for _, name := range names {
		start := time.Now()
		result, err := h.deps.Maintenance.Scan(ctx, name, limit, req.MissingOnly)
		h.record("maintenance:"+string(name), start, err)
		if err != nil {
			logger.CtxError(ctx, "Maintenance scan failed: queue=%s, error=%v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		results = append(results, result)
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Worker processes one batch of due jobs for a pipeline.
func (h *AdminHandler) Worker(c *gin.Context) {
	ctx := c.Request.Context()

	var req WorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name, ok := domain.ParseQueueName(req.Pipeline)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown pipeline: " + req.Pipeline})
		return
	}
	limit := h.batchLimit(req.Limit)

	start := time.Now()
	var result *service.BatchResult
	var err error
	switch name {
	case domain.QueueMetadataSync:
		result, err = h.deps.Sync.RunBatch(ctx, limit)
	case domain.QueueAssetRehost:
		if h.deps.Rehost == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Rehost pipeline is not configured"})
			return
		}
		result, err = h.deps.Rehost.RunBatch(ctx, limit)
	}
	h.record("worker:"+string(name), start, err)
	if err != nil {
		logger.CtxError(ctx, "Worker batch failed: queue=%s, error=%v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Dedupe collapses catalog records that share an external id. Per-group
// failures are reported alongside the groups that did collapse.
func (h *AdminHandler) Dedupe(c *gin.Context) {
	ctx := c.Request.Context()

	start := time.Now()
	result, err := h.deps.Reconciler.CollapseDuplicates(ctx)
	h.record("dedupe", start, err)
	if result == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusMultiStatus, gin.H{"result": result, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Dropped lists the dropped-job ledger, newest first.
func (h *AdminHandler) Dropped(c *gin.Context) {
	ctx := c.Request.Context()

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	queues, ok := h.selectQueues(c.Query("pipeline"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown pipeline: " + c.Query("pipeline")})
		return
	}

	dropped := []domain.DroppedJob{}
	for _, q := range queues {
		jobs, err := q.ListDropped(ctx, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		dropped = append(dropped, jobs...)
	}
	c.JSON(http.StatusOK, gin.H{"dropped": dropped, "count": len(dropped)})
}

// QueueStatus is one queue's depth in the status response.
type QueueStatus struct {
	Live int64 `json:"live"`
	Due  int64 `json:"due"`
}

// Status reports queue depths and the last run of each operation.
func (h *AdminHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	queues := map[string]QueueStatus{}
	for name, q := range h.deps.Queues {
		live, due, err := q.Stats(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		queues[string(name)] = QueueStatus{Live: live, Due: due}
	}

	h.mu.RLock()
	runs := make(map[string]RunStatus, len(h.lastRun))
	for k, v := range h.lastRun {
		runs[k] = v
	}
	h.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"queues":         queues,
		"last_runs":      runs,
		"rehost_enabled": h.deps.Rehost != nil,
	})
}

func (h *AdminHandler) record(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failed: " + err.Error()
	}
	h.mu.Lock()
	h.lastRun[op] = RunStatus{At: time.Now().UTC(), Status: status, DurationMs: time.Since(start).Milliseconds()}
	h.mu.Unlock()
}

func (h *AdminHandler) batchLimit(limit int) int {
	if limit <= 0 {
		limit = h.deps.BatchSize
	}
	return min(limit, maxBatchLimit)
}

// selectQueues resolves an optional pipeline filter; empty selects every queue.
func (h *AdminHandler) selectQueues(pipeline string) ([]JobQueue, bool) {
	if pipeline == "" {
		return []JobQueue{
			h.deps.Queues[domain.QueueMetadataSync],
			h.deps.Queues[domain.QueueAssetRehost],
		}, true
	}
	name, ok := domain.ParseQueueName(pipeline)
	if !ok {
		return nil, false
	}
	q, ok := h.deps.Queues[name]
	return []JobQueue{q}, ok
}
