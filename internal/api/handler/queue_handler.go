package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/logger"
	"github.com/timmy/catalogsync/internal/queue"
	"github.com/timmy/catalogsync/internal/repository"
	"github.com/timmy/catalogsync/internal/service"
)

// ReasonManual is recorded on jobs enqueued through the admin API.
const ReasonManual = "manual"

// LeaseRequest is the body of POST /queues/:pipeline/lease.
type LeaseRequest struct {
	Limit int `json:"limit" binding:"omitempty,min=0,max=100"`
}

// RescheduleRequest is the body of POST /queues/:pipeline/jobs/:id/reschedule.
type RescheduleRequest struct {
	// TryCount defaults to the job's stored try count.
	TryCount *int   `json:"try_count" binding:"omitempty,min=0"`
	Reason   string `json:"reason" binding:"required"`
	Detail   string `json:"detail"`
}

// EnqueueRequest is the body of POST /queues/:pipeline/enqueue.
type EnqueueRequest struct {
	TargetID        string            `json:"target_id" binding:"required"`
	SourceURL       string            `json:"source_url" binding:"omitempty,url"`
	Headers         map[string]string `json:"headers"`
	ResolverKind    string            `json:"resolver_kind" binding:"omitempty,oneof=rematch direct rotating"`
	ResolverPayload map[string]string `json:"resolver_payload"`
	Reason          string            `json:"reason"`
}

// queueParam resolves the :pipeline path parameter, answering 400 when unknown.
func (h *AdminHandler) queueParam(c *gin.Context) (JobQueue, bool) {
	name, ok := domain.ParseQueueName(c.Param("pipeline"))
	if ok {
		if q, found := h.deps.Queues[name]; found {
			return q, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown pipeline: " + c.Param("pipeline")})
	return nil, false
}

// Lease claims due jobs for an externally driven runner.
func (h *AdminHandler) Lease(c *gin.Context) {
	q, ok := h.queueParam(c)
	if !ok {
		return
	}
	var req LeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobs, err := q.Lease(c.Request.Context(), h.batchLimit(req.Limit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if jobs == nil {
		jobs = []domain.QueueJob{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// Complete deletes a job.
func (h *AdminHandler) Complete(c *gin.Context) {
	q, ok := h.queueParam(c)
	if !ok {
		return
	}
	if err := q.Complete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": c.Param("id"), "outcome": service.OutcomeCompleted})
}

// Reschedule records a failure reported by an external runner. Once the try
// cap for the reason's kind is exceeded the job is dropped instead.
func (h *AdminHandler) Reschedule(c *gin.Context) {
	ctx := c.Request.Context()
	q, ok := h.queueParam(c)
	if !ok {
		return
	}
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := q.Get(ctx, c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}
	if req.TryCount != nil {
		job.TryCount = *req.TryCount
	}

	failure := &domain.Failure{Kind: domain.KindForReason(req.Reason), Code: req.Reason}
	if req.Detail != "" {
		failure.Err = errors.New(req.Detail)
	}
	outcome, err := q.Fail(ctx, job, failure)
	if err != nil {
		writeLookupError(c, err)
		return
	}

	resp := gin.H{"job_id": job.ID, "outcome": outcome, "reason": failure.ReasonCode()}
	if outcome == queue.OutcomeRescheduled {
		if updated, err := q.Get(ctx, job.ID); err == nil {
			resp["try_count"] = updated.TryCount
			resp["next_eligible_at"] = updated.NextEligibleAt
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Enqueue inserts or refreshes the job for one record.
func (h *AdminHandler) Enqueue(c *gin.Context) {
	ctx := c.Request.Context()
	q, ok := h.queueParam(c)
	if !ok {
		return
	}
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = ReasonManual
	}

	created, err := q.Enqueue(ctx, req.TargetID, queue.Payload{
		SourceURL:       req.SourceURL,
		Headers:         req.Headers,
		ResolverKind:    req.ResolverKind,
		ResolverPayload: req.ResolverPayload,
	}, reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger.CtxInfo(ctx, "Manual enqueue: queue=%s, target=%s, created=%v", q.Name(), req.TargetID, created)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"target_id": req.TargetID, "created": created})
}

// Resolve returns the current source descriptor for a rehost job without
// touching queue state.
func (h *AdminHandler) Resolve(c *gin.Context) {
	name, ok := domain.ParseQueueName(c.Param("pipeline"))
	if !ok || name != domain.QueueAssetRehost {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Resolve is only available for the rehost pipeline"})
		return
	}
	if h.deps.Rehost == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Rehost pipeline is not configured"})
		return
	}

	desc, err := h.deps.Rehost.ResolveDescriptor(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, desc)
}

// RehostComplete accepts the transfer worker's completion signal.
func (h *AdminHandler) RehostComplete(c *gin.Context) {
	ctx := c.Request.Context()
	if h.deps.Rehost == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Rehost pipeline is not configured"})
		return
	}
	var req service.CompletionSignal
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	result, err := h.deps.Rehost.Complete(ctx, req)
	h.record("rehost_complete", start, err)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeLookupError maps missing jobs and records to 404, anything else to 500.
func writeLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
