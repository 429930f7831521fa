package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/logger"
)

// ErrJobNotFound is returned when a job id does not exist in the queue.
var ErrJobNotFound = errors.New("queue job not found")

// Payload is the optional descriptor carried by a job. Empty fields leave an
// existing job's values untouched on re-enqueue.
type Payload struct {
	SourceURL       string            `json:"source_url,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	ResolverKind    string            `json:"resolver_kind,omitempty"`
	ResolverPayload map[string]string `json:"resolver_payload,omitempty"`
}

// Outcome is how a failed job was settled.
type Outcome string

const (
	OutcomeRescheduled Outcome = "rescheduled"
	OutcomeDropped     Outcome = "dropped"
	OutcomeCompleted   Outcome = "completed"
)

// Store is one named queue over the shared queue_jobs table.
type Store struct {
	db     *gorm.DB
	name   domain.QueueName
	policy Policy
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a Store for the named queue.
// Parameters:
//   - db: GORM database handle; the queue_jobs and dropped_jobs tables must exist.
//   - name: queue name, one per pipeline.
//   - policy: lease and backoff timing.
// Returns:
//   - *Store: queue bound to db.
func NewStore(db *gorm.DB, name domain.QueueName, policy Policy, opts ...Option) *Store {
	s := &Store{db: db, name: name, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the queue name.
func (s *Store) Name() domain.QueueName {
	return s.name
}

// Policy returns the queue's timing policy.
func (s *Store) Policy() Policy {
	return s.policy
}

// clock returns the current time in UTC at the precision every supported
// database keeps, so values read back compare equal to values written.
func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Enqueue inserts a job for targetID, or updates the live one in place. An
// update makes an idle or backed-off job due after ShortDelay; a leased job
// keeps its lease horizon.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - targetID: catalog record the job works on.
//   - payload: optional descriptor; empty fields keep existing values.
//   - reason: why the job was queued (scan, manual, ...).
// Returns:
//   - bool: true when a new job was inserted, false when an existing one was updated.
//   - error: non-nil if the write fails.
func (s *Store) Enqueue(ctx context.Context, targetID string, payload Payload, reason string) (bool, error) {
	if targetID == "" {
		return false, errors.New("target id is required")
	}
	now := s.clock()
	job := &domain.QueueJob{
		ID:              uuid.NewString(),
		Queue:           s.name,
		TargetRecordID:  targetID,
		SourceURL:       payload.SourceURL,
		Headers:         domain.StringMap(payload.Headers),
		ResolverKind:    payload.ResolverKind,
		ResolverPayload: domain.StringMap(payload.ResolverPayload),
		NextEligibleAt:  now,
		Reason:          reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "queue"}, {Name: "target_record_id"}},
		DoNothing: true,
	}).Create(job)
	if result.Error != nil {
		return false, fmt.Errorf("enqueue %s/%s: %w", s.name, targetID, result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	// A job under an active lease keeps its horizon so a second worker
	// cannot claim it before the first one settles.
	eligible := gorm.Expr(
		"CASE WHEN leased_at IS NOT NULL AND next_eligible_at > ? THEN next_eligible_at ELSE ? END",
		now, now.Add(s.policy.ShortDelay),
	)
	updates := map[string]interface{}{
		"next_eligible_at": eligible,
		"version":          gorm.Expr("version + 1"),
		"updated_at":       now,
	}
	if reason != "" {
		updates["reason"] = reason
	}
	if payload.SourceURL != "" {
		updates["source_url"] = payload.SourceURL
	}
	if len(payload.Headers) > 0 {
		updates["headers"] = domain.StringMap(payload.Headers)
	}
	if payload.ResolverKind != "" {
		updates["resolver_kind"] = payload.ResolverKind
	}
	if len(payload.ResolverPayload) > 0 {
		updates["resolver_payload"] = domain.StringMap(payload.ResolverPayload)
	}

	result = s.db.WithContext(ctx).
		Model(&domain.QueueJob{}).
		Where("queue = ? AND target_record_id = ?", s.name, targetID).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("update queued job %s/%s: %w", s.name, targetID, result.Error)
	}
	return false, nil
}

// Lease claims up to limit due jobs, oldest first, pushing each one's
// next_eligible_at to now + LeaseHorizon. Each claim is a single conditional
// update on (id, version), so a job claimed by a concurrent caller is skipped.
func (s *Store) Lease(ctx context.Context, limit int) ([]domain.QueueJob, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := s.clock()

	var due []domain.QueueJob
	err := s.db.WithContext(ctx).
		Where("queue = ? AND next_eligible_at <= ?", s.name, now).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("select due jobs in %s: %w", s.name, err)
	}

	until := now.Add(s.policy.LeaseHorizon)
	leased := make([]domain.QueueJob, 0, len(due))
	for _, job := range due {
		result := s.db.WithContext(ctx).
			Model(&domain.QueueJob{}).
			Where("id = ? AND version = ? AND next_eligible_at <= ?", job.ID, job.Version, now).
			Updates(map[string]interface{}{
				"next_eligible_at": until,
				"version":          gorm.Expr("version + 1"),
				"leased_at":        now,
				"updated_at":       now,
			})
		if result.Error != nil {
			return leased, fmt.Errorf("claim job %s: %w", job.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			logger.CtxDebug(ctx, "Job %s claimed by another worker, skipping", job.ID)
			continue
		}
		job.NextEligibleAt = until
		job.Version++
		leasedAt := now
		job.LeasedAt = &leasedAt
		job.UpdatedAt = now
		leased = append(leased, job)
	}
	return leased, nil
}

// Get returns a job without changing it.
func (s *Store) Get(ctx context.Context, id string) (*domain.QueueJob, error) {
	var job domain.QueueJob
	err := s.db.WithContext(ctx).First(&job, "id = ? AND queue = ?", id, s.name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// Complete deletes a job unconditionally. Completing a missing job is not an error.
func (s *Store) Complete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).
		Where("id = ? AND queue = ?", id, s.name).
		Delete(&domain.QueueJob{}).Error
	if err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return nil
}

// Reschedule records a failure: try_count becomes tryCount+1 and the job is
// due again after Backoff(tryCount+1, kind).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job id.
//   - tryCount: the job's try count when it was leased.
//   - failure: what went wrong; its kind selects the backoff schedule.
// Returns:
//   - time.Time: the new next_eligible_at.
//   - error: ErrJobNotFound when the job is gone, otherwise the update error.
func (s *Store) Reschedule(ctx context.Context, id string, tryCount int, failure *domain.Failure) (time.Time, error) {
	now := s.clock()
	next := now.Add(s.policy.Backoff(tryCount+1, failure.Kind))
	result := s.db.WithContext(ctx).
		Model(&domain.QueueJob{}).
		Where("id = ? AND queue = ?", id, s.name).
		Updates(map[string]interface{}{
			"try_count":        tryCount + 1,
			"next_eligible_at": next,
			"leased_at":        nil,
			"reason":           failure.ReasonCode(),
			"last_error":       failure.Error(),
			"version":          gorm.Expr("version + 1"),
			"updated_at":       now,
		})
	if result.Error != nil {
		return time.Time{}, fmt.Errorf("reschedule job %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return time.Time{}, ErrJobNotFound
	}
	return next, nil
}

// Drop removes a job that exhausted its tries and records it, with the
// failure that kept recurring, in the dropped-job ledger for manual follow-up.
func (s *Store) Drop(ctx context.Context, job *domain.QueueJob, failure *domain.Failure) error {
	now := s.clock()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dropped := &domain.DroppedJob{
			JobID:          job.ID,
			Queue:          s.name,
			TargetRecordID: job.TargetRecordID,
			Reason:         failure.ReasonCode(),
			TryCount:       job.TryCount + 1,
			LastError:      failure.Error(),
			DroppedAt:      now,
		}
		if err := tx.Create(dropped).Error; err != nil {
			return fmt.Errorf("record dropped job %s: %w", job.ID, err)
		}
		if err := tx.Where("id = ? AND queue = ?", job.ID, s.name).Delete(&domain.QueueJob{}).Error; err != nil {
			return fmt.Errorf("delete dropped job %s: %w", job.ID, err)
		}
		return nil
	})
}

// Fail settles a failed job: dropped when the failure exceeds the try cap for
// its kind, rescheduled otherwise. Terminal kinds never reschedule: an
// orphaned job is completed and a tries-exhausted failure drops at once.
func (s *Store) Fail(ctx context.Context, job *domain.QueueJob, failure *domain.Failure) (Outcome, error) {
	if failure.Kind == domain.FailureOrphaned {
		if err := s.Complete(ctx, job.ID); err != nil {
			return "", err
		}
		logger.With(logger.Fields{
			logger.FieldQueue:    string(s.name),
			logger.FieldRecordID: job.TargetRecordID,
			logger.FieldReason:   failure.ReasonCode(),
		}).Info(ctx, "Completed orphaned job %s", job.ID)
		return OutcomeCompleted, nil
	}
	if failure.Kind == domain.FailureTriesExhausted || s.policy.ShouldDrop(job.TryCount, failure.Kind) {
		if err := s.Drop(ctx, job, failure); err != nil {
			return "", err
		}
		logger.With(logger.Fields{
			logger.FieldQueue:    string(s.name),
			logger.FieldRecordID: job.TargetRecordID,
			logger.FieldReason:   failure.ReasonCode(),
			logger.FieldTryCount: job.TryCount + 1,
			logger.FieldStatus:   domain.ReasonTriesExhausted,
		}).Warn(ctx, "Dropped job %s after exhausting tries", job.ID)
		return OutcomeDropped, nil
	}
	if _, err := s.Reschedule(ctx, job.ID, job.TryCount, failure); err != nil {
		return "", err
	}
	return OutcomeRescheduled, nil
}

// Stats counts live jobs and jobs due now.
func (s *Store) Stats(ctx context.Context) (live int64, due int64, err error) {
	base := s.db.WithContext(ctx).Model(&domain.QueueJob{}).Where("queue = ?", s.name)
	if err = base.Count(&live).Error; err != nil {
		return 0, 0, err
	}
	err = s.db.WithContext(ctx).Model(&domain.QueueJob{}).
		Where("queue = ? AND next_eligible_at <= ?", s.name, s.clock()).
		Count(&due).Error
	return live, due, err
}

// ListDropped returns the most recent dropped jobs for this queue.
func (s *Store) ListDropped(ctx context.Context, limit int) ([]domain.DroppedJob, error) {
	var dropped []domain.DroppedJob
	query := s.db.WithContext(ctx).Where("queue = ?", s.name).Order("dropped_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&dropped).Error; err != nil {
		return nil, err
	}
	return dropped, nil
}
