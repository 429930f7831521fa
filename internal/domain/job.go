package domain

import "time"

// QueueName identifies one of the pipelines sharing the queue table.
type QueueName string

const (
	QueueMetadataSync QueueName = "metadata_sync"
	QueueAssetRehost  QueueName = "asset_rehost"
)

// ParseQueueName maps the pipeline names used on the wire to queue names.
func ParseQueueName(pipeline string) (QueueName, bool) {
	switch pipeline {
	case "metadata", string(QueueMetadataSync):
		return QueueMetadataSync, true
	case "rehost", "asset", string(QueueAssetRehost):
		return QueueAssetRehost, true
	}
	return "", false
}

// Resolver kinds carried on jobs.
const (
	// ResolverKindRematch forces a metadata job through search even when an external id is set.
	ResolverKindRematch = "rematch"
	// ResolverKindDirect fetches the source descriptor as-is, no header rotation.
	ResolverKindDirect = "direct"
	// ResolverKindRotating rotates user-agent and referer across tries.
	ResolverKindRotating = "rotating"
)

// QueueJob is a unit of pending work. At most one job exists per (queue, target_record_id).
// TryCount, NextEligibleAt and Version are written only by the queue package.
type QueueJob struct {
	ID              string     `gorm:"type:text;primaryKey" json:"id"`
	Queue           QueueName  `gorm:"type:text;not null;uniqueIndex:idx_queue_target;index:idx_queue_due,priority:1" json:"queue"`
	TargetRecordID  string     `gorm:"type:text;not null;uniqueIndex:idx_queue_target" json:"target_record_id"`
	SourceURL       string     `gorm:"type:text" json:"source_url,omitempty"`
	Headers         StringMap  `gorm:"type:text" json:"headers,omitempty"`
	ResolverKind    string     `gorm:"type:text" json:"resolver_kind,omitempty"`
	ResolverPayload StringMap  `gorm:"type:text" json:"resolver_payload,omitempty"`
	TryCount        int        `gorm:"not null;default:0" json:"try_count"`
	NextEligibleAt  time.Time  `gorm:"not null;index:idx_queue_due,priority:2" json:"next_eligible_at"`
	Reason          string     `gorm:"type:text" json:"reason,omitempty"`
	LastError       string     `gorm:"type:text" json:"last_error,omitempty"`
	Version         int64      `gorm:"not null;default:0" json:"version"`
	LeasedAt        *time.Time `json:"leased_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for QueueJob.
func (QueueJob) TableName() string {
	return "queue_jobs"
}

// DroppedJob records a job removed after exhausting its tries, kept for manual follow-up.
type DroppedJob struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID          string    `gorm:"type:text;not null" json:"job_id"`
	Queue          QueueName `gorm:"type:text;not null;index" json:"queue"`
	TargetRecordID string    `gorm:"type:text;not null;index" json:"target_record_id"`
	Reason         string    `gorm:"type:text" json:"reason"`
	TryCount       int       `json:"try_count"`
	LastError      string    `gorm:"type:text" json:"last_error,omitempty"`
	DroppedAt      time.Time `json:"dropped_at"`
}

// TableName returns the database table name for DroppedJob.
func (DroppedJob) TableName() string {
	return "dropped_jobs"
}
