package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/logger"
	"github.com/timmy/catalogsync/internal/queue"
)

// ReasonScan is the reason recorded on jobs created by a maintenance scan.
const ReasonScan = "scan"

// ScanResult reports one maintenance scan.
type ScanResult struct {
	Queue   string `json:"queue"`
	Scanned int    `json:"scanned"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
}

// Maintenance enumerates catalog rows that need work and enqueues jobs for
// them. Enqueue dedupes per record, so a scan can be repeated freely.
type Maintenance struct {
	records     CatalogStore
	metadata    JobQueue
	rehost      JobQueue
	durableHost string
}

// NewMaintenance creates a Maintenance scanner. durableHost is the host an
// asset must already live on to be skipped by the rehost scan.
func NewMaintenance(records CatalogStore, metadata, rehost JobQueue, durableHost string) *Maintenance {
	return &Maintenance{
		records:     records,
		metadata:    metadata,
		rehost:      rehost,
		durableHost: durableHost,
	}
}

// Scan runs the scan for the named queue.
func (m *Maintenance) Scan(ctx context.Context, name domain.QueueName, limit int, missingOnly bool) (*ScanResult, error) {
	switch name {
	case domain.QueueMetadataSync:
		return m.ScanMetadata(ctx, limit, missingOnly)
	case domain.QueueAssetRehost:
		return m.ScanRehost(ctx, limit, missingOnly)
	default:
		return nil, fmt.Errorf("unknown queue %q", name)
	}
}

// ScanMetadata enqueues metadata-sync jobs. With missingOnly it only picks
// rows lacking an external id, overview or artwork.
func (m *Maintenance) ScanMetadata(ctx context.Context, limit int, missingOnly bool) (*ScanResult, error) {
	records, err := m.records.ListForMetadataSync(ctx, limit, missingOnly)
	if err != nil {
		return nil, fmt.Errorf("list records for metadata sync: %w", err)
	}
	return m.enqueueAll(ctx, m.metadata, records, func(domain.CatalogRecord) queue.Payload {
		return queue.Payload{}
	})
}

// ScanRehost enqueues rehost jobs for every record whose asset is missing or
// not yet on the durable host.
func (m *Maintenance) ScanRehost(ctx context.Context, limit int, missingOnly bool) (*ScanResult, error) {
	records, err := m.records.ListForRehost(ctx, m.durableHost, limit, missingOnly)
	if err != nil {
		return nil, fmt.Errorf("list records for rehost: %w", err)
	}
	return m.enqueueAll(ctx, m.rehost, records, func(rec domain.CatalogRecord) queue.Payload {
		source := rec.AssetURL
		if source == "" || rec.AssetHost == m.durableHost {
			source = rec.SourceURL
		}
		return queue.Payload{SourceURL: source}
	})
}

func (m *Maintenance) enqueueAll(ctx context.Context, q JobQueue, records []domain.CatalogRecord, payload func(domain.CatalogRecord) queue.Payload) (*ScanResult, error) {
	start := time.Now()
	result := &ScanResult{Queue: string(q.Name()), Scanned: len(records)}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		created, err := q.Enqueue(ctx, rec.ID, payload(rec), ReasonScan)
		if err != nil {
			result.Failed++
			logger.With(logger.Fields{
				logger.FieldQueue:    result.Queue,
				logger.FieldRecordID: rec.ID,
			}).Error(ctx, "Failed to enqueue: %v", err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	logger.With(logger.Fields{
		logger.FieldQueue: result.Queue,
		"created":         result.Created,
		"updated":         result.Updated,
		"failed":          result.Failed,
	}).WithCount(result.Scanned).WithDuration(start).Info(ctx, "Maintenance scan completed")
	return result, nil
}
