package service

import (
	"context"
	"testing"

	"github.com/timmy/catalogsync/internal/domain"
)

func TestMaintenanceScanMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t,
		domain.CatalogRecord{ID: "bare", Title: "Heat"},
		domain.CatalogRecord{ID: "complete", Title: "Heat", ExternalID: int64Ptr(949), Overview: "o", PosterPath: "/p.jpg"},
	)
	m := NewMaintenance(env.records, env.metadata, env.rehost, "cdn.example.com")

	result, err := m.Scan(ctx, domain.QueueMetadataSync, 0, true)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result.Scanned != 1 || result.Created != 1 || result.Updated != 0 {
		t.Errorf("expected 1 scanned/created, got %+v", result)
	}

	result, err = m.Scan(ctx, domain.QueueMetadataSync, 0, false)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result.Scanned != 2 || result.Created != 1 || result.Updated != 1 {
		t.Errorf("expected 2 scanned, 1 created, 1 updated, got %+v", result)
	}

	var live int64
	env.db.Model(&domain.QueueJob{}).Where("queue = ?", domain.QueueMetadataSync).Count(&live)
	if live != 2 {
		t.Errorf("expected one job per record, got %d", live)
	}
}

func TestMaintenanceScanRehost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t,
		domain.CatalogRecord{ID: "origin", Title: "A", AssetURL: "https://origin.example.com/a.jpg", AssetHost: "origin.example.com"},
		domain.CatalogRecord{ID: "source-only", Title: "B", SourceURL: "https://origin.example.com/b.jpg"},
		domain.CatalogRecord{ID: "durable", Title: "C", AssetURL: "https://cdn.example.com/c.jpg", AssetHost: "cdn.example.com"},
		domain.CatalogRecord{ID: "nothing", Title: "D"},
	)
	m := NewMaintenance(env.records, env.metadata, env.rehost, "cdn.example.com")

	result, err := m.ScanRehost(ctx, 0, false)
	if err != nil {
		t.Fatalf("ScanRehost returned error: %v", err)
	}
	if result.Scanned != 2 || result.Created != 2 {
		t.Errorf("expected 2 scanned and created, got %+v", result)
	}

	var jobs []domain.QueueJob
	env.db.Where("queue = ?", domain.QueueAssetRehost).Order("target_record_id").Find(&jobs)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 rehost jobs, got %d", len(jobs))
	}
	if jobs[0].TargetRecordID != "origin" || jobs[0].SourceURL != "https://origin.example.com/a.jpg" {
		t.Errorf("expected origin job with asset url, got %+v", jobs[0])
	}
	if jobs[1].TargetRecordID != "source-only" || jobs[1].SourceURL != "https://origin.example.com/b.jpg" {
		t.Errorf("expected source-only job with source url, got %+v", jobs[1])
	}
}

func TestMaintenanceUnknownQueue(t *testing.T) {
	env := newTestEnv(t)
	m := NewMaintenance(env.records, env.metadata, env.rehost, "")
	if _, err := m.Scan(context.Background(), domain.QueueName("bogus"), 10, false); err == nil {
		t.Error("expected error for unknown queue")
	}
}
