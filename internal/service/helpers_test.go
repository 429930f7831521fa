package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/catalogsync/internal/config"
	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/queue"
	"github.com/timmy/catalogsync/internal/repository"
	"github.com/timmy/catalogsync/internal/source"
	"github.com/timmy/catalogsync/internal/storage"
)

func testMatcherConfig() config.MatcherConfig {
	return config.MatcherConfig{
		MinConfidence:     0.62,
		DistanceTolerance: 0.6,
		LoosenedTolerance: 0.8,
		AltTitleFloor:     0.9,
		YearPenalty:       0.05,
	}
}

type searchCall struct {
	title string
	year  int
}

// fakeCatalog is an in-memory MetadataCatalog.
type fakeCatalog struct {
	mu         sync.Mutex
	results    map[string][]domain.SearchResult
	records    map[int64]*domain.ExternalRecord
	altTitles  map[int64][]string
	videos     map[int64][]domain.Video
	searchErr  error
	fetchErr   error
	searches   []searchCall
	fetches    []int64
	altLookups int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		results:   map[string][]domain.SearchResult{},
		records:   map[int64]*domain.ExternalRecord{},
		altTitles: map[int64][]string{},
		videos:    map[int64][]domain.Video{},
	}
}

func (f *fakeCatalog) addRecord(rec *domain.ExternalRecord) {
	f.records[rec.ID] = rec
}

func (f *fakeCatalog) SearchByTitle(_ context.Context, title string, year int) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, searchCall{title: title, year: year})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results[title], nil
}

func (f *fakeCatalog) FetchByID(_ context.Context, id int64) (*domain.ExternalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, id)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, source.ErrNotFound
	}
	return rec, nil
}

func (f *fakeCatalog) FetchAlternativeTitles(_ context.Context, id int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.altLookups++
	return f.altTitles[id], nil
}

func (f *fakeCatalog) FetchVideos(_ context.Context, id int64) ([]domain.Video, error) {
	return f.videos[id], nil
}

// fakeStore is an in-memory DurableStore.
type fakeStore struct {
	objects map[string]bool
	statErr error
}

func (s *fakeStore) Stat(_ context.Context, key string) (*storage.ObjectInfo, error) {
	if s.statErr != nil {
		return nil, s.statErr
	}
	if !s.objects[key] {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.ObjectInfo{Key: key, Size: 1}, nil
}

func (s *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	return err == nil, nil
}

func (s *fakeStore) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func (s *fakeStore) Host() string { return "cdn.example.com" }

func (s *fakeStore) ObjectKey(recordID, sourceURL string) string {
	return storage.ObjectKey("assets", recordID, sourceURL)
}

type fakeDispatcher struct {
	sent []*Descriptor
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, desc *Descriptor) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, desc)
	return nil
}

type testEnv struct {
	db       *gorm.DB
	records  *repository.CatalogRepository
	metadata *queue.Store
	rehost   *queue.Store
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "catalog.db"),
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("InitDB returned error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	return &testEnv{
		db:       db,
		records:  repository.NewCatalogRepository(db),
		metadata: queue.NewStore(db, domain.QueueMetadataSync, queue.DefaultPolicy(), queue.WithClock(clock)),
		rehost:   queue.NewStore(db, domain.QueueAssetRehost, queue.DefaultPolicy(), queue.WithClock(clock)),
		now:      now,
	}
}

func (e *testEnv) seed(t *testing.T, records ...domain.CatalogRecord) {
	t.Helper()
	for i := range records {
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = e.now.Add(time.Duration(i-len(records)) * time.Minute)
		}
		if err := e.records.Create(context.Background(), &records[i]); err != nil {
			t.Fatalf("seed %s: %v", records[i].ID, err)
		}
	}
}

func (e *testEnv) enqueue(t *testing.T, q *queue.Store, targetID string, payload queue.Payload) string {
	t.Helper()
	if _, err := q.Enqueue(context.Background(), targetID, payload, "scan"); err != nil {
		t.Fatalf("enqueue %s: %v", targetID, err)
	}
	var job domain.QueueJob
	if err := e.db.Where("queue = ? AND target_record_id = ?", q.Name(), targetID).First(&job).Error; err != nil {
		t.Fatalf("load job for %s: %v", targetID, err)
	}
	return job.ID
}

func (e *testEnv) setTryCount(t *testing.T, jobID string, tries int) {
	t.Helper()
	if err := e.db.Model(&domain.QueueJob{}).Where("id = ?", jobID).Update("try_count", tries).Error; err != nil {
		t.Fatalf("set try count: %v", err)
	}
}

func (e *testEnv) job(t *testing.T, jobID string) *domain.QueueJob {
	t.Helper()
	var job domain.QueueJob
	err := e.db.Where("id = ?", jobID).Limit(1).Find(&job).Error
	if err != nil {
		t.Fatalf("load job %s: %v", jobID, err)
	}
	if job.ID == "" {
		return nil
	}
	return &job
}

func int64Ptr(v int64) *int64 { return &v }
