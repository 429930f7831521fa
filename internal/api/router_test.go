package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/timmy/catalogsync/internal/api/handler"
	"github.com/timmy/catalogsync/internal/config"
	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/queue"
	"github.com/timmy/catalogsync/internal/repository"
	"github.com/timmy/catalogsync/internal/service"
	"github.com/timmy/catalogsync/internal/source"
)

const testToken = "s3cret"

// emptyCatalog finds nothing, so every metadata job ends unmatched.
type emptyCatalog struct{}

func (emptyCatalog) SearchByTitle(context.Context, string, int) ([]domain.SearchResult, error) {
	return nil, nil
}

func (emptyCatalog) FetchByID(context.Context, int64) (*domain.ExternalRecord, error) {
	return nil, source.ErrNotFound
}

func (emptyCatalog) FetchAlternativeTitles(context.Context, int64) ([]string, error) {
	return nil, nil
}

func (emptyCatalog) FetchVideos(context.Context, int64) ([]domain.Video, error) {
	return nil, nil
}

type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	records *repository.CatalogRepository
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Admin:  config.AdminConfig{Token: token, Header: "X-Admin-Token"},
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			Path:         filepath.Join(t.TempDir(), "api.db"),
			MaxOpenConns: 1,
			AutoMigrate:  true,
		},
		Matcher: config.MatcherConfig{MinConfidence: 0.62, DistanceTolerance: 0.6, LoosenedTolerance: 0.8, AltTitleFloor: 0.9},
	}
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		t.Fatalf("InitDB returned error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	records := repository.NewCatalogRepository(db)
	metadata := queue.NewStore(db, domain.QueueMetadataSync, queue.DefaultPolicy())
	rehost := queue.NewStore(db, domain.QueueAssetRehost, queue.DefaultPolicy())
	writer := service.NewReconciler(records, emptyCatalog{}, false)

	deps := handler.Deps{
		Queues: map[domain.QueueName]handler.JobQueue{
			domain.QueueMetadataSync: metadata,
			domain.QueueAssetRehost:  rehost,
		},
		Maintenance: service.NewMaintenance(records, metadata, rehost, "cdn.example.com"),
		Sync:        service.NewSyncWorker(metadata, records, service.NewMatcher(emptyCatalog{}, cfg.Matcher), writer, time.Second),
		Reconciler:  writer,
		Records:     records,
		BatchSize:   10,
	}
	return &testServer{router: SetupRouter(cfg, db, deps), db: db, records: records}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testToken)
	w, body := s.do(t, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("expected 200 ok, got %d %v", w.Code, body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
	}{
		{"not configured", "", "anything", http.StatusForbidden},
		{"missing token", testToken, "", http.StatusUnauthorized},
		{"wrong token", testToken, "s3cre", http.StatusUnauthorized},
		{"valid token", testToken, testToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.configured)
			w, _ := s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/enqueue",
				map[string]string{"target_id": "rec-1"}, tt.provided)
			if w.Code != tt.wantStatus && !(tt.wantStatus == http.StatusOK && w.Code == http.StatusCreated) {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var n int64
			s.db.Model(&domain.QueueJob{}).Count(&n)
			wantJobs := int64(0)
			if tt.wantStatus == http.StatusOK {
				wantJobs = 1
			}
			if n != wantJobs {
				t.Errorf("expected %d jobs, got %d", wantJobs, n)
			}
		})
	}
}

func TestDiscreteQueueLifecycle(t *testing.T) {
	s := newTestServer(t, testToken)

	w, body := s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/enqueue",
		map[string]string{"target_id": "rec-1"}, testToken)
	if w.Code != http.StatusCreated || body["created"] != true {
		t.Fatalf("expected 201 created, got %d %v", w.Code, body)
	}
	w, body = s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/enqueue",
		map[string]string{"target_id": "rec-1"}, testToken)
	if w.Code != http.StatusOK || body["created"] != false {
		t.Fatalf("expected 200 updated, got %d %v", w.Code, body)
	}

	// Re-enqueue pushed eligibility a short delay out.
	s.db.Model(&domain.QueueJob{}).Where("1 = 1").Update("next_eligible_at", time.Now().UTC().Add(-time.Minute))

	w, body = s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/lease", nil, testToken)
	if w.Code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("expected one leased job, got %d %v", w.Code, body)
	}
	jobID := body["jobs"].([]interface{})[0].(map[string]interface{})["id"].(string)

	_, body = s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/lease", map[string]int{"limit": 5}, testToken)
	if body["count"] != float64(0) {
		t.Errorf("expected leased job not re-delivered, got %v", body)
	}

	w, body = s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/jobs/"+jobID+"/reschedule",
		map[string]string{"reason": "no_match", "detail": "nothing close"}, testToken)
	if w.Code != http.StatusOK || body["outcome"] != "rescheduled" || body["try_count"] != float64(1) {
		t.Fatalf("expected rescheduled at try 1, got %d %v", w.Code, body)
	}

	w, body = s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/jobs/"+jobID+"/reschedule",
		map[string]interface{}{"reason": "no_match", "try_count": 8}, testToken)
	if w.Code != http.StatusOK || body["outcome"] != "dropped" {
		t.Fatalf("expected dropped, got %d %v", w.Code, body)
	}

	_, body = s.do(t, http.MethodGet, "/api/v1/admin/dropped?pipeline=metadata", nil, testToken)
	if body["count"] != float64(1) {
		t.Errorf("expected one dropped job, got %v", body)
	}

	w, _ = s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/jobs/"+jobID+"/reschedule",
		map[string]string{"reason": "no_match"}, testToken)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for dropped job, got %d", w.Code)
	}
}

func TestRescheduleWithTerminalReason(t *testing.T) {
	s := newTestServer(t, testToken)

	enqueueAndLease := func(target string) string {
		s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/enqueue",
			map[string]string{"target_id": target}, testToken)
		s.db.Model(&domain.QueueJob{}).Where("target_record_id = ?", target).
			Update("next_eligible_at", time.Now().UTC().Add(-time.Minute))
		_, body := s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/lease", nil, testToken)
		jobs := body["jobs"].([]interface{})
		if len(jobs) != 1 {
			t.Fatalf("expected one leased job for %s, got %v", target, body)
		}
		return jobs[0].(map[string]interface{})["id"].(string)
	}

	tests := []struct {
		target  string
		reason  string
		outcome string
	}{
		{"rec-orphan", "orphaned", "completed"},
		{"rec-stuck", "tries_exhausted", "dropped"},
	}
	for _, tt := range tests {
		jobID := enqueueAndLease(tt.target)
		w, body := s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/jobs/"+jobID+"/reschedule",
			map[string]string{"reason": tt.reason}, testToken)
		if w.Code != http.StatusOK || body["outcome"] != tt.outcome {
			t.Errorf("reason %s: expected %s, got %d %v", tt.reason, tt.outcome, w.Code, body)
		}
		if _, ok := body["next_eligible_at"]; ok {
			t.Errorf("reason %s: expected no reschedule time, got %v", tt.reason, body)
		}
		w, _ = s.do(t, http.MethodPost, "/api/v1/admin/queues/metadata/jobs/"+jobID+"/reschedule",
			map[string]string{"reason": "no_match"}, testToken)
		if w.Code != http.StatusNotFound {
			t.Errorf("reason %s: expected job gone, got %d", tt.reason, w.Code)
		}
	}

	_, body := s.do(t, http.MethodGet, "/api/v1/admin/dropped?pipeline=metadata", nil, testToken)
	if body["count"] != float64(1) {
		t.Errorf("expected only the exhausted job in the ledger, got %v", body)
	}
}

func TestUnknownPipeline(t *testing.T) {
	s := newTestServer(t, testToken)
	w, _ := s.do(t, http.MethodPost, "/api/v1/admin/queues/bogus/lease", nil, testToken)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/api/v1/admin/worker", map[string]string{"pipeline": "bogus"}, testToken)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRehostEndpointsUnavailableWithoutStorage(t *testing.T) {
	s := newTestServer(t, testToken)
	w, _ := s.do(t, http.MethodPost, "/api/v1/admin/worker", map[string]string{"pipeline": "rehost"}, testToken)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for rehost worker, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/api/v1/admin/rehost/complete", map[string]interface{}{"job_id": "x", "success": true}, testToken)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for rehost complete, got %d", w.Code)
	}
}

func TestMaintenanceWorkerAndDedupe(t *testing.T) {
	s := newTestServer(t, testToken)
	ctx := context.Background()
	ext := int64(603)
	for _, rec := range []domain.CatalogRecord{
		{ID: "a", Title: "The Matrix", ExternalID: &ext, Overview: "o", PosterPath: "/p.jpg"},
		{ID: "b", Title: "Matrix", ExternalID: &ext},
		{ID: "c", Title: "Home Video"},
	} {
		rec := rec
		if err := s.records.Create(ctx, &rec); err != nil {
			t.Fatalf("create %s: %v", rec.ID, err)
		}
	}

	w, body := s.do(t, http.MethodPost, "/api/v1/admin/maintenance",
		map[string]interface{}{"pipeline": "metadata", "missing_only": true}, testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", w.Code, body)
	}
	result := body["results"].([]interface{})[0].(map[string]interface{})
	if result["created"] != float64(2) {
		t.Errorf("expected 2 created jobs, got %v", result)
	}

	w, body = s.do(t, http.MethodPost, "/api/v1/admin/worker", map[string]string{"pipeline": "metadata"}, testToken)
	if w.Code != http.StatusOK || body["leased"] != float64(2) {
		t.Fatalf("expected batch of 2, got %d %v", w.Code, body)
	}

	w, body = s.do(t, http.MethodPost, "/api/v1/admin/dedupe", nil, testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", w.Code, body)
	}
	removed := body["result"].(map[string]interface{})["removed"].([]interface{})
	if len(removed) != 1 || removed[0] != "b" {
		t.Errorf("expected b removed, got %v", removed)
	}
}

func TestRecordLookup(t *testing.T) {
	s := newTestServer(t, testToken)
	ctx := context.Background()
	for _, rec := range []domain.CatalogRecord{
		{ID: "r1", Title: "Inception"},
		{ID: "r2", Title: "inception!"},
		{ID: "r3", Title: "Interstellar"},
	} {
		rec := rec
		if err := s.records.Create(ctx, &rec); err != nil {
			t.Fatalf("create %s: %v", rec.ID, err)
		}
	}

	w, body := s.do(t, http.MethodGet, "/api/v1/admin/records?title=Inception.2010.1080p.BluRay", nil, testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", w.Code, body)
	}
	if body["count"] != float64(2) || body["key"] != "inception" {
		t.Errorf("expected 2 records under key inception, got %v", body)
	}

	w, _ = s.do(t, http.MethodGet, "/api/v1/admin/records", nil, testToken)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without title, got %d", w.Code)
	}

	w, body = s.do(t, http.MethodGet, "/api/v1/admin/records/r3", nil, testToken)
	if w.Code != http.StatusOK || body["title"] != "Interstellar" {
		t.Errorf("expected r3, got %d %v", w.Code, body)
	}

	w, _ = s.do(t, http.MethodGet, "/api/v1/admin/records/missing", nil, testToken)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
