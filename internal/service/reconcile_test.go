package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/repository"
)

func inceptionExternal() *domain.ExternalRecord {
	return &domain.ExternalRecord{
		ID:           27205,
		Title:        "Inception",
		Overview:     "A thief who steals corporate secrets through dream-sharing.",
		PosterPath:   "/poster.jpg",
		BackdropPath: "/backdrop.jpg",
		ReleaseDate:  "2010-07-15",
		VoteAverage:  8.4,
		VoteCount:    35000,
		Popularity:   90,
		Genres:       []string{"Action", "Science Fiction"},
		Runtime:      148,
	}
}

func TestBuildPatch(t *testing.T) {
	synced := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	ext := inceptionExternal()
	ext.Title = "Amélie!"

	patch := BuildPatch(ext, &domain.Video{Key: "abc", Site: "YouTube"}, synced)
	if patch.NormalizedTitle != "amelie" {
		t.Errorf("expected normalized title amelie, got %q", patch.NormalizedTitle)
	}
	if patch.ExternalID != 27205 || patch.Rating != 8.4 || patch.Runtime != 148 {
		t.Errorf("unexpected patch fields: %+v", patch)
	}
	if patch.TrailerKey != "abc" || patch.TrailerSite != "YouTube" {
		t.Errorf("expected trailer abc/YouTube, got %s/%s", patch.TrailerKey, patch.TrailerSite)
	}
	if !patch.SyncedAt.Equal(synced.Truncate(time.Microsecond)) {
		t.Errorf("expected synced at truncated to microseconds, got %v", patch.SyncedAt)
	}
}

func TestApplyPatchIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t, domain.CatalogRecord{ID: "rec-1", Title: "Inception.2010.1080p", SourceURL: "https://origin.example.com/a.jpg"})

	catalog := newFakeCatalog()
	catalog.videos[27205] = []domain.Video{{Key: "YoHD9XEInc0", Site: "YouTube", Type: "Trailer", Official: true}}
	writer := NewReconciler(env.records, catalog, true)
	writer.now = func() time.Time { return env.now }

	for i := 0; i < 2; i++ {
		if err := writer.ApplyPatch(ctx, "rec-1", inceptionExternal()); err != nil {
			t.Fatalf("ApplyPatch #%d returned error: %v", i+1, err)
		}
	}

	got, err := env.records.GetByID(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.ExternalID == nil || *got.ExternalID != 27205 {
		t.Errorf("expected external id 27205, got %v", got.ExternalID)
	}
	if got.Title != "Inception" || got.NormalizedTitle != "inception" {
		t.Errorf("expected title Inception/inception, got %q/%q", got.Title, got.NormalizedTitle)
	}
	if got.TrailerKey != "YoHD9XEInc0" {
		t.Errorf("expected trailer key, got %q", got.TrailerKey)
	}
	if len(got.Genres) != 2 {
		t.Errorf("expected 2 genres, got %v", got.Genres)
	}
	if got.SourceURL != "https://origin.example.com/a.jpg" {
		t.Errorf("expected source url untouched, got %q", got.SourceURL)
	}
	if got.MetadataSyncedAt == nil || !got.MetadataSyncedAt.Equal(env.now) {
		t.Errorf("expected synced at %v, got %v", env.now, got.MetadataSyncedAt)
	}
}

func TestApplyPatchMissingRecord(t *testing.T) {
	env := newTestEnv(t)
	writer := NewReconciler(env.records, nil, false)
	err := writer.ApplyPatch(context.Background(), "missing", inceptionExternal())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCollapseDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t,
		domain.CatalogRecord{ID: "b", Title: "B", ExternalID: int64Ptr(603)},
		domain.CatalogRecord{ID: "a", Title: "A", ExternalID: int64Ptr(603), PosterPath: "/a.jpg", Overview: "overview", VoteCount: 100},
		domain.CatalogRecord{ID: "c", Title: "C", ExternalID: int64Ptr(603), Overview: "overview", VoteCount: 5},
		domain.CatalogRecord{ID: "solo", Title: "Solo", ExternalID: int64Ptr(1)},
		domain.CatalogRecord{ID: "tie-1", Title: "Tie", ExternalID: int64Ptr(2), Overview: "x"},
		domain.CatalogRecord{ID: "tie-2", Title: "Tie", ExternalID: int64Ptr(2), Overview: "y"},
	)

	writer := NewReconciler(env.records, nil, false)
	result, err := writer.CollapseDuplicates(ctx)
	if err != nil {
		t.Fatalf("CollapseDuplicates returned error: %v", err)
	}
	if result.Groups != 2 {
		t.Errorf("expected 2 groups, got %d", result.Groups)
	}
	assertIDs(t, "survivors", result.Survivors, []string{"tie-1", "a"})
	assertIDs(t, "removed", result.Removed, []string{"tie-2", "b", "c"})

	for _, id := range []string{"a", "solo", "tie-1"} {
		if _, err := env.records.GetByID(ctx, id); err != nil {
			t.Errorf("expected %s to survive, got %v", id, err)
		}
	}

	again, err := writer.CollapseDuplicates(ctx)
	if err != nil || again.Groups != 0 {
		t.Errorf("expected second run to be a no-op, got %+v, %v", again, err)
	}
}

// failingDeletes rejects deletes for the listed ids.
type failingDeletes struct {
	*repository.CatalogRepository
	fail map[string]bool
}

func (f *failingDeletes) Delete(ctx context.Context, id string) error {
	if f.fail[id] {
		return errors.New("delete refused")
	}
	return f.CatalogRepository.Delete(ctx, id)
}

func TestCollapseDuplicatesPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t,
		domain.CatalogRecord{ID: "x-keep", Title: "X", ExternalID: int64Ptr(10), Overview: "o"},
		domain.CatalogRecord{ID: "x-drop", Title: "X", ExternalID: int64Ptr(10)},
		domain.CatalogRecord{ID: "y-keep", Title: "Y", ExternalID: int64Ptr(20), Overview: "o"},
		domain.CatalogRecord{ID: "y-drop", Title: "Y", ExternalID: int64Ptr(20)},
	)

	store := &failingDeletes{CatalogRepository: env.records, fail: map[string]bool{"x-drop": true}}
	result, err := NewReconciler(store, nil, false).CollapseDuplicates(ctx)
	if err == nil {
		t.Fatal("expected joined error for the failing group")
	}
	assertIDs(t, "removed", result.Removed, []string{"y-drop"})
	if _, err := env.records.GetByID(ctx, "y-drop"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected y-drop deleted despite the other group failing, got %v", err)
	}
	if _, err := env.records.GetByID(ctx, "x-drop"); err != nil {
		t.Errorf("expected x-drop kept after failed delete, got %v", err)
	}
}

func assertIDs(t *testing.T, label string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %v, got %v", label, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s: expected %v, got %v", label, want, got)
			return
		}
	}
}
