package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/logger"
	"github.com/timmy/catalogsync/internal/source"
	"github.com/timmy/catalogsync/internal/textnorm"
)

// CatalogStore is the persistence the reconciliation services need.
// *repository.CatalogRepository implements it.
type CatalogStore interface {
	GetByID(ctx context.Context, id string) (*domain.CatalogRecord, error)
	ApplyPatch(ctx context.Context, id string, patch *domain.CatalogPatch) error
	RecordRehost(ctx context.Context, id, assetURL, assetHost, originURL string, at time.Time) error
	Delete(ctx context.Context, id string) error
	ListForMetadataSync(ctx context.Context, limit int, missingOnly bool) ([]domain.CatalogRecord, error)
	ListForRehost(ctx context.Context, durableHost string, limit int, missingOnly bool) ([]domain.CatalogRecord, error)
	DuplicateExternalIDs(ctx context.Context) ([]int64, error)
	ListByExternalID(ctx context.Context, externalID int64) ([]domain.CatalogRecord, error)
}

// Reconciler writes matched external metadata back onto catalog records and
// collapses records that resolved to the same external id.
type Reconciler struct {
	records       CatalogStore
	catalog       source.MetadataCatalog
	fetchTrailers bool
	now           func() time.Time
}

// NewReconciler creates a Reconciler. catalog may be nil when trailers are
// not fetched.
func NewReconciler(records CatalogStore, catalog source.MetadataCatalog, fetchTrailers bool) *Reconciler {
	return &Reconciler{
		records:       records,
		catalog:       catalog,
		fetchTrailers: fetchTrailers && catalog != nil,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// BuildPatch maps an external record onto the catalog columns it owns.
// trailer may be nil, which clears any stored trailer.
func BuildPatch(external *domain.ExternalRecord, trailer *domain.Video, syncedAt time.Time) *domain.CatalogPatch {
	patch := &domain.CatalogPatch{
		ExternalID:      external.ID,
		Title:           external.Title,
		NormalizedTitle: textnorm.Normalize(external.Title),
		Overview:        external.Overview,
		PosterPath:      external.PosterPath,
		BackdropPath:    external.BackdropPath,
		ReleaseDate:     external.ReleaseDate,
		Rating:          external.VoteAverage,
		VoteCount:       external.VoteCount,
		Popularity:      external.Popularity,
		Genres:          domain.StringArray(external.Genres),
		Runtime:         external.Runtime,
		SyncedAt:        syncedAt.UTC().Truncate(time.Microsecond),
	}
	if trailer != nil {
		patch.TrailerKey = trailer.Key
		patch.TrailerSite = trailer.Site
	}
	return patch
}

// ApplyPatch writes external metadata onto a record. Writing the same
// snapshot twice leaves the same row state apart from the sync timestamp.
// Returns repository.ErrNotFound when the record no longer exists.
func (r *Reconciler) ApplyPatch(ctx context.Context, recordID string, external *domain.ExternalRecord) error {
	var trailer *domain.Video
	if r.fetchTrailers {
		videos, err := r.catalog.FetchVideos(ctx, external.ID)
		if err != nil {
			logger.With(logger.Fields{
				logger.FieldRecordID: recordID,
			}).Warn(ctx, "Videos unavailable for %d, keeping patch without trailer: %v", external.ID, err)
		} else {
			trailer = SelectTrailer(videos)
		}
	}
	return r.records.ApplyPatch(ctx, recordID, BuildPatch(external, trailer, r.now()))
}

// CollapseResult reports a duplicate collapse run.
type CollapseResult struct {
	Groups    int      `json:"groups"`
	Survivors []string `json:"survivors"`
	Removed   []string `json:"removed"`
	Messages  []string `json:"messages,omitempty"`
}

// CollapseDuplicates keeps one record per external id and deletes the rest.
// The survivor has the highest completeness score; ties go to the earliest
// created record. Groups are independent: a failing group is reported in the
// joined error and the others still commit.
func (r *Reconciler) CollapseDuplicates(ctx context.Context) (*CollapseResult, error) {
	start := time.Now()
	externalIDs, err := r.records.DuplicateExternalIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list duplicate external ids: %w", err)
	}

	result := &CollapseResult{Survivors: []string{}, Removed: []string{}}
	var errs []error
	for _, externalID := range externalIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		survivor, removed, err := r.collapseGroup(ctx, externalID)
		if survivor != "" {
			result.Groups++
			result.Survivors = append(result.Survivors, survivor)
			result.Removed = append(result.Removed, removed...)
			result.Messages = append(result.Messages,
				fmt.Sprintf("external id %d: kept %s, removed %d", externalID, survivor, len(removed)))
		}
		if err != nil {
			errs = append(errs, err)
			result.Messages = append(result.Messages, err.Error())
		}
	}

	logger.With(logger.Fields{
		"groups":  result.Groups,
		"removed": len(result.Removed),
		"failed":  len(errs),
	}).WithDuration(start).Info(ctx, "Duplicate collapse completed")

	return result, errors.Join(errs...)
}

func (r *Reconciler) collapseGroup(ctx context.Context, externalID int64) (string, []string, error) {
	records, err := r.records.ListByExternalID(ctx, externalID)
	if err != nil {
		return "", nil, fmt.Errorf("external id %d: list records: %w", externalID, err)
	}
	if len(records) < 2 {
		return "", nil, nil
	}

	best := pickSurvivor(records)
	var removed []string
	var errs []error
	for _, rec := range records {
		if rec.ID == best.ID {
			continue
		}
		if err := r.records.Delete(ctx, rec.ID); err != nil {
			errs = append(errs, fmt.Errorf("external id %d: delete %s: %w", externalID, rec.ID, err))
			continue
		}
		removed = append(removed, rec.ID)
	}
	return best.ID, removed, errors.Join(errs...)
}

// pickSurvivor expects records ordered by creation time, then id.
func pickSurvivor(records []domain.CatalogRecord) *domain.CatalogRecord {
	best := &records[0]
	for i := 1; i < len(records); i++ {
		if records[i].CompletenessScore() > best.CompletenessScore() {
			best = &records[i]
		}
	}
	return best
}
