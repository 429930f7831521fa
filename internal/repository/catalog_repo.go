package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/textnorm"
)

// ErrNotFound is returned when a catalog row does not exist.
var ErrNotFound = errors.New("record not found")

// CatalogRepository reads and writes catalog rows.
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new CatalogRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *CatalogRepository: repository instance bound to db.
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Create inserts a new catalog record, filling the normalized-title cache
// when the caller left it empty.
func (r *CatalogRepository) Create(ctx context.Context, record *domain.CatalogRecord) error {
	if record.NormalizedTitle == "" {
		record.NormalizedTitle = textnorm.Normalize(record.Title)
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID retrieves a record by its local ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: local record ID.
// Returns:
//   - *domain.CatalogRecord: record if found.
//   - error: ErrNotFound when missing, otherwise the query error.
func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*domain.CatalogRecord, error) {
	var record domain.CatalogRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByNormalizedTitle lists records whose normalized-title cache equals key.
func (r *CatalogRepository) FindByNormalizedTitle(ctx context.Context, key string, limit int) ([]domain.CatalogRecord, error) {
	return findOrdered(r.db.WithContext(ctx).Where("normalized_title = ?", key), limit)
}

// ApplyPatch writes a metadata patch. Last write wins.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: local record ID.
//   - patch: columns to write; identity columns are never included.
// Returns:
//   - error: ErrNotFound when the row is gone, otherwise the update error.
func (r *CatalogRepository) ApplyPatch(ctx context.Context, id string, patch *domain.CatalogPatch) error {
	result := r.db.WithContext(ctx).
		Model(&domain.CatalogRecord{}).
		Where("id = ?", id).
		Updates(patch.Columns())
	if result.Error != nil {
		return fmt.Errorf("apply patch to %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordRehost points the record at its durable asset URL. The previous
// origin URL is copied into original_asset_url only when that column is still
// empty, so repeated rehosts never overwrite the first origin.
func (r *CatalogRepository) RecordRehost(ctx context.Context, id, assetURL, assetHost, originURL string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.CatalogRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"asset_url":  assetURL,
			"asset_host": assetHost,
			"original_asset_url": gorm.Expr(
				"CASE WHEN original_asset_url IS NULL OR original_asset_url = '' THEN ? ELSE original_asset_url END",
				originURL,
			),
			"asset_rehosted_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("record rehost for %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a record. Deleting a missing row is not an error.
func (r *CatalogRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.CatalogRecord{}, "id = ?", id).Error
}

// ListForMetadataSync returns rows for the metadata maintenance scan.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum rows, 0 for no limit.
//   - missingOnly: only rows without an external id, overview or artwork.
// Returns:
//   - []domain.CatalogRecord: rows in creation order.
//   - error: non-nil if the query fails.
func (r *CatalogRepository) ListForMetadataSync(ctx context.Context, limit int, missingOnly bool) ([]domain.CatalogRecord, error) {
	query := r.db.WithContext(ctx).Model(&domain.CatalogRecord{})
	if missingOnly {
		query = query.Where(
			"external_id IS NULL OR overview IS NULL OR overview = '' OR ((poster_path IS NULL OR poster_path = '') AND (backdrop_path IS NULL OR backdrop_path = ''))",
		)
	}
	return findOrdered(query, limit)
}

// ListForRehost returns rows whose asset is missing or not yet on durableHost.
// With missingOnly, only rows with no asset URL at all but a known source URL.
func (r *CatalogRepository) ListForRehost(ctx context.Context, durableHost string, limit int, missingOnly bool) ([]domain.CatalogRecord, error) {
	query := r.db.WithContext(ctx).Model(&domain.CatalogRecord{})
	if missingOnly {
		query = query.Where("(asset_url IS NULL OR asset_url = '') AND source_url <> ''")
	} else {
		query = query.
			Where("((asset_url IS NULL OR asset_url = '') OR asset_host IS NULL OR asset_host <> ?)", durableHost).
			Where("(asset_url <> '' OR source_url <> '')")
	}
	return findOrdered(query, limit)
}

// DuplicateExternalIDs lists external ids shared by more than one row.
func (r *CatalogRepository) DuplicateExternalIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&domain.CatalogRecord{}).
		Where("external_id IS NOT NULL").
		Group("external_id").
		Having("COUNT(*) > 1").
		Order("external_id ASC").
		Pluck("external_id", &ids).Error
	return ids, err
}

// ListByExternalID lists every row carrying externalID, oldest first.
func (r *CatalogRepository) ListByExternalID(ctx context.Context, externalID int64) ([]domain.CatalogRecord, error) {
	var records []domain.CatalogRecord
	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	return records, err
}

func findOrdered(query *gorm.DB, limit int) ([]domain.CatalogRecord, error) {
	var records []domain.CatalogRecord
	query = query.Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
