package domain

import "time"

// CatalogRecord is a media item in the local catalog.
// ID is the stable local identity; ExternalID points into the external metadata catalog once matched.
type CatalogRecord struct {
	ID               string      `gorm:"type:text;primaryKey" json:"id"`
	Title            string      `gorm:"type:text;not null" json:"title"`
	ExternalID       *int64      `gorm:"index:idx_catalog_external" json:"external_id,omitempty"`
	NormalizedTitle  string      `gorm:"type:text;index:idx_catalog_normalized" json:"normalized_title,omitempty"`
	Overview         string      `gorm:"type:text" json:"overview,omitempty"`
	PosterPath       string      `gorm:"type:text" json:"poster_path,omitempty"`
	BackdropPath     string      `gorm:"type:text" json:"backdrop_path,omitempty"`
	ReleaseDate      string      `gorm:"type:text" json:"release_date,omitempty"`
	Rating           float64     `json:"rating"`
	VoteCount        int64       `json:"vote_count"`
	Popularity       float64     `json:"popularity"`
	Genres           StringArray `gorm:"type:text" json:"genres"`
	Runtime          int         `json:"runtime"`
	TrailerKey       string      `gorm:"type:text" json:"trailer_key,omitempty"`
	TrailerSite      string      `gorm:"type:text" json:"trailer_site,omitempty"`
	SourceURL        string      `gorm:"type:text" json:"source_url,omitempty"`
	AssetURL         string      `gorm:"type:text" json:"asset_url,omitempty"`
	AssetHost        string      `gorm:"type:text;index:idx_catalog_asset_host" json:"asset_host,omitempty"`
	OriginalAssetURL string      `gorm:"type:text" json:"original_asset_url,omitempty"`
	MetadataSyncedAt *time.Time  `json:"metadata_synced_at,omitempty"`
	AssetRehostedAt  *time.Time  `json:"asset_rehosted_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// TableName returns the database table name for CatalogRecord.
func (CatalogRecord) TableName() string {
	return "catalog_records"
}

// HasArtwork reports whether any artwork path is present.
func (r *CatalogRecord) HasArtwork() bool {
	return r.PosterPath != "" || r.BackdropPath != ""
}

// HasOverview reports whether the record carries a non-empty overview.
func (r *CatalogRecord) HasOverview() bool {
	return r.Overview != ""
}

// CompletenessScore ranks members of a duplicate group; the highest score survives.
func (r *CatalogRecord) CompletenessScore() float64 {
	score := 0.001 * float64(r.VoteCount)
	if r.HasArtwork() {
		score++
	}
	if r.HasOverview() {
		score++
	}
	return score
}

// CatalogPatch is the column set written by the reconciliation writer.
// Identity columns (id, created_at) are never part of a patch.
type CatalogPatch struct {
	ExternalID      int64
	Title           string
	NormalizedTitle string
	Overview        string
	PosterPath      string
	BackdropPath    string
	ReleaseDate     string
	Rating          float64
	VoteCount       int64
	Popularity      float64
	Genres          StringArray
	Runtime         int
	TrailerKey      string
	TrailerSite     string
	SyncedAt        time.Time
}

// Columns returns the patch as a column map so zero values are written too.
func (p *CatalogPatch) Columns() map[string]interface{} {
	genres := p.Genres
	if genres == nil {
		genres = StringArray{}
	}
	return map[string]interface{}{
		"external_id":        p.ExternalID,
		"title":              p.Title,
		"normalized_title":   p.NormalizedTitle,
		"overview":           p.Overview,
		"poster_path":        p.PosterPath,
		"backdrop_path":      p.BackdropPath,
		"release_date":       p.ReleaseDate,
		"rating":             p.Rating,
		"vote_count":         p.VoteCount,
		"popularity":         p.Popularity,
		"genres":             genres,
		"runtime":            p.Runtime,
		"trailer_key":        p.TrailerKey,
		"trailer_site":       p.TrailerSite,
		"metadata_synced_at": p.SyncedAt,
	}
}
