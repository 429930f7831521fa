package source

import (
	"context"
	"errors"

	"github.com/timmy/catalogsync/internal/domain"
)

// ErrNotFound is returned when the external catalog has no record for an id.
var ErrNotFound = errors.New("external record not found")

// MetadataCatalog defines the external metadata catalog consumed by reconciliation.
type MetadataCatalog interface {
	// SearchByTitle runs a free-text title search.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - title: query title, already cleaned by the caller.
	//   - year: release year filter, 0 for none.
	// Returns:
	//   - []domain.SearchResult: candidates in the catalog's relevance order.
	//   - error: non-nil on transport or decoding failure.
	SearchByTitle(ctx context.Context, title string, year int) ([]domain.SearchResult, error)

	// FetchByID fetches a full record by external id.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - id: external catalog id.
	// Returns:
	//   - *domain.ExternalRecord: the record.
	//   - error: ErrNotFound when the id is unknown, otherwise transport/decoding failures.
	FetchByID(ctx context.Context, id int64) (*domain.ExternalRecord, error)

	// FetchAlternativeTitles lists alternative titles for a record.
	FetchAlternativeTitles(ctx context.Context, id int64) ([]string, error)

	// FetchVideos lists videos (trailers, teasers, clips) attached to a record.
	FetchVideos(ctx context.Context, id int64) ([]domain.Video, error)
}
