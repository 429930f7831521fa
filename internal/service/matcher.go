package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/catalogsync/internal/config"
	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/logger"
	"github.com/timmy/catalogsync/internal/source"
	"github.com/timmy/catalogsync/internal/textnorm"
)

// Resolver resolves a catalog record to an external metadata record.
type Resolver interface {
	Resolve(ctx context.Context, record *domain.CatalogRecord, tryCount int, force bool) (*domain.Match, error)
}

// Matcher resolves catalog records against an external metadata catalog.
// Each call runs the single ladder stage selected by the job's try count, so
// retries escalate from strict to lenient queries.
type Matcher struct {
	catalog source.MetadataCatalog
	cfg     config.MatcherConfig
}

// NewMatcher creates a new Matcher.
// Parameters:
//   - catalog: external metadata catalog client.
//   - cfg: confidence threshold, distance tolerances and year penalty.
//
// Returns:
//   - *Matcher: ready to resolve records.
func NewMatcher(catalog source.MetadataCatalog, cfg config.MatcherConfig) *Matcher {
	return &Matcher{catalog: catalog, cfg: cfg}
}

// Resolve finds the external record for a catalog record.
// A record that already carries an external id is fetched directly unless
// force is set. Otherwise the ladder stage for tryCount is searched and the
// best candidate accepted when it reaches the minimum confidence.
//
// Errors are *domain.Failure values: Unmatched when no candidate is good
// enough, Transport when the catalog could not be reached.
func (m *Matcher) Resolve(ctx context.Context, record *domain.CatalogRecord, tryCount int, force bool) (*domain.Match, error) {
	if record.ExternalID != nil && !force {
		external, err := m.catalog.FetchByID(ctx, *record.ExternalID)
		switch {
		case err == nil:
			return &domain.Match{Record: external, Direct: true}, nil
		case errors.Is(err, source.ErrNotFound):
			logger.With(logger.Fields{
				logger.FieldRecordID: record.ID,
			}).Warn(ctx, "External id %d no longer exists, falling back to search", *record.ExternalID)
		default:
			return nil, domain.NewTransport(fmt.Errorf("fetch external %d: %w", *record.ExternalID, err))
		}
	}

	stage := stageFor(tryCount)
	query := ladder[stage].Build(record.Title, m.cfg)
	if query.Title == "" {
		query.Title = strings.TrimSpace(record.Title)
	}
	// A blank title has nothing to search for.
	if query.Title == "" {
		return nil, domain.NewUnmatched(stage, 0)
	}

	results, err := m.catalog.SearchByTitle(ctx, query.Title, query.Year)
	if err != nil {
		return nil, domain.NewTransport(fmt.Errorf("search %q: %w", query.Title, err))
	}

	candidates := rankCandidates(query, results, m.cfg.YearPenalty)
	if len(candidates) == 0 {
		return nil, domain.NewUnmatched(stage, 0)
	}

	best := candidates[0]
	if !best.Exact && best.Confidence < m.cfg.AltTitleFloor {
		if m.matchesAlternativeTitle(ctx, best.ExternalID, query.Title) {
			best.Confidence = m.cfg.AltTitleFloor
		}
	}

	logger.With(logger.Fields{
		logger.FieldRecordID:   record.ID,
		logger.FieldStage:      ladder[stage].Name,
		logger.FieldConfidence: best.Confidence,
		logger.FieldCount:      len(results),
	}).Debug(ctx, "Ranked candidates for %q", query.Title)

	if best.Confidence < m.cfg.MinConfidence {
		return nil, domain.NewUnmatched(stage, best.Confidence)
	}

	external, err := m.catalog.FetchByID(ctx, best.ExternalID)
	if err != nil {
		return nil, domain.NewTransport(fmt.Errorf("fetch external %d: %w", best.ExternalID, err))
	}
	return &domain.Match{Record: external, Candidate: &best, Stage: stage}, nil
}

// matchesAlternativeTitle is best-effort; lookup errors count as no match.
func (m *Matcher) matchesAlternativeTitle(ctx context.Context, externalID int64, title string) bool {
	titles, err := m.catalog.FetchAlternativeTitles(ctx, externalID)
	if err != nil {
		logger.CtxDebug(ctx, "Alternative titles unavailable for %d: %v", externalID, err)
		return false
	}
	key := textnorm.Normalize(title)
	for _, alt := range titles {
		if key != "" && textnorm.Normalize(alt) == key {
			return true
		}
	}
	return false
}
