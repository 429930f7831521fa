package service

import (
	"math"
	"sort"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/textnorm"
)

const (
	distanceWeight   = 0.55
	yearWeight       = 0.25
	popularityWeight = 0.20
)

// rankCandidates scores search results against query, best first.
// An exact normalized title match returns immediately as the only candidate
// with confidence 1.0; the remaining results are not scored.
func rankCandidates(query searchQuery, results []domain.SearchResult, yearPenalty float64) []domain.MatchCandidate {
	key := textnorm.Normalize(query.Title)
	for _, r := range results {
		if key != "" && textnorm.Normalize(r.Title) == key {
			return []domain.MatchCandidate{{
				ExternalID: r.ID,
				Title:      r.Title,
				Year:       r.Year(),
				Popularity: r.Popularity,
				Confidence: 1.0,
				Exact:      true,
			}}
		}
	}

	minPop, maxPop := popularityRange(results)
	candidates := make([]domain.MatchCandidate, 0, len(results))
	for _, r := range results {
		distance := titleDistance(key, r)
		year := r.Year()
		confidence := distanceWeight*distanceScore(distance, key, r.Title, query.Tolerance) +
			yearWeight*yearScore(query.Year, year) +
			popularityWeight*popularityScore(r.Popularity, minPop, maxPop)
		if query.Year > 0 && year != query.Year {
			confidence -= yearPenalty
		}
		candidates = append(candidates, domain.MatchCandidate{
			ExternalID: r.ID,
			Title:      r.Title,
			Year:       year,
			Popularity: r.Popularity,
			Distance:   distance,
			Confidence: clamp01(confidence),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Popularity > candidates[j].Popularity
	})
	return candidates
}

// titleDistance is the edit distance from the query key to the closer of the
// candidate's title and original title.
func titleDistance(key string, r domain.SearchResult) int {
	distance := textnorm.EditDistance(key, textnorm.Normalize(r.Title))
	if r.OriginalTitle != "" && r.OriginalTitle != r.Title {
		if d := textnorm.EditDistance(key, textnorm.Normalize(r.OriginalTitle)); d < distance {
			distance = d
		}
	}
	return distance
}

// distanceScore = 1 - min(1, distance / max(1, floor(maxLen * tolerance))).
func distanceScore(distance int, key, title string, tolerance float64) float64 {
	maxLen := max(len([]rune(key)), len([]rune(textnorm.Normalize(title))))
	allowed := math.Max(1, math.Floor(float64(maxLen)*tolerance))
	return 1 - math.Min(1, float64(distance)/allowed)
}

// yearScore rewards release-year proximity; 0.5 when no year is expected.
func yearScore(expected, actual int) float64 {
	if expected <= 0 {
		return 0.5
	}
	if actual <= 0 {
		return 0.3
	}
	switch diff := abs(expected - actual); {
	case diff == 0:
		return 1.0
	case diff == 1:
		return 0.75
	case diff == 2:
		return 0.6
	default:
		return 0.3
	}
}

// popularityScore min-max normalizes within the result set; 0.5 when every
// result has the same popularity.
func popularityScore(popularity, minPop, maxPop float64) float64 {
	if maxPop <= minPop {
		return 0.5
	}
	return (popularity - minPop) / (maxPop - minPop)
}

func popularityRange(results []domain.SearchResult) (float64, float64) {
	if len(results) == 0 {
		return 0, 0
	}
	minPop, maxPop := results[0].Popularity, results[0].Popularity
	for _, r := range results[1:] {
		minPop = math.Min(minPop, r.Popularity)
		maxPop = math.Max(maxPop, r.Popularity)
	}
	return minPop, maxPop
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
