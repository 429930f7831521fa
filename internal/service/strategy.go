package service

import (
	"github.com/timmy/catalogsync/internal/config"
	"github.com/timmy/catalogsync/internal/textnorm"
)

// searchQuery is what one ladder stage sends to the external catalog.
type searchQuery struct {
	Title     string
	Year      int
	Tolerance float64
}

// strategy builds the query for one stage from the record's raw title.
type strategy struct {
	Name  string
	Build func(title string, cfg config.MatcherConfig) searchQuery
}

// ladder is ordered from most to least specific. The stage for a job is its
// try count clamped to the last entry.
var ladder = []strategy{
	{
		Name: "stripped_with_year",
		Build: func(title string, cfg config.MatcherConfig) searchQuery {
			year, _ := textnorm.ExtractYear(title)
			return searchQuery{Title: textnorm.StripNoise(title), Year: year, Tolerance: cfg.DistanceTolerance}
		},
	},
	{
		Name: "stripped",
		Build: func(title string, cfg config.MatcherConfig) searchQuery {
			return searchQuery{Title: textnorm.StripNoise(title), Tolerance: cfg.DistanceTolerance}
		},
	},
	{
		Name: "base_with_year",
		Build: func(title string, cfg config.MatcherConfig) searchQuery {
			year, _ := textnorm.ExtractYear(title)
			return searchQuery{Title: textnorm.BaseTitle(title), Year: year, Tolerance: cfg.DistanceTolerance}
		},
	},
	{
		Name: "base",
		Build: func(title string, cfg config.MatcherConfig) searchQuery {
			return searchQuery{Title: textnorm.BaseTitle(title), Tolerance: cfg.DistanceTolerance}
		},
	},
	{
		Name: "base_with_year_loose",
		Build: func(title string, cfg config.MatcherConfig) searchQuery {
			year, _ := textnorm.ExtractYear(title)
			return searchQuery{Title: textnorm.BaseTitle(title), Year: year, Tolerance: cfg.LoosenedTolerance}
		},
	},
}

// stageFor clamps a try count to a ladder index.
func stageFor(tryCount int) int {
	switch {
	case tryCount < 0:
		return 0
	case tryCount >= len(ladder):
		return len(ladder) - 1
	default:
		return tryCount
	}
}
