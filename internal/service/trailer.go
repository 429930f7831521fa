package service

import (
	"sort"
	"strings"

	"github.com/timmy/catalogsync/internal/domain"
)

var trailerSites = map[string]bool{
	"youtube": true,
	"vimeo":   true,
}

// SelectTrailer picks the best trailer or teaser: official first, then a
// recognized hosting site, then the most recently published.
// Returns nil when no video qualifies.
func SelectTrailer(videos []domain.Video) *domain.Video {
	var eligible []domain.Video
	for _, v := range videos {
		if v.Key == "" {
			continue
		}
		switch strings.ToLower(v.Type) {
		case "trailer", "teaser":
			eligible = append(eligible, v)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Official != b.Official {
			return a.Official
		}
		aSite, bSite := trailerSites[strings.ToLower(a.Site)], trailerSites[strings.ToLower(b.Site)]
		if aSite != bSite {
			return aSite
		}
		return a.PublishedAt.After(b.PublishedAt)
	})
	best := eligible[0]
	return &best
}
