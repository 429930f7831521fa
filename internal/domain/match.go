package domain

import "time"

// ExternalRecord is a full record fetched from the external metadata catalog.
type ExternalRecord struct {
	ID            int64
	Title         string
	OriginalTitle string
	Overview      string
	PosterPath    string
	BackdropPath  string
	ReleaseDate   string
	VoteAverage   float64
	VoteCount     int64
	Popularity    float64
	Genres        []string
	Runtime       int
}

// Year returns the release year parsed from ReleaseDate, or 0 when unknown.
func (r *ExternalRecord) Year() int {
	return yearFromDate(r.ReleaseDate)
}

// SearchResult is a single external search hit before scoring.
type SearchResult struct {
	ID            int64
	Title         string
	OriginalTitle string
	ReleaseDate   string
	Popularity    float64
	VoteCount     int64
}

// Year returns the release year parsed from ReleaseDate, or 0 when unknown.
func (r *SearchResult) Year() int {
	return yearFromDate(r.ReleaseDate)
}

// MatchCandidate is a scored search result. Not persisted.
type MatchCandidate struct {
	ExternalID int64   `json:"external_id"`
	Title      string  `json:"title"`
	Year       int     `json:"year,omitempty"`
	Popularity float64 `json:"popularity"`
	Distance   int     `json:"distance"`
	Confidence float64 `json:"confidence"`
	Exact      bool    `json:"exact"`
}

// Video is a video attached to an external record.
type Video struct {
	Key         string
	Site        string
	Type        string
	Official    bool
	PublishedAt time.Time
}

// Match is a successful resolution: the chosen external record and how it was found.
type Match struct {
	Record *ExternalRecord
	// Candidate is nil when the record was fetched directly by external id.
	Candidate *MatchCandidate
	Stage     int
	Direct    bool
}

func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, c := range date[:4] {
		if c < '0' || c > '9' {
			return 0
		}
		year = year*10 + int(c-'0')
	}
	return year
}
