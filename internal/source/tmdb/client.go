package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/source"
)

// Config holds TMDB client settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Language  string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

// Client talks to the TMDB API.
type Client struct {
	client   *resty.Client
	apiKey   string
	language string
	timeout  time.Duration
	limiter  *rate.Limiter
}

var _ source.MetadataCatalog = (*Client)(nil)

type searchResult struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	ReleaseDate   string  `json:"release_date"`
	Popularity    float64 `json:"popularity"`
	VoteCount     int64   `json:"vote_count"`
}

type searchResponse struct {
	Page         int            `json:"page"`
	Results      []searchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

type genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type movieDetails struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	PosterPath    string  `json:"poster_path"`
	BackdropPath  string  `json:"backdrop_path"`
	ReleaseDate   string  `json:"release_date"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int64   `json:"vote_count"`
	Popularity    float64 `json:"popularity"`
	Runtime       int     `json:"runtime"`
	Genres        []genre `json:"genres"`
}

type alternativeTitlesResponse struct {
	ID     int64 `json:"id"`
	Titles []struct {
		Country string `json:"iso_3166_1"`
		Title   string `json:"title"`
		Type    string `json:"type"`
	} `json:"titles"`
}

type videosResponse struct {
	ID      int64 `json:"id"`
	Results []struct {
		Key         string `json:"key"`
		Site        string `json:"site"`
		Type        string `json:"type"`
		Official    bool   `json:"official"`
		PublishedAt string `json:"published_at"`
	} `json:"results"`
}

// New creates a TMDB client.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(timeout)

	return &Client{
		client:   client,
		apiKey:   apiKey,
		language: strings.TrimSpace(cfg.Language),
		timeout:  timeout,
		limiter:  rate.NewLimiter(limit, burst),
	}, nil
}

// SearchByTitle searches movies by title with an optional primary release year.
func (c *Client) SearchByTitle(ctx context.Context, title string, year int) ([]domain.SearchResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("query must not be empty")
	}
	params := map[string]string{"query": title}
	if year > 0 {
		params["primary_release_year"] = strconv.Itoa(year)
	}

	var payload searchResponse
	if err := c.get(ctx, "/search/movie", params, &payload); err != nil {
		return nil, fmt.Errorf("tmdb search: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(payload.Results))
	for _, r := range payload.Results {
		results = append(results, domain.SearchResult{
			ID:            r.ID,
			Title:         r.Title,
			OriginalTitle: r.OriginalTitle,
			ReleaseDate:   r.ReleaseDate,
			Popularity:    r.Popularity,
			VoteCount:     r.VoteCount,
		})
	}
	return results, nil
}

// FetchByID fetches movie details.
func (c *Client) FetchByID(ctx context.Context, id int64) (*domain.ExternalRecord, error) {
	if id <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	var payload movieDetails
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", id), nil, &payload); err != nil {
		return nil, fmt.Errorf("tmdb movie details: %w", err)
	}

	genres := make([]string, 0, len(payload.Genres))
	for _, g := range payload.Genres {
		genres = append(genres, g.Name)
	}
	return &domain.ExternalRecord{
		ID:            payload.ID,
		Title:         payload.Title,
		OriginalTitle: payload.OriginalTitle,
		Overview:      payload.Overview,
		PosterPath:    payload.PosterPath,
		BackdropPath:  payload.BackdropPath,
		ReleaseDate:   payload.ReleaseDate,
		VoteAverage:   payload.VoteAverage,
		VoteCount:     payload.VoteCount,
		Popularity:    payload.Popularity,
		Genres:        genres,
		Runtime:       payload.Runtime,
	}, nil
}

// FetchAlternativeTitles lists the alternative titles of a movie.
func (c *Client) FetchAlternativeTitles(ctx context.Context, id int64) ([]string, error) {
	var payload alternativeTitlesResponse
	if err := c.get(ctx, fmt.Sprintf("/movie/%d/alternative_titles", id), nil, &payload); err != nil {
		return nil, fmt.Errorf("tmdb alternative titles: %w", err)
	}
	titles := make([]string, 0, len(payload.Titles))
	for _, t := range payload.Titles {
		if t.Title != "" {
			titles = append(titles, t.Title)
		}
	}
	return titles, nil
}

// FetchVideos lists the videos attached to a movie.
func (c *Client) FetchVideos(ctx context.Context, id int64) ([]domain.Video, error) {
	var payload videosResponse
	if err := c.get(ctx, fmt.Sprintf("/movie/%d/videos", id), nil, &payload); err != nil {
		return nil, fmt.Errorf("tmdb videos: %w", err)
	}
	videos := make([]domain.Video, 0, len(payload.Results))
	for _, v := range payload.Results {
		published, _ := time.Parse(time.RFC3339, v.PublishedAt)
		videos = append(videos, domain.Video{
			Key:         v.Key,
			Site:        v.Site,
			Type:        v.Type,
			Official:    v.Official,
			PublishedAt: published,
		})
	}
	return videos, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, result interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("api_key", c.apiKey).
		SetResult(result)
	if c.language != "" {
		req.SetQueryParam("language", c.language)
	}
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	requestStart := time.Now()
	resp, err := req.Get(path)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return source.ErrNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("status %d (latency=%v)", resp.StatusCode(), latency)
	}
	return nil
}
