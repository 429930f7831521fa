package service

import (
	"errors"
	"net/url"

	"github.com/timmy/catalogsync/internal/config"
	"github.com/timmy/catalogsync/internal/domain"
)

// errNoSource means neither the job nor its record carries a URL to copy from.
var errNoSource = errors.New("no source url for asset")

// Descriptor is everything the out-of-process transfer needs to copy one
// asset into durable storage.
type Descriptor struct {
	JobID     string            `json:"job_id"`
	RecordID  string            `json:"record_id"`
	SourceURL string            `json:"source_url"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"object_key"`
	Attempt   int               `json:"attempt"`
	Refreshed bool              `json:"refreshed,omitempty"`
}

// SourceResolver picks the source URL and request headers for a rehost job.
// It is pure: the same job and record always produce the same descriptor.
type SourceResolver struct {
	userAgents   []string
	referers     []string
	refreshAfter int
}

// NewSourceResolver creates a SourceResolver from the rehost config section.
func NewSourceResolver(cfg config.RehostConfig) *SourceResolver {
	return &SourceResolver{
		userAgents:   cfg.UserAgents,
		referers:     cfg.Referers,
		refreshAfter: cfg.RefreshAfterTries,
	}
}

// Resolve builds the descriptor for job against the current record. The
// object key is left for the caller to fill in.
//
// After refreshAfter tries the record's own source URL replaces the job's
// when they differ. Unless the job asks for the direct resolver, the
// User-Agent and Referer rotate with the try count.
func (r *SourceResolver) Resolve(job *domain.QueueJob, record *domain.CatalogRecord) (*Descriptor, error) {
	sourceURL := firstNonEmpty(job.SourceURL, record.SourceURL, record.AssetURL)
	refreshed := false
	if r.refreshAfter > 0 && job.TryCount >= r.refreshAfter &&
		record.SourceURL != "" && record.SourceURL != sourceURL {
		sourceURL = record.SourceURL
		refreshed = true
	}
	if sourceURL == "" {
		return nil, errNoSource
	}

	headers := make(map[string]string, len(job.Headers)+2)
	for k, v := range job.Headers {
		headers[k] = v
	}
	if job.ResolverKind != domain.ResolverKindDirect {
		if ua := job.ResolverPayload["user_agent"]; ua != "" {
			headers["User-Agent"] = ua
		} else if ua := rotate(r.userAgents, job.TryCount); ua != "" {
			headers["User-Agent"] = ua
		}
		if ref := job.ResolverPayload["referer"]; ref != "" {
			headers["Referer"] = ref
		} else if ref := rotate(r.referers, job.TryCount); ref != "" {
			headers["Referer"] = ref
		} else if origin := originOf(sourceURL); origin != "" {
			headers["Referer"] = origin
		}
	}

	return &Descriptor{
		JobID:     job.ID,
		RecordID:  record.ID,
		SourceURL: sourceURL,
		Headers:   headers,
		Attempt:   job.TryCount + 1,
		Refreshed: refreshed,
	}, nil
}

func rotate(values []string, tryCount int) string {
	if len(values) == 0 {
		return ""
	}
	if tryCount < 0 {
		tryCount = 0
	}
	return values[tryCount%len(values)]
}

// originOf returns "scheme://host/" for an absolute URL.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
