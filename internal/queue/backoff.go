package queue

import (
	"time"

	"github.com/timmy/catalogsync/internal/config"
	"github.com/timmy/catalogsync/internal/domain"
)

// Policy holds lease and retry timing for a queue.
type Policy struct {
	LeaseHorizon      time.Duration
	ShortDelay        time.Duration
	BackoffCapMinutes int
	NoMatchMultiplier int
	MaxTries          int
	TransportMaxTries int
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		LeaseHorizon:      15 * time.Minute,
		ShortDelay:        time.Minute,
		BackoffCapMinutes: 60,
		NoMatchMultiplier: 6,
		MaxTries:          8,
		TransportMaxTries: 12,
	}
}

// PolicyFromConfig builds a Policy from the queue config section.
func PolicyFromConfig(cfg config.QueueConfig) Policy {
	return Policy{
		LeaseHorizon:      cfg.LeaseHorizon,
		ShortDelay:        cfg.ShortDelay,
		BackoffCapMinutes: cfg.BackoffCapMinutes,
		NoMatchMultiplier: cfg.NoMatchMultiplier,
		MaxTries:          cfg.MaxTries,
		TransportMaxTries: cfg.TransportMaxTries,
	}
}

// Backoff returns min(cap, 2^n) minutes. Unmatched failures are multiplied by
// NoMatchMultiplier, which raises the cap by the same factor.
func (p Policy) Backoff(n int, kind domain.FailureKind) time.Duration {
	capMinutes := max(p.BackoffCapMinutes, 1)
	minutes := capMinutes
	if n < 0 {
		n = 0
	}
	if n < 31 && 1<<n < capMinutes {
		minutes = 1 << n
	}
	if kind == domain.FailureUnmatched {
		minutes *= max(p.NoMatchMultiplier, 1)
	}
	return time.Duration(minutes) * time.Minute
}

// MaxTriesFor returns the try cap for a failure kind.
func (p Policy) MaxTriesFor(kind domain.FailureKind) int {
	if kind == domain.FailureTransport {
		return p.TransportMaxTries
	}
	return p.MaxTries
}

// ShouldDrop reports whether a failure on a job that has already failed
// tryCount times exceeds the cap for kind.
func (p Policy) ShouldDrop(tryCount int, kind domain.FailureKind) bool {
	return tryCount+1 > p.MaxTriesFor(kind)
}
