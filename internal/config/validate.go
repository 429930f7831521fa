package config

import (
	"errors"
	"fmt"
)

// Validate checks cross-field constraints after defaults and overrides are applied.
// Returns an error describing the first validation failure, or nil if valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database: path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database: dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database: unsupported driver %q", c.Database.Driver)
	}

	m := c.Matcher
	if m.MinConfidence <= 0 || m.MinConfidence > 1 {
		return fmt.Errorf("matcher: min_confidence must be in (0,1], got %v", m.MinConfidence)
	}
	if m.DistanceTolerance <= 0 || m.LoosenedTolerance < m.DistanceTolerance {
		return fmt.Errorf("matcher: loosened_tolerance (%v) must be >= distance_tolerance (%v) > 0",
			m.LoosenedTolerance, m.DistanceTolerance)
	}
	if m.AltTitleFloor < 0 || m.AltTitleFloor > 1 {
		return fmt.Errorf("matcher: alt_title_floor must be in [0,1], got %v", m.AltTitleFloor)
	}

	q := c.Queue
	if q.LeaseHorizon <= 0 {
		return errors.New("queue: lease_horizon must be positive")
	}
	if q.BackoffCapMinutes <= 0 || q.NoMatchMultiplier <= 0 {
		return errors.New("queue: backoff_cap_minutes and no_match_multiplier must be positive")
	}
	if q.MaxTries <= 0 || q.TransportMaxTries <= 0 {
		return errors.New("queue: max_tries and transport_max_tries must be positive")
	}
	if q.BatchSize <= 0 {
		return errors.New("queue: batch_size must be positive")
	}
	return nil
}
