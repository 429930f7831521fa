package domain

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind tags why a job did not complete.
type FailureKind int

const (
	// FailureUnmatched means no candidate cleared the confidence bar.
	FailureUnmatched FailureKind = iota + 1
	// FailureTransport covers network errors, timeouts, malformed responses and blocked origins.
	FailureTransport
	// FailureOrphaned means the target record no longer exists.
	FailureOrphaned
	// FailureTriesExhausted is terminal: the job is dropped and recorded for manual follow-up.
	FailureTriesExhausted
)

// Reason codes persisted on queue jobs and dropped-job rows.
const (
	ReasonNoMatch        = "no_match"
	ReasonTransport      = "transport_error"
	ReasonTimeout        = "timeout"
	ReasonSourceBlocked  = "source_blocked"
	ReasonOrphaned       = "orphaned"
	ReasonTriesExhausted = "tries_exhausted"
)

// String returns the kind name used in logs.
func (k FailureKind) String() string {
	switch k {
	case FailureUnmatched:
		return "unmatched"
	case FailureTransport:
		return "transport"
	case FailureOrphaned:
		return "orphaned"
	case FailureTriesExhausted:
		return "tries_exhausted"
	default:
		return "unknown"
	}
}

// Failure is the structured error returned by resolvers and workers.
type Failure struct {
	Kind FailureKind
	// Code is the persisted reason code. Defaults to the kind's code when empty.
	Code string
	// Stage is the strategy ladder stage that produced an Unmatched failure.
	Stage int
	// BestConfidence is the highest confidence seen before giving up, if any.
	BestConfidence float64
	Err            error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	switch {
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.ReasonCode(), f.Err)
	case f.Kind == FailureUnmatched:
		return fmt.Sprintf("%s (stage %d, best confidence %.3f)", f.ReasonCode(), f.Stage, f.BestConfidence)
	default:
		return f.ReasonCode()
	}
}

// Unwrap exposes the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// ReasonCode returns the code stored in the job's reason column.
func (f *Failure) ReasonCode() string {
	if f.Code != "" {
		return f.Code
	}
	switch f.Kind {
	case FailureUnmatched:
		return ReasonNoMatch
	case FailureOrphaned:
		return ReasonOrphaned
	case FailureTriesExhausted:
		return ReasonTriesExhausted
	default:
		return ReasonTransport
	}
}

// NewUnmatched builds an Unmatched failure for a ladder stage.
func NewUnmatched(stage int, best float64) *Failure {
	return &Failure{Kind: FailureUnmatched, Stage: stage, BestConfidence: best}
}

// NewTransport wraps err as a transport failure.
func NewTransport(err error) *Failure {
	return &Failure{Kind: FailureTransport, Err: err}
}

// NewBlocked reports an origin that refused the transfer; retried on the transport schedule.
func NewBlocked(err error) *Failure {
	return &Failure{Kind: FailureTransport, Code: ReasonSourceBlocked, Err: err}
}

// Classify turns any error into a Failure. Errors that are not already a
// Failure become transport failures; deadline expiry keeps the transport
// schedule but is recorded under its own timeout code.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: FailureTransport, Code: ReasonTimeout, Err: err}
	}
	return NewTransport(err)
}

// KindForReason maps a persisted reason code back to its kind.
// Unknown codes are treated as transport failures.
func KindForReason(code string) FailureKind {
	switch code {
	case ReasonNoMatch:
		return FailureUnmatched
	case ReasonOrphaned:
		return FailureOrphaned
	case ReasonTriesExhausted:
		return FailureTriesExhausted
	default:
		return FailureTransport
	}
}
