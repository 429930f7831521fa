package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	unmatched := NewUnmatched(2, 0.4)

	tests := []struct {
		name     string
		err      error
		wantKind FailureKind
		wantCode string
	}{
		{"plain error", errors.New("connection reset"), FailureTransport, ReasonTransport},
		{"deadline", context.DeadlineExceeded, FailureTransport, ReasonTimeout},
		{"wrapped deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), FailureTransport, ReasonTimeout},
		{"cancelled", context.Canceled, FailureTransport, ReasonTransport},
		{"existing failure", fmt.Errorf("resolve: %w", unmatched), FailureUnmatched, ReasonNoMatch},
		{"blocked", NewBlocked(errors.New("403")), FailureTransport, ReasonSourceBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify(tt.err)
			if f.Kind != tt.wantKind {
				t.Errorf("expected kind %v, got %v", tt.wantKind, f.Kind)
			}
			if f.ReasonCode() != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, f.ReasonCode())
			}
		})
	}

	if Classify(nil) != nil {
		t.Error("expected nil failure for nil error")
	}
}

func TestKindForReason(t *testing.T) {
	tests := []struct {
		code string
		want FailureKind
	}{
		{ReasonNoMatch, FailureUnmatched},
		{ReasonTransport, FailureTransport},
		{ReasonTimeout, FailureTransport},
		{ReasonSourceBlocked, FailureTransport},
		{ReasonOrphaned, FailureOrphaned},
		{ReasonTriesExhausted, FailureTriesExhausted},
		{"something_else", FailureTransport},
	}
	for _, tt := range tests {
		if got := KindForReason(tt.code); got != tt.want {
			t.Errorf("KindForReason(%q): expected %v, got %v", tt.code, tt.want, got)
		}
	}
}
