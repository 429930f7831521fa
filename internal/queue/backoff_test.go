package queue

import (
	"testing"
	"time"

	"github.com/timmy/catalogsync/internal/domain"
)

func TestBackoff(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		n    int
		kind domain.FailureKind
		want time.Duration
	}{
		{0, domain.FailureTransport, time.Minute},
		{1, domain.FailureTransport, 2 * time.Minute},
		{3, domain.FailureTransport, 8 * time.Minute},
		{6, domain.FailureTransport, 60 * time.Minute},
		{40, domain.FailureTransport, 60 * time.Minute},
		{1, domain.FailureUnmatched, 12 * time.Minute},
		{3, domain.FailureUnmatched, 48 * time.Minute},
		{9, domain.FailureUnmatched, 360 * time.Minute},
		{-1, domain.FailureTransport, time.Minute},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.n, tt.kind); got != tt.want {
			t.Errorf("Backoff(%d, %s) = %v, want %v", tt.n, tt.kind, got, tt.want)
		}
	}
}

func TestBackoffNoMatchNeverShorterThanTransport(t *testing.T) {
	p := DefaultPolicy()
	for n := 0; n < 40; n++ {
		if p.Backoff(n, domain.FailureUnmatched) < p.Backoff(n, domain.FailureTransport) {
			t.Fatalf("no_match backoff shorter than transport at n=%d", n)
		}
	}
}

func TestShouldDrop(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		tryCount int
		kind     domain.FailureKind
		want     bool
	}{
		{7, domain.FailureUnmatched, false},
		{8, domain.FailureUnmatched, true},
		{8, domain.FailureTransport, false},
		{11, domain.FailureTransport, false},
		{12, domain.FailureTransport, true},
	}
	for _, tt := range tests {
		if got := p.ShouldDrop(tt.tryCount, tt.kind); got != tt.want {
			t.Errorf("ShouldDrop(%d, %s) = %v, want %v", tt.tryCount, tt.kind, got, tt.want)
		}
	}
}
