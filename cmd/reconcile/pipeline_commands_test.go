package main

import (
	"bytes"
	"testing"

	"github.com/timmy/catalogsync/internal/domain"
)

func TestParsePipelines(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		allowAll bool
		want     []domain.QueueName
		wantErr  bool
	}{
		{name: "metadata alias", value: "metadata", want: []domain.QueueName{domain.QueueMetadataSync}},
		{name: "rehost alias", value: "rehost", want: []domain.QueueName{domain.QueueAssetRehost}},
		{name: "all allowed", value: "all", allowAll: true, want: []domain.QueueName{domain.QueueMetadataSync, domain.QueueAssetRehost}},
		{name: "all rejected", value: "all", wantErr: true},
		{name: "unknown", value: "posters", allowAll: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePipelines(tt.value, tt.allowAll)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.value, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestRootCommandRejectsUnknownPipelineBeforeWiring(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"worker", "--pipeline", "posters"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown pipeline")
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestRootCommandListsSubcommands(t *testing.T) {
	cmd := newRootCommand()
	want := map[string]bool{"maintenance": false, "worker": false, "dedupe": false, "dropped": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected subcommand %s to be registered", name)
		}
	}
}
