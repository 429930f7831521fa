package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/logger"
	"github.com/timmy/catalogsync/internal/service"
)

// parsePipelines expands a --pipeline value; "all" selects both queues.
func parsePipelines(value string, allowAll bool) ([]domain.QueueName, error) {
	if allowAll && value == "all" {
		return []domain.QueueName{domain.QueueMetadataSync, domain.QueueAssetRehost}, nil
	}
	name, ok := domain.ParseQueueName(value)
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %q", value)
	}
	return []domain.QueueName{name}, nil
}

func newMaintenanceCommand(ctx *commandContext) *cobra.Command {
	var pipeline string
	var limit int
	var missingOnly bool

	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Scan the catalog and enqueue jobs for records that need work",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := parsePipelines(pipeline, true)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			runCtx := logger.SetComponent(cmd.Context(), "cli_maintenance")
			results := make([]*service.ScanResult, 0, len(names))
			for _, name := range names {
				res, err := a.Maintenance.Scan(runCtx, name, limit, missingOnly)
				if err != nil {
					return err
				}
				results = append(results, res)
			}
			return writeJSON(cmd, results)
		},
	}
	cmd.Flags().StringVar(&pipeline, "pipeline", "all", "Pipeline to scan: metadata, rehost or all")
	cmd.Flags().IntVar(&limit, "limit", 1000, "Maximum records to scan per pipeline")
	cmd.Flags().BoolVar(&missingOnly, "missing-only", false, "Only scan records that were never processed")
	return cmd
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var pipeline string
	var limit int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Lease and process one batch of due jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := parsePipelines(pipeline, false)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = a.Config.Queue.BatchSize
			}
			runCtx := logger.SetComponent(cmd.Context(), "cli_worker")

			var res *service.BatchResult
			switch names[0] {
			case domain.QueueAssetRehost:
				if a.RehostWorker == nil {
					return errors.New("asset rehosting is not configured")
				}
				res, err = a.RehostWorker.RunBatch(runCtx, limit)
			default:
				res, err = a.Sync.RunBatch(runCtx, limit)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&pipeline, "pipeline", "metadata", "Pipeline to run: metadata or rehost")
	cmd.Flags().IntVar(&limit, "limit", 0, "Batch size (defaults to queue.batch_size)")
	return cmd
}

func newDedupeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Collapse catalog records that share an external id",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			res, collapseErr := a.Reconciler.CollapseDuplicates(logger.SetComponent(cmd.Context(), "cli_dedupe"))
			if res != nil {
				if err := writeJSON(cmd, res); err != nil {
					return err
				}
			}
			return collapseErr
		},
	}
}

func newDroppedCommand(ctx *commandContext) *cobra.Command {
	var pipeline string
	var limit int

	cmd := &cobra.Command{
		Use:   "dropped",
		Short: "List jobs dropped after exhausting their tries",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := parsePipelines(pipeline, true)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			var dropped []domain.DroppedJob
			for _, name := range names {
				store, err := a.Queue(name)
				if err != nil {
					return err
				}
				jobs, err := store.ListDropped(cmd.Context(), limit)
				if err != nil {
					return err
				}
				dropped = append(dropped, jobs...)
			}
			return writeJSON(cmd, dropped)
		},
	}
	cmd.Flags().StringVar(&pipeline, "pipeline", "all", "Pipeline to list: metadata, rehost or all")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum dropped jobs per pipeline")
	return cmd
}
