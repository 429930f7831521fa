// Package queue is the durable job queue shared by the metadata-sync and
// asset-rehost pipelines.
//
// Jobs live in one table keyed by (queue, target_record_id), so each catalog
// row has at most one live job per pipeline. Leasing is the only mutual
// exclusion: a leased job's next_eligible_at is pushed to a lease horizon with
// a compare-and-swap on its version column, so two workers racing for the same
// row cannot both win. Delivery is at-least-once: a worker that dies mid-job
// leaves the job to be re-leased once the horizon passes.
//
// Only this package writes try_count, next_eligible_at and version.
package queue
