// Package jobs runs scans, imports, and deletes asynchronously on a
// bounded worker pool. Job status is an owned state machine: the runner
// is the only writer, callers read snapshots, and same-catalog jobs are
// mutually exclusive at submission time.
package jobs
