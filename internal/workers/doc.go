// Package workers provides worker pool sizing for the ingestion pipeline.
//
// Pool sizes are derived from GOMAXPROCS so container CPU limits are
// respected, with a multiplier for the workload profile (scan, import and
// delete jobs are I/O bound). The JOB_WORKERS environment variable
// overrides the computed count.
package workers
