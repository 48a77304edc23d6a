// Package scanner discovers image files under a root directory and runs
// each through the ingestion pipeline: fingerprint, dedup, catalog,
// derivative generation, and geocode enrichment.
package scanner
