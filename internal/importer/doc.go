// Package importer drains a staging directory into the photo library.
// Each file is moved into a date-based library path, indexed through the
// ingestion pipeline, and on any failure rolled back and quarantined.
package importer
