// Package handlers exposes the HTTP surface for job submission and
// polling: scans, imports, photo deletion, and health probes. All work
// happens asynchronously; handlers only submit and report.
package handlers
