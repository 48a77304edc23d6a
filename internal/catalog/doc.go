// Package catalog records photo files as indexed records: content
// fingerprinting, EXIF metadata extraction, and fingerprint-keyed dedup.
package catalog
