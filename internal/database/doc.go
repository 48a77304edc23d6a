// Package database wraps the SQLite store that backs the photo index.
// It owns the schema, the connection pool, and all query code for
// photos, catalogs, jobs, and the geocode cache. Callers never see
// database/sql types beyond the error sentinels exported here.
package database
