package database

import "time"

// Photo is one cataloged image. Identity is the content fingerprint
// (unique across the catalog); the GUID is the external identifier used
// in URLs and derivative paths.
type Photo struct {
	GUID        string     `json:"guid"`
	Fingerprint string     `json:"-"`
	CatalogID   int64      `json:"catalogId"`
	Path        string     `json:"path"`
	FileSize    int64      `json:"fileSize"`
	TakenAt     time.Time  `json:"takenAt"`
	Lat         *float64   `json:"lat,omitempty"`
	Lon         *float64   `json:"lon,omitempty"`
	PlaceName   string     `json:"placeName,omitempty"`
	CameraMake  string     `json:"cameraMake,omitempty"`
	Width       int        `json:"width,omitempty"`
	Height      int        `json:"height,omitempty"`
	Rating      int        `json:"rating"`
	Deleted     bool       `json:"deleted,omitempty"`
	IndexedAt   time.Time  `json:"indexedAt"`
}

// Catalog is a logical grouping of photos, e.g. the "master" collection.
// The updating flag mirrors the in-process scan lock for visibility.
type Catalog struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Updating bool   `json:"updating"`
}

// JobRecord is the persisted form of an asynchronous job. The job runner
// is its only writer.
type JobRecord struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
	Processed   int       `json:"processed"`
	Indexed     int       `json:"indexed"`
	Duplicates  int       `json:"duplicates"`
	Failed      int       `json:"failed"`
}

// GeocodeEntry is one quantized-cell reverse-geocode result. A nil
// PlaceName marks a negative entry (the provider had no result for the
// cell).
type GeocodeEntry struct {
	CacheKey   string
	PlaceName  *string
	RadiusKm   float64
	FetchedAt  time.Time
	LastUsedAt time.Time
	HitCount   int
}
