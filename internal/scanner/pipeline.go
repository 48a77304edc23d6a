package scanner

import (
	"context"

	"photodex/internal/catalog"
	"photodex/internal/database"
	"photodex/internal/geocode"
	"photodex/internal/logging"
	"photodex/internal/media"
	"photodex/internal/metrics"
)

// Outcome classifies what happened to one file in the pipeline.
type Outcome int

const (
	OutcomeIndexed Outcome = iota
	OutcomeDuplicate
	OutcomeFailed
)

// Pipeline runs the per-file ingestion steps: fingerprint, dedup,
// catalog, derivatives, geocode. The scanner and the importer both feed
// files through it.
type Pipeline struct {
	db        *database.Database
	cataloger *catalog.Cataloger
	deriv     *media.Generator
	geo       *geocode.Resolver
}

// NewPipeline wires the pipeline from its stages.
func NewPipeline(db *database.Database, cataloger *catalog.Cataloger, deriv *media.Generator, geo *geocode.Resolver) *Pipeline {
	return &Pipeline{db: db, cataloger: cataloger, deriv: deriv, geo: geo}
}

// ProcessFile runs one file through the pipeline. On OutcomeFailed the
// returned photo is non-nil if a record was already written; the caller
// decides whether to keep it (scan) or roll it back (import). Geocode
// provider failures never fail the file, the place name is simply left
// empty.
func (p *Pipeline) ProcessFile(ctx context.Context, catalogID int64, path string) (Outcome, *database.Photo, error) {
	fingerprint, err := catalog.Fingerprint(path)
	if err != nil {
		metrics.FilesProcessedTotal.WithLabelValues("failed").Inc()
		return OutcomeFailed, nil, err
	}

	meta, err := catalog.ExtractMetadata(path)
	if err != nil {
		metrics.FilesProcessedTotal.WithLabelValues("failed").Inc()
		return OutcomeFailed, nil, err
	}

	photo, created, err := p.cataloger.Catalog(ctx, catalogID, path, fingerprint, meta)
	if err != nil {
		metrics.FilesProcessedTotal.WithLabelValues("failed").Inc()
		return OutcomeFailed, nil, err
	}
	if !created {
		metrics.FilesProcessedTotal.WithLabelValues("duplicate").Inc()
		return OutcomeDuplicate, photo, nil
	}

	if err := p.deriv.Generate(path, photo.GUID); err != nil {
		metrics.FilesProcessedTotal.WithLabelValues("failed").Inc()
		return OutcomeFailed, photo, err
	}

	if meta.Lat != nil && meta.Lon != nil {
		place, err := p.geo.Resolve(ctx, *meta.Lat, *meta.Lon)
		if err != nil {
			logging.Warn("Geocode lookup failed for %s: %v", photo.GUID, err)
		} else if place != "" {
			if err := p.db.UpdatePhotoLocation(ctx, photo.GUID, place); err != nil {
				logging.Warn("Failed to store place name for %s: %v", photo.GUID, err)
			} else {
				photo.PlaceName = place
			}
		}
	}

	metrics.FilesProcessedTotal.WithLabelValues("indexed").Inc()
	return OutcomeIndexed, photo, nil
}

// Rollback undoes a partially processed file: the photo record and any
// derivatives already written are removed. Used by the importer before
// quarantining a failed file.
func (p *Pipeline) Rollback(ctx context.Context, photo *database.Photo) {
	if photo == nil {
		return
	}
	if err := p.deriv.Remove(photo.GUID); err != nil {
		logging.Warn("Rollback: failed to remove derivatives for %s: %v", photo.GUID, err)
	}
	if err := p.db.DeletePhoto(ctx, photo.GUID); err != nil && err != database.ErrNoRow {
		logging.Warn("Rollback: failed to remove photo record %s: %v", photo.GUID, err)
	}
}
