package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"photodex/internal/database"
	"photodex/internal/logging"
)

// Cataloger turns files on disk into photo records. It owns GUID
// assignment and content-fingerprint dedup; it never touches derivatives
// or geocoding.
type Cataloger struct {
	db *database.Database
}

// NewCataloger returns a Cataloger backed by db.
func NewCataloger(db *database.Database) *Cataloger {
	return &Cataloger{db: db}
}

// Catalog records the file at path under the given catalog. If a photo
// with the same content fingerprint already exists, the existing record
// is returned and created is false. A new record is written in a single
// statement, so readers never see a partial photo.
func (c *Cataloger) Catalog(ctx context.Context, catalogID int64, path, fingerprint string, meta *Metadata) (photo *database.Photo, created bool, err error) {
	existing, err := c.db.GetPhotoByFingerprint(ctx, fingerprint)
	if err == nil {
		logging.Debug("Duplicate content %s already cataloged as %s", path, existing.GUID)
		return existing, false, nil
	}
	if !errors.Is(err, database.ErrNoRow) {
		return nil, false, fmt.Errorf("failed to check fingerprint for %s: %w", path, err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	photo = &database.Photo{
		GUID:        uuid.NewString(),
		Fingerprint: fingerprint,
		CatalogID:   catalogID,
		Path:        path,
		FileSize:    fi.Size(),
		TakenAt:     meta.TakenAt,
		Lat:         meta.Lat,
		Lon:         meta.Lon,
		CameraMake:  meta.CameraMake,
		Width:       meta.Width,
		Height:      meta.Height,
		IndexedAt:   time.Now(),
	}

	if err := c.db.InsertPhoto(ctx, photo); err != nil {
		if database.IsUniqueViolation(err) {
			// A concurrent writer cataloged the same content between our
			// lookup and the insert. Their record wins.
			winner, getErr := c.db.GetPhotoByFingerprint(ctx, fingerprint)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to fetch photo after insert race for %s: %w", path, getErr)
			}
			return winner, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert photo for %s: %w", path, err)
	}

	logging.Debug("Cataloged %s as %s", path, photo.GUID)
	return photo, true, nil
}
