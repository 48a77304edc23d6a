package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// ErrNoRow is returned by lookups when no matching record exists.
var ErrNoRow = errors.New("database: no matching row")

// InsertPhoto persists a new photo record in a single statement, so a
// partially written record is never visible. The fingerprint UNIQUE
// constraint is the dedup backstop for concurrent writers.
func (d *Database) InsertPhoto(ctx context.Context, p *Photo) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_photo", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO photos (guid, fingerprint, catalog_id, path, file_size, taken_at,
			gps_lat, gps_lon, place_name, camera_make, width, height, rating, deleted, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, ?)`,
		p.GUID, p.Fingerprint, p.CatalogID, p.Path, p.FileSize, p.TakenAt.Unix(),
		p.Lat, p.Lon, p.PlaceName, p.CameraMake, p.Width, p.Height,
		p.Rating, boolToInt(p.Deleted), p.IndexedAt.Unix(),
	)
	return err
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure,
// which for photos means another writer cataloged the same content first.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// go-sqlite3 exposes sqlite3.Error, but matching on the message keeps
	// this package's public surface driver-agnostic.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetPhotoByFingerprint returns the photo with the given content
// fingerprint, or ErrNoRow.
func (d *Database) GetPhotoByFingerprint(ctx context.Context, fingerprint string) (*Photo, error) {
	return d.getPhoto(ctx, "get_photo_by_fingerprint", "fingerprint = ?", fingerprint)
}

// GetPhotoByGUID returns the photo with the given GUID, or ErrNoRow.
func (d *Database) GetPhotoByGUID(ctx context.Context, guid string) (*Photo, error) {
	return d.getPhoto(ctx, "get_photo_by_guid", "guid = ?", guid)
}

func (d *Database) getPhoto(ctx context.Context, op, where string, arg any) (*Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var (
		p         Photo
		takenAt   int64
		indexedAt int64
		deleted   int
		place     sql.NullString
		make      sql.NullString
	)

	err = d.db.QueryRowContext(ctx, `
		SELECT guid, fingerprint, catalog_id, path, file_size, taken_at,
			gps_lat, gps_lon, place_name, camera_make, width, height, rating, deleted, indexed_at
		FROM photos WHERE `+where, arg).Scan(
		&p.GUID, &p.Fingerprint, &p.CatalogID, &p.Path, &p.FileSize, &takenAt,
		&p.Lat, &p.Lon, &place, &make, &p.Width, &p.Height, &p.Rating, &deleted, &indexedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNoRow
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	p.TakenAt = time.Unix(takenAt, 0)
	p.IndexedAt = time.Unix(indexedAt, 0)
	p.Deleted = deleted != 0
	p.PlaceName = place.String
	p.CameraMake = make.String
	return &p, nil
}

// UpdatePhotoLocation records the resolved place name on a photo.
func (d *Database) UpdatePhotoLocation(ctx context.Context, guid, placeName string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_photo_location", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		"UPDATE photos SET place_name = NULLIF(?, '') WHERE guid = ?", placeName, guid)
	return err
}

// DeletePhoto removes a photo record permanently. It returns ErrNoRow if
// no record with the GUID exists.
func (d *Database) DeletePhoto(ctx context.Context, guid string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_photo", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	res, execErr := d.db.ExecContext(ctx, "DELETE FROM photos WHERE guid = ?", guid)
	if execErr != nil {
		err = execErr
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		err = ErrNoRow
		return err
	}
	return nil
}

// CountPhotos returns the number of photo records, ignoring soft-deleted
// rows.
func (d *Database) CountPhotos(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_photos", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var n int
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos WHERE deleted = 0").Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
