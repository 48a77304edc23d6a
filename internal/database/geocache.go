package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetGeocodeEntry returns the cached reverse-geocode result for a cell
// key, or ErrNoRow when the cell has never been looked up.
func (d *Database) GetGeocodeEntry(ctx context.Context, cacheKey string) (*GeocodeEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_geocode_entry", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var (
		e          GeocodeEntry
		placeName  sql.NullString
		fetchedAt  int64
		lastUsedAt int64
	)
	err = d.db.QueryRowContext(ctx, `
		SELECT cache_key, place_name, radius_km, fetched_at, last_used_at, hit_count
		FROM geocode_cache WHERE cache_key = ?`, cacheKey).Scan(
		&e.CacheKey, &placeName, &e.RadiusKm, &fetchedAt, &lastUsedAt, &e.HitCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNoRow
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if placeName.Valid {
		e.PlaceName = &placeName.String
	}
	e.FetchedAt = time.Unix(fetchedAt, 0)
	e.LastUsedAt = time.Unix(lastUsedAt, 0)
	return &e, nil
}

// PutGeocodeEntry stores a lookup result for a cell. A nil PlaceName
// records a negative entry (the provider returned no place). Re-putting
// an existing key refreshes the payload and the fetch timestamp.
func (d *Database) PutGeocodeEntry(ctx context.Context, e *GeocodeEntry) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("put_geocode_entry", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var placeName any
	if e.PlaceName != nil {
		placeName = *e.PlaceName
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (cache_key, place_name, radius_km, fetched_at, last_used_at, hit_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			place_name = excluded.place_name,
			radius_km = excluded.radius_km,
			fetched_at = excluded.fetched_at,
			last_used_at = excluded.last_used_at,
			hit_count = excluded.hit_count`,
		e.CacheKey, placeName, e.RadiusKm, e.FetchedAt.Unix(), e.LastUsedAt.Unix(), e.HitCount,
	)
	return err
}

// TouchGeocodeEntry bumps the usage stats for a cache hit.
func (d *Database) TouchGeocodeEntry(ctx context.Context, cacheKey string, at time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("touch_geocode_entry", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		UPDATE geocode_cache SET last_used_at = ?, hit_count = hit_count + 1
		WHERE cache_key = ?`, at.Unix(), cacheKey)
	return err
}
