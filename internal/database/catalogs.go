package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// EnsureCatalog returns the id of the named catalog, creating it with the
// given type if it does not exist yet.
func (d *Database) EnsureCatalog(ctx context.Context, name, catalogType string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("ensure_catalog", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	if _, err = d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO catalogs (name, type) VALUES (?, ?)", name, catalogType); err != nil {
		return 0, err
	}

	var id int64
	err = d.db.QueryRowContext(ctx, "SELECT id FROM catalogs WHERE name = ?", name).Scan(&id)
	return id, err
}

// GetCatalog returns a catalog by name, or ErrNoRow.
func (d *Database) GetCatalog(ctx context.Context, name string) (*Catalog, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_catalog", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var (
		c        Catalog
		updating int
	)
	err = d.db.QueryRowContext(ctx,
		"SELECT id, name, type, updating FROM catalogs WHERE name = ?", name).
		Scan(&c.ID, &c.Name, &c.Type, &updating)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNoRow
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	c.Updating = updating != 0
	return &c, nil
}

// SetCatalogUpdating mirrors the in-process catalog lock into the catalogs
// table so external readers can see that a scan is in flight. The lock
// itself lives in the job runner; this flag is informational.
func (d *Database) SetCatalogUpdating(ctx context.Context, id int64, updating bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_catalog_updating", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		"UPDATE catalogs SET updating = ? WHERE id = ?", boolToInt(updating), id)
	return err
}
