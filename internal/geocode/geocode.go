package geocode

import (
	"context"
	"errors"
	"sync"
	"time"

	"photodex/internal/database"
	"photodex/internal/logging"
	"photodex/internal/metrics"
)

// cooldownPeriod is how long provider calls are suspended after the
// provider reports its hourly credit limit.
const cooldownPeriod = time.Hour

// Config carries every geocoding setting. Nothing outside this package
// reads these values.
type Config struct {
	Enabled          bool
	Provider         string
	Username         string
	CellM            int
	PrimaryRadiusKm  float64
	FallbackRadiusKm float64
	Timeout          time.Duration
	MinInterval      time.Duration
	NegativeTTL      time.Duration
	BaseURL          string
}

// Resolver answers reverse-geocode lookups through the quantized cell
// cache, calling the provider only on a miss.
type Resolver struct {
	cfg    Config
	db     *database.Database
	client *geoNamesClient

	// mu serializes provider calls so the min-interval throttle and the
	// hourly-limit cooldown see a consistent schedule.
	mu         sync.Mutex
	nextCallAt time.Time
	coolUntil  time.Time
	now        func() time.Time
	sleep      func(time.Duration)
}

// NewResolver returns a Resolver using db as its cache store.
func NewResolver(cfg Config, db *database.Database) *Resolver {
	return &Resolver{
		cfg:    cfg,
		db:     db,
		client: newGeoNamesClient(cfg.BaseURL, cfg.Username, cfg.Timeout),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Resolve returns the place name for a coordinate, or "" when none is
// known. Coordinates in the same cell share one cached answer. Provider
// failures return a *ProviderError and are never cached, so the cell is
// retried on the next lookup. When geocoding is disabled every call
// returns "" without touching the network.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) (string, error) {
	if !r.cfg.Enabled {
		metrics.GeocodeLookupsTotal.WithLabelValues("disabled").Inc()
		return "", nil
	}

	key := CacheKey(r.cfg.Provider, r.cfg.CellM, lat, lon)

	entry, err := r.db.GetGeocodeEntry(ctx, key)
	switch {
	case err == nil && entry.PlaceName != nil:
		metrics.GeocodeLookupsTotal.WithLabelValues("hit").Inc()
		r.touch(ctx, key)
		return *entry.PlaceName, nil
	case err == nil:
		if r.now().Before(entry.FetchedAt.Add(r.cfg.NegativeTTL)) {
			metrics.GeocodeLookupsTotal.WithLabelValues("negative_hit").Inc()
			r.touch(ctx, key)
			return "", nil
		}
		// Expired negative entry: look the cell up again.
		logging.Debug("Negative geocode entry %s expired, re-querying", key)
	case !errors.Is(err, database.ErrNoRow):
		return "", err
	}

	metrics.GeocodeLookupsTotal.WithLabelValues("miss").Inc()

	place, radiusKm, err := r.lookup(ctx, lat, lon)
	if err != nil {
		metrics.GeocodeLookupsTotal.WithLabelValues("provider_error").Inc()
		return "", err
	}

	now := r.now()
	cacheEntry := &database.GeocodeEntry{
		CacheKey:   key,
		RadiusKm:   radiusKm,
		FetchedAt:  now,
		LastUsedAt: now,
		HitCount:   1,
	}
	if place != "" {
		cacheEntry.PlaceName = &place
	}
	if err := r.db.PutGeocodeEntry(ctx, cacheEntry); err != nil {
		logging.Warn("Failed to cache geocode result for %s: %v", key, err)
	}
	return place, nil
}

// lookup performs the throttled provider calls: primary radius first,
// then the wider fallback radius if the primary found nothing.
func (r *Resolver) lookup(ctx context.Context, lat, lon float64) (place string, radiusKm float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.now().Before(r.coolUntil) {
		return "", 0, &ProviderError{
			Provider:    r.cfg.Provider,
			Message:     "hourly limit cooldown active",
			HourlyLimit: true,
		}
	}

	for _, radius := range []float64{r.cfg.PrimaryRadiusKm, r.cfg.FallbackRadiusKm} {
		if wait := r.nextCallAt.Sub(r.now()); wait > 0 {
			r.sleep(wait)
		}
		r.nextCallAt = r.now().Add(r.cfg.MinInterval)

		place, err = r.client.findNearby(ctx, lat, lon, radius)
		if err != nil {
			var perr *ProviderError
			if errors.As(err, &perr) && perr.HourlyLimit {
				r.coolUntil = r.now().Add(cooldownPeriod)
				logging.Warn("Geocode provider hourly limit reached, cooling down until %v", r.coolUntil)
			}
			return "", 0, err
		}
		if place != "" {
			return place, radius, nil
		}
	}
	return "", r.cfg.FallbackRadiusKm, nil
}

func (r *Resolver) touch(ctx context.Context, key string) {
	if err := r.db.TouchGeocodeEntry(ctx, key, r.now()); err != nil {
		logging.Warn("Failed to touch geocode entry %s: %v", key, err)
	}
}
