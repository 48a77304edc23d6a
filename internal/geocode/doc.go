// Package geocode resolves photo coordinates to place names. Lookups go
// through a persistent cache keyed on quantized grid cells, so nearby
// photos share one provider call; misses go to GeoNames behind a
// min-interval throttle and an hourly-limit cooldown.
package geocode
