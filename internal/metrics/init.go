package metrics

// InitializeMetrics pre-populates expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, kind := range []string{"scan", "import", "delete"} {
		JobsSubmittedTotal.WithLabelValues(kind)
		JobDuration.WithLabelValues(kind)
		for _, status := range []string{"completed", "error"} {
			JobsFinishedTotal.WithLabelValues(kind, status)
		}
	}

	for _, outcome := range []string{"indexed", "duplicate", "failed"} {
		FilesProcessedTotal.WithLabelValues(outcome)
	}

	for _, dest := range []string{"library", "quarantine"} {
		ImportMovesTotal.WithLabelValues(dest)
	}

	for _, status := range []string{"success", "error"} {
		DerivativeGenerationsTotal.WithLabelValues(status)
	}

	for _, outcome := range []string{"hit", "miss", "negative_hit", "provider_error", "disabled"} {
		GeocodeLookupsTotal.WithLabelValues(outcome)
	}

	for _, op := range []string{
		"initialize_schema", "insert_photo", "get_photo_by_fingerprint",
		"get_photo_by_guid", "update_photo_location", "delete_photo",
		"count_photos", "ensure_catalog", "get_catalog", "set_catalog_updating",
		"upsert_job", "get_job",
		"get_geocode_entry", "put_geocode_entry", "touch_geocode_entry",
	} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
