package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"photodex/internal/metrics"
)

const defaultGeoNamesBaseURL = "http://api.geonames.org"

// hourlyLimitStatus is the GeoNames status code for "hourly limit of
// credits exceeded".
const hourlyLimitStatus = 19

// ProviderError reports a failed provider call. Provider errors are
// never cached; the same cell is retried on the next lookup.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Message     string
	HourlyLimit bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
}

// geoNamesClient calls the GeoNames findNearbyPlaceName endpoint.
type geoNamesClient struct {
	baseURL  string
	username string
	http     *http.Client
}

type geoNamesResponse struct {
	GeoNames []struct {
		Name        string `json:"name"`
		AdminName1  string `json:"adminName1"`
		CountryName string `json:"countryName"`
	} `json:"geonames"`
	Status *struct {
		Message string `json:"message"`
		Value   int    `json:"value"`
	} `json:"status"`
}

func newGeoNamesClient(baseURL, username string, timeout time.Duration) *geoNamesClient {
	if baseURL == "" {
		baseURL = defaultGeoNamesBaseURL
	}
	return &geoNamesClient{
		baseURL:  baseURL,
		username: username,
		http:     &http.Client{Timeout: timeout},
	}
}

// findNearby returns the display name of the nearest populated place
// within radiusKm of the coordinate, or "" when the provider has no
// result there. GeoNames reports errors in-band as a status payload, so
// both the HTTP code and the body have to be checked.
func (c *geoNamesClient) findNearby(ctx context.Context, lat, lon, radiusKm float64) (string, error) {
	start := time.Now()

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.6f", lat))
	q.Set("lng", fmt.Sprintf("%.6f", lon))
	q.Set("radius", fmt.Sprintf("%g", radiusKm))
	q.Set("maxRows", "1")
	q.Set("username", c.username)

	reqURL := c.baseURL + "/findNearbyPlaceNameJSON?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	metrics.GeocodeProviderCallsTotal.Inc()
	metrics.GeocodeProviderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", &ProviderError{Provider: "geonames", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{
			Provider:   "geonames",
			StatusCode: resp.StatusCode,
			Message:    "unexpected HTTP status",
		}
	}

	var body geoNamesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &ProviderError{Provider: "geonames", StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if body.Status != nil {
		return "", &ProviderError{
			Provider:    "geonames",
			StatusCode:  resp.StatusCode,
			Message:     body.Status.Message,
			HourlyLimit: body.Status.Value == hourlyLimitStatus || strings.Contains(strings.ToLower(body.Status.Message), "hourly limit"),
		}
	}

	if len(body.GeoNames) == 0 {
		return "", nil
	}

	g := body.GeoNames[0]
	parts := make([]string, 0, 3)
	for _, s := range []string{g.Name, g.AdminName1, g.CountryName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", "), nil
}
