package startup

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func setTestDirs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PHOTO_ROOT", filepath.Join(dir, "photos"))
	t.Setenv("IMPORT_ROOT", filepath.Join(dir, "import"))
	t.Setenv("FAILED_ROOT", filepath.Join(dir, "failed"))
	t.Setenv("DERIV_ROOT", filepath.Join(dir, "derivs"))
	t.Setenv("DATABASE_DIR", filepath.Join(dir, "db"))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := setTestDirs(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.MetricsPort != "9090" {
		t.Errorf("MetricsPort = %q, want 9090", cfg.MetricsPort)
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled = false, want true by default")
	}
	if cfg.DatabasePath != filepath.Join(dir, "db", "photodex.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Geocode.Enabled {
		t.Error("geocoding enabled by default")
	}
	if cfg.Geocode.CellM != 100 {
		t.Errorf("Geocode.CellM = %d, want 100", cfg.Geocode.CellM)
	}
	if cfg.Geocode.NegativeTTL != 168*time.Hour {
		t.Errorf("Geocode.NegativeTTL = %v, want 168h", cfg.Geocode.NegativeTTL)
	}
}

func TestLoadConfigCreatesDirectories(t *testing.T) {
	setTestDirs(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	for _, dir := range []string{cfg.PhotoRoot, cfg.ImportRoot, cfg.FailedRoot, cfg.DerivRoot, cfg.DatabaseDir} {
		if !filepath.IsAbs(dir) {
			t.Errorf("directory %q is not absolute", dir)
		}
	}
}

func TestLoadConfigGeocodeOverrides(t *testing.T) {
	setTestDirs(t)
	t.Setenv("GEOCODE_ENABLED", "true")
	t.Setenv("GEOCODE_USERNAME", "demo")
	t.Setenv("GEOCODE_CACHE_CELL_M", "250")
	t.Setenv("GEOCODE_RADIUS_KM_PRIMARY", "0.5")
	t.Setenv("GEOCODE_NEGATIVE_TTL", "24h")
	t.Setenv("GEOCODE_MIN_INTERVAL", "100ms")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	g := cfg.Geocode
	if !g.Enabled || g.Username != "demo" || g.CellM != 250 {
		t.Errorf("geocode config = %+v", g)
	}
	if g.PrimaryRadiusKm != 0.5 {
		t.Errorf("PrimaryRadiusKm = %g, want 0.5", g.PrimaryRadiusKm)
	}
	if g.NegativeTTL != 24*time.Hour {
		t.Errorf("NegativeTTL = %v, want 24h", g.NegativeTTL)
	}
	if g.MinInterval != 100*time.Millisecond {
		t.Errorf("MinInterval = %v, want 100ms", g.MinInterval)
	}
}

func TestSplitExts(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{".jpg,.png", []string{".jpg", ".png"}},
		{"jpg, PNG ,tiff", []string{".jpg", ".png", ".tiff"}},
		{" , ,", nil},
	}
	for _, tt := range tests {
		if got := splitExts(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitExts(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "nope")

	if got := getEnv("TEST_STR", "d"); got != "value" {
		t.Errorf("getEnv = %q", got)
	}
	if got := getEnv("TEST_UNSET", "d"); got != "d" {
		t.Errorf("getEnv fallback = %q", got)
	}
	if !getEnvBool("TEST_BOOL", false) {
		t.Error("getEnvBool = false")
	}
	if got := getEnvInt("TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt = %d", got)
	}
	if got := getEnvInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvInt with invalid value = %d, want fallback 7", got)
	}
}
