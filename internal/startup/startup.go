package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"photodex/internal/geocode"
	"photodex/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	PhotoRoot   string
	ImportRoot  string
	FailedRoot  string
	DerivRoot   string
	DatabaseDir string
	Port        string
	MetricsPort string

	MetricsEnabled  bool
	LogHealthChecks bool
	PhotoExts       []string
	JobWorkers      int

	Geocode geocode.Config

	// Derived paths
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment
// variables. A .env file in the working directory is applied first,
// without overriding the real environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logging.Debug("Loaded environment from .env")
	}

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	photoRoot := getEnv("PHOTO_ROOT", "/photos")
	importRoot := getEnv("IMPORT_ROOT", "/import")
	failedRoot := getEnv("FAILED_ROOT", "/failed")
	derivRoot := getEnv("DERIV_ROOT", "/derivatives")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)
	photoExts := splitExts(getEnv("PHOTO_EXTS", ""))
	jobWorkers := getEnvInt("JOB_WORKERS", 0)

	logging.Info("  PHOTO_ROOT:       %s", photoRoot)
	logging.Info("  IMPORT_ROOT:      %s", importRoot)
	logging.Info("  FAILED_ROOT:      %s", failedRoot)
	logging.Info("  DERIV_ROOT:       %s", derivRoot)
	logging.Info("  DATABASE_DIR:     %s", databaseDir)
	logging.Info("  PORT:             %s", port)
	logging.Info("  METRICS_PORT:     %s", metricsPort)
	logging.Info("  METRICS_ENABLED:  %v", metricsEnabled)
	logging.Info("  LOG_LEVEL:        %s", logging.GetLevel())

	geo := loadGeocodeConfig()

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	for _, dir := range []*string{&photoRoot, &importRoot, &failedRoot, &derivRoot, &databaseDir} {
		if *dir, err = filepath.Abs(*dir); err != nil {
			return nil, fmt.Errorf("failed to resolve directory path: %w", err)
		}
	}

	required := []struct {
		path string
		name string
	}{
		{photoRoot, "photo library"},
		{importRoot, "import staging"},
		{failedRoot, "quarantine"},
		{derivRoot, "derivatives"},
		{databaseDir, "database"},
	}
	for _, dir := range required {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable: %s", dir.name, dir.path)
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    ENABLED (required)")
	logging.Info("    Geocoding:   %s", enabledString(geo.Enabled))
	logging.Info("    Metrics:     %s", enabledString(metricsEnabled))

	return &Config{
		PhotoRoot:       photoRoot,
		ImportRoot:      importRoot,
		FailedRoot:      failedRoot,
		DerivRoot:       derivRoot,
		DatabaseDir:     databaseDir,
		Port:            port,
		MetricsPort:     metricsPort,
		MetricsEnabled:  metricsEnabled,
		LogHealthChecks: logHealthChecks,
		PhotoExts:       photoExts,
		JobWorkers:      jobWorkers,
		Geocode:         geo,
		DatabasePath:    filepath.Join(databaseDir, "photodex.db"),
	}, nil
}

// loadGeocodeConfig reads the geocoding settings. They are carried
// opaquely to the geocode package; nothing else consumes them.
func loadGeocodeConfig() geocode.Config {
	cfg := geocode.Config{
		Enabled:          getEnvBool("GEOCODE_ENABLED", false),
		Provider:         getEnv("GEOCODE_PROVIDER", "geonames"),
		Username:         getEnv("GEOCODE_USERNAME", ""),
		CellM:            getEnvInt("GEOCODE_CACHE_CELL_M", 100),
		PrimaryRadiusKm:  getEnvFloat("GEOCODE_RADIUS_KM_PRIMARY", 0.2),
		FallbackRadiusKm: getEnvFloat("GEOCODE_RADIUS_KM_FALLBACK", 1.0),
		Timeout:          getEnvDuration("GEOCODE_TIMEOUT", 6*time.Second),
		MinInterval:      getEnvDuration("GEOCODE_MIN_INTERVAL", 250*time.Millisecond),
		NegativeTTL:      getEnvDuration("GEOCODE_NEGATIVE_TTL", 168*time.Hour),
	}

	logging.Info("  GEOCODE_ENABLED:  %v", cfg.Enabled)
	if cfg.Enabled {
		logging.Info("  GEOCODE_PROVIDER: %s", cfg.Provider)
		logging.Info("  GEOCODE_CACHE_CELL_M: %d", cfg.CellM)
		logging.Info("  GEOCODE_RADIUS_KM: %.2f primary, %.2f fallback", cfg.PrimaryRadiusKm, cfg.FallbackRadiusKm)
		if cfg.Username == "" {
			logging.Warn("  GEOCODE_USERNAME is empty; provider calls will be rejected")
		}
	}
	return cfg
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:  %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:      http://localhost:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:  http://localhost:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:  DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    ____  __          __            __
   / __ \/ /_  ____  / /_____  ____/ /__  _  __
  / /_/ / __ \/ __ \/ __/ __ \/ __  / _ \| |/_/
 / ____/ / / / /_/ / /_/ /_/ / /_/ /  __/>  <
/_/   /_/ /_/\____/\__/\____/\__,_/\___/_/|_|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", path)
	}
	return nil
}

func testWriteAccess(path string) error {
	testFile := filepath.Join(path, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("  failed to remove test file %s: %v", testFile, err)
	}
	return nil
}

func splitExts(s string) []string {
	if s == "" {
		return nil
	}
	var exts []string
	for _, e := range strings.Split(s, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		logging.Warn("  Invalid %s value %q, using default %v", key, value, fallback)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		logging.Warn("  Invalid %s value %q, using default %d", key, value, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
		logging.Warn("  Invalid %s value %q, using default %g", key, value, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		logging.Warn("  Invalid %s value %q, using default %v", key, value, fallback)
	}
	return fallback
}
