package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Dataset and presentation.
	SitesPath       string
	VisibilityMode  string
	PreselectStatus bool
	PreselectTechno bool
	SizeBy          string
	MinRadius       float64
	MaxRadius       float64
	HeatResolution  int

	// Search behaviour.
	SearchDebounce   time.Duration
	SearchFitPadding float64
	SessionCacheSize int

	// Isochrone provider configuration.
	IsochroneAPIKey   string
	IsochroneEnabled  bool
	IsochroneBaseURL  string
	IsochroneProxyURL string
	IsochroneTimeout  time.Duration
	IsochroneMaxRange int
	IsochroneRanges   []int

	// Kafka telemetry configuration.
	KafkaBrokers     []string
	TelemetryTopic   string
	TelemetryEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	debounce, err := parsePositiveDuration("SEARCH_DEBOUNCE", "300ms")
	if err != nil {
		return nil, err
	}
	isoTimeout, err := parsePositiveDuration("ISOCHRONE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	padding, err := parseFloat("SEARCH_FIT_PADDING", 0.1)
	if err != nil || padding < 0 {
		return nil, errors.New("invalid SEARCH_FIT_PADDING")
	}
	minRadius, err := parseFloat("MIN_RADIUS", 5)
	if err != nil || minRadius <= 0 {
		return nil, errors.New("invalid MIN_RADIUS")
	}
	maxRadius, err := parseFloat("MAX_RADIUS", 16)
	if err != nil || maxRadius < minRadius {
		return nil, errors.New("invalid MAX_RADIUS")
	}

	heatRes, err := parseInt("HEAT_RESOLUTION", 6)
	if err != nil || heatRes < 0 || heatRes > 15 {
		return nil, errors.New("invalid HEAT_RESOLUTION (must be 0..15)")
	}
	maxRange, err := parseInt("ISOCHRONE_MAX_RANGE", 3600)
	if err != nil || maxRange <= 0 {
		return nil, errors.New("invalid ISOCHRONE_MAX_RANGE")
	}
	ranges, err := parseRanges(sharedcfg.EnvOrDefault("ISOCHRONE_RANGES", "1800,3600"))
	if err != nil {
		return nil, err
	}

	preselectStatus, err := parseAllNone("PRESELECT_STATUS", "all")
	if err != nil {
		return nil, err
	}
	preselectTechno, err := parseAllNone("PRESELECT_TECHNO", "none")
	if err != nil {
		return nil, err
	}

	apiKey := os.Getenv("ORS_API_KEY")
	isoEnabled := apiKey != ""
	if v := os.Getenv("ISOCHRONE_ENABLED"); v != "" {
		isoEnabled = v == "true"
	}

	brokers := sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS"))
	telemetryEnabled := len(brokers) > 0
	if v := os.Getenv("TELEMETRY_ENABLED"); v != "" {
		telemetryEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SitesPath:       sharedcfg.EnvOrDefault("SITES_PATH", "data/sites.json"),
		VisibilityMode:  sharedcfg.EnvOrDefault("VISIBILITY_MODE", "both"),
		PreselectStatus: preselectStatus,
		PreselectTechno: preselectTechno,
		SizeBy:          sharedcfg.EnvOrDefault("SIZE_BY", "auto"),
		MinRadius:       minRadius,
		MaxRadius:       maxRadius,
		HeatResolution:  heatRes,

		SearchDebounce:   debounce,
		SearchFitPadding: padding,
		SessionCacheSize: parseSessionCacheSize(),

		IsochroneAPIKey:   apiKey,
		IsochroneEnabled:  isoEnabled,
		IsochroneBaseURL:  sharedcfg.EnvOrDefault("ORS_BASE_URL", "https://api.openrouteservice.org"),
		IsochroneProxyURL: sharedcfg.EnvOrDefault("ISOCHRONE_PROXY_URL", "https://corsproxy.io/?url="),
		IsochroneTimeout:  isoTimeout,
		IsochroneMaxRange: maxRange,
		IsochroneRanges:   ranges,

		KafkaBrokers:     brokers,
		TelemetryTopic:   sharedcfg.EnvOrDefault("KAFKA_TELEMETRY_TOPIC", "isochrone-events"),
		TelemetryEnabled: telemetryEnabled,
	}

	if cfg.SitesPath == "" {
		return nil, errors.New("SITES_PATH is required")
	}
	switch cfg.VisibilityMode {
	case "both", "techno", "status", "either":
	default:
		return nil, fmt.Errorf("invalid VISIBILITY_MODE %q", cfg.VisibilityMode)
	}
	switch cfg.SizeBy {
	case "auto", "capacity", "co2":
	default:
		return nil, fmt.Errorf("invalid SIZE_BY %q", cfg.SizeBy)
	}
	for _, r := range cfg.IsochroneRanges {
		if r > cfg.IsochroneMaxRange {
			return nil, fmt.Errorf("ISOCHRONE_RANGES value %d exceeds ISOCHRONE_MAX_RANGE %d", r, cfg.IsochroneMaxRange)
		}
	}
	if cfg.IsochroneEnabled && cfg.IsochroneAPIKey == "" {
		return nil, errors.New("ISOCHRONE_ENABLED is true but ORS_API_KEY is not set")
	}
	if cfg.TelemetryEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("TELEMETRY_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func parseAllNone(key, def string) (bool, error) {
	switch v := sharedcfg.EnvOrDefault(key, def); v {
	case "all":
		return true, nil
	case "none":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s %q (want all or none)", key, v)
	}
}

func parseRanges(s string) ([]int, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, errors.New("ISOCHRONE_RANGES must list at least one value")
	}
	ranges := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid ISOCHRONE_RANGES value %q", p)
		}
		ranges = append(ranges, n)
	}
	return ranges, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseSessionCacheSize() int {
	if s := os.Getenv("SESSION_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 256
}
