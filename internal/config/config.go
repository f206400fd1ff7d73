package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration from environment variables.
type Config struct {
	Port         int
	APIBaseURL   string
	APIKey       string // optional, sent as x-api-key
	SensorsFile  string
	LookupDB     string
	LookupJSON   string // optional stop table as written by the extractor
	GTFSURL      string // static feed imported into LookupDB
	GTFSDir      string
	PollInterval time.Duration
	CacheTTL     time.Duration
	MetricsAddr  string // empty disables the standalone metrics listener
	NATSURL      string // empty disables publishing
	NATSSubject  string // prefix, sensor name is appended
	LogLevel     string
}

// Load reads configuration from environment variables with defaults. A .env
// file in the working directory, if present, is loaded first without
// overriding variables that are already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:         envInt("ETA_PORT", 8080),
		APIBaseURL:   envStr("ETA_API_URL", "https://api-v3.mbta.com"),
		APIKey:       envStr("ETA_API_KEY", ""),
		SensorsFile:  envStr("ETA_SENSORS_FILE", "./sensors.yml"),
		LookupDB:     envStr("ETA_LOOKUP_DB", "./lookup.db"),
		LookupJSON:   envStr("ETA_LOOKUP_JSON", ""),
		GTFSURL:      envStr("ETA_GTFS_URL", "https://cdn.mbta.com/MBTA_GTFS.zip"),
		GTFSDir:      envStr("ETA_GTFS_DIR", "./data"),
		PollInterval: envDuration("ETA_POLL_INTERVAL", 30*time.Second),
		CacheTTL:     envDuration("ETA_CACHE_TTL", 10*time.Second),
		MetricsAddr:  envStr("ETA_METRICS_ADDR", ""),
		NATSURL:      envStr("ETA_NATS_URL", ""),
		NATSSubject:  envStr("ETA_NATS_SUBJECT", "eta"),
		LogLevel:     envStr("ETA_LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go durations ("45s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
