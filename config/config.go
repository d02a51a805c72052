package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	PGURL        string
	Port         string
	CommunityURL string
	CommunityKey string
	LookupKey    string
	ProviderKey  string

	// Pipeline tunables.
	DecompMaxAge   time.Duration // freshness window for cached decompositions
	Tier1WeightPct float64       // constituents at or above this weight get the full cascade
	NetConcurrency int64         // bound on concurrent network-tier calls
	LookupTimeout  time.Duration // per-service timeout for external lookups
}

// Load reads configuration from a .env file (when present) and the process
// environment. Invalid numeric values are configuration errors, not defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using system environment variables")
	}

	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		return nil, fmt.Errorf("PG_URL environment variable is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	communityURL := os.Getenv("COMMUNITY_URL")
	if communityURL == "" {
		communityURL = "https://community.exposurereport.dev/api/v1"
	}

	maxAgeHours, err := envFloat("DECOMP_MAX_AGE_HOURS", 24)
	if err != nil {
		return nil, err
	}

	tier1, err := envFloat("TIER1_WEIGHT_PCT", 1.0)
	if err != nil {
		return nil, err
	}

	netConc, err := envInt("NET_CONCURRENCY", 5)
	if err != nil {
		return nil, err
	}
	if netConc < 1 {
		return nil, fmt.Errorf("NET_CONCURRENCY must be at least 1, got %d", netConc)
	}

	lookupTimeout, err := envInt("LOOKUP_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}

	return &Config{
		PGURL:          pgURL,
		Port:           port,
		CommunityURL:   communityURL,
		CommunityKey:   os.Getenv("COMMUNITY_KEY"),
		LookupKey:      os.Getenv("LOOKUP_KEY"),
		ProviderKey:    os.Getenv("PROVIDER_KEY"),
		DecompMaxAge:   time.Duration(maxAgeHours * float64(time.Hour)),
		Tier1WeightPct: tier1,
		NetConcurrency: netConc,
		LookupTimeout:  time.Duration(lookupTimeout) * time.Second,
	}, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func envInt(key string, def int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}
