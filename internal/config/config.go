package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/wetbulb-sitemap/internal/sitemap"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	SiteBaseURL   string
	GazetteerPath string

	PageSize     int
	FlatPageSize int
	PathOrder    sitemap.PathOrder
	IndexTTL     time.Duration
	OutputDir    string

	// BatchSize caps the number of country partitions generated at once.
	BatchSize int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Artifact notifications; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// PublishEnabled reports whether written artifacts are announced on Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	pageSize, err := parsePageSize("SITEMAP_PAGE_SIZE", sitemap.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	flatPageSize, err := parsePageSize("SITEMAP_FLAT_PAGE_SIZE", sitemap.DefaultFlatPageSize)
	if err != nil {
		return nil, err
	}

	order, err := sitemap.ParsePathOrder(sharedcfg.EnvOrDefault("SITEMAP_PATH_ORDER", string(sitemap.CountryFirst)))
	if err != nil {
		return nil, fmt.Errorf("invalid SITEMAP_PATH_ORDER: %w", err)
	}

	ttl, err := time.ParseDuration(sharedcfg.EnvOrDefault("SITEMAP_INDEX_TTL", "1h"))
	if err != nil || ttl < 0 {
		return nil, errors.New("invalid SITEMAP_INDEX_TTL: must be a non-negative duration")
	}

	cfg := &Config{
		SiteBaseURL:     strings.TrimRight(siteBaseURL(), "/"),
		GazetteerPath:   sharedcfg.EnvOrDefault("GAZETTEER_PATH", "data/resolved_cities.json"),
		PageSize:        pageSize,
		FlatPageSize:    flatPageSize,
		PathOrder:       order,
		IndexTTL:        ttl,
		OutputDir:       sharedcfg.EnvOrDefault("SITEMAP_OUTPUT_DIR", "public"),
		BatchSize:       batchSize,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		KafkaBrokers:    sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_SITEMAP_TOPIC", "sitemap-artifacts"),
	}

	if !strings.HasPrefix(cfg.SiteBaseURL, "http://") && !strings.HasPrefix(cfg.SiteBaseURL, "https://") {
		return nil, errors.New("invalid SITE_BASE_URL: must be an absolute http(s) URL")
	}

	return cfg, nil
}

// siteBaseURL prefers SITE_BASE_URL and falls back to the frontend's
// NEXT_PUBLIC_SITE_URL.
func siteBaseURL() string {
	if v := os.Getenv("SITE_BASE_URL"); v != "" {
		return v
	}
	return sharedcfg.EnvOrDefault("NEXT_PUBLIC_SITE_URL", "https://www.wetbulb35.com")
}

func parsePageSize(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > sitemap.MaxPageSize {
		return 0, fmt.Errorf("invalid %s: must be 1-%d", key, sitemap.MaxPageSize)
	}
	return n, nil
}
