package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"bluticconsent/internal/consent"
	"bluticconsent/internal/logsink"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

type Config struct {
	Blutic  BluticConfig   `json:"blutic"`
	Admin   AdminConfig    `json:"admin"`
	Logsink logsink.Config `json:"logsink"`
	OTLP    OTLPConfig     `json:"otlp"`
}

// BluticConfig holds the plugin parameters an administrator would set.
type BluticConfig struct {
	Enabled  bool   `json:"enabled"`
	DomainID string `json:"domain_id"`
	// Debug mirrors diagnostics to the browser console.
	Debug bool `json:"debug"`
}

type AdminConfig struct {
	// PathPrefixes marks the administrative side of the site. Pages under them are never injected.
	PathPrefixes []string `json:"path_prefixes"`
}

type OTLPConfig struct {
	Endpoint string `json:"endpoint"`
}

func (o OTLPConfig) Enabled() bool {
	return o.Endpoint != ""
}

// Load reads configuration from the environment, after loading .env if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	config := &Config{
		Blutic: BluticConfig{
			Enabled:  parseBool(os.Getenv("BLUTIC_ENABLED"), true),
			DomainID: os.Getenv("BLUTIC_DOMAIN_ID"),
			Debug:    parseBool(os.Getenv("BLUTIC_DEBUG"), false),
		},
		Admin: AdminConfig{
			PathPrefixes: splitPrefixes(getEnvOrDefault("BLUTIC_ADMIN_PREFIXES", "/administrator")),
		},
		Logsink: logsink.Config{
			AccountName: os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
			AccountKey:  os.Getenv("AZURE_STORAGE_PRIMARY_ACCOUNT_KEY"),
			Container:   getEnvOrDefault("LOGSINK_CONTAINER", "logs"),
			FlushEvery:  2 * time.Second,
		},
		OTLP: OTLPConfig{
			Endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	return config, nil
}

// Consent is the plugin configuration handed to each render.
func (c *Config) Consent() consent.Config {
	return consent.Config{
		Enabled:  c.Blutic.Enabled,
		DomainID: c.Blutic.DomainID,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(value string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return defaultValue
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func splitPrefixes(value string) []string {
	prefixes := lo.Map(strings.Split(value, ","), func(p string, _ int) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		return "/" + strings.Trim(p, "/")
	})
	return lo.Uniq(lo.Compact(prefixes))
}
