// Package slconfig loads the configuration the cmd/slipwayctl entrypoint
// needs to wire up a driver: logging, registry URL templates, font paths,
// and outbound rate limits. Grounded on the teacher's pkg/config: a typed
// Config struct decoded from environment variables via envdecode, with an
// optional preceding .env load and structured YAML file overrides for the
// fields no sane person puts in an environment variable (a list of
// registry URL templates).
package slconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/slipwayhq/slipway-go/pkg/logging"
)

// LoaderConfig controls the component loader chain.
type LoaderConfig struct {
	// RegistryTemplates are URL templates tried in order by the registry
	// loader, with {publisher}/{name}/{version} placeholders.
	RegistryTemplates []string `yaml:"registry_templates"`
	FetchTimeoutMS    int      `yaml:"fetch_timeout_ms" env:"SLIPWAY_FETCH_TIMEOUT_MS"`
}

// CapabilityConfig controls the host capability surface.
type CapabilityConfig struct {
	FontDir            string  `yaml:"font_dir" env:"SLIPWAY_FONT_DIR"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" env:"SLIPWAY_RATE_LIMIT_PER_SECOND"`
	RateLimitBurst     int     `yaml:"rate_limit_burst" env:"SLIPWAY_RATE_LIMIT_BURST"`
}

// Config is the top-level configuration structure for cmd/slipwayctl.
type Config struct {
	Logging    logging.Config   `yaml:"logging"`
	Loader     LoaderConfig     `yaml:"loader"`
	Capability CapabilityConfig `yaml:"capability"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Loader: LoaderConfig{
			FetchTimeoutMS: 30_000,
		},
		Capability: CapabilityConfig{
			RateLimitPerSecond: 10,
			RateLimitBurst:     20,
		},
	}
}

// Load loads configuration from an optional .env file, an optional YAML
// file named by SLIPWAY_CONFIG_FILE (or ./slipway.yaml if unset), and
// finally environment variables, in that order of increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("SLIPWAY_CONFIG_FILE"))
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("slipway.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode errors out when no tagged field had a matching
		// environment variable set; treat that as "no overrides" so a
		// bare `slipwayctl -rig <file>` works without exporting anything.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
