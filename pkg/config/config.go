package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ScraperConfig holds general scraper settings.
type ScraperConfig struct {
	Workers        string        `yaml:"workers"`
	Headless       bool          `yaml:"headless"`
	PageTimeout    time.Duration `yaml:"page_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MinDelay       time.Duration `yaml:"min_delay"`
	MaxRetries     int           `yaml:"max_retries"`
	UserAgent      string        `yaml:"user_agent"`
}

// OutputConfig controls where and how result sets are persisted.
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	Format       string `yaml:"format"`
	MissingValue string `yaml:"missing_value"`
}

// CountriesConfig selects the column used for Africa filtering.
type CountriesConfig struct {
	Enabled bool `yaml:"enabled"`
	// Fields are tried in order; the first one present in a result set wins.
	Fields  []string          `yaml:"fields"`
	Aliases map[string]string `yaml:"aliases"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type ServerConfig struct {
	Addr   string `yaml:"addr"`
	ApiKey string `yaml:"api_key"`
}

// SourceConfig overrides run settings for a single source. Zero values fall back to the defaults.
type SourceConfig struct {
	MaxPages     int      `yaml:"max_pages"`
	PageSize     int      `yaml:"page_size"`
	DedupeKey    string   `yaml:"dedupe_key"`
	ConfirmStart *bool    `yaml:"confirm_start"`
	Token        string   `yaml:"token"`
	Datasets     []string `yaml:"datasets"`
	BaseURL      string   `yaml:"base_url"`
}

// Config is the complete structure for the config.yml file.
type Config struct {
	Scraper   ScraperConfig           `yaml:"scraper"`
	Output    OutputConfig            `yaml:"output"`
	Countries CountriesConfig         `yaml:"countries"`
	Database  DatabaseConfig          `yaml:"database"`
	S3        S3Config                `yaml:"s3"`
	Server    ServerConfig            `yaml:"server"`
	Sources   map[string]SourceConfig `yaml:"sources"`
}

// Default returns a configuration usable without any config file.
func Default() *Config {
	return &Config{
		Scraper: ScraperConfig{
			Workers:        "5",
			Headless:       true,
			PageTimeout:    10 * time.Second,
			RequestTimeout: 60 * time.Second,
			MinDelay:       time.Second,
			MaxRetries:     3,
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
		},
		Output: OutputConfig{
			Dir:          "downloads",
			Format:       "csv",
			MissingValue: "N/A",
		},
		Countries: CountriesConfig{
			Enabled: true,
			Fields:  []string{"Geographic area", "Country", "Reference area", "Country Name"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "africa.db",
		},
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "africa",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Sources: map[string]SourceConfig{},
	}
}

// LoadConfig reads the YAML file at filepath over the defaults, then applies the .env overlay.
// A missing file is not an error.
func LoadConfig(filepath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", filepath).Msg("config file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshalling config YAML: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env")
	}
	cfg.applyEnv()

	if cfg.Sources == nil {
		cfg.Sources = map[string]SourceConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"AFRICA_DB_DRIVER":      &c.Database.Driver,
		"AFRICA_DB_DSN":         &c.Database.DSN,
		"AFRICA_S3_ACCESS_KEY":  &c.S3.AccessKey,
		"AFRICA_S3_SECRET_KEY":  &c.S3.SecretKey,
		"AFRICA_SERVER_API_KEY": &c.Server.ApiKey,
	}
	for key, target := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*target = v
		}
	}
	if token := os.Getenv("AFRICA_UNPOP_TOKEN"); token != "" {
		if c.Sources == nil {
			c.Sources = map[string]SourceConfig{}
		}
		src := c.Sources["unpopulation"]
		src.Token = token
		c.Sources["unpopulation"] = src
	}
}

var (
	validFormats = map[string]bool{"csv": true, "json": true, "parquet": true, "table": true}
	validDrivers = map[string]bool{"sqlite": true, "postgres": true}
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("config: unknown output format %q", c.Output.Format)
	}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Scraper.PageTimeout <= 0 || c.Scraper.RequestTimeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	if c.Scraper.MinDelay < 0 {
		return errors.New("config: min_delay must not be negative")
	}
	if c.Scraper.MaxRetries < 0 {
		return errors.New("config: max_retries must not be negative")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return errors.New("config: s3.bucket is required when s3 is enabled")
	}
	return nil
}

// Source returns the overrides for name, or the zero value.
func (c *Config) Source(name string) SourceConfig {
	return c.Sources[name]
}
