package app

import (
	"os"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete library wiring configuration, loadable from
// environment variables (FOUNDATION_ prefix), flags, or YAML config files.
type Config struct {
	DatabaseURL   string `usage:"PostgreSQL connection URL (FOUNDATION_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	CurrentMarket string `default:"" usage:"Market id resolved as the visitor's current market" flag:"current-market"`
	Redis         RedisConfig
}

// RedisConfig controls the browse-history key-value store connection.
type RedisConfig struct {
	Addr     string `default:"localhost:6379" usage:"Redis address for the browse history store"`
	Password string `default:"" usage:"Redis password"`
	DB       int    `default:"0" usage:"Redis database number"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FOUNDATION",
		Files:     []string{"config.yaml", "/etc/foundation/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set FOUNDATION_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and REDIS_ADDR to the
// FOUNDATION_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" && c.Redis.Addr == "localhost:6379" {
		c.Redis.Addr = v
	}
}
