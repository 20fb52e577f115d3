package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

// Config is the process configuration, layered as defaults <- optional YAML
// file <- environment overrides.
type Config struct {
	Service string `yaml:"service"`
	Env     string `yaml:"env"`

	HTTP struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Store struct {
		Backend string `yaml:"backend"`
		Mongo   struct {
			URI      string `yaml:"uri"`
			Database string `yaml:"database"`
		} `yaml:"mongo"`
	} `yaml:"store"`

	Checkout struct {
		// OversoldRetries bounds how many times a checkout is re-run after a
		// decrement-time stock conflict. Zero disables the retry.
		OversoldRetries int `yaml:"oversold_retries"`
	} `yaml:"checkout"`
}

func Default() *Config {
	cfg := &Config{Service: "storefront", Env: "dev"}
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.ShutdownTimeout = 10 * time.Second
	cfg.Store.Backend = StoreMemory
	cfg.Store.Mongo.URI = "mongodb://localhost:27017"
	cfg.Store.Mongo.Database = "storefront"
	cfg.Checkout.OversoldRetries = 1
	return cfg
}

// Load reads the file named by CONFIG_FILE (when set and present), then
// applies environment overrides, then validates.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Service, "SERVICE_NAME")
	setString(&cfg.Env, "ENV")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.Store.Backend, "STORE_BACKEND")
	setString(&cfg.Store.Mongo.URI, "MONGO_URI")
	setString(&cfg.Store.Mongo.Database, "MONGO_DATABASE")
	setInt(&cfg.Checkout.OversoldRetries, "CHECKOUT_OVERSOLD_RETRIES")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c *Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("config: service name is required")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("config: http addr is required")
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreMongo:
		if c.Store.Mongo.URI == "" || c.Store.Mongo.Database == "" {
			return fmt.Errorf("config: mongo uri and database are required for the mongo backend")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Checkout.OversoldRetries < 0 {
		return fmt.Errorf("config: checkout oversold retries must not be negative")
	}
	return nil
}
