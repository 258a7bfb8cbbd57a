// Package config loads and validates the moviesync YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file. They are read from the
// process environment first, then from a .env file next to the config.
const (
	EnvStoreURL  = "MOVIESYNC_STORE_URL"
	EnvAuthToken = "MOVIESYNC_AUTH_TOKEN"
)

const (
	defaultCeiling        = 5
	defaultRequestTimeout = 30 * time.Second
	minRequestTimeout     = time.Second
	maxRequestTimeout     = 5 * time.Minute
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// StoreURL is the base URL of the remote store
	// (e.g. "https://my-project-default-rtdb.firebaseio.com").
	StoreURL string `yaml:"store_url"`

	// AuthToken is sent as the "auth" query parameter when set.
	AuthToken string `yaml:"auth_token"`

	// Ceiling is the maximum number of movies the counter allows.
	// Defaults to 5, minimum 1.
	Ceiling int `yaml:"ceiling"`

	// RequestTimeout bounds every HTTP request to the store.
	// Minimum 1s, maximum 5m. Defaults to 30s if unset.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "moviesync".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/moviesync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "moviesync", "config.yaml"), nil
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result. A missing file is not an error on its own: the
// store URL may come entirely from the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Environment only.
	case err != nil:
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	default:
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true) // reject unknown keys to catch typos early
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}

	env, err := readEnv(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(env)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// readEnv merges the .env file at path (if any) with the process
// environment. Process variables win.
func readEnv(path string) (map[string]string, error) {
	env := make(map[string]string)
	if _, err := os.Stat(path); err == nil {
		fileEnv, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("reading env file %q: %w", path, err)
		}
		env = fileEnv
	}
	for _, key := range []string{EnvStoreURL, EnvAuthToken} {
		if v := os.Getenv(key); v != "" {
			env[key] = v
		}
	}
	return env, nil
}

func (c *Config) applyEnv(env map[string]string) {
	if v := env[EnvStoreURL]; v != "" {
		c.StoreURL = v
	}
	if v := env[EnvAuthToken]; v != "" {
		c.AuthToken = v
	}
}

// validate checks that all required fields are present and well-formed.
func (c *Config) validate() error {
	if c.StoreURL == "" {
		return fmt.Errorf("store_url is required (or set %s)", EnvStoreURL)
	}
	u, err := url.ParseRequestURI(c.StoreURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("store_url %q must be a valid http or https URL", c.StoreURL)
	}

	if c.Ceiling == 0 {
		c.Ceiling = defaultCeiling
	}
	if c.Ceiling < 1 {
		return fmt.Errorf("ceiling %d must be at least 1", c.Ceiling)
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RequestTimeout < minRequestTimeout {
		return fmt.Errorf("request_timeout %v is too short (minimum 1s)", c.RequestTimeout)
	}
	if c.RequestTimeout > maxRequestTimeout {
		return fmt.Errorf("request_timeout %v is too long (maximum 5m)", c.RequestTimeout)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
