// Package config provides configuration management for the cluster monitor dashboard.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "CLUSTER_MONITOR"

// Config holds all configuration for the dashboard.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Cluster     ClusterConfig     `mapstructure:"cluster"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ClusterConfig describes the cluster API the dashboard polls.
// The poll cadence and dataset bounds are not configurable.
type ClusterConfig struct {
	BaseURL        string           `mapstructure:"base_url"`
	RequestTimeout time.Duration    `mapstructure:"request_timeout"`
	Nodes          []model.NodeRole `mapstructure:"nodes"`
}

// CORSConfig holds allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/cluster-monitor/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, use defaults/env)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Cluster.BaseURL = strings.TrimRight(cfg.Cluster.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// DefaultNodes is the three-node layout the dashboard ships with.
func DefaultNodes() []model.NodeRole {
	return []model.NodeRole{
		{Host: "4.155.229.148", Role: "Primary (Write)"},
		{Host: "20.3.208.164", Role: "Secondary 1 (Read)"},
		{Host: "20.171.8.192", Role: "Secondary 2 (Read)"},
	}
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("cluster.base_url", "http://localhost:8000")
	v.SetDefault("cluster.request_timeout", "5s")
	nodes := make([]map[string]string, 0, 3)
	for _, n := range DefaultNodes() {
		nodes = append(nodes, map[string]string{"host": n.Host, "role": n.Role})
	}
	v.SetDefault("cluster.nodes", nodes)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("rate_limiter.requests_per_second", 50.0)
	v.SetDefault("rate_limiter.burst_size", 20)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Cluster.BaseURL == "" {
		return fmt.Errorf("cluster base url is required")
	}
	u, err := url.Parse(c.Cluster.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid cluster base url: %q", c.Cluster.BaseURL)
	}

	if c.Cluster.RequestTimeout <= 0 {
		return fmt.Errorf("cluster request timeout must be positive")
	}

	seen := make(map[string]bool, len(c.Cluster.Nodes))
	for _, n := range c.Cluster.Nodes {
		if n.Host == "" {
			return fmt.Errorf("cluster node host must not be empty")
		}
		if seen[n.Host] {
			return fmt.Errorf("duplicate cluster node host: %s", n.Host)
		}
		seen[n.Host] = true
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Server.Port {
			return fmt.Errorf("metrics port must differ from server port")
		}
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	return nil
}

// RoleLabels returns the host to role mapping of the configured nodes.
func (c *ClusterConfig) RoleLabels() map[string]string {
	labels := make(map[string]string, len(c.Nodes))
	for _, n := range c.Nodes {
		labels[n.Host] = n.Role
	}
	return labels
}
