package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete classicd server configuration.
type Config struct {
	Engine  EngineConfig `yaml:"engine"`
	Listen  ListenConfig `yaml:"listen"`
	Logging LogConfig    `yaml:"logging"`
	Diag    DiagConfig   `yaml:"diag"`
}

// EngineConfig sizes every fixed-capacity resource the I/O engine owns.
type EngineConfig struct {
	MaxConnections int `yaml:"max_connections"`
	QueueDepth     int `yaml:"queue_depth"`
	FramePoolSize  int `yaml:"frame_pool_size"`
}

type ListenConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DiagConfig controls the diagnostics surface: a health/stats HTTP API
// plus an optional live trace websocket, optionally dual-stacked over
// HTTP/3 and/or fronted by ACME-issued TLS.
type DiagConfig struct {
	Enabled bool        `yaml:"enabled"`
	Address string      `yaml:"address"`
	Trace   TraceConfig `yaml:"trace"`
	HTTP3   HTTP3Config `yaml:"http3"`
	TLS     TLSConfig   `yaml:"tls"`
}

type TraceConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Path         string   `yaml:"path"`
	BufferSize   int      `yaml:"buffer_size"`
	PingInterval Duration `yaml:"ping_interval"`
}

type HTTP3Config struct {
	Enabled bool `yaml:"enabled"`
}

type TLSConfig struct {
	Auto bool       `yaml:"auto"`
	Cert string     `yaml:"cert"`
	Key  string     `yaml:"key"`
	ACME ACMEConfig `yaml:"acme"`
}

type ACMEConfig struct {
	Email    string   `yaml:"email"`
	Domains  []string `yaml:"domains"`
	CacheDir string   `yaml:"cache_dir"`
	Staging  bool     `yaml:"staging"`
}

// Duration is a time.Duration that supports YAML string unmarshaling.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads config from a YAML file, applying defaults for missing values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Engine.MaxConnections < 1 {
		return fmt.Errorf("engine.max_connections must be >= 1, got %d", c.Engine.MaxConnections)
	}
	if c.Engine.QueueDepth < 1 {
		return fmt.Errorf("engine.queue_depth must be >= 1, got %d", c.Engine.QueueDepth)
	}
	if c.Engine.FramePoolSize < c.Engine.MaxConnections {
		return fmt.Errorf("engine.frame_pool_size (%d) must be >= engine.max_connections (%d): every connection needs at least one in-flight frame", c.Engine.FramePoolSize, c.Engine.MaxConnections)
	}
	if c.Listen.Address == "" {
		return fmt.Errorf("listen.address is required")
	}
	if c.Diag.Enabled && c.Diag.Address == "" {
		return fmt.Errorf("diag.address is required when diag is enabled")
	}
	if c.Diag.TLS.Auto && len(c.Diag.TLS.ACME.Domains) == 0 {
		return fmt.Errorf("diag.tls.acme.domains is required when diag.tls.auto is enabled")
	}
	return nil
}
