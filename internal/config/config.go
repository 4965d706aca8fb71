// Package config loads sundew settings from a YAML file, SUNDEW_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jmerrifield20/sundew/internal/classify"
	"github.com/jmerrifield20/sundew/internal/storage"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Persona  PersonaConfig  `mapstructure:"persona"`
	Pack     PackConfig     `mapstructure:"pack"`
	Session  SessionConfig  `mapstructure:"session"`
	Classify ClassifyConfig `mapstructure:"classify"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	MCPPath        string   `mapstructure:"mcp_path"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
	ApplyLatency   bool     `mapstructure:"apply_latency"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type MonitorConfig struct {
	Port        int      `mapstructure:"port"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type PersonaConfig struct {
	Seed                string `mapstructure:"seed"`
	File                string `mapstructure:"file"`
	LatencyDistribution string `mapstructure:"latency_distribution"`
}

type PackConfig struct {
	CacheFile string `mapstructure:"cache_file"`
}

type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Retention     time.Duration `mapstructure:"retention"`
	Shards        int           `mapstructure:"shards"`
}

type ClassifyConfig struct {
	Weights classify.Weights `mapstructure:"weights"`
	// Boundaries are the automated, ai_assisted and ai_agent thresholds.
	Boundaries []float64 `mapstructure:"boundaries"`
}

type StorageConfig struct {
	Outputs     []string `mapstructure:"outputs"`
	LogFile     string   `mapstructure:"log_file"`
	SQLitePath  string   `mapstructure:"sqlite_path"`
	PostgresURL string   `mapstructure:"postgres_url"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	Acks        string   `mapstructure:"acks"`
	Compression string   `mapstructure:"compression"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mcp_path", "/mcp")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.apply_latency", true)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 0)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("monitor.port", 9100)
	v.SetDefault("monitor.jwt_secret", "")
	v.SetDefault("monitor.cors_origins", []string{})
	v.SetDefault("persona.seed", "auto")
	v.SetDefault("persona.file", "")
	v.SetDefault("persona.latency_distribution", "uniform")
	v.SetDefault("pack.cache_file", "")
	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.sweep_interval", "1m")
	v.SetDefault("session.retention", "0s")
	v.SetDefault("session.shards", 64)
	v.SetDefault("classify.weights.timing", 1.0)
	v.SetDefault("classify.weights.path_enumeration", 1.0)
	v.SetDefault("classify.weights.header_anomaly", 1.0)
	v.SetDefault("classify.weights.prompt_leakage", 1.0)
	v.SetDefault("classify.weights.protocol_native", 1.0)
	v.SetDefault("classify.boundaries", []float64{0.3, 0.6, 0.8})
	v.SetDefault("storage.outputs", []string{"log"})
	v.SetDefault("storage.log_file", "")
	v.SetDefault("storage.sqlite_path", "data/sundew.db")
	v.SetDefault("storage.postgres_url", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "sundew.verdicts")
	v.SetDefault("kafka.acks", "all")
	v.SetDefault("kafka.compression", "snappy")
}

// Load reads configuration. An empty path searches for sundew.yaml in
// configs/ and the working directory; a missing file there is not an error.
// An explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sundew")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("SUNDEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.Server.MCPPath, "/") {
		return fmt.Errorf("config: server.mcp_path must start with '/', got %q", c.Server.MCPPath)
	}
	if c.Server.Port == c.Monitor.Port {
		return fmt.Errorf("config: server.port and monitor.port must differ (both %d)", c.Server.Port)
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("config: session.idle_timeout must be positive, got %s", c.Session.IdleTimeout)
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("config: session.sweep_interval must be positive, got %s", c.Session.SweepInterval)
	}
	if _, err := c.Classifier(); err != nil {
		return err
	}
	return nil
}

// Classifier converts the classify section.
func (c Config) Classifier() (classify.Config, error) {
	b := c.Classify.Boundaries
	if len(b) != 3 {
		return classify.Config{}, fmt.Errorf("config: classify.boundaries needs 3 values, got %d", len(b))
	}
	cc := classify.Config{
		Weights:    c.Classify.Weights,
		Boundaries: classify.Boundaries{Automated: b[0], AIAssisted: b[1], AIAgent: b[2]},
	}
	if err := cc.Validate(); err != nil {
		return classify.Config{}, err
	}
	return cc, nil
}

// Sinks converts the storage and kafka sections.
func (c Config) Sinks() storage.Config {
	return storage.Config{
		Outputs:     c.Storage.Outputs,
		LogFile:     c.Storage.LogFile,
		SQLitePath:  c.Storage.SQLitePath,
		PostgresURL: c.Storage.PostgresURL,
		Kafka: storage.KafkaConfig{
			Brokers:     c.Kafka.Brokers,
			Topic:       c.Kafka.Topic,
			Acks:        c.Kafka.Acks,
			Compression: c.Kafka.Compression,
		},
	}
}
