package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Config selects and configures the verdict sinks.
type Config struct {
	// Outputs names the sinks to open: log, memory, sqlite, postgres, kafka.
	Outputs     []string
	LogFile     string
	SQLitePath  string
	PostgresURL string
	Kafka       KafkaConfig
}

// Open builds a Fanout over every configured output. On failure the sinks
// opened so far are closed.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Fanout, error) {
	f := NewFanout(logger)
	if len(cfg.Outputs) == 0 {
		cfg.Outputs = []string{"log"}
	}

	for _, name := range cfg.Outputs {
		name = strings.ToLower(strings.TrimSpace(name))
		s, err := openOne(ctx, name, cfg, logger)
		if err != nil {
			f.Close() //nolint:errcheck
			return nil, fmt.Errorf("open %s sink: %w", name, err)
		}
		f.Add(name, s)
		logger.Info("storage: sink opened", zap.String("sink", name))
	}
	return f, nil
}

func openOne(ctx context.Context, name string, cfg Config, logger *zap.Logger) (Sink, error) {
	switch name {
	case "log":
		return NewLogSink(cfg.LogFile)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("storage.sqlite_path is not set")
		}
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("storage.postgres_url is not set")
		}
		s, err := NewPostgresStore(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "kafka":
		return NewKafkaSink(cfg.Kafka, logger)
	default:
		return nil, fmt.Errorf("unknown output %q", name)
	}
}
