package storage

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jmerrifield20/sundew/internal/session"
)

// LogSink writes one JSON line per verdict.
type LogSink struct {
	logger *zap.Logger
	sync   bool
}

// NewLogSink writes to path, or to stdout when path is empty.
func NewLogSink(path string) (*LogSink, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	if path != "" {
		cfg.OutputPaths = []string{path}
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &LogSink{logger: l.Named("verdicts"), sync: path != ""}, nil
}

// NewLogSinkWithLogger writes through an existing logger.
func NewLogSinkWithLogger(l *zap.Logger) *LogSink {
	return &LogSink{logger: l}
}

func (s *LogSink) Emit(_ context.Context, v session.Verdict) error {
	s.logger.Info("session verdict",
		zap.String("session_id", v.SessionID),
		zap.String("key", v.Key),
		zap.String("label", string(v.Label)),
		zap.Float64("composite", v.Composite),
		zap.String("dominant", v.Dominant),
		zap.Float64("timing", v.Scores.Timing),
		zap.Float64("path_enumeration", v.Scores.PathEnumeration),
		zap.Float64("header_anomaly", v.Scores.HeaderAnomaly),
		zap.Float64("prompt_leakage", v.Scores.PromptLeakage),
		zap.Float64("protocol_native", v.Scores.ProtocolNative),
		zap.Int("event_count", v.EventCount),
		zap.String("reason", string(v.Reason)),
		zap.Time("first_seen", v.FirstSeen),
		zap.Time("last_seen", v.LastSeen),
		zap.Time("finalized_at", v.FinalizedAt),
	)
	return nil
}

func (s *LogSink) Close() error {
	if !s.sync {
		return nil
	}
	return s.logger.Sync()
}
