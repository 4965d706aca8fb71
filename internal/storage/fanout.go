package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/metrics"
	"github.com/jmerrifield20/sundew/internal/session"
)

type namedSink struct {
	name string
	sink Sink
}

// Fanout delivers each verdict to every registered sink. When some sinks
// fail, a retried Emit only goes to the sinks that have not yet accepted
// the verdict.
type Fanout struct {
	sinks  []namedSink
	logger *zap.Logger

	mu      sync.Mutex
	partial map[string]map[string]bool // session id -> sinks that accepted it
}

// NewFanout creates an empty Fanout.
func NewFanout(logger *zap.Logger) *Fanout {
	return &Fanout{logger: logger, partial: make(map[string]map[string]bool)}
}

// Add registers sink under name.
func (f *Fanout) Add(name string, sink Sink) {
	f.sinks = append(f.sinks, namedSink{name: name, sink: sink})
}

// Names lists the registered sinks in order.
func (f *Fanout) Names() []string {
	out := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		out[i] = s.name
	}
	return out
}

// Sink returns the sink registered under name, or nil.
func (f *Fanout) Sink(name string) Sink {
	for _, s := range f.sinks {
		if s.name == name {
			return s.sink
		}
	}
	return nil
}

func (f *Fanout) Emit(ctx context.Context, v session.Verdict) error {
	f.mu.Lock()
	done := f.partial[v.SessionID]
	f.mu.Unlock()

	var errs []error
	accepted := make(map[string]bool, len(f.sinks))
	for _, s := range f.sinks {
		if done[s.name] {
			accepted[s.name] = true
			continue
		}
		if err := s.sink.Emit(ctx, v); err != nil {
			metrics.RecordSinkError(s.name)
			f.logger.Warn("storage: sink rejected verdict",
				zap.String("sink", s.name),
				zap.String("session_id", v.SessionID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		accepted[s.name] = true
	}

	f.mu.Lock()
	if len(errs) == 0 {
		delete(f.partial, v.SessionID)
	} else {
		f.partial[v.SessionID] = accepted
	}
	f.mu.Unlock()
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
