package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/classify"
	"github.com/jmerrifield20/sundew/internal/event"
	"github.com/jmerrifield20/sundew/internal/metrics"
)

// Config holds tracker configuration.
type Config struct {
	// IdleTimeout is how long a session may go without events before the
	// sweeper finalizes it.
	IdleTimeout time.Duration
	// Retention keeps flushed sessions readable for this long before eviction.
	Retention time.Duration
	Shards    int
	Now       func() time.Time
}

// Tracker maps visitor keys to sessions. It is safe for concurrent use.
type Tracker struct {
	cfg    Config
	eval   Evaluator
	sink   Sink
	logger *zap.Logger

	shards []*shard
	index  sync.Map // session id -> *shard
}

// New creates a Tracker. Zero config values fall back to a 30 minute idle
// timeout and 64 shards.
func New(cfg Config, eval Evaluator, sink Sink, logger *zap.Logger) *Tracker {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 64
	}
	if cfg.Retention < 0 {
		cfg.Retention = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	t := &Tracker{
		cfg:    cfg,
		eval:   eval,
		sink:   sink,
		logger: logger,
		shards: make([]*shard, cfg.Shards),
	}
	for i := range t.shards {
		t.shards[i] = newShard()
	}
	return t
}

// Record appends ev to the open session for ev.Key, creating one when the key
// is unseen or its previous session was finalized. Malformed events are
// counted and rejected without touching any session.
func (t *Tracker) Record(ev event.Event) (string, error) {
	if err := ev.Validate(); err != nil {
		metrics.RecordDropped("malformed")
		t.logger.Warn("session: dropped event",
			zap.String("key", ev.Key),
			zap.String("path", ev.Path),
			zap.Error(err),
		)
		return "", err
	}

	sh := t.shards[shardIndex(ev.Key, len(t.shards))]
	s, created := sh.current(ev.Key, ev.Timestamp)
	for {
		if created {
			t.index.Store(s.id, sh)
			metrics.SessionOpened()
			t.logger.Debug("session: opened", zap.String("session_id", s.id), zap.String("key", s.key))
		}

		s.mu.Lock()
		if s.State() == StateFinalized {
			s.mu.Unlock()
			s, created = sh.replace(ev.Key, s, ev.Timestamp)
			continue
		}
		s.appendLocked(ev)
		id := s.id
		s.mu.Unlock()

		metrics.RecordEvent(ev.Transport.String())
		return id, nil
	}
}

// Get returns a snapshot of the session.
func (t *Tracker) Get(id string) (Snapshot, error) {
	s := t.lookup(id)
	if s == nil {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// Estimate classifies the session's current history without finalizing it.
func (t *Tracker) Estimate(id string) (classify.Result, error) {
	snap, err := t.Get(id)
	if err != nil {
		return classify.Result{}, err
	}
	return t.eval.Evaluate(snap.Events), nil
}

// List returns every held session, most recently active first.
func (t *Tracker) List() []Summary {
	var out []Summary
	for _, sh := range t.shards {
		for _, s := range sh.sessions() {
			s.mu.Lock()
			out = append(out, s.summaryLocked())
			s.mu.Unlock()
		}
	}
	slices.SortFunc(out, func(a, b Summary) int {
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Sweep finalizes open sessions idle for longer than IdleTimeout, retries
// verdicts the sink rejected earlier and evicts flushed sessions whose
// retention has elapsed. It returns the number of sessions finalized.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) int {
	finalized := 0
	for _, sh := range t.shards {
		for _, s := range sh.sessions() {
			switch {
			case s.State() == StateOpen:
				if !t.idle(s.lastSeen.Load(), now) {
					continue
				}
				if _, ok := t.finalize(s, ReasonIdle, now); ok {
					finalized++
				}
				if err := t.flush(ctx, s); err != nil {
					t.logger.Warn("session: flush failed, will retry",
						zap.String("session_id", s.id), zap.Error(err))
				}
			case s.flushedAt.Load() == 0:
				if err := t.flush(ctx, s); err != nil {
					t.logger.Warn("session: flush retry failed",
						zap.String("session_id", s.id), zap.Error(err))
				}
			default:
				flushed := time.Unix(0, s.flushedAt.Load())
				if now.Sub(flushed) >= t.cfg.Retention && sh.evict(s) {
					t.index.Delete(s.id)
					metrics.SessionEvicted()
					t.logger.Debug("session: evicted", zap.String("session_id", s.id))
				}
			}
		}
	}
	return finalized
}

// Close finalizes the session explicitly and flushes its verdict. Closing an
// already finalized session returns the stored verdict.
func (t *Tracker) Close(ctx context.Context, id string) (Verdict, error) {
	s := t.lookup(id)
	if s == nil {
		return Verdict{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	v, _ := t.finalize(s, ReasonClosed, t.cfg.Now())
	if err := t.flush(ctx, s); err != nil {
		return v, fmt.Errorf("session %s: %w", id, err)
	}
	return v, nil
}

// FinalizeAll finalizes every open session and flushes every pending verdict.
// It is the shutdown path.
func (t *Tracker) FinalizeAll(ctx context.Context) error {
	var errs []error
	now := t.cfg.Now()
	for _, sh := range t.shards {
		for _, s := range sh.sessions() {
			t.finalize(s, ReasonShutdown, now)
			if err := t.flush(ctx, s); err != nil {
				errs = append(errs, fmt.Errorf("session %s: %w", s.id, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Run sweeps every interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := t.Sweep(ctx, t.cfg.Now()); n > 0 {
				t.logger.Info("session: sweep finalized idle sessions", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tracker) lookup(id string) *session {
	v, ok := t.index.Load(id)
	if !ok {
		return nil
	}
	return v.(*shard).lookup(id)
}

func (t *Tracker) idle(lastSeenNanos int64, now time.Time) bool {
	return now.Sub(time.Unix(0, lastSeenNanos)) > t.cfg.IdleTimeout
}

// finalize is the single OPEN -> FINALIZED transition. It reports false when
// the session was already finalized, or, for idle finalization, when an event
// arrived after the sweeper's unlocked check.
func (t *Tracker) finalize(s *session, reason Reason, now time.Time) (Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateFinalized {
		return *s.verdict, false
	}
	if reason == ReasonIdle && !t.idle(s.lastSeen.Load(), now) {
		return Verdict{}, false
	}

	res := t.eval.Evaluate(s.events)
	v := &Verdict{
		SessionID:   s.id,
		Key:         s.key,
		FirstSeen:   s.firstSeen,
		LastSeen:    s.last,
		Scores:      res.Scores,
		Composite:   res.Composite,
		Label:       res.Label,
		Dominant:    res.Dominant,
		EventCount:  len(s.events),
		Reason:      reason,
		FinalizedAt: now.UTC(),
	}
	s.verdict = v
	s.state.Store(int32(StateFinalized))

	metrics.RecordFinalized(string(v.Label), string(reason))
	t.logger.Info("session: finalized",
		zap.String("session_id", s.id),
		zap.String("key", s.key),
		zap.String("label", string(v.Label)),
		zap.Float64("composite", v.Composite),
		zap.String("reason", string(reason)),
		zap.Int("events", v.EventCount),
	)
	return *v, true
}

// flush hands the stored verdict to the sink unless it was already accepted
// or another goroutine is emitting it right now.
func (t *Tracker) flush(ctx context.Context, s *session) error {
	s.mu.Lock()
	if s.verdict == nil || s.emitting || s.flushedAt.Load() != 0 {
		s.mu.Unlock()
		return nil
	}
	s.emitting = true
	v := *s.verdict
	s.mu.Unlock()

	err := t.sink.Emit(ctx, v)

	s.mu.Lock()
	s.emitting = false
	if err == nil {
		s.flushedAt.Store(t.cfg.Now().UnixNano())
	}
	s.mu.Unlock()

	if err != nil {
		metrics.RecordSinkError("tracker")
		return fmt.Errorf("emit verdict: %w", err)
	}
	return nil
}
