// Package session accumulates observed events per visitor and owns each
// session's lifecycle from first event to finalized verdict.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmerrifield20/sundew/internal/classify"
	"github.com/jmerrifield20/sundew/internal/event"
	"github.com/jmerrifield20/sundew/internal/fingerprint"
)

// ErrNotFound is returned for unknown or already evicted session ids.
var ErrNotFound = errors.New("session not found")

// State is a session's lifecycle state.
type State int32

const (
	StateOpen State = iota
	StateFinalized
)

func (s State) String() string {
	if s == StateFinalized {
		return "finalized"
	}
	return "open"
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "open":
		*s = StateOpen
	case "finalized":
		*s = StateFinalized
	default:
		return fmt.Errorf("unknown session state %q", b)
	}
	return nil
}

// Reason records why a session was finalized.
type Reason string

const (
	ReasonIdle     Reason = "idle"
	ReasonClosed   Reason = "closed"
	ReasonShutdown Reason = "shutdown"
)

// Evaluator classifies a session's event history.
type Evaluator interface {
	Evaluate(events []event.Event) classify.Result
}

// Sink receives each finalized verdict exactly once.
type Sink interface {
	Emit(ctx context.Context, v Verdict) error
}

// Verdict is the authoritative classification persisted when a session is
// finalized.
type Verdict struct {
	SessionID   string             `json:"session_id"`
	Key         string             `json:"key"`
	FirstSeen   time.Time          `json:"first_seen"`
	LastSeen    time.Time          `json:"last_seen"`
	Scores      fingerprint.Scores `json:"scores"`
	Composite   float64            `json:"composite"`
	Label       classify.Label     `json:"label"`
	Dominant    string             `json:"dominant"`
	EventCount  int                `json:"event_count"`
	Reason      Reason             `json:"reason"`
	FinalizedAt time.Time          `json:"finalized_at"`
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	ID        string        `json:"id"`
	Key       string        `json:"key"`
	FirstSeen time.Time     `json:"first_seen"`
	LastSeen  time.Time     `json:"last_seen"`
	State     State         `json:"state"`
	Events    []event.Event `json:"events"`
	Verdict   *Verdict      `json:"verdict,omitempty"`
	// Flushed is set once the verdict reached the sink; the session may be
	// evicted from then on.
	Flushed bool `json:"flushed"`
}

// Summary is a Snapshot without the event history.
type Summary struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	State      State     `json:"state"`
	EventCount int       `json:"event_count"`
}

// session is the mutable aggregate. mu serialises every mutation; state,
// lastSeen and flushedAt are mirrored atomically so the sweeper can skip
// sessions without locking them.
type session struct {
	mu sync.Mutex

	id        string
	key       string
	events    []event.Event
	firstSeen time.Time
	last      time.Time
	verdict   *Verdict
	emitting  bool

	state     atomic.Int32
	lastSeen  atomic.Int64 // unix nanos
	flushedAt atomic.Int64 // unix nanos, 0 until the verdict is stored
}

func (s *session) State() State { return State(s.state.Load()) }

// appendLocked adds ev to the history. Events may arrive slightly out of
// timestamp order across connections, so first and last seen are the
// extremes rather than the ends of the slice. The caller holds s.mu.
func (s *session) appendLocked(ev event.Event) {
	s.events = append(s.events, ev)
	if ev.Timestamp.Before(s.firstSeen) {
		s.firstSeen = ev.Timestamp
	}
	if ev.Timestamp.After(s.last) {
		s.last = ev.Timestamp
		s.lastSeen.Store(ev.Timestamp.UnixNano())
	}
}

func (s *session) summaryLocked() Summary {
	return Summary{
		ID:         s.id,
		Key:        s.key,
		FirstSeen:  s.firstSeen,
		LastSeen:   s.last,
		State:      s.State(),
		EventCount: len(s.events),
	}
}

// snapshotLocked copies s. The caller holds s.mu.
func (s *session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		Key:       s.key,
		FirstSeen: s.firstSeen,
		LastSeen:  s.last,
		State:     s.State(),
		Events:    append([]event.Event(nil), s.events...),
		Flushed:   s.flushedAt.Load() != 0,
	}
	if s.verdict != nil {
		v := *s.verdict
		snap.Verdict = &v
	}
	return snap
}
