// Package storage persists finalized session verdicts.
//
// Every store implements Sink, the session.Sink contract plus Close:
//   - MemoryStore: in-process hash chain, for tests and single-process runs.
//   - PostgresStore: durable hash chain serialised by an advisory lock.
//   - SQLiteStore: embedded table backing the query command.
//   - LogSink: JSON lines through zap.
//   - KafkaSink: verdict stream keyed by session id.
//
// Stores only ever append. The hash-chained stores make tampering with
// earlier verdicts detectable via Verify.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmerrifield20/sundew/internal/session"
)

// GenesisHash anchors every verdict chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Sink receives finalized verdicts.
type Sink interface {
	session.Sink
	Close() error
}

// Entry is one link of a verdict chain.
type Entry struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Label     string    `json:"label"`
	DataHash  string    `json:"data_hash"` // SHA-256 of the verdict JSON
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`

	Verdict *session.Verdict `json:"verdict,omitempty"`
}

// hashEntry must never be called on the genesis entry.
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s",
		e.Index, e.Timestamp.Format(time.RFC3339Nano),
		e.SessionID, e.Label, e.DataHash, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func encodeVerdict(v session.Verdict) ([]byte, string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("marshal verdict: %w", err)
	}
	return b, sha256Sum(b), nil
}

// verifyChain checks the links of entries, which must start at genesis.
func verifyChain(entries []*Entry) error {
	for i, curr := range entries {
		if i == 0 {
			if curr.Hash != GenesisHash {
				return fmt.Errorf("genesis entry has wrong hash: got %q", curr.Hash)
			}
			continue
		}
		prev := entries[i-1]
		if curr.PrevHash != prev.Hash {
			return fmt.Errorf("hash chain broken at index %d", curr.Index)
		}
		if curr.Hash != hashEntry(curr) {
			return fmt.Errorf("entry %d has invalid hash", curr.Index)
		}
		if curr.Verdict != nil {
			_, sum, err := encodeVerdict(*curr.Verdict)
			if err != nil {
				return err
			}
			if sum != curr.DataHash {
				return fmt.Errorf("entry %d verdict does not match its data hash", curr.Index)
			}
		}
	}
	return nil
}
