// Package ledger implements the append-only, hash-chained audit log.
//
// Each event's hash incorporates its predecessor's hash, so any mutation of
// a stored event breaks verification from that point on. Events are never
// updated or deleted; Tamper exists only to demonstrate detection.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/afr-project/afr/pkg/canonicalize"
	"github.com/afr-project/afr/pkg/storage"
)

var (
	// ErrNotFound is returned when an event id does not exist.
	ErrNotFound = errors.New("event not found")
	// ErrValidation is returned for malformed append or tamper input.
	ErrValidation = errors.New("invalid event input")
)

// VerificationResult reports the outcome of a full chain walk. A failed
// check is data about the ledger, not a process error.
type VerificationResult struct {
	Valid          bool   `json:"valid"`
	CheckedEvents  int    `json:"checked_events"`
	FirstInvalidID *int   `json:"first_invalid_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Ledger is the append-only audit log. All mutations are serialized under
// an exclusive lock; reads see consistent snapshots.
type Ledger struct {
	mu     sync.RWMutex
	path   string
	events []Event
	clock  func() time.Time
}

// New creates a ledger persisted at path, restoring any existing document.
func New(path string) (*Ledger, error) {
	l := &Ledger{path: path, clock: time.Now}
	var stored []Event
	if ok, err := storage.Load(path, &stored); err != nil {
		return nil, err
	} else if ok {
		l.events = stored
	}
	return l, nil
}

// WithClock overrides the clock for tests.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// Append assigns the next id, chains the new event to the current head and
// persists the full document. On a persistence failure the in-memory state
// is left untouched.
func (l *Ledger) Append(eventType EventType, description string, metadata map[string]interface{}) (Event, error) {
	if !eventType.Valid() {
		return Event{}, fmt.Errorf("%w: unknown event type %q", ErrValidation, eventType)
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := canonicalize.GenesisHash
	if len(l.events) > 0 {
		prev = l.events[len(l.events)-1].Hash
	}

	event := Event{
		ID:           len(l.events),
		EventType:    eventType,
		Description:  description,
		Metadata:     metadata,
		Timestamp:    canonicalize.Timestamp(l.clock()),
		PreviousHash: prev,
	}

	hash, err := canonicalize.ChainHash(event.hashView(), prev)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	event.Hash = hash

	next := append(append([]Event(nil), l.events...), event)
	if err := storage.Save(l.path, next); err != nil {
		return Event{}, err
	}
	l.events = next
	return event, nil
}

// List returns events newest first, optionally filtered by type and capped
// at limit (0 means no cap).
func (l *Ledger) List(eventType EventType, limit int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, 0, len(l.events))
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if eventType != "" && e.EventType != eventType {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Get returns the event with the given id.
func (l *Ledger) Get(id int) (Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if id < 0 || id >= len(l.events) {
		return Event{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return l.events[id], nil
}

// Length returns the number of events.
func (l *Ledger) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// LatestHash returns the head hash, or "" for an empty log.
func (l *Ledger) LatestHash() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return ""
	}
	return l.events[len(l.events)-1].Hash
}

// LatestTimestamp returns the newest event's timestamp, or "".
func (l *Ledger) LatestTimestamp() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return ""
	}
	return l.events[len(l.events)-1].Timestamp
}

// Hashes returns the ordered event digests, the merkle leaf set.
func (l *Ledger) Hashes() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Hash
	}
	return out
}

// VerifyChain walks the chain from genesis and reports the earliest event
// whose linkage or recomputed hash does not match.
func (l *Ledger) VerifyChain() VerificationResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := range l.events {
		e := l.events[i]

		expectedPrev := canonicalize.GenesisHash
		if i > 0 {
			expectedPrev = l.events[i-1].Hash
		}
		if e.PreviousHash != expectedPrev {
			id := i
			return VerificationResult{
				CheckedEvents:  i + 1,
				FirstInvalidID: &id,
				Reason:         fmt.Sprintf("event %d: previous_hash mismatch", i),
			}
		}

		recomputed, err := canonicalize.ChainHash(e.hashView(), e.PreviousHash)
		if err != nil || recomputed != e.Hash {
			id := i
			return VerificationResult{
				CheckedEvents:  i + 1,
				FirstInvalidID: &id,
				Reason:         fmt.Sprintf("event %d: hash verification failed", i),
			}
		}
	}
	return VerificationResult{Valid: true, CheckedEvents: len(l.events)}
}

// Reset empties the log. Demo only.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := storage.Remove(l.path); err != nil {
		return err
	}
	l.events = nil
	return nil
}

// Tamper overwrites one stored field without recomputing the hash, so the
// next VerifyChain flags the event. Demo only.
func (l *Ledger) Tamper(id int, field string, newValue interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id < 0 || id >= len(l.events) {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	e := l.events[id]
	switch field {
	case "description":
		s, ok := newValue.(string)
		if !ok {
			return fmt.Errorf("%w: description must be a string", ErrValidation)
		}
		e.Description = s
	case "event_type":
		s, ok := newValue.(string)
		if !ok {
			return fmt.Errorf("%w: event_type must be a string", ErrValidation)
		}
		e.EventType = EventType(s)
	case "metadata":
		m, ok := newValue.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: metadata must be an object", ErrValidation)
		}
		e.Metadata = m
	case "timestamp":
		s, ok := newValue.(string)
		if !ok {
			return fmt.Errorf("%w: timestamp must be a string", ErrValidation)
		}
		e.Timestamp = s
	case "previous_hash":
		s, ok := newValue.(string)
		if !ok {
			return fmt.Errorf("%w: previous_hash must be a string", ErrValidation)
		}
		e.PreviousHash = s
	case "hash":
		s, ok := newValue.(string)
		if !ok {
			return fmt.Errorf("%w: hash must be a string", ErrValidation)
		}
		e.Hash = s
	default:
		return fmt.Errorf("%w: unknown field %q", ErrValidation, field)
	}

	next := append([]Event(nil), l.events...)
	next[id] = e
	if err := storage.Save(l.path, next); err != nil {
		return err
	}
	l.events = next
	return nil
}
