// Package zk implements the commit-open threshold scheme over event counts.
//
// A commitment binds a hidden count with a random blinding factor; a proof
// demonstrates count >= threshold by recomputation against the stored
// witness. This is an auditor-trust-in-the-ledger scheme that demonstrates
// the commit/prove/verify interface, not a succinct ZK proof sound against
// an adversarial committer. A faithful deployment keeps the witness
// client-side and substitutes a range-proof system behind the same surface.
package zk

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/afr-project/afr/pkg/canonicalize"
	"github.com/afr-project/afr/pkg/storage"
)

var (
	// ErrNotFound is returned for an unknown commitment id.
	ErrNotFound = errors.New("commitment not found")
	// ErrPrecondition is returned when the committed count is below the
	// requested threshold.
	ErrPrecondition = errors.New("count below threshold")
	// ErrValidation is returned for malformed commit input.
	ErrValidation = errors.New("invalid commitment input")
)

// Commitment is the public face of a committed count. Blinding is populated
// only on the response to the creating call.
type Commitment struct {
	ID         string                 `json:"id"`
	Commitment string                 `json:"commitment"`
	Blinding   string                 `json:"blinding,omitempty"`
	CreatedAt  string                 `json:"created_at"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Proof asserts that a committed count meets a threshold.
type Proof struct {
	CommitmentID string `json:"commitment_id"`
	Threshold    int    `json:"threshold"`
	ProofValue   string `json:"proof_value"`
	Claim        string `json:"claim"`
	CreatedAt    string `json:"created_at"`
}

// record is the persisted form. Count and blinding are the witness; keeping
// them server-side is the demo shortcut called out in the package comment.
type record struct {
	ID         string                 `json:"id"`
	Commitment string                 `json:"commitment"`
	CreatedAt  string                 `json:"created_at"`
	Metadata   map[string]interface{} `json:"metadata"`
	Count      int                    `json:"witness_count"`
	Blinding   string                 `json:"witness_blinding"`
}

// Engine owns commitments and serves proofs over them.
type Engine struct {
	mu      sync.RWMutex
	path    string
	records map[string]record
	clock   func() time.Time
}

// New creates an engine persisted at path, restoring any existing document.
func New(path string) (*Engine, error) {
	e := &Engine{path: path, records: map[string]record{}, clock: time.Now}
	var stored map[string]record
	if ok, err := storage.Load(path, &stored); err != nil {
		return nil, err
	} else if ok {
		e.records = stored
	}
	return e, nil
}

// WithClock overrides the clock for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// commitmentValue computes SHA256(str(count) || ":" || blinding).
func commitmentValue(count int, blinding string) string {
	return canonicalize.HashBytes([]byte(strconv.Itoa(count) + ":" + blinding))
}

// proofValue computes SHA256(commitment || ":" || threshold || ":" || count || ":" || blinding).
func proofValue(commitment string, threshold, count int, blinding string) string {
	return canonicalize.HashBytes([]byte(
		commitment + ":" + strconv.Itoa(threshold) + ":" + strconv.Itoa(count) + ":" + blinding))
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Commit binds count under a blinding factor. If blinding is empty a fresh
// 32-byte factor is generated. The returned Commitment carries the blinding
// exactly once.
func (e *Engine) Commit(count int, blinding string, metadata map[string]interface{}) (Commitment, error) {
	if count < 0 {
		return Commitment{}, fmt.Errorf("%w: count must be non-negative", ErrValidation)
	}
	if blinding == "" {
		blinding = randomHex(32)
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec := record{
		ID:         randomHex(8),
		Commitment: commitmentValue(count, blinding),
		CreatedAt:  canonicalize.Timestamp(e.clock()),
		Metadata:   metadata,
		Count:      count,
		Blinding:   blinding,
	}

	next := cloneRecords(e.records)
	next[rec.ID] = rec
	if err := storage.Save(e.path, next); err != nil {
		return Commitment{}, err
	}
	e.records = next

	return Commitment{
		ID:         rec.ID,
		Commitment: rec.Commitment,
		Blinding:   blinding,
		CreatedAt:  rec.CreatedAt,
		Metadata:   rec.Metadata,
	}, nil
}

// Get returns the public commitment. The witness never leaves the engine
// after issuance.
func (e *Engine) Get(id string) (Commitment, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rec, ok := e.records[id]
	if !ok {
		return Commitment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return Commitment{
		ID:         rec.ID,
		Commitment: rec.Commitment,
		CreatedAt:  rec.CreatedAt,
		Metadata:   rec.Metadata,
	}, nil
}

// Prove produces a threshold proof for the commitment, failing when the
// committed count does not reach the threshold.
func (e *Engine) Prove(commitmentID string, threshold int) (Proof, error) {
	e.mu.RLock()
	rec, ok := e.records[commitmentID]
	e.mu.RUnlock()
	if !ok {
		return Proof{}, fmt.Errorf("%w: %s", ErrNotFound, commitmentID)
	}
	if rec.Count < threshold {
		return Proof{}, fmt.Errorf("%w: committed count does not meet threshold %d", ErrPrecondition, threshold)
	}

	return Proof{
		CommitmentID: commitmentID,
		Threshold:    threshold,
		ProofValue:   proofValue(rec.Commitment, threshold, rec.Count, rec.Blinding),
		Claim:        fmt.Sprintf("count >= %d", threshold),
		CreatedAt:    canonicalize.Timestamp(e.clock()),
	}, nil
}

// Verify recomputes the expected proof from the stored witness and checks
// both the equality and the threshold claim.
func (e *Engine) Verify(commitmentID string, threshold int, proof string) (bool, error) {
	e.mu.RLock()
	rec, ok := e.records[commitmentID]
	e.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, commitmentID)
	}

	if rec.Count < threshold {
		return false, nil
	}
	return proof == proofValue(rec.Commitment, threshold, rec.Count, rec.Blinding), nil
}

// Reset drops all commitments. Demo only.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := storage.Remove(e.path); err != nil {
		return err
	}
	e.records = map[string]record{}
	return nil
}

func cloneRecords(in map[string]record) map[string]record {
	out := make(map[string]record, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
