// Package mirror simulates per-party replicas of the transparency store.
//
// Each of the three fixed parties holds its own copy of the submissions
// and concerns plus a content hash over the canonical snapshot. There is
// no consensus here, only content-hash comparison: the point is showing
// that a party quietly editing its copy is caught, not agreement under
// partitions.
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/afr-project/afr/pkg/canonicalize"
	"github.com/afr-project/afr/pkg/storage"
	"github.com/afr-project/afr/pkg/transparency"
)

var (
	// ErrValidation is returned for an unknown party or record type.
	ErrValidation = errors.New("invalid mirror input")
	// ErrNotFound is returned when a record is missing from a party's copy.
	ErrNotFound = errors.New("mirror record not found")
)

// Parties are the fixed replica holders.
var Parties = []string{"lab", "auditor", "government"}

// Snapshot is one party's local copy of the ledger plus its content hash.
type Snapshot struct {
	Party        string                `json:"party"`
	Records      []transparency.Record `json:"records"`
	ContentHash  string                `json:"content_hash"`
	LastSyncedAt string                `json:"last_synced_at,omitempty"`
}

// PartyStatus summarizes one mirror.
type PartyStatus struct {
	Party        string `json:"party"`
	ContentHash  string `json:"content_hash"`
	RecordCount  int    `json:"record_count"`
	LastSyncedAt string `json:"last_synced_at,omitempty"`
}

// CompareResult reports stored-hash agreement across mirrors.
type CompareResult struct {
	Consistent       bool              `json:"consistent"`
	Hashes           map[string]string `json:"hashes"`
	DivergentParties []string          `json:"divergent_parties"`
	Message          string            `json:"message"`
}

// AffectedRecord identifies a record whose copies differ across parties.
type AffectedRecord struct {
	RecordID      string                            `json:"record_id"`
	ValuesByParty map[string]map[string]interface{} `json:"values_by_party"`
}

// DetectionResult is the outcome of a full recompute-and-compare pass.
type DetectionResult struct {
	TamperingDetected bool             `json:"tampering_detected"`
	DivergentParties  []string         `json:"divergent_parties"`
	AffectedRecords   []AffectedRecord `json:"affected_records"`
	Message           string           `json:"message"`
}

// Simulator owns the per-party snapshots.
type Simulator struct {
	mu        sync.RWMutex
	path      string
	snapshots map[string]Snapshot
	clock     func() time.Time
}

// New creates a simulator persisted at path. Persisted snapshots are
// restored as-is, so divergence survives a restart.
func New(path string) (*Simulator, error) {
	m := &Simulator{path: path, snapshots: emptySnapshots(), clock: time.Now}
	var stored map[string]Snapshot
	if ok, err := storage.Load(path, &stored); err != nil {
		return nil, err
	} else if ok {
		for _, party := range Parties {
			if snap, found := stored[party]; found {
				m.snapshots[party] = snap
			}
		}
	}
	return m, nil
}

// WithClock overrides the clock for tests.
func (m *Simulator) WithClock(clock func() time.Time) *Simulator {
	m.clock = clock
	return m
}

func emptySnapshots() map[string]Snapshot {
	out := make(map[string]Snapshot, len(Parties))
	for _, party := range Parties {
		out[party] = Snapshot{Party: party, Records: []transparency.Record{}}
	}
	return out
}

func copyRecords(records []transparency.Record) []transparency.Record {
	raw, _ := json.Marshal(records)
	out := []transparency.Record{}
	_ = json.Unmarshal(raw, &out)
	return out
}

func contentHash(records []transparency.Record) string {
	h, err := canonicalize.CanonicalHash(records)
	if err != nil {
		return ""
	}
	return h
}

// SyncAll replaces every party's copy with the given snapshot records and
// recomputes each content hash.
func (m *Simulator) SyncAll(records []transparency.Record) ([]PartyStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := canonicalize.Timestamp(m.clock())
	next := make(map[string]Snapshot, len(Parties))
	for _, party := range Parties {
		local := copyRecords(records)
		next[party] = Snapshot{
			Party:        party,
			Records:      local,
			ContentHash:  contentHash(local),
			LastSyncedAt: now,
		}
	}

	if err := storage.Save(m.path, next); err != nil {
		return nil, err
	}
	m.snapshots = next
	return m.statusLocked(), nil
}

func (m *Simulator) statusLocked() []PartyStatus {
	out := make([]PartyStatus, 0, len(Parties))
	for _, party := range Parties {
		snap := m.snapshots[party]
		out = append(out, PartyStatus{
			Party:        party,
			ContentHash:  snap.ContentHash,
			RecordCount:  len(snap.Records),
			LastSyncedAt: snap.LastSyncedAt,
		})
	}
	return out
}

// Status returns each party's stored content hash and record count.
func (m *Simulator) Status() []PartyStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

// Compare checks stored content hashes. Mirrors are consistent iff all
// non-empty hashes are equal; minority holders are reported divergent.
func (m *Simulator) Compare() CompareResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hashes := map[string]string{}
	for _, party := range Parties {
		hashes[party] = m.snapshots[party].ContentHash
	}
	divergent := minorityParties(hashes)

	result := CompareResult{
		Consistent:       len(divergent) == 0,
		Hashes:           hashes,
		DivergentParties: divergent,
	}
	if result.Consistent {
		result.Message = "all mirrors are consistent"
	} else {
		result.Message = fmt.Sprintf("divergence detected: %v", divergent)
	}
	return result
}

// minorityParties returns the parties whose non-empty hash differs from
// the majority value. Empty hashes (never synced) are ignored.
func minorityParties(hashes map[string]string) []string {
	counts := map[string]int{}
	for _, h := range hashes {
		if h != "" {
			counts[h]++
		}
	}
	if len(counts) <= 1 {
		return []string{}
	}

	majority := ""
	for h, n := range counts {
		if majority == "" || n > counts[majority] {
			majority = h
		}
	}

	divergent := []string{}
	for _, party := range Parties {
		if h := hashes[party]; h != "" && h != majority {
			divergent = append(divergent, party)
		}
	}
	return divergent
}

// Tamper mutates one field of a record in a single party's copy WITHOUT
// recomputing that party's content hash. Demo only.
func (m *Simulator) Tamper(party, recordType, recordID, field string, newValue interface{}) error {
	if !validParty(party) {
		return fmt.Errorf("%w: unknown party %q", ErrValidation, party)
	}
	if recordType != "concern" && recordType != "submission" {
		return fmt.Errorf("%w: record_type must be concern or submission", ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshots[party]
	records := copyRecords(snap.Records)
	found := false
	for i := range records {
		if records[i].Type == recordType && records[i].ID == recordID {
			records[i].Data[field] = newValue
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s %s in %s mirror", ErrNotFound, recordType, recordID, party)
	}

	next := make(map[string]Snapshot, len(Parties))
	for _, p := range Parties {
		next[p] = m.snapshots[p]
	}
	snap.Records = records // content hash deliberately stale
	next[party] = snap

	if err := storage.Save(m.path, next); err != nil {
		return err
	}
	m.snapshots = next
	return nil
}

func validParty(party string) bool {
	for _, p := range Parties {
		if p == party {
			return true
		}
	}
	return false
}

// Detect recomputes every party's content hash from its local records. A
// party is divergent when its stored hash no longer matches the recompute
// or when its recomputed hash disagrees with the other mirrors. The
// specific records that differ are identified.
func (m *Simulator) Detect() DetectionResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recomputed := map[string]string{}
	divergentSet := map[string]bool{}
	for _, party := range Parties {
		snap := m.snapshots[party]
		recomputed[party] = contentHash(snap.Records)
		if snap.ContentHash != "" && snap.ContentHash != recomputed[party] {
			divergentSet[party] = true
		}
	}
	for _, party := range minorityParties(recomputed) {
		divergentSet[party] = true
	}

	divergent := []string{}
	for _, party := range Parties {
		if divergentSet[party] {
			divergent = append(divergent, party)
		}
	}

	result := DetectionResult{
		TamperingDetected: len(divergent) > 0,
		DivergentParties:  divergent,
		AffectedRecords:   m.affectedRecordsLocked(),
	}
	if result.TamperingDetected {
		result.Message = fmt.Sprintf("tampering detected in mirrors held by %v; %d record(s) affected",
			divergent, len(result.AffectedRecords))
	} else {
		result.Message = "all mirrors are in sync"
		result.AffectedRecords = []AffectedRecord{}
	}
	return result
}

// affectedRecordsLocked compares each record id across parties and
// reports those whose canonical values differ.
func (m *Simulator) affectedRecordsLocked() []AffectedRecord {
	ids := []string{}
	seen := map[string]bool{}
	for _, party := range Parties {
		for _, r := range m.snapshots[party].Records {
			if !seen[r.ID] {
				seen[r.ID] = true
				ids = append(ids, r.ID)
			}
		}
	}

	affected := []AffectedRecord{}
	for _, id := range ids {
		values := map[string]map[string]interface{}{}
		canonical := map[string]bool{}
		for _, party := range Parties {
			for _, r := range m.snapshots[party].Records {
				if r.ID == id {
					values[party] = r.Data
					if c, err := canonicalize.JCS(r.Data); err == nil {
						canonical[string(c)] = true
					}
					break
				}
			}
		}
		if len(canonical) > 1 || len(values) != len(Parties) {
			affected = append(affected, AffectedRecord{RecordID: id, ValuesByParty: values})
		}
	}
	return affected
}

// Reset clears all snapshots. Demo only.
func (m *Simulator) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := storage.Remove(m.path); err != nil {
		return err
	}
	m.snapshots = emptySnapshots()
	return nil
}
