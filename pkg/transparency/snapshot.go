package transparency

import (
	"encoding/json"
	"sort"
)

// Record is one row of the canonical mirror snapshot: a compliance
// submission or a concern rendered as a generic object.
type Record struct {
	Type string                 `json:"type"` // "submission" or "concern"
	ID   string                 `json:"id"`
	Data map[string]interface{} `json:"data"`
}

func toData(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

// SnapshotRecords returns the current submissions and concerns sorted by
// id, the replication unit each mirror copies and hashes.
func (s *Store) SnapshotRecords() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.submissions)+len(s.concerns))
	for _, sub := range s.submissions {
		records = append(records, Record{Type: "submission", ID: sub.ID, Data: toData(sub)})
	}
	for _, c := range s.concerns {
		records = append(records, Record{Type: "concern", ID: c.ID, Data: toData(c)})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}
