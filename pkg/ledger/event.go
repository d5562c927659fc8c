package ledger

// EventType categorizes audit-log entries.
type EventType string

const (
	EventTrainingStarted   EventType = "training_started"
	EventTrainingCompleted EventType = "training_completed"
	EventSafetyEvalRun     EventType = "safety_eval_run"
	EventSafetyEvalPassed  EventType = "safety_eval_passed"
	EventSafetyEvalFailed  EventType = "safety_eval_failed"
	EventModelDeployed     EventType = "model_deployed"
	EventIncidentReported  EventType = "incident_reported"
)

// EventTypes lists every valid event type.
var EventTypes = []EventType{
	EventTrainingStarted,
	EventTrainingCompleted,
	EventSafetyEvalRun,
	EventSafetyEvalPassed,
	EventSafetyEvalFailed,
	EventModelDeployed,
	EventIncidentReported,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Event is an immutable, hash-chained audit-log entry. IDs are assigned
// monotonically from 0. Hash covers every field except itself, with the
// predecessor's hash bound both inside the canonical form and as a suffix.
type Event struct {
	ID           int                    `json:"id"`
	EventType    EventType              `json:"event_type"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata"`
	Timestamp    string                 `json:"timestamp"`
	PreviousHash string                 `json:"previous_hash"`
	Hash         string                 `json:"hash"`
}

// hashable is the canonical hashing view of an event: every field except
// the self hash, keys sorted by the canonicalizer.
type hashable struct {
	ID           int                    `json:"id"`
	EventType    EventType              `json:"event_type"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata"`
	Timestamp    string                 `json:"timestamp"`
	PreviousHash string                 `json:"previous_hash"`
}

func (e *Event) hashView() hashable {
	return hashable{
		ID:           e.ID,
		EventType:    e.EventType,
		Description:  e.Description,
		Metadata:     e.Metadata,
		Timestamp:    e.Timestamp,
		PreviousHash: e.PreviousHash,
	}
}
