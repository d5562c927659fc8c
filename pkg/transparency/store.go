// Package transparency implements the shared ledger of concerns,
// responses, resolutions and compliance submissions, plus the deployment
// gate that clears a release only when every required template is verified
// and every concern resolved.
//
// Every mutation appends a matching audit event so tamper-evidence covers
// this layer too. If that append fails the primary mutation is rolled
// back; the two stores are otherwise independent.
package transparency

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/afr-project/afr/pkg/canonicalize"
	"github.com/afr-project/afr/pkg/ledger"
	"github.com/afr-project/afr/pkg/storage"
)

var (
	// ErrNotFound is returned for unknown concern or submission ids.
	ErrNotFound = errors.New("record not found")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("invalid input")
	// ErrState is returned for illegal state-machine transitions.
	ErrState = errors.New("illegal state transition")
)

// Auditor records an audit event for a transparency mutation.
// *ledger.Ledger satisfies it.
type Auditor interface {
	Append(eventType ledger.EventType, description string, metadata map[string]interface{}) (ledger.Event, error)
}

// document is the persisted canonical JSON form, in insertion order.
type document struct {
	Concerns              []Concern              `json:"concerns"`
	Responses             []Response             `json:"responses"`
	Resolutions           []Resolution           `json:"resolutions"`
	ComplianceSubmissions []ComplianceSubmission `json:"compliance_submissions"`
}

// Store owns concerns, responses, resolutions and compliance submissions.
type Store struct {
	mu          sync.RWMutex
	path        string
	auditor     Auditor
	clock       func() time.Time
	concerns    []Concern
	responses   []Response
	resolutions []Resolution
	submissions []ComplianceSubmission
}

// NewStore creates a store persisted at path, restoring any existing
// document. auditor may be nil (no audit events are recorded then).
func NewStore(path string, auditor Auditor) (*Store, error) {
	s := &Store{path: path, auditor: auditor, clock: time.Now}
	var doc document
	if ok, err := storage.Load(path, &doc); err != nil {
		return nil, err
	} else if ok {
		s.concerns = doc.Concerns
		s.responses = doc.Responses
		s.resolutions = doc.Resolutions
		s.submissions = doc.ComplianceSubmissions
	}
	return s, nil
}

// WithClock overrides the clock for tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

func newID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *Store) doc() document {
	return document{
		Concerns:              s.concerns,
		Responses:             s.responses,
		Resolutions:           s.resolutions,
		ComplianceSubmissions: s.submissions,
	}
}

func (s *Store) restore(prev document) {
	s.concerns = prev.Concerns
	s.responses = prev.Responses
	s.resolutions = prev.Resolutions
	s.submissions = prev.ComplianceSubmissions
}

// commit persists the mutated state and records the audit event. Either
// failure rolls the store back to prev.
func (s *Store) commit(prev document, et ledger.EventType, desc string, meta map[string]interface{}) error {
	if err := storage.Save(s.path, s.doc()); err != nil {
		s.restore(prev)
		return err
	}
	if s.auditor != nil {
		if _, err := s.auditor.Append(et, desc, meta); err != nil {
			s.restore(prev)
			// Best-effort revert of the already-written document.
			_ = storage.Save(s.path, s.doc())
			return err
		}
	}
	return nil
}

func (s *Store) concernIndex(id string) int {
	for i := range s.concerns {
		if s.concerns[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) submissionIndex(id string) int {
	for i := range s.submissions {
		if s.submissions[i].ID == id {
			return i
		}
	}
	return -1
}

// RaiseConcern files a new concern in state open.
func (s *Store) RaiseConcern(anonID, title, description, target string) (Concern, error) {
	if anonID == "" || title == "" || description == "" {
		return Concern{}, fmt.Errorf("%w: anon_id, title and description are required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	concern := Concern{
		ID:          newID(),
		AnonID:      anonID,
		Title:       title,
		Description: description,
		Target:      target,
		Status:      ConcernOpen,
		CreatedAt:   canonicalize.Timestamp(s.clock()),
	}

	prev := s.doc()
	s.concerns = append(append([]Concern(nil), s.concerns...), concern)
	if err := s.commit(prev, ledger.EventIncidentReported, "concern raised: "+title,
		map[string]interface{}{"concern_id": concern.ID, "target": target, "action": "raise_concern"}); err != nil {
		return Concern{}, err
	}
	return concern, nil
}

// GetConcern returns the concern with the given id.
func (s *Store) GetConcern(id string) (Concern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.concernIndex(id); i >= 0 {
		return s.concerns[i], nil
	}
	return Concern{}, fmt.Errorf("%w: concern %s", ErrNotFound, id)
}

// ListConcerns returns concerns newest first, optionally filtered by
// status and target.
func (s *Store) ListConcerns(status ConcernStatus, target string) []Concern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Concern, 0, len(s.concerns))
	for i := len(s.concerns) - 1; i >= 0; i-- {
		c := s.concerns[i]
		if status != "" && c.Status != status {
			continue
		}
		if target != "" && c.Target != target {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Respond records a reply to a concern and moves open concerns to
// responded. A disputed concern keeps its status; a resolved one rejects
// the response.
func (s *Store) Respond(concernID string, responderRole Role, content string) (Response, error) {
	if content == "" {
		return Response{}, fmt.Errorf("%w: content is required", ErrValidation)
	}
	validRole := false
	for _, r := range ResponderRoles {
		if responderRole == r {
			validRole = true
		}
	}
	if !validRole {
		return Response{}, fmt.Errorf("%w: responder_role must be lab or auditor", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.concernIndex(concernID)
	if i < 0 {
		return Response{}, fmt.Errorf("%w: concern %s", ErrNotFound, concernID)
	}
	if s.concerns[i].Status == ConcernResolved {
		return Response{}, fmt.Errorf("%w: concern %s is resolved", ErrState, concernID)
	}

	response := Response{
		ID:            newID(),
		ConcernID:     concernID,
		ResponderRole: responderRole,
		Content:       content,
		CreatedAt:     canonicalize.Timestamp(s.clock()),
	}

	prev := s.doc()
	s.responses = append(append([]Response(nil), s.responses...), response)
	if s.concerns[i].Status == ConcernOpen {
		concerns := append([]Concern(nil), s.concerns...)
		concerns[i].Status = ConcernResponded
		s.concerns = concerns
	}
	if err := s.commit(prev, ledger.EventIncidentReported, "concern response recorded",
		map[string]interface{}{"concern_id": concernID, "responder_role": string(responderRole), "action": "respond"}); err != nil {
		return Response{}, err
	}
	return response, nil
}

// GetResponses returns all responses to a concern, oldest first.
func (s *Store) GetResponses(concernID string) []Response {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Response{}
	for _, r := range s.responses {
		if r.ConcernID == concernID {
			out = append(out, r)
		}
	}
	return out
}

// Dispute marks a concern as disputed. Legal from open and responded.
func (s *Store) Dispute(concernID string) (Concern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.concernIndex(concernID)
	if i < 0 {
		return Concern{}, fmt.Errorf("%w: concern %s", ErrNotFound, concernID)
	}
	switch s.concerns[i].Status {
	case ConcernOpen, ConcernResponded:
	default:
		return Concern{}, fmt.Errorf("%w: cannot dispute concern in state %s", ErrState, s.concerns[i].Status)
	}

	prev := s.doc()
	concerns := append([]Concern(nil), s.concerns...)
	concerns[i].Status = ConcernDisputed
	s.concerns = concerns
	if err := s.commit(prev, ledger.EventIncidentReported, "concern disputed",
		map[string]interface{}{"concern_id": concernID, "action": "dispute"}); err != nil {
		return Concern{}, err
	}
	return s.concerns[i], nil
}

// Resolve records an auditor's terminal disposition and moves the concern
// to resolved. Role enforcement happens at the API layer.
func (s *Store) Resolve(concernID, auditorID string, outcome ResolutionOutcome, notes string) (Resolution, error) {
	if auditorID == "" {
		return Resolution{}, fmt.Errorf("%w: auditor_id is required", ErrValidation)
	}
	if !outcome.Valid() {
		return Resolution{}, fmt.Errorf("%w: unknown outcome %q", ErrValidation, outcome)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.concernIndex(concernID)
	if i < 0 {
		return Resolution{}, fmt.Errorf("%w: concern %s", ErrNotFound, concernID)
	}
	if s.concerns[i].Status == ConcernResolved {
		return Resolution{}, fmt.Errorf("%w: concern %s is already resolved", ErrState, concernID)
	}

	resolution := Resolution{
		ID:        newID(),
		ConcernID: concernID,
		AuditorID: auditorID,
		Outcome:   outcome,
		Notes:     notes,
		CreatedAt: canonicalize.Timestamp(s.clock()),
	}

	prev := s.doc()
	s.resolutions = append(append([]Resolution(nil), s.resolutions...), resolution)
	concerns := append([]Concern(nil), s.concerns...)
	concerns[i].Status = ConcernResolved
	concerns[i].Resolution = &resolution
	s.concerns = concerns
	if err := s.commit(prev, ledger.EventIncidentReported, "concern resolved",
		map[string]interface{}{"concern_id": concernID, "outcome": string(outcome), "action": "resolve"}); err != nil {
		return Resolution{}, err
	}
	return resolution, nil
}

// SubmitCompliance files a submission against a template. evidenceHash
// must be a 64-char lowercase hex SHA-256 digest asserted by the client.
func (s *Store) SubmitCompliance(labID, deploymentID, modelID string, templateType TemplateType, title, evidenceHash string) (ComplianceSubmission, error) {
	if labID == "" || deploymentID == "" || modelID == "" || title == "" {
		return ComplianceSubmission{}, fmt.Errorf("%w: lab_id, deployment_id, model_id and title are required", ErrValidation)
	}
	if !templateType.Valid() {
		return ComplianceSubmission{}, fmt.Errorf("%w: unknown template_type %q", ErrValidation, templateType)
	}
	if !canonicalize.IsDigest(evidenceHash) {
		return ComplianceSubmission{}, fmt.Errorf("%w: evidence_hash must be a 64-char lowercase hex digest", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	submission := ComplianceSubmission{
		ID:           newID(),
		LabID:        labID,
		DeploymentID: deploymentID,
		ModelID:      modelID,
		TemplateType: templateType,
		Title:        title,
		EvidenceHash: evidenceHash,
		Status:       SubmissionSubmitted,
		SubmittedAt:  canonicalize.Timestamp(s.clock()),
	}

	prev := s.doc()
	s.submissions = append(append([]ComplianceSubmission(nil), s.submissions...), submission)
	if err := s.commit(prev, ledger.EventSafetyEvalRun, "compliance submission filed: "+title,
		map[string]interface{}{
			"submission_id": submission.ID,
			"deployment_id": deploymentID,
			"template_type": string(templateType),
			"action":        "submit_compliance",
		}); err != nil {
		return ComplianceSubmission{}, err
	}
	return submission, nil
}

// GetSubmission returns the submission with the given id.
func (s *Store) GetSubmission(id string) (ComplianceSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.submissionIndex(id); i >= 0 {
		return s.submissions[i], nil
	}
	return ComplianceSubmission{}, fmt.Errorf("%w: submission %s", ErrNotFound, id)
}

// ListSubmissions returns submissions newest first with optional filters.
func (s *Store) ListSubmissions(status SubmissionStatus, templateType TemplateType, deploymentID string) []ComplianceSubmission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ComplianceSubmission, 0, len(s.submissions))
	for i := len(s.submissions) - 1; i >= 0; i-- {
		sub := s.submissions[i]
		if status != "" && sub.Status != status {
			continue
		}
		if templateType != "" && sub.TemplateType != templateType {
			continue
		}
		if deploymentID != "" && sub.DeploymentID != deploymentID {
			continue
		}
		out = append(out, sub)
	}
	return out
}

// StartReview moves a submission from submitted to under_review.
func (s *Store) StartReview(submissionID string) (ComplianceSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.submissionIndex(submissionID)
	if i < 0 {
		return ComplianceSubmission{}, fmt.Errorf("%w: submission %s", ErrNotFound, submissionID)
	}
	if s.submissions[i].Status != SubmissionSubmitted {
		return ComplianceSubmission{}, fmt.Errorf("%w: cannot begin review from state %s", ErrState, s.submissions[i].Status)
	}

	prev := s.doc()
	submissions := append([]ComplianceSubmission(nil), s.submissions...)
	submissions[i].Status = SubmissionUnderReview
	s.submissions = submissions
	if err := s.commit(prev, ledger.EventSafetyEvalRun, "compliance review started",
		map[string]interface{}{"submission_id": submissionID, "action": "begin_review"}); err != nil {
		return ComplianceSubmission{}, err
	}
	return s.submissions[i], nil
}

// Review verifies or rejects a submission. Either terminal state is
// reachable from submitted or under_review; terminal submissions cannot be
// re-reviewed. A rejected submission is superseded only by a new filing.
func (s *Store) Review(submissionID, decision, notes string) (ComplianceSubmission, error) {
	var target SubmissionStatus
	var auditType ledger.EventType
	switch decision {
	case "verify":
		target, auditType = SubmissionVerified, ledger.EventSafetyEvalPassed
	case "reject":
		target, auditType = SubmissionRejected, ledger.EventSafetyEvalFailed
	default:
		return ComplianceSubmission{}, fmt.Errorf("%w: decision must be verify or reject", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.submissionIndex(submissionID)
	if i < 0 {
		return ComplianceSubmission{}, fmt.Errorf("%w: submission %s", ErrNotFound, submissionID)
	}
	switch s.submissions[i].Status {
	case SubmissionVerified, SubmissionRejected:
		return ComplianceSubmission{}, fmt.Errorf("%w: submission %s already %s", ErrState, submissionID, s.submissions[i].Status)
	}

	prev := s.doc()
	submissions := append([]ComplianceSubmission(nil), s.submissions...)
	submissions[i].Status = target
	submissions[i].ReviewedAt = canonicalize.Timestamp(s.clock())
	submissions[i].ReviewerNotes = notes
	s.submissions = submissions
	if err := s.commit(prev, auditType, "compliance submission "+string(target),
		map[string]interface{}{"submission_id": submissionID, "decision": decision, "action": "review"}); err != nil {
		return ComplianceSubmission{}, err
	}
	return s.submissions[i], nil
}

// Stats summarizes the ledger contents.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TotalConcerns:       len(s.concerns),
		ConcernsByStatus:    map[ConcernStatus]int{ConcernOpen: 0, ConcernResponded: 0, ConcernDisputed: 0, ConcernResolved: 0},
		TotalResponses:      len(s.responses),
		TotalResolutions:    len(s.resolutions),
		TotalSubmissions:    len(s.submissions),
		SubmissionsByStatus: map[SubmissionStatus]int{SubmissionSubmitted: 0, SubmissionUnderReview: 0, SubmissionVerified: 0, SubmissionRejected: 0},
		SubmissionsByType:   map[TemplateType]int{},
	}
	for _, t := range TemplateTypes {
		st.SubmissionsByType[t] = 0
	}
	for _, c := range s.concerns {
		st.ConcernsByStatus[c.Status]++
	}
	for _, sub := range s.submissions {
		st.SubmissionsByStatus[sub.Status]++
		st.SubmissionsByType[sub.TemplateType]++
	}
	return st
}

// Reset clears all records. Demo only.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.Remove(s.path); err != nil {
		return err
	}
	s.concerns = nil
	s.responses = nil
	s.resolutions = nil
	s.submissions = nil
	return nil
}
