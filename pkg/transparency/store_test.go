package transparency

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afr-project/afr/pkg/ledger"
)

const validEvidence = "ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "transparency.json"), nil)
	require.NoError(t, err)
	return s
}

func newAuditedStore(t *testing.T) (*Store, *ledger.Ledger) {
	t.Helper()
	dir := t.TempDir()
	l, err := ledger.New(filepath.Join(dir, "audit_log.json"))
	require.NoError(t, err)
	s, err := NewStore(filepath.Join(dir, "transparency.json"), l)
	require.NoError(t, err)
	return s, l
}

func TestConcernLifecycle(t *testing.T) {
	s := newTestStore(t)

	c, err := s.RaiseConcern("anon_1a2b3c4d5e6f", "eval gaps", "red-team coverage looks thin", "deploy-1")
	require.NoError(t, err)
	assert.Equal(t, ConcernOpen, c.Status)

	_, err = s.Respond(c.ID, RoleLab, "coverage report attached")
	require.NoError(t, err)
	got, err := s.GetConcern(c.ID)
	require.NoError(t, err)
	assert.Equal(t, ConcernResponded, got.Status)

	_, err = s.Dispute(c.ID)
	require.NoError(t, err)
	got, _ = s.GetConcern(c.ID)
	assert.Equal(t, ConcernDisputed, got.Status)

	// A response to a disputed concern does not change its status.
	_, err = s.Respond(c.ID, RoleAuditor, "reviewing the dispute")
	require.NoError(t, err)
	got, _ = s.GetConcern(c.ID)
	assert.Equal(t, ConcernDisputed, got.Status)

	res, err := s.Resolve(c.ID, "auditor-1", OutcomeAccepted, "coverage fixed")
	require.NoError(t, err)
	got, _ = s.GetConcern(c.ID)
	assert.Equal(t, ConcernResolved, got.Status)
	require.NotNil(t, got.Resolution)
	assert.Equal(t, res.ID, got.Resolution.ID)

	assert.Len(t, s.GetResponses(c.ID), 2)
}

func TestResolvedIsTerminal(t *testing.T) {
	s := newTestStore(t)
	c, err := s.RaiseConcern("anon_1a2b3c4d5e6f", "t", "d", "")
	require.NoError(t, err)
	_, err = s.Resolve(c.ID, "auditor-1", OutcomeRejected, "")
	require.NoError(t, err)

	_, err = s.Respond(c.ID, RoleLab, "too late")
	assert.ErrorIs(t, err, ErrState)
	_, err = s.Dispute(c.ID)
	assert.ErrorIs(t, err, ErrState)
	_, err = s.Resolve(c.ID, "auditor-1", OutcomeAccepted, "again")
	assert.ErrorIs(t, err, ErrState)
}

func TestDisputeLegalFromOpenAndResponded(t *testing.T) {
	s := newTestStore(t)

	c1, err := s.RaiseConcern("anon_aaaaaaaaaaaa", "a", "b", "")
	require.NoError(t, err)
	_, err = s.Dispute(c1.ID)
	require.NoError(t, err)

	// Already disputed: not legal again.
	_, err = s.Dispute(c1.ID)
	assert.ErrorIs(t, err, ErrState)
}

func TestRespondValidation(t *testing.T) {
	s := newTestStore(t)
	c, err := s.RaiseConcern("anon_aaaaaaaaaaaa", "a", "b", "")
	require.NoError(t, err)

	_, err = s.Respond(c.ID, RoleGovernment, "not allowed")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.Respond(c.ID, RoleLab, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.Respond("missing", RoleLab, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmissionReviewFlow(t *testing.T) {
	s := newTestStore(t)

	sub, err := s.SubmitCompliance("lab-1", "deploy-1", "model-1", TemplateSafetyEvaluation, "safety eval q3", validEvidence)
	require.NoError(t, err)
	assert.Equal(t, SubmissionSubmitted, sub.Status)

	sub, err = s.StartReview(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, SubmissionUnderReview, sub.Status)

	sub, err = s.Review(sub.ID, "verify", "checks out")
	require.NoError(t, err)
	assert.Equal(t, SubmissionVerified, sub.Status)
	assert.NotEmpty(t, sub.ReviewedAt)
	assert.Equal(t, "checks out", sub.ReviewerNotes)

	// Terminal: no re-review, no restart.
	_, err = s.Review(sub.ID, "reject", "")
	assert.ErrorIs(t, err, ErrState)
	_, err = s.StartReview(sub.ID)
	assert.ErrorIs(t, err, ErrState)
}

func TestReviewDirectFromSubmitted(t *testing.T) {
	s := newTestStore(t)
	sub, err := s.SubmitCompliance("lab-1", "deploy-1", "model-1", TemplateRedTeamReport, "red team", validEvidence)
	require.NoError(t, err)

	sub, err = s.Review(sub.ID, "reject", "incomplete")
	require.NoError(t, err)
	assert.Equal(t, SubmissionRejected, sub.Status)
}

func TestSubmitComplianceValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SubmitCompliance("lab-1", "deploy-1", "model-1", "unknown_template", "t", validEvidence)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.SubmitCompliance("lab-1", "deploy-1", "model-1", TemplateTrainingData, "t", "nothex")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.SubmitCompliance("lab-1", "deploy-1", "model-1", TemplateTrainingData, "t", strings.ToUpper(validEvidence))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.SubmitCompliance("", "deploy-1", "model-1", TemplateTrainingData, "t", validEvidence)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReviewValidation(t *testing.T) {
	s := newTestStore(t)
	sub, err := s.SubmitCompliance("lab-1", "deploy-1", "model-1", TemplateHumanOversight, "t", validEvidence)
	require.NoError(t, err)

	_, err = s.Review(sub.ID, "approve", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.Review("missing", "verify", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMutationsAppendAuditEvents(t *testing.T) {
	s, l := newAuditedStore(t)

	c, err := s.RaiseConcern("anon_aaaaaaaaaaaa", "a", "b", "deploy-1")
	require.NoError(t, err)
	sub, err := s.SubmitCompliance("lab-1", "deploy-1", "model-1", TemplateSafetyEvaluation, "t", validEvidence)
	require.NoError(t, err)
	_, err = s.Review(sub.ID, "verify", "")
	require.NoError(t, err)
	_, err = s.Resolve(c.ID, "auditor-1", OutcomeAccepted, "")
	require.NoError(t, err)

	assert.Equal(t, 4, l.Length())
	assert.True(t, l.VerifyChain().Valid)

	events := l.List(ledger.EventSafetyEvalPassed, 0)
	require.Len(t, events, 1)
	assert.Equal(t, sub.ID, events[0].Metadata["submission_id"])
}

type failingAuditor struct{}

var errAuditDown = errors.New("audit ledger unavailable")

func (failingAuditor) Append(ledger.EventType, string, map[string]interface{}) (ledger.Event, error) {
	return ledger.Event{}, errAuditDown
}

func TestAuditFailureRollsBackMutation(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "transparency.json"), failingAuditor{})
	require.NoError(t, err)

	_, err = s.RaiseConcern("anon_aaaaaaaaaaaa", "a", "b", "deploy-1")
	assert.ErrorIs(t, err, errAuditDown)
	assert.Empty(t, s.ListConcerns("", ""))

	_, err = s.SubmitCompliance("lab-1", "deploy-1", "model-1", TemplateSafetyEvaluation, "t", validEvidence)
	assert.ErrorIs(t, err, errAuditDown)
	assert.Empty(t, s.ListSubmissions("", "", ""))
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transparency.json")

	s1, err := NewStore(path, nil)
	require.NoError(t, err)
	c, err := s1.RaiseConcern("anon_aaaaaaaaaaaa", "a", "b", "deploy-1")
	require.NoError(t, err)
	_, err = s1.SubmitCompliance("lab-1", "deploy-1", "model-1", TemplateSafetyEvaluation, "t", validEvidence)
	require.NoError(t, err)

	s2, err := NewStore(path, nil)
	require.NoError(t, err)
	got, err := s2.GetConcern(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Len(t, s2.ListSubmissions("", "", ""), 1)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)

	c, err := s.RaiseConcern("anon_aaaaaaaaaaaa", "a", "b", "")
	require.NoError(t, err)
	_, err = s.Respond(c.ID, RoleLab, "r")
	require.NoError(t, err)
	sub, err := s.SubmitCompliance("lab-1", "d", "m", TemplateRedTeamReport, "t", validEvidence)
	require.NoError(t, err)
	_, err = s.Review(sub.ID, "verify", "")
	require.NoError(t, err)

	st := s.Stats()
	assert.Equal(t, 1, st.TotalConcerns)
	assert.Equal(t, 1, st.ConcernsByStatus[ConcernResponded])
	assert.Equal(t, 1, st.TotalResponses)
	assert.Equal(t, 1, st.TotalSubmissions)
	assert.Equal(t, 1, st.SubmissionsByStatus[SubmissionVerified])
	assert.Equal(t, 1, st.SubmissionsByType[TemplateRedTeamReport])
}

func TestSnapshotRecordsSortedByID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RaiseConcern("anon_aaaaaaaaaaaa", "a", "b", "")
	require.NoError(t, err)
	_, err = s.SubmitCompliance("lab-1", "d", "m", TemplateTrainingData, "t", validEvidence)
	require.NoError(t, err)

	records := s.SnapshotRecords()
	require.Len(t, records, 2)
	assert.LessOrEqual(t, records[0].ID, records[1].ID)
	for _, r := range records {
		assert.Contains(t, []string{"submission", "concern"}, r.Type)
		assert.Equal(t, r.ID, r.Data["id"])
	}
}
