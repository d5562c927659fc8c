package transparency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	gateDeployment = "gpt-safe-v2.1-prod"
	gateModel      = "gpt-safe-v2.1"
)

func submitAndVerifyRequired(t *testing.T, s *Store) {
	t.Helper()
	for _, tmpl := range DefaultRequiredTemplates {
		sub, err := s.SubmitCompliance("lab-1", gateDeployment, gateModel, tmpl, string(tmpl)+" report", validEvidence)
		require.NoError(t, err)
		_, err = s.Review(sub.ID, "verify", "verified")
		require.NoError(t, err)
	}
}

func TestGateClearedWhenAllVerifiedAndNoConcerns(t *testing.T) {
	s := newTestStore(t)
	submitAndVerifyRequired(t, s)

	status := s.DeploymentStatus(gateDeployment, gateModel, nil)
	assert.True(t, status.Cleared)
	assert.Empty(t, status.Blocking)
	assert.Equal(t, 0, status.UnresolvedConcerns)
	require.Len(t, status.Templates, len(DefaultRequiredTemplates))
	for _, req := range status.Templates {
		assert.True(t, req.Verified, "template %s", req.Template)
	}
}

func TestGateBlockedByOpenConcernThenClearedAfterResolve(t *testing.T) {
	s := newTestStore(t)
	submitAndVerifyRequired(t, s)

	c, err := s.RaiseConcern("anon_aaaaaaaaaaaa", "unexplained regression", "eval deltas unexplained", gateDeployment)
	require.NoError(t, err)

	status := s.DeploymentStatus(gateDeployment, gateModel, nil)
	assert.False(t, status.Cleared)
	assert.Equal(t, []string{"1 unresolved concern"}, status.Blocking)
	assert.Equal(t, []string{c.ID}, status.OpenConcernIDs)

	_, err = s.Resolve(c.ID, "auditor-1", OutcomeAccepted, "explained")
	require.NoError(t, err)

	status = s.DeploymentStatus(gateDeployment, gateModel, nil)
	assert.True(t, status.Cleared)
	assert.Equal(t, 1, status.ResolvedConcerns)
}

func TestGateCountsRespondedAndDisputedAsUnresolved(t *testing.T) {
	s := newTestStore(t)
	submitAndVerifyRequired(t, s)

	c1, err := s.RaiseConcern("anon_aaaaaaaaaaaa", "c1", "d", gateDeployment)
	require.NoError(t, err)
	_, err = s.Respond(c1.ID, RoleLab, "our answer")
	require.NoError(t, err)

	c2, err := s.RaiseConcern("anon_bbbbbbbbbbbb", "c2", "d", gateDeployment)
	require.NoError(t, err)
	_, err = s.Dispute(c2.ID)
	require.NoError(t, err)

	status := s.DeploymentStatus(gateDeployment, gateModel, nil)
	assert.False(t, status.Cleared)
	assert.Equal(t, 2, status.UnresolvedConcerns)
	assert.Contains(t, status.Blocking, "2 unresolved concerns")
}

func TestGateMissingTemplateBlocks(t *testing.T) {
	s := newTestStore(t)

	sub, err := s.SubmitCompliance("lab-1", gateDeployment, gateModel, TemplateSafetyEvaluation, "safety", validEvidence)
	require.NoError(t, err)
	_, err = s.Review(sub.ID, "verify", "")
	require.NoError(t, err)

	status := s.DeploymentStatus(gateDeployment, gateModel, nil)
	assert.False(t, status.Cleared)
	assert.Contains(t, status.Blocking, "template capability_assessment not verified")
	assert.Contains(t, status.Blocking, "template red_team_report not verified")
}

func TestGateRejectedNeverSatisfies(t *testing.T) {
	s := newTestStore(t)
	submitAndVerifyRequired(t, s)

	// A later rejected filing does not unseat the verified one.
	sub, err := s.SubmitCompliance("lab-1", gateDeployment, gateModel, TemplateSafetyEvaluation, "updated safety", validEvidence)
	require.NoError(t, err)
	_, err = s.Review(sub.ID, "reject", "incomplete")
	require.NoError(t, err)

	status := s.DeploymentStatus(gateDeployment, gateModel, nil)
	assert.True(t, status.Cleared)
}

func TestGateLatestNonRejectedWins(t *testing.T) {
	s := newTestStore(t)

	// First filing verified, a newer one still pending: the pending filing
	// is the latest non-rejected, so the requirement is not satisfied.
	first, err := s.SubmitCompliance("lab-1", gateDeployment, gateModel, TemplateSafetyEvaluation, "v1", validEvidence)
	require.NoError(t, err)
	_, err = s.Review(first.ID, "verify", "")
	require.NoError(t, err)

	second, err := s.SubmitCompliance("lab-1", gateDeployment, gateModel, TemplateSafetyEvaluation, "v2", validEvidence)
	require.NoError(t, err)

	status := s.DeploymentStatus(gateDeployment, gateModel, []TemplateType{TemplateSafetyEvaluation})
	assert.False(t, status.Cleared)
	require.Len(t, status.Templates, 1)
	assert.Equal(t, second.ID, status.Templates[0].SubmissionID)
	assert.Equal(t, SubmissionSubmitted, status.Templates[0].Status)
}

func TestGateConcernTargetingSubmissionBlocks(t *testing.T) {
	s := newTestStore(t)
	submitAndVerifyRequired(t, s)

	subs := s.ListSubmissions("", "", gateDeployment)
	require.NotEmpty(t, subs)

	_, err := s.RaiseConcern("anon_cccccccccccc", "evidence mismatch", "digest does not match the filed report", subs[0].ID)
	require.NoError(t, err)

	status := s.DeploymentStatus(gateDeployment, gateModel, nil)
	assert.False(t, status.Cleared)
	assert.Equal(t, 1, status.UnresolvedConcerns)
}

func TestClearanceBlockedUntilAllConcernsResolved(t *testing.T) {
	s := newTestStore(t)

	c1, err := s.RaiseConcern("anon_aaaaaaaaaaaa", "c1", "d", gateDeployment)
	require.NoError(t, err)
	c2, err := s.RaiseConcern("anon_bbbbbbbbbbbb", "c2", "d", gateDeployment)
	require.NoError(t, err)
	_, err = s.Respond(c1.ID, RoleLab, "our answer")
	require.NoError(t, err)
	c3, err := s.RaiseConcern("anon_cccccccccccc", "c3", "d", gateDeployment)
	require.NoError(t, err)
	_, err = s.Dispute(c3.ID)
	require.NoError(t, err)

	clearance := s.Clearance(gateDeployment)
	assert.False(t, clearance.Cleared)
	assert.Equal(t, 3, clearance.TotalConcerns)
	assert.Equal(t, 1, clearance.OpenConcerns)
	assert.Equal(t, 2, clearance.RespondedConcerns) // responded + disputed
	assert.Equal(t, 0, clearance.ResolvedConcerns)
	assert.Equal(t, "Deployment BLOCKED. 3 unresolved concern(s): 1 open, 1 responded, 1 disputed.", clearance.Message)

	for _, c := range []Concern{c1, c2, c3} {
		_, err = s.Resolve(c.ID, "auditor-1", OutcomeAccepted, "done")
		require.NoError(t, err)
	}

	clearance = s.Clearance(gateDeployment)
	assert.True(t, clearance.Cleared)
	assert.Equal(t, 3, clearance.ResolvedConcerns)
	assert.Equal(t, "Deployment cleared. 3 concern(s) resolved.", clearance.Message)
}

func TestClearanceIgnoresSubmissionsAndOtherDeployments(t *testing.T) {
	s := newTestStore(t)

	// No submissions filed at all: with no concerns either, the
	// concern-only view is clear.
	clearance := s.Clearance(gateDeployment)
	assert.True(t, clearance.Cleared)
	assert.Equal(t, 0, clearance.TotalConcerns)

	_, err := s.RaiseConcern("anon_dddddddddddd", "elsewhere", "d", "some-other-deployment")
	require.NoError(t, err)
	assert.True(t, s.Clearance(gateDeployment).Cleared)
}

func TestGateIgnoresUnrelatedConcerns(t *testing.T) {
	s := newTestStore(t)
	submitAndVerifyRequired(t, s)

	_, err := s.RaiseConcern("anon_dddddddddddd", "other deploy", "d", "some-other-deployment")
	require.NoError(t, err)

	status := s.DeploymentStatus(gateDeployment, gateModel, nil)
	assert.True(t, status.Cleared)
}
