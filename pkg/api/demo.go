package api

import (
	"net/http"
	"strings"

	"github.com/afr-project/afr/pkg/ledger"
	"github.com/afr-project/afr/pkg/transparency"
)

// The demo endpoints reset state or seed the GPT-Safe v2.1 storyline the
// dashboard walks through. None of them exist outside demonstrations.

func (s *Server) handleDemoReset(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Audit.Reset(); err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type demoTamperRequest struct {
	EventID  int         `json:"event_id"`
	Field    string      `json:"field"`
	NewValue interface{} `json:"new_value"`
}

func (s *Server) handleDemoTamper(w http.ResponseWriter, r *http.Request) {
	var req demoTamperRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.opts.Audit.Tamper(req.EventID, req.Field, req.NewValue); err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "tampered",
		"message": "event modified in place; run verify to expose it",
	})
}

func (s *Server) handleZKReset(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.ZK.Reset(); err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleTransparencyReset(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Transparency.Reset(); err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type seedEvent struct {
	eventType   ledger.EventType
	description string
	metadata    map[string]interface{}
}

var demoEvents = []seedEvent{
	{ledger.EventTrainingStarted, "Initiated training run for GPT-Safe v2.1", map[string]interface{}{
		"model_id": "gpt-safe-v2.1", "dataset": "curated-safety-v3", "compute_hours": 1000}},
	{ledger.EventTrainingCompleted, "Training completed successfully", map[string]interface{}{
		"model_id": "gpt-safe-v2.1", "final_loss": 0.023, "training_time_hours": 847}},
	{ledger.EventSafetyEvalRun, "Running comprehensive safety evaluation suite", map[string]interface{}{
		"eval_suite": "safety-benchmark-v4", "test_cases": 15000}},
	{ledger.EventSafetyEvalPassed, "All safety evaluations passed", map[string]interface{}{
		"harmlessness_score": 0.98, "helpfulness_score": 0.94, "honesty_score": 0.96}},
	{ledger.EventModelDeployed, "Model deployed to production (10% rollout)", map[string]interface{}{
		"environment": "production", "rollout_percentage": 10, "region": "us-west-2"}},
	{ledger.EventModelDeployed, "Model deployed to production (100% rollout)", map[string]interface{}{
		"environment": "production", "rollout_percentage": 100, "region": "global"}},
	{ledger.EventIncidentReported, "Minor incident: Model gave incorrect citation", map[string]interface{}{
		"severity": "low", "category": "accuracy", "affected_users": 3}},
	{ledger.EventSafetyEvalRun, "Post-incident safety re-evaluation", map[string]interface{}{
		"eval_suite": "safety-benchmark-v4", "focus": "accuracy", "triggered_by": "incident-001"}},
}

func (s *Server) handleDemoPopulate(w http.ResponseWriter, r *http.Request) {
	ids := make([]int, 0, len(demoEvents))
	for _, seed := range demoEvents {
		event, err := s.opts.Audit.Append(seed.eventType, seed.description, seed.metadata)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		ids = append(ids, event.ID)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "sample events created",
		"event_ids": ids,
	})
}

func (s *Server) handleTransparencyPopulate(w http.ResponseWriter, r *http.Request) {
	store := s.opts.Transparency

	c1, err := store.RaiseConcern("anon_7f3a2b1c9d8e",
		"Safety evaluation skipped for bioweapon capability",
		"The CBRN safety evaluation was marked as passed but only 20% of test cases were executed before the team lead marked it complete.",
		"gpt-safe-v2.1-prod")
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	c2, err := store.RaiseConcern("anon_3c9d8e7f2a1b",
		"Model card incomplete for deployment",
		"The model card is missing capability descriptions for code generation. Updating before full rollout.",
		"gpt-safe-v2.1-prod")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	if _, err := store.Respond(c1.ID, transparency.RoleLab,
		"The CBRN evaluation was interrupted by infrastructure issues and has since been re-run in full. See evidence hash for logs."); err != nil {
		WriteDomainError(w, err)
		return
	}
	if _, err := store.Resolve(c1.ID, "safety-institute",
		transparency.OutcomeAccepted,
		"Verified the lab's response. The full CBRN evaluation suite has now been completed and all test cases passed."); err != nil {
		WriteDomainError(w, err)
		return
	}
	if _, err := store.Resolve(c2.ID, "safety-institute",
		transparency.OutcomeAccepted,
		"Verified that the model card has been updated with complete capability documentation."); err != nil {
		WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "transparency ledger populated with sample data",
		"concerns_created": []string{c1.ID, c2.ID},
		"scenario":         "two concerns raised and resolved (whistleblower + lab self-reported)",
	})
}

type seedSubmission struct {
	template     transparency.TemplateType
	title        string
	evidenceHash string
	reviewNotes  string
}

var demoSubmissions = []seedSubmission{
	{transparency.TemplateSafetyEvaluation, "Pre-deployment Safety Evaluation Report",
		strings.Repeat("a", 64), "Evidence verified. Safety evaluation meets all requirements."},
	{transparency.TemplateCapabilityAssessment, "Dangerous Capability Assessment",
		strings.Repeat("b", 64), "Capability assessment verified. Risk levels acceptable."},
	{transparency.TemplateRedTeamReport, "Red Team Testing Report",
		strings.Repeat("c", 64), "Red team report verified. All findings addressed appropriately."},
}

func (s *Server) handleCompliancePopulate(w http.ResponseWriter, r *http.Request) {
	store := s.opts.Transparency
	ids := make([]string, 0, len(demoSubmissions))
	for _, seed := range demoSubmissions {
		submission, err := store.SubmitCompliance("frontier-labs",
			"gpt-safe-v2.1-prod", "gpt-safe-v2.1", seed.template, seed.title, seed.evidenceHash)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		if _, err := store.Review(submission.ID, "verify", seed.reviewNotes); err != nil {
			WriteDomainError(w, err)
			return
		}
		ids = append(ids, submission.ID)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":             "compliance submissions populated with sample data",
		"submissions_created": ids,
		"scenario":            "all required templates verified",
	})
}
