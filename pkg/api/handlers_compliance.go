package api

import (
	"net/http"

	"github.com/afr-project/afr/pkg/auth"
	"github.com/afr-project/afr/pkg/transparency"
)

type submitComplianceRequest struct {
	DeploymentID string `json:"deployment_id"`
	ModelID      string `json:"model_id"`
	TemplateType string `json:"template_type"`
	Title        string `json:"title"`
	EvidenceHash string `json:"evidence_hash"`
}

// The filing lab is the authenticated principal; a lab cannot file on
// another lab's behalf.
func (s *Server) handleSubmitCompliance(w http.ResponseWriter, r *http.Request) {
	var req submitComplianceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	principal, _ := auth.GetPrincipal(r.Context())
	submission, err := s.opts.Transparency.SubmitCompliance(
		principal.PartyID, req.DeploymentID, req.ModelID,
		transparency.TemplateType(req.TemplateType), req.Title, req.EvidenceHash)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submission)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	submissions := s.opts.Transparency.ListSubmissions(
		transparency.SubmissionStatus(q.Get("status")),
		transparency.TemplateType(q.Get("template_type")),
		q.Get("deployment_id"),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": submissions,
		"count":       len(submissions),
	})
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	submission, err := s.opts.Transparency.GetSubmission(r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submission)
}

type reviewRequest struct {
	SubmissionID string `json:"submission_id"`
	Decision     string `json:"decision"`
	Notes        string `json:"notes"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		submission transparency.ComplianceSubmission
		err        error
	)
	if req.Decision == "start_review" {
		submission, err = s.opts.Transparency.StartReview(req.SubmissionID)
	} else {
		submission, err = s.opts.Transparency.Review(req.SubmissionID, req.Decision, req.Notes)
	}
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submission)
}

func (s *Server) handleComplianceStatus(w http.ResponseWriter, r *http.Request) {
	status := s.opts.Transparency.DeploymentStatus(
		r.PathValue("deployment_id"),
		r.URL.Query().Get("model_id"),
		s.opts.RequiredTemplates,
	)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	required := s.opts.RequiredTemplates
	if len(required) == 0 {
		required = transparency.DefaultRequiredTemplates
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": transparency.TemplateTypes,
		"required":  required,
	})
}
