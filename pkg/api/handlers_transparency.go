package api

import (
	"net/http"

	"github.com/afr-project/afr/pkg/auth"
	"github.com/afr-project/afr/pkg/canonicalize"
	"github.com/afr-project/afr/pkg/transparency"
)

type anonymousIDRequest struct {
	Identity string `json:"identity"`
	Salt     string `json:"salt"`
}

// Deprecated surface: clients should derive the id locally so the
// identity never crosses the wire. Kept for dashboard compatibility;
// nothing is persisted here.
func (s *Server) handleAnonymousID(w http.ResponseWriter, r *http.Request) {
	var req anonymousIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Identity == "" || req.Salt == "" {
		WriteBadRequest(w, "identity and salt are required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"anon_id": canonicalize.AnonymousID(req.Identity, req.Salt),
	})
}

type raiseConcernRequest struct {
	AnonID      string `json:"anon_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Target      string `json:"target"`
}

func (s *Server) handleRaiseConcern(w http.ResponseWriter, r *http.Request) {
	var req raiseConcernRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	concern, err := s.opts.Transparency.RaiseConcern(req.AnonID, req.Title, req.Description, req.Target)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, concern)
}

func (s *Server) handleListConcerns(w http.ResponseWriter, r *http.Request) {
	concerns := s.opts.Transparency.ListConcerns(
		transparency.ConcernStatus(r.URL.Query().Get("status")),
		r.URL.Query().Get("target"),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"concerns": concerns,
		"count":    len(concerns),
	})
}

func (s *Server) handleGetConcern(w http.ResponseWriter, r *http.Request) {
	concern, err := s.opts.Transparency.GetConcern(r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, concern)
}

func (s *Server) handleConcernResponses(w http.ResponseWriter, r *http.Request) {
	if _, err := s.opts.Transparency.GetConcern(r.PathValue("id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	responses := s.opts.Transparency.GetResponses(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"responses": responses,
		"count":     len(responses),
	})
}

type respondRequest struct {
	ConcernID string `json:"concern_id"`
	Content   string `json:"content"`
}

// The responder role comes from the authenticated principal, not the
// request body, so a lab cannot answer as an auditor.
func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	principal, _ := auth.GetPrincipal(r.Context())
	response, err := s.opts.Transparency.Respond(req.ConcernID, principal.Role, req.Content)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleDispute(w http.ResponseWriter, r *http.Request) {
	concern, err := s.opts.Transparency.Dispute(r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, concern)
}

type resolveRequest struct {
	ConcernID string `json:"concern_id"`
	Outcome   string `json:"outcome"`
	Notes     string `json:"notes"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	principal, _ := auth.GetPrincipal(r.Context())
	resolution, err := s.opts.Transparency.Resolve(
		req.ConcernID, principal.PartyID, transparency.ResolutionOutcome(req.Outcome), req.Notes)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

func (s *Server) handleClearance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Transparency.Clearance(r.PathValue("deployment_id")))
}

func (s *Server) handleTransparencyStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Transparency.Stats())
}
