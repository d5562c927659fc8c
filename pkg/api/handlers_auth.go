package api

import (
	"net/http"

	"github.com/afr-project/afr/pkg/auth"
	"github.com/afr-project/afr/pkg/transparency"
)

type registerRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// registerResponse carries the plaintext key. It is shown exactly once;
// subsequent reads of the party expose only the key hash.
type registerResponse struct {
	Party  auth.Party `json:"party"`
	APIKey string     `json:"api_key"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	party, key, err := s.opts.Parties.Register(req.Name, transparency.Role(req.Role))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{Party: party, APIKey: key})
}

func (s *Server) handleListParties(w http.ResponseWriter, r *http.Request) {
	parties := s.opts.Parties.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"parties": parties,
		"count":   len(parties),
	})
}

func (s *Server) handleRevokeParty(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Parties.Revoke(r.PathValue("party_id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.GetPrincipal(r.Context())
	writeJSON(w, http.StatusOK, principal)
}

func (s *Server) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.GetPrincipal(r.Context())
	party, key, err := s.opts.Parties.RotateKey(principal.PartyID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{Party: party, APIKey: key})
}

func (s *Server) handleAuthReset(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Parties.Reset(); err != nil {
		WriteDomainError(w, err)
		return
	}
	s.opts.Limiter.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
