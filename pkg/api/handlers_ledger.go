package api

import (
	"net/http"
	"strconv"

	"github.com/afr-project/afr/pkg/ledger"
	"github.com/afr-project/afr/pkg/merkle"
)

type appendEventRequest struct {
	EventType   string                 `json:"event_type"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (s *Server) handleAppendEvent(w http.ResponseWriter, r *http.Request) {
	var req appendEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := s.opts.Audit.Append(ledger.EventType(req.EventType), req.Description, req.Metadata)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	events := s.opts.Audit.List(ledger.EventType(r.URL.Query().Get("event_type")), limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		WriteBadRequest(w, "event id must be an integer")
		return
	}
	event, err := s.opts.Audit.Get(id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// statusResponse mirrors the dashboard's summary: hashes are null rather
// than empty strings while the log is empty.
type statusResponse struct {
	TotalEvents   int     `json:"total_events"`
	LatestHash    *string `json:"latest_hash"`
	MerkleRoot    *string `json:"merkle_root"`
	IsChainValid  bool    `json:"is_chain_valid"`
	LastEventTime *string `json:"last_event_time"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tree := merkle.New(s.opts.Audit.Hashes())
	writeJSON(w, http.StatusOK, statusResponse{
		TotalEvents:   s.opts.Audit.Length(),
		LatestHash:    optional(s.opts.Audit.LatestHash()),
		MerkleRoot:    optional(tree.Root()),
		IsChainValid:  s.opts.Audit.VerifyChain().Valid,
		LastEventTime: optional(s.opts.Audit.LatestTimestamp()),
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Audit.VerifyChain())
}

type proofResponse struct {
	EventID    int                `json:"event_id"`
	EventHash  string             `json:"event_hash"`
	MerkleRoot string             `json:"merkle_root"`
	Proof      []merkle.ProofStep `json:"proof"`
	IsValid    bool               `json:"is_valid"`
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		WriteBadRequest(w, "event id must be an integer")
		return
	}
	event, err := s.opts.Audit.Get(id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	tree := merkle.New(s.opts.Audit.Hashes())
	proof, err := tree.Prove(id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proofResponse{
		EventID:    id,
		EventHash:  event.Hash,
		MerkleRoot: tree.Root(),
		Proof:      proof,
		IsValid:    merkle.Verify(event.Hash, proof, tree.Root()),
	})
}

type proofVerifyRequest struct {
	LeafHash string             `json:"leaf_hash"`
	Proof    []merkle.ProofStep `json:"proof"`
	Root     string             `json:"root"`
}

func (s *Server) handleProofVerify(w http.ResponseWriter, r *http.Request) {
	var req proofVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LeafHash == "" || req.Root == "" {
		WriteBadRequest(w, "leaf_hash and root are required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"is_valid": merkle.Verify(req.LeafHash, req.Proof, req.Root),
	})
}
