package api

import "net/http"

type zkCommitRequest struct {
	Count    int                    `json:"count"`
	Blinding string                 `json:"blinding"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) handleZKCommit(w http.ResponseWriter, r *http.Request) {
	var req zkCommitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	commitment, err := s.opts.ZK.Commit(req.Count, req.Blinding, req.Metadata)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commitment)
}

func (s *Server) handleZKGet(w http.ResponseWriter, r *http.Request) {
	commitment, err := s.opts.ZK.Get(r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commitment)
}

type zkProveRequest struct {
	CommitmentID string `json:"commitment_id"`
	Threshold    int    `json:"threshold"`
}

func (s *Server) handleZKProve(w http.ResponseWriter, r *http.Request) {
	var req zkProveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	proof, err := s.opts.ZK.Prove(req.CommitmentID, req.Threshold)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

type zkVerifyRequest struct {
	CommitmentID string `json:"commitment_id"`
	Threshold    int    `json:"threshold"`
	ProofValue   string `json:"proof_value"`
}

func (s *Server) handleZKVerify(w http.ResponseWriter, r *http.Request) {
	var req zkVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	valid, err := s.opts.ZK.Verify(req.CommitmentID, req.Threshold, req.ProofValue)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_valid": valid})
}
