package api

import "net/http"

func (s *Server) handleMirrorSync(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.opts.Mirror.SyncAll(s.opts.Transparency.SnapshotRecords())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "all mirrors synchronized",
		"parties": statuses,
	})
}

func (s *Server) handleMirrorStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"parties": s.opts.Mirror.Status(),
	})
}

func (s *Server) handleMirrorCompare(w http.ResponseWriter, r *http.Request) {
	result := s.opts.Mirror.Compare()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"all_consistent":    result.Consistent,
		"hashes":            result.Hashes,
		"divergent_parties": result.DivergentParties,
		"message":           result.Message,
	})
}

type mirrorTamperRequest struct {
	Party      string      `json:"party"`
	RecordType string      `json:"record_type"`
	RecordID   string      `json:"record_id"`
	Field      string      `json:"field"`
	NewValue   interface{} `json:"new_value"`
}

func (s *Server) handleMirrorTamper(w http.ResponseWriter, r *http.Request) {
	var req mirrorTamperRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.opts.Mirror.Tamper(req.Party, req.RecordType, req.RecordID, req.Field, req.NewValue); err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "tampered",
		"message": "record modified in " + req.Party + " mirror; run detect to expose it",
	})
}

func (s *Server) handleMirrorDetect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Mirror.Detect())
}

func (s *Server) handleMirrorReset(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Mirror.Reset(); err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
