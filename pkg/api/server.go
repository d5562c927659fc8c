package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/afr-project/afr/pkg/auth"
	"github.com/afr-project/afr/pkg/ledger"
	"github.com/afr-project/afr/pkg/mirror"
	"github.com/afr-project/afr/pkg/observability"
	"github.com/afr-project/afr/pkg/transparency"
	"github.com/afr-project/afr/pkg/zk"
)

// ServiceName identifies the server in health responses and metrics.
const ServiceName = "afr-transparency-ledger"

// Options wires the components the HTTP surface dispatches to.
type Options struct {
	Logger            *slog.Logger
	Version           string
	Audit             *ledger.Ledger
	Transparency      *transparency.Store
	ZK                *zk.Engine
	Mirror            *mirror.Simulator
	Parties           *auth.Store
	Limiter           *auth.RegistrationLimiter
	Global            *auth.GlobalRateLimiter
	Metrics           *observability.Provider
	RequiredTemplates []transparency.TemplateType
	WindowSeconds     int
	CORSOrigins       []string
}

// Server dispatches the REST surface onto the domain components.
type Server struct {
	opts   Options
	logger *slog.Logger
}

// NewServer builds the server. Metrics may be nil.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WindowSeconds <= 0 {
		opts.WindowSeconds = 60
	}
	return &Server{opts: opts, logger: logger.With("component", "api")}
}

// Handler returns the full middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return Chain(s.Routes(),
		auth.RequestIDMiddleware,
		LoggingMiddleware(s.logger),
		GlobalRateLimit(s.opts.Global),
		CORSMiddleware(s.opts.CORSOrigins),
		s.opts.Metrics.Middleware,
	)
}

// Routes registers every endpoint. Role-gated routes fail closed: no key
// is 401, wrong role is 403.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	requireAuth := RequireAuth(s.opts.Parties)
	labOnly := RequireRole(s.opts.Parties, transparency.RoleLab)
	auditorOnly := RequireRole(s.opts.Parties, transparency.RoleAuditor)
	responder := RequireRole(s.opts.Parties, transparency.ResponderRoles...)
	registerLimit := RegistrationRateLimit(s.opts.Limiter, s.opts.WindowSeconds)

	mux.HandleFunc("GET /health", s.handleHealth)

	// Audit log and merkle proofs.
	mux.HandleFunc("POST /events", s.handleAppendEvent)
	mux.HandleFunc("GET /events", s.handleListEvents)
	mux.HandleFunc("GET /events/{id}", s.handleGetEvent)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /verify", s.handleVerify)
	mux.HandleFunc("GET /proof/{id}", s.handleProof)
	mux.HandleFunc("POST /proof/verify", s.handleProofVerify)

	// Transparency.
	mux.HandleFunc("POST /transparency/anonymous-id", s.handleAnonymousID)
	mux.HandleFunc("POST /transparency/concerns", s.handleRaiseConcern)
	mux.HandleFunc("GET /transparency/concerns", s.handleListConcerns)
	mux.HandleFunc("GET /transparency/concerns/{id}", s.handleGetConcern)
	mux.HandleFunc("GET /transparency/concerns/{id}/responses", s.handleConcernResponses)
	mux.Handle("POST /transparency/responses", responder(http.HandlerFunc(s.handleRespond)))
	mux.HandleFunc("POST /transparency/concerns/{id}/dispute", s.handleDispute)
	mux.Handle("POST /transparency/resolutions", auditorOnly(http.HandlerFunc(s.handleResolve)))
	mux.HandleFunc("GET /transparency/clearance/{deployment_id}", s.handleClearance)
	mux.HandleFunc("GET /transparency/stats", s.handleTransparencyStats)

	// Compliance.
	mux.Handle("POST /compliance/submissions", labOnly(http.HandlerFunc(s.handleSubmitCompliance)))
	mux.HandleFunc("GET /compliance/submissions", s.handleListSubmissions)
	mux.HandleFunc("GET /compliance/submissions/{id}", s.handleGetSubmission)
	mux.Handle("POST /compliance/review", auditorOnly(http.HandlerFunc(s.handleReview)))
	mux.HandleFunc("GET /compliance/status/{deployment_id}", s.handleComplianceStatus)
	mux.HandleFunc("GET /compliance/templates", s.handleTemplates)

	// Zero-knowledge threshold proofs.
	mux.HandleFunc("POST /zk/commitment", s.handleZKCommit)
	mux.HandleFunc("GET /zk/commitment/{id}", s.handleZKGet)
	mux.HandleFunc("POST /zk/prove", s.handleZKProve)
	mux.HandleFunc("POST /zk/verify", s.handleZKVerify)

	// Auth.
	mux.Handle("POST /auth/register", registerLimit(http.HandlerFunc(s.handleRegister)))
	mux.HandleFunc("GET /auth/parties", s.handleListParties)
	mux.HandleFunc("DELETE /auth/parties/{party_id}", s.handleRevokeParty)
	mux.Handle("GET /auth/me", requireAuth(http.HandlerFunc(s.handleMe)))
	mux.Handle("POST /auth/rotate-key", requireAuth(http.HandlerFunc(s.handleRotateKey)))

	// Mirror simulation.
	mux.HandleFunc("POST /demo/mirror/sync", s.handleMirrorSync)
	mux.HandleFunc("GET /demo/mirror/status", s.handleMirrorStatus)
	mux.HandleFunc("GET /demo/mirror/compare", s.handleMirrorCompare)
	mux.HandleFunc("POST /demo/mirror/tamper", s.handleMirrorTamper)
	mux.HandleFunc("GET /demo/mirror/detect", s.handleMirrorDetect)
	mux.HandleFunc("POST /demo/mirror/reset", s.handleMirrorReset)

	// Demo reset and seed endpoints.
	mux.HandleFunc("POST /demo/reset", s.handleDemoReset)
	mux.HandleFunc("POST /demo/populate", s.handleDemoPopulate)
	mux.HandleFunc("POST /demo/tamper", s.handleDemoTamper)
	mux.HandleFunc("POST /demo/zk-reset", s.handleZKReset)
	mux.HandleFunc("POST /demo/auth-reset", s.handleAuthReset)
	mux.HandleFunc("POST /demo/transparency-reset", s.handleTransparencyReset)
	mux.HandleFunc("POST /demo/transparency-populate", s.handleTransparencyPopulate)
	mux.HandleFunc("POST /demo/compliance-populate", s.handleCompliancePopulate)

	return mux
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into v with a 1MB cap.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
		"version": s.opts.Version,
	})
}
