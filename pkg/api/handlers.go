package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Mindburn-Labs/vaultgate/pkg/auth"
	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
	"github.com/Mindburn-Labs/vaultgate/pkg/gate"
)

// Server exposes the gate over HTTP. Authentication happens in
// middleware; every handler reads the principal from the request
// context and lets the gate authorize it.
type Server struct {
	gate   *gate.Gate
	logger *slog.Logger
}

// NewServer creates an HTTP server facade over a gate.
func NewServer(g *gate.Gate, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{gate: g, logger: logger}
}

// Routes builds the route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/actions", s.handleRequestAction)

	mux.HandleFunc("GET /api/v1/requests", s.handleListRequests)
	mux.HandleFunc("GET /api/v1/requests/{id}", s.handleGetRequest)
	mux.HandleFunc("POST /api/v1/requests/{id}/sign", s.handleSignRequest)
	mux.HandleFunc("POST /api/v1/requests/{id}/reject", s.handleRejectRequest)

	mux.HandleFunc("GET /api/v1/policies", s.handleListPolicies)
	mux.HandleFunc("POST /api/v1/policies", s.handleAddPolicy)
	mux.HandleFunc("PUT /api/v1/policies/{id}", s.handleUpdatePolicy)
	mux.HandleFunc("DELETE /api/v1/policies/{id}", s.handleRemovePolicy)

	mux.HandleFunc("GET /api/v1/roles", s.handleListRoles)
	mux.HandleFunc("POST /api/v1/roles", s.handleAssignRole)
	mux.HandleFunc("DELETE /api/v1/roles", s.handleRevokeRole)

	mux.HandleFunc("GET /api/v1/audit", s.handleAuditEntries)
	mux.HandleFunc("GET /api/v1/audit/verify", s.handleVerifyAudit)
	mux.HandleFunc("GET /api/v1/audit/{id}", s.handleAuditEntry)

	mux.HandleFunc("POST /api/v1/pause", s.handlePause)
	mux.HandleFunc("POST /api/v1/resume", s.handleResume)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"paused": s.gate.IsPaused(),
	})
}

// actionRequest is the body of POST /api/v1/actions. The action field
// carries the variant tag envelope.
type actionRequest struct {
	Action json.RawMessage `json:"action"`
}

func (s *Server) handleRequestAction(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if len(req.Action) == 0 {
		WriteBadRequest(w, "Missing required field: action")
		return
	}

	action, err := contracts.DecodeAction(req.Action)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	result, err := s.gate.RequestAction(r.Context(), caller, action)
	if err != nil {
		WriteGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gate.PendingRequests())
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := s.gate.Request(id)
	if err != nil {
		WriteGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleSignRequest(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	req, err := s.gate.SignRequest(r.Context(), caller, id)
	if err != nil {
		WriteGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := s.gate.RejectRequest(caller, id, body.Reason); err != nil {
		WriteGateError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gate.Policies())
}

func (s *Server) handleAddPolicy(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var p contracts.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	id, err := s.gate.AddPolicy(caller, p)
	if err != nil {
		WriteGateError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}

	var p contracts.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := s.gate.UpdatePolicy(caller, r.PathValue("id"), p); err != nil {
		WriteGateError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemovePolicy(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}

	if err := s.gate.RemovePolicy(caller, r.PathValue("id")); err != nil {
		WriteGateError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gate.ListRoleAssignments())
}

type roleRequest struct {
	Principal string `json:"principal"`
	Role      string `json:"role"`
}

func (r roleRequest) parse() (contracts.Principal, contracts.Role, bool) {
	role := contracts.Role(r.Role)
	switch role {
	case contracts.RoleOwner, contracts.RoleOperator, contracts.RoleViewer:
	default:
		return "", "", false
	}
	if r.Principal == "" {
		return "", "", false
	}
	return contracts.Principal(r.Principal), role, true
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}

	var body roleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	principal, role, ok := body.parse()
	if !ok {
		WriteBadRequest(w, "principal and a valid role are required")
		return
	}

	if err := s.gate.AssignRole(caller, principal, role); err != nil {
		WriteGateError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}

	var body roleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	principal, role, ok := body.parse()
	if !ok {
		WriteBadRequest(w, "principal and a valid role are required")
		return
	}

	if err := s.gate.RevokeRole(caller, principal, role); err != nil {
		WriteGateError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuditEntries(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}

	start, ok := timeParam(w, r, "start")
	if !ok {
		return
	}
	end, ok := timeParam(w, r, "end")
	if !ok {
		return
	}

	entries, err := s.gate.AuditEntries(caller, start, end)
	if err != nil {
		WriteGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAuditEntry(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	entry, err := s.gate.AuditEntry(caller, id)
	if err != nil {
		WriteGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleVerifyAudit(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}

	valid, err := s.gate.VerifyAuditChain(caller)
	if err != nil && gate.CodeOf(err) == gate.CodeUnauthorized {
		WriteGateError(w, err)
		return
	}

	// A failed verification is a successful query with a bad verdict,
	// not a server error.
	resp := map[string]any{"valid": valid}
	if err != nil {
		resp["detail"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}
	if err := s.gate.Pause(caller); err != nil {
		WriteGateError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteForbidden(w, "")
		return
	}
	if err := s.gate.Resume(caller); err != nil {
		WriteGateError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "id must be a non-negative integer")
		return 0, false
	}
	return id, true
}

// timeParam parses an optional RFC 3339 query parameter.
func timeParam(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		WriteBadRequest(w, name+" must be an RFC 3339 timestamp")
		return nil, false
	}
	return &t, true
}
