package http

import (
	"net/http"
	"time"

	"envelopes/internal/core"
)

type initRequest struct {
	TotalBudget amountField `json:"totalBudget"`
}

type envelopeRequest struct {
	Name            *string     `json:"name"`
	AllocatedAmount amountField `json:"allocatedAmount"`
}

type transferRequest struct {
	FromEnvelopeID idField     `json:"fromEnvelopeId"`
	ToEnvelopeID   idField     `json:"toEnvelopeId"`
	Amount         amountField `json:"amount"`
}

type initResponse struct {
	Success         bool       `json:"success"`
	Message         string     `json:"message"`
	TotalBudget     core.Money `json:"totalBudget"`
	AvailableBudget core.Money `json:"availableBudget"`
}

type envelopeResponse struct {
	Success         bool          `json:"success"`
	Message         string        `json:"message,omitempty"`
	Envelope        core.Envelope `json:"envelope"`
	AvailableBudget *core.Money   `json:"availableBudget,omitempty"`
}

type transferResponse struct {
	Success         bool          `json:"success"`
	Message         string        `json:"message"`
	FromEnvelope    core.Envelope `json:"fromEnvelope"`
	ToEnvelope      core.Envelope `json:"toEnvelope"`
	AvailableBudget core.Money    `json:"availableBudget"`
}

type listResponse struct {
	Success   bool            `json:"success"`
	Envelopes []core.Envelope `json:"envelopes"`
}

type statusResponse struct {
	Envelopes       []core.Envelope `json:"envelopes"`
	AvailableBudget core.Money      `json:"availableBudget"`
	TotalBudget     core.Money      `json:"totalBudget"`
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.TotalBudget.valid() {
		writeError(w, http.StatusBadRequest, "Invalid total budget value")
		return
	}

	bal, err := s.budget.InitializeBudget(r.Context(), req.TotalBudget.Money)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, initResponse{
		Success:         true,
		Message:         "Budget initialized successfully",
		TotalBudget:     bal.Total,
		AvailableBudget: bal.Available,
	})
}

func (s *Server) handleCreateEnvelope(w http.ResponseWriter, r *http.Request) {
	var req envelopeRequest
	if !s.decode(w, r, &req) {
		return
	}
	name, ok := req.name()
	if !ok || !req.AllocatedAmount.valid() {
		writeError(w, http.StatusBadRequest, "Invalid envelope data")
		return
	}

	env, bal, err := s.budget.CreateEnvelope(r.Context(), name, req.AllocatedAmount.Money)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelopeResponse{
		Success:         true,
		Message:         "Envelope created successfully",
		Envelope:        env,
		AvailableBudget: &bal.Available,
	})
}

func (s *Server) handleModifyEnvelope(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEnvelopeID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid envelope id")
		return
	}
	var req envelopeRequest
	if !s.decode(w, r, &req) {
		return
	}
	name, ok := req.name()
	if !ok || !req.AllocatedAmount.valid() {
		writeError(w, http.StatusBadRequest, "Invalid envelope data")
		return
	}

	env, bal, err := s.budget.ModifyEnvelope(r.Context(), id, name, req.AllocatedAmount.Money)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelopeResponse{
		Success:         true,
		Message:         "Envelope updated successfully",
		Envelope:        env,
		AvailableBudget: &bal.Available,
	})
}

func (s *Server) handleDeleteEnvelope(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEnvelopeID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid envelope id")
		return
	}

	if _, _, err := s.budget.DeleteEnvelope(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.FromEnvelopeID.set || !req.ToEnvelopeID.set || !req.Amount.valid() {
		writeError(w, http.StatusBadRequest, "Invalid transfer data")
		return
	}

	from, to, bal, err := s.budget.Transfer(r.Context(), req.FromEnvelopeID.ID, req.ToEnvelopeID.ID, req.Amount.Money)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, transferResponse{
		Success:         true,
		Message:         "Transfer completed successfully",
		FromEnvelope:    from,
		ToEnvelope:      to,
		AvailableBudget: bal.Available,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.budget.Status(r.Context())
	writeJSON(w, http.StatusOK, statusResponse{
		Envelopes:       status.Envelopes,
		AvailableBudget: status.Available,
		TotalBudget:     status.Total,
	})
}

func (s *Server) handleListEnvelopes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{
		Success:   true,
		Envelopes: s.budget.Envelopes(r.Context()),
	})
}

func (s *Server) handleGetEnvelope(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEnvelopeID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid envelope id")
		return
	}

	env, err := s.budget.Envelope(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelopeResponse{Success: true, Envelope: env})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady reports 503 once shutdown has begun so load balancers stop
// routing new requests here.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "shutting_down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
