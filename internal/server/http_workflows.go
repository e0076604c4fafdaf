package server

import (
	"errors"
	"net/http"

	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/workflow"
)

// handleRegister handles POST /v1/workflows/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.workflowsReady(w) {
		return
	}
	var in workflow.RegistrationInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := workflow.NewRegistration(s.workflows).Run(r.Context(), in)
	s.writeRun(w, res, err)
}

// handleCreateEvent handles POST /v1/workflows/events.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	if !s.workflowsReady(w) {
		return
	}
	var in workflow.EventInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := workflow.NewEventCreation(s.workflows).Run(r.Context(), in)
	s.writeRun(w, res, err)
}

// handlePurchase handles POST /v1/workflows/purchase.
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	if !s.workflowsReady(w) {
		return
	}
	var in workflow.PurchaseInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := workflow.NewTicketPurchase(s.workflows).Run(r.Context(), in)
	s.writeRun(w, res, err)
}

func (s *Server) workflowsReady(w http.ResponseWriter) bool {
	if s.workflows == nil {
		writeError(w, http.StatusServiceUnavailable, "workflows disabled: no signer configured")
		return false
	}
	return true
}

// writeRun maps a finished run to a response. A run that reached Reported
// answers 200 whatever its outcome; only invalid input is a client error.
func (s *Server) writeRun(w http.ResponseWriter, res *workflow.Result, err error) {
	if res == nil {
		if errors.Is(err, workflow.ErrAlreadyRun) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("workflow did not start", "err", err)
		writeError(w, http.StatusInternalServerError, "workflow did not start")
		return
	}
	if model.IsValidation(err) {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
