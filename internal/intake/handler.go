package intake

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type CreateSessionRequest struct {
	ConnectionID string `json:"connection_id"`
}

type TurnRequest struct {
	Message string `json:"message"`
}

type ResetRequest struct {
	Reason string `json:"reason"`
}

type ReviewRequest struct {
	Reason string `json:"reason"`
}

type sessionResponse struct {
	*IntakeSession
	Linkable bool `json:"linkable"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.ConnectionID == "" {
		http.Error(w, "Missing connection_id", http.StatusBadRequest)
		return
	}

	session, err := h.svc.CreateSession(r.Context(), req.ConnectionID)
	if err != nil {
		http.Error(w, "Failed to create intake session", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, sessionResponse{IntakeSession: session, Linkable: session.Linkable()})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	session, err := h.svc.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, sessionResponse{IntakeSession: session, Linkable: session.Linkable()})
}

// HandleTurn processes one patient message. The reply is always non-empty,
// even when the model misbehaved; only store-level failures surface as
// errors, and those are retryable.
func (h *Handler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Missing message", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ProcessTurn(r.Context(), id, req.Message)
	if err != nil {
		writeTurnError(w, err)
		return
	}

	writeJSON(w, result)
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	var req ResetRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "patient_requested"
	}

	session, err := h.svc.ResetSession(r.Context(), id, req.Reason)
	if err != nil {
		writeTurnError(w, err)
		return
	}

	writeJSON(w, sessionResponse{IntakeSession: session, Linkable: session.Linkable()})
}

// HandleReview advances a ready session to reviewed on a clinician's
// request. Reviewing an already-reviewed session is a no-op.
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	var req ReviewRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "clinician_reviewed"
	}

	session, err := h.svc.ReviewSession(r.Context(), id, req.Reason)
	if err != nil {
		writeTurnError(w, err)
		return
	}

	writeJSON(w, sessionResponse{IntakeSession: session, Linkable: session.Linkable()})
}

func writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		// Generic retry message on transaction failure only.
		http.Error(w, "Please try again", http.StatusConflict)
	case errors.Is(err, ErrSessionReviewed):
		http.Error(w, "Session already reviewed", http.StatusConflict)
	case errors.Is(err, ErrSessionNotReady):
		http.Error(w, "Session is not ready for review", http.StatusConflict)
	default:
		http.Error(w, "Please try again", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/intake", h.CreateSession)
	r.Get("/intake/{id}", h.GetSession)
	r.Post("/intake/{id}/turn", h.HandleTurn)
	r.Post("/intake/{id}/reset", h.HandleReset)
	r.Post("/intake/{id}/review", h.HandleReview)
}
