package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/checkin-relay-go/internal/errors"
	"github.com/openclaw/checkin-relay-go/internal/registry"
)

type SessionHandler struct {
	registry *registry.Registry
}

func NewSessionHandler(reg *registry.Registry) *SessionHandler {
	return &SessionHandler{registry: reg}
}

type createSessionResponse struct {
	DeskID    string `json:"deskId"`
	Secret    string `json:"secret"`
	ExpiresIn int    `json:"expiresIn"`
}

type refreshSessionRequest struct {
	DeskID string `json:"deskId"`
	Secret string `json:"secret"`
}

type refreshSessionResponse struct {
	ExpiresIn int `json:"expiresIn"`
}

// POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.registry.Create()
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		writeError(w, apperrors.Internal("Failed to create session"))
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		DeskID:    session.ID,
		Secret:    session.Secret,
		ExpiresIn: h.registry.TTLSeconds(),
	})
}

// POST /v1/sessions/refresh
func (h *SessionHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	var req refreshSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Malformed request body"))
		return
	}

	if !h.registry.Refresh(req.DeskID, req.Secret) {
		writeError(w, apperrors.InvalidSession())
		return
	}

	writeJSON(w, http.StatusOK, refreshSessionResponse{
		ExpiresIn: h.registry.TTLSeconds(),
	})
}
