package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/checkin-relay-go/internal/errors"
	"github.com/openclaw/checkin-relay-go/internal/model"
	"github.com/openclaw/checkin-relay-go/internal/registry"
	"github.com/openclaw/checkin-relay-go/internal/service"
)

// CheckinHandler is the desk's durable-write boundary: the desk records a
// check-in here, then sends ack-scan over the relay.
type CheckinHandler struct {
	registry       *registry.Registry
	checkinService *service.CheckinService
}

func NewCheckinHandler(reg *registry.Registry, checkinService *service.CheckinService) *CheckinHandler {
	return &CheckinHandler{
		registry:       reg,
		checkinService: checkinService,
	}
}

func (h *CheckinHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateCheckin)
	r.Get("/", h.ListCheckins)

	return r
}

type createCheckinRequest struct {
	DeskID   string `json:"deskId"`
	Secret   string `json:"secret"`
	UniqueID string `json:"uniqueId"`
}

// POST /v1/checkins
func (h *CheckinHandler) CreateCheckin(w http.ResponseWriter, r *http.Request) {
	var req createCheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Malformed request body"))
		return
	}

	if !h.registry.Validate(req.DeskID, req.Secret) {
		writeError(w, apperrors.InvalidSession())
		return
	}

	checkin, err := h.checkinService.Record(r.Context(), req.DeskID, req.UniqueID)
	if err != nil {
		if apperrors.IsAppError(err) {
			writeError(w, err)
			return
		}
		log.Error().Err(err).Str("deskId", req.DeskID).Msg("failed to record check-in")
		writeError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusCreated, checkin)
}

// GET /v1/checkins?limit=N
func (h *CheckinHandler) ListCheckins(w http.ResponseWriter, r *http.Request) {
	deskID := r.Header.Get("X-Desk-Id")
	secret := r.Header.Get("X-Desk-Secret")

	if !h.registry.Validate(deskID, secret) {
		writeError(w, apperrors.InvalidSession())
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	checkins, err := h.checkinService.ListRecent(r.Context(), deskID, limit)
	if err != nil {
		log.Error().Err(err).Str("deskId", deskID).Msg("failed to list check-ins")
		writeError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string][]model.Checkin{"checkins": checkins})
}
