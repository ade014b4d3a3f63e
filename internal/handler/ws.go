package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/checkin-relay-go/internal/relay"
)

// WSHandler upgrades /ws requests and hands the connection to the relay
// hub. Join admission happens over the socket itself, as the first frame.
type WSHandler struct {
	hub *relay.Hub
}

func NewWSHandler(hub *relay.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.hub.Upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.hub.HandleConnection(conn)
}
