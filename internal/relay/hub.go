package relay

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/checkin-relay-go/internal/errors"
	"github.com/openclaw/checkin-relay-go/internal/model"
	"github.com/openclaw/checkin-relay-go/internal/registry"
)

// Hub multiplexes realtime messages between the desk and the scanners of
// each session. All membership changes and handshake transitions for a
// session happen under the hub mutex, so messages for one session never
// race each other.
type Hub struct {
	registry    *registry.Registry
	maxScanners int
	upgrader    websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*room
}

// room is the live half of a session: the current desk connection, the
// attached scanners, and the scan waiting for the desk ack.
type room struct {
	desk     *Client
	scanners map[*Client]struct{}
	pending  *model.ScanEvent
}

func NewHub(reg *registry.Registry, maxScanners int) *Hub {
	return &Hub{
		registry:    reg,
		maxScanners: maxScanners,
		rooms:       make(map[string]*room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Desk and scanner pages are served from their own origins;
			// admission is enforced by the join frame, not the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Upgrader returns the WebSocket upgrader for the HTTP handler.
func (h *Hub) Upgrader() *websocket.Upgrader {
	return &h.upgrader
}

// HandleConnection owns a freshly upgraded connection: it admits the join
// frame, then pumps messages until the peer goes away. Blocks until the
// connection is done.
func (h *Hub) HandleConnection(conn *websocket.Conn) {
	c := newClient(conn)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(joinWait))

	var join Envelope
	if err := conn.ReadJSON(&join); err != nil {
		_ = conn.Close()
		return
	}

	if err := h.admit(c, join); err != nil {
		message := "Join failed"
		if appErr, ok := apperrors.AsAppError(err); ok {
			message = appErr.Message
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(ErrorEnvelope(message))
		_ = conn.Close()
		return
	}

	go c.writePump()
	defer h.Leave(c)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			// Transport failure or clean close: either way the
			// connection's membership is cleaned up, nothing more.
			log.Debug().
				Str("deskId", c.sessionID).
				Str("role", string(c.role)).
				Err(err).
				Msg("connection closed")
			return
		}
		h.dispatch(c, env)
	}
}

func (h *Hub) admit(c *Client, env Envelope) error {
	switch env.Type {
	case EventJoinDesk:
		var p JoinDeskPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return apperrors.BadEnvelope("Malformed join payload")
		}
		return h.JoinDesk(c, p.DeskID, p.Secret)

	case EventJoinScanner:
		var p JoinScannerPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return apperrors.BadEnvelope("Malformed join payload")
		}
		return h.JoinScanner(c, p.DeskID, p.Signature)

	default:
		return apperrors.BadEnvelope("First message must be a join")
	}
}

func (h *Hub) dispatch(c *Client, env Envelope) {
	switch env.Type {
	case EventScan:
		var p ScanPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Str("deskId", c.sessionID).Msg("malformed scan payload dropped")
			return
		}
		h.Scan(c, p.UniqueID)

	case EventAckScan:
		h.Ack(c)

	case EventResume:
		h.Resume(c)

	case EventJoinDesk, EventJoinScanner:
		c.enqueue(ErrorEnvelope("Already joined"))

	default:
		log.Debug().Str("event", env.Type).Msg("unknown event ignored")
	}
}

// JoinDesk attaches a connection as the desk of a session. When a desk is
// already attached the new join wins: the old connection stays open but no
// longer receives forwarded scans, and its disconnect is not announced.
func (h *Hub) JoinDesk(c *Client, deskID, secret string) error {
	if !h.registry.Validate(deskID, secret) {
		return apperrors.InvalidSession()
	}

	c.role = model.RoleDesk
	c.sessionID = deskID

	h.mu.Lock()
	rm := h.room(deskID)
	superseded := rm.desk != nil
	rm.desk = c
	h.mu.Unlock()

	state, _ := h.registry.State(deskID)
	c.enqueue(NewEnvelope(EventDeskJoined, JoinedPayload{State: string(state)}))

	log.Info().
		Str("deskId", deskID).
		Bool("superseded", superseded).
		Msg("desk joined")

	return nil
}

// JoinScanner attaches a connection as one of the session's scanners and
// acknowledges it to that scanner only.
func (h *Hub) JoinScanner(c *Client, deskID, signature string) error {
	if !h.registry.ValidateSignature(deskID, signature) {
		return apperrors.InvalidSession()
	}

	c.role = model.RoleScanner
	c.sessionID = deskID

	h.mu.Lock()
	rm := h.room(deskID)
	if len(rm.scanners) >= h.maxScanners {
		h.mu.Unlock()
		return apperrors.SessionFull()
	}
	rm.scanners[c] = struct{}{}
	count := len(rm.scanners)
	h.mu.Unlock()

	state, _ := h.registry.State(deskID)
	c.enqueue(NewEnvelope(EventScannerJoined, JoinedPayload{State: string(state)}))

	log.Info().
		Str("deskId", deskID).
		Int("scannerCount", count).
		Msg("scanner joined")

	return nil
}

// Scan admits a scanned participant id through the handshake gate. Only a
// session in idle accepts a scan; everything else is dropped so at most
// one scan is in flight until the desk acks it.
func (h *Hub) Scan(c *Client, uniqueID string) {
	if c.role != model.RoleScanner {
		log.Warn().Str("deskId", c.sessionID).Msg("scan from non-scanner dropped")
		return
	}

	if strings.TrimSpace(uniqueID) == "" {
		// Malformed scans never touch the state machine and are not
		// surfaced to the desk.
		log.Warn().Str("deskId", c.sessionID).Msg("empty scan id dropped")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.registry.Advance(c.sessionID, model.SessionStateIdle, model.SessionStateAwaitingAck) {
		log.Debug().
			Str("deskId", c.sessionID).
			Str("uniqueId", uniqueID).
			Msg("scan dropped, session not accepting")
		return
	}

	rm := h.rooms[c.sessionID]
	if rm == nil {
		return
	}
	rm.pending = &model.ScanEvent{UniqueID: uniqueID, ReceivedAt: time.Now()}

	if rm.desk == nil {
		// Best effort: with no desk attached the forward is lost and the
		// session waits in awaiting-ack for a desk to reconnect.
		log.Warn().Str("deskId", c.sessionID).Msg("scan forwarded with no desk attached")
		return
	}
	rm.desk.enqueue(NewEnvelope(EventScanReceived, ScanPayload{UniqueID: uniqueID}))

	log.Info().
		Str("deskId", c.sessionID).
		Str("uniqueId", uniqueID).
		Msg("scan forwarded to desk")
}

// Ack marks the in-flight scan as durably recorded by the desk and pauses
// all scanners.
func (h *Hub) Ack(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm := h.currentDeskRoom(c)
	if rm == nil {
		return
	}

	if !h.registry.Advance(c.sessionID, model.SessionStateAwaitingAck, model.SessionStatePaused) {
		log.Debug().Str("deskId", c.sessionID).Msg("ack dropped, no scan in flight")
		return
	}

	var uniqueID string
	if rm.pending != nil {
		uniqueID = rm.pending.UniqueID
		rm.pending = nil
	}

	h.broadcast(rm, NewEnvelope(EventScanAcknowledged, ScanPayload{UniqueID: uniqueID}))

	log.Info().
		Str("deskId", c.sessionID).
		Str("uniqueId", uniqueID).
		Msg("scan acknowledged, scanners paused")
}

// Resume reopens the session for scans and tells the scanners to unfreeze.
func (h *Hub) Resume(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm := h.currentDeskRoom(c)
	if rm == nil {
		return
	}

	if !h.registry.Advance(c.sessionID, model.SessionStatePaused, model.SessionStateIdle) {
		log.Debug().Str("deskId", c.sessionID).Msg("resume dropped, session not paused")
		return
	}

	h.broadcast(rm, NewEnvelope(EventResumeScanning, nil))

	log.Info().Str("deskId", c.sessionID).Msg("scanning resumed")
}

// Leave detaches a connection. A desk departure is announced to all
// scanners; a scanner departure is silent. Session state is untouched
// either way, so a reconnecting desk picks up where it left off.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()

	rm := h.rooms[c.sessionID]
	if rm != nil {
		if rm.desk == c {
			rm.desk = nil
			h.broadcast(rm, NewEnvelope(EventDeskDisconnected, nil))
			log.Info().Str("deskId", c.sessionID).Msg("desk disconnected")
		} else {
			delete(rm.scanners, c)
		}
		if rm.desk == nil && len(rm.scanners) == 0 {
			delete(h.rooms, c.sessionID)
		}
	}

	h.mu.Unlock()
	c.Close()
}

// Close drops every connection. Used at shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, rm := range h.rooms {
		if rm.desk != nil {
			rm.desk.Close()
		}
		for s := range rm.scanners {
			s.Close()
		}
	}
	h.rooms = make(map[string]*room)
}

// ScannerCount returns how many scanners a session currently has attached.
func (h *Hub) ScannerCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm := h.rooms[sessionID]
	if rm == nil {
		return 0
	}
	return len(rm.scanners)
}

// HasDesk reports whether a desk connection is currently attached.
func (h *Hub) HasDesk(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm := h.rooms[sessionID]
	return rm != nil && rm.desk != nil
}

// room returns the session's room, creating it on first join. Callers
// hold h.mu.
func (h *Hub) room(sessionID string) *room {
	rm, ok := h.rooms[sessionID]
	if !ok {
		rm = &room{scanners: make(map[*Client]struct{})}
		h.rooms[sessionID] = rm
	}
	return rm
}

// currentDeskRoom returns the room if c is the session's current desk.
// Acks and resumes from a superseded desk connection are ignored. Callers
// hold h.mu.
func (h *Hub) currentDeskRoom(c *Client) *room {
	if c.role != model.RoleDesk {
		return nil
	}
	rm := h.rooms[c.sessionID]
	if rm == nil || rm.desk != c {
		return nil
	}
	return rm
}

// broadcast queues an envelope on every scanner. Callers hold h.mu.
func (h *Hub) broadcast(rm *room, env Envelope) {
	for s := range rm.scanners {
		s.enqueue(env)
	}
}
