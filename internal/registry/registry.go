package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/checkin-relay-go/internal/model"
	"github.com/openclaw/checkin-relay-go/internal/util"
)

// Registry owns every session record. Other components read and advance
// sessions only through its methods; nothing else touches the table.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	ttl      time.Duration
}

func New(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*model.Session),
		ttl:      ttl,
	}
}

// Create mints a new session: a random 128-bit desk id and a 256-bit
// secret, expiring after the registry TTL.
func (r *Registry) Create() (*model.Session, error) {
	secret, err := util.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        uuid.NewString(),
		Secret:    secret,
		State:     model.SessionStateIdle,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	log.Info().
		Str("deskId", session.ID).
		Time("expiresAt", session.ExpiresAt).
		Msg("session created")

	out := *session
	return &out, nil
}

// Validate reports whether (id, secret) names a live session. Missing,
// expired and mismatched credentials are indistinguishable to the caller;
// expired records are evicted on the way out.
func (r *Registry) Validate(id, secret string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.lookup(id)
	if session == nil {
		return false
	}
	return util.ConstantTimeEqual(session.Secret, secret)
}

// ValidateSignature admits a scanner that presents the HMAC signature
// derived from the session secret instead of the secret itself.
func (r *Registry) ValidateSignature(id, signature string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.lookup(id)
	if session == nil {
		return false
	}
	return util.ConstantTimeEqual(util.SignDeskID(session.Secret, id), signature)
}

// Refresh extends the session expiry by one TTL. The secret is never
// rotated. Returns false under exactly the same conditions as Validate.
func (r *Registry) Refresh(id, secret string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.lookup(id)
	if session == nil {
		return false
	}
	if !util.ConstantTimeEqual(session.Secret, secret) {
		return false
	}

	session.ExpiresAt = time.Now().Add(r.ttl)

	log.Debug().
		Str("deskId", id).
		Time("expiresAt", session.ExpiresAt).
		Msg("session refreshed")

	return true
}

// Advance moves the session handshake state from one state to another,
// atomically. A false return means the session is gone or some other
// message got there first; callers treat that as "drop the message".
func (r *Registry) Advance(id string, from, to model.SessionState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.lookup(id)
	if session == nil {
		return false
	}
	if session.State != from {
		return false
	}

	session.State = to
	return true
}

// State returns the current handshake state of a live session.
func (r *Registry) State(id string) (model.SessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.lookup(id)
	if session == nil {
		return "", false
	}
	return session.State, true
}

// EvictExpired removes every session past its expiry and returns the count.
// Called by the background sweep; lookups also evict lazily.
func (r *Registry) EvictExpired() int {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live records, expired ones included until a
// sweep or a read evicts them.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// TTLSeconds is the expiry interval handed back to HTTP callers.
func (r *Registry) TTLSeconds() int {
	return int(r.ttl.Seconds())
}

// lookup finds a session and evicts it if expired. Callers hold r.mu.
func (r *Registry) lookup(id string) *model.Session {
	session, ok := r.sessions[id]
	if !ok {
		return nil
	}
	if session.Expired(time.Now()) {
		delete(r.sessions, id)
		log.Debug().Str("deskId", id).Msg("expired session evicted on read")
		return nil
	}
	return session
}
