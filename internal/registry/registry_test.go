package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/checkin-relay-go/internal/model"
	"github.com/openclaw/checkin-relay-go/internal/util"
)

func TestCreate(t *testing.T) {
	r := New(30 * time.Minute)

	t.Run("returns id, secret and expiry", func(t *testing.T) {
		session, err := r.Create()
		require.NoError(t, err)

		assert.Len(t, session.ID, 36) // uuid v4
		assert.Len(t, session.Secret, 64)
		assert.Equal(t, model.SessionStateIdle, session.State)
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), session.ExpiresAt, time.Second)
	})

	t.Run("generates unique credentials", func(t *testing.T) {
		s1, err := r.Create()
		require.NoError(t, err)
		s2, err := r.Create()
		require.NoError(t, err)

		assert.NotEqual(t, s1.ID, s2.ID)
		assert.NotEqual(t, s1.Secret, s2.Secret)
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts matching credentials", func(t *testing.T) {
		r := New(time.Minute)
		s, _ := r.Create()
		assert.True(t, r.Validate(s.ID, s.Secret))
	})

	t.Run("rejects unknown id", func(t *testing.T) {
		r := New(time.Minute)
		assert.False(t, r.Validate("nope", "whatever"))
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		r := New(time.Minute)
		s, _ := r.Create()
		assert.False(t, r.Validate(s.ID, "wrong"))
	})

	t.Run("rejects and evicts expired session", func(t *testing.T) {
		r := New(10 * time.Millisecond)
		s, _ := r.Create()
		require.Equal(t, 1, r.Len())

		time.Sleep(20 * time.Millisecond)

		assert.False(t, r.Validate(s.ID, s.Secret))
		assert.Equal(t, 0, r.Len())
	})
}

func TestValidateSignature(t *testing.T) {
	t.Run("accepts derived signature", func(t *testing.T) {
		r := New(time.Minute)
		s, _ := r.Create()
		sig := util.SignDeskID(s.Secret, s.ID)
		assert.True(t, r.ValidateSignature(s.ID, sig))
	})

	t.Run("rejects signature for another session", func(t *testing.T) {
		r := New(time.Minute)
		s1, _ := r.Create()
		s2, _ := r.Create()
		sig := util.SignDeskID(s1.Secret, s1.ID)
		assert.False(t, r.ValidateSignature(s2.ID, sig))
	})

	t.Run("rejects raw secret passed as signature", func(t *testing.T) {
		r := New(time.Minute)
		s, _ := r.Create()
		assert.False(t, r.ValidateSignature(s.ID, s.Secret))
	})
}

func TestRefresh(t *testing.T) {
	t.Run("extends expiry without rotating the secret", func(t *testing.T) {
		r := New(50 * time.Millisecond)
		s, _ := r.Create()

		time.Sleep(30 * time.Millisecond)
		require.True(t, r.Refresh(s.ID, s.Secret))

		// The original window has passed; only the refresh keeps it alive.
		time.Sleep(30 * time.Millisecond)
		assert.True(t, r.Validate(s.ID, s.Secret))
	})

	t.Run("fails closed on wrong secret", func(t *testing.T) {
		r := New(time.Minute)
		s, _ := r.Create()
		assert.False(t, r.Refresh(s.ID, "wrong"))
	})

	t.Run("fails on expired session", func(t *testing.T) {
		r := New(10 * time.Millisecond)
		s, _ := r.Create()
		time.Sleep(20 * time.Millisecond)
		assert.False(t, r.Refresh(s.ID, s.Secret))
	})
}

func TestAdvance(t *testing.T) {
	t.Run("moves state when from matches", func(t *testing.T) {
		r := New(time.Minute)
		s, _ := r.Create()

		assert.True(t, r.Advance(s.ID, model.SessionStateIdle, model.SessionStateAwaitingAck))

		state, ok := r.State(s.ID)
		require.True(t, ok)
		assert.Equal(t, model.SessionStateAwaitingAck, state)
	})

	t.Run("refuses when from does not match", func(t *testing.T) {
		r := New(time.Minute)
		s, _ := r.Create()

		require.True(t, r.Advance(s.ID, model.SessionStateIdle, model.SessionStateAwaitingAck))
		assert.False(t, r.Advance(s.ID, model.SessionStateIdle, model.SessionStateAwaitingAck))
	})

	t.Run("only one of concurrent transitions wins", func(t *testing.T) {
		r := New(time.Minute)
		s, _ := r.Create()

		wins := make(chan bool, 10)
		for i := 0; i < 10; i++ {
			go func() {
				wins <- r.Advance(s.ID, model.SessionStateIdle, model.SessionStateAwaitingAck)
			}()
		}

		won := 0
		for i := 0; i < 10; i++ {
			if <-wins {
				won++
			}
		}
		assert.Equal(t, 1, won)
	})

	t.Run("refuses on expired session", func(t *testing.T) {
		r := New(10 * time.Millisecond)
		s, _ := r.Create()
		time.Sleep(20 * time.Millisecond)
		assert.False(t, r.Advance(s.ID, model.SessionStateIdle, model.SessionStateAwaitingAck))
	})
}

func TestEvictExpired(t *testing.T) {
	t.Run("removes only expired sessions", func(t *testing.T) {
		short := New(10 * time.Millisecond)
		s, _ := short.Create()
		_ = s

		long := New(time.Minute)
		keep, _ := long.Create()

		time.Sleep(20 * time.Millisecond)

		assert.Equal(t, 1, short.EvictExpired())
		assert.Equal(t, 0, short.Len())

		assert.Equal(t, 0, long.EvictExpired())
		assert.True(t, long.Validate(keep.ID, keep.Secret))
	})
}

func TestTTLSeconds(t *testing.T) {
	r := New(30 * time.Minute)
	assert.Equal(t, 1800, r.TTLSeconds())
}
