package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/checkin-relay-go/internal/registry"
)

func TestCreateSession(t *testing.T) {
	reg := registry.New(30 * time.Minute)
	h := NewSessionHandler(reg)

	t.Run("returns credentials and expiry", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()

		h.CreateSession(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp createSessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.DeskID, 36)
		assert.Len(t, resp.Secret, 64)
		assert.Equal(t, 1800, resp.ExpiresIn)

		assert.True(t, reg.Validate(resp.DeskID, resp.Secret))
	})
}

func TestRefreshSession(t *testing.T) {
	reg := registry.New(30 * time.Minute)
	h := NewSessionHandler(reg)

	session, err := reg.Create()
	require.NoError(t, err)

	refresh := func(deskID, secret string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(refreshSessionRequest{DeskID: deskID, Secret: secret})
		req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		h.RefreshSession(rec, req)
		return rec
	}

	t.Run("extends a valid session", func(t *testing.T) {
		rec := refresh(session.ID, session.Secret)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp refreshSessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1800, resp.ExpiresIn)
	})

	t.Run("401 on wrong secret", func(t *testing.T) {
		rec := refresh(session.ID, "wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("401 on unknown desk id", func(t *testing.T) {
		rec := refresh("unknown", session.Secret)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret and unknown id are indistinguishable", func(t *testing.T) {
		wrongSecret := refresh(session.ID, "wrong")
		unknownID := refresh("unknown", "whatever")
		assert.Equal(t, wrongSecret.Body.String(), unknownID.Body.String())
	})

	t.Run("400 on malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		h.RefreshSession(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
