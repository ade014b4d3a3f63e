package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/checkin-relay-go/internal/model"
	"github.com/openclaw/checkin-relay-go/internal/registry"
	"github.com/openclaw/checkin-relay-go/internal/service"
)

type memCheckinRepo struct {
	checkins []model.Checkin
	nextID   int64
}

func (m *memCheckinRepo) Create(ctx context.Context, params model.CreateCheckinParams) (*model.Checkin, error) {
	m.nextID++
	checkin := model.Checkin{
		ID:          m.nextID,
		SessionID:   params.SessionID,
		UniqueID:    params.UniqueID,
		CheckedInAt: time.Now(),
	}
	m.checkins = append(m.checkins, checkin)
	return &checkin, nil
}

func (m *memCheckinRepo) ListRecent(ctx context.Context, sessionID string, limit int) ([]model.Checkin, error) {
	out := []model.Checkin{}
	for i := len(m.checkins) - 1; i >= 0 && len(out) < limit; i-- {
		if m.checkins[i].SessionID == sessionID {
			out = append(out, m.checkins[i])
		}
	}
	return out, nil
}

func (m *memCheckinRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newCheckinFixture(t *testing.T) (*CheckinHandler, *model.Session, *memCheckinRepo) {
	t.Helper()
	reg := registry.New(time.Minute)
	session, err := reg.Create()
	require.NoError(t, err)

	repo := &memCheckinRepo{}
	return NewCheckinHandler(reg, service.NewCheckinService(repo)), session, repo
}

func TestCreateCheckin(t *testing.T) {
	post := func(h *CheckinHandler, body createCheckinRequest) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
		rec := httptest.NewRecorder()
		h.CreateCheckin(rec, req)
		return rec
	}

	t.Run("records a check-in for a valid session", func(t *testing.T) {
		h, session, repo := newCheckinFixture(t)

		rec := post(h, createCheckinRequest{DeskID: session.ID, Secret: session.Secret, UniqueID: "P1"})
		require.Equal(t, http.StatusCreated, rec.Code)

		var checkin model.Checkin
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checkin))
		assert.Equal(t, "P1", checkin.UniqueID)
		assert.Len(t, repo.checkins, 1)
	})

	t.Run("401 on bad credentials, nothing recorded", func(t *testing.T) {
		h, session, repo := newCheckinFixture(t)

		rec := post(h, createCheckinRequest{DeskID: session.ID, Secret: "wrong", UniqueID: "P1"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, repo.checkins)
	})

	t.Run("400 on empty unique id", func(t *testing.T) {
		h, session, repo := newCheckinFixture(t)

		rec := post(h, createCheckinRequest{DeskID: session.ID, Secret: session.Secret, UniqueID: "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, repo.checkins)
	})
}

func TestListCheckins(t *testing.T) {
	t.Run("returns the desk's recent check-ins", func(t *testing.T) {
		h, session, repo := newCheckinFixture(t)
		repo.Create(context.Background(), model.CreateCheckinParams{SessionID: session.ID, UniqueID: "P1"})
		repo.Create(context.Background(), model.CreateCheckinParams{SessionID: "other", UniqueID: "P2"})

		req := httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
		req.Header.Set("X-Desk-Id", session.ID)
		req.Header.Set("X-Desk-Secret", session.Secret)
		rec := httptest.NewRecorder()

		h.ListCheckins(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string][]model.Checkin
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp["checkins"], 1)
		assert.Equal(t, "P1", resp["checkins"][0].UniqueID)
	})

	t.Run("401 without credentials", func(t *testing.T) {
		h, _, _ := newCheckinFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		h.ListCheckins(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
