package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/checkin-relay-go/internal/model"
)

type CheckinRepository interface {
	Create(ctx context.Context, params model.CreateCheckinParams) (*model.Checkin, error)
	ListRecent(ctx context.Context, sessionID string, limit int) ([]model.Checkin, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type checkinRepo struct {
	db *sqlx.DB
}

func NewCheckinRepository(db *sqlx.DB) CheckinRepository {
	return &checkinRepo{db: db}
}

func (r *checkinRepo) Create(ctx context.Context, params model.CreateCheckinParams) (*model.Checkin, error) {
	var checkin model.Checkin
	err := r.db.GetContext(ctx, &checkin, `
		INSERT INTO checkins (session_id, unique_id)
		VALUES ($1, $2)
		RETURNING *
	`, params.SessionID, params.UniqueID)
	if err != nil {
		return nil, err
	}
	return &checkin, nil
}

func (r *checkinRepo) ListRecent(ctx context.Context, sessionID string, limit int) ([]model.Checkin, error) {
	checkins := []model.Checkin{}
	err := r.db.SelectContext(ctx, &checkins, `
		SELECT * FROM checkins
		WHERE session_id = $1
		ORDER BY checked_in_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return checkins, nil
}

func (r *checkinRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM checkins WHERE checked_in_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
