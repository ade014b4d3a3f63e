package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/checkin-relay-go/internal/errors"
	"github.com/openclaw/checkin-relay-go/internal/model"
	"github.com/openclaw/checkin-relay-go/internal/repository"
)

const maxRecentCheckins = 200

// CheckinService records confirmed check-ins. The desk calls this before
// it acknowledges a scan over the relay, so a check-in is durable by the
// time the scanners are paused.
type CheckinService struct {
	checkinRepo repository.CheckinRepository
}

func NewCheckinService(checkinRepo repository.CheckinRepository) *CheckinService {
	return &CheckinService{checkinRepo: checkinRepo}
}

func (s *CheckinService) Record(ctx context.Context, sessionID, uniqueID string) (*model.Checkin, error) {
	uniqueID = strings.TrimSpace(uniqueID)
	if uniqueID == "" {
		return nil, apperrors.MissingRequired("uniqueId")
	}

	checkin, err := s.checkinRepo.Create(ctx, model.CreateCheckinParams{
		SessionID: sessionID,
		UniqueID:  uniqueID,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkin: %w", err)
	}

	log.Info().
		Str("deskId", sessionID).
		Str("uniqueId", uniqueID).
		Msg("check-in recorded")

	return checkin, nil
}

func (s *CheckinService) ListRecent(ctx context.Context, sessionID string, limit int) ([]model.Checkin, error) {
	if limit <= 0 || limit > maxRecentCheckins {
		limit = maxRecentCheckins
	}
	return s.checkinRepo.ListRecent(ctx, sessionID, limit)
}
