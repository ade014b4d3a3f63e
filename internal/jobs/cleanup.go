package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/checkin-relay-go/internal/repository"
)

// SessionSweeper evicts expired sessions independent of read traffic, so
// the table stays bounded even when nobody polls stale sessions.
type SessionSweeper interface {
	EvictExpired() int
}

type CleanupJob struct {
	sessions    SessionSweeper
	checkinRepo repository.CheckinRepository
	retention   time.Duration
	interval    time.Duration
	done        chan struct{}
}

func NewCleanupJob(
	sessions SessionSweeper,
	checkinRepo repository.CheckinRepository,
	retention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		sessions:    sessions,
		checkinRepo: checkinRepo,
		retention:   retention,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	if count := j.sessions.EvictExpired(); count > 0 {
		log.Info().Int("count", count).Msg("evicted expired sessions")
	}

	if j.checkinRepo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.checkinRepo.DeleteOlderThan(ctx, time.Now().Add(-j.retention))
	if err != nil {
		log.Error().Err(err).Msg("failed to prune old check-ins")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("pruned old check-ins")
	}
}
