package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openclaw/checkin-relay-go/internal/model"
)

type mockSweeper struct {
	evicted int
	calls   int
}

func (m *mockSweeper) EvictExpired() int {
	m.calls++
	return m.evicted
}

type mockCheckinRepo struct {
	deleted int64
	cutoffs []time.Time
}

func (m *mockCheckinRepo) Create(ctx context.Context, params model.CreateCheckinParams) (*model.Checkin, error) {
	return nil, nil
}

func (m *mockCheckinRepo) ListRecent(ctx context.Context, sessionID string, limit int) ([]model.Checkin, error) {
	return nil, nil
}

func (m *mockCheckinRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.cutoffs = append(m.cutoffs, cutoff)
	return m.deleted, nil
}

func TestCleanup(t *testing.T) {
	t.Run("sweeps sessions and prunes check-ins", func(t *testing.T) {
		sweeper := &mockSweeper{evicted: 3}
		repo := &mockCheckinRepo{deleted: 2}
		job := NewCleanupJob(sweeper, repo, 30*24*time.Hour, time.Minute)

		job.cleanup()

		assert.Equal(t, 1, sweeper.calls)
		assert.Len(t, repo.cutoffs, 1)
		assert.WithinDuration(t, time.Now().Add(-30*24*time.Hour), repo.cutoffs[0], time.Second)
	})

	t.Run("works without a checkin repository", func(t *testing.T) {
		sweeper := &mockSweeper{}
		job := NewCleanupJob(sweeper, nil, time.Hour, time.Minute)

		job.cleanup()

		assert.Equal(t, 1, sweeper.calls)
	})

	t.Run("runs on the ticker until stopped", func(t *testing.T) {
		sweeper := &mockSweeper{}
		job := NewCleanupJob(sweeper, nil, time.Hour, 10*time.Millisecond)

		job.Start()
		time.Sleep(35 * time.Millisecond)
		job.Stop()

		assert.GreaterOrEqual(t, sweeper.calls, 2)
	})
}
