package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation-backend/internal/config"
	"library-circulation-backend/internal/jobs"
	"library-circulation-backend/internal/scheduler"
)

func TestNewScheduler(t *testing.T) {
	t.Run("Registers both reminder jobs", func(t *testing.T) {
		cfg := &config.Config{Scheduler: config.SchedulerConfig{
			SendDueReminders:     "0 0 8 * * *",
			SendOverdueReminders: "0 30 9 * * *",
		}}
		s, err := scheduler.NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
		require.NoError(t, err)
		assert.Equal(t, 2, s.Entries())

		s.Start()
		s.Stop()
	})

	t.Run("Rejects a bad spec", func(t *testing.T) {
		cfg := &config.Config{Scheduler: config.SchedulerConfig{
			SendDueReminders:     "every morning",
			SendOverdueReminders: "0 30 9 * * *",
		}}
		_, err := scheduler.NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
		assert.Error(t, err)
	})
}
