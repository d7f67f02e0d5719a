package scheduler

import (
	"testing"

	"lendpool-backend/internal/config"
	"lendpool-backend/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler_RegistersJobs(t *testing.T) {
	jr := jobs.NewJobRunner(nil, nil, nil, 0)
	s, err := NewScheduler(jr, config.ScheduleConfig{
		DetectOverdue:   "0 */15 * * * *",
		AccruePenalties: "0 5 0 * * *",
		RelayOutbox:     "*/10 * * * * *",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Entries())

	s.Start()
	s.Stop()
}

func TestNewScheduler_EmptySpecDisablesJob(t *testing.T) {
	jr := jobs.NewJobRunner(nil, nil, nil, 0)
	s, err := NewScheduler(jr, config.ScheduleConfig{AccruePenalties: "0 5 0 * * *"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	jr := jobs.NewJobRunner(nil, nil, nil, 0)
	_, err := NewScheduler(jr, config.ScheduleConfig{DetectOverdue: "every fifteen minutes"})
	assert.Error(t, err)
}
