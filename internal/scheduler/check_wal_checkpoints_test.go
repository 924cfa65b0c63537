package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/alphapulse/internal/database"
	testutil "github.com/aristath/alphapulse/internal/testing"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil, zerolog.Nop())
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NoDatabases(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	job := NewCheckWALCheckpointsJob(map[string]*database.DB{"history": nil}, log)

	err := job.Run()
	assert.NoError(t, err) // Should handle nil databases gracefully
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	history, cleanupHistory := testutil.NewTestDB(t, database.NameHistory)
	defer cleanupHistory()
	cache, cleanupCache := testutil.NewTestDB(t, database.NameCache)
	defer cleanupCache()

	job := NewCheckWALCheckpointsJob(map[string]*database.DB{
		database.NameHistory: history,
		database.NameCache:   cache,
	}, zerolog.Nop())

	assert.NoError(t, job.Run())
}
