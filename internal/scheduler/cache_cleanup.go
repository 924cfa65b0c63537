package scheduler

import (
	"github.com/rs/zerolog"
)

// CacheCleanupJob deletes expired cache entries
type CacheCleanupJob struct {
	cache ExpiredEntryCleaner
	log   zerolog.Logger
}

// NewCacheCleanupJob creates a new CacheCleanupJob
func NewCacheCleanupJob(cache ExpiredEntryCleaner, log zerolog.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache: cache,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Run executes the cache cleanup job
func (j *CacheCleanupJob) Run() error {
	deleted, err := j.cache.DeleteExpired()
	if err != nil {
		return err
	}
	j.log.Info().Int64("deleted", deleted).Msg("Expired cache entries removed")
	return nil
}
