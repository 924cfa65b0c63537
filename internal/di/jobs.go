package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alphapulse/internal/config"
	"github.com/aristath/alphapulse/internal/reliability"
	"github.com/aristath/alphapulse/internal/scheduler"
)

const (
	walCheckSchedule          = "@every 6h"
	weeklyMaintenanceSchedule = "0 4 * * 0"
)

// RegisterJobs creates the background jobs and registers them with a new
// scheduler. The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	sched := scheduler.New(log)
	databases := container.Databases()

	jobs := &JobInstances{
		PriceRefresh:      scheduler.NewPriceRefreshJob(container.MarketDataService, cfg.Watchlist, cfg.MarketDataPeriod, log),
		CacheCleanup:      scheduler.NewCacheCleanupJob(container.CacheStore, log),
		CheckWAL:          scheduler.NewCheckWALCheckpointsJob(databases, log),
		DailyMaintenance:  reliability.NewDailyMaintenanceJob(databases, cfg.DataDir, log),
		WeeklyMaintenance: reliability.NewWeeklyMaintenanceJob(databases, container.ReportArchiver, cfg.R2.RetentionDays, log),
	}

	registrations := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.PriceRefreshSchedule, jobs.PriceRefresh},
		{cfg.CacheCleanupSchedule, jobs.CacheCleanup},
		{walCheckSchedule, jobs.CheckWAL},
		{cfg.MaintenanceSchedule, jobs.DailyMaintenance},
		{weeklyMaintenanceSchedule, jobs.WeeklyMaintenance},
	}
	for _, reg := range registrations {
		if err := sched.AddJob(reg.schedule, reg.job); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", reg.job.Name(), err)
		}
	}

	container.Scheduler = sched
	return jobs, nil
}
