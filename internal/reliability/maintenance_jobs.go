package reliability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/aristath/alphapulse/internal/database"
)

// Disk space thresholds for the data directory, in GB.
const (
	criticalFreeGB = 0.5
	lowFreeGB      = 2.0
)

// DailyMaintenanceJob checks database integrity, truncates WAL files and
// watches free disk space.
type DailyMaintenanceJob struct {
	databases map[string]*database.DB
	dataDir   string
	freeBytes func(path string) (uint64, error)
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		freeBytes: diskFree,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, name := range sortedNames(j.databases) {
		db := j.databases[name]
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("CRITICAL: Database integrity check failed")
			return fmt.Errorf("integrity check failed for %s: %w", name, err)
		}

		// Not critical: the next autocheckpoint will catch up.
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}

		if stats, err := db.GetStats(); err == nil {
			j.log.Info().
				Str("database", name).
				Float64("size_mb", float64(stats.SizeBytes)/1024/1024).
				Float64("wal_size_mb", float64(stats.WALSizeBytes)/1024/1024).
				Int64("free_pages", stats.FreelistCount).
				Msg("Database metrics")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Daily maintenance completed successfully")
	return nil
}

// checkDiskSpace verifies sufficient disk space is available
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	free, err := j.freeBytes(j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Str("path", j.dataDir).Msg("Failed to read disk usage")
		return nil
	}

	freeGB := float64(free) / 1e9
	switch {
	case freeGB < criticalFreeGB:
		j.log.Error().Float64("available_gb", freeGB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", freeGB, j.dataDir)
	case freeGB < lowFreeGB:
		j.log.Warn().Float64("available_gb", freeGB).Msg("Disk space running low")
	default:
		j.log.Debug().Float64("available_gb", freeGB).Msg("Disk space check")
	}
	return nil
}

// WeeklyMaintenanceJob vacuums databases and rotates archived reports.
type WeeklyMaintenanceJob struct {
	databases     map[string]*database.DB
	archiver      *ReportArchiver
	retentionDays int
	log           zerolog.Logger
}

// NewWeeklyMaintenanceJob creates a new weekly maintenance job. archiver may be nil.
func NewWeeklyMaintenanceJob(databases map[string]*database.DB, archiver *ReportArchiver, retentionDays int, log zerolog.Logger) *WeeklyMaintenanceJob {
	return &WeeklyMaintenanceJob{
		databases:     databases,
		archiver:      archiver,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "weekly_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *WeeklyMaintenanceJob) Name() string {
	return "weekly_maintenance"
}

// Run executes the weekly maintenance job
func (j *WeeklyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting weekly maintenance")
	startTime := time.Now()

	for _, name := range sortedNames(j.databases) {
		if err := j.vacuumDatabase(j.databases[name], name); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("VACUUM failed")
		}
	}

	if j.archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := j.archiver.RotateOld(ctx, j.retentionDays); err != nil {
			j.log.Error().Err(err).Msg("Archived report rotation failed")
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Weekly maintenance completed")
	return nil
}

func (j *WeeklyMaintenanceJob) vacuumDatabase(db *database.DB, name string) error {
	before, err := db.GetStats()
	if err != nil {
		return err
	}
	if err := db.Vacuum(); err != nil {
		return err
	}
	after, err := db.GetStats()
	if err != nil {
		return err
	}

	j.log.Info().
		Str("database", name).
		Float64("before_mb", float64(before.SizeBytes)/1024/1024).
		Float64("after_mb", float64(after.SizeBytes)/1024/1024).
		Msg("VACUUM completed")
	return nil
}

func sortedNames(dbs map[string]*database.DB) []string {
	names := make([]string, 0, len(dbs))
	for name := range dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
