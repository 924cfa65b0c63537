/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server for access to services.
 */
package di

import (
	"github.com/aristath/alphapulse/internal/cache"
	"github.com/aristath/alphapulse/internal/database"
	"github.com/aristath/alphapulse/internal/modules/marketdata"
	"github.com/aristath/alphapulse/internal/modules/risk"
	"github.com/aristath/alphapulse/internal/reliability"
	"github.com/aristath/alphapulse/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	HistoryDB *database.DB // history.db - daily prices and sync state
	CacheDB   *database.DB // cache.db - TTL cache (price matrices, run reports)

	// Repositories and stores
	HistoryRepo *marketdata.HistoryRepository
	CacheStore  *cache.Store

	// Clients
	YahooClient *marketdata.YahooClient
	R2Client    *reliability.R2Client // nil when R2 is not configured

	// Services
	MarketDataService *marketdata.Service
	MemoryGuard       *risk.MemoryGuard
	RiskService       *risk.Service
	ReportArchiver    *reliability.ReportArchiver // nil when R2 is not configured

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds references to every registered job
type JobInstances struct {
	PriceRefresh      *scheduler.PriceRefreshJob
	CacheCleanup      *scheduler.CacheCleanupJob
	CheckWAL          *scheduler.CheckWALCheckpointsJob
	DailyMaintenance  *reliability.DailyMaintenanceJob
	WeeklyMaintenance *reliability.WeeklyMaintenanceJob
}

// Databases returns the open databases keyed by name.
func (c *Container) Databases() map[string]*database.DB {
	dbs := make(map[string]*database.DB, 2)
	if c.HistoryDB != nil {
		dbs[c.HistoryDB.Name()] = c.HistoryDB
	}
	if c.CacheDB != nil {
		dbs[c.CacheDB.Name()] = c.CacheDB
	}
	return dbs
}

// Close closes every database. It is safe to call on a partially built container.
func (c *Container) Close() {
	if c.HistoryDB != nil {
		c.HistoryDB.Close()
	}
	if c.CacheDB != nil {
		c.CacheDB.Close()
	}
}
