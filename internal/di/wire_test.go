package di

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alphapulse/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:              t.TempDir(),
		Port:                 8080,
		MarketDataPeriod:     "1y",
		PriceCacheTTL:        time.Hour,
		ReportTTL:            time.Hour,
		Watchlist:            []string{"AAPL", "MSFT"},
		PriceRefreshSchedule: "30 22 * * 1-5",
		CacheCleanupSchedule: "@every 1h",
		MaintenanceSchedule:  "0 3 * * *",
		Simulation: config.SimulationConfig{
			Iterations:        1000,
			HorizonDays:       20,
			Confidence:        0.95,
			InitialInvestment: 10000,
			PeriodsPerYear:    252,
			SamplePaths:       10,
			MemoryFraction:    0.5,
		},
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container)
	require.NotNil(t, jobs)
	t.Cleanup(container.Close)

	// Verify container is fully populated
	assert.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.CacheDB)
	assert.NotNil(t, container.HistoryRepo)
	assert.NotNil(t, container.CacheStore)
	assert.NotNil(t, container.MarketDataService)
	assert.NotNil(t, container.RiskService)
	assert.NotNil(t, container.MemoryGuard)
	assert.NotNil(t, container.Scheduler)

	// R2 is optional
	assert.Nil(t, container.R2Client)
	assert.Nil(t, container.ReportArchiver)

	assert.Len(t, container.Databases(), 2)
	assert.Contains(t, container.Databases(), "history")
	assert.Contains(t, container.Databases(), "cache")

	var names []string
	for _, st := range container.Scheduler.Status() {
		names = append(names, st.Name)
	}
	assert.ElementsMatch(t, []string{
		jobs.PriceRefresh.Name(),
		jobs.CacheCleanup.Name(),
		jobs.CheckWAL.Name(),
		jobs.DailyMaintenance.Name(),
		jobs.WeeklyMaintenance.Name(),
	}, names)
}

func TestWire_MigratesSchemas(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	require.NoError(t, container.CacheStore.SetJSON("ping", map[string]int{"n": 1}, time.Minute))
	var got map[string]int
	require.NoError(t, container.CacheStore.GetJSON("ping", &got))
	assert.Equal(t, 1, got["n"])

	symbols, err := container.HistoryRepo.Symbols()
	require.NoError(t, err)
	assert.Empty(t, symbols)

	// Cache cleanup runs against the migrated cache database
	require.NoError(t, container.Scheduler.RunByName(jobs.CacheCleanup.Name()))
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheCleanupSchedule = "whenever"

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}
