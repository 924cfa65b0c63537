package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphapulse/internal/cache"
	"github.com/aristath/alphapulse/internal/config"
	"github.com/aristath/alphapulse/internal/modules/marketdata"
	"github.com/aristath/alphapulse/internal/modules/risk"
	"github.com/aristath/alphapulse/internal/reliability"
)

// InitializeServices creates repositories, clients and services on top of the
// open databases.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.HistoryRepo = marketdata.NewHistoryRepository(container.HistoryDB.Conn(), log)
	container.CacheStore = cache.NewStore(container.CacheDB.Conn(), log)

	container.YahooClient = marketdata.NewYahooClient(log)
	container.MarketDataService = marketdata.NewService(
		container.YahooClient,
		container.HistoryRepo,
		container.CacheStore,
		cfg.PriceCacheTTL,
		log,
	)

	container.MemoryGuard = risk.NewMemoryGuard(cfg.Simulation.MemoryFraction, log)
	container.RiskService = risk.NewService(
		container.MarketDataService,
		container.CacheStore,
		container.MemoryGuard,
		risk.ServiceConfig{
			Simulation: cfg.EngineConfig(),
			Period:     cfg.MarketDataPeriod,
			ReportTTL:  cfg.ReportTTL,
		},
		log,
	)

	if cfg.R2.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := reliability.NewR2Client(ctx, reliability.R2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			Bucket:          cfg.R2.Bucket,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create R2 client: %w", err)
		}
		container.R2Client = client
		container.ReportArchiver = reliability.NewReportArchiver(client, log)
		container.RiskService.SetArchiver(container.ReportArchiver)
		log.Info().Str("bucket", cfg.R2.Bucket).Msg("Report archive enabled")
	} else {
		log.Info().Msg("R2 not configured, run reports are kept in cache only")
	}

	return nil
}
