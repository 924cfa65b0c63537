package scheduler

import "context"

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// PriceRefresher downloads fresh history for a set of symbols.
// *marketdata.Service implements it.
type PriceRefresher interface {
	RefreshSymbols(ctx context.Context, symbols []string, period string) error
}

// ExpiredEntryCleaner removes expired cache entries. *cache.Store implements it.
type ExpiredEntryCleaner interface {
	DeleteExpired() (int64, error)
}
