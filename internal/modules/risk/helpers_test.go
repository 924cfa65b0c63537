package risk

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphapulse/internal/cache"
	"github.com/aristath/alphapulse/internal/modules/marketdata"
	"github.com/aristath/alphapulse/internal/modules/simulation"
	testutil "github.com/aristath/alphapulse/internal/testing"
)

const fixtureDays = 120

// fakeMarket serves generated wave prices for any symbol.
type fakeMarket struct {
	requested [][]string
	periods   []string
	err       error
}

func (m *fakeMarket) LoadPriceMatrix(_ context.Context, symbols []string, period string) (simulation.PriceMatrix, error) {
	m.requested = append(m.requested, symbols)
	m.periods = append(m.periods, period)
	if m.err != nil {
		return simulation.PriceMatrix{}, m.err
	}

	pm := simulation.PriceMatrix{
		Dates:  testutil.TradingDays(fixtureDays),
		Assets: append([]string(nil), symbols...),
		Prices: make([][]float64, fixtureDays),
	}
	columns := make([][]float64, len(symbols))
	for a := range symbols {
		columns[a] = randomWalk(fixtureDays, 50+10*float64(a), uint64(a)+1)
	}
	for row := range pm.Prices {
		pm.Prices[row] = make([]float64, len(symbols))
		for a := range symbols {
			pm.Prices[row][a] = columns[a][row]
		}
	}
	return pm, nil
}

// randomWalk is a seeded geometric random walk with a shared market factor,
// so columns are positively but imperfectly correlated.
func randomWalk(n int, base float64, seed uint64) []float64 {
	market := rand.New(rand.NewPCG(1, 1))
	own := rand.New(rand.NewPCG(seed, 2))
	prices := make([]float64, n)
	prices[0] = base
	for i := 1; i < n; i++ {
		z := 0.6*market.NormFloat64() + 0.8*own.NormFloat64()
		prices[i] = prices[i-1] * math.Exp(0.0003+0.015*z)
	}
	return prices
}

func (m *fakeMarket) History(_ context.Context, symbol, _ string) ([]marketdata.Bar, error) {
	if m.err != nil {
		return nil, m.err
	}
	if symbol == "EMPTY" {
		return nil, marketdata.ErrNoData
	}
	days := testutil.TradingDays(5)
	closes := testutil.WavePrices(5, 100, 0)
	bars := make([]marketdata.Bar, len(days))
	for i := range days {
		bars[i] = marketdata.Bar{Date: days[i], Close: closes[i], AdjClose: closes[i], Volume: 10}
	}
	return bars, nil
}

type archivedReport struct {
	key  string
	body []byte
}

type fakeArchiver struct {
	archived []archivedReport
	err      error
}

func (a *fakeArchiver) Archive(_ context.Context, key string, body []byte) error {
	if a.err != nil {
		return a.err
	}
	a.archived = append(a.archived, archivedReport{key: key, body: body})
	return nil
}

func testSimulationConfig() simulation.Config {
	cfg := simulation.DefaultConfig()
	seed := uint64(7)
	cfg.Seed = &seed
	cfg.Iterations = 300
	cfg.HorizonDays = 10
	cfg.SamplePaths = 5
	cfg.Workers = 2
	return cfg
}

// newTestService returns a service on a fake market with a real sqlite report store.
func newTestService(t *testing.T) (*Service, *fakeMarket, *cache.Store) {
	t.Helper()

	db, cleanup := testutil.NewTestDB(t, "cache")
	t.Cleanup(cleanup)
	store := cache.NewStore(db.Conn(), zerolog.Nop())

	market := &fakeMarket{}
	svc := NewService(market, store, nil, ServiceConfig{Simulation: testSimulationConfig()}, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }
	return svc, market, store
}

var errUpstream = errors.New("upstream unavailable")
