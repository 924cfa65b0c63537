package testing

import (
	"math"
	"testing"
	"time"

	"github.com/aristath/alphapulse/internal/database"
)

// FixtureStart is the first trading day used by generated price fixtures.
var FixtureStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// TradingDays returns n consecutive weekdays starting at FixtureStart.
func TradingDays(n int) []time.Time {
	days := make([]time.Time, 0, n)
	for d := FixtureStart; len(days) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}

// WavePrices generates a smooth, strictly positive close series: a drifting
// sine wave with the given phase so different symbols are imperfectly correlated.
func WavePrices(n int, base, phase float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		x := float64(i)
		prices[i] = base * math.Exp(0.0004*x+0.03*math.Sin(x/5+phase))
	}
	return prices
}

// SeedDailyPrices inserts adjusted closes for symbol into a migrated history database.
func SeedDailyPrices(t *testing.T, db *database.DB, symbol string, dates []time.Time, closes []float64) {
	t.Helper()
	if len(dates) != len(closes) {
		t.Fatalf("SeedDailyPrices: %d dates for %d closes", len(dates), len(closes))
	}

	stmt, err := db.Conn().Prepare(`
		INSERT OR REPLACE INTO daily_prices (symbol, date, open, high, low, close, adj_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		t.Fatalf("SeedDailyPrices: prepare: %v", err)
	}
	defer stmt.Close()

	for i, d := range dates {
		c := closes[i]
		if _, err := stmt.Exec(symbol, d.UTC().Unix(), c, c, c, c, c, 1000); err != nil {
			t.Fatalf("SeedDailyPrices: insert %s %s: %v", symbol, d.Format(time.DateOnly), err)
		}
	}
	if _, err := db.Conn().Exec(`
		INSERT OR REPLACE INTO sync_state (symbol, last_synced, first_date, last_date, row_count)
		VALUES (?, ?, ?, ?, ?)
	`, symbol, time.Now().Unix(), dates[0].Unix(), dates[len(dates)-1].Unix(), len(dates)); err != nil {
		t.Fatalf("SeedDailyPrices: sync_state %s: %v", symbol, err)
	}
}
