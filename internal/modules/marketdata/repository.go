package marketdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphapulse/internal/database"
	"github.com/aristath/alphapulse/internal/utils"
)

// SyncState records the last successful download of a symbol.
type SyncState struct {
	Symbol     string
	LastSynced time.Time
	FirstDate  time.Time
	LastDate   time.Time
	RowCount   int
}

// HistoryRepository persists daily bars in the history database.
type HistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryRepository creates a repository on a migrated history database connection.
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("component", "history_repository").Logger(),
	}
}

// SaveBars upserts bars for symbol and updates its sync state in one transaction.
func (r *HistoryRepository) SaveBars(symbol string, bars []Bar, syncedAt time.Time) error {
	if len(bars) == 0 {
		return nil
	}
	done := utils.MeasureDBQuery("save_daily_prices", r.log)

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO daily_prices (symbol, date, open, high, low, close, adj_close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol, date) DO UPDATE SET
				open = excluded.open,
				high = excluded.high,
				low = excluded.low,
				close = excluded.close,
				adj_close = excluded.adj_close,
				volume = excluded.volume
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, b := range bars {
			if _, err := stmt.Exec(symbol, truncateDay(b.Date).Unix(), b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume); err != nil {
				return fmt.Errorf("failed to insert %s %s: %w", symbol, b.Date.Format(time.DateOnly), err)
			}
		}

		_, err = tx.Exec(`
			INSERT INTO sync_state (symbol, last_synced, first_date, last_date, row_count)
			SELECT ?, ?, MIN(date), MAX(date), COUNT(*) FROM daily_prices WHERE symbol = ?
			ON CONFLICT(symbol) DO UPDATE SET
				last_synced = excluded.last_synced,
				first_date = excluded.first_date,
				last_date = excluded.last_date,
				row_count = excluded.row_count
		`, symbol, syncedAt.Unix(), symbol)
		if err != nil {
			return fmt.Errorf("failed to update sync state: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save prices for %s: %w", symbol, err)
	}

	done(int64(len(bars)))
	return nil
}

// GetBars returns the stored bars for symbol on or after from, oldest first.
func (r *HistoryRepository) GetBars(symbol string, from time.Time) ([]Bar, error) {
	rows, err := r.db.Query(`
		SELECT date, open, high, low, close, adj_close, volume
		FROM daily_prices
		WHERE symbol = ? AND date >= ?
		ORDER BY date ASC
	`, symbol, from.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var (
			b               Bar
			dateUnix        int64
			open, high, low sql.NullFloat64
			volume          sql.NullInt64
		)
		if err := rows.Scan(&dateUnix, &open, &high, &low, &b.Close, &b.AdjClose, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		b.Date = time.Unix(dateUnix, 0).UTC()
		b.Open = open.Float64
		b.High = high.Float64
		b.Low = low.Float64
		b.Volume = volume.Int64
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return bars, nil
}

// GetSyncState returns the sync state for symbol, or nil if it was never synced.
func (r *HistoryRepository) GetSyncState(symbol string) (*SyncState, error) {
	var (
		state               SyncState
		lastSynced          int64
		firstDate, lastDate sql.NullInt64
	)
	err := r.db.QueryRow(`
		SELECT symbol, last_synced, first_date, last_date, row_count
		FROM sync_state WHERE symbol = ?
	`, symbol).Scan(&state.Symbol, &lastSynced, &firstDate, &lastDate, &state.RowCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state for %s: %w", symbol, err)
	}

	state.LastSynced = time.Unix(lastSynced, 0).UTC()
	if firstDate.Valid {
		state.FirstDate = time.Unix(firstDate.Int64, 0).UTC()
	}
	if lastDate.Valid {
		state.LastDate = time.Unix(lastDate.Int64, 0).UTC()
	}
	return &state, nil
}

// Symbols returns every symbol with stored history.
func (r *HistoryRepository) Symbols() ([]string, error) {
	rows, err := r.db.Query("SELECT symbol FROM sync_state ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// DeleteSymbol removes all stored history for symbol.
func (r *HistoryRepository) DeleteSymbol(symbol string) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM daily_prices WHERE symbol = ?", symbol); err != nil {
			return err
		}
		_, err := tx.Exec("DELETE FROM sync_state WHERE symbol = ?", symbol)
		return err
	})
}
