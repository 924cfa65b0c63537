package marketdata

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/aristath/alphapulse/internal/testing"
)

func newTestRepository(t *testing.T) *HistoryRepository {
	t.Helper()
	db, cleanup := testutil.NewTestDB(t, "history")
	t.Cleanup(cleanup)
	return NewHistoryRepository(db.Conn(), zerolog.Nop())
}

func TestHistoryRepository_SaveAndGetBars(t *testing.T) {
	repo := newTestRepository(t)
	synced := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	err := repo.SaveBars("AAPL", []Bar{
		{Date: jan(2), Open: 9, High: 11, Low: 8, Close: 10, AdjClose: 9.5, Volume: 100},
		{Date: jan(3), Close: 11, AdjClose: 10.5, Volume: 200},
		{Date: jan(4), Close: 12, AdjClose: 11.5, Volume: 300},
	}, synced)
	require.NoError(t, err)

	bars, err := repo.GetBars("AAPL", jan(3))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, jan(3), bars[0].Date)
	assert.Equal(t, 10.5, bars[0].AdjClose)
	assert.Equal(t, int64(300), bars[1].Volume)

	all, err := repo.GetBars("AAPL", time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 9.0, all[0].Open)

	state, err := repo.GetSyncState("AAPL")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, synced, state.LastSynced)
	assert.Equal(t, jan(2), state.FirstDate)
	assert.Equal(t, jan(4), state.LastDate)
	assert.Equal(t, 3, state.RowCount)
}

func TestHistoryRepository_SaveBarsUpserts(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.SaveBars("MSFT", []Bar{{Date: jan(2), Close: 1, AdjClose: 1}}, time.Now()))
	require.NoError(t, repo.SaveBars("MSFT", []Bar{
		{Date: jan(2), Close: 2, AdjClose: 2},
		{Date: jan(3), Close: 3, AdjClose: 3},
	}, time.Now()))

	bars, err := repo.GetBars("MSFT", time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2.0, bars[0].AdjClose)

	state, err := repo.GetSyncState("MSFT")
	require.NoError(t, err)
	assert.Equal(t, 2, state.RowCount)
}

func TestHistoryRepository_UnknownSymbol(t *testing.T) {
	repo := newTestRepository(t)

	state, err := repo.GetSyncState("NOPE")
	require.NoError(t, err)
	assert.Nil(t, state)

	bars, err := repo.GetBars("NOPE", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestHistoryRepository_SymbolsAndDelete(t *testing.T) {
	repo := newTestRepository(t)
	for _, sym := range []string{"MSFT", "AAPL"} {
		require.NoError(t, repo.SaveBars(sym, []Bar{{Date: jan(2), Close: 1, AdjClose: 1}}, time.Now()))
	}

	symbols, err := repo.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)

	require.NoError(t, repo.DeleteSymbol("AAPL"))

	symbols, err = repo.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT"}, symbols)

	bars, err := repo.GetBars("AAPL", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, bars)
}
