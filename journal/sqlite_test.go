package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/breakout/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func sampleTrade(id string, closeTime time.Time, pl float64) TradeRecord {
	return TradeRecord{
		TradeID:      id,
		Symbol:       "BTC/USDT",
		Side:         market.Long,
		Size:         0.2,
		EntryPrice:   45000,
		ExitPrice:    45000 + pl/0.2,
		StopLoss:     44000,
		TakeProfit:   47000,
		RealizedPL:   pl,
		Reason:       "take_profit",
		BalanceAfter: 10000 + pl,
		OpenTime:     closeTime.Add(-time.Hour),
		CloseTime:    closeTime,
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = 'trades'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "trades", name)
}

func TestSQLiteReopenKeepsTrades(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	closeT := time.Date(2024, 1, 2, 4, 5, 6, 0, time.UTC)
	require.NoError(t, j.RecordTrade(sampleTrade("T1", closeT, 25)))
	require.NoError(t, j.Close())

	j2, err := NewSQLite(path)
	require.NoError(t, err)
	defer j2.Close()

	got, err := j2.GetTrade("T1")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, got.RealizedPL, 1e-9)
}

func TestSQLiteRecordTrade(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	open := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	closeT := time.Date(2024, 1, 2, 4, 5, 6, 0, time.UTC)

	rec := TradeRecord{
		TradeID:      "T1",
		Symbol:       "BTC/USDT",
		Side:         market.Short,
		Size:         0.123456,
		EntryPrice:   45000.5,
		ExitPrice:    44000.25,
		StopLoss:     46000,
		TakeProfit:   43000,
		RealizedPL:   123.49,
		Reason:       "volatility_spike",
		BalanceAfter: 10123.49,
		OpenTime:     open,
		CloseTime:    closeT,
	}

	require.NoError(t, j.RecordTrade(rec))
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		tradeID   string
		symbol    string
		side      string
		size      float64
		stop      float64
		openTime  time.Time
		closeTime time.Time
		reason    string
	)

	err = db.QueryRow(`
        SELECT trade_id, symbol, side, size, stop_loss, open_time, close_time, reason
        FROM trades LIMIT 1`).Scan(
		&tradeID, &symbol, &side, &size, &stop, &openTime, &closeTime, &reason,
	)
	require.NoError(t, err)

	assert.Equal(t, rec.TradeID, tradeID)
	assert.Equal(t, "BTC/USDT", symbol)
	assert.Equal(t, "short", side)
	assert.InDelta(t, rec.Size, size, 1e-9)
	assert.InDelta(t, rec.StopLoss, stop, 1e-9)
	assert.True(t, openTime.Equal(rec.OpenTime))
	assert.True(t, closeTime.Equal(rec.CloseTime))
	assert.Equal(t, rec.Reason, reason)
}

func TestSQLiteRejectsDuplicateTrade(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	rec := sampleTrade("T1", time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC), 10)
	require.NoError(t, j.RecordTrade(rec))
	assert.Error(t, j.RecordTrade(rec))
}
