package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/breakout/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")

	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, csvHeader, rows[0])
}

func TestCSVJournalRecordTrade(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")

	j, err := NewCSV(path)
	require.NoError(t, err)

	open := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	closeT := time.Date(2024, 1, 2, 4, 5, 6, 0, time.UTC)

	err = j.RecordTrade(TradeRecord{
		TradeID:      "T1",
		Symbol:       "BTC/USDT",
		Side:         market.Long,
		Size:         0.2,
		EntryPrice:   45000,
		ExitPrice:    44000,
		StopLoss:     44000,
		TakeProfit:   47000,
		RealizedPL:   -200,
		Reason:       "stop_loss",
		BalanceAfter: 9800,
		OpenTime:     open,
		CloseTime:    closeT,
	})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 2)

	want := []string{
		"T1",
		"BTC/USDT",
		"long",
		"0.200000",
		"45000.000000",
		"44000.000000",
		"44000.000000",
		"47000.000000",
		"-200.000000",
		"stop_loss",
		"9800.000000",
		open.Format(time.RFC3339),
		closeT.Format(time.RFC3339),
	}
	assert.Equal(t, want, rows[1])
}

func TestCSVJournalAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	at := time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC)

	for _, id := range []string{"T1", "T2"} {
		j, err := NewCSV(path)
		require.NoError(t, err)
		require.NoError(t, j.RecordTrade(sampleTrade(id, at, 10)))
		require.NoError(t, j.Close())
	}

	rows := readCSV(t, path)
	require.Len(t, rows, 3, "one header and two trades")
	assert.Equal(t, "T1", rows[1][0])
	assert.Equal(t, "T2", rows[2][0])
}

type failingJournal struct{ err error }

func (f failingJournal) RecordTrade(TradeRecord) error { return f.err }
func (f failingJournal) Close() error                  { return nil }

func TestMultiJournal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	c, err := NewCSV(path)
	require.NoError(t, err)

	boom := assert.AnError
	m := Multi{failingJournal{err: boom}, c}

	err = m.RecordTrade(sampleTrade("T1", time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC), 10))
	assert.ErrorIs(t, err, boom)
	require.NoError(t, m.Close())

	// the failing journal does not stop the others
	assert.Len(t, readCSV(t, path), 2)
}
