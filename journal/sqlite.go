package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RecordTrade inserts t. Recording the same TradeID twice is an error, so a
// closed position can never be journaled twice.
func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, side, size, entry_price, exit_price, stop_loss, take_profit,
		 realized_pl, reason, balance_after, open_time, close_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, string(t.Symbol), string(t.Side), t.Size, t.EntryPrice, t.ExitPrice,
		t.StopLoss, t.TakeProfit, t.RealizedPL, t.Reason, t.BalanceAfter,
		t.OpenTime.UTC(), t.CloseTime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record trade %s: %w", t.TradeID, err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
