package risk

import "time"

// Policy holds the account-level limits checked before every entry.
type Policy struct {
	MaxDailyTrades int     // 5
	MaxDailyLoss   float64 // quote currency, e.g. 100; zero disables
	MaxDrawdown    float64 // fraction of peak, e.g. 0.10; zero disables
	EmergencyStop  float64 // fraction of peak, e.g. 0.15; zero disables

	TradingHours TradingHours
}

// TradingHours is an inclusive hour window in a fixed timezone. A window
// with Start > End wraps midnight.
type TradingHours struct {
	Enabled   bool
	StartHour int
	EndHour   int
	Location  *time.Location
}

func (h TradingHours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// Contains reports whether t falls inside the window. A disabled window
// contains every time.
func (h TradingHours) Contains(t time.Time) bool {
	if !h.Enabled {
		return true
	}
	hour := t.In(h.location()).Hour()
	if h.StartHour <= h.EndHour {
		return hour >= h.StartHour && hour <= h.EndHour
	}
	return hour >= h.StartHour || hour <= h.EndHour
}

// State is the risk bookkeeping that survives between cycles.
type State struct {
	DailyTradeCount     int     `json:"daily_trade_count"`
	TradeCountResetDate string  `json:"trade_count_reset_date"` // YYYY-MM-DD
	PeakBalance         float64 `json:"peak_balance"`
	SessionStartBalance float64 `json:"session_start_balance"`
}
