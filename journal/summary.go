package journal

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Summary is the performance report over a set of closed trades.
type Summary struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Trades int `json:"trades"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`

	WinRate      float64 `json:"win_rate"` // 0..1
	NetPL        float64 `json:"net_pl"`
	AvgPL        float64 `json:"avg_pl"`
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"` // positive
	ProfitFactor float64 `json:"profit_factor"`
	Best         float64 `json:"best"`
	Worst        float64 `json:"worst"`

	ByReason map[string]int `json:"by_reason"`
}

// Summarize aggregates trades. A trade with zero P/L counts as neither a
// win nor a loss.
func Summarize(trades []TradeRecord) Summary {
	s := Summary{ByReason: map[string]int{}}
	if len(trades) == 0 {
		return s
	}

	s.Best = math.Inf(-1)
	s.Worst = math.Inf(1)
	for _, t := range trades {
		s.Trades++
		s.NetPL += t.RealizedPL
		s.ByReason[t.Reason]++
		switch {
		case t.RealizedPL > 0:
			s.Wins++
			s.GrossProfit += t.RealizedPL
		case t.RealizedPL < 0:
			s.Losses++
			s.GrossLoss -= t.RealizedPL
		}
		s.Best = math.Max(s.Best, t.RealizedPL)
		s.Worst = math.Min(s.Worst, t.RealizedPL)
	}

	s.WinRate = float64(s.Wins) / float64(s.Trades)
	s.AvgPL = s.NetPL / float64(s.Trades)
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s
}

// String renders the report sent by the notifier and printed by the CLI.
func (s Summary) String() string {
	var b strings.Builder
	b.WriteString("Performance report\n")
	if !s.Start.IsZero() {
		fmt.Fprintf(&b, "Period: %s - %s\n", s.Start.UTC().Format(time.DateTime), s.End.UTC().Format(time.DateTime))
	}
	fmt.Fprintf(&b, "Total trades: %d\n", s.Trades)
	fmt.Fprintf(&b, "Winning trades: %d\n", s.Wins)
	fmt.Fprintf(&b, "Win rate: %.2f%%\n", 100*s.WinRate)
	fmt.Fprintf(&b, "Total profit: %.2f\n", s.NetPL)
	fmt.Fprintf(&b, "Average profit: %.2f\n", s.AvgPL)
	if s.ProfitFactor > 0 {
		fmt.Fprintf(&b, "Profit factor: %.2f\n", s.ProfitFactor)
	}
	return b.String()
}
