package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/breakout/broker/binance"
	"github.com/rustyeddy/breakout/market"
)

var barsCmd = &cobra.Command{
	Use:   "bars",
	Short: "Download Binance klines to CSV",
	Long: `Download the most recent klines for the configured symbol and timeframe
and write them as CSV (time,open,high,low,close,volume), the format
"breakout signal --bars" reads. No API key is needed.

Example:
  breakout bars --limit 1000 --out btc-15m.csv
  breakout bars --symbol ETH/USDT --timeframe 1h --out eth-1h.csv`,
	Args: cobra.NoArgs,
	RunE: runBars,
}

var (
	barsSymbol       string
	barsTimeframe    string
	barsLimit        int
	barsOut          string
	barsCompleteOnly bool
)

func init() {
	rootCmd.AddCommand(barsCmd)

	barsCmd.Flags().StringVar(&barsSymbol, "symbol", "", "symbol, e.g. BTC/USDT (default from config)")
	barsCmd.Flags().StringVar(&barsTimeframe, "timeframe", "", "kline interval, e.g. 15m (default from config)")
	barsCmd.Flags().IntVar(&barsLimit, "limit", 0, "number of klines (default engine.bar_limit, max 1000)")
	barsCmd.Flags().StringVarP(&barsOut, "out", "o", "", "output CSV path (default stdout)")
	barsCmd.Flags().BoolVar(&barsCompleteOnly, "complete-only", true, "drop the kline that is still forming")
}

func runBars(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sym := market.Symbol(cfg.Strategy.Symbol)
	if barsSymbol != "" {
		sym = market.Symbol(barsSymbol)
	}
	tf := cfg.Strategy.Timeframe
	if barsTimeframe != "" {
		tf = barsTimeframe
	}
	period, err := market.ParseTimeframe(tf)
	if err != nil {
		return err
	}
	limit := cfg.Engine.BarLimit
	if barsLimit > 0 {
		limit = min(barsLimit, binance.MaxKlines)
	}

	client := binance.NewClient(cfg.BinanceConfig())
	bars, err := client.FetchBars(cmd.Context(), sym, tf, limit)
	if err != nil {
		return fmt.Errorf("fetch klines: %w", err)
	}
	if barsCompleteOnly {
		bars = completeBars(bars, period, time.Now())
	}

	out := cmd.OutOrStdout()
	if barsOut != "" {
		f, err := os.Create(barsOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := market.WriteBarsCSV(out, bars); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if barsOut != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %d %s %s bars to %s\n", len(bars), sym, tf, barsOut)
	}
	return nil
}

// completeBars drops trailing bars whose period has not ended at now.
func completeBars(bars []market.Bar, period time.Duration, now time.Time) []market.Bar {
	for len(bars) > 0 && bars[len(bars)-1].Time.Add(period).After(now) {
		bars = bars[:len(bars)-1]
	}
	return bars
}
