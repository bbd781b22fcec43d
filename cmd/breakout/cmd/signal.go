package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/breakout/broker/binance"
	"github.com/rustyeddy/breakout/config"
	"github.com/rustyeddy/breakout/engine"
	"github.com/rustyeddy/breakout/indicators"
	"github.com/rustyeddy/breakout/market"
	"github.com/rustyeddy/breakout/risk"
	"github.com/rustyeddy/breakout/strategy"
)

var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "Evaluate the entry rules on the latest bars",
	Long: `Run the indicator pipeline and the entry check over a series of bars and
print the last enriched bar with the decision. Nothing is traded and no
state is touched.

Bars come from a CSV file (time,open,high,low,close,volume) with --bars,
otherwise the last engine.bar_limit klines are fetched from Binance.

Examples:
  breakout signal --bars btc-15m.csv
  breakout signal -c breakout.yaml --json`,
	Args: cobra.NoArgs,
	RunE: runSignal,
}

var (
	signalBars    string
	signalBalance float64
	signalJSON    bool
)

func init() {
	rootCmd.AddCommand(signalCmd)

	signalCmd.Flags().StringVar(&signalBars, "bars", "", "CSV file of bars, oldest first")
	signalCmd.Flags().Float64Var(&signalBalance, "balance", 0, "balance used to size the order (default paper.initial_balance)")
	signalCmd.Flags().BoolVar(&signalJSON, "json", false, "print JSON")
}

type signalReport struct {
	Symbol string                 `json:"symbol"`
	Bars   int                    `json:"bars"`
	Warmup int                    `json:"warmup"`
	Bar    indicators.EnrichedBar `json:"bar"`
	Signal strategy.EntrySignal   `json:"signal"`

	Side       market.Side `json:"side,omitempty"`
	Entry      float64     `json:"entry,omitempty"`
	StopLoss   float64     `json:"stop_loss,omitempty"`
	TakeProfit float64     `json:"take_profit,omitempty"`
	Size       float64     `json:"size,omitempty"`
	RiskAmount float64     `json:"risk_amount,omitempty"`
	RR         float64     `json:"rr,omitempty"`
}

func runSignal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var bars []market.Bar
	if signalBars != "" {
		bars, err = market.LoadBarsCSV(signalBars)
	} else {
		client := binance.NewClient(cfg.BinanceConfig())
		bars, err = client.FetchBars(cmd.Context(), market.Symbol(cfg.Strategy.Symbol), cfg.Strategy.Timeframe, cfg.Engine.BarLimit)
	}
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	balance := signalBalance
	if balance <= 0 {
		balance = cfg.Exchange.Paper.InitialBalance
	}

	rep, err := evaluateSignal(cfg, bars, balance)
	if err != nil {
		return err
	}
	if signalJSON {
		return printJSON(cmd.OutOrStdout(), rep)
	}
	printSignal(cmd.OutOrStdout(), rep)
	return nil
}

func evaluateSignal(cfg *config.Config, bars []market.Bar, balance float64) (signalReport, error) {
	ec, err := cfg.EngineConfig()
	if err != nil {
		return signalReport{}, err
	}

	rep := signalReport{
		Symbol: string(ec.Symbol),
		Bars:   len(bars),
		Warmup: ec.Pipeline.Warmup(),
	}
	rows := ec.Pipeline.Enrich(bars)
	if len(rows) < 2 {
		return rep, fmt.Errorf("%w: %d bars, need %d", engine.ErrInsufficientData, len(bars), rep.Warmup+1)
	}

	prev, cur := rows[len(rows)-2], rows[len(rows)-1]
	rep.Bar = cur
	rep.Signal = strategy.NewEvaluator(ec.Strategy).Entry(prev, cur)

	side, ok := rep.Signal.Side()
	if !ok {
		return rep, nil
	}
	rep.Side = side
	rep.Entry = cur.Close
	rep.StopLoss, rep.TakeProfit = engine.StopLevels(side, cur.Close, cur.ATR, ec.StopATRMultiple, ec.TargetATRMultiple)
	rep.RR = risk.RR(rep.Entry, rep.StopLoss, rep.TakeProfit)

	sz, err := risk.Calculate(risk.Inputs{
		Balance:      balance,
		RiskFraction: ec.RiskPerTrade,
		EntryPrice:   cur.Close,
		StopPrice:    rep.StopLoss,
		MaxExposure:  ec.MaxPositionSize,
	})
	if err != nil && !errors.Is(err, risk.ErrZeroSize) {
		return rep, err
	}
	rep.Size, rep.RiskAmount = sz.Size, sz.RiskAmount
	return rep, nil
}

func printSignal(w io.Writer, r signalReport) {
	b := r.Bar
	fmt.Fprintf(w, "%s  %s  (%d bars, warm-up %d)\n", r.Symbol, b.Time.UTC().Format(time.DateTime), r.Bars, r.Warmup)
	fmt.Fprintf(w, "  OHLC      %.2f %.2f %.2f %.2f\n", b.Open, b.High, b.Low, b.Close)
	fmt.Fprintf(w, "  EMA trend %.2f\n", b.EMATrend)
	fmt.Fprintf(w, "  Donchian  %.2f / %.2f / %.2f (ratio %.2f)\n", b.DonchianLower, b.DonchianMid, b.DonchianUpper, b.BandDistanceRatio)
	fmt.Fprintf(w, "  ATR       %.2f\n", b.ATR)
	fmt.Fprintf(w, "  MACD      %.2f signal %.2f hist %.2f\n", b.MACD, b.MACDSignal, b.MACDHist)
	fmt.Fprintf(w, "Trend: %s\n", r.Signal.Trend)

	if r.Side == "" {
		fmt.Fprintln(w, "Signal: none")
		return
	}
	fmt.Fprintf(w, "Signal: %s\n", r.Side)
	fmt.Fprintf(w, "  Entry %.2f  SL %.2f  TP %.2f  (R:R %.2f)\n", r.Entry, r.StopLoss, r.TakeProfit, r.RR)
	if r.Size > 0 {
		fmt.Fprintf(w, "  Size %.6f  risking %.2f\n", r.Size, r.RiskAmount)
	} else {
		fmt.Fprintln(w, "  Size: zero, no order would be sent")
	}
}
