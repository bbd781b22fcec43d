package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/breakout/broker"
	"github.com/rustyeddy/breakout/broker/binance"
	"github.com/rustyeddy/breakout/broker/paper"
	"github.com/rustyeddy/breakout/config"
	"github.com/rustyeddy/breakout/engine"
	"github.com/rustyeddy/breakout/internal/metrics"
	"github.com/rustyeddy/breakout/internal/server"
	"github.com/rustyeddy/breakout/journal"
	"github.com/rustyeddy/breakout/market"
	"github.com/rustyeddy/breakout/notify"
	"github.com/rustyeddy/breakout/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading bot",
	Long: `Poll Binance for bars every engine.interval, evaluate the strategy and
trade through the configured exchange (paper or binance). The engine state
is saved after every cycle and restored on start.

An emergency stop halts the bot; it refuses to start again until
"breakout state reset" clears the stop.

Example:
  breakout run -c breakout.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ec, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	data := binance.NewClient(cfg.BinanceConfig()).WithQuote(ec.Symbol.Quote())

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer closeStore()

	exec, balances, err := newExchange(ctx, cfg, data, store, ec.Symbol)
	if err != nil {
		return err
	}

	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	sender, err := newSender(cfg, log)
	if err != nil {
		return err
	}
	disp := notify.NewDispatcher(sender, j, notify.WithLogger(log.With().Str("component", "notify").Logger()))
	rec := metrics.New()

	eng := engine.New(ec, exec, balances, engine.WithLogger(log.With().Str("component", "engine").Logger()))
	runner := &engine.Runner{
		Engine:   eng,
		Data:     data,
		Notifier: disp,
		Ledger:   disp,
		Observer: rec,
		Log:      log,
		Options:  cfg.RunnerOptions(),
	}
	if store != nil {
		runner.Store = store
	}

	if err := runner.Restore(ctx); err != nil {
		if errors.Is(err, engine.ErrEmergencyStop) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Trading is halted. Review the account, then run: breakout state reset")
		}
		return err
	}
	if err := eng.SyncBalance(ctx); err != nil {
		log.Warn().Err(err).Msg("initial balance")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	dispCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return disp.Run(dispCtx)
	})
	g.Go(func() error {
		defer stopDispatch()
		defer cancel()
		err := runner.Run(gctx)
		if report, ok := todayReport(j); ok {
			disp.Notify(report)
		}
		return err
	})
	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Addr, runner.Status, rec.Handler(), log.With().Str("component", "http").Logger())
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, engine.ErrEmergencyStop) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Trading halted by the emergency stop. Review the account, then run: breakout state reset")
		}
		return err
	}
	return nil
}

// newExchange returns the executor and balance provider. Paper trading
// resumes its balance and position from the saved snapshot.
func newExchange(ctx context.Context, cfg *config.Config, live *binance.Client, store state.Store, sym market.Symbol) (broker.Executor, broker.BalanceProvider, error) {
	if cfg.Exchange.Type == "binance" {
		return live, live, nil
	}

	pb := paper.New(cfg.Exchange.Paper.InitialBalance, paper.WithFee(cfg.Exchange.Paper.Fee))
	if store == nil {
		return pb, pb, nil
	}
	snap, err := store.Load(ctx)
	if errors.Is(err, engine.ErrNoSnapshot) {
		return pb, pb, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load state: %w", err)
	}
	if snap.Balance > 0 {
		var qty, entry float64
		if p := snap.Position; p != nil {
			qty, entry = p.Size, p.EntryPrice
			if p.Side == market.Short {
				qty = -qty
			}
		}
		pb.Resume(resumeBalance(snap, cfg.Exchange.Paper.Fee), sym, qty, entry)
	}
	return pb, pb, nil
}

// resumeBalance is the paper balance a snapshot implies. The balance of an
// open position's snapshot was observed before the entry order, so the
// entry fee is still owed.
func resumeBalance(snap engine.Snapshot, fee float64) float64 {
	p := snap.Position
	if p == nil {
		return snap.Balance
	}
	return snap.Balance - p.Size*p.EntryPrice*fee
}

func newSender(cfg *config.Config, log zerolog.Logger) (notify.Sender, error) {
	if !cfg.Telegram.Enabled {
		return notify.NewLog(log), nil
	}
	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("bot", tg.Username()).Msg("telegram connected")
	return tg, nil
}

// todayReport summarizes today's closed trades when the journal can be
// queried.
func todayReport(j journal.Journal) (string, bool) {
	db := findSQLite(j)
	if db == nil {
		return "", false
	}
	start, end, err := dayBounds(time.Local, time.Now().Format(time.DateOnly))
	if err != nil {
		return "", false
	}
	s, err := db.Summary(start, end)
	if err != nil || s.Trades == 0 {
		return "", false
	}
	return s.String(), true
}

func findSQLite(j journal.Journal) *journal.SQLite {
	switch v := j.(type) {
	case *journal.SQLite:
		return v
	case journal.Multi:
		for _, inner := range v {
			if db, ok := inner.(*journal.SQLite); ok {
				return db
			}
		}
	}
	return nil
}
