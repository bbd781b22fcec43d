package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/breakout/config"
	"github.com/rustyeddy/breakout/internal/logger"
	"github.com/rustyeddy/breakout/journal"
	"github.com/rustyeddy/breakout/state"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: "stderr",
	})
}

// openJournal returns the configured trade journal, or nil for "none".
func openJournal(cfg *config.Config) (journal.Journal, error) {
	var js journal.Multi
	if cfg.Journal.Type == "sqlite" || cfg.Journal.Type == "both" {
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		js = append(js, j)
	}
	if cfg.Journal.Type == "csv" || cfg.Journal.Type == "both" {
		j, err := journal.NewCSV(cfg.Journal.CSVPath)
		if err != nil {
			js.Close()
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		js = append(js, j)
	}
	switch len(js) {
	case 0:
		return nil, nil
	case 1:
		return js[0], nil
	}
	return js, nil
}

// openStore returns the configured snapshot store and a function releasing
// it, or a nil store for "none".
func openStore(ctx context.Context, cfg *config.Config) (state.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.State.Type {
	case "file":
		return state.NewFile(cfg.State.Path), noop, nil
	case "redis":
		s, err := state.NewRedis(ctx, cfg.RedisConfig())
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	}
	return nil, noop, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
