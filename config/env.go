package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "BREAKOUT_"

// loadDotEnv loads .env from the working directory if there is one.
// Variables already set in the environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}

// applyEnvOverrides copies BREAKOUT_* variables over the file values. Secrets
// are expected to arrive this way.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Exchange.Type, "EXCHANGE_TYPE")
	setStr(&cfg.Exchange.Market, "EXCHANGE_MARKET")
	setBool(&cfg.Exchange.Testnet, "EXCHANGE_TESTNET")
	setStr(&cfg.Exchange.BaseURL, "EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.APIKey, "EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.Secret, "EXCHANGE_SECRET")
	setFloat64(&cfg.Exchange.Paper.InitialBalance, "PAPER_INITIAL_BALANCE")

	setStr(&cfg.Strategy.Symbol, "SYMBOL")
	setStr(&cfg.Strategy.Timeframe, "TIMEFRAME")
	setStr(&cfg.Strategy.TradingMode, "TRADING_MODE")

	setFloat64(&cfg.Risk.RiskPerTrade, "RISK_PER_TRADE")
	setFloat64(&cfg.Risk.MaxPositionSize, "MAX_POSITION_SIZE")
	setInt(&cfg.Risk.MaxDailyTrades, "MAX_DAILY_TRADES")
	setFloat64(&cfg.Risk.MaxDailyLoss, "MAX_DAILY_LOSS")
	setFloat64(&cfg.Risk.MaxDrawdown, "MAX_DRAWDOWN")
	setFloat64(&cfg.Risk.EmergencyStop, "EMERGENCY_STOP")

	setDuration(&cfg.Engine.Interval, "ENGINE_INTERVAL")

	setStr(&cfg.Journal.DBPath, "JOURNAL_DB_PATH")
	setStr(&cfg.State.Path, "STATE_PATH")
	setStr(&cfg.State.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.State.Redis.Password, "REDIS_PASSWORD")

	setBool(&cfg.Telegram.Enabled, "TELEGRAM_ENABLED")
	setStr(&cfg.Telegram.Token, "TELEGRAM_TOKEN")
	setInt64(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")

	setStr(&cfg.Log.Level, "LOG_LEVEL")
	setStr(&cfg.Log.Format, "LOG_FORMAT")
	setBool(&cfg.Server.Enabled, "SERVER_ENABLED")
	setStr(&cfg.Server.Addr, "SERVER_ADDR")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
