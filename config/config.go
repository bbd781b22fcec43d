// Package config is the typed run configuration: YAML on disk, struct-tag
// defaults, BREAKOUT_* environment overrides and fail-fast validation.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/breakout/broker/binance"
	"github.com/rustyeddy/breakout/engine"
	"github.com/rustyeddy/breakout/indicators"
	"github.com/rustyeddy/breakout/market"
	"github.com/rustyeddy/breakout/risk"
	"github.com/rustyeddy/breakout/state"
	"github.com/rustyeddy/breakout/strategy"
)

// Config is the complete bot configuration.
type Config struct {
	Exchange ExchangeConfig `json:"exchange" yaml:"exchange"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	State    StateConfig    `json:"state" yaml:"state"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Server   ServerConfig   `json:"server" yaml:"server"`
}

// ExchangeConfig picks the execution gateway. Market data always comes
// from Binance; "paper" simulates fills against it.
type ExchangeConfig struct {
	Type              string        `json:"type" yaml:"type" default:"paper" validate:"oneof=paper binance"`
	Market            string        `json:"market" yaml:"market" default:"spot" validate:"oneof=spot futures"`
	Testnet           bool          `json:"testnet" yaml:"testnet"`
	BaseURL           string        `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIKey            string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Secret            string        `json:"secret,omitempty" yaml:"secret,omitempty"`
	QuantityPrecision int32         `json:"quantity_precision" yaml:"quantity_precision" default:"5" validate:"gte=0,lte=8"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout" default:"30s" validate:"gte=1s"`
	Paper             PaperConfig   `json:"paper" yaml:"paper"`
}

type PaperConfig struct {
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance" default:"10000" validate:"gt=0"`
	Fee            float64 `json:"fee" yaml:"fee" validate:"gte=0,lt=1"`
}

// StrategyConfig holds the indicator periods and entry/exit thresholds.
type StrategyConfig struct {
	Symbol    string `json:"symbol" yaml:"symbol" default:"BTC/USDT" validate:"required"`
	Timeframe string `json:"timeframe" yaml:"timeframe" default:"15m" validate:"required"`

	EMAPeriod      int `json:"ema_period" yaml:"ema_period" default:"200" validate:"gt=0"`
	DonchianPeriod int `json:"donchian_period" yaml:"donchian_period" default:"20" validate:"gt=0"`
	ATRPeriod      int `json:"atr_period" yaml:"atr_period" default:"14" validate:"gt=0"`
	MACDFast       int `json:"macd_fast" yaml:"macd_fast" default:"12" validate:"gt=0,ltfield=MACDSlow"`
	MACDSlow       int `json:"macd_slow" yaml:"macd_slow" default:"26" validate:"gt=0"`
	MACDSignal     int `json:"macd_signal" yaml:"macd_signal" default:"9" validate:"gt=0"`

	MomentumThreshold       float64 `json:"momentum_threshold" yaml:"momentum_threshold" default:"100" validate:"gte=0"`
	CandleTickThreshold     float64 `json:"candle_tick_threshold" yaml:"candle_tick_threshold" default:"3" validate:"gte=0"`
	BandDistanceMin         float64 `json:"band_distance_min" yaml:"band_distance_min" default:"1.0" validate:"gte=0"`
	VolatilitySpikeMultiple float64 `json:"volatility_spike_multiple" yaml:"volatility_spike_multiple" default:"1.5" validate:"gt=0"`
	StopATRMultiple         float64 `json:"stop_atr_multiple" yaml:"stop_atr_multiple" default:"2" validate:"gt=0"`
	TargetATRMultiple       float64 `json:"target_atr_multiple" yaml:"target_atr_multiple" default:"4" validate:"gt=0"`

	TradingMode string `json:"trading_mode" yaml:"trading_mode" default:"both" validate:"oneof=both long_only short_only long short"`
}

// RiskConfig holds sizing and account limits. Zero disables MaxDailyLoss,
// MaxDrawdown, EmergencyStop and MaxPositionSize.
type RiskConfig struct {
	RiskPerTrade    float64 `json:"risk_per_trade" yaml:"risk_per_trade" default:"0.02" validate:"gt=0,lte=1"`
	MaxPositionSize float64 `json:"max_position_size" yaml:"max_position_size" default:"0.10" validate:"gte=0,lte=1"`
	MaxDailyTrades  int     `json:"max_daily_trades" yaml:"max_daily_trades" default:"5" validate:"gt=0"`
	MaxDailyLoss    float64 `json:"max_daily_loss" yaml:"max_daily_loss" default:"100" validate:"gte=0"`
	MaxDrawdown     float64 `json:"max_drawdown" yaml:"max_drawdown" default:"0.10" validate:"gte=0,lt=1"`
	EmergencyStop   float64 `json:"emergency_stop" yaml:"emergency_stop" default:"0.15" validate:"gte=0,lt=1"`

	TradingHours TradingHoursConfig `json:"trading_hours" yaml:"trading_hours"`
}

type TradingHoursConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Start    int    `json:"start" yaml:"start" default:"0" validate:"gte=0,lte=23"`
	End      int    `json:"end" yaml:"end" default:"23" validate:"gte=0,lte=23"`
	Timezone string `json:"timezone" yaml:"timezone" default:"UTC" validate:"required"`
}

// EngineConfig controls the polling loop.
type EngineConfig struct {
	Interval    time.Duration `json:"interval" yaml:"interval" default:"60s" validate:"gte=1s"`
	BarLimit    int           `json:"bar_limit" yaml:"bar_limit" default:"500" validate:"gt=0,lte=1000"`
	StatusEvery time.Duration `json:"status_every" yaml:"status_every" default:"1h" validate:"gte=0"`
}

type JournalConfig struct {
	Type    string `json:"type" yaml:"type" default:"sqlite" validate:"oneof=sqlite csv both none"`
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty" default:"breakout.db"`
	CSVPath string `json:"csv_path,omitempty" yaml:"csv_path,omitempty" default:"trades.csv"`
}

type StateConfig struct {
	Type  string      `json:"type" yaml:"type" default:"file" validate:"oneof=file redis none"`
	Path  string      `json:"path,omitempty" yaml:"path,omitempty" default:"breakout-state.json"`
	Redis RedisConfig `json:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Addr       string `json:"addr" yaml:"addr" default:"localhost:6379"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	DB         int    `json:"db" yaml:"db" validate:"gte=0"`
	TLSEnabled bool   `json:"tls_enabled" yaml:"tls_enabled"`
	Key        string `json:"key" yaml:"key" default:"breakout:state"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `json:"format" yaml:"format" default:"console" validate:"oneof=console json"`
}

type ServerConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr" default:":8080"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Default returns the configuration described by the struct tags: paper
// trading BTC/USDT on 15m bars.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load reads path (JSON for .json, YAML otherwise) on top of the defaults, applies .env and
// BREAKOUT_* overrides, and validates the result. An empty path loads the
// defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if isJSON(path) {
			err = json.Unmarshal(data, cfg)
		} else {
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	loadDotEnv()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// SaveToFile writes indented JSON for .json paths and YAML otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if isJSON(path) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate runs the tag rules and then the checks that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, errors.New(fieldMessage(fe)))
			}
			return errors.Join(msgs...)
		}
		return err
	}

	if err := market.Symbol(c.Strategy.Symbol).Validate(); err != nil {
		return fmt.Errorf("strategy.symbol: %w", err)
	}
	if _, err := market.ParseTimeframe(c.Strategy.Timeframe); err != nil {
		return fmt.Errorf("strategy.timeframe: %w", err)
	}
	if _, err := time.LoadLocation(c.Risk.TradingHours.Timezone); err != nil {
		return fmt.Errorf("risk.trading_hours.timezone: %w", err)
	}
	if c.Risk.EmergencyStop > 0 && c.Risk.MaxDrawdown > 0 && c.Risk.EmergencyStop < c.Risk.MaxDrawdown {
		return fmt.Errorf("risk.emergency_stop must be at least risk.max_drawdown")
	}
	if w := c.Pipeline().Warmup(); c.Engine.BarLimit <= w {
		return fmt.Errorf("engine.bar_limit must exceed the indicator warm-up of %d bars", w)
	}
	if c.Exchange.Type == "binance" && (c.Exchange.APIKey == "" || c.Exchange.Secret == "") {
		return fmt.Errorf("exchange.api_key and exchange.secret are required for binance (set BREAKOUT_EXCHANGE_API_KEY and BREAKOUT_EXCHANGE_SECRET)")
	}
	if c.Exchange.Type == "binance" && c.Exchange.Market == "spot" {
		if mode, _ := strategy.ParseTradingMode(c.Strategy.TradingMode); mode != strategy.LongOnly {
			return fmt.Errorf("strategy.trading_mode must be long_only for binance spot (spot accounts cannot short)")
		}
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	if c.Journal.Type != "none" && c.Journal.Type != "csv" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path is required for %s journals", c.Journal.Type)
	}
	if (c.Journal.Type == "csv" || c.Journal.Type == "both") && c.Journal.CSVPath == "" {
		return fmt.Errorf("journal.csv_path is required for %s journals", c.Journal.Type)
	}
	if c.State.Type == "file" && c.State.Path == "" {
		return fmt.Errorf("state.path is required for file state")
	}
	if c.State.Type == "redis" && c.State.Redis.Addr == "" {
		return fmt.Errorf("state.redis.addr is required for redis state")
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "ltfield":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// Pipeline returns the indicator periods.
func (c *Config) Pipeline() indicators.Pipeline {
	s := c.Strategy
	return indicators.Pipeline{
		EMAPeriod:      s.EMAPeriod,
		DonchianPeriod: s.DonchianPeriod,
		ATRPeriod:      s.ATRPeriod,
		MACDFast:       s.MACDFast,
		MACDSlow:       s.MACDSlow,
		MACDSignal:     s.MACDSignal,
	}
}

func (c *Config) StrategyParams() (strategy.Params, error) {
	mode, err := strategy.ParseTradingMode(c.Strategy.TradingMode)
	if err != nil {
		return strategy.Params{}, err
	}
	return strategy.Params{
		MomentumThreshold:       c.Strategy.MomentumThreshold,
		CandleTickThreshold:     c.Strategy.CandleTickThreshold,
		BandDistanceMin:         c.Strategy.BandDistanceMin,
		VolatilitySpikeMultiple: c.Strategy.VolatilitySpikeMultiple,
		Mode:                    mode,
	}, nil
}

func (c *Config) RiskPolicy() (risk.Policy, error) {
	loc, err := time.LoadLocation(c.Risk.TradingHours.Timezone)
	if err != nil {
		return risk.Policy{}, fmt.Errorf("risk.trading_hours.timezone: %w", err)
	}
	r := c.Risk
	return risk.Policy{
		MaxDailyTrades: r.MaxDailyTrades,
		MaxDailyLoss:   r.MaxDailyLoss,
		MaxDrawdown:    r.MaxDrawdown,
		EmergencyStop:  r.EmergencyStop,
		TradingHours: risk.TradingHours{
			Enabled:   r.TradingHours.Enabled,
			StartHour: r.TradingHours.Start,
			EndHour:   r.TradingHours.End,
			Location:  loc,
		},
	}, nil
}

// EngineConfig assembles the engine configuration.
func (c *Config) EngineConfig() (engine.Config, error) {
	params, err := c.StrategyParams()
	if err != nil {
		return engine.Config{}, err
	}
	policy, err := c.RiskPolicy()
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Symbol:            market.Symbol(c.Strategy.Symbol),
		Pipeline:          c.Pipeline(),
		Strategy:          params,
		Risk:              policy,
		RiskPerTrade:      c.Risk.RiskPerTrade,
		MaxPositionSize:   c.Risk.MaxPositionSize,
		StopATRMultiple:   c.Strategy.StopATRMultiple,
		TargetATRMultiple: c.Strategy.TargetATRMultiple,
	}, nil
}

func (c *Config) RunnerOptions() engine.RunnerOptions {
	return engine.RunnerOptions{
		Timeframe:   c.Strategy.Timeframe,
		BarLimit:    c.Engine.BarLimit,
		Interval:    c.Engine.Interval,
		StatusEvery: c.Engine.StatusEvery,
	}
}

func (c *Config) BinanceConfig() binance.Config {
	e := c.Exchange
	return binance.Config{
		APIKey:            e.APIKey,
		Secret:            e.Secret,
		Market:            binance.Market(e.Market),
		Testnet:           e.Testnet,
		BaseURL:           e.BaseURL,
		QuantityPrecision: e.QuantityPrecision,
		Timeout:           e.Timeout,
	}
}

func (c *Config) RedisConfig() state.RedisConfig {
	r := c.State.Redis
	return state.RedisConfig{
		Addr:       r.Addr,
		Password:   r.Password,
		DB:         r.DB,
		TLSEnabled: r.TLSEnabled,
		Key:        r.Key,
	}
}
