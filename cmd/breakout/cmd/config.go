package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/breakout/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage bot configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Secrets are read from the environment (or a .env file):
  BREAKOUT_EXCHANGE_API_KEY, BREAKOUT_EXCHANGE_SECRET,
  BREAKOUT_TELEGRAM_TOKEN, BREAKOUT_TELEGRAM_CHAT_ID

Examples:
  breakout config init -o breakout.yaml
  breakout config validate -c breakout.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings: paper trading
BTC/USDT on 15 minute bars.

Example:
  breakout config init -o breakout.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply environment overrides and check it.

Example:
  breakout config validate -c breakout.yaml`,
	RunE: runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "breakout.yaml", "output config file path")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  breakout run -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	name := cfgFile
	if name == "" {
		name = "(defaults)"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", name)
	fmt.Fprintf(out, "  Exchange: %s %s (testnet: %v)\n", cfg.Exchange.Type, cfg.Exchange.Market, cfg.Exchange.Testnet)
	fmt.Fprintf(out, "  Strategy: %s %s (mode: %s, EMA %d, Donchian %d)\n",
		cfg.Strategy.Symbol, cfg.Strategy.Timeframe, cfg.Strategy.TradingMode, cfg.Strategy.EMAPeriod, cfg.Strategy.DonchianPeriod)
	fmt.Fprintf(out, "  Risk: %.1f%% per trade, %d trades/day, drawdown %.0f%%, emergency %.0f%%\n",
		cfg.Risk.RiskPerTrade*100, cfg.Risk.MaxDailyTrades, cfg.Risk.MaxDrawdown*100, cfg.Risk.EmergencyStop*100)
	fmt.Fprintf(out, "  Journal: %s  State: %s  Telegram: %v\n", cfg.Journal.Type, cfg.State.Type, cfg.Telegram.Enabled)
	return nil
}
