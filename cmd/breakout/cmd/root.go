package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "breakout",
	Short: "Donchian breakout trading bot for crypto markets",
	Long: `Breakout trades one crypto symbol with a Donchian channel breakout
filtered by a long EMA trend, MACD momentum and candle quality.

It provides tools for:
  - Running the bot against Binance (live, testnet or paper)
  - Evaluating the strategy on a CSV of bars
  - Querying the trade journal and performance reports
  - Inspecting and resetting the saved engine state

Complete documentation is available at https://github.com/rustyeddy/breakout`,
	SilenceUsage: true,
}

var cfgFile string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults apply when empty")
}
