package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the breakout CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "breakout version %s\n", version)
		fmt.Fprintln(out, "Donchian breakout trading bot for crypto markets")
		fmt.Fprintln(out, "https://github.com/rustyeddy/breakout")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
