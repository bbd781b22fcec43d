package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/breakout/engine"
	"github.com/rustyeddy/breakout/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset the saved engine state",
	Long: `The bot saves a snapshot (open position, risk counters, balance and the
emergency-stop latch) after every cycle and restores it on start.

Subcommands:
  show  - Print the saved snapshot as JSON
  reset - Clear an emergency stop so the bot can start again

Examples:
  breakout state show
  breakout state reset
  breakout state reset --delete`,
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved snapshot",
	Args:  cobra.NoArgs,
	RunE:  runStateShow,
}

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear an emergency stop",
	Long: `Unlatch the emergency stop in the saved snapshot and restart drawdown
tracking from the current balance. With --delete the snapshot is removed
and the bot starts flat with fresh counters; only do that with no open
position on the exchange.`,
	Args: cobra.NoArgs,
	RunE: runStateReset,
}

var stateResetDelete bool

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateResetCmd)

	stateResetCmd.Flags().BoolVar(&stateResetDelete, "delete", false, "remove the snapshot entirely")
}

func openConfiguredStore(cmd *cobra.Command) (state.Store, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open state: %w", err)
	}
	if store == nil {
		closeStore()
		return nil, nil, fmt.Errorf("state.type is none: nothing is saved")
	}
	return store, closeStore, nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openConfiguredStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	snap, err := store.Load(cmd.Context())
	if errors.Is(err, engine.ErrNoSnapshot) {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved state.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), snap)
}

func runStateReset(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openConfiguredStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	out := cmd.OutOrStdout()
	if stateResetDelete {
		if err := store.Delete(cmd.Context()); err != nil {
			return fmt.Errorf("delete state: %w", err)
		}
		fmt.Fprintln(out, "✓ Saved state deleted")
		return nil
	}

	cleared, err := state.ClearHalt(cmd.Context(), store)
	if err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	if cleared {
		fmt.Fprintln(out, "✓ Emergency stop cleared")
	} else {
		fmt.Fprintln(out, "Nothing to reset: the engine is not halted")
	}
	return nil
}
