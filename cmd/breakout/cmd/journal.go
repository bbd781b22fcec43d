package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/breakout/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display trade journal records from the SQLite database.

Subcommands:
  trade  - Get details of a specific trade by ID
  today  - List trades closed today with a summary
  day    - List trades closed on a specific day
  report - Performance report over a date range

Examples:
  breakout journal trade <trade-id>
  breakout journal today
  breakout journal day 2024-01-15
  breakout journal report --from 2024-01-01 --to 2024-02-01`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Performance report over a date range",
	Long: `Summarize trades closed in [from, to): trade count, wins, win rate,
net and average profit, profit factor and exits by reason.

Without --from the report starts at the first recorded trade; without --to
it runs through today.`,
	Args: cobra.NoArgs,
	RunE: runJournalReport,
}

var (
	journalDBPath     string
	journalReportFrom string
	journalReportTo   string
	journalReportOrg  bool
	journalReportJSON bool
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalReportCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default from config)")
	journalReportCmd.Flags().StringVar(&journalReportFrom, "from", "", "first day, YYYY-MM-DD")
	journalReportCmd.Flags().StringVar(&journalReportTo, "to", "", "day after the last, YYYY-MM-DD")
	journalReportCmd.Flags().BoolVar(&journalReportOrg, "org", false, "render as an Org-mode heading")
	journalReportCmd.Flags().BoolVar(&journalReportJSON, "json", false, "render as JSON")
}

func openJournalDB() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.DBPath
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return listDay(cmd, time.Now().In(time.Local).Format(time.DateOnly))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return listDay(cmd, args[0])
}

func listDay(cmd *cobra.Command, day string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, journal.FormatTradesOrg(recs))
	if len(recs) > 0 {
		s := journal.Summarize(recs)
		s.Start, s.End = start, end
		fmt.Fprintln(out, s.String())
	}
	return nil
}

func runJournalReport(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	start := time.Unix(0, 0)
	if journalReportFrom != "" {
		if start, _, err = dayBounds(time.Local, journalReportFrom); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	_, end, err := dayBounds(time.Local, time.Now().In(time.Local).Format(time.DateOnly))
	if err != nil {
		return err
	}
	if journalReportTo != "" {
		if end, _, err = dayBounds(time.Local, journalReportTo); err != nil {
			return fmt.Errorf("--to: %w", err)
		}
	}

	s, err := j.Summary(start, end)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}

	out := cmd.OutOrStdout()
	switch {
	case journalReportJSON:
		return printJSON(out, s)
	case journalReportOrg:
		text, err := journal.FormatSummaryOrg(s)
		if err != nil {
			return err
		}
		fmt.Fprint(out, text)
	default:
		fmt.Fprintln(out, s.String())
	}
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
