package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/upashthiti/upashthiti/internal/config"
	"github.com/upashthiti/upashthiti/internal/constants"
	"github.com/upashthiti/upashthiti/internal/ledger"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show the attendance log",
	Long: `Show recorded attendance events, newest last. The log is append-only;
lines that fail to parse are skipped and reported, never rewritten.

Examples:
  # Last 50 events
  upashthiti attendance

  # Everyone seen today, one line per student
  upashthiti attendance --today --unique

  # A specific day
  upashthiti attendance --date 2026-03-02`,
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().String("date", "", "Only events on this date (YYYY-MM-DD)")
	attendanceCmd.Flags().Bool("today", false, "Shorthand for --date with today's date")
	attendanceCmd.Flags().Bool("unique", false, "Print each attendee once, in order of first appearance")
	attendanceCmd.Flags().Int("limit", constants.DefaultAttendanceLimit, "Maximum number of events to print")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	date := mustGetString(cmd, "date")
	if mustGetBool(cmd, "today") {
		date = time.Now().Format(ledger.DateLayout)
	}

	cfg := config.Load()
	led := ledger.New(cfg.Ledger.Path)

	events, skipped, err := led.Query(date)
	if err != nil {
		return err
	}
	if skipped > 0 {
		fmt.Printf("Warning: skipped %d malformed line(s) in %s\n", skipped, cfg.Ledger.Path)
	}

	if len(events) == 0 {
		if date != "" {
			fmt.Printf("No attendance recorded on %s\n", date)
		} else {
			fmt.Println("No attendance recorded")
		}
		return nil
	}

	if mustGetBool(cmd, "unique") {
		attendees := ledger.UniqueAttendees(events)
		fmt.Printf("%d attendee(s):\n", len(attendees))
		for _, name := range attendees {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	total := len(events)
	events = ledger.MostRecent(events, mustGetInt(cmd, "limit"))
	if len(events) < total {
		fmt.Printf("Showing %d of %d event(s):\n", len(events), total)
	} else {
		fmt.Printf("%d event(s):\n", total)
	}
	for _, e := range events {
		fmt.Printf("  %s  %-24s %.3f\n", e.Timestamp.Format(time.RFC3339), e.Name, e.Confidence)
	}
	return nil
}
