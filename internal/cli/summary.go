package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"subtrack/internal/core"
	"subtrack/internal/schedule"
)

var summaryCmd = LeafCommand{
	Use:   "summary",
	Short: "Show subscription totals",
	StrFlags: []StringFlag{
		{Name: "user", Usage: "user id whose subscriptions are summarized"},
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := requireUser(cmd)
		if err != nil {
			return err
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		subs, err := s.subscriptions(cmd, userID)
		if err != nil {
			return err
		}
		return runSummary(cmd, subs, s.today())
	},
}.Build()

func runSummary(cmd *cobra.Command, subs []core.Subscription, today core.Date) error {
	summary := schedule.Summarize(subs, today)
	out := cmd.OutOrStdout()

	row := func(label, value string) {
		_, _ = fmt.Fprintf(out, "%-20s %s\n", label, value)
	}
	row("Subscriptions", fmt.Sprint(summary.Count))
	row("Monthly total", Amount(core.FormatYen(summary.MonthlyTotal)))
	row("Yearly total", Amount(core.FormatYen(summary.YearlyTotal)))
	row("Monthly equivalent", Amount(core.FormatYen(summary.MonthlyEquivalent)))
	if summary.NextUpcoming != nil {
		row("Next payment", Primary(summary.NextUpcoming.String()))
	} else {
		row("Next payment", Silent("-"))
	}

	if len(summary.ByCategory) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(out, "By category")
	for _, c := range summary.ByCategory {
		_, _ = fmt.Fprintf(out, "  %-18s %3d  %s\n", c.Category, c.Count, core.FormatYen(c.Amount))
	}
	return nil
}
