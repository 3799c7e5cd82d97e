package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"subtrack/internal/core"
	"subtrack/internal/schedule"
)

var weekdaysJA = []string{"日", "月", "火", "水", "木", "金", "土"}

var upcomingCmd = LeafCommand{
	Use:   "upcoming",
	Short: "List upcoming payment days",
	StrFlags: []StringFlag{
		{Name: "user", Usage: "user id whose subscriptions are projected"},
	},
	IntFlags: []IntFlag{
		{Name: "months", Usage: "projection horizon in months", Default: schedule.DefaultHorizonMonths},
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := requireUser(cmd)
		if err != nil {
			return err
		}
		months, _ := cmd.Flags().GetInt("months")
		if months < 1 || months > 24 {
			return fmt.Errorf("--months must be between 1 and 24")
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
		return runUpcoming(cmd, subs, s.today(), months)
	},
}.Build()

func runUpcoming(cmd *cobra.Command, subs []core.Subscription, today core.Date, months int) error {
	res := schedule.Project(subs, today, schedule.WithHorizonMonths(months))
	warnSkipped(cmd, res.Errors)

	out := cmd.OutOrStdout()
	if len(res.Occurrences) == 0 {
		_, _ = fmt.Fprintln(out, Silent("No upcoming payments."))
		return nil
	}

	for _, occ := range res.Occurrences {
		day := fmt.Sprintf("%s (%s)", occ.Date, weekdaysJA[occ.Date.Weekday()])
		_, _ = fmt.Fprintf(out, "%s  %s\n", Primary(day), Amount(core.FormatYen(occ.Total())))
		for _, sub := range occ.Subscriptions {
			line := fmt.Sprintf("  %s  %s", sub.Name, core.FormatYen(sub.Amount))
			if sub.IsEndOfMonth {
				line += "  " + Info("月末")
			}
			_, _ = fmt.Fprintln(out, line)
		}
	}
	return nil
}
