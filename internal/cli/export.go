package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"subtrack/internal/core"
	"subtrack/internal/export"
	"subtrack/internal/schedule"
)

var exportICSCmd = LeafCommand{
	Use:   "ics",
	Short: "Write an iCalendar feed of the user's subscriptions",
	StrFlags: []StringFlag{
		{Name: "user", Usage: "user id whose subscriptions are exported"},
		{Name: "out", Usage: "output file, - for stdout", Default: "-"},
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, func(w io.Writer, s *session, subs []core.Subscription) error {
			data, skipped := export.ICS(subs, now())
			warnSkipped(cmd, skipped)
			_, err := w.Write(data)
			return err
		})
	},
}.Build()

var exportPDFCmd = LeafCommand{
	Use:   "pdf",
	Short: "Write a PDF payment schedule",
	StrFlags: []StringFlag{
		{Name: "user", Usage: "user id whose subscriptions are exported"},
		{Name: "out", Usage: "output file, - for stdout", Default: "-"},
	},
	IntFlags: []IntFlag{
		{Name: "months", Usage: "projection horizon in months", Default: schedule.DefaultHorizonMonths},
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		months, _ := cmd.Flags().GetInt("months")
		if months < 1 || months > 24 {
			return fmt.Errorf("--months must be between 1 and 24")
		}
		return runExport(cmd, func(w io.Writer, s *session, subs []core.Subscription) error {
			res := schedule.Project(subs, s.today(), schedule.WithHorizonMonths(months))
			warnSkipped(cmd, res.Errors)

			summary := core.Summarize(subs)
			summary.NextUpcoming = res.Next()
			title := "Payment schedule " + core.FormatYen(summary.MonthlyEquivalent) + "/month"
			return export.PDF(w, title, res, summary)
		})
	},
}.Build()

var exportCmd = GroupCommand{
	Use:         "export",
	Short:       "Export the payment schedule",
	Subcommands: []*cobra.Command{exportICSCmd, exportPDFCmd},
}.Build()

// runExport renders into memory and writes the target only on success.
func runExport(cmd *cobra.Command, render func(io.Writer, *session, []core.Subscription) error) error {
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

	var buf bytes.Buffer
	if err := render(&buf, s, subs); err != nil {
		return fmt.Errorf("render export: %w", err)
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" || out == "-" {
		_, err := buf.WriteTo(cmd.OutOrStdout())
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", Info("wrote"), out)
	return nil
}
