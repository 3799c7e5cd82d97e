package export

import (
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"subtrack/internal/core"
	"subtrack/internal/schedule"
)

var (
	pdfHeaderColor = props.Color{Red: 50, Green: 50, Blue: 50}
	pdfMutedColor  = props.Color{Red: 120, Green: 120, Blue: 120}
	pdfLineColor   = props.Color{Red: 200, Green: 200, Blue: 200}
)

// PDF renders the projected payment schedule, one section per payment day,
// followed by the totals, and writes the document to w.
func PDF(w io.Writer, title string, res schedule.Result, summary core.Summary) error {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(12, title, props.Text{
			Style: fontstyle.Bold,
			Size:  16,
			Color: &pdfHeaderColor,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, fmt.Sprintf("Payment schedule from %s", res.Today), props.Text{
			Size:  12,
			Color: &pdfMutedColor,
		}),
	)
	m.AddRow(4, line.NewCol(12, props.Line{Color: &pdfLineColor}))
	m.AddRow(4)

	if len(res.Occurrences) == 0 {
		m.AddRow(8, text.NewCol(12, "No upcoming payments", props.Text{Size: 10, Color: &pdfMutedColor}))
	}

	for _, occ := range res.Occurrences {
		m.AddRow(8,
			text.NewCol(9, fmt.Sprintf("%s, %s", occ.Date, occ.Date.Weekday()), props.Text{
				Style: fontstyle.Bold,
				Size:  10,
				Color: &pdfHeaderColor,
			}),
			text.NewCol(3, core.FormatYen(occ.Total()), props.Text{
				Style: fontstyle.Bold,
				Size:  10,
				Align: align.Right,
				Color: &pdfHeaderColor,
			}),
		)

		for _, s := range occ.Subscriptions {
			label := "  " + s.Name
			if s.IsEndOfMonth {
				label += " (end of month)"
			}
			m.AddRow(6,
				text.NewCol(6, label, props.Text{Size: 9}),
				text.NewCol(3, s.Category, props.Text{Size: 8, Color: &pdfMutedColor}),
				text.NewCol(3, core.FormatYen(s.Amount), props.Text{
					Size:  9,
					Align: align.Right,
				}),
			)
		}

		m.AddRow(4)
	}

	m.AddRow(4, line.NewCol(12, props.Line{Color: &pdfLineColor}))
	for _, row := range []struct {
		label  string
		amount core.Yen
	}{
		{"Monthly total", summary.MonthlyTotal},
		{"Yearly total", summary.YearlyTotal},
		{"Monthly equivalent", summary.MonthlyEquivalent},
	} {
		m.AddRow(8,
			text.NewCol(9, row.label, props.Text{
				Style: fontstyle.Bold,
				Size:  11,
				Color: &pdfHeaderColor,
			}),
			text.NewCol(3, core.FormatYen(row.amount), props.Text{
				Style: fontstyle.Bold,
				Size:  11,
				Align: align.Right,
				Color: &pdfHeaderColor,
			}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return fmt.Errorf("generating PDF: %w", err)
	}

	if _, err := w.Write(doc.GetBytes()); err != nil {
		return fmt.Errorf("writing PDF: %w", err)
	}
	return nil
}
