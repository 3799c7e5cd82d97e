package sheets

import (
	"context"
	"strings"

	"subtrack/internal/core"
	"subtrack/internal/schedule"
)

// Ports for outbound adapters.
type (
	// ScheduleWriter replaces the exported payment schedule of one user.
	ScheduleWriter interface {
		WriteSchedule(ctx context.Context, userID string, res schedule.Result, summary core.Summary) error
	}
)

// Header is the first row of every exported schedule.
var Header = []string{"Date", "Name", "Amount", "Cycle", "Category", "End of month"}

// Rows flattens a projection into spreadsheet rows, one per subscription
// per occurrence, preceded by Header. Text cells are escaped so spreadsheet
// applications never evaluate them as formulas.
func Rows(res schedule.Result) [][]any {
	rows := make([][]any, 0, len(res.Occurrences)+1)
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	rows = append(rows, header)

	for _, occ := range res.Occurrences {
		for _, s := range occ.Subscriptions {
			rows = append(rows, []any{
				occ.Date.String(),
				EscapeFormula(s.Name),
				int64(s.Amount),
				string(s.Cycle),
				EscapeFormula(s.Category),
				s.IsEndOfMonth,
			})
		}
	}
	return rows
}

// EscapeFormula prefixes a quote to values a spreadsheet would otherwise
// interpret as a formula.
func EscapeFormula(s string) string {
	if s == "" {
		return s
	}
	if s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	switch trimmed[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return s
}

// SummaryRows renders the dashboard aggregates as label/value pairs.
func SummaryRows(s core.Summary) [][]any {
	next := ""
	if s.NextUpcoming != nil {
		next = s.NextUpcoming.String()
	}
	return [][]any{
		{"Subscriptions", s.Count},
		{"Monthly total", int64(s.MonthlyTotal)},
		{"Yearly total", int64(s.YearlyTotal)},
		{"Monthly equivalent", int64(s.MonthlyEquivalent)},
		{"Next payment", next},
	}
}
