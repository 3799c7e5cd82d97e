package http

import (
	"html/template"

	"subtrack/internal/core"
)

var weekdaysJA = []string{"日", "月", "火", "水", "木", "金", "土"}

// templateFuncs are available to every page template.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"yen": func(y core.Yen) string { return core.FormatYen(y) },
		"weekday": func(d core.Date) string {
			return weekdaysJA[d.Weekday()]
		},
		"monthDay": func(d core.Date) string {
			return d.Format("1/2")
		},
		"cycleLabel": func(c core.Cycle) string {
			switch c {
			case core.Monthly:
				return "月額"
			case core.Yearly:
				return "年額"
			}
			return string(c)
		},
		"categoryName": func(names map[string]string, id string) string {
			if n, ok := names[id]; ok {
				return n
			}
			return id
		},
	}
}

// categoryNames maps category ids to display names.
func categoryNames(cats []core.Category) map[string]string {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names
}
