// Package export renders a user's subscriptions as iCalendar feeds and
// printable payment schedules.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"subtrack/internal/core"
	"subtrack/internal/schedule"
)

const (
	icsDateLayout     = "20060102"
	icsDateTimeLayout = "20060102T150405Z"
	icsLineLimit      = 75
	prodID            = "-//subtrack//payment schedule//EN"
)

// Rule returns the recurrence rule for a subscription, starting on its
// anchor date.
//
// Monthly anchors on days 29 and 30 fall back to the last day of shorter
// months, and day 31 always means the last day of the month. A yearly
// anchor on February 29 recurs on the last day of February.
func Rule(sub core.Subscription) (*rrule.RRule, error) {
	anchor, err := sub.Anchor()
	if err != nil {
		return nil, &schedule.InvalidDateError{
			SubscriptionID: sub.ID,
			Name:           sub.Name,
			Value:          sub.NextPayment,
			Err:            err,
		}
	}

	opts := rrule.ROption{Dtstart: anchor.Time}
	day := anchor.Day()

	switch sub.Cycle {
	case core.Monthly:
		opts.Freq = rrule.MONTHLY
		switch {
		case day == 31:
			opts.Bymonthday = []int{-1}
		case day > 28:
			opts.Bymonthday = []int{day, -1}
			opts.Bysetpos = []int{1}
		default:
			opts.Bymonthday = []int{day}
		}
	case core.Yearly:
		opts.Freq = rrule.YEARLY
		if anchor.Month() == 2 && day == 29 {
			opts.Bymonth = []int{2}
			opts.Bymonthday = []int{-1}
		}
	default:
		return nil, &schedule.UnsupportedCycleError{
			SubscriptionID: sub.ID,
			Name:           sub.Name,
			Cycle:          sub.Cycle,
		}
	}

	return rrule.NewRRule(opts)
}

// ICS renders subs as a VCALENDAR with one recurring all-day VEVENT per
// subscription. Subscriptions whose rule cannot be built are left out and
// returned as skipped.
func ICS(subs []core.Subscription, now time.Time) (data []byte, skipped []error) {
	var b strings.Builder
	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:"+prodID)
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, "METHOD:PUBLISH")
	writeLine(&b, "X-WR-CALNAME:Subscriptions")

	stamp := now.UTC().Format(icsDateTimeLayout)
	for _, sub := range subs {
		r, err := Rule(sub)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		start := r.GetDTStart()

		writeLine(&b, "BEGIN:VEVENT")
		writeLine(&b, "UID:"+uid(sub))
		writeLine(&b, "DTSTAMP:"+stamp)
		writeLine(&b, "DTSTART;VALUE=DATE:"+start.Format(icsDateLayout))
		writeLine(&b, "DTEND;VALUE=DATE:"+start.AddDate(0, 0, 1).Format(icsDateLayout))
		writeLine(&b, "RRULE:"+r.OrigOptions.RRuleString())
		writeLine(&b, "SUMMARY:"+escapeText(fmt.Sprintf("%s %s", sub.Name, core.FormatYen(sub.Amount))))
		writeLine(&b, "DESCRIPTION:"+escapeText(fmt.Sprintf("%s payment of %s", sub.Cycle, core.FormatYen(sub.Amount))))
		if sub.Category != "" {
			writeLine(&b, "CATEGORIES:"+escapeText(sub.Category))
		}
		writeLine(&b, "TRANSP:TRANSPARENT")
		writeLine(&b, "END:VEVENT")
	}

	writeLine(&b, "END:VCALENDAR")
	return []byte(b.String()), skipped
}

func uid(sub core.Subscription) string {
	id := sub.ID
	if id == "" {
		id = fmt.Sprintf("%s-%s", sub.Name, sub.NextPayment)
	}
	return escapeText(id) + "@subtrack"
}

// escapeText escapes a TEXT value per RFC 5545 section 3.3.11.
func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
		"\r", `\n`,
	)
	return r.Replace(s)
}

// writeLine folds content lines longer than 75 octets without splitting
// a UTF-8 sequence, and terminates them with CRLF.
func writeLine(b *strings.Builder, line string) {
	limit := icsLineLimit
	for len(line) > limit {
		cut := limit
		for cut > 0 && !isRuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
		// continuation lines carry a leading space
		limit = icsLineLimit - 1
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}

func isRuneStart(c byte) bool {
	return c&0xC0 != 0x80
}
