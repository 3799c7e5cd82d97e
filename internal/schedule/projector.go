package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"subtrack/internal/core"
)

// DefaultHorizonMonths is the number of monthly occurrences projected.
const DefaultHorizonMonths = 12

// ScheduledSubscription is a subscription due on a particular occurrence.
type ScheduledSubscription struct {
	core.Subscription
	IsEndOfMonth bool `json:"isEndOfMonth"`
}

// Occurrence groups every subscription due on one calendar day.
type Occurrence struct {
	Date          core.Date               `json:"date"`
	Subscriptions []ScheduledSubscription `json:"subscriptions"`
}

// Total returns the sum charged on the occurrence's day.
func (o Occurrence) Total() core.Yen {
	var total core.Yen
	for _, s := range o.Subscriptions {
		total += s.Amount
	}
	return total
}

// InvalidDateError reports a subscription whose anchor date cannot be parsed.
type InvalidDateError struct {
	SubscriptionID string
	Name           string
	Value          string
	Err            error
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("subscription %q (%s): invalid next payment date %q", e.Name, e.SubscriptionID, e.Value)
}

func (e *InvalidDateError) Unwrap() error {
	return e.Err
}

// UnsupportedCycleError reports a subscription with no registered generator.
type UnsupportedCycleError struct {
	SubscriptionID string
	Name           string
	Cycle          core.Cycle
}

func (e *UnsupportedCycleError) Error() string {
	return fmt.Sprintf("subscription %q (%s): unsupported cycle %q", e.Name, e.SubscriptionID, e.Cycle)
}

func (e *UnsupportedCycleError) Unwrap() error {
	return core.ErrInvalidCycle
}

// Result is the outcome of a projection. Subscriptions listed in Errors
// were skipped; everything else was projected.
type Result struct {
	Today       core.Date    `json:"today"`
	Occurrences []Occurrence `json:"occurrences"`
	Errors      []error      `json:"-"`
}

// Err joins the per-subscription errors, or returns nil.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Next returns the first projected date, or nil when nothing is upcoming.
func (r Result) Next() *core.Date {
	if len(r.Occurrences) == 0 {
		return nil
	}
	d := r.Occurrences[0].Date
	return &d
}

// Between returns the occurrences falling in [from, to].
func (r Result) Between(from, to core.Date) []Occurrence {
	out := make([]Occurrence, 0)
	for _, o := range r.Occurrences {
		if o.Date.Before(from) || o.Date.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out
}

type options struct {
	horizon int
	loc     *time.Location
	now     func() time.Time
}

// Option configures a projection.
type Option func(*options)

// WithHorizonMonths sets how many monthly occurrences are generated.
// Values below 1 are ignored.
func WithHorizonMonths(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.horizon = n
		}
	}
}

// WithLocation sets the calendar used to decide today's date in ProjectNow.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithClock replaces time.Now for ProjectNow.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		horizon: DefaultHorizonMonths,
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Project computes the upcoming payment occurrences of subs.
//
// Dates before today are dropped; a payment due today is kept. Occurrences
// on the same day are merged in input order and the groups are sorted by
// date. Subscriptions with an unparseable anchor or unknown cycle are
// skipped and reported in Result.Errors. Project reads its arguments only
// and may be called concurrently.
func Project(subs []core.Subscription, today core.Date, opts ...Option) Result {
	o := buildOptions(opts)
	today = core.DateOf(today.Time)

	res := Result{
		Today:       today,
		Occurrences: make([]Occurrence, 0),
	}
	index := make(map[string]int)

	for _, sub := range subs {
		anchor, err := sub.Anchor()
		if err != nil {
			res.Errors = append(res.Errors, &InvalidDateError{
				SubscriptionID: sub.ID,
				Name:           sub.Name,
				Value:          sub.NextPayment,
				Err:            err,
			})
			continue
		}

		gen, err := GetGenerator(sub.Cycle)
		if err != nil {
			res.Errors = append(res.Errors, &UnsupportedCycleError{
				SubscriptionID: sub.ID,
				Name:           sub.Name,
				Cycle:          sub.Cycle,
			})
			continue
		}

		for i := 0; i < gen.Count(o.horizon); i++ {
			date, endOfMonth := gen.Occurrence(anchor, i)
			if date.Before(today) {
				continue
			}

			key := date.String()
			idx, ok := index[key]
			if !ok {
				idx = len(res.Occurrences)
				index[key] = idx
				res.Occurrences = append(res.Occurrences, Occurrence{Date: date})
			}
			res.Occurrences[idx].Subscriptions = append(res.Occurrences[idx].Subscriptions,
				ScheduledSubscription{Subscription: sub, IsEndOfMonth: endOfMonth})
		}
	}

	sort.SliceStable(res.Occurrences, func(i, j int) bool {
		return res.Occurrences[i].Date.Before(res.Occurrences[j].Date)
	})

	return res
}

// ProjectNow projects from the current day in the configured location.
func ProjectNow(subs []core.Subscription, opts ...Option) Result {
	o := buildOptions(opts)
	return Project(subs, core.DateOf(o.now().In(o.loc)), opts...)
}

// Summarize computes the dashboard aggregates, filling NextUpcoming from
// the projection.
func Summarize(subs []core.Subscription, today core.Date, opts ...Option) core.Summary {
	s := core.Summarize(subs)
	s.NextUpcoming = Project(subs, today, opts...).Next()
	return s
}
