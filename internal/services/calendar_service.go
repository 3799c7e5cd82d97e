package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"subtrack/internal/cache"
	"subtrack/internal/core"
	"subtrack/internal/ports"
	"subtrack/internal/schedule"
)

// MaxHorizonMonths bounds the horizon accepted from callers.
const MaxHorizonMonths = 24

// ErrMonthOutOfRange is returned for month views more than
// MaxHorizonMonths away from the current month.
var ErrMonthOutOfRange = fmt.Errorf("month must be within %d months of today", MaxHorizonMonths)

// CalendarService projects a user's subscriptions. Subscription lists are
// cached per user until the next change notification.
type CalendarService struct {
	repo   ports.SubscriptionRepository
	cache  cache.Cache[[]core.Subscription]
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

func NewCalendarService(repo ports.SubscriptionRepository, c cache.Cache[[]core.Subscription], loc *time.Location, logger *slog.Logger) *CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarService{
		repo:   repo,
		cache:  c,
		loc:    loc,
		now:    time.Now,
		logger: logger.With("component", "calendar_service"),
	}
}

// SetClock replaces time.Now.
func (s *CalendarService) SetClock(now func() time.Time) {
	s.now = now
}

// Today returns the current calendar day in the service's location.
func (s *CalendarService) Today() core.Date {
	return core.DateOf(s.now().In(s.loc))
}

// Location returns the calendar location.
func (s *CalendarService) Location() *time.Location {
	return s.loc
}

// Subscriptions returns the user's subscriptions, from cache when possible.
func (s *CalendarService) Subscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	if s.cache != nil {
		if subs, ok := s.cache.Get(userID); ok {
			return subs, nil
		}
	}

	subs, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(userID, subs)
	}
	return subs, nil
}

// Notify implements ports.ChangeNotifier by dropping the cached list.
func (s *CalendarService) Notify(_ context.Context, userID string) {
	s.Invalidate(userID)
}

func (s *CalendarService) Invalidate(userID string) {
	if s.cache != nil {
		s.cache.Delete(userID)
	}
}

// Occurrences projects the user's subscriptions over months months from
// today. Skipped subscriptions are logged and returned in Result.Errors.
func (s *CalendarService) Occurrences(ctx context.Context, userID string, months int) (schedule.Result, error) {
	if months < 1 || months > MaxHorizonMonths {
		return schedule.Result{}, fmt.Errorf("horizon must be between 1 and %d months", MaxHorizonMonths)
	}

	subs, err := s.Subscriptions(ctx, userID)
	if err != nil {
		return schedule.Result{}, err
	}

	res := schedule.Project(subs, s.Today(), schedule.WithHorizonMonths(months))
	s.logSkipped(ctx, userID, res.Errors)
	return res, nil
}

// Summary returns the dashboard aggregates with NextUpcoming filled in.
func (s *CalendarService) Summary(ctx context.Context, userID string) (core.Summary, error) {
	subs, err := s.Subscriptions(ctx, userID)
	if err != nil {
		return core.Summary{}, err
	}
	return schedule.Summarize(subs, s.Today()), nil
}

// Overview returns the projection and summary from a single load.
func (s *CalendarService) Overview(ctx context.Context, userID string) (schedule.Result, core.Summary, error) {
	subs, err := s.Subscriptions(ctx, userID)
	if err != nil {
		return schedule.Result{}, core.Summary{}, err
	}

	res := schedule.Project(subs, s.Today())
	s.logSkipped(ctx, userID, res.Errors)

	summary := core.Summarize(subs)
	summary.NextUpcoming = res.Next()
	return res, summary, nil
}

func (s *CalendarService) logSkipped(ctx context.Context, userID string, errs []error) {
	for _, err := range errs {
		var ide *schedule.InvalidDateError
		if errors.As(err, &ide) {
			s.logger.WarnContext(ctx, "Skipping subscription with invalid next payment date",
				"user_id", userID,
				"subscription_id", ide.SubscriptionID,
				"value", ide.Value)
			continue
		}
		s.logger.WarnContext(ctx, "Skipping subscription", "user_id", userID, "error", err)
	}
}

// Day is one cell of a month grid.
type Day struct {
	Date       core.Date
	InMonth    bool
	IsToday    bool
	Occurrence *schedule.Occurrence
}

// MonthView is a Sunday-first month grid with the payments due in it.
type MonthView struct {
	Year, Month int
	Today       core.Date
	Weeks       [][]Day
	Occurrences []schedule.Occurrence
	Total       core.Yen
	Errors      []error
}

// Prev returns the year and month before the view's month.
func (v MonthView) Prev() (int, int) {
	d := core.NewDate(v.Year, v.Month-1, 1)
	return d.Year(), d.Month()
}

// Next returns the year and month after the view's month.
func (v MonthView) Next() (int, int) {
	d := core.NewDate(v.Year, v.Month+1, 1)
	return d.Year(), d.Month()
}

// Month builds the grid for year/month. Past days carry no payments
// because the projection starts today.
func (s *CalendarService) Month(ctx context.Context, userID string, year, month int) (MonthView, error) {
	if month < 1 || month > 12 {
		return MonthView{}, fmt.Errorf("invalid month %d", month)
	}

	today := s.Today()
	if d := monthsBetween(today, year, month); d > MaxHorizonMonths || d < -MaxHorizonMonths {
		return MonthView{}, fmt.Errorf("%w: %04d-%02d", ErrMonthOutOfRange, year, month)
	}

	subs, err := s.Subscriptions(ctx, userID)
	if err != nil {
		return MonthView{}, err
	}

	first := core.NewDate(year, month, 1)
	last := core.NewDate(year, month, core.LastDayOfMonth(year, month))

	res := schedule.Project(subs, today, schedule.WithHorizonMonths(horizonThrough(subs, year, month)))
	s.logSkipped(ctx, userID, res.Errors)

	view := MonthView{
		Year:        year,
		Month:       month,
		Today:       today,
		Occurrences: res.Between(first, last),
		Errors:      res.Errors,
	}

	byDay := make(map[int]*schedule.Occurrence, len(view.Occurrences))
	for i := range view.Occurrences {
		o := &view.Occurrences[i]
		byDay[o.Date.Day()] = o
		view.Total += o.Total()
	}

	start := core.NewDate(year, month, 1-int(first.Weekday()))
	for d := start; !d.After(last) || d.Weekday() != time.Sunday; d = core.NewDate(d.Year(), d.Month(), d.Day()+1) {
		if d.Weekday() == time.Sunday {
			view.Weeks = append(view.Weeks, make([]Day, 0, 7))
		}
		day := Day{
			Date:    d,
			InMonth: d.Month() == month && d.Year() == year,
			IsToday: d.Equal(today),
		}
		if day.InMonth {
			day.Occurrence = byDay[d.Day()]
		}
		w := len(view.Weeks) - 1
		view.Weeks[w] = append(view.Weeks[w], day)
	}

	return view, nil
}

// monthsBetween counts calendar months from d's month to year/month.
func monthsBetween(d core.Date, year, month int) int {
	return (year-d.Year())*12 + month - d.Month()
}

// horizonThrough returns the monthly horizon that carries every monthly
// anchor in subs at least up to year/month.
func horizonThrough(subs []core.Subscription, year, month int) int {
	horizon := schedule.DefaultHorizonMonths
	for _, sub := range subs {
		if sub.Cycle != core.Monthly {
			continue
		}
		anchor, err := core.ParseDate(sub.NextPayment)
		if err != nil {
			continue
		}
		horizon = max(horizon, monthsBetween(anchor, year, month)+1)
	}
	return horizon
}
