package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack/internal/cache"
	"subtrack/internal/core"
	"subtrack/internal/storage/memory"
)

func newCalendar(t *testing.T, subs ...core.Subscription) (*CalendarService, *memory.Store) {
	t.Helper()
	store := memory.New(subs...)
	svc := NewCalendarService(store, cache.NewTTLCache[[]core.Subscription](time.Minute, time.Minute), time.UTC, nil)
	svc.SetClock(func() time.Time { return time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC) })
	return svc, store
}

func TestCalendarService_Occurrences(t *testing.T) {
	svc, _ := newCalendar(t,
		core.Subscription{ID: "n", UserID: "u1", Name: "Netflix", Amount: 1490, Cycle: core.Monthly, NextPayment: "2024-01-31"},
		core.Subscription{ID: "b", UserID: "u1", Name: "Broken", Amount: 100, Cycle: core.Monthly, NextPayment: "31/01/2024"},
	)

	res, err := svc.Occurrences(context.Background(), "u1", 12)
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 11)
	assert.Equal(t, "2024-02-29", res.Occurrences[0].Date.String())
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], core.ErrInvalidDate)

	_, err = svc.Occurrences(context.Background(), "u1", 0)
	assert.Error(t, err)
	_, err = svc.Occurrences(context.Background(), "u1", MaxHorizonMonths+1)
	assert.Error(t, err)
}

func TestCalendarService_CacheInvalidation(t *testing.T) {
	ctx := context.Background()
	svc, store := newCalendar(t,
		core.Subscription{ID: "n", UserID: "u1", Name: "Netflix", Amount: 1490, Cycle: core.Monthly, NextPayment: "2024-02-10"},
	)

	s, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.Yen(1490), s.MonthlyTotal)

	_, err = store.Create(ctx, core.Subscription{UserID: "u1", Name: "Prime", Amount: 4900, Cycle: core.Yearly, NextPayment: "2024-06-20"})
	require.NoError(t, err)

	s, _ = svc.Summary(ctx, "u1")
	assert.Equal(t, core.Yen(0), s.YearlyTotal, "cached list is served until notified")

	svc.Notify(ctx, "u1")
	s, _ = svc.Summary(ctx, "u1")
	assert.Equal(t, core.Yen(4900), s.YearlyTotal)
	require.NotNil(t, s.NextUpcoming)
	assert.Equal(t, "2024-02-10", s.NextUpcoming.String())
}

func TestCalendarService_Month(t *testing.T) {
	svc, _ := newCalendar(t,
		core.Subscription{ID: "n", UserID: "u1", Name: "Netflix", Amount: 1490, Cycle: core.Monthly, NextPayment: "2024-01-31"},
		core.Subscription{ID: "s", UserID: "u1", Name: "Spotify", Amount: 980, Cycle: core.Monthly, NextPayment: "2024-01-29"},
	)

	view, err := svc.Month(context.Background(), "u1", 2024, 2)
	require.NoError(t, err)

	// February 2024 starts on a Thursday and ends on a Thursday.
	require.Len(t, view.Weeks, 5)
	for _, w := range view.Weeks {
		assert.Len(t, w, 7)
		assert.Equal(t, time.Sunday, w[0].Date.Weekday())
	}
	assert.Equal(t, "2024-01-28", view.Weeks[0][0].Date.String())
	assert.False(t, view.Weeks[0][0].InMonth)
	assert.True(t, view.Weeks[0][4].IsToday)

	require.Len(t, view.Occurrences, 1)
	feb29 := view.Occurrences[0]
	assert.Equal(t, "2024-02-29", feb29.Date.String())
	require.Len(t, feb29.Subscriptions, 2)
	assert.Equal(t, core.Yen(1490+980), view.Total)

	cell := view.Weeks[4][4]
	assert.Equal(t, "2024-02-29", cell.Date.String())
	require.NotNil(t, cell.Occurrence)

	py, pm := view.Prev()
	ny, nm := view.Next()
	assert.Equal(t, [2]int{2024, 1}, [2]int{py, pm})
	assert.Equal(t, [2]int{2024, 3}, [2]int{ny, nm})
}

func TestCalendarService_MonthBeyondDefaultHorizon(t *testing.T) {
	svc, _ := newCalendar(t,
		core.Subscription{ID: "n", UserID: "u1", Name: "Netflix", Amount: 1490, Cycle: core.Monthly, NextPayment: "2024-02-15"},
	)

	view, err := svc.Month(context.Background(), "u1", 2025, 6)
	require.NoError(t, err)
	require.Len(t, view.Occurrences, 1)
	assert.Equal(t, "2025-06-15", view.Occurrences[0].Date.String())

	_, err = svc.Month(context.Background(), "u1", 2025, 13)
	assert.Error(t, err)
}

func TestCalendarService_MonthKeepsAnchorsBeforeCurrentMonth(t *testing.T) {
	svc, _ := newCalendar(t,
		core.Subscription{ID: "n", UserID: "u1", Name: "Netflix", Amount: 1490, Cycle: core.Monthly, NextPayment: "2024-01-15"},
	)

	for _, tt := range []struct {
		year, month int
		want        string
	}{
		{2024, 12, "2024-12-15"},
		{2025, 1, "2025-01-15"},
		{2025, 3, "2025-03-15"},
		{2026, 2, "2026-02-15"},
	} {
		view, err := svc.Month(context.Background(), "u1", tt.year, tt.month)
		require.NoError(t, err)
		require.Len(t, view.Occurrences, 1, tt.want)
		assert.Equal(t, tt.want, view.Occurrences[0].Date.String())
	}
}

func TestCalendarService_MonthOutOfRange(t *testing.T) {
	subs := make([]core.Subscription, 0, 50)
	for i := range 50 {
		subs = append(subs, core.Subscription{
			ID: fmt.Sprintf("s%d", i), UserID: "u1", Name: "Sub",
			Amount: 100, Cycle: core.Monthly, NextPayment: "2024-02-10",
		})
	}
	svc, _ := newCalendar(t, subs...)

	_, err := svc.Month(context.Background(), "u1", 9999, 12)
	assert.ErrorIs(t, err, ErrMonthOutOfRange)

	_, err = svc.Month(context.Background(), "u1", 2026, 3)
	assert.ErrorIs(t, err, ErrMonthOutOfRange)

	_, err = svc.Month(context.Background(), "u1", 2021, 1)
	assert.ErrorIs(t, err, ErrMonthOutOfRange)

	view, err := svc.Month(context.Background(), "u1", 2026, 2)
	require.NoError(t, err)
	assert.Len(t, view.Occurrences, 1)
	assert.Len(t, view.Occurrences[0].Subscriptions, 50)
}
