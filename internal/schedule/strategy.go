// Package schedule projects subscriptions into dated payment occurrences.
//
// This file implements the Strategy Pattern for billing cycles. Each cycle
// has a generator that knows how many occurrences fall inside the horizon
// and where the i-th one lands.
package schedule

import (
	"fmt"
	"sync"
	"time"

	"subtrack/internal/core"
)

// Generator is the strategy interface for one billing cycle.
type Generator interface {
	// Count returns how many occurrences to generate for a horizon
	// expressed in months.
	Count(horizonMonths int) int

	// Occurrence returns the i-th payment date counted from the anchor and
	// whether it was moved from day 31 to a shorter month's last day.
	Occurrence(anchor core.Date, i int) (date core.Date, endOfMonth bool)
}

// MonthlyGenerator yields one payment per month on the anchor's day.
type MonthlyGenerator struct{}

// Count returns one occurrence per month of the horizon.
func (MonthlyGenerator) Count(horizonMonths int) int {
	return horizonMonths
}

// Occurrence returns the payment i months after the anchor.
func (MonthlyGenerator) Occurrence(anchor core.Date, i int) (core.Date, bool) {
	return clampedDate(anchor.Year(), anchor.Month()+i, anchor.Day())
}

// YearlyGenerator yields the anchor itself. A twelve month horizon never
// reaches the following year's payment.
type YearlyGenerator struct{}

// Count always returns 1.
func (YearlyGenerator) Count(int) int {
	return 1
}

// Occurrence returns the payment i years after the anchor.
func (YearlyGenerator) Occurrence(anchor core.Date, i int) (core.Date, bool) {
	return clampedDate(anchor.Year()+i, anchor.Month(), anchor.Day())
}

// clampedDate builds a fresh date for the target month. Months beyond 12
// roll into the following years. Day-31 anchors follow the month end;
// days 29 and 30 are capped at the last day without being flagged.
func clampedDate(year, month, originalDay int) (core.Date, bool) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	y, m := first.Year(), int(first.Month())
	lastDay := core.LastDayOfMonth(y, m)

	if originalDay == 31 {
		return core.NewDate(y, m, lastDay), lastDay != 31
	}
	return core.NewDate(y, m, min(originalDay, lastDay)), false
}

// generators maps billing cycles to their strategies.
var (
	generatorsMu sync.RWMutex
	generators   = map[core.Cycle]Generator{
		core.Monthly: MonthlyGenerator{},
		core.Yearly:  YearlyGenerator{},
	}
)

// GetGenerator returns the generator registered for a cycle.
func GetGenerator(cycle core.Cycle) (Generator, error) {
	generatorsMu.RLock()
	g, ok := generators[cycle]
	generatorsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown cycle: %s", cycle)
	}
	return g, nil
}

// RegisterGenerator adds or replaces the generator for a cycle. It may be
// called while projections are running.
func RegisterGenerator(cycle core.Cycle, g Generator) {
	generatorsMu.Lock()
	defer generatorsMu.Unlock()
	generators[cycle] = g
}

func unregisterGenerator(cycle core.Cycle) {
	generatorsMu.Lock()
	defer generatorsMu.Unlock()
	delete(generators, cycle)
}
