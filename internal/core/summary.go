package core

import "sort"

// CategoryTotal is the monthly-equivalent spend of one category.
type CategoryTotal struct {
	Category string `json:"category"`
	Amount   Yen    `json:"amount"`
	Count    int    `json:"count"`
}

// Summary holds the dashboard aggregates for one user.
type Summary struct {
	Count             int   `json:"count"`
	MonthlyTotal      Yen   `json:"monthlyTotal"`
	YearlyTotal       Yen   `json:"yearlyTotal"`
	MonthlyEquivalent Yen   `json:"monthlyEquivalent"`
	// NextPayment is the earliest raw anchor date, which may lie in the past.
	NextPayment *Date `json:"nextPayment,omitempty"`
	// NextUpcoming is the earliest projected occurrence on or after today.
	NextUpcoming *Date           `json:"nextUpcoming,omitempty"`
	ByCategory   []CategoryTotal `json:"byCategory"`
}

// Summarize reduces subscriptions to totals. Subscriptions whose anchor does
// not parse still count towards totals but never become NextPayment.
// NextUpcoming is left empty; it depends on a projection.
func Summarize(subs []Subscription) Summary {
	s := Summary{Count: len(subs), ByCategory: []CategoryTotal{}}
	byCat := make(map[string]*CategoryTotal)
	var order []string

	for _, sub := range subs {
		var monthly Yen
		switch sub.Cycle {
		case Monthly:
			s.MonthlyTotal += sub.Amount
			monthly = sub.Amount
		case Yearly:
			s.YearlyTotal += sub.Amount
			monthly = sub.Amount / 12
		}

		ct, ok := byCat[sub.Category]
		if !ok {
			ct = &CategoryTotal{Category: sub.Category}
			byCat[sub.Category] = ct
			order = append(order, sub.Category)
		}
		ct.Amount += monthly
		ct.Count++

		anchor, err := sub.Anchor()
		if err != nil {
			continue
		}
		if s.NextPayment == nil || anchor.Before(*s.NextPayment) {
			d := anchor
			s.NextPayment = &d
		}
	}

	s.MonthlyEquivalent = s.MonthlyTotal + s.YearlyTotal/12

	for _, name := range order {
		s.ByCategory = append(s.ByCategory, *byCat[name])
	}
	sort.SliceStable(s.ByCategory, func(i, j int) bool {
		return s.ByCategory[i].Amount > s.ByCategory[j].Amount
	})

	return s
}
