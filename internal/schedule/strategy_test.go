package schedule

import (
	"sync"
	"testing"

	"subtrack/internal/core"
)

func TestGetGenerator(t *testing.T) {
	tests := []struct {
		cycle   core.Cycle
		wantErr bool
	}{
		{core.Monthly, false},
		{core.Yearly, false},
		{"weekly", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.cycle), func(t *testing.T) {
			g, err := GetGenerator(tt.cycle)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetGenerator(%q) error = %v, wantErr %v", tt.cycle, err, tt.wantErr)
			}
			if !tt.wantErr && g == nil {
				t.Fatalf("GetGenerator(%q) returned nil generator", tt.cycle)
			}
		})
	}
}

func TestGeneratorCounts(t *testing.T) {
	if got := (MonthlyGenerator{}).Count(12); got != 12 {
		t.Errorf("MonthlyGenerator.Count(12) = %d, want 12", got)
	}
	if got := (YearlyGenerator{}).Count(12); got != 1 {
		t.Errorf("YearlyGenerator.Count(12) = %d, want 1", got)
	}
}

func TestYearlyGenerator_LeapDayAnchor(t *testing.T) {
	anchor := core.NewDate(2024, 2, 29)
	got, eom := YearlyGenerator{}.Occurrence(anchor, 1)
	if got.String() != "2025-02-28" {
		t.Errorf("Occurrence(2024-02-29, 1) = %s, want 2025-02-28", got)
	}
	if eom {
		t.Errorf("day-29 anchor must not be flagged as end of month")
	}
}

func TestClampedDate(t *testing.T) {
	tests := []struct {
		year, month, day int
		want             string
		wantEOM          bool
	}{
		{2024, 2, 31, "2024-02-29", true},
		{2023, 2, 31, "2023-02-28", true},
		{2024, 4, 31, "2024-04-30", true},
		{2024, 5, 31, "2024-05-31", false},
		{2024, 2, 30, "2024-02-29", false},
		{2024, 13, 15, "2025-01-15", false},
		{2024, 14, 31, "2025-02-28", true},
		{2024, 6, 1, "2024-06-01", false},
	}

	for _, tt := range tests {
		got, eom := clampedDate(tt.year, tt.month, tt.day)
		if got.String() != tt.want || eom != tt.wantEOM {
			t.Errorf("clampedDate(%d, %d, %d) = %s, %v; want %s, %v",
				tt.year, tt.month, tt.day, got, eom, tt.want, tt.wantEOM)
		}
	}
}

type everyOtherMonth struct{}

func (everyOtherMonth) Count(h int) int { return h / 2 }
func (everyOtherMonth) Occurrence(anchor core.Date, i int) (core.Date, bool) {
	return MonthlyGenerator{}.Occurrence(anchor, i*2)
}

func TestRegisterGenerator(t *testing.T) {
	const bimonthly core.Cycle = "bimonthly"
	RegisterGenerator(bimonthly, everyOtherMonth{})
	t.Cleanup(func() { unregisterGenerator(bimonthly) })

	sub := core.Subscription{ID: "1", Name: "Magazine", Amount: 800, Cycle: bimonthly, NextPayment: "2024-01-05"}
	res := Project([]core.Subscription{sub}, core.NewDate(2024, 1, 1))
	if len(res.Occurrences) != 6 {
		t.Fatalf("expected 6 occurrences, got %d", len(res.Occurrences))
	}
	if got := res.Occurrences[1].Date.String(); got != "2024-03-05" {
		t.Errorf("second occurrence = %s, want 2024-03-05", got)
	}
}

func TestRegisterGeneratorDuringProjection(t *testing.T) {
	const quarterly core.Cycle = "quarterly"
	t.Cleanup(func() { unregisterGenerator(quarterly) })

	subs := []core.Subscription{
		{ID: "1", Name: "Netflix", Amount: 1490, Cycle: core.Monthly, NextPayment: "2024-01-31"},
		{ID: "2", Name: "Magazine", Amount: 800, Cycle: quarterly, NextPayment: "2024-01-05"},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res := Project(subs, core.NewDate(2024, 1, 1))
				if len(res.Occurrences) < 12 {
					t.Errorf("monthly occurrences missing: got %d days", len(res.Occurrences))
					return
				}
			}
		}()
	}
	for j := 0; j < 50; j++ {
		RegisterGenerator(quarterly, everyOtherMonth{})
		unregisterGenerator(quarterly)
	}
	wg.Wait()
}
