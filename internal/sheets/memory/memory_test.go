package memory

import (
	"context"
	"errors"
	"testing"

	"subtrack/internal/core"
	"subtrack/internal/schedule"
)

func TestWriterReplacesSchedule(t *testing.T) {
	w := New()
	ctx := context.Background()
	subs := []core.Subscription{
		{ID: "1", Name: "Spotify", Amount: 980, Cycle: core.Monthly, Category: "music", NextPayment: "2024-03-10"},
	}
	today := core.NewDate(2024, 3, 1)

	if err := w.WriteSchedule(ctx, "u1", schedule.Project(subs, today), core.Summarize(subs)); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, ok := w.Rows("u1")
	if !ok || len(rows) != 13 {
		t.Fatalf("expected header + 12 rows, got %d (ok=%v)", len(rows), ok)
	}

	if err := w.WriteSchedule(ctx, "u1", schedule.Project(nil, today), core.Summarize(nil)); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, _ = w.Rows("u1")
	if len(rows) != 1 {
		t.Fatalf("expected header only after replace, got %d", len(rows))
	}
	if w.Writes() != 2 {
		t.Fatalf("expected 2 writes, got %d", w.Writes())
	}
	if s, ok := w.Summary("u1"); !ok || s.Count != 0 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestWriterRowsAreCopies(t *testing.T) {
	w := New()
	subs := []core.Subscription{
		{ID: "1", Name: "Spotify", Amount: 980, Cycle: core.Yearly, Category: "music", NextPayment: "2024-03-10"},
	}
	_ = w.WriteSchedule(context.Background(), "u1", schedule.Project(subs, core.NewDate(2024, 3, 1)), core.Summary{})

	rows, _ := w.Rows("u1")
	rows[1][1] = "changed"
	again, _ := w.Rows("u1")
	if again[1][1] != "Spotify" {
		t.Fatalf("stored rows were mutated: %v", again[1])
	}
}

func TestWriterRequiresUser(t *testing.T) {
	err := New().WriteSchedule(context.Background(), "", schedule.Result{}, core.Summary{})
	if !errors.Is(err, core.ErrEmptyUser) {
		t.Fatalf("expected ErrEmptyUser, got %v", err)
	}
	if _, ok := New().Rows("nobody"); ok {
		t.Fatal("expected no rows for unknown user")
	}
}
