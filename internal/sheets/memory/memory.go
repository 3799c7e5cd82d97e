package memory

import (
	"context"
	"sync"

	"subtrack/internal/core"
	"subtrack/internal/schedule"
	"subtrack/internal/sheets"
)

// Writer keeps the last schedule written for each user.
type Writer struct {
	mu      sync.Mutex
	rows    map[string][][]any
	summary map[string]core.Summary
	writes  int
}

var _ sheets.ScheduleWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{
		rows:    make(map[string][][]any),
		summary: make(map[string]core.Summary),
	}
}

// WriteSchedule replaces the stored rows for userID.
func (w *Writer) WriteSchedule(_ context.Context, userID string, res schedule.Result, summary core.Summary) error {
	if userID == "" {
		return core.ErrEmptyUser
	}
	rows := sheets.Rows(res)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows[userID] = rows
	w.summary[userID] = summary
	w.writes++
	return nil
}

// Rows returns a copy of the rows last written for userID.
func (w *Writer) Rows(userID string) ([][]any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, ok := w.rows[userID]
	if !ok {
		return nil, false
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = append([]any(nil), r...)
	}
	return out, true
}

// Summary returns the aggregates last written for userID.
func (w *Writer) Summary(userID string) (core.Summary, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.summary[userID]
	return s, ok
}

// Writes reports how many schedules have been written.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
