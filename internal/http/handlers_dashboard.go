package http

import (
	"bytes"
	"errors"
	"net/http"

	"subtrack/internal/auth"
	"subtrack/internal/core"
	"subtrack/internal/log"
	"subtrack/internal/schedule"
	"subtrack/internal/services"
)

// upcomingOnDashboard is how many payment days the dashboard lists.
const upcomingOnDashboard = 10

type dashboardData struct {
	Today         core.Date
	Summary       core.Summary
	Upcoming      []schedule.Occurrence
	Subscriptions []core.Subscription
	Categories    map[string]string
	Skipped       []skippedSubscription
}

type calendarData struct {
	View       services.MonthView
	Categories map[string]string
	Skipped    []skippedSubscription
	PrevYear   int
	PrevMonth  int
	NextYear   int
	NextMonth  int
}

// handleDashboard renders the main dashboard page
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserFromRequest(r)

	res, summary, err := s.calendar.Overview(ctx, userID)
	if err != nil {
		s.renderError(w, r, "Dashboard load failed", err)
		return
	}
	subs, err := s.subs.List(ctx, userID, services.ListOptions{Sort: services.SortNext})
	if err != nil {
		s.renderError(w, r, "Dashboard load failed", err)
		return
	}
	cats, err := s.categories.List(ctx, userID)
	if err != nil {
		s.renderError(w, r, "Dashboard load failed", err)
		return
	}

	upcoming := res.Occurrences
	if len(upcoming) > upcomingOnDashboard {
		upcoming = upcoming[:upcomingOnDashboard]
	}

	s.render(w, r, "dashboard_page", dashboardData{
		Today:         res.Today,
		Summary:       summary,
		Upcoming:      upcoming,
		Subscriptions: subs,
		Categories:    categoryNames(cats),
		Skipped:       skippedFrom(res.Errors),
	})
}

// handleCalendar renders the month grid for ?year=&month=.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserFromRequest(r)

	params, err := ParseMonthParams(r.URL.Query(), s.calendar.Today())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	view, err := s.calendar.Month(ctx, userID, params.Year, params.Month)
	if errors.Is(err, services.ErrMonthOutOfRange) {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err != nil {
		s.renderError(w, r, "Calendar load failed", err)
		return
	}
	cats, err := s.categories.List(ctx, userID)
	if err != nil {
		s.renderError(w, r, "Calendar load failed", err)
		return
	}

	data := calendarData{
		View:       view,
		Categories: categoryNames(cats),
		Skipped:    skippedFrom(view.Errors),
	}
	data.PrevYear, data.PrevMonth = view.Prev()
	data.NextYear, data.NextMonth = view.Next()

	s.render(w, r, "calendar_page", data)
}

// render executes into a buffer so a template failure still yields a clean
// 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), msg, log.FieldError, err, log.FieldPath, r.URL.Path)
	http.Error(w, http.StatusText(statusFor(err)), statusFor(err))
}
