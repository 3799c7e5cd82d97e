package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"subtrack/internal/auth"
	"subtrack/internal/core"
	"subtrack/internal/export"
	"subtrack/internal/log"
	"subtrack/internal/schedule"
)

// skippedSubscription describes a subscription left out of a projection.
type skippedSubscription struct {
	SubscriptionID string `json:"subscriptionId,omitempty"`
	Name           string `json:"name,omitempty"`
	Value          string `json:"value,omitempty"`
	Error          string `json:"error"`
}

func skippedFrom(errs []error) []skippedSubscription {
	out := make([]skippedSubscription, 0, len(errs))
	for _, err := range errs {
		item := skippedSubscription{Error: err.Error()}
		var ide *schedule.InvalidDateError
		var uce *schedule.UnsupportedCycleError
		switch {
		case errors.As(err, &ide):
			item.SubscriptionID, item.Name, item.Value = ide.SubscriptionID, ide.Name, ide.Value
		case errors.As(err, &uce):
			item.SubscriptionID, item.Name, item.Value = uce.SubscriptionID, uce.Name, string(uce.Cycle)
		}
		out = append(out, item)
	}
	return out
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.calendar.Summary(r.Context(), auth.UserFromRequest(r))
	if err != nil {
		writeServiceError(w, r, "Summary failed", err)
		return
	}
	NewResponse().JSON(summary).Write(w)
}

func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	months, err := ParseMonths(r.URL.Query(), s.horizon)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	res, err := s.calendar.Occurrences(r.Context(), auth.UserFromRequest(r), months)
	if err != nil {
		writeServiceError(w, r, "Projection failed", err)
		return
	}

	occurrences := res.Occurrences
	if occurrences == nil {
		occurrences = []schedule.Occurrence{}
	}
	NewResponse().JSON(map[string]any{
		"today":       res.Today,
		"months":      months,
		"occurrences": occurrences,
		"errors":      skippedFrom(res.Errors),
	}).Write(w)
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromRequest(r)
	subs, err := s.calendar.Subscriptions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "Calendar export failed", err)
		return
	}

	data, skipped := export.ICS(subs, time.Now())
	for _, err := range skipped {
		log.FromContext(r.Context()).Warn("Subscription left out of calendar feed",
			log.FieldUserID, userID, log.FieldError, err)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="subtrack.ics"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	res, summary, err := s.calendar.Overview(r.Context(), auth.UserFromRequest(r))
	if err != nil {
		writeServiceError(w, r, "PDF export failed", err)
		return
	}

	var buf bytes.Buffer
	title := "Payment schedule " + core.FormatYen(summary.MonthlyEquivalent) + "/month"
	if err := export.PDF(&buf, title, res, summary); err != nil {
		writeServiceError(w, r, "PDF render failed", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="subtrack.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}
