package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"subtrack/internal/auth"
	"subtrack/internal/core"
	"subtrack/internal/log"
)

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	opts, err := ParseListOptions(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	subs, err := s.subs.List(r.Context(), auth.UserFromRequest(r), opts)
	if err != nil {
		writeServiceError(w, r, "List subscriptions failed", err)
		return
	}

	NewResponse().JSON(map[string]any{"subscriptions": subs}).Write(w)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.Get(r.Context(), auth.UserFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "Get subscription failed", err)
		return
	}
	NewResponse().JSON(sub).Write(w)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readSubscription(w, r)
	if !ok {
		return
	}

	userID := auth.UserFromRequest(r)
	created, err := s.subs.Create(r.Context(), userID, in)
	if err != nil {
		writeServiceError(w, r, "Create subscription failed", err)
		return
	}
	s.logChange(r, log.OpCreate, created)

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/subscriptions/"+created.ID).
		JSON(created).
		Write(w)
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readSubscription(w, r)
	if !ok {
		return
	}

	updated, err := s.subs.Update(r.Context(), auth.UserFromRequest(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, "Update subscription failed", err)
		return
	}
	s.logChange(r, log.OpUpdate, updated)

	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromRequest(r)
	id := chi.URLParam(r, "id")
	if err := s.subs.Delete(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, "Delete subscription failed", err)
		return
	}
	s.logChange(r, log.OpDelete, core.Subscription{ID: id, UserID: userID})

	NewResponse().Status(http.StatusNoContent).Write(w)
}

// readSubscription parses the body, writing 400 for malformed input and 422
// for values that do not parse.
func (s *Server) readSubscription(w http.ResponseWriter, r *http.Request) (core.Subscription, bool) {
	in, err := ParseSubscription(NewRequestBodyParser(w, r))
	switch {
	case err == nil:
		return in, true
	case errors.Is(err, errMalformedBody):
		BadRequestError("invalid request body").Write(w)
	default:
		UnprocessableEntityError(err.Error()).Write(w)
	}
	return core.Subscription{}, false
}

func (s *Server) logChange(r *http.Request, op string, sub core.Subscription) {
	log.NewStructuredLogger(log.FromContext(r.Context())).LogSubscriptionChanged(r.Context(),
		op, sub.UserID, sub.ID, sub.Name, int64(sub.Amount), string(sub.Cycle), sub.Category, sub.NextPayment)
}
