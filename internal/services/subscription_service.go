package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"subtrack/internal/amqp"
	"subtrack/internal/core"
	"subtrack/internal/ports"
	"subtrack/internal/schedule"
)

// ChangePublisher announces subscription changes to the sync worker.
type ChangePublisher interface {
	PublishSubscriptionChanged(ctx context.Context, msg *amqp.SubscriptionChanged) error
}

// Sort orders for listing subscriptions.
const (
	SortName   = "name"
	SortAmount = "amount"
	SortNext   = "next"
)

// ListOptions filters and orders a subscription listing. Zero values keep
// every subscription in insertion order.
type ListOptions struct {
	Cycle    core.Cycle
	Category string
	Sort     string
}

// SubscriptionService orchestrates subscription writes across the store,
// the in-process listeners and AMQP.
type SubscriptionService struct {
	repo       ports.SubscriptionRepository
	categories *CategoryService
	notifiers  []ports.ChangeNotifier
	publisher  ChangePublisher
	loc        *time.Location
	now        func() time.Time
}

func NewSubscriptionService(repo ports.SubscriptionRepository, categories *CategoryService, publisher ChangePublisher, notifiers ...ports.ChangeNotifier) *SubscriptionService {
	return &SubscriptionService{
		repo:       repo,
		categories: categories,
		notifiers:  notifiers,
		publisher:  publisher,
		loc:        time.UTC,
		now:        time.Now,
	}
}

// SetLocation sets the calendar used to decide today's date when sorting by
// next payment.
func (s *SubscriptionService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// List returns the user's subscriptions filtered and sorted per opts.
func (s *SubscriptionService) List(ctx context.Context, userID string, opts ListOptions) ([]core.Subscription, error) {
	subs, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	out := make([]core.Subscription, 0, len(subs))
	for _, sub := range subs {
		if opts.Cycle != "" && sub.Cycle != opts.Cycle {
			continue
		}
		if opts.Category != "" && sub.Category != opts.Category {
			continue
		}
		out = append(out, sub)
	}

	switch opts.Sort {
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	case SortAmount:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	case SortNext:
		s.sortByNextPayment(out)
	}

	return out, nil
}

// sortByNextPayment orders by the first upcoming occurrence. Subscriptions
// with nothing upcoming go last.
func (s *SubscriptionService) sortByNextPayment(subs []core.Subscription) {
	today := core.DateOf(s.now().In(s.loc))
	next := make(map[string]*core.Date, len(subs))
	for _, sub := range subs {
		next[sub.ID] = schedule.Project([]core.Subscription{sub}, today).Next()
	}
	sort.SliceStable(subs, func(i, j int) bool {
		a, b := next[subs[i].ID], next[subs[j].ID]
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

func (s *SubscriptionService) Get(ctx context.Context, userID, id string) (core.Subscription, error) {
	return s.repo.Get(ctx, userID, id)
}

// Create validates and saves a subscription for userID, then announces it.
func (s *SubscriptionService) Create(ctx context.Context, userID string, sub core.Subscription) (core.Subscription, error) {
	sub = normalize(sub)
	sub.ID = ""
	sub.UserID = userID
	if err := s.validate(ctx, sub); err != nil {
		return core.Subscription{}, err
	}

	// Save to the store first, listeners and AMQP are best effort
	created, err := s.repo.Create(ctx, sub)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	s.announce(ctx, userID, created.ID, amqp.ActionCreated, created.UpdatedAt)
	return created, nil
}

// Update replaces the editable fields of an existing subscription.
func (s *SubscriptionService) Update(ctx context.Context, userID, id string, sub core.Subscription) (core.Subscription, error) {
	sub = normalize(sub)
	sub.ID = id
	sub.UserID = userID
	if err := s.validate(ctx, sub); err != nil {
		return core.Subscription{}, err
	}

	updated, err := s.repo.Update(ctx, sub)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}

	s.announce(ctx, userID, id, amqp.ActionUpdated, updated.UpdatedAt)
	return updated, nil
}

func (s *SubscriptionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	s.announce(ctx, userID, id, amqp.ActionDeleted, s.now())
	return nil
}

func (s *SubscriptionService) validate(ctx context.Context, sub core.Subscription) error {
	if sub.UserID == "" {
		return core.ErrEmptyUser
	}
	if err := sub.Validate(); err != nil {
		return err
	}
	if s.categories == nil {
		return nil
	}
	ok, err := s.categories.Exists(ctx, sub.UserID, sub.Category)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrUnknownCategory, sub.Category)
	}
	return nil
}

func (s *SubscriptionService) announce(ctx context.Context, userID, subID string, action amqp.Action, at time.Time) {
	for _, n := range s.notifiers {
		n.Notify(ctx, userID)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping change message")
		return
	}
	msg := amqp.NewSubscriptionChanged(userID, subID, action, at.UnixMilli())
	if err := s.publisher.PublishSubscriptionChanged(ctx, msg); err != nil {
		// Don't fail the request - the subscription is saved locally
		slog.ErrorContext(ctx, "Failed to publish change message",
			"user_id", userID,
			"subscription_id", subID,
			"action", action,
			"error", err)
	}
}

func normalize(sub core.Subscription) core.Subscription {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Category = strings.TrimSpace(sub.Category)
	sub.NextPayment = strings.TrimSpace(sub.NextPayment)
	sub.Cycle = core.Cycle(strings.ToLower(strings.TrimSpace(string(sub.Cycle))))
	return sub
}
