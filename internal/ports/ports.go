// Package ports declares the interfaces between the services and their
// outbound adapters.
package ports

import (
	"context"

	"subtrack/internal/core"
)

type (
	// SubscriptionRepository stores a user's subscriptions. Implementations
	// return core.ErrNotFound for missing rows and for rows owned by
	// another user.
	SubscriptionRepository interface {
		// List returns the user's subscriptions in insertion order.
		List(ctx context.Context, userID string) ([]core.Subscription, error)
		Get(ctx context.Context, userID, id string) (core.Subscription, error)
		Create(ctx context.Context, s core.Subscription) (core.Subscription, error)
		Update(ctx context.Context, s core.Subscription) (core.Subscription, error)
		Delete(ctx context.Context, userID, id string) error
	}

	// CategoryRepository stores user-defined categories. Built-in
	// categories are not persisted.
	CategoryRepository interface {
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		RenameCategory(ctx context.Context, userID, id, name string) (core.Category, error)
		DeleteCategory(ctx context.Context, userID, id string) error
	}

	// UserLister enumerates users that own at least one subscription.
	UserLister interface {
		ListUserIDs(ctx context.Context) ([]string, error)
	}

	// Pinger reports whether a store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Watcher delivers a fresh snapshot of a user's subscriptions on every
	// change. The first snapshot is delivered immediately. Calling cancel
	// more than once is safe.
	Watcher interface {
		Watch(ctx context.Context, userID string, onChange func([]core.Subscription)) (cancel func(), err error)
	}

	// ChangeNotifier is told when a user's subscriptions changed.
	ChangeNotifier interface {
		Notify(ctx context.Context, userID string)
	}

	// Store is everything the services need from a backend.
	Store interface {
		SubscriptionRepository
		CategoryRepository
		UserLister
		Pinger
	}
)
