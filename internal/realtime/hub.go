// Package realtime pushes subscription changes to open dashboards.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"subtrack/internal/core"
	"subtrack/internal/ports"
)

// Publisher forwards a change to other server instances.
type Publisher interface {
	Publish(ctx context.Context, userID string) error
}

// Hub keeps per-user listeners and reloads a snapshot for them whenever the
// user's subscriptions change. It implements ports.Watcher and
// ports.ChangeNotifier.
type Hub struct {
	repo   ports.SubscriptionRepository
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[string]map[*listener]struct{}
	publisher Publisher
}

type listener struct {
	userID   string
	onChange func([]core.Subscription)
	signal   chan struct{}
	done     chan struct{}
	once     sync.Once
}

func NewHub(repo ports.SubscriptionRepository, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		repo:      repo,
		logger:    logger.With("component", "realtime_hub"),
		listeners: make(map[string]map[*listener]struct{}),
	}
}

// SetPublisher makes Notify also announce changes to other instances.
func (h *Hub) SetPublisher(p Publisher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publisher = p
}

// Watch registers a listener, loads the current snapshot, hands it to
// onChange and keeps calling onChange with a fresh snapshot after every
// Notify for userID. Calls to onChange are serialized. The listener is released by cancel or when ctx
// is done.
func (h *Hub) Watch(ctx context.Context, userID string, onChange func([]core.Subscription)) (func(), error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}

	l := &listener{
		userID:   userID,
		onChange: onChange,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	// Registered before the initial load so a Notify racing the load
	// leaves a pending signal.
	h.mu.Lock()
	if h.listeners[userID] == nil {
		h.listeners[userID] = make(map[*listener]struct{})
	}
	h.listeners[userID][l] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		l.once.Do(func() {
			h.remove(l)
			close(l.done)
		})
	}

	initial, err := h.repo.List(ctx, userID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load initial snapshot: %w", err)
	}

	go h.run(ctx, l, initial, cancel)

	h.logger.Debug("Listener registered", "user_id", userID, "listeners", h.ListenerCount(userID))
	return cancel, nil
}

func (h *Hub) run(ctx context.Context, l *listener, initial []core.Subscription, cancel func()) {
	defer cancel()

	l.onChange(initial)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case <-l.signal:
			subs, err := h.repo.List(ctx, l.userID)
			if err != nil {
				h.logger.Warn("Failed to reload snapshot", "user_id", l.userID, "error", err)
				continue
			}
			select {
			case <-l.done:
				return
			default:
			}
			l.onChange(subs)
		}
	}
}

func (h *Hub) remove(l *listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.listeners[l.userID]
	delete(set, l)
	if len(set) == 0 {
		delete(h.listeners, l.userID)
	}
}

// Notify wakes the user's local listeners and forwards the change to the
// publisher, if any.
func (h *Hub) Notify(ctx context.Context, userID string) {
	h.NotifyLocal(userID)

	h.mu.RLock()
	p := h.publisher
	h.mu.RUnlock()
	if p == nil {
		return
	}
	if err := p.Publish(ctx, userID); err != nil {
		h.logger.Warn("Failed to publish change", "user_id", userID, "error", err)
	}
}

// NotifyLocal wakes the user's listeners on this instance only. Pending
// signals coalesce, so a listener reloads at most once per burst.
func (h *Hub) NotifyLocal(userID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for l := range h.listeners[userID] {
		select {
		case l.signal <- struct{}{}:
		default:
		}
	}
}

// ListenerCount returns the number of active listeners for userID.
func (h *Hub) ListenerCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[userID])
}
