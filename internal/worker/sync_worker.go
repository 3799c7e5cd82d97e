package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"subtrack/internal/amqp"
	"subtrack/internal/cache"
	"subtrack/internal/core"
	"subtrack/internal/ports"
	"subtrack/internal/schedule"
	"subtrack/internal/sheets"
)

// Config holds configuration for the sync worker
type Config struct {
	// ResyncInterval is how often every user is rewritten (default: 1h)
	ResyncInterval time.Duration

	// HorizonMonths is the number of monthly occurrences exported (default: 12)
	HorizonMonths int

	// Location decides which calendar day counts as today
	Location *time.Location
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ResyncInterval: time.Hour,
		HorizonMonths:  schedule.DefaultHorizonMonths,
		Location:       time.Local,
	}
}

// SyncWorker keeps each user's exported schedule in step with the store.
type SyncWorker struct {
	repo   ports.SubscriptionRepository
	users  ports.UserLister
	writer sheets.ScheduleWriter
	config Config
	now    func() time.Time

	// versions remembers the newest change already exported per user so
	// redelivered or reordered messages do not trigger another write.
	versions *cache.TTLCache[int64]

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncWorker(repo ports.SubscriptionRepository, users ports.UserLister, writer sheets.ScheduleWriter, config Config) *SyncWorker {
	if config.ResyncInterval <= 0 {
		config.ResyncInterval = DefaultConfig().ResyncInterval
	}
	if config.HorizonMonths <= 0 {
		config.HorizonMonths = schedule.DefaultHorizonMonths
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	return &SyncWorker{
		repo:     repo,
		users:    users,
		writer:   writer,
		config:   config,
		now:      time.Now,
		versions: cache.NewTTLCache[int64](24*time.Hour, time.Hour),
	}
}

// HandleChange processes a single change message from AMQP
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.SubscriptionChanged) error {
	if msg == nil || msg.UserID == "" {
		return fmt.Errorf("handle change: %w", core.ErrEmptyUser)
	}

	if last, ok := w.versions.Get(msg.UserID); ok && msg.Version != 0 && msg.Version <= last {
		slog.DebugContext(ctx, "Skipping stale change message",
			"user_id", msg.UserID,
			"version", msg.Version,
			"exported_version", last)
		return nil
	}

	slog.InfoContext(ctx, "Processing change message",
		"user_id", msg.UserID,
		"subscription_id", msg.SubscriptionID,
		"action", msg.Action,
		"version", msg.Version)

	if err := w.SyncUser(ctx, msg.UserID); err != nil {
		return err
	}

	if msg.Version != 0 {
		w.versions.Set(msg.UserID, msg.Version)
	}
	return nil
}

// SyncUser reloads the user's subscriptions, projects them and writes the
// resulting schedule.
func (w *SyncWorker) SyncUser(ctx context.Context, userID string) error {
	subs, err := w.repo.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("load subscriptions for %s: %w", userID, err)
	}

	opts := []schedule.Option{
		schedule.WithHorizonMonths(w.config.HorizonMonths),
		schedule.WithLocation(w.config.Location),
		schedule.WithClock(w.now),
	}
	res := schedule.ProjectNow(subs, opts...)
	for _, perr := range res.Errors {
		slog.WarnContext(ctx, "Subscription skipped in export", "user_id", userID, "error", perr)
	}

	today := core.DateOf(w.now().In(w.config.Location))
	summary := schedule.Summarize(subs, today, opts...)

	if err := w.writer.WriteSchedule(ctx, userID, res, summary); err != nil {
		return fmt.Errorf("write schedule for %s: %w", userID, err)
	}

	slog.InfoContext(ctx, "Successfully synced schedule",
		"user_id", userID,
		"subscriptions", len(subs),
		"occurrences", len(res.Occurrences))
	return nil
}

// ResyncAll rewrites the schedule of every user. A failure for one user is
// logged and does not stop the others.
func (w *SyncWorker) ResyncAll(ctx context.Context) (synced, failed int, err error) {
	ids, err := w.users.ListUserIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list users: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.SyncUser(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to sync user", "user_id", id, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Resync completed",
		"total", len(ids),
		"synced", synced,
		"errors", failed)
	return synced, failed, nil
}

// Start runs a full resync immediately and then every ResyncInterval.
// Returns an error if already running.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Sync worker started", "resync_interval", w.config.ResyncInterval)
	return nil
}

// Stop gracefully stops the resync loop and waits for completion.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Sync worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// IsRunning returns whether the resync loop is active
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.ResyncInterval)
	defer ticker.Stop()

	w.resync(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.resync(ctx)
		}
	}
}

func (w *SyncWorker) resync(ctx context.Context) {
	if _, _, err := w.ResyncAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Resync failed", "error", err)
	}
}
