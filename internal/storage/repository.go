package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"subtrack/internal/core"

	_ "modernc.org/sqlite"
)

// timestampLayout is fixed width so stored values sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements ports.Pinger
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// List implements ports.SubscriptionRepository
func (r *SQLiteRepository) List(ctx context.Context, userID string) ([]core.Subscription, error) {
	rows, err := r.queries.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	subs := make([]core.Subscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, toCoreSubscription(row))
	}
	return subs, nil
}

// Get implements ports.SubscriptionRepository
func (r *SQLiteRepository) Get(ctx context.Context, userID, id string) (core.Subscription, error) {
	row, err := r.queries.GetSubscription(ctx, userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return toCoreSubscription(row), nil
}

// Create implements ports.SubscriptionRepository. An empty ID is replaced
// with a new UUID.
func (r *SQLiteRepository) Create(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	if s.UserID == "" {
		return core.Subscription{}, core.ErrEmptyUser
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := r.now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now

	if err := r.queries.CreateSubscription(ctx, fromCoreSubscription(s)); err != nil {
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}

	slog.InfoContext(ctx, "Subscription saved to SQLite",
		"id", s.ID,
		"user_id", s.UserID,
		"cycle", s.Cycle,
		"amount_yen", int64(s.Amount))

	return s, nil
}

// Update implements ports.SubscriptionRepository
func (r *SQLiteRepository) Update(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	s.UpdatedAt = r.now().UTC()

	n, err := r.queries.UpdateSubscription(ctx, fromCoreSubscription(s))
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	if n == 0 {
		return core.Subscription{}, fmt.Errorf("subscription %s: %w", s.ID, core.ErrNotFound)
	}

	return r.Get(ctx, s.UserID, s.ID)
}

// Delete implements ports.SubscriptionRepository
func (r *SQLiteRepository) Delete(ctx context.Context, userID, id string) error {
	n, err := r.queries.DeleteSubscription(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Subscription deleted from SQLite", "id", id, "user_id", userID)
	return nil
}

// ListUserIDs implements ports.UserLister
func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	ids, err := r.queries.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

// ListCategories implements ports.CategoryRepository
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	cats := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		cats = append(cats, toCoreCategory(row))
	}
	return cats, nil
}

// CreateCategory implements ports.CategoryRepository
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.UserID == "" {
		return core.Category{}, core.ErrEmptyUser
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Name = strings.TrimSpace(c.Name)
	c.CreatedAt = r.now().UTC()

	err := r.queries.CreateCategory(ctx, Category{
		ID:        c.ID,
		UserID:    c.UserID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt.Format(timestampLayout),
	})
	if isUniqueViolation(err) {
		return core.Category{}, fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateCategory)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// RenameCategory implements ports.CategoryRepository
func (r *SQLiteRepository) RenameCategory(ctx context.Context, userID, id, name string) (core.Category, error) {
	name = strings.TrimSpace(name)
	n, err := r.queries.RenameCategory(ctx, userID, id, name)
	if isUniqueViolation(err) {
		return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrDuplicateCategory)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("rename category: %w", err)
	}
	if n == 0 {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}

	row, err := r.queries.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return toCoreCategory(row), nil
}

// DeleteCategory implements ports.CategoryRepository
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	n, err := r.queries.DeleteCategory(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func toCoreSubscription(row Subscription) core.Subscription {
	return core.Subscription{
		ID:          row.ID,
		UserID:      row.UserID,
		Name:        row.Name,
		Amount:      core.Yen(row.Amount),
		Cycle:       core.Cycle(row.Cycle),
		Category:    row.Category,
		NextPayment: row.NextPayment,
		CreatedAt:   parseTimestamp(row.CreatedAt),
		UpdatedAt:   parseTimestamp(row.UpdatedAt),
	}
}

func fromCoreSubscription(s core.Subscription) Subscription {
	return Subscription{
		ID:          s.ID,
		UserID:      s.UserID,
		Name:        s.Name,
		Amount:      int64(s.Amount),
		Cycle:       string(s.Cycle),
		Category:    s.Category,
		NextPayment: s.NextPayment,
		CreatedAt:   s.CreatedAt.Format(timestampLayout),
		UpdatedAt:   s.UpdatedAt.Format(timestampLayout),
	}
}

func toCoreCategory(row Category) core.Category {
	return core.Category{
		ID:        row.ID,
		UserID:    row.UserID,
		Name:      row.Name,
		CreatedAt: parseTimestamp(row.CreatedAt),
	}
}

// parseTimestamp returns the zero time for values written by other tools.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
