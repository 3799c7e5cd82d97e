// Package memory is an in-process store used by tests and the memory
// backend.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"subtrack/internal/core"
)

// SeedFile is the file NewFromFiles reads subscriptions from.
const SeedFile = "seed_subscriptions.json"

type Store struct {
	mu   sync.Mutex
	subs []core.Subscription
	cats []core.Category
	now  func() time.Time
}

func New(subs ...core.Subscription) *Store {
	s := &Store{now: time.Now}
	for _, sub := range subs {
		if sub.ID == "" {
			sub.ID = uuid.NewString()
		}
		s.subs = append(s.subs, sub)
	}
	return s
}

// NewFromFiles seeds the store from base/seed_subscriptions.json. A
// missing or unreadable file yields an empty store.
func NewFromFiles(base string) *Store {
	subs, err := readSeed(filepath.Join(base, SeedFile))
	if err != nil {
		return New()
	}
	return New(subs...)
}

// SetClock replaces time.Now for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Ping(context.Context) error { return nil }

// List returns copies so callers cannot mutate stored values.
func (s *Store) List(_ context.Context, userID string) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Subscription, 0)
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, userID, id string) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(userID, id)
	if i < 0 {
		return core.Subscription{}, fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	return s.subs[i], nil
}

func (s *Store) Create(_ context.Context, sub core.Subscription) (core.Subscription, error) {
	if sub.UserID == "" {
		return core.Subscription{}, core.ErrEmptyUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := s.now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now
	s.subs = append(s.subs, sub)
	return sub, nil
}

func (s *Store) Update(_ context.Context, sub core.Subscription) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(sub.UserID, sub.ID)
	if i < 0 {
		return core.Subscription{}, fmt.Errorf("subscription %s: %w", sub.ID, core.ErrNotFound)
	}
	sub.CreatedAt = s.subs[i].CreatedAt
	sub.UpdatedAt = s.now().UTC()
	s.subs[i] = sub
	return sub, nil
}

func (s *Store) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(userID, id)
	if i < 0 {
		return fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	s.subs = append(s.subs[:i], s.subs[i+1:]...)
	return nil
}

func (s *Store) ListUserIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var ids []string
	for _, sub := range s.subs {
		if _, ok := seen[sub.UserID]; ok {
			continue
		}
		seen[sub.UserID] = struct{}{}
		ids = append(ids, sub.UserID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0)
	for _, c := range s.cats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if c.UserID == "" {
		return core.Category{}, core.ErrEmptyUser
	}
	c.Name = strings.TrimSpace(c.Name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasCategoryName(c.UserID, c.Name, "") {
		return core.Category{}, fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateCategory)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = s.now().UTC()
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) RenameCategory(_ context.Context, userID, id, name string) (core.Category, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cats {
		if c.UserID != userID || c.ID != id {
			continue
		}
		if s.hasCategoryName(userID, name, id) {
			return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrDuplicateCategory)
		}
		s.cats[i].Name = name
		return s.cats[i], nil
	}
	return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cats {
		if c.UserID == userID && c.ID == id {
			s.cats = append(s.cats[:i], s.cats[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
}

func (s *Store) indexOf(userID, id string) int {
	for i, sub := range s.subs {
		if sub.UserID == userID && sub.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) hasCategoryName(userID, name, exceptID string) bool {
	for _, c := range s.cats {
		if c.UserID == userID && c.ID != exceptID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func readSeed(path string) ([]core.Subscription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var subs []core.Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return subs, nil
}
