package services

import (
	"context"
	"fmt"
	"strings"

	"subtrack/internal/core"
	"subtrack/internal/ports"
)

// CategoryService merges the built-in categories with user-defined ones.
type CategoryService struct {
	repo ports.CategoryRepository
	subs ports.SubscriptionRepository
}

func NewCategoryService(repo ports.CategoryRepository, subs ports.SubscriptionRepository) *CategoryService {
	return &CategoryService{repo: repo, subs: subs}
}

// List returns the built-in categories followed by the user's own.
func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	own, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return append(core.DefaultCategories(), own...), nil
}

// Exists reports whether id names a built-in or user-defined category.
func (s *CategoryService) Exists(ctx context.Context, userID, id string) (bool, error) {
	if core.IsDefaultCategory(id) {
		return true, nil
	}
	own, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, c := range own {
		if c.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *CategoryService) Create(ctx context.Context, userID, name string) (core.Category, error) {
	c := core.Category{UserID: userID, Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if clashesWithDefault(c.Name) {
		return core.Category{}, fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateCategory)
	}
	return s.repo.CreateCategory(ctx, c)
}

func (s *CategoryService) Rename(ctx context.Context, userID, id, name string) (core.Category, error) {
	if core.IsDefaultCategory(id) {
		return core.Category{}, core.ErrBuiltInCategory
	}
	name = strings.TrimSpace(name)
	if err := (core.Category{Name: name}).Validate(); err != nil {
		return core.Category{}, err
	}
	if clashesWithDefault(name) {
		return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrDuplicateCategory)
	}
	return s.repo.RenameCategory(ctx, userID, id, name)
}

// Delete removes a user category that no subscription references.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	if core.IsDefaultCategory(id) {
		return core.ErrBuiltInCategory
	}

	subs, err := s.subs.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	for _, sub := range subs {
		if sub.Category == id {
			return fmt.Errorf("category %s used by %q: %w", id, sub.Name, core.ErrCategoryInUse)
		}
	}

	return s.repo.DeleteCategory(ctx, userID, id)
}

func clashesWithDefault(name string) bool {
	for _, d := range core.DefaultCategories() {
		if strings.EqualFold(d.ID, name) || d.Name == name {
			return true
		}
	}
	return false
}
