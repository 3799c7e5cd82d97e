package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Monthly Cycle = "monthly"
	Yearly  Cycle = "yearly"
)

// MaxNameLength bounds subscription and category names, counted in runes.
const MaxNameLength = 100

type (
	// Cycle is the billing period of a subscription.
	Cycle string

	// Yen is a whole-yen amount. The currency has no minor unit.
	Yen int64

	Subscription struct {
		ID          string    `json:"id"`
		UserID      string    `json:"userId"`
		Name        string    `json:"name"`
		Amount      Yen       `json:"amount"`
		Cycle       Cycle     `json:"cycle"`
		Category    string    `json:"category"`
		NextPayment string    `json:"nextPayment"` // anchor date, YYYY-MM-DD
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// Category groups subscriptions. Built-in categories have no UserID.
	Category struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId,omitempty"`
		Name      string    `json:"name"`
		BuiltIn   bool      `json:"builtIn"`
		CreatedAt time.Time `json:"createdAt"`
	}
)

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidCycle      = errors.New("invalid cycle")
	ErrEmptyName         = errors.New("empty name")
	ErrNameTooLong       = fmt.Errorf("name too long (max %d characters)", MaxNameLength)
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyUser         = errors.New("empty user id")
	ErrNotFound          = errors.New("not found")
	ErrCategoryInUse     = errors.New("category is still used by subscriptions")
	ErrDuplicateCategory = errors.New("category already exists")
	ErrBuiltInCategory   = errors.New("built-in categories cannot be changed")
	ErrUnknownCategory   = errors.New("unknown category")
)

// IsValidation reports whether err was caused by invalid user input.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidDate, ErrInvalidAmount, ErrInvalidCycle, ErrEmptyName,
		ErrNameTooLong, ErrEmptyCategory, ErrUnknownCategory,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var defaultCategories = []Category{
	{ID: "entertainment", Name: "エンターテイメント", BuiltIn: true},
	{ID: "shopping", Name: "ショッピング", BuiltIn: true},
	{ID: "music", Name: "音楽", BuiltIn: true},
	{ID: "utility", Name: "ユーティリティ", BuiltIn: true},
	{ID: "other", Name: "その他", BuiltIn: true},
}

// DefaultCategories returns a copy of the built-in categories.
func DefaultCategories() []Category {
	return append([]Category(nil), defaultCategories...)
}

// IsDefaultCategory reports whether id names a built-in category.
func IsDefaultCategory(id string) bool {
	for _, c := range defaultCategories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// ParseCycle accepts "monthly" or "yearly", case-insensitively.
func ParseCycle(s string) (Cycle, error) {
	c := Cycle(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCycle, s)
	}
	return c, nil
}

func (c Cycle) IsValid() bool {
	return c == Monthly || c == Yearly
}

func (c Cycle) String() string {
	return string(c)
}

func (y Yen) Validate() error {
	if y <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Anchor parses the stored next-payment date.
func (s Subscription) Anchor() (Date, error) {
	return ParseDate(s.NextPayment)
}

func (s Subscription) Validate() error {
	if err := validateName(s.Name); err != nil {
		return err
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if !s.Cycle.IsValid() {
		return ErrInvalidCycle
	}
	if strings.TrimSpace(s.Category) == "" {
		return ErrEmptyCategory
	}
	if _, err := s.Anchor(); err != nil {
		return err
	}
	return nil
}

func (c Category) Validate() error {
	return validateName(c.Name)
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}
