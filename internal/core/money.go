// Package core provides the subscription domain model.
//
// This file contains parsing and formatting of yen amounts as users type
// them into forms: half- or full-width digits, optional yen sign and
// thousands separators.
package core

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/width"
)

// ParseYen converts user input to a whole-yen amount.
//
// Accepted forms include "1490", "1,490", "¥1,490", "１４９０円" and
// "￥１，４９０". Fractions, signs and zero are rejected.
//
// Examples:
//
//	ParseYen("1,490")  -> 1490, nil
//	ParseYen("¥4900")  -> 4900, nil
//	ParseYen("980.5")  -> 0, ErrInvalidAmount
func ParseYen(s string) (Yen, error) {
	s = strings.TrimSpace(width.Narrow.String(s))
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "\\")
	s = strings.TrimSuffix(s, "円")
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return Yen(v), nil
}

// FormatYen renders an amount with a yen sign and grouping, e.g. "¥1,490".
func FormatYen(y Yen) string {
	p := message.NewPrinter(language.Japanese)
	if y < 0 {
		return p.Sprintf("-¥%d", -int64(y))
	}
	return p.Sprintf("¥%d", int64(y))
}

func (y Yen) String() string {
	return FormatYen(y)
}
