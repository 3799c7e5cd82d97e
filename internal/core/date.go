package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage form of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day stored at midnight UTC.
type Date struct {
	time.Time
}

// DateError reports a value that is not a valid calendar date.
type DateError struct {
	Value string
	Err   error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid date %q: %v", e.Value, e.Err)
}

func (e *DateError) Unwrap() []error {
	return []error{ErrInvalidDate, e.Err}
}

// ParseDate parses a YYYY-MM-DD string. Out-of-range days such as
// 2023-02-29 are rejected.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, &DateError{Value: s, Err: fmt.Errorf("empty value")}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &DateError{Value: s, Err: err}
	}
	return Date{Time: t}, nil
}

// NewDate creates a new Date from year, month, day. Out-of-range values
// normalize the way time.Date does.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar day in loc. A nil loc means UTC.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(time.Now().In(loc))
}

// LastDayOfMonth returns the number of days in the given month.
func LastDayOfMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// Before reports whether d is an earlier calendar day than o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// After reports whether d is a later calendar day than o.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// Equal reports whether d and o are the same calendar day.
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
