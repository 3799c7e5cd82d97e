// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies may be JSON or form-encoded; both are read through one parser.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"subtrack/internal/core"
	"subtrack/internal/services"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// errMalformedBody marks a body that is neither valid JSON nor a form.
var errMalformedBody = errors.New("malformed request body")

var strictPolicy = bluemonday.StrictPolicy()

// sanitizeInput strips markup and control characters from user supplied
// text. Entities produced by the policy are decoded again because output is
// escaped at render time.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using
// today as the default. A month outside 1..12 is an error.
func ParseMonthParams(query url.Values, today core.Date) (MonthParams, error) {
	params := MonthParams{Year: today.Year(), Month: today.Month()}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, fmt.Errorf("invalid year %q", v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, fmt.Errorf("invalid month %q", v)
		}
		params.Month = m
	}

	return params, nil
}

// ParseMonths reads ?months= for the projection horizon.
func ParseMonths(query url.Values, def int) (int, error) {
	v := strings.TrimSpace(query.Get("months"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > services.MaxHorizonMonths {
		return 0, fmt.Errorf("months must be between 1 and %d", services.MaxHorizonMonths)
	}
	return n, nil
}

// ParseListOptions reads the cycle, category and sort filters.
func ParseListOptions(query url.Values) (services.ListOptions, error) {
	var opts services.ListOptions

	if v := strings.TrimSpace(query.Get("cycle")); v != "" {
		c, err := core.ParseCycle(v)
		if err != nil {
			return opts, err
		}
		opts.Cycle = c
	}
	opts.Category = strings.TrimSpace(query.Get("category"))

	switch v := strings.ToLower(strings.TrimSpace(query.Get("sort"))); v {
	case "", services.SortName, services.SortAmount, services.SortNext:
		opts.Sort = v
	default:
		return opts, fmt.Errorf("invalid sort %q: must be name, amount or next", v)
	}

	return opts, nil
}

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to maxBodyBytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errMalformedBody, p.err)
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: %v", errMalformedBody, err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errMalformedBody, p.err)
	}
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was present in the body.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	_, ok := p.formData[key]
	return ok
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseSubscription reads the editable subscription fields. Amount accepts
// numbers and the forms understood by core.ParseYen.
func ParseSubscription(p *RequestBodyParser) (core.Subscription, error) {
	if err := p.Parse(); err != nil {
		return core.Subscription{}, err
	}

	amount, err := core.ParseYen(p.Get("amount"))
	if err != nil {
		return core.Subscription{}, fmt.Errorf("amount %q: %w", p.Get("amount"), err)
	}

	return core.Subscription{
		Name:        p.Get("name"),
		Amount:      amount,
		Cycle:       core.Cycle(p.Get("cycle")),
		Category:    p.Get("category"),
		NextPayment: p.Get("nextPayment"),
	}, nil
}
