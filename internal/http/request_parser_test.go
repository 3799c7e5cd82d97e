package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack/internal/core"
	"subtrack/internal/services"
)

func TestParseMonthParams(t *testing.T) {
	today := core.NewDate(2024, 5, 20)

	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
		wantErr   bool
	}{
		{"defaults to today", url.Values{}, 2024, 5, false},
		{"explicit", url.Values{"year": {"2025"}, "month": {"1"}}, 2025, 1, false},
		{"month only", url.Values{"month": {"12"}}, 2024, 12, false},
		{"month too large", url.Values{"month": {"13"}}, 0, 0, true},
		{"month zero", url.Values{"month": {"0"}}, 0, 0, true},
		{"year not a number", url.Values{"year": {"next"}}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonthParams(tt.query, today)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantYear, got.Year)
			assert.Equal(t, tt.wantMonth, got.Month)
		})
	}
}

func TestParseMonths(t *testing.T) {
	n, err := ParseMonths(url.Values{}, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = ParseMonths(url.Values{"months": {"24"}}, 12)
	require.NoError(t, err)
	assert.Equal(t, services.MaxHorizonMonths, n)

	for _, bad := range []string{"0", "-1", "25", "six"} {
		_, err := ParseMonths(url.Values{"months": {bad}}, 12)
		assert.Error(t, err, bad)
	}
}

func TestParseListOptions(t *testing.T) {
	opts, err := ParseListOptions(url.Values{"cycle": {"Yearly"}, "category": {" music "}, "sort": {"AMOUNT"}})
	require.NoError(t, err)
	assert.Equal(t, core.Yearly, opts.Cycle)
	assert.Equal(t, "music", opts.Category)
	assert.Equal(t, services.SortAmount, opts.Sort)

	_, err = ParseListOptions(url.Values{"cycle": {"weekly"}})
	assert.ErrorIs(t, err, core.ErrInvalidCycle)

	_, err = ParseListOptions(url.Values{"sort": {"price"}})
	assert.Error(t, err)
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Netflix", "Netflix"},
		{"  Disney+  ", "Disney+"},
		{"<b>Hulu</b>", "Hulu"},
		{"Tom & Jerry", "Tom & Jerry"},
		{"a\x00b\x07c", "abc"},
		{`<img src=x onerror="alert(1)">U-NEXT`, "U-NEXT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeInput(tt.in), tt.in)
	}
}

func newParser(contentType, body string) *RequestBodyParser {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return NewRequestBodyParser(httptest.NewRecorder(), req)
}

func TestRequestBodyParserJSON(t *testing.T) {
	p := newParser("application/json", `{"name":"Netflix","amount":1490,"active":true}`)
	require.NoError(t, p.Parse())

	assert.True(t, p.IsJSON())
	assert.Equal(t, "Netflix", p.Get("name"))
	assert.Equal(t, "1490", p.Get("amount"))
	assert.Equal(t, "true", p.Get("active"))
	assert.True(t, p.Has("name"))
	assert.False(t, p.Has("missing"))
	assert.Equal(t, "", p.Get("missing"))
}

func TestRequestBodyParserDetectsJSONWithoutContentType(t *testing.T) {
	p := newParser("text/plain", `{"name":"Spotify"}`)
	require.NoError(t, p.Parse())
	assert.True(t, p.IsJSON())
	assert.Equal(t, "Spotify", p.Get("name"))
}

func TestRequestBodyParserForm(t *testing.T) {
	p := newParser("application/x-www-form-urlencoded", "name=Prime+Video&amount=600")
	require.NoError(t, p.Parse())

	assert.False(t, p.IsJSON())
	assert.Equal(t, "Prime Video", p.Get("name"))
	assert.Equal(t, "600", p.Get("amount"))
	assert.True(t, p.Has("amount"))
}

func TestRequestBodyParserMalformed(t *testing.T) {
	p := newParser("application/json", `{"name":`)
	err := p.Parse()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errMalformedBody))
	assert.Equal(t, err, p.Parse(), "parse result is cached")
}

func TestRequestBodyParserTooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	p := newParser("application/json", body)
	assert.ErrorIs(t, p.Parse(), errMalformedBody)
}

func TestParseSubscription(t *testing.T) {
	p := newParser("application/json",
		`{"name":"Netflix","amount":"¥1,490","cycle":"monthly","category":"entertainment","nextPayment":"2024-01-31"}`)
	sub, err := ParseSubscription(p)
	require.NoError(t, err)

	assert.Equal(t, core.Subscription{
		Name:        "Netflix",
		Amount:      1490,
		Cycle:       core.Monthly,
		Category:    "entertainment",
		NextPayment: "2024-01-31",
	}, sub)

	_, err = ParseSubscription(newParser("application/json", `{"name":"Netflix","amount":"free"}`))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	assert.False(t, errors.Is(err, errMalformedBody))

	_, err = ParseSubscription(newParser("application/json", `not json at all {`))
	assert.Error(t, err)
}
