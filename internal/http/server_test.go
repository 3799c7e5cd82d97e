package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack/internal/auth"
	"subtrack/internal/cache"
	"subtrack/internal/core"
	"subtrack/internal/middleware/ratelimit"
	"subtrack/internal/ports"
	"subtrack/internal/services"
	"subtrack/internal/storage/memory"
)

const testUser = "user-1"

var testNow = time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

type testEnv struct {
	srv   *Server
	store *memory.Store
	token string
}

func seedSubscriptions() []core.Subscription {
	return []core.Subscription{
		{ID: "netflix", UserID: testUser, Name: "Netflix", Amount: 1490, Cycle: core.Monthly, Category: "entertainment", NextPayment: "2024-01-31"},
		{ID: "spotify", UserID: testUser, Name: "Spotify", Amount: 9800, Cycle: core.Yearly, Category: "music", NextPayment: "2024-03-10"},
		{ID: "broken", UserID: testUser, Name: "Broken", Amount: 500, Cycle: core.Monthly, Category: "other", NextPayment: "2024-02-30"},
		{ID: "other-user", UserID: "user-2", Name: "Hidden", Amount: 100, Cycle: core.Monthly, Category: "other", NextPayment: "2024-01-20"},
	}
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()

	store := memory.New(seedSubscriptions()...)
	store.SetClock(func() time.Time { return testNow })

	calendar := services.NewCalendarService(store,
		cache.NewTTLCache[[]core.Subscription](time.Minute, time.Minute), time.UTC, nil)
	calendar.SetClock(func() time.Time { return testNow })

	categories := services.NewCategoryService(store, store)
	subs := services.NewSubscriptionService(store, categories, nil, calendar)

	verifier, err := auth.NewVerifier("test-secret-1234567", "")
	require.NoError(t, err)
	token, err := verifier.Sign(testUser, time.Hour)
	require.NoError(t, err)

	d := Deps{
		Subscriptions: subs,
		Categories:    categories,
		Calendar:      calendar,
		Verifier:      verifier,
		Store:         store,
	}
	if mutate != nil {
		mutate(&d)
	}

	srv, err := NewServer(":0", d)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{srv: srv, store: store, token: token}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(":0", Deps{})
	assert.Error(t, err)

	env := newTestEnv(t, nil)
	_, err = NewServer(":0", Deps{
		Subscriptions: env.srv.subs,
		Categories:    env.srv.categories,
		Calendar:      env.srv.calendar,
	})
	assert.Error(t, err, "verifier is required")
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		env.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	}

	ready := newTestEnv(t, func(d *Deps) { d.Store = failingPinger{} })
	rr := httptest.NewRecorder()
	ready.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	body := decode[map[string]any](t, rr)
	assert.Equal(t, "not_ready", body["status"])
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/static/app.css", "/static/app.js"} {
		rr := httptest.NewRecorder()
		env.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Body.String(), path)
	}
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/", "/calendar", "/api/v1/subscriptions", "/api/v1/occurrences"} {
		rr := httptest.NewRecorder()
		env.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSessionCookieAuthenticates(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: env.token})
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNotFoundAndMethodNotAllowedAreJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not found", decode[map[string]string](t, rr)["error"])

	rr = env.do(t, http.MethodPatch, "/api/v1/subscriptions/netflix", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "method not allowed", decode[map[string]string](t, rr)["error"])
}

func TestSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/v1/subscriptions",
		`{"name":"<b>Hulu</b>","amount":"1,026","cycle":"monthly","category":"entertainment","nextPayment":"2024-02-01"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	created := decode[core.Subscription](t, rr)
	assert.Equal(t, "Hulu", created.Name)
	assert.Equal(t, core.Yen(1026), created.Amount)
	assert.Equal(t, testUser, created.UserID)
	assert.Equal(t, "/api/v1/subscriptions/"+created.ID, rr.Header().Get("Location"))

	rr = env.do(t, http.MethodGet, "/api/v1/subscriptions/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Hulu", decode[core.Subscription](t, rr).Name)

	rr = env.do(t, http.MethodPut, "/api/v1/subscriptions/"+created.ID,
		`{"name":"Hulu Premium","amount":2000,"cycle":"yearly","category":"entertainment","nextPayment":"2024-06-01"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[core.Subscription](t, rr)
	assert.Equal(t, core.Yearly, updated.Cycle)
	assert.Equal(t, core.Yen(2000), updated.Amount)

	rr = env.do(t, http.MethodDelete, "/api/v1/subscriptions/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/v1/subscriptions/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFormEncodedCreate(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions",
		strings.NewReader("name=Prime&amount=600&cycle=monthly&category=shopping&nextPayment=2024-01-20"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+env.token)
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "Prime", decode[core.Subscription](t, rr).Name)
}

func TestCreateSubscriptionRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"name":`, http.StatusBadRequest},
		{"bad amount", `{"name":"X","amount":"abc","cycle":"monthly","category":"other","nextPayment":"2024-02-01"}`, http.StatusUnprocessableEntity},
		{"impossible date", `{"name":"X","amount":100,"cycle":"monthly","category":"other","nextPayment":"2024-02-30"}`, http.StatusUnprocessableEntity},
		{"unknown cycle", `{"name":"X","amount":100,"cycle":"weekly","category":"other","nextPayment":"2024-02-01"}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"name":"X","amount":100,"cycle":"monthly","category":"nope","nextPayment":"2024-02-01"}`, http.StatusUnprocessableEntity},
		{"empty name", `{"name":"<i></i>","amount":100,"cycle":"monthly","category":"other","nextPayment":"2024-02-01"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/v1/subscriptions", tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rr)["error"])
		})
	}
}

func TestListSubscriptionsIsScopedAndFiltered(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/v1/subscriptions?sort=amount", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[struct {
		Subscriptions []core.Subscription `json:"subscriptions"`
	}](t, rr)
	require.Len(t, body.Subscriptions, 3)
	for _, s := range body.Subscriptions {
		assert.Equal(t, testUser, s.UserID)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/subscriptions?cycle=yearly", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body = decode[struct {
		Subscriptions []core.Subscription `json:"subscriptions"`
	}](t, rr)
	require.Len(t, body.Subscriptions, 1)
	assert.Equal(t, "Spotify", body.Subscriptions[0].Name)

	rr = env.do(t, http.MethodGet, "/api/v1/subscriptions?sort=price", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/v1/subscriptions/other-user", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCategoryEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/v1/categories", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Categories []core.Category `json:"categories"`
	}](t, rr)
	assert.GreaterOrEqual(t, len(list.Categories), len(core.DefaultCategories()))

	rr = env.do(t, http.MethodPost, "/api/v1/categories", `{"name":"Gaming"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[core.Category](t, rr)
	assert.Equal(t, "Gaming", created.Name)

	rr = env.do(t, http.MethodPost, "/api/v1/categories", `{"name":"Gaming"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPut, "/api/v1/categories/"+created.ID, `{"name":"Games"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Games", decode[core.Category](t, rr).Name)

	rr = env.do(t, http.MethodDelete, "/api/v1/categories/entertainment", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/v1/categories/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/categories", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOccurrences(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/v1/occurrences?months=2", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decode[struct {
		Today       string `json:"today"`
		Months      int    `json:"months"`
		Occurrences []struct {
			Date          string `json:"date"`
			Subscriptions []struct {
				Name string `json:"name"`
			} `json:"subscriptions"`
		} `json:"occurrences"`
		Errors []skippedSubscription `json:"errors"`
	}](t, rr)

	assert.Equal(t, "2024-01-15", body.Today)
	assert.Equal(t, 2, body.Months)
	require.NotEmpty(t, body.Occurrences)
	assert.Equal(t, "2024-01-31", body.Occurrences[0].Date)
	assert.Equal(t, "Netflix", body.Occurrences[0].Subscriptions[0].Name)
	for _, occ := range body.Occurrences {
		assert.GreaterOrEqual(t, occ.Date, body.Today)
	}

	require.Len(t, body.Errors, 1)
	assert.Equal(t, "broken", body.Errors[0].SubscriptionID)
	assert.Equal(t, "2024-02-30", body.Errors[0].Value)

	for _, q := range []string{"0", "25", "abc"} {
		rr = env.do(t, http.MethodGet, "/api/v1/occurrences?months="+q, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestOccurrencesEmptyIsArray(t *testing.T) {
	env := newTestEnv(t, nil)
	token, err := env.srv.verifier.Sign("nobody", time.Hour)
	require.NoError(t, err)
	env.token = token

	rr := env.do(t, http.MethodGet, "/api/v1/occurrences", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"occurrences":[]`)
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/v1/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)

	summary := decode[core.Summary](t, rr)
	assert.Equal(t, 3, summary.Count)
	require.NotNil(t, summary.NextUpcoming)
	assert.Equal(t, "2024-01-31", summary.NextUpcoming.String())
}

func TestCalendarExports(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/v1/calendar.ics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rr.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rr.Body.String(), "Netflix")
	assert.NotContains(t, rr.Body.String(), "Hidden")

	rr = env.do(t, http.MethodGet, "/api/v1/calendar.pdf", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "%PDF"))
}

func TestDashboardPage(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	body := rr.Body.String()
	assert.Contains(t, body, "ダッシュボード")
	assert.Contains(t, body, "Netflix")
	assert.Contains(t, body, "¥1,490")
	assert.Contains(t, body, "2024-01-31")
	assert.Contains(t, body, "Broken")
	assert.NotContains(t, body, "Hidden")
}

func TestCalendarPage(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/calendar?year=2024&month=2", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := rr.Body.String()
	assert.Contains(t, body, "2024年2月")
	assert.Contains(t, body, "year=2024&month=1")
	assert.Contains(t, body, "year=2024&month=3")

	rr = env.do(t, http.MethodGet, "/calendar?month=13", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/calendar?year=9999&month=12", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWebSocketRouteIsOptional(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	called := false
	withWS := newTestEnv(t, func(d *Deps) {
		d.Realtime = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			assert.Equal(t, testUser, auth.UserFromRequest(r))
			w.WriteHeader(http.StatusSwitchingProtocols)
		})
	})
	withWS.do(t, http.MethodGet, "/ws", "")
	assert.True(t, called)
}

func TestWritesAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.RateLimit = ratelimit.Config{RequestsPerSecond: 0.001, Burst: 1}
	})

	rr := env.do(t, http.MethodPost, "/api/v1/categories", `{"name":"Gaming"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/categories", `{"name":"Books"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", decode[map[string]string](t, rr)["error"])

	rr = env.do(t, http.MethodGet, "/api/v1/categories", "")
	assert.Equal(t, http.StatusOK, rr.Code, "reads are not limited")
}

var _ ports.Pinger = failingPinger{}
