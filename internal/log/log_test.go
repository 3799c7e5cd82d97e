package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func newBufferLogger(component string, level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Component: component, Output: &buf}), &buf
}

func TestNew_ComponentAppearsOnce(t *testing.T) {
	logger, buf := newBufferLogger(ComponentHTTP, slog.LevelInfo)
	logger.Info("hello", FieldUserID, "u1")

	out := buf.String()
	if n := strings.Count(out, "component=http"); n != 1 {
		t.Errorf("expected component once, got %d in %q", n, out)
	}
	if !strings.Contains(out, "user_id=u1") {
		t.Errorf("missing field in %q", out)
	}
	if logger.Component() != ComponentHTTP {
		t.Errorf("Component() = %q", logger.Component())
	}
}

func TestWithComponent_ReplacesParentComponent(t *testing.T) {
	logger, buf := newBufferLogger(ComponentApp, slog.LevelInfo)
	child := logger.With(FieldUserID, "u1").WithComponent(ComponentStorage)
	child.Info("opened")

	out := buf.String()
	if strings.Contains(out, "component=app") {
		t.Errorf("parent component leaked into %q", out)
	}
	if n := strings.Count(out, "component=storage"); n != 1 {
		t.Errorf("expected storage component once, got %d in %q", n, out)
	}
	if !strings.Contains(out, "user_id=u1") {
		t.Errorf("attributes added with With were dropped: %q", out)
	}
}

func TestBase_OmitsComponent(t *testing.T) {
	logger, buf := newBufferLogger(ComponentApp, slog.LevelInfo)
	logger.Base().With("component", "realtime_hub").Info("listening")

	out := buf.String()
	if strings.Contains(out, "component=app") {
		t.Errorf("Base kept the parent component: %q", out)
	}
	if !strings.Contains(out, "component=realtime_hub") {
		t.Errorf("missing own component in %q", out)
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	logger, buf := newBufferLogger("", slog.LevelWarn)
	logger.Info("quiet")
	logger.Warn("loud")

	if strings.Contains(buf.String(), "quiet") {
		t.Error("info record should be filtered")
	}
	if !strings.Contains(buf.String(), "loud") {
		t.Error("warn record missing")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Logger == nil {
		t.Fatal("expected fallback logger")
	}
	if l.Component() != "unknown" {
		t.Errorf("Component() = %q", l.Component())
	}
}

func TestMiddleware_AttachesRequestID(t *testing.T) {
	logger, buf := newBufferLogger(ComponentHTTP, slog.LevelInfo)

	h := middleware.RequestID(Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=") {
		t.Errorf("expected request id in %q", buf.String())
	}
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"ok", http.StatusOK, "level=INFO"},
		{"client error", http.StatusNotFound, "level=WARN"},
		{"server error", http.StatusInternalServerError, "level=ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(ComponentHTTP, slog.LevelInfo)
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			})
			h := Middleware(logger)(RequestLogger(func(*http.Request) string { return "203.0.113.9" })(inner))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/summary?x=1", nil))

			out := buf.String()
			for _, want := range []string{tt.wantLevel, "path=/api/v1/summary", "query=\"x=1\"", "client_ip=203.0.113.9", "bytes=4"} {
				if !strings.Contains(out, want) {
					t.Errorf("expected %q in %q", want, out)
				}
			}
			if rec.Code != tt.status {
				t.Errorf("status = %d", rec.Code)
			}
		})
	}
}

func TestRequestLogger_ImplicitOK(t *testing.T) {
	logger, buf := newBufferLogger(ComponentHTTP, slog.LevelInfo)
	h := Middleware(logger)(RequestLogger(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !strings.Contains(buf.String(), "status_code=200") {
		t.Errorf("expected status 200 in %q", buf.String())
	}
}

func TestStructuredLogger(t *testing.T) {
	logger, buf := newBufferLogger(ComponentSubscription, slog.LevelInfo)
	sl := NewStructuredLogger(logger)

	sl.LogSubscriptionChanged(context.Background(), OpCreate, "u1", "s1", "Netflix", 1490, "monthly", "entertainment", "2024-01-31")
	sl.LogError(context.Background(), "Store failed", errors.New("disk full"), OpUpdate, nil)

	out := buf.String()
	for _, want := range []string{"Subscription created", "subscription_id=s1", "amount_yen=1490", "operation=create", "error=\"disk full\"", "operation=update"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}
