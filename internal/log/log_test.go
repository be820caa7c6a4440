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
)

func newBufferLogger(component string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: slog.LevelDebug, Component: component, Output: &buf}), &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug, " WARN ": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "": slog.LevelInfo, "verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	c := ConfigFromEnv(ComponentWorker)
	if c.Level != slog.LevelDebug || c.Format != "json" || c.Component != ComponentWorker {
		t.Fatalf("ConfigFromEnv() = %+v", c)
	}
}

func TestLogger_Component(t *testing.T) {
	l, buf := newBufferLogger(ComponentStore)
	l.Info("hello", FieldTransactionID, "abc")
	out := buf.String()
	if !strings.Contains(out, "component=store") || !strings.Contains(out, "transaction_id=abc") {
		t.Fatalf("log line = %q", out)
	}

	buf.Reset()
	l.WithComponent(ComponentAuth).Warn("again")
	if out := buf.String(); strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=auth") {
		t.Fatalf("log line = %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	l.Info("x")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected json, got %q", buf.String())
	}
}

func TestMiddleware_ContextLogger(t *testing.T) {
	l, buf := newBufferLogger(ComponentHTTP)
	var got *Logger
	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == nil || got.Component() != ComponentHTTP {
		t.Fatalf("context logger = %+v", got)
	}
	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request id missing: %q", buf.String())
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("FromContext without a logger must fall back")
	}
}

func TestStructuredLogger(t *testing.T) {
	l, buf := newBufferLogger(ComponentApp)
	sl := NewStructuredLogger(l)
	r := httptest.NewRequest(http.MethodPost, "/transactions?x=1", nil)

	sl.LogHTTPEnd(context.Background(), r, 503, 12, "1.2.3.4", "req_2")
	if out := buf.String(); !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "status_code=503") {
		t.Fatalf("LogHTTPEnd = %q", out)
	}

	buf.Reset()
	sl.LogTransactionChange(context.Background(), OpUpdate, "id-1", "Chi", "Food", "10")
	if out := buf.String(); !strings.Contains(out, `msg="Transaction updated"`) || !strings.Contains(out, "operation=update") {
		t.Fatalf("LogTransactionChange = %q", out)
	}

	buf.Reset()
	sl.LogError(context.Background(), "boom", errors.New("bad"), ComponentSheets, OpList, nil)
	if out := buf.String(); !strings.Contains(out, "error=bad") || !strings.Contains(out, "component=sheets") {
		t.Fatalf("LogError = %q", out)
	}
}
