package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestRequestLoggerQuietsPolledPaths(t *testing.T) {
	logs := captureLogs(t)
	h := NewServer(newStub(), nil)

	do(t, h, http.MethodGet, "/api/v1/obs", "")
	do(t, h, http.MethodGet, "/health", "")
	if strings.Contains(logs.String(), "http request") {
		t.Fatalf("polled paths logged at info: %s", logs.String())
	}
}

func TestRequestLoggerAddsBoardAndRoute(t *testing.T) {
	logs := captureLogs(t)
	h := NewServer(newStub(), nil)

	w := do(t, h, http.MethodPut, "/api/v1/mapping/3", `{"white":"Cam 3","black":""}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	out := logs.String()
	for _, want := range []string{"level=INFO", "board=3", "route=/api/v1/mapping/{board}", "status=200"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q: %s", want, out)
		}
	}
}

func TestRequestLoggerWarnsOnServerErrors(t *testing.T) {
	logs := captureLogs(t)
	stub := newStub()
	stub.switchErr = errors.New("boom")
	do(t, NewServer(stub, nil), http.MethodPost, "/api/v1/obs/scene", `{"scene":"x"}`)

	if !strings.Contains(logs.String(), "level=WARN msg=\"http request\"") {
		t.Fatalf("server error not logged at warn: %s", logs.String())
	}
}
