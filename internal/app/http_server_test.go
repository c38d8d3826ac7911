package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/sales/internal/health"
	"github.com/vladislavdragonenkov/sales/internal/version"
)

func TestMetricsServer_Endpoints(t *testing.T) {
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	srv := newMetricsServer(healthHandler)

	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	endpoints := []string{"/metrics", "/healthz", "/livez", "/readyz"}
	for _, path := range endpoints {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Errorf("failed to get %s: %v", path, err)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s returned status %d, expected 200", path, resp.StatusCode)
		}
		if len(body) == 0 {
			t.Errorf("%s should return non-empty response", path)
		}
	}
}

func TestMetricsServer_LivezBody(t *testing.T) {
	srv := newMetricsServer(healthcheck.NewHandler(version.GetVersion()))

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if rec.Body.String() != "ok" {
		t.Errorf("expected 'ok' from /livez, got '%s'", rec.Body.String())
	}
}

func TestMetricsServer_HealthzReportsFailingStore(t *testing.T) {
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", func(context.Context) error {
		return errors.New("connection refused")
	}))
	srv := newMetricsServer(healthHandler)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for failing store, got %d", rec.Code)
	}
	var response healthcheck.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if response.Checks["postgres"].Status != healthcheck.StatusUnhealthy {
		t.Errorf("expected unhealthy postgres check, got %+v", response.Checks["postgres"])
	}
}

func TestServeHTTP_StopsOnShutdown(t *testing.T) {
	logger := log.WithField("test", "http-shutdown")

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	srv := newMetricsServer(healthcheck.NewHandler(version.GetVersion()))

	done := make(chan error, 1)
	go func() { done <- serveHTTP(srv, lis) }()

	url := fmt.Sprintf("http://%s/livez", lis.Addr())
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("server should be running: %v", err)
	}
	resp.Body.Close()

	shutdownHTTP(srv, logger)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveHTTP should return nil after shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serveHTTP did not return after shutdown")
	}

	if _, err := http.Get(url); err == nil {
		t.Error("server should be stopped after shutdownHTTP")
	}
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	logger := log.WithField("test", "http-nil")

	// Не должно паниковать
	shutdownHTTP(nil, logger)
}

// findFreePort находит свободный порт для тестов
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}
