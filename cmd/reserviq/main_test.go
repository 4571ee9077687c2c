package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	handler "github.com/reserviq/reserviq/internal/adapter/http"
	"github.com/reserviq/reserviq/internal/adapter/sqlite"
	"github.com/reserviq/reserviq/internal/app"
	"github.com/reserviq/reserviq/internal/clock"
	"github.com/reserviq/reserviq/internal/domain"
)

func TestEnvOrDefault_Fallback(t *testing.T) {
	v := envOrDefault("RESERVIQ_TEST_NONEXISTENT_KEY", "fallback")
	if v != "fallback" {
		t.Errorf("got %q, want %q", v, "fallback")
	}
}

func TestEnvOrDefault_EnvSet(t *testing.T) {
	t.Setenv("RESERVIQ_TEST_KEY", "custom")

	v := envOrDefault("RESERVIQ_TEST_KEY", "fallback")
	if v != "custom" {
		t.Errorf("got %q, want %q", v, "custom")
	}
}

func TestEnvIntOrDefault(t *testing.T) {
	if got := envIntOrDefault("RESERVIQ_TEST_NONEXISTENT_KEY", 15); got != 15 {
		t.Errorf("unset: got %d, want 15", got)
	}

	t.Setenv("RESERVIQ_TEST_INT", "30")
	if got := envIntOrDefault("RESERVIQ_TEST_INT", 15); got != 30 {
		t.Errorf("set: got %d, want 30", got)
	}

	t.Setenv("RESERVIQ_TEST_INT", "not-a-number")
	if got := envIntOrDefault("RESERVIQ_TEST_INT", 15); got != 15 {
		t.Errorf("garbage: got %d, want 15", got)
	}

	t.Setenv("RESERVIQ_TEST_INT", "-5")
	if got := envIntOrDefault("RESERVIQ_TEST_INT", 15); got != 15 {
		t.Errorf("negative: got %d, want 15", got)
	}
}

// testPublisher is a local EventPublisher for the smoke test.
// The smoke test verifies HTTP wiring, not River.
type testPublisher struct{}

func (p *testPublisher) Publish(_ context.Context, _ domain.Event, _ domain.Reservation) error {
	return nil
}

// testValidator is a local TransitionValidator for the smoke test.
type testValidator struct{}

func (v *testValidator) Apply(_ context.Context, current domain.Status, event domain.Event) (domain.Status, error) {
	for _, t := range domain.Transitions {
		if t.Event == event && t.Src == current {
			return t.Dst, nil
		}
	}
	return "", &domain.TransitionError{Event: event, Current: current}
}

// TestSmoke wires the full stack like main() and verifies it responds.
func TestSmoke(t *testing.T) {
	dbPath := t.TempDir() + "/test.db"

	repo, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := app.NewLifecycleService(
		repo,
		&testPublisher{},
		&testValidator{},
		sqlite.NewPaymentGate(repo.DB()),
		clock.NewSystem(),
	)

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("reserviq", "0.1.0"))
	handler.Register(api, svc)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	// Verify the server responds to list reservations.
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/api/v1/reservations", nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/v1/reservations failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var reservations []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&reservations); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(reservations) != 0 {
		t.Errorf("got %d reservations, want 0 (empty database)", len(reservations))
	}
}

// silenceStdout redirects os.Stdout to /dev/null for the rest of the test
// so the OTel stdout exporter does not flood the test log.
func silenceStdout(t *testing.T) {
	t.Helper()

	orig := os.Stdout
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("opening /dev/null: %v", err)
	}
	os.Stdout = devNull
	t.Cleanup(func() {
		os.Stdout = orig
		devNull.Close()
	})
}

// getStatus issues a GET and returns the status code, or an error if the
// server is not reachable.
func getStatus(t *testing.T, url string) (int, error) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// TestRun exercises the real run() function end-to-end: OTel, River, HTTP
// server, and graceful shutdown. It uses the stdout OTel exporter and a
// temp database to avoid external dependencies.
func TestRun(t *testing.T) {
	t.Setenv("DATABASE_PATH", t.TempDir()+"/test-run.db")
	t.Setenv("PORT", "19876")
	t.Setenv("OTEL_EXPORTER", "stdout")
	t.Setenv("OTEL_ENVIRONMENT", "test")
	silenceStdout(t)

	errCh := make(chan error, 1)
	go func() { errCh <- run() }()

	listURL := "http://localhost:19876/api/v1/reservations"

	// Poll until the HTTP server comes up, then verify it answers.
	var status int
	var reqErr error
	deadline := time.Now().Add(5 * time.Second)
	for {
		status, reqErr = getStatus(t, listURL)
		if reqErr == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if reqErr != nil {
		t.Fatalf("server did not start within 5 seconds: %v", reqErr)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}

	// SIGINT triggers graceful shutdown; run() must exit cleanly.
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("finding process: %v", err)
	}
	if err := proc.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("sending SIGINT: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run() returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not exit within 10 seconds")
	}
}

// TestRun_InvalidDB verifies run() returns an error for an invalid database path.
func TestRun_InvalidDB(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/nonexistent/path/db.sqlite")
	t.Setenv("PORT", "19877")
	t.Setenv("OTEL_EXPORTER", "stdout")
	t.Setenv("OTEL_ENVIRONMENT", "test")
	silenceStdout(t)

	if err := run(); err == nil {
		t.Fatal("expected error for invalid database path, got nil")
	}
}
