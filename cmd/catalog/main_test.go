package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with an unreadable config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("CATALOG_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want a config error", err)
	}
}

// TestRun_InvalidCleanup verifies validation errors stop startup.
func TestRun_InvalidCleanup(t *testing.T) {
	t.Setenv("CATALOG_CONFIG", writeConfig(t, t.TempDir(), 18080))
	t.Setenv("CLEANUP_THRESHOLD", "0")

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "cleanup.threshold_minutes") {
		t.Errorf("run() error = %v, want threshold validation error", err)
	}
}

// TestRun_ServesUntilCancelled starts the catalog on SQLite and registers a
// plant through the live listener.
func TestRun_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	t.Setenv("CATALOG_CONFIG", writeConfig(t, t.TempDir(), port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitReady(t, base+"/health")

	resp, err := http.Post(base+"/plants", "application/json",
		strings.NewReader(`{"plantId": 201, "plantDate": "2024-07-28"}`))
	if err != nil {
		t.Fatalf("POST /plants: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /plants = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want clean shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CATALOG_CONFIG", "/etc/smm/catalog.yaml")
	if got := getConfigPath(); got != "/etc/smm/catalog.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}

	t.Setenv("CATALOG_CONFIG", "")
	t.Chdir(t.TempDir())
	if got := getConfigPath(); got != "" {
		t.Errorf("getConfigPath() without a file = %q, want env-only", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := loadDotEnv(); err != nil {
		t.Fatalf("loadDotEnv() without .env error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SMM_DOTENV_PROBE=loaded\n"), 0600); err != nil {
		t.Fatalf("writing .env: %v", err)
	}
	t.Setenv("SMM_DOTENV_PROBE", "")
	os.Unsetenv("SMM_DOTENV_PROBE")
	if err := loadDotEnv(); err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	if got := os.Getenv("SMM_DOTENV_PROBE"); got != "loaded" {
		t.Errorf("SMM_DOTENV_PROBE = %q, want loaded", got)
	}
}

func writeConfig(t *testing.T, dir string, port int) string {
	t.Helper()

	content := fmt.Sprintf(`
database:
  driver: sqlite
  url: %q
  wal_mode: true
  busy_timeout: 5

cleanup:
  threshold_minutes: 60
  interval_seconds: 300

seed:
  broker:
    ip: "127.0.0.1"
    port: 1883
  main_topic: "SMM"

api:
  host: "127.0.0.1"
  port: %d

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr
`, filepath.Join(dir, "catalog.db"), port)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitReady(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url) //nolint:gosec // Test URL
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("%s never became ready", url)
}
