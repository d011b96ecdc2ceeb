package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/engine"
	"github.com/nerrad567/gray-logic-react/internal/eventloop"
	"github.com/nerrad567/gray-logic-react/internal/infrastructure/logging"
)

const testWorkflows = `
workflows:
  porch:
    actor:
      entity: motion
      type: sensor
    reactor:
      entity: porch
      type: light
      action: "on"
  broken:
    mode: sometimes
    actor:
      entity: a
      type: t
    reactor:
      entity: b
      type: t
`

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("REACT_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeFile(t, tmpDir, "config.yaml", `
database:
  path: ""
mqtt:
  enabled: false
react:
  workflows_file: "workflows.yaml"
`)
	t.Setenv("REACT_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_MissingWorkflows verifies run fails when the workflows file is absent.
func TestRun_MissingWorkflows(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeFile(t, tmpDir, "config.yaml", fmt.Sprintf(`
mqtt:
  enabled: false
api:
  host: "127.0.0.1"
  port: %d
react:
  workflows_file: %q
  trace_persist: false
`, freePort(t), filepath.Join(tmpDir, "missing.yaml")))
	t.Setenv("REACT_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without a workflows file")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("REACT_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("REACT_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestNewReloader verifies valid workflows are applied and invalid ones skipped.
func TestNewReloader(t *testing.T) {
	path := writeFile(t, t.TempDir(), "workflows.yaml", testWorkflows)

	loop := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	rt := engine.New(engine.Options{})
	reload := newReloader(path, loop, rt, logging.Default())

	res, err := reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(res.Workflows) != 1 || len(res.Errors["broken"]) == 0 {
		t.Errorf("result = %+v", res)
	}

	var loaded []engine.WorkflowInfo
	if err := loop.Do(ctx, func() { loaded = rt.Workflows() }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "porch" {
		t.Errorf("loaded = %+v", loaded)
	}
}

// TestRun_SuccessfulStartupAndShutdown starts the engine without external
// services, checks the API answers and shuts it down.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	workflows := writeFile(t, tmpDir, "workflows.yaml", testWorkflows)
	port := freePort(t)
	configPath := writeFile(t, tmpDir, "config.yaml", fmt.Sprintf(`
site:
  id: test-site
  timezone: UTC
database:
  path: %q
mqtt:
  enabled: false
influxdb:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
api:
  host: "127.0.0.1"
  port: %d
react:
  workflows_file: %q
  trace_persist: true
`, filepath.Join(tmpDir, "react.db"), port, workflows))
	t.Setenv("REACT_CONFIG", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url) //nolint:noctx // test poll
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("API never became healthy: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}
