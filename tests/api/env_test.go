// Package api runs end-to-end API tests against an in-process server backed
// by real SurrealDB, Redis and PostgreSQL containers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/playasset/internal/app"
	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/server"
	tcommon "github.com/bobmcallan/playasset/tests/common"
)

// EnvOptions configures the test environment.
type EnvOptions struct {
	// PostgresLedger moves positions and trades onto the PostgreSQL container.
	PostgresLedger bool
}

// Env is an isolated server with its own SurrealDB database and Redis prefix.
type Env struct {
	t          *testing.T
	App        *app.App
	server     *httptest.Server
	ResultsDir string
}

// NewEnv creates an environment with the default options.
func NewEnv(t *testing.T) *Env {
	return NewEnvWithOptions(t, EnvOptions{})
}

// NewEnvWithOptions creates an environment. Requires Docker; skipped unless
// PLAYASSET_TEST_DOCKER=true.
func NewEnvWithOptions(t *testing.T, opts EnvOptions) *Env {
	t.Helper()

	if os.Getenv("PLAYASSET_TEST_DOCKER") != "true" {
		t.Skip("Docker tests disabled (set PLAYASSET_TEST_DOCKER=true to enable)")
		return nil
	}

	surreal := tcommon.StartSurrealDB(t)
	redis := tcommon.StartRedis(t)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	suffix := fmt.Sprintf("%s_%d", name, time.Now().UnixNano()%1000000)

	cfg := common.NewDefaultConfig()
	cfg.Storage = surreal.StorageConfig(t, "playasset_api")
	cfg.Redis.Address = redis.Address()
	cfg.Redis.KeyPrefix = "test:" + suffix + ":"
	cfg.Cache.Backend = "redis"
	cfg.Lock.Backend = "redis"
	cfg.Jobs.SimulationBatch.Enabled = false
	if opts.PostgresLedger {
		pg := tcommon.StartPostgres(t)
		cfg.Ledger.Backend = "postgres"
		cfg.Ledger.DSN = pg.DSN()
	}

	a, err := app.NewWithConfig(context.Background(), cfg, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("Failed to initialize app: %v", err)
	}

	datetime := time.Now().Format("20060102-150405")
	resultsDir := filepath.Join(findProjectRoot(), "tests", "results", datetime+"-"+name)

	env := &Env{
		t:          t,
		App:        a,
		server:     httptest.NewServer(server.NewServer(a).Handler()),
		ResultsDir: resultsDir,
	}
	t.Cleanup(env.Cleanup)
	return env
}

// Cleanup stops the server and releases the app.
func (e *Env) Cleanup() {
	if e == nil {
		return
	}
	if e.server != nil {
		e.server.Close()
		e.server = nil
	}
	if e.App != nil {
		e.App.Close()
		e.App = nil
	}
}

// HTTPGet issues a GET against the test server.
func (e *Env) HTTPGet(path string) (*http.Response, error) {
	return http.Get(e.server.URL + path)
}

// HTTPPost issues a POST with a JSON body.
func (e *Env) HTTPPost(path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
}

// ReadJSON decodes a response body into v and closes it.
func (e *Env) ReadJSON(resp *http.Response, v any) {
	e.t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		e.t.Fatalf("decode body %q: %v", truncate(string(body), 300), err)
	}
}

// SaveResult writes test output to the results directory.
func (e *Env) SaveResult(name string, data []byte) error {
	if err := os.MkdirAll(e.ResultsDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(e.ResultsDir, name), data, 0644)
}

// findProjectRoot walks up directories to find go.mod
func findProjectRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
