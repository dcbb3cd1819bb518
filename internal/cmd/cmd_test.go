package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/fleetcore/internal/advisor"
	"github.com/Iron-Ham/fleetcore/internal/api"
	"github.com/Iron-Ham/fleetcore/internal/config"
	"github.com/Iron-Ham/fleetcore/internal/logging"
	"github.com/Iron-Ham/fleetcore/internal/orchestrator"
	"github.com/Iron-Ham/fleetcore/internal/scaling"
	"github.com/Iron-Ham/fleetcore/internal/snapshot"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Snapshot.Dir = filepath.Join(dir, "snapshots")
	cfg.Snapshot.SQLitePath = filepath.Join(dir, "snapshots.db")
	return cfg
}

func newTestRuntime(t *testing.T, cfg *config.Config) *runtime {
	t.Helper()
	rt, err := newRuntime(context.Background(), cfg, logging.NopLogger())
	if err != nil {
		t.Fatalf("newRuntime() error = %v", err)
	}
	t.Cleanup(func() {
		_ = rt.orch.Shutdown(context.Background())
		rt.close()
	})
	return rt
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "fleetcore" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "fleetcore")
	}

	expectedCmds := []string{"serve", "submit", "status", "config"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestNewRuntime_PlanFromTarget(t *testing.T) {
	rt := newTestRuntime(t, testConfig(t))

	status := rt.orch.Status()
	if status.Pool.Concurrency != 200 {
		t.Errorf("Concurrency = %d, want 200 (1000 / 5)", status.Pool.Concurrency)
	}
	if status.Reserved.Reserved != 60 || status.Reserved.Class != "research" {
		t.Errorf("Reserved = %+v, want research with 60 slots", status.Reserved)
	}
}

func TestNewRuntime_FixedConcurrency(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Concurrency = 10
	rt := newTestRuntime(t, cfg)

	status := rt.orch.Status()
	if status.Pool.Concurrency != 10 || status.Reserved.Reserved != 3 {
		t.Errorf("status = %+v, want concurrency 10 reserved 3", status)
	}
}

func TestNewRuntime_RestoresAdvisor(t *testing.T) {
	cfg := testConfig(t)

	seed := advisor.New(2)
	seed.Observe("simulate", 1)
	data, err := seed.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	store, err := snapshot.NewFileStore(cfg.Snapshot.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(context.Background(), api.AdvisorKey, data); err != nil {
		t.Fatal(err)
	}

	rt := newTestRuntime(t, cfg)
	if got := rt.advisor.Stats()["simulate"].Count; got != 1 {
		t.Errorf("restored count = %d, want 1", got)
	}
}

func TestNewRuntime_SQLiteBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Snapshot.Backend = "sqlite"
	rt := newTestRuntime(t, cfg)

	if _, ok := rt.store.(*snapshot.SQLiteStore); !ok {
		t.Errorf("store = %T, want *snapshot.SQLiteStore", rt.store)
	}
}

func TestNewRuntime_ServesAuditLog(t *testing.T) {
	rt := newTestRuntime(t, testConfig(t))
	if _, err := rt.orch.SubmitTask(orchestrator.Submission{ID: "audited", Type: "publish"}); err != nil {
		t.Fatalf("SubmitTask() error = %v", err)
	}

	rec := httptest.NewRecorder()
	rt.api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit?event=task.submitted", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"id":"audited"`) {
		t.Errorf("body = %s, want the audited submission", rec.Body.String())
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	if _, err := openStore(config.SnapshotConfig{Backend: "redis"}); err == nil {
		t.Error("openStore(redis) error = nil, want error")
	}
}

func TestApplyConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Concurrency = 10
	rt := newTestRuntime(t, cfg)

	next := *cfg
	next.Scheduler.Concurrency = 20
	decision := rt.applyConfig(&next)

	if decision.Action != scaling.ActionScaleUp {
		t.Errorf("Action = %v, want %v", decision.Action, scaling.ActionScaleUp)
	}
	status := rt.orch.Status()
	if status.Pool.Concurrency != 20 || status.Reserved.Reserved != 6 {
		t.Errorf("status = %+v, want concurrency 20 reserved 6", status)
	}

	// Same size with a different share only moves the reservation.
	same := next
	same.Scheduler.ReservedShare = 0.5
	rt.applyConfig(&same)
	if got := rt.orch.Status().Reserved.Reserved; got != 10 {
		t.Errorf("Reserved = %d, want 10", got)
	}
}

func TestSubmitAndStatusCommands(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Concurrency = 10
	rt := newTestRuntime(t, cfg)
	srv := httptest.NewServer(rt.api.Handler())
	defer srv.Close()

	out, err := executeCommand(rootCmd, "submit",
		"--server", srv.URL,
		"--type", "research",
		"--priority", "7",
		"--payload", `{"category":"research.global"}`,
	)
	if err != nil {
		t.Fatalf("submit error = %v (%s)", err, out)
	}
	if !strings.Contains(out, "Submitted") || !strings.Contains(out, "(research)") {
		t.Errorf("submit output = %q", out)
	}

	out, err = executeCommand(rootCmd, "status", "--server", srv.URL)
	if err != nil {
		t.Fatalf("status error = %v (%s)", err, out)
	}
	if !strings.Contains(out, "Queued:      1") {
		t.Errorf("status output = %q, want one queued task", out)
	}
	if !strings.Contains(out, "research 0/3 running, 1 queued") {
		t.Errorf("status output = %q, want reserved lane line", out)
	}
}

func TestSubmitCommand_InvalidPayload(t *testing.T) {
	_, err := executeCommand(rootCmd, "submit",
		"--server", "http://127.0.0.1:1",
		"--type", "predict",
		"--payload", "{not json",
	)
	if err == nil || !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("error = %v, want invalid payload error", err)
	}
}

func TestConfigShowCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	out, err := executeCommand(rootCmd, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"scheduler:", "reserved_share: 0.3", "target_concurrency: 1000"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show output missing %q:\n%s", want, out)
		}
	}
}
