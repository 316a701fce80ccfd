package storage

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/toftmakemore/makemoreV2/models"
)

func testOpsStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := testOpsStore(t)

	run := &models.PipelineRun{
		TenantID:  "tenant-1",
		DealerID:  "1234",
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected nonzero run id")
	}
	run.ID = id

	now := time.Now()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	run.VehiclesFound = 42
	run.PostsCreated = 3
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	if err := store.Log(&run.ID, models.LogLevelInfo, "done", "tenant-1"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := store.UpdateTenantStats("tenant-1"); err != nil {
		t.Fatalf("update stats: %v", err)
	}
}

func TestCommandQueue(t *testing.T) {
	store := testOpsStore(t)

	params, _ := json.Marshal(models.CommandParams{Tenant: "Test Motors"})
	if _, err := store.db.Exec(
		`INSERT INTO commands (command, params) VALUES (?, ?)`,
		string(models.CmdRunTenant), string(params)); err != nil {
		t.Fatalf("insert command: %v", err)
	}

	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("expected 1 pending command, got %d", len(cmds))
	}

	parsed, err := store.ParseCommandParams(&cmds[0])
	if err != nil {
		t.Fatalf("parse params: %v", err)
	}
	if parsed.Tenant != "Test Motors" {
		t.Fatalf("unexpected tenant %q", parsed.Tenant)
	}

	if err := store.MarkCommandProcessed(cmds[0].ID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	cmds, err = store.GetPendingCommands()
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(cmds) != 0 {
		t.Fatalf("expected no pending commands after processing, got %d", len(cmds))
	}
}

func TestParseCommandParams_Empty(t *testing.T) {
	store := testOpsStore(t)

	params, err := store.ParseCommandParams(&models.Command{Command: models.CmdRunNow})
	if err != nil {
		t.Fatalf("parse nil params: %v", err)
	}
	if params.Tenant != "" {
		t.Fatalf("expected empty tenant, got %q", params.Tenant)
	}
}
