package angela

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/angela-sh/angela/pkg/configstore"
	"github.com/angela-sh/angela/pkg/execengine"
	"github.com/angela-sh/angela/pkg/logx"
	"github.com/angela-sh/angela/pkg/risk"
	"github.com/angela-sh/angela/pkg/rollback"
	"github.com/angela-sh/angela/pkg/session"
)

type alwaysYesPrompter struct{}

func (alwaysYesPrompter) Confirm(prompt string) (bool, error) { return true, nil }
func (alwaysYesPrompter) Notify(message string)               {}

func newTestAngela(t *testing.T) *Angela {
	t.Helper()
	root := t.TempDir()

	// Point backup/journal roots at the test's temp dir rather than the
	// real per-user data directory Default() would otherwise pick.
	configPath := filepath.Join(root, "config.json")
	overlay := map[string]string{
		"backup_root":  filepath.Join(root, "backups"),
		"journal_root": filepath.Join(root, "journal"),
	}
	data, err := json.Marshal(overlay)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := configstore.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	sess := session.New(root, root, "go")
	a, err := New(Deps{
		Config:   cfg,
		Log:      logx.New(filepath.Join(root, "test.log")),
		Prompter: alwaysYesPrompter{},
		Session:  sess,
		Cwd:      root,
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestClassifyReturnsTierAndImpact(t *testing.T) {
	a := newTestAngela(t)
	tier, reason, impact := a.Classify("rm -rf /")
	if tier != risk.Critical {
		t.Fatalf("expected rm -rf / to be CRITICAL, got %s", tier)
	}
	if reason == "" {
		t.Fatalf("expected a non-empty reason")
	}
	if !impact.Destructive {
		t.Fatalf("expected rm -rf to be marked destructive")
	}
}

func TestExecuteRunsThroughEngine(t *testing.T) {
	a := newTestAngela(t)
	result, err := a.Execute(context.Background(), "echo hi", execengine.Options{CheckSafety: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	a := newTestAngela(t)
	txID, err := a.BeginTransaction("test transaction")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "file.txt")
	ok, err := a.ExecuteFS(context.Background(), execengine.FSOp{
		Kind:   rollback.KindCreateFile,
		Params: map[string]string{"path": path, "content": "hi"},
	}, execengine.Options{CheckSafety: true, TransactionID: txID})
	if err != nil || !ok {
		t.Fatalf("expected fs op to succeed, got ok=%v err=%v", ok, err)
	}

	if err := a.EndTransaction(txID, rollback.StatusCompleted); err != nil {
		t.Fatal(err)
	}

	report, err := a.RollbackTransaction(txID)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Succeeded) != 1 {
		t.Fatalf("expected 1 successful rollback, got %+v", report)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("expected created file to be removed by rollback")
	}
}
