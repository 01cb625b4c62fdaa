package rollback

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/angela-sh/angela/pkg/backup"
	"github.com/angela-sh/angela/pkg/configstore"
)

func newManager(t *testing.T) (*Manager, *backup.Store, string) {
	t.Helper()
	root := t.TempDir()
	backups, err := backup.New(filepath.Join(root, "backups"))
	if err != nil {
		t.Fatal(err)
	}
	mgr, err := New(filepath.Join(root, "journal"), backups, configstore.Default().Compensations, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return mgr, backups, root
}

func TestBeginRecordEndTransaction(t *testing.T) {
	mgr, _, _ := newManager(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	txID, err := mgr.Begin("edit config", now)
	if err != nil {
		t.Fatal(err)
	}
	opID, err := mgr.Record(KindCreateFile, map[string]string{"path": "/tmp/x"}, "", txID, "", nil, now)
	if err != nil {
		t.Fatal(err)
	}
	if opID != 0 {
		t.Fatalf("expected first operation id 0, got %d", opID)
	}
	if err := mgr.End(txID, StatusCompleted); err != nil {
		t.Fatal(err)
	}

	recent := mgr.ListRecent(10)
	if len(recent) != 1 || recent[0].Status != StatusCompleted {
		t.Fatalf("expected one completed transaction, got %+v", recent)
	}
}

func TestRollbackCreateFileUnlinks(t *testing.T) {
	mgr, _, root := newManager(t)
	now := time.Now()

	path := filepath.Join(root, "created.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	opID, err := mgr.Record(KindCreateFile, map[string]string{"path": path}, "", "", "", nil, now)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := mgr.RollbackOp(opID)
	if err != nil || !ok {
		t.Fatalf("expected successful rollback, got ok=%v err=%v", ok, err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("expected created file to be removed")
	}
}

func TestRollbackWriteFileRestoresBackup(t *testing.T) {
	mgr, backups, root := newManager(t)
	now := time.Now()

	path := filepath.Join(root, "doc.txt")
	os.WriteFile(path, []byte("before"), 0o644)
	backupPath, err := backups.BackupFile(path, now)
	if err != nil {
		t.Fatal(err)
	}
	os.WriteFile(path, []byte("after"), 0o644)

	opID, err := mgr.Record(KindWriteFile, map[string]string{"path": path}, backupPath, "", "", nil, now)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := mgr.RollbackOp(opID)
	if err != nil || !ok {
		t.Fatalf("expected successful rollback, got ok=%v err=%v", ok, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "before" {
		t.Fatalf("expected restored content 'before', got %q", data)
	}
}

func TestRollbackContentReversesUndriftedEdit(t *testing.T) {
	mgr, _, root := newManager(t)
	now := time.Now()

	path := filepath.Join(root, "main.go")
	oldContent := "package main\n\nfunc main() {}\n"
	newContent := "package main\n\nfunc main() { println(\"hi\") }\n"
	os.WriteFile(path, []byte(newContent), 0o644)

	undo := BuildContentUndo(oldContent, newContent)
	opID, err := mgr.Record(KindContent, map[string]string{"path": path}, "", "", "", undo, now)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := mgr.RollbackOp(opID)
	if err != nil || !ok {
		t.Fatalf("expected successful rollback, got ok=%v err=%v", ok, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != oldContent {
		t.Fatalf("expected reverted content %q, got %q", oldContent, data)
	}
}

func TestRollbackContentFailsOnDrift(t *testing.T) {
	mgr, _, root := newManager(t)
	now := time.Now()

	path := filepath.Join(root, "drifted.go")
	oldContent := "line one\nline two\nline three\n"
	newContent := "line one\nline TWO\nline three\n"
	undo := BuildContentUndo(oldContent, newContent)

	// Simulate a third edit happening before rollback, unrelated to the
	// stored patch's context.
	os.WriteFile(path, []byte("completely different content entirely\n"), 0o644)

	opID, err := mgr.Record(KindContent, map[string]string{"path": path}, "", "", "", undo, now)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := mgr.RollbackOp(opID)
	if ok || err == nil {
		t.Fatalf("expected drift to cause rollback failure, got ok=%v err=%v", ok, err)
	}
}

func TestRollbackCommandUsesCompensationTable(t *testing.T) {
	root := t.TempDir()
	backups, _ := backup.New(filepath.Join(root, "backups"))

	var ran []string
	runner := func(ctx context.Context, command string) error {
		ran = append(ran, command)
		return nil
	}
	mgr, err := New(filepath.Join(root, "journal"), backups, configstore.Default().Compensations, runner, nil)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	compensator, ok := ResolveCompensation(configstore.Default().Compensations, "mkdir scratch")
	if !ok {
		t.Fatalf("expected a compensating command for mkdir")
	}
	opID, err := mgr.Record(KindCommand, map[string]string{"command": "mkdir scratch"}, "", "", "", map[string]string{"compensating_command": compensator}, now)
	if err != nil {
		t.Fatal(err)
	}

	ok2, err := mgr.RollbackOp(opID)
	if err != nil || !ok2 {
		t.Fatalf("expected successful rollback, got ok=%v err=%v", ok2, err)
	}
	if len(ran) != 1 || ran[0] != "rmdir scratch" {
		t.Fatalf("expected rmdir scratch to run, got %v", ran)
	}
}

func TestResolveCompensationCoversSeedTable(t *testing.T) {
	rules := configstore.Default().Compensations
	cases := []struct {
		command string
		want    string
	}{
		{"git commit", "git reset --soft HEAD~1"},
		{"git push origin main", "git push -f origin main^"},
		{"npm install lodash", "npm uninstall lodash"},
		{"pip install requests", "pip uninstall requests"},
		{"apt-get install curl", "apt-get remove curl"},
	}
	for _, c := range cases {
		got, ok := ResolveCompensation(rules, c.command)
		if !ok {
			t.Fatalf("expected a compensating command for %q", c.command)
		}
		if got != c.want {
			t.Fatalf("command %q: expected compensator %q, got %q", c.command, c.want, got)
		}
	}
}

func TestRollbackTxUndoesNewestFirst(t *testing.T) {
	mgr, _, root := newManager(t)
	now := time.Now()

	txID, err := mgr.Begin("batch create", now)
	if err != nil {
		t.Fatal(err)
	}
	pathA := filepath.Join(root, "a.txt")
	pathB := filepath.Join(root, "b.txt")
	os.WriteFile(pathA, []byte("a"), 0o644)
	os.WriteFile(pathB, []byte("b"), 0o644)

	idA, err := mgr.Record(KindCreateFile, map[string]string{"path": pathA}, "", txID, "", nil, now)
	if err != nil {
		t.Fatal(err)
	}
	idB, err := mgr.Record(KindCreateFile, map[string]string{"path": pathB}, "", txID, "", nil, now)
	if err != nil {
		t.Fatal(err)
	}

	report, err := mgr.RollbackTx(txID)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Succeeded) != 2 || len(report.Failed) != 0 {
		t.Fatalf("expected both operations to roll back cleanly, got %+v", report)
	}
	if report.Succeeded[0] != idB || report.Succeeded[1] != idA {
		t.Fatalf("expected op %d undone before op %d, got order %v", idB, idA, report.Succeeded)
	}
	if _, statErr := os.Stat(pathA); !os.IsNotExist(statErr) {
		t.Fatalf("expected a.txt removed")
	}
	if _, statErr := os.Stat(pathB); !os.IsNotExist(statErr) {
		t.Fatalf("expected b.txt removed")
	}
}
