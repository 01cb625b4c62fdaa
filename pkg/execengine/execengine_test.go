package execengine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angela-sh/angela/pkg/backup"
	"github.com/angela-sh/angela/pkg/configstore"
	"github.com/angela-sh/angela/pkg/hookbus"
	"github.com/angela-sh/angela/pkg/risk"
	"github.com/angela-sh/angela/pkg/rollback"
	"github.com/angela-sh/angela/pkg/safety"
)

type alwaysYes struct{ notices []string }

func (a *alwaysYes) Confirm(prompt string) (bool, error) { return true, nil }
func (a *alwaysYes) Notify(message string)               { a.notices = append(a.notices, message) }

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()

	backups, err := backup.New(filepath.Join(root, "backups"))
	if err != nil {
		t.Fatal(err)
	}
	store, err := configstore.Load(filepath.Join(root, "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	rb, err := rollback.New(filepath.Join(root, "journal"), backups, store.Snapshot().Compensations, rollback.ShellRunner, nil)
	if err != nil {
		t.Fatal(err)
	}
	gate := safety.New(store, &alwaysYes{})
	classifier := risk.New()
	hooks := hookbus.New(nil)

	return New(gate, classifier, rb, hooks, backups, store.Snapshot().Compensations, nil), root
}

func TestExecuteCommandRunsBufferedCommand(t *testing.T) {
	e, _ := newTestEngine(t)
	result, err := e.ExecuteCommand(context.Background(), "echo hello", Options{CheckSafety: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%q)", result.ExitCode, result.Stderr)
	}
}

func TestExecuteCommandDryRunDoesNotRun(t *testing.T) {
	e, root := newTestEngine(t)
	marker := filepath.Join(root, "marker.txt")
	_, err := e.ExecuteCommand(context.Background(), "touch "+marker, Options{CheckSafety: true, DryRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Fatalf("expected dry run not to create the marker file")
	}
}

func TestExecuteFSOpCreateFileRecordsRollback(t *testing.T) {
	e, root := newTestEngine(t)
	path := filepath.Join(root, "created.txt")

	ok, err := e.ExecuteFSOp(context.Background(), FSOp{
		Kind:   rollback.KindCreateFile,
		Params: map[string]string{"path": path, "content": "hi"},
	}, Options{CheckSafety: true})
	if err != nil || !ok {
		t.Fatalf("expected successful create, got ok=%v err=%v", ok, err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected file to exist: %v", statErr)
	}
	history, err := os.ReadFile(filepath.Join(root, "journal", "operation_history.json"))
	if err != nil || !strings.Contains(string(history), `"operation_type": "create_file"`) {
		t.Fatalf("expected the create_file operation to be recorded, got %q (err=%v)", history, err)
	}
}

func TestExecuteFSOpWriteFileBacksUpExisting(t *testing.T) {
	e, root := newTestEngine(t)
	path := filepath.Join(root, "existing.txt")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, err := e.ExecuteFSOp(context.Background(), FSOp{
		Kind:   rollback.KindWriteFile,
		Params: map[string]string{"path": path, "content": "updated"},
	}, Options{CheckSafety: true})
	if err != nil || !ok {
		t.Fatalf("expected successful write, got ok=%v err=%v", ok, err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "updated" {
		t.Fatalf("expected updated content, got %q", data)
	}

	entries, err := os.ReadDir(filepath.Join(root, "backups"))
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected a backup to have been created, got %v (err=%v)", entries, err)
	}
}

func TestIsInteractiveDetectsTailFollow(t *testing.T) {
	if !isInteractive("tail -f /var/log/syslog") {
		t.Fatalf("expected `tail -f` to be detected as interactive")
	}
	if isInteractive("tail -n 10 /var/log/syslog") {
		t.Fatalf("expected plain `tail -n 10` not to be interactive")
	}
}

func TestIsContinuousLogFollowMatchesKnownForms(t *testing.T) {
	cases := []struct {
		command  string
		expected bool
	}{
		{"tail -f app.log", true},
		{"journalctl -f", true},
		{"docker logs --follow web", true},
		{"docker logs web", false},
		{"ls -la", false},
	}
	for _, c := range cases {
		if got := isContinuousLogFollow(c.command); got != c.expected {
			t.Errorf("isContinuousLogFollow(%q) = %v, want %v", c.command, got, c.expected)
		}
	}
}

func TestCdPrefixTranslatesToWorkingDirectory(t *testing.T) {
	e, root := newTestEngine(t)
	sub := filepath.Join(root, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	result, err := e.ExecuteCommand(context.Background(), "cd "+sub+" && pwd", Options{CheckSafety: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.TrimSpace(result.Stdout)
	if !strings.HasSuffix(got, string(filepath.Separator)+"sub") {
		t.Fatalf("expected pwd to report the sub directory, got %q (stderr=%q)", got, result.Stderr)
	}
}
