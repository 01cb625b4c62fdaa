package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBackupFileRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := New(filepath.Join(root, "backups"))
	if err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(src, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	backupPath, err := store.BackupFile(src, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	if err := os.WriteFile(src, []byte("modified"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Restore(backupPath, src); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "original" {
		t.Fatalf("expected restored content %q, got %q", "original", data)
	}
}

func TestBackupDirectoryRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := New(filepath.Join(root, "backups"))
	if err != nil {
		t.Fatal(err)
	}

	srcDir := filepath.Join(root, "project")
	if err := os.MkdirAll(filepath.Join(srcDir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "nested", "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	backupPath, err := store.BackupDirectory(srcDir, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	if err := os.RemoveAll(srcDir); err != nil {
		t.Fatal(err)
	}
	if err := store.Restore(backupPath, srcDir); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(srcDir, "nested", "a.txt"))
	if err != nil {
		t.Fatalf("expected restored file, got error: %v", err)
	}
	if string(data) != "a" {
		t.Fatalf("expected content 'a', got %q", data)
	}
}

func TestBackupFileRejectsDirectory(t *testing.T) {
	root := t.TempDir()
	store, _ := New(filepath.Join(root, "backups"))
	if _, err := store.BackupFile(root, time.Now()); err == nil {
		t.Fatalf("expected error backing up a directory with BackupFile")
	}
}
