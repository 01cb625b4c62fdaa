package configstore

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := store.Snapshot()
	if cfg.FuzzyThreshold != 0.6 {
		t.Fatalf("expected default fuzzy threshold 0.6, got %v", cfg.FuzzyThreshold)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	store.AddTrusted("ls -la")
	if err := store.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.IsTrusted("ls -la") {
		t.Fatalf("expected `ls -la` to be trusted after reload")
	}
}

func TestRecordOutcomeAccumulates(t *testing.T) {
	store, _ := Load(filepath.Join(t.TempDir(), "c.json"))
	store.RecordOutcome("npm test", true)
	store.RecordOutcome("npm test", true)
	e := store.RecordOutcome("npm test", false)
	if e.Successes != 2 || e.Failures != 1 {
		t.Fatalf("expected 2 successes/1 failure, got %+v", e)
	}
	rate, ok := e.SuccessRate()
	if !ok || rate < 0.66 || rate > 0.67 {
		t.Fatalf("expected ~0.667 success rate, got %v (ok=%v)", rate, ok)
	}
}

func TestRecordRejectionIncrements(t *testing.T) {
	store, _ := Load(filepath.Join(t.TempDir(), "c.json"))
	store.RecordRejection("rm -rf /tmp/x")
	n := store.RecordRejection("rm -rf /tmp/x")
	if n != 2 {
		t.Fatalf("expected rejection count 2, got %d", n)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(); err != nil {
		t.Fatal(err)
	}

	changed := make(chan Config, 1)
	w := NewWatcher(store, 20*time.Millisecond, func(cfg Config) { changed <- cfg })
	go w.Start()
	defer w.Stop()

	time.Sleep(30 * time.Millisecond)
	store.AddTrusted("docker ps")
	if err := store.Save(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected watcher to observe the change")
	}
}
