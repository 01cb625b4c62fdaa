package preview

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateMkdirNew(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir)
	out, err := g.Generate(context.Background(), "mkdir newdir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "will create directory: newdir") {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestGenerateRmMissingFile(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir)
	out, err := g.Generate(context.Background(), "rm ghost.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "does not exist") {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestGenerateRmExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := NewGenerator(dir)
	out, err := g.Generate(context.Background(), "rm a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "⚠ will remove file: a.txt") {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestGenerateCpOverwriteWarns(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	os.WriteFile(src, []byte("new content"), 0o644)
	os.WriteFile(dst, []byte("old content"), 0o644)

	g := NewGenerator(dir)
	out, err := g.Generate(context.Background(), "cp src.txt dst.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "⚠ will overwrite: dst.txt") {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestGenerateUnknownCommand(t *testing.T) {
	g := NewGenerator(t.TempDir())
	out, err := g.Generate(context.Background(), "frobnicate --widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "preview not available") {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestGenerateEmptyCommand(t *testing.T) {
	g := NewGenerator(t.TempDir())
	out, err := g.Generate(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "empty command") {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestGenerateTarExtract(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "bundle.tar.gz")
	os.WriteFile(archive, []byte("fake"), 0o644)

	g := NewGenerator(dir)
	out, err := g.Generate(context.Background(), "tar xzf bundle.tar.gz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "will extract bundle.tar.gz") {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestGenerateZipCreate(t *testing.T) {
	g := NewGenerator(t.TempDir())
	out, err := g.Generate(context.Background(), "zip -c archive.zip file.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "will create archive archive.zip from 1 source(s)") {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestGenerateAptInstall(t *testing.T) {
	g := NewGenerator(t.TempDir())
	out, err := g.Generate(context.Background(), "apt-get install curl jq")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "will install 2 package(s): curl, jq") {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestGenerateDockerRun(t *testing.T) {
	g := NewGenerator(t.TempDir())
	out, err := g.Generate(context.Background(), "docker run -it ubuntu")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "will start a new container from image ubuntu") {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestGenerateGitPushForce(t *testing.T) {
	g := NewGenerator(t.TempDir())
	out, err := g.Generate(context.Background(), "git push --force origin main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "⚠ will force-push to origin main") {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestGenerateCurlDownload(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir)
	out, err := g.Generate(context.Background(), "curl https://example.com/file -o out.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "will fetch https://example.com/file and save it to out.bin") {
		t.Fatalf("unexpected preview: %q", out)
	}
}
