// Package preview forecasts the effect of a shell command without running
// it. Analysers are read-only: they stat and glob, never write.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/angela-sh/angela/pkg/shlex"
)

// Generator produces a multi-line preview string for a command. The zero
// value is usable; NewGenerator only exists to make the analyser table's
// working directory explicit to callers that need a non-default cwd.
type Generator struct {
	cwd string
}

// NewGenerator builds a Generator rooted at dir. An empty dir means the
// process's current working directory.
func NewGenerator(dir string) *Generator {
	return &Generator{cwd: dir}
}

// dryRunFlags are flags that, when a command already accepts one, let the
// generator execute the command itself and trust its own dry-run mode
// rather than hand-writing an analyser for it.
var dryRunFlags = []string{"--dry-run", "-n", "--check"}

// analysers maps a base command to a hand-written, read-only forecaster.
// First match in this table wins, per the strategy table.
var analysers = map[string]func(g *Generator, args []string) ([]string, error){
	"mkdir":   analyseMkdir,
	"touch":   analyseTouch,
	"rm":      analyseRm,
	"cp":      analyseCp,
	"mv":      analyseMv,
	"ls":      analyseLs,
	"cat":     analyseCat,
	"grep":    analyseGrep,
	"find":    analyseFind,
	"chmod":   analyseChmodChown,
	"chown":   analyseChmodChown,
	"zip":     analyseArchive,
	"tar":     analyseArchive,
	"gzip":    analyseArchive,
	"bzip2":   analyseArchive,
	"xz":      analyseArchive,
	"apt":     analysePackageManager,
	"apt-get": analysePackageManager,
	"yum":     analysePackageManager,
	"dnf":     analysePackageManager,
	"pacman":  analysePackageManager,
	"pip":     analysePackageManager,
	"pip3":    analysePackageManager,
	"npm":     analysePackageManager,
	"docker":  analyseDocker,
	"git":     analyseGit,
	"curl":    analyseNetwork,
	"wget":    analyseNetwork,
	"scp":     analyseNetwork,
}

// Generate returns the multi-line preview for command. It never mutates
// the filesystem itself; when it shells out (the dry-run-flag strategy) it
// relies on the target command's own dry-run behaviour to stay read-only.
func (g *Generator) Generate(ctx context.Context, command string) (string, error) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return "preview not available: empty command", nil
	}

	tokens, err := shlex.Split(trimmed)
	if err != nil || len(tokens) == 0 {
		return "preview not available: unparseable command", nil
	}
	base := filepath.Base(tokens[0])
	args := tokens[1:]

	if analyse, ok := analysers[base]; ok {
		lines, err := analyse(g, args)
		if err != nil {
			return "", fmt.Errorf("preview: analysing %q: %w", base, err)
		}
		if len(lines) == 0 {
			return "no observable effect", nil
		}
		return strings.Join(lines, "\n"), nil
	}

	if hasDryRunFlag(args) || supportsDryRun(base) {
		out, err := g.runWithDryRun(ctx, base, args)
		if err == nil {
			return out, nil
		}
		// fall through to the generic notice if the dry-run invocation itself failed
	}

	return "preview not available for `" + base + "`", nil
}

func hasDryRunFlag(args []string) bool {
	for _, a := range args {
		for _, f := range dryRunFlags {
			if a == f {
				return true
			}
		}
	}
	return false
}

// supportsDryRun lists base commands known to accept one of dryRunFlags
// even when the caller didn't pass it explicitly, so the generator can
// insert one rather than fall back to the generic notice.
func supportsDryRun(base string) bool {
	switch base {
	case "rsync", "make", "terraform", "ansible-playbook":
		return true
	default:
		return false
	}
}

func (g *Generator) runWithDryRun(ctx context.Context, base string, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// --dry-run is a subcommand/positional flag for every tool in
	// supportsDryRun, not a global one, so it must trail the existing
	// arguments rather than precede them.
	augmented := append(append([]string{}, args...), "--dry-run")
	cmd := exec.CommandContext(ctx, base, augmented...)
	cmd.Dir = g.cwd

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	if out.Len() == 0 {
		return "dry-run produced no output", nil
	}
	return out.String(), nil
}

func (g *Generator) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	if g.cwd == "" {
		return p
	}
	return filepath.Join(g.cwd, p)
}

func nonFlagArgs(args []string) []string {
	var out []string
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			out = append(out, a)
		}
	}
	return out
}

func analyseMkdir(g *Generator, args []string) ([]string, error) {
	var lines []string
	for _, t := range nonFlagArgs(args) {
		if _, err := os.Stat(g.resolve(t)); err == nil {
			lines = append(lines, fmt.Sprintf("⚠ directory already exists: %s", t))
		} else {
			lines = append(lines, fmt.Sprintf("will create directory: %s", t))
		}
	}
	return lines, nil
}

func analyseTouch(g *Generator, args []string) ([]string, error) {
	var lines []string
	for _, t := range nonFlagArgs(args) {
		if _, err := os.Stat(g.resolve(t)); err == nil {
			lines = append(lines, fmt.Sprintf("will update timestamp: %s", t))
		} else {
			lines = append(lines, fmt.Sprintf("will create file: %s", t))
		}
	}
	return lines, nil
}

func analyseRm(g *Generator, args []string) ([]string, error) {
	recursive := false
	for _, a := range args {
		if a == "-r" || a == "-R" || a == "-rf" || a == "-fr" || a == "--recursive" {
			recursive = true
		}
	}
	var lines []string
	for _, t := range nonFlagArgs(args) {
		full := g.resolve(t)
		info, err := os.Stat(full)
		if err != nil {
			lines = append(lines, fmt.Sprintf("⚠ target does not exist: %s", t))
			continue
		}
		if info.IsDir() {
			n := countEntries(full)
			if recursive {
				lines = append(lines, fmt.Sprintf("⚠ will remove directory recursively: %s (%d entries)", t, n))
			} else {
				lines = append(lines, fmt.Sprintf("⚠ will fail: %s is a directory and -r was not given", t))
			}
		} else {
			lines = append(lines, fmt.Sprintf("⚠ will remove file: %s (%d bytes)", t, info.Size()))
		}
	}
	return lines, nil
}

func countEntries(dir string) int {
	n := 0
	filepath.Walk(dir, func(_ string, _ os.FileInfo, err error) error {
		if err == nil {
			n++
		}
		return nil
	})
	return n
}

func analyseCp(g *Generator, args []string) ([]string, error) {
	return analyseCopyLike(g, args, "copy")
}

func analyseMv(g *Generator, args []string) ([]string, error) {
	return analyseCopyLike(g, args, "move")
}

func analyseCopyLike(g *Generator, args []string, verb string) ([]string, error) {
	targets := nonFlagArgs(args)
	if len(targets) < 2 {
		return []string{fmt.Sprintf("will %s: incomplete arguments", verb)}, nil
	}
	dest := targets[len(targets)-1]
	sources := targets[:len(targets)-1]

	destFull := g.resolve(dest)
	destIsDir := false
	if info, err := os.Stat(destFull); err == nil {
		destIsDir = info.IsDir()
	}

	var lines []string
	for _, src := range sources {
		finalDest := dest
		finalDestFull := destFull
		if destIsDir {
			finalDest = filepath.Join(dest, filepath.Base(src))
			finalDestFull = filepath.Join(destFull, filepath.Base(src))
		}
		if info, err := os.Stat(finalDestFull); err == nil && !info.IsDir() {
			lines = append(lines, fmt.Sprintf("⚠ will overwrite: %s\n%s", finalDest, overwriteDiffStat(g.resolve(src), finalDestFull)))
		} else {
			lines = append(lines, fmt.Sprintf("will %s %s -> %s", verb, src, finalDest))
		}
	}
	return lines, nil
}

// overwriteDiffStat renders a compact addition/deletion count between the
// source and the existing destination file it would overwrite.
func overwriteDiffStat(srcPath, destPath string) string {
	srcBytes, srcErr := os.ReadFile(srcPath)
	destBytes, destErr := os.ReadFile(destPath)
	if srcErr != nil || destErr != nil {
		return "  (unable to compute diff preview)"
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(destBytes), string(srcBytes), true)
	var add, del int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			add += len(d.Text)
		case diffmatchpatch.DiffDelete:
			del += len(d.Text)
		}
	}
	return fmt.Sprintf("  +%d -%d bytes", add, del)
}

func analyseLs(g *Generator, args []string) ([]string, error) {
	targets := nonFlagArgs(args)
	if len(targets) == 0 {
		targets = []string{"."}
	}
	var lines []string
	for _, t := range targets {
		full := g.resolve(t)
		entries, err := os.ReadDir(full)
		if err != nil {
			lines = append(lines, fmt.Sprintf("⚠ cannot list: %s", t))
			continue
		}
		lines = append(lines, fmt.Sprintf("will list %s: %d entries", t, len(entries)))
	}
	return lines, nil
}

func analyseCat(g *Generator, args []string) ([]string, error) {
	var lines []string
	for _, t := range nonFlagArgs(args) {
		info, err := os.Stat(g.resolve(t))
		if err != nil {
			lines = append(lines, fmt.Sprintf("⚠ file not found: %s", t))
			continue
		}
		lines = append(lines, fmt.Sprintf("will print %s (%d bytes)", t, info.Size()))
	}
	return lines, nil
}

func analyseGrep(g *Generator, args []string) ([]string, error) {
	targets := nonFlagArgs(args)
	if len(targets) < 2 {
		return []string{"will search stdin"}, nil
	}
	pattern := targets[0]
	files := targets[1:]
	return []string{fmt.Sprintf("will search %d file(s) for pattern %q", len(files), pattern)}, nil
}

func analyseFind(g *Generator, args []string) ([]string, error) {
	targets := nonFlagArgs(args)
	root := "."
	if len(targets) > 0 {
		root = targets[0]
	}
	matches, _ := filepath.Glob(filepath.Join(g.resolve(root), "*"))
	sort.Strings(matches)
	return []string{fmt.Sprintf("will search under %s (%d top-level entries)", root, len(matches))}, nil
}

func analyseChmodChown(g *Generator, args []string) ([]string, error) {
	targets := nonFlagArgs(args)
	if len(targets) < 2 {
		return []string{"will change attributes: incomplete arguments"}, nil
	}
	mode := targets[0]
	files := targets[1:]
	var lines []string
	for _, f := range files {
		if _, err := os.Stat(g.resolve(f)); err != nil {
			lines = append(lines, fmt.Sprintf("⚠ target does not exist: %s", f))
			continue
		}
		lines = append(lines, fmt.Sprintf("will set %s on %s", mode, f))
	}
	return lines, nil
}

// analyseArchive covers zip/tar/gzip/bzip2/xz: it infers extract vs create
// from flags (including tar's bare letter-bundle style, e.g. "xzf") and
// stats the archive/destination without touching either.
func analyseArchive(g *Generator, args []string) ([]string, error) {
	extract, create := false, false
	for _, a := range args {
		switch {
		case a == "-x" || a == "--extract" || a == "-d" || a == "--decompress":
			extract = true
		case a == "-c" || a == "--create":
			create = true
		case isTarFlagBundle(a):
			if strings.ContainsRune(a, 'x') {
				extract = true
			}
			if strings.ContainsRune(a, 'c') {
				create = true
			}
		}
	}

	targets := archiveTargets(args)
	switch {
	case extract:
		if len(targets) == 0 {
			return []string{"will extract archive: no archive given"}, nil
		}
		archive := targets[0]
		if _, err := os.Stat(g.resolve(archive)); err != nil {
			return []string{fmt.Sprintf("⚠ archive not found: %s", archive)}, nil
		}
		dest := "."
		if len(targets) > 1 {
			dest = targets[len(targets)-1]
		}
		return []string{fmt.Sprintf("will extract %s into %s", archive, dest)}, nil
	case create:
		if len(targets) == 0 {
			return []string{"will create archive: no archive name given"}, nil
		}
		archive := targets[0]
		sources := targets[1:]
		if _, err := os.Stat(g.resolve(archive)); err == nil {
			return []string{fmt.Sprintf("⚠ will overwrite existing archive: %s", archive)}, nil
		}
		return []string{fmt.Sprintf("will create archive %s from %d source(s)", archive, len(sources))}, nil
	default:
		return []string{"will process archive (extract/create mode not recognized from flags)"}, nil
	}
}

// archiveTargets strips both conventional dash flags and tar's bare
// letter-bundle flags (e.g. "xzf") from the argument list.
func archiveTargets(args []string) []string {
	var out []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") || isTarFlagBundle(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func isTarFlagBundle(a string) bool {
	if a == "" || len(a) > 4 {
		return false
	}
	for _, r := range a {
		if !strings.ContainsRune("xczvfjJpkOPmht", r) {
			return false
		}
	}
	return true
}

// analysePackageManager covers apt/apt-get/yum/dnf/pacman/pip/npm: it
// describes the subcommand's effect from its first non-flag argument
// without contacting any repository.
func analysePackageManager(g *Generator, args []string) ([]string, error) {
	targets := nonFlagArgs(args)
	if len(targets) == 0 {
		return []string{"will invoke package manager: no subcommand given"}, nil
	}
	action := targets[0]
	packages := targets[1:]
	switch action {
	case "install", "i", "add":
		if len(packages) == 0 {
			return []string{"will install packages from the project manifest"}, nil
		}
		return []string{fmt.Sprintf("will install %d package(s): %s", len(packages), strings.Join(packages, ", "))}, nil
	case "remove", "uninstall", "purge", "autoremove":
		if len(packages) == 0 {
			return []string{fmt.Sprintf("will %s packages (none named on the command line)", action)}, nil
		}
		return []string{fmt.Sprintf("will %s %d package(s): %s", action, len(packages), strings.Join(packages, ", "))}, nil
	case "update", "upgrade", "dist-upgrade":
		return []string{fmt.Sprintf("will %s the package index/installed packages", action)}, nil
	case "search", "list", "info", "show":
		return []string{fmt.Sprintf("will query package metadata (%s)", action)}, nil
	default:
		return []string{fmt.Sprintf("will run package manager subcommand %q", action)}, nil
	}
}

// analyseDocker covers container lifecycle commands; it reads only the
// subcommand shape, never the daemon's actual state.
func analyseDocker(g *Generator, args []string) ([]string, error) {
	targets := nonFlagArgs(args)
	if len(targets) == 0 {
		return []string{"will invoke docker: no subcommand given"}, nil
	}
	action, rest := targets[0], targets[1:]
	switch action {
	case "run":
		if len(rest) == 0 {
			return []string{"will start a container: no image given"}, nil
		}
		return []string{fmt.Sprintf("will start a new container from image %s", rest[len(rest)-1])}, nil
	case "exec":
		if len(rest) == 0 {
			return []string{"will exec in a container: no container given"}, nil
		}
		return []string{fmt.Sprintf("will execute a command inside container %s", rest[0])}, nil
	case "build":
		dir := "."
		if len(rest) > 0 {
			dir = rest[len(rest)-1]
		}
		return []string{fmt.Sprintf("will build an image from %s", dir)}, nil
	case "rm", "rmi":
		return []string{fmt.Sprintf("will remove %s: %s", map[string]string{"rm": "container(s)", "rmi": "image(s)"}[action], strings.Join(rest, ", "))}, nil
	case "stop", "kill", "restart", "pause", "unpause":
		return []string{fmt.Sprintf("will %s container(s): %s", action, strings.Join(rest, ", "))}, nil
	case "ps", "images", "inspect", "logs", "info", "version":
		return []string{fmt.Sprintf("will query docker state (%s)", action)}, nil
	default:
		return []string{fmt.Sprintf("will run docker subcommand %q", action)}, nil
	}
}

// analyseGit covers the version-control family the risk classifier already
// tiers by name: add/commit/push/reset/rebase/checkout/clone and the
// read-only query subcommands.
func analyseGit(g *Generator, args []string) ([]string, error) {
	targets := nonFlagArgs(args)
	if len(targets) == 0 {
		return []string{"will invoke git: no subcommand given"}, nil
	}
	action, rest := targets[0], targets[1:]
	switch action {
	case "add":
		return []string{fmt.Sprintf("will stage %d path(s): %s", len(rest), strings.Join(rest, ", "))}, nil
	case "commit":
		return []string{"will create a new commit from the staged index"}, nil
	case "push":
		dest := strings.Join(rest, " ")
		if dest == "" {
			dest = "the configured upstream"
		}
		if hasFlagAny(args, "-f", "--force") {
			return []string{fmt.Sprintf("⚠ will force-push to %s, overwriting remote history", dest)}, nil
		}
		return []string{fmt.Sprintf("will push commits to %s", dest)}, nil
	case "reset":
		if hasFlagAny(args, "--hard") {
			return []string{"⚠ will reset the working tree, discarding uncommitted changes"}, nil
		}
		return []string{"will reset the index/HEAD without touching the working tree"}, nil
	case "rebase":
		return []string{"⚠ will rewrite commit history on this branch"}, nil
	case "checkout", "switch":
		if len(rest) == 0 {
			return []string{"will check out: no target given"}, nil
		}
		return []string{fmt.Sprintf("will switch the working tree to %s", rest[len(rest)-1])}, nil
	case "clone":
		if len(rest) == 0 {
			return []string{"will clone: no source given"}, nil
		}
		return []string{fmt.Sprintf("will clone %s into the current directory", rest[0])}, nil
	case "status", "log", "diff", "show", "branch", "fetch", "pull":
		return []string{fmt.Sprintf("will query/sync repository state (%s)", action)}, nil
	default:
		return []string{fmt.Sprintf("will run git subcommand %q", action)}, nil
	}
}

func hasFlagAny(args []string, flags ...string) bool {
	for _, a := range args {
		for _, f := range flags {
			if a == f {
				return true
			}
		}
	}
	return false
}

// analyseNetwork covers curl/wget/scp: it reports the transfer shape and,
// when an explicit output path is given, whether it would be overwritten.
func analyseNetwork(g *Generator, args []string) ([]string, error) {
	targets := nonFlagArgs(args)
	if len(targets) == 0 {
		return []string{"will make a network request: no target given"}, nil
	}
	if dest := explicitOutput(args); dest != "" {
		if _, err := os.Stat(g.resolve(dest)); err == nil {
			return []string{fmt.Sprintf("⚠ will fetch %s, overwriting existing file %s", targets[0], dest)}, nil
		}
		return []string{fmt.Sprintf("will fetch %s and save it to %s", targets[0], dest)}, nil
	}
	if len(targets) >= 2 {
		dest := targets[len(targets)-1]
		return []string{fmt.Sprintf("will transfer %s to %s", strings.Join(targets[:len(targets)-1], ", "), dest)}, nil
	}
	return []string{fmt.Sprintf("will issue a network request to %s", targets[0])}, nil
}

func explicitOutput(args []string) string {
	for i, a := range args {
		if (a == "-o" || a == "--output") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
