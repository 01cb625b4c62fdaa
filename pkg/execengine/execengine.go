// Package execengine is the trust-and-execution core's only component
// that actually spawns processes or touches the filesystem. Every path
// through it passes the safety gate first unless Options.CheckSafety is
// false, records an inverse-capable
// operation on success, and fires the hook bus around the call
// (spec.md §4.5).
package execengine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/angela-sh/angela/pkg/angelaerr"
	"github.com/angela-sh/angela/pkg/backup"
	"github.com/angela-sh/angela/pkg/configstore"
	"github.com/angela-sh/angela/pkg/hookbus"
	"github.com/angela-sh/angela/pkg/logx"
	"github.com/angela-sh/angela/pkg/risk"
	"github.com/angela-sh/angela/pkg/rollback"
	"github.com/angela-sh/angela/pkg/safety"
	"github.com/angela-sh/angela/pkg/shlex"
)

// ExecResult is the outcome of execute_command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Options controls one call's safety-check and dry-run behavior, and
// optionally threads it into an in-progress transaction.
type Options struct {
	CheckSafety     bool
	DryRun          bool
	TransactionID   string
	StepID          string
	TrustConfidence *float64
}

// Engine wires the gate, classifier, rollback manager, and hook bus
// together. A façade builds one Engine via explicit constructor
// injection and shares it across the process's lifetime.
type Engine struct {
	gate       *safety.Gate
	classifier *risk.Classifier
	rollback   *rollback.Manager
	hooks      *hookbus.Bus
	backups    *backup.Store
	compensate []configstore.CompensationRule
	log        *logx.Logger
	now        func() time.Time
}

// New builds an Engine. now defaults to time.Now; tests may override it
// for deterministic timestamps.
func New(gate *safety.Gate, classifier *risk.Classifier, rb *rollback.Manager, hooks *hookbus.Bus, backups *backup.Store, compensate []configstore.CompensationRule, log *logx.Logger) *Engine {
	return &Engine{
		gate:       gate,
		classifier: classifier,
		rollback:   rb,
		hooks:      hooks,
		backups:    backups,
		compensate: compensate,
		log:        log,
		now:        time.Now,
	}
}

var cdPrefix = regexp.MustCompile(`^\s*cd\s+(\S+)\s*&&\s*(.+)$`)

// ExecuteCommand runs command per spec.md §4.5's dispatch procedure.
func (e *Engine) ExecuteCommand(ctx context.Context, command string, opts Options) (ExecResult, error) {
	tier, reason, impact := e.classifier.ClassifyWithImpact(command)

	if opts.CheckSafety {
		confirmed, err := e.gate.Confirm(safety.Request{
			Command:    command,
			Tier:       tier,
			Reason:     reason,
			Impact:     impact,
			DryRun:     opts.DryRun,
			Confidence: opts.TrustConfidence,
		})
		if err != nil {
			return ExecResult{ExitCode: 1}, err
		}
		if opts.DryRun {
			return ExecResult{Stderr: "dry run, not executed", ExitCode: 0}, nil
		}
		if !confirmed {
			return ExecResult{Stderr: "cancelled", ExitCode: 1}, angelaerr.ErrCancelled
		}
	} else if opts.DryRun {
		return ExecResult{Stderr: "dry run, not executed", ExitCode: 0}, nil
	}

	e.hooks.Fire(hookbus.Event{Point: hookbus.PreExecuteCommand, Command: command})

	result, err := e.run(ctx, command)

	e.hooks.Fire(hookbus.Event{Point: hookbus.PostExecuteCommand, Command: command, Result: result})

	if err == nil && result.ExitCode == 0 {
		e.recordCommand(command, opts)
	}
	return result, err
}

func (e *Engine) run(ctx context.Context, command string) (ExecResult, error) {
	dir := ""
	effective := command
	if m := cdPrefix.FindStringSubmatch(command); m != nil {
		dir = m[1]
		effective = m[2]
	}

	if isContinuousLogFollow(effective) && !stdoutIsTerminal() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	if isInteractive(effective) && stdoutIsTerminal() {
		return e.runInteractive(ctx, effective, dir)
	}
	return e.runBuffered(ctx, effective, dir)
}

func (e *Engine) runBuffered(ctx context.Context, command, dir string) (ExecResult, error) {
	cmd, err := buildCmd(ctx, command)
	if err != nil {
		return ExecResult{ExitCode: 1}, angelaerr.New(angelaerr.KindExecutionFailure, "could not parse command", err)
	}
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	result.ExitCode = exitCodeOf(cmd, runErr)
	if runErr != nil && result.ExitCode == 0 {
		return result, angelaerr.New(angelaerr.KindExecutionFailure, "command failed to start", runErr)
	}
	return result, nil
}

// runInteractive attaches command to a controlling TTY via a PTY and
// streams its output until the child exits, mirroring the teacher's
// TerminalManager.CreateSession/monitorSession pattern.
func (e *Engine) runInteractive(ctx context.Context, command, dir string) (ExecResult, error) {
	cmd, err := buildCmd(ctx, command)
	if err != nil {
		return ExecResult{ExitCode: 1}, angelaerr.New(angelaerr.KindExecutionFailure, "could not parse command", err)
	}
	if dir != "" {
		cmd.Dir = dir
	}

	ptyFile, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 80})
	if err != nil {
		return ExecResult{ExitCode: 1}, angelaerr.New(angelaerr.KindExecutionFailure, "failed to start PTY", err)
	}
	defer ptyFile.Close()

	go io.Copy(os.Stdout, ptyFile)
	go io.Copy(ptyFile, os.Stdin)

	runErr := cmd.Wait()
	return ExecResult{ExitCode: exitCodeOf(cmd, runErr)}, nil
}

func buildCmd(ctx context.Context, command string) (*exec.Cmd, error) {
	if shlex.HasMetacharacters(command) {
		return exec.CommandContext(ctx, "sh", "-c", command), nil
	}
	tokens, err := shlex.Split(command)
	if err != nil || len(tokens) == 0 {
		return nil, fmt.Errorf("empty or unparseable command")
	}
	return exec.CommandContext(ctx, tokens[0], tokens[1:]...), nil
}

func exitCodeOf(cmd *exec.Cmd, runErr error) int {
	if runErr == nil {
		return 0
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}

func stdoutIsTerminal() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

var interactiveCommands = map[string]struct{}{
	"vim": {}, "vi": {}, "nano": {}, "emacs": {}, "less": {}, "more": {},
	"top": {}, "htop": {}, "ssh": {}, "mysql": {}, "psql": {}, "tmux": {},
	"screen": {}, "man": {}, "watch": {}, "python": {}, "python3": {}, "irb": {}, "node": {},
}

func isInteractive(command string) bool {
	tokens, err := shlex.Split(command)
	if err != nil || len(tokens) == 0 {
		return false
	}
	base := tokens[0]
	args := tokens[1:]

	if _, ok := interactiveCommands[base]; ok {
		return true
	}
	switch base {
	case "tail":
		return hasFlag(args, "-f", "--follow")
	case "ping":
		return !hasFlag(args, "-c")
	case "journalctl":
		return hasFlag(args, "-f", "--follow")
	case "docker":
		return containsToken(args, "logs") && hasFlag(args, "--follow", "-f")
	}
	return false
}

// isContinuousLogFollow identifies the narrower set of "follows forever"
// commands that need the 30-second non-interactive bound, independent of
// the broader interactive-command set.
func isContinuousLogFollow(command string) bool {
	tokens, err := shlex.Split(command)
	if err != nil || len(tokens) == 0 {
		return false
	}
	base := tokens[0]
	args := tokens[1:]
	switch base {
	case "tail":
		return hasFlag(args, "-f", "--follow")
	case "journalctl":
		return hasFlag(args, "-f", "--follow")
	case "docker":
		return containsToken(args, "logs") && hasFlag(args, "--follow", "-f")
	}
	return false
}

func hasFlag(args []string, flags ...string) bool {
	for _, a := range args {
		for _, f := range flags {
			if a == f || strings.HasPrefix(a, f+"=") {
				return true
			}
		}
	}
	return false
}

func containsToken(args []string, token string) bool {
	for _, a := range args {
		if a == token {
			return true
		}
	}
	return false
}

// recordCommand logs a successful command as a rollback-manager
// operation, attaching a compensating command when the table resolves
// one, per spec.md §4.7's COMMAND inverse row.
func (e *Engine) recordCommand(command string, opts Options) {
	undo := map[string]string{}
	if compensator, ok := rollback.ResolveCompensation(e.compensate, command); ok {
		undo["compensating_command"] = compensator
	}
	if _, err := e.rollback.Record(rollback.KindCommand, map[string]string{"command": command}, "", opts.TransactionID, opts.StepID, undo, e.now()); err != nil && e.log != nil {
		e.log.Error("execengine: failed to record command operation: %v", err)
	}
}
