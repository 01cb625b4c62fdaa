package execengine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/angela-sh/angela/pkg/angelaerr"
	"github.com/angela-sh/angela/pkg/hookbus"
	"github.com/angela-sh/angela/pkg/rollback"
	"github.com/angela-sh/angela/pkg/safety"
)

// FSOp is one filesystem primitive: create_file, write_file,
// delete_file, create_directory, delete_directory, copy_file, move_file
// (spec.md §4.5). Params carries the kind-specific fields: "path" for
// single-path kinds, "source"/"destination" for copy/move, "content" for
// writes, and "recursive" ("true"/"false") for directory deletion.
type FSOp struct {
	Kind   rollback.Kind
	Params map[string]string
}

// syntheticCommand renders an FSOp as the shell-shaped string the risk
// classifier's rule table already recognizes, so filesystem primitives
// get the same tier/impact analysis as the equivalent typed command.
func syntheticCommand(op FSOp) string {
	switch op.Kind {
	case rollback.KindCreateFile:
		return fmt.Sprintf("touch %s", op.Params["path"])
	case rollback.KindWriteFile:
		return fmt.Sprintf("echo > %s", op.Params["path"])
	case rollback.KindDeleteFile:
		return fmt.Sprintf("rm %s", op.Params["path"])
	case rollback.KindCreateDirectory:
		return fmt.Sprintf("mkdir %s", op.Params["path"])
	case rollback.KindDeleteDirectory:
		if op.Params["recursive"] == "true" {
			return fmt.Sprintf("rm -rf %s", op.Params["path"])
		}
		return fmt.Sprintf("rmdir %s", op.Params["path"])
	case rollback.KindCopyFile:
		return fmt.Sprintf("cp %s %s", op.Params["source"], op.Params["destination"])
	case rollback.KindMoveFile:
		return fmt.Sprintf("mv %s %s", op.Params["source"], op.Params["destination"])
	default:
		return string(op.Kind)
	}
}

// ExecuteFSOp validates op through the safety gate, backs up anything it
// would overwrite or delete, performs the action, and records it with
// the rollback manager so it can be undone later.
func (e *Engine) ExecuteFSOp(ctx context.Context, op FSOp, opts Options) (bool, error) {
	command := syntheticCommand(op)
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
			return false, err
		}
		if opts.DryRun {
			return false, nil
		}
		if !confirmed {
			return false, angelaerr.ErrCancelled
		}
	} else if opts.DryRun {
		return false, nil
	}

	e.hooks.Fire(hookbus.Event{Point: hookbus.PreExecuteFileOp, Params: op.Params})

	ok, err := e.performFSOp(op, opts)

	e.hooks.Fire(hookbus.Event{Point: hookbus.PostExecuteFileOp, Params: op.Params, Result: ok})
	return ok, err
}

func (e *Engine) performFSOp(op FSOp, opts Options) (bool, error) {
	now := e.now()

	switch op.Kind {
	case rollback.KindCreateFile:
		path := op.Params["path"]
		if err := os.WriteFile(path, []byte(op.Params["content"]), 0o644); err != nil {
			return false, angelaerr.New(angelaerr.KindExecutionFailure, "create_file failed", err)
		}
		e.record(op.Kind, op.Params, "", nil, opts, now)
		return true, nil

	case rollback.KindWriteFile:
		path := op.Params["path"]
		backupRef := e.backupIfExists(path, false)
		if err := os.WriteFile(path, []byte(op.Params["content"]), 0o644); err != nil {
			return false, angelaerr.New(angelaerr.KindExecutionFailure, "write_file failed", err)
		}
		e.record(op.Kind, op.Params, backupRef, nil, opts, now)
		return true, nil

	case rollback.KindDeleteFile:
		path := op.Params["path"]
		backupRef := e.backupIfExists(path, false)
		if err := os.Remove(path); err != nil {
			return false, angelaerr.New(angelaerr.KindExecutionFailure, "delete_file failed", err)
		}
		e.record(op.Kind, op.Params, backupRef, nil, opts, now)
		return true, nil

	case rollback.KindCreateDirectory:
		path := op.Params["path"]
		if err := os.MkdirAll(path, 0o755); err != nil {
			return false, angelaerr.New(angelaerr.KindExecutionFailure, "create_directory failed", err)
		}
		e.record(op.Kind, op.Params, "", nil, opts, now)
		return true, nil

	case rollback.KindDeleteDirectory:
		path := op.Params["path"]
		backupRef := e.backupIfExists(path, true)
		if err := os.RemoveAll(path); err != nil {
			return false, angelaerr.New(angelaerr.KindExecutionFailure, "delete_directory failed", err)
		}
		e.record(op.Kind, op.Params, backupRef, nil, opts, now)
		return true, nil

	case rollback.KindCopyFile:
		src, dst := op.Params["source"], op.Params["destination"]
		backupRef := e.backupIfExists(dst, false)
		if err := copyFileContents(src, dst); err != nil {
			return false, angelaerr.New(angelaerr.KindExecutionFailure, "copy_file failed", err)
		}
		e.record(op.Kind, op.Params, backupRef, nil, opts, now)
		return true, nil

	case rollback.KindMoveFile:
		src, dst := op.Params["source"], op.Params["destination"]
		// The inverse needs the *source's* prior content, since move
		// deletes it; back it up before moving.
		backupRef := e.backupIfExists(src, false)
		if err := os.Rename(src, dst); err != nil {
			return false, angelaerr.New(angelaerr.KindExecutionFailure, "move_file failed", err)
		}
		e.record(op.Kind, op.Params, backupRef, nil, opts, now)
		return true, nil

	default:
		return false, fmt.Errorf("execengine: unsupported fs op kind %q", op.Kind)
	}
}

// backupIfExists snapshots path if it currently exists, returning the
// backup's location or "" if there was nothing to back up or the backup
// itself failed — a failed backup degrades to "no rollback possible"
// rather than aborting the operation (spec.md §4.5).
func (e *Engine) backupIfExists(path string, isDir bool) string {
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	var backupPath string
	var backupErr error
	if isDir || info.IsDir() {
		backupPath, backupErr = e.backups.BackupDirectory(path, e.now())
	} else {
		backupPath, backupErr = e.backups.BackupFile(path, e.now())
	}
	if backupErr != nil {
		if e.log != nil {
			e.log.Warn("execengine: backup of %s failed, rollback for this op will be unavailable: %v", path, backupErr)
		}
		return ""
	}
	return backupPath
}

// record appends a successful filesystem operation to the rollback
// manager's log; a failure to record is logged but never un-does the
// filesystem action that already happened.
func (e *Engine) record(kind rollback.Kind, params map[string]string, backupRef string, undoInfo map[string]string, opts Options, now time.Time) {
	if _, err := e.rollback.Record(kind, params, backupRef, opts.TransactionID, opts.StepID, undoInfo, now); err != nil && e.log != nil {
		e.log.Error("execengine: failed to record %s operation: %v", kind, err)
	}
}

func copyFileContents(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
