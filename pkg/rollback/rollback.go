// Package rollback is the trust-and-execution core's undo ledger: an
// append-only operation log, per-transaction records, and the inverse
// computation spec.md §4.7 defines per operation kind. Undo here is
// best-effort, not transactional-ACID: it replays inverses newest-first
// and reports per-operation outcomes rather than atomically re-playing.
package rollback

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/angela-sh/angela/pkg/angelaerr"
	"github.com/angela-sh/angela/pkg/backup"
	"github.com/angela-sh/angela/pkg/configstore"
	"github.com/angela-sh/angela/pkg/logx"
	"github.com/angela-sh/angela/pkg/shlex"
)

// Kind is the operation_type field of an operation log record.
type Kind string

const (
	KindCreateFile      Kind = "create_file"
	KindWriteFile       Kind = "write_file"
	KindDeleteFile      Kind = "delete_file"
	KindCreateDirectory Kind = "create_directory"
	KindDeleteDirectory Kind = "delete_directory"
	KindCopyFile        Kind = "copy_file"
	KindMoveFile        Kind = "move_file"
	KindContent         Kind = "content"
	KindCommand         Kind = "command"
	KindPlan            Kind = "plan"
)

// Status is a transaction's lifecycle state.
type Status string

const (
	StatusStarted    Status = "started"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

// Operation is one append-only log record (spec.md §6's stable JSON shape).
type Operation struct {
	ID            int               `json:"id"`
	OperationType Kind              `json:"operation_type"`
	Params        map[string]string `json:"params"`
	Timestamp     time.Time         `json:"timestamp"`
	BackupPath    string            `json:"backup_path,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	StepID        string            `json:"step_id,omitempty"`
	UndoInfo      map[string]string `json:"undo_info,omitempty"`
}

// Transaction groups an ordered sequence of operation IDs under one
// description and lifecycle status.
type Transaction struct {
	TransactionID string    `json:"transaction_id"`
	Description   string    `json:"description"`
	Timestamp     time.Time `json:"timestamp"`
	Status        Status    `json:"status"`
	OperationIDs  []int     `json:"operation_ids"`
}

// RollbackReport accumulates per-operation outcomes for one rollback_tx
// call; it is produced even when some operations fail to undo.
type RollbackReport struct {
	TransactionID string
	Succeeded     []int
	Failed        map[int]string
}

// Runner executes a compensating shell command. The façade supplies
// ShellRunner; tests supply a fake.
type Runner func(ctx context.Context, command string) error

// Manager is the single authority over the operation log and
// transaction files; all mutation is serialised by mu, matching the
// "log writes are serialised by a single in-process lock" guarantee.
type Manager struct {
	mu            sync.Mutex
	root          string
	backups       *backup.Store
	compensations []configstore.CompensationRule
	runner        Runner
	log           *logx.Logger

	operations []Operation
	nextID     int
	txns       map[string]*Transaction
}

// New builds a Manager persisting under root (spec.md's
// backups/operation_history.json and backups/transactions/{uuid}.json),
// using backups for file/directory restores and compensations to undo
// bare COMMAND operations that have no backup.
func New(root string, backups *backup.Store, compensations []configstore.CompensationRule, runner Runner, log *logx.Logger) (*Manager, error) {
	if err := os.MkdirAll(filepath.Join(root, "transactions"), 0o755); err != nil {
		return nil, err
	}
	m := &Manager{
		root:          root,
		backups:       backups,
		compensations: compensations,
		runner:        runner,
		log:           log,
		txns:          map[string]*Transaction{},
	}
	m.loadOperations()
	m.loadTransactions()
	return m, nil
}

func (m *Manager) historyPath() string { return filepath.Join(m.root, "operation_history.json") }

// loadOperations reads the existing log, tolerating a corrupted file:
// entries that fail to decode are logged and skipped, the loaded portion
// is kept and the manager stays functional (spec.md §7 StateCorruption).
// A file that is not a JSON array at all is logged and the log starts
// empty.
func (m *Manager) loadOperations() {
	data, err := os.ReadFile(m.historyPath())
	if err != nil {
		return
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		if m.log != nil {
			m.log.Error("rollback: operation history unparseable, starting from empty log: %v", err)
		}
		return
	}
	for i, raw := range raws {
		var op Operation
		if err := json.Unmarshal(raw, &op); err != nil {
			if m.log != nil {
				m.log.Error("rollback: skipping unreadable operation history entry %d: %v", i, err)
			}
			continue
		}
		m.operations = append(m.operations, op)
		if op.ID >= m.nextID {
			m.nextID = op.ID + 1
		}
	}
}

func (m *Manager) loadTransactions() {
	dir := filepath.Join(m.root, "transactions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var tx Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			if m.log != nil {
				m.log.Error("rollback: transaction file %s unparseable, skipping: %v", e.Name(), err)
			}
			continue
		}
		m.txns[tx.TransactionID] = &tx
	}
}

func (m *Manager) saveOperationsLocked() error {
	data, err := json.MarshalIndent(m.operations, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.historyPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.historyPath())
}

func (m *Manager) saveTransactionLocked(tx *Transaction) error {
	data, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(m.root, "transactions", tx.TransactionID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Begin creates a transaction in STARTED state and returns its id.
func (m *Manager) Begin(description string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &Transaction{
		TransactionID: uuid.NewString(),
		Description:   description,
		Timestamp:     now,
		Status:        StatusStarted,
		OperationIDs:  []int{},
	}
	m.txns[tx.TransactionID] = tx
	if err := m.saveTransactionLocked(tx); err != nil {
		return "", err
	}
	return tx.TransactionID, nil
}

// Record appends an operation to the log and, if txID is non-empty, to
// that transaction's ordered operation list.
func (m *Manager) Record(kind Kind, params map[string]string, backupRef, txID, stepID string, undoInfo map[string]string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op := Operation{
		ID:            m.nextID,
		OperationType: kind,
		Params:        params,
		Timestamp:     now,
		BackupPath:    backupRef,
		TransactionID: txID,
		StepID:        stepID,
		UndoInfo:      undoInfo,
	}
	m.nextID++
	m.operations = append(m.operations, op)
	if err := m.saveOperationsLocked(); err != nil {
		return 0, err
	}

	if txID != "" {
		if tx, ok := m.txns[txID]; ok {
			tx.OperationIDs = append(tx.OperationIDs, op.ID)
			if err := m.saveTransactionLocked(tx); err != nil {
				return op.ID, err
			}
		}
	}
	return op.ID, nil
}

// End flips a transaction to a terminal status.
func (m *Manager) End(txID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txns[txID]
	if !ok {
		return fmt.Errorf("rollback: unknown transaction %s", txID)
	}
	tx.Status = status
	return m.saveTransactionLocked(tx)
}

// ListRecent returns up to limit transactions, most recent first.
func (m *Manager) ListRecent(limit int) []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Transaction, 0, len(m.txns))
	for _, tx := range m.txns {
		all = append(all, *tx)
	}
	sortTransactionsByTimeDesc(all)
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func sortTransactionsByTimeDesc(txs []Transaction) {
	for i := 1; i < len(txs); i++ {
		for j := i; j > 0 && txs[j].Timestamp.After(txs[j-1].Timestamp); j-- {
			txs[j], txs[j-1] = txs[j-1], txs[j]
		}
	}
}

func (m *Manager) operationByID(id int) (Operation, bool) {
	for _, op := range m.operations {
		if op.ID == id {
			return op, true
		}
	}
	return Operation{}, false
}

// RollbackOp executes the inverse for a single operation.
func (m *Manager) RollbackOp(id int) (bool, error) {
	m.mu.Lock()
	op, ok := m.operationByID(id)
	m.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("rollback: unknown operation %d", id)
	}
	return m.rollbackOperation(op)
}

// RollbackTx iterates a transaction's operations in reverse, rolling
// back each and accumulating outcomes; it always flips the transaction
// to ROLLED_BACK regardless of how many inverses failed.
func (m *Manager) RollbackTx(txID string) (RollbackReport, error) {
	m.mu.Lock()
	tx, ok := m.txns[txID]
	var ids []int
	if ok {
		ids = append(ids, tx.OperationIDs...)
	}
	m.mu.Unlock()
	if !ok {
		return RollbackReport{}, fmt.Errorf("rollback: unknown transaction %s", txID)
	}

	report := RollbackReport{TransactionID: txID, Failed: map[int]string{}}
	for i := len(ids) - 1; i >= 0; i-- {
		op, found := m.operationByID(ids[i])
		if !found {
			report.Failed[ids[i]] = "operation record missing"
			continue
		}
		ok, err := m.rollbackOperation(op)
		if ok {
			report.Succeeded = append(report.Succeeded, ids[i])
		} else {
			reason := "inverse failed"
			if err != nil {
				reason = err.Error()
			}
			report.Failed[ids[i]] = reason
		}
	}

	_ = m.End(txID, StatusRolledBack)
	return report, nil
}

func (m *Manager) rollbackOperation(op Operation) (bool, error) {
	switch op.OperationType {
	case KindCreateFile:
		path := op.Params["path"]
		if path == "" {
			return false, fmt.Errorf("rollback: create_file missing path")
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, err
		}
		return true, nil

	case KindWriteFile, KindDeleteFile:
		if op.BackupPath == "" {
			return false, angelaerr.New(angelaerr.KindRollbackFailure, "no backup available", nil)
		}
		if err := m.backups.Restore(op.BackupPath, op.Params["path"]); err != nil {
			return false, err
		}
		return true, nil

	case KindCreateDirectory:
		path := op.Params["path"]
		if path == "" {
			return false, fmt.Errorf("rollback: create_directory missing path")
		}
		if err := os.RemoveAll(path); err != nil {
			return false, err
		}
		return true, nil

	case KindDeleteDirectory:
		if op.BackupPath == "" {
			return false, angelaerr.New(angelaerr.KindRollbackFailure, "no backup available", nil)
		}
		if err := m.backups.Restore(op.BackupPath, op.Params["path"]); err != nil {
			return false, err
		}
		return true, nil

	case KindCopyFile:
		dest := op.Params["destination"]
		if dest != "" {
			if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
				return false, err
			}
		}
		if op.BackupPath != "" {
			if err := m.backups.Restore(op.BackupPath, dest); err != nil {
				return false, err
			}
		}
		return true, nil

	case KindMoveFile:
		dest := op.Params["destination"]
		if dest != "" {
			if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
				return false, err
			}
		}
		if op.BackupPath == "" {
			return false, angelaerr.New(angelaerr.KindRollbackFailure, "no backup of source available", nil)
		}
		if err := m.backups.Restore(op.BackupPath, op.Params["source"]); err != nil {
			return false, err
		}
		return true, nil

	case KindContent:
		return m.rollbackContent(op)

	case KindCommand:
		return m.rollbackCommand(op)

	case KindPlan:
		return true, nil

	default:
		return false, fmt.Errorf("rollback: unknown operation kind %q", op.OperationType)
	}
}

// rollbackContent applies the stored reverse patch (computed at record
// time as new-content -> old-content) to the file's current content. If
// the file has drifted since, the patch fails to apply cleanly and the
// rollback is reported as a failure rather than silently corrupting the
// file (spec.md §4.7 CONTENT row, scenario S6).
func (m *Manager) rollbackContent(op Operation) (bool, error) {
	raw, ok := op.UndoInfo["reverse_patch"]
	if !ok {
		return false, angelaerr.New(angelaerr.KindRollbackFailure, "no stored diff", nil)
	}
	path := op.Params["path"]
	current, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(raw)
	if err != nil {
		return false, angelaerr.New(angelaerr.KindRollbackFailure, "stored patch corrupt", err)
	}
	restored, applied := dmp.PatchApply(patches, string(current))
	for _, ok := range applied {
		if !ok {
			return false, angelaerr.New(angelaerr.KindRollbackFailure, "file has drifted, hunks no longer apply", nil)
		}
	}
	if err := os.WriteFile(path, []byte(restored), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// rollbackCommand runs the compensating command looked up from the
// stored undo_info, or fails if none was resolvable at record time.
func (m *Manager) rollbackCommand(op Operation) (bool, error) {
	compensator, ok := op.UndoInfo["compensating_command"]
	if !ok || compensator == "" {
		return false, angelaerr.New(angelaerr.KindRollbackFailure, "no compensating command known", nil)
	}
	if m.runner == nil {
		return false, angelaerr.New(angelaerr.KindRollbackFailure, "no command runner configured", nil)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.runner(ctx, compensator); err != nil {
		return false, err
	}
	return true, nil
}

// BuildContentUndo computes the reverse-patch undo_info for a CONTENT
// operation from the content before and after the edit.
func BuildContentUndo(oldContent, newContent string) map[string]string {
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(newContent, oldContent)
	return map[string]string{"reverse_patch": dmp.PatchToText(patches)}
}

// ResolveCompensation looks up a compensating command for command from
// rules, substituting `{placeholder}` captures, the way the rollback
// manager derives undo_info for bare COMMAND operations that have no
// backup to restore from.
func ResolveCompensation(rules []configstore.CompensationRule, command string) (string, bool) {
	for _, rule := range rules {
		if compensator, ok := expandCompensation(rule, command); ok {
			return compensator, true
		}
	}
	return "", false
}

func expandCompensation(rule configstore.CompensationRule, command string) (string, bool) {
	patternTokens, err := shlex.Split(rule.Pattern)
	if err != nil || len(patternTokens) == 0 {
		return "", false
	}
	commandTokens, err := shlex.Split(command)
	if err != nil || len(commandTokens) < len(patternTokens) {
		return "", false
	}

	captures := map[string]string{}
	for i, token := range patternTokens {
		if strings.HasPrefix(token, "{") && strings.HasSuffix(token, "}") {
			name := token[1 : len(token)-1]
			if i == len(patternTokens)-1 {
				captures[name] = strings.Join(commandTokens[i:], " ")
			} else {
				captures[name] = commandTokens[i]
			}
			continue
		}
		if token != commandTokens[i] {
			return "", false
		}
	}
	if !strings.HasSuffix(patternTokens[len(patternTokens)-1], "}") && len(commandTokens) != len(patternTokens) {
		return "", false
	}

	result := rule.Compensator
	for name, value := range captures {
		result = strings.ReplaceAll(result, "{"+name+"}", value)
	}
	return result, true
}

// ShellRunner runs a compensating command through the system shell,
// suitable as the default Runner outside of tests.
func ShellRunner(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	return cmd.Run()
}
