// Package angela is the trust-and-execution core's invocation surface:
// the nine operations spec.md §6 exposes to whatever outer CLI or agent
// loop drives it. An Angela is built once, by explicit constructor
// injection of every component, and shared for the process's lifetime.
package angela

import (
	"context"
	"time"

	"github.com/angela-sh/angela/pkg/backup"
	"github.com/angela-sh/angela/pkg/configstore"
	"github.com/angela-sh/angela/pkg/execengine"
	"github.com/angela-sh/angela/pkg/hookbus"
	"github.com/angela-sh/angela/pkg/logx"
	"github.com/angela-sh/angela/pkg/preview"
	"github.com/angela-sh/angela/pkg/resolver"
	"github.com/angela-sh/angela/pkg/risk"
	"github.com/angela-sh/angela/pkg/rollback"
	"github.com/angela-sh/angela/pkg/safety"
	"github.com/angela-sh/angela/pkg/session"
)

// Angela wires every component of the core together behind the nine
// operations of spec.md §6. There is no package-level singleton; callers
// build one with New and pass it around explicitly.
type Angela struct {
	classifier *risk.Classifier
	previewer  *preview.Generator
	resolver   *resolver.Resolver
	gate       *safety.Gate
	engine     *execengine.Engine
	rollback   *rollback.Manager
	hooks      *hookbus.Bus
	config     *configstore.Store
	log        *logx.Logger
	session    *session.Session
}

// Deps bundles the constructor-injected collaborators an Angela needs.
// Every field is already built by the caller (typically cmd/root.go);
// New does not reach for global state.
type Deps struct {
	Config   *configstore.Store
	Log      *logx.Logger
	Prompter safety.Prompter
	Session  *session.Session
	Cwd      string
}

// New assembles every component from dep, in the order each depends on
// the last: classifier and resolver stand alone, the gate needs config
// and a prompter, the rollback manager needs backups and config's
// compensation table, and the engine needs all of the above plus the
// hook bus.
func New(dep Deps) (*Angela, error) {
	backups, err := backup.New(dep.Config.Snapshot().BackupRoot)
	if err != nil {
		return nil, err
	}
	rb, err := rollback.New(dep.Config.Snapshot().JournalRoot, backups, dep.Config.Snapshot().Compensations, rollback.ShellRunner, dep.Log)
	if err != nil {
		return nil, err
	}

	classifier := risk.New()
	previewer := preview.NewGenerator(dep.Cwd)
	res := resolver.New()
	gate := safety.New(dep.Config, dep.Prompter)
	hooks := hookbus.New(dep.Log)
	engine := execengine.New(gate, classifier, rb, hooks, backups, dep.Config.Snapshot().Compensations, dep.Log)

	return &Angela{
		classifier: classifier,
		previewer:  previewer,
		resolver:   res,
		gate:       gate,
		engine:     engine,
		rollback:   rb,
		hooks:      hooks,
		config:     dep.Config,
		log:        dep.Log,
		session:    dep.Session,
	}, nil
}

// Hooks exposes the hook bus so callers can Register built-ins (e.g.
// hookbus.RegisterActivityTracker) before issuing commands.
func (a *Angela) Hooks() *hookbus.Bus { return a.hooks }

// Classify returns the risk tier, reason, and impact summary for
// command without executing it.
func (a *Angela) Classify(command string) (risk.Tier, string, risk.ImpactSummary) {
	return a.classifier.ClassifyWithImpact(command)
}

// Preview renders a best-effort description of what command would do.
// A command with no preview strategy yields a "preview not available"
// notice; ("", false) is returned only when the previewer errors or
// produces no text.
func (a *Angela) Preview(ctx context.Context, command string) (string, bool) {
	text, err := a.previewer.Generate(ctx, command)
	if err != nil || text == "" {
		return "", false
	}
	return text, true
}

// ResolveReference resolves a free-text file reference against the
// current session and scope.
func (a *Angela) ResolveReference(text string, scope resolver.Scope) (string, bool) {
	return a.resolver.Resolve(text, a.session, scope)
}

// Execute runs command through the execution engine.
func (a *Angela) Execute(ctx context.Context, command string, opts execengine.Options) (execengine.ExecResult, error) {
	return a.engine.ExecuteCommand(ctx, command, opts)
}

// ExecuteFS runs a filesystem primitive through the execution engine.
func (a *Angela) ExecuteFS(ctx context.Context, op execengine.FSOp, opts execengine.Options) (bool, error) {
	return a.engine.ExecuteFSOp(ctx, op, opts)
}

// BeginTransaction opens a new transaction and returns its id.
func (a *Angela) BeginTransaction(description string) (string, error) {
	return a.rollback.Begin(description, time.Now())
}

// EndTransaction flips a transaction to a terminal status.
func (a *Angela) EndTransaction(txID string, status rollback.Status) error {
	return a.rollback.End(txID, status)
}

// ListRecentTransactions returns up to limit transactions, most recent first.
func (a *Angela) ListRecentTransactions(limit int) []rollback.Transaction {
	return a.rollback.ListRecent(limit)
}

// RollbackTransaction undoes every operation in a transaction, newest
// first, and reports per-operation outcomes.
func (a *Angela) RollbackTransaction(txID string) (rollback.RollbackReport, error) {
	return a.rollback.RollbackTx(txID)
}
