// Package collab defines the minimal interfaces the trust-and-execution
// core needs from its external collaborators — an LLM-driven command
// source, project-type inference, and activity observation — each
// treated as out of scope for this core (spec.md §1) but given a narrow
// contract here so the core compiles and tests standalone.
package collab

import (
	"context"

	"github.com/angela-sh/angela/pkg/hookbus"
)

// CommandSource supplies the next command to consider, however it was
// produced (an LLM turn, a recorded script, a human typing into a
// shell). The core never originates commands itself.
type CommandSource interface {
	NextCommand(ctx context.Context) (string, error)
}

// ProjectInfo reports the project the current session is operating in,
// ordinarily inferred by a collaborator that inspects build files and
// directory layout; this core only consumes the result.
type ProjectInfo interface {
	Type() string
	Root() string
}

// ActivityObserver receives file-activity events derived from executed
// commands; a collaborator persists them as history or learns
// preferences from them. hookbus.ActivityObserver is the same shape —
// this alias keeps the façade's dependency list honest about which
// concern it's satisfying.
type ActivityObserver = hookbus.ActivityObserver

// NoopCommandSource never produces a command; useful for standalone
// tests and for driving the core purely through direct façade calls.
type NoopCommandSource struct{}

func (NoopCommandSource) NextCommand(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// StaticProjectInfo reports a fixed project type/root, useful when the
// caller already knows them (e.g. from its own config) and doesn't need
// live inference.
type StaticProjectInfo struct {
	ProjectType string
	ProjectRoot string
}

func (s StaticProjectInfo) Type() string { return s.ProjectType }
func (s StaticProjectInfo) Root() string { return s.ProjectRoot }

// DiscardActivityObserver drops every observed activity; useful when a
// caller has no history/preference store wired up yet.
type DiscardActivityObserver struct{}

func (DiscardActivityObserver) Observe(hookbus.Activity) {}
