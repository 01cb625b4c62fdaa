// Package hookbus is the trust-and-execution core's extension point:
// four fixed hook events, ordered handler lists, and a built-in
// activity-tracking handler that turns executed commands into
// file-activity events (spec.md §4.6).
package hookbus

import (
	"fmt"
	"sync"

	"github.com/angela-sh/angela/pkg/logx"
	"github.com/angela-sh/angela/pkg/shlex"
)

// Point is one of the four fixed hook events.
type Point string

const (
	PreExecuteCommand  Point = "pre_execute_command"
	PostExecuteCommand Point = "post_execute_command"
	PreExecuteFileOp   Point = "pre_execute_file_operation"
	PostExecuteFileOp  Point = "post_execute_file_operation"
)

// Event is what a handler receives: the command or filesystem params
// that triggered the hook, the execution result if this is a "post"
// point, and a freeform context bag.
type Event struct {
	Point   Point
	Command string
	Params  map[string]string
	Result  any
	Context map[string]any
}

// Handler observes a hook event. It must be side-effect-tolerant: a
// panic is recovered and logged, never propagated, and never blocks
// other handlers registered for the same point.
type Handler func(Event)

// Bus holds ordered handler lists per hook point.
type Bus struct {
	mu       sync.Mutex
	handlers map[Point][]Handler
	log      *logx.Logger
}

// New builds an empty Bus.
func New(log *logx.Logger) *Bus {
	return &Bus{handlers: map[Point][]Handler{}, log: log}
}

// Register appends handler to point's list, to run after any already
// registered for that point.
func (b *Bus) Register(point Point, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[point] = append(b.handlers[point], handler)
}

// Fire invokes every handler registered for event.Point, in registration
// order, awaited sequentially. A handler that panics is recovered and
// logged; the remaining handlers still run.
func (b *Bus) Fire(event Event) {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.handlers[event.Point]...)
	b.mu.Unlock()

	for _, h := range handlers {
		b.invoke(h, event)
	}
}

func (b *Bus) invoke(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			if b.log != nil {
				b.log.Error("hookbus: handler for %s panicked: %v", event.Point, r)
			}
		}
	}()
	h(event)
}

// ActivityKind is the effect a built-in activity handler observed a
// command have on a file.
type ActivityKind string

const (
	ActivityViewed   ActivityKind = "viewed"
	ActivityCreated  ActivityKind = "created"
	ActivityModified ActivityKind = "modified"
	ActivityDeleted  ActivityKind = "deleted"
)

// Activity is one file-level effect inferred from a command.
type Activity struct {
	Path string
	Kind ActivityKind
}

// ActivityObserver receives Activity events derived from executed
// commands; the façade's collaborators (history/preference storage,
// project inference) implement it.
type ActivityObserver interface {
	Observe(Activity)
}

// RegisterActivityTracker wires the built-in activity-tracking handler
// described in spec.md §4.6 onto post_execute_command: it re-tokenizes
// the command with the same shlex the classifier uses and emits one
// Activity per affected file.
func RegisterActivityTracker(b *Bus, observer ActivityObserver) {
	b.Register(PostExecuteCommand, func(event Event) {
		for _, activity := range inferActivities(event.Command) {
			observer.Observe(activity)
		}
	})
}

func inferActivities(command string) []Activity {
	tokens, err := shlex.Split(command)
	if err != nil || len(tokens) == 0 {
		return nil
	}
	base := tokens[0]
	args := tokens[1:]

	switch base {
	case "cat", "less", "more", "head", "tail":
		return activitiesFor(args, ActivityViewed)
	case "rm", "rmdir", "shred":
		return activitiesFor(args, ActivityDeleted)
	case "touch":
		return activitiesFor(args, ActivityCreated)
	case "cp":
		return pairedActivity(args, ActivityViewed, ActivityCreated)
	case "mv":
		return pairedActivity(args, ActivityDeleted, ActivityCreated)
	default:
		return redirectionActivities(command)
	}
}

// activitiesFor treats every non-flag argument as an affected path.
func activitiesFor(args []string, kind ActivityKind) []Activity {
	var activities []Activity
	for _, arg := range args {
		if isFlag(arg) {
			continue
		}
		activities = append(activities, Activity{Path: arg, Kind: kind})
	}
	return activities
}

// pairedActivity handles `cp src dst` / `mv src dst`: the source gets
// srcKind, the destination gets dstKind.
func pairedActivity(args []string, srcKind, dstKind ActivityKind) []Activity {
	var paths []string
	for _, arg := range args {
		if !isFlag(arg) {
			paths = append(paths, arg)
		}
	}
	if len(paths) < 2 {
		return nil
	}
	dst := paths[len(paths)-1]
	var activities []Activity
	for _, src := range paths[:len(paths)-1] {
		activities = append(activities, Activity{Path: src, Kind: srcKind})
	}
	activities = append(activities, Activity{Path: dst, Kind: dstKind})
	return activities
}

// redirectionActivities catches `echo ... > file` (created) and
// `echo ... >> file` (modified) by scanning the raw command string: shlex
// stops at an unquoted redirection operator, so the target file never
// appears among its tokens.
func redirectionActivities(command string) []Activity {
	if idx := lastIndex(command, ">>"); idx >= 0 {
		if path := firstToken(command[idx+2:]); path != "" {
			return []Activity{{Path: path, Kind: ActivityModified}}
		}
	}
	if idx := lastIndex(command, ">"); idx >= 0 {
		if path := firstToken(command[idx+1:]); path != "" {
			return []Activity{{Path: path, Kind: ActivityCreated}}
		}
	}
	return nil
}

func isFlag(arg string) bool { return len(arg) > 0 && arg[0] == '-' }

func lastIndex(s, sub string) int {
	for i := len(s) - len(sub); i >= 0; i-- {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func firstToken(s string) string {
	tokens, err := shlex.Split(s)
	if err != nil || len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

// String renders a Point for logging.
func (p Point) String() string { return fmt.Sprintf("%s", string(p)) }
