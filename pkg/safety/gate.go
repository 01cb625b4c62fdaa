// Package safety implements the confirmation gate that stands between
// the risk classifier's verdict and the execution engine: deciding
// whether a command runs silently, needs a quick nod, or needs a
// detailed, explicit confirmation — and learning from the answer.
package safety

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/angela-sh/angela/pkg/configstore"
	"github.com/angela-sh/angela/pkg/risk"
)

// Prompter asks the operator a yes/no question and returns the answer.
// The CLI façade supplies a terminal-backed implementation; tests supply
// a scripted one.
type Prompter interface {
	Confirm(prompt string) (bool, error)
	Notify(message string)
}

const minRunsForAutoExecute = 5
const minSuccessRateForAutoExecute = 0.8
const baseLearningThreshold = 2

var riskColor = map[risk.Tier]*color.Color{
	risk.Safe:     color.New(color.FgGreen),
	risk.Low:      color.New(color.FgBlue),
	risk.Medium:   color.New(color.FgYellow),
	risk.High:     color.New(color.FgRed),
	risk.Critical: color.New(color.FgHiRed, color.Bold),
}

// Gate mediates every command execution decision; a façade shares one
// Gate across the process's lifetime so trust state accumulates.
type Gate struct {
	store    *configstore.Store
	prompter Prompter
}

// New builds a Gate over store, persisting and reading trust/rejection
// state, and prompter, rendering confirmations to the operator.
func New(store *configstore.Store, prompter Prompter) *Gate {
	return &Gate{store: store, prompter: prompter}
}

// Request bundles everything the gate needs to render a decision; it
// mirrors the confirm() contract's parameter list from one call site.
type Request struct {
	Command     string
	Tier        risk.Tier
	Reason      string
	Impact      risk.ImpactSummary
	Preview     string
	Explanation string
	Confidence  *float64
	DryRun      bool
}

// Confirm runs the decision procedure and reports whether the command
// should run. It never itself executes the command.
func (g *Gate) Confirm(req Request) (bool, error) {
	if req.DryRun {
		g.prompter.Notify(dryRunSummary(req))
		return false, nil
	}

	if g.autoExecuteEligible(req) {
		g.prompter.Notify(autoExecuteNotice(req))
		return true, nil
	}

	if req.Tier >= risk.High {
		return g.detailedConfirmation(req)
	}
	return g.simpleConfirmation(req)
}

func (g *Gate) autoExecuteEligible(req Request) bool {
	if req.Tier >= risk.Critical {
		return false // never collapses to auto-run, even if trusted
	}
	if !g.store.IsTrusted(req.Command) {
		return false
	}
	threshold := risk.Tier(g.store.Snapshot().AutoRunThreshold)
	if req.Tier > threshold {
		return false
	}
	entry := g.store.Trust(req.Command)
	total := entry.Successes + entry.Failures
	if total < minRunsForAutoExecute {
		return false
	}
	rate, ok := entry.SuccessRate()
	return ok && rate >= minSuccessRateForAutoExecute
}

func (g *Gate) simpleConfirmation(req Request) (bool, error) {
	g.prompter.Notify(panelText(req, false))
	prompt := fmt.Sprintf("Proceed with this %s risk operation?", strings.ToUpper(req.Tier.String()))
	return g.prompter.Confirm(prompt)
}

func (g *Gate) detailedConfirmation(req Request) (bool, error) {
	g.prompter.Notify(panelText(req, true))
	if req.Tier >= risk.Critical {
		g.prompter.Notify(criticalBanner(req.Tier))
	}

	prompt := fmt.Sprintf("⚠ Proceed with this %s RISK operation? ⚠", strings.ToUpper(req.Tier.String()))
	confirmed, err := g.prompter.Confirm(prompt)
	if err != nil || !confirmed {
		return confirmed, err
	}

	if !g.store.IsTrusted(req.Command) {
		trust, trustErr := g.prompter.Confirm("Add to trusted commands for future auto-execution?")
		if trustErr == nil && trust {
			g.store.AddTrusted(req.Command)
			g.prompter.Notify("Added command to trusted list. It will execute automatically in the future.")
		}
	}
	return true, nil
}

// OfferLearning implements the adaptive-learning rule: after a
// successful execution of a tier>=LOW command used useCount times, if
// not yet trusted and useCount has crossed the rejection-adjusted
// threshold, ask to trust it. Declining records a rejection in the
// store, which raises the threshold for next time.
func (g *Gate) OfferLearning(command string, useCount int) (offered, trusted bool) {
	if g.store.IsTrusted(command) {
		return false, false
	}
	rejections := g.store.Trust(command).RejectionCount
	threshold := baseLearningThreshold + rejections*2
	if useCount < threshold {
		return false, false
	}

	accepted, err := g.prompter.Confirm("Would you like to auto-execute this command in the future?")
	if err != nil {
		return true, false
	}
	if accepted {
		g.store.AddTrusted(command)
		return true, true
	}
	g.store.RecordRejection(command)
	return true, false
}

func dryRunSummary(req Request) string {
	var b strings.Builder
	b.WriteString(panelText(req, req.Tier >= risk.High))
	b.WriteString("\nThis is a dry run. No changes will be made.")
	return b.String()
}

func autoExecuteNotice(req Request) string {
	c := riskColor[req.Tier]
	return c.Sprintf("Auto-executing trusted command: %s", req.Command)
}

func panelText(req Request, detailed bool) string {
	c := riskColor[req.Tier]
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", c.Sprintf("[%s]", strings.ToUpper(req.Tier.String())), req.Command)
	fmt.Fprintf(&b, "reason: %s\n", req.Reason)
	if req.Explanation != "" {
		fmt.Fprintf(&b, "explanation: %s\n", req.Explanation)
	}
	if req.Confidence != nil {
		fmt.Fprintf(&b, "confidence: %.0f%%\n", *req.Confidence*100)
	}
	if detailed {
		fmt.Fprintf(&b, "impact: %s\n", summarizeImpact(req.Impact))
	}
	if req.Preview != "" {
		fmt.Fprintf(&b, "preview:\n%s\n", req.Preview)
	}
	return b.String()
}

func summarizeImpact(impact risk.ImpactSummary) string {
	var parts []string
	if impact.Destructive {
		parts = append(parts, "destructive")
	}
	if impact.CreatesFiles {
		parts = append(parts, "creates files")
	}
	if impact.ModifiesFiles {
		parts = append(parts, "modifies files")
	}
	parts = append(parts, fmt.Sprintf("%d file(s), %d dir(s) affected", len(impact.AffectedFiles), len(impact.AffectedDirs)))
	return strings.Join(parts, ", ")
}

func criticalBanner(tier risk.Tier) string {
	c := riskColor[risk.Critical]
	return c.Sprintf("⚠️  This is a %s RISK operation  ⚠️\nIt may cause significant changes to your system or data that cannot be easily undone.", strings.ToUpper(tier.String()))
}
