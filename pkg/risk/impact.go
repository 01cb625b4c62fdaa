package risk

import (
	"strings"

	"github.com/angela-sh/angela/pkg/shlex"
)

// OperationKind is the syntactic effect a command appears to have.
type OperationKind string

const (
	OpRead               OperationKind = "read"
	OpDelete             OperationKind = "delete"
	OpMove               OperationKind = "move"
	OpCopy               OperationKind = "copy"
	OpCreate             OperationKind = "create"
	OpChangeAttributes   OperationKind = "change_attributes"
	OpDownload           OperationKind = "download"
	OpVersionControl     OperationKind = "version_control"
	OpPackageManagement  OperationKind = "package_management"
	OpServiceManagement  OperationKind = "service_management"
	OpContainerManage    OperationKind = "container_management"
	OpNetworkConfig      OperationKind = "network_configuration"
	OpUserManagement     OperationKind = "user_management"
)

// ImpactSummary describes what a command will touch, derived purely
// syntactically. It is never produced by executing the command.
type ImpactSummary struct {
	Operations    map[OperationKind]struct{}
	AffectedFiles map[string]struct{}
	AffectedDirs  map[string]struct{}
	Destructive   bool
	CreatesFiles  bool
	ModifiesFiles bool
}

func newImpactSummary() ImpactSummary {
	return ImpactSummary{
		Operations:    map[OperationKind]struct{}{},
		AffectedFiles: map[string]struct{}{},
		AffectedDirs:  map[string]struct{}{},
	}
}

func (s *ImpactSummary) addOp(op OperationKind) { s.Operations[op] = struct{}{} }

// destructiveCommands, creatorCommands, and modifierCommands mirror the
// base-command tables from original_source/angela/components/safety/classifier.py's
// analyze_impact, ported to Go.
var (
	destructiveCommands = set("rm", "shred", "dd", "mkfs", "fdisk", "gdisk", "parted")
	creatorCommands     = set("touch", "mkdir", "cp", "mv", "wget", "curl", "git")
	modifierCommands    = set("vim", "nano", "emacs", "sed", "awk", "patch", "truncate")

	opByCommand = map[string]OperationKind{
		"ls": OpRead, "cat": OpRead, "less": OpRead, "more": OpRead,
		"head": OpRead, "tail": OpRead, "grep": OpRead,
		"rm": OpDelete, "rmdir": OpDelete, "shred": OpDelete,
		"mv": OpMove,
		"cp": OpCopy,
		"touch": OpCreate, "mkdir": OpCreate, "mknod": OpCreate,
		"chmod": OpChangeAttributes, "chown": OpChangeAttributes, "chgrp": OpChangeAttributes, "setfacl": OpChangeAttributes,
		"wget": OpDownload, "curl": OpDownload,
		"git": OpVersionControl, "svn": OpVersionControl, "hg": OpVersionControl,
		"apt": OpPackageManagement, "apt-get": OpPackageManagement, "yum": OpPackageManagement,
		"dnf": OpPackageManagement, "pacman": OpPackageManagement, "zypper": OpPackageManagement,
		"systemctl": OpServiceManagement, "service": OpServiceManagement,
		"docker": OpContainerManage, "podman": OpContainerManage, "kubectl": OpContainerManage,
		"ifconfig": OpNetworkConfig, "ip": OpNetworkConfig, "route": OpNetworkConfig,
		"iptables": OpNetworkConfig, "ufw": OpNetworkConfig,
		"passwd": OpUserManagement, "useradd": OpUserManagement, "usermod": OpUserManagement, "groupadd": OpUserManagement,
	}

	// dirCommands is the set of base commands whose non-option arguments
	// are conventionally directories rather than files.
	dirCommands = set("mkdir", "cd", "rmdir", "pushd")
)

func set(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

// AnalyzeImpact tokenizes command with shell-lexing rules and derives an
// ImpactSummary. It never stats the filesystem; path classification is
// purely heuristic (trailing "/" => directory, dot-suffix => file,
// wildcard => both, otherwise disambiguated by the base command).
func AnalyzeImpact(command string) ImpactSummary {
	summary := newImpactSummary()
	tokens, err := shlex.Split(command)
	if err != nil || len(tokens) == 0 {
		return summary
	}

	base := tokens[0]
	args := tokens[1:]

	if _, ok := destructiveCommands[base]; ok {
		summary.Destructive = true
	}
	if _, ok := creatorCommands[base]; ok {
		summary.CreatesFiles = true
	}
	if _, ok := modifierCommands[base]; ok {
		summary.ModifiesFiles = true
	}
	if op, ok := opByCommand[base]; ok {
		summary.addOp(op)
	}

	_, dirBase := dirCommands[base]

	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		classifyPathArg(&summary, arg, dirBase)
	}

	return summary
}

// classifyPathArg applies the path classification heuristics from
// spec.md §4.1: trailing "/" => directory; dot-suffix => file; wildcard
// => both; otherwise disambiguated by the base command's typical target.
func classifyPathArg(s *ImpactSummary, arg string, dirBase bool) {
	switch {
	case strings.HasSuffix(arg, "/"):
		s.AffectedDirs[arg] = struct{}{}
	case strings.ContainsAny(arg, "*?["):
		s.AffectedFiles[arg] = struct{}{}
		s.AffectedDirs[arg] = struct{}{}
	case strings.Contains(lastSegment(arg), "."):
		s.AffectedFiles[arg] = struct{}{}
	case dirBase:
		s.AffectedDirs[arg] = struct{}{}
	default:
		s.AffectedFiles[arg] = struct{}{}
	}
}

func lastSegment(p string) string {
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		return p[idx+1:]
	}
	return p
}
