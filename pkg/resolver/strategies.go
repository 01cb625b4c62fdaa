package resolver

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/angela-sh/angela/pkg/session"
)

// similarity returns a [0,1] sequence-similarity score, 1 meaning
// identical. It normalizes agnivade/levenshtein's edit distance by the length
// of the longer string, the same shape as Python's difflib ratio used by
// the original resolver.
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(maxLen)
}

func osUserHomeDir() (string, error) { return os.UserHomeDir() }

func osReadDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

type statInfo struct {
	modTime time.Time
}

func osStat(path string) (statInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return statInfo{}, err
	}
	return statInfo{modTime: info.ModTime()}, nil
}

func resolveExactPath(ref string, sess *session.Session) []Match {
	var matches []Match

	if filepath.IsAbs(ref) && exists(ref) {
		matches = append(matches, Match{Path: ref, Score: 1.0, Strategy: StrategyExactPath})
	}
	if cwd := sess.Cwd(); cwd != "" {
		p := filepath.Join(cwd, ref)
		if exists(p) {
			matches = append(matches, Match{Path: p, Score: 1.0, Strategy: StrategyExactPath})
		}
	}
	if root := sess.ProjectRoot(); root != "" {
		p := filepath.Join(root, ref)
		if exists(p) {
			matches = append(matches, Match{Path: p, Score: 1.0, Strategy: StrategyExactPath})
		}
	}
	return matches
}

func resolveSpecialReference(ref string, sess *session.Session) []Match {
	lower := strings.ToLower(ref)
	var matches []Match

	switch lower {
	case "current file", "this file", "current", ".":
		if cur := sess.CurrentFile(); cur != nil {
			matches = append(matches, Match{Path: cur.Path, Score: 1.0, Strategy: StrategySpecialReference,
				Meta: map[string]string{"special": "current_file"}})
		}
	case "last file", "last modified", "previous file", "recent file":
		if e, ok := sess.MostRecentEntity(session.EntityRecentFile, session.EntityFile); ok {
			matches = append(matches, Match{Path: e.Value, Score: 0.9, Strategy: StrategySpecialReference,
				Meta: map[string]string{"special": "last_file_from_session"}})
		}
	case "previous directory", "parent directory", "..":
		if cwd := sess.Cwd(); cwd != "" {
			parent := filepath.Dir(cwd)
			if exists(parent) {
				matches = append(matches, Match{Path: parent, Score: 1.0, Strategy: StrategySpecialReference,
					Meta: map[string]string{"special": "parent_directory"}})
			}
		}
	case "home directory", "home", "~":
		if home, err := osUserHomeDir(); err == nil {
			matches = append(matches, Match{Path: home, Score: 1.0, Strategy: StrategySpecialReference,
				Meta: map[string]string{"special": "home_directory"}})
		}
	}
	return matches
}

func resolveRecentFile(ref string, sess *session.Session) []Match {
	var matches []Match
	lowerRef := strings.ToLower(ref)

	for _, e := range sess.Entities() {
		if e.Kind != session.EntityFile && e.Kind != session.EntityRecentFile && e.Kind != session.EntityDirectory {
			continue
		}
		base := filepath.Base(e.Value)
		if strings.ToLower(base) == lowerRef {
			matches = append(matches, Match{Path: e.Value, Score: 0.95, Strategy: StrategyRecentFile,
				Meta: map[string]string{"session": "exact_name_match"}})
			continue
		}
		sim := lastSimilarity(base, ref)
		if sim >= fuzzyThreshold {
			matches = append(matches, Match{Path: e.Value, Score: sim * 0.85, Strategy: StrategyRecentFile,
				Meta: map[string]string{"session": "fuzzy_match"}})
		}
	}
	return matches
}

func resolveFuzzyMatch(ref string, sess *session.Session, scope Scope) []Match {
	paths := pathsToCheck(sess, scope)
	if len(paths) == 0 {
		return nil
	}

	wantDir := strings.HasSuffix(ref, "/")
	wantExt := filepath.Ext(ref)

	var matches []Match
	for _, p := range paths {
		dir := isDir(p)
		if dir && !wantDir {
			continue
		}
		if wantExt != "" && !dir && filepath.Ext(p) != wantExt {
			continue
		}
		name := filepath.Base(p)
		sim := lastSimilarity(name, ref)
		if sim < fuzzyThreshold*0.8 {
			continue
		}
		score := adjustFuzzyScore(sim, p, ref, sess)
		if score >= fuzzyThreshold {
			matches = append(matches, Match{Path: p, Score: score, Strategy: StrategyFuzzyMatch,
				Meta: map[string]string{"name_similarity": formatFloat(sim)}})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return truncate(matches, maxCandidates)
}

func adjustFuzzyScore(base float64, path, ref string, sess *session.Session) float64 {
	score := base

	refExt := filepath.Ext(ref)
	pathExt := filepath.Ext(path)
	if refExt != "" && pathExt == refExt {
		score *= 1.2
	}
	if filepath.Dir(path) == sess.Cwd() {
		score *= 1.1
	}
	if stem(path) == stem(ref) {
		score *= 1.25
	}
	if isExcluded(path) {
		score *= 0.5
	}

	refWords := wordSet(ref)
	pathWords := wordSet(stem(path))
	common := 0
	for w := range refWords {
		if _, ok := pathWords[w]; ok {
			common++
		}
	}
	if common > 0 {
		score *= 1 + 0.1*float64(common)
	}

	if info, err := osStat(path); err == nil {
		if time.Since(info.modTime) < 24*time.Hour {
			score *= 1.1
		}
	}

	return score
}

func resolvePatternMatch(ref string, sess *session.Session, scope Scope) []Match {
	basePaths := basePaths(sess, scope)
	seen := map[string]Match{}

	for _, base := range basePaths {
		for _, pattern := range patternVariations(ref) {
			found, _ := filepath.Glob(filepath.Join(base, pattern))
			for _, p := range found {
				score := patternMatchScore(pattern, p, ref)
				if score < fuzzyThreshold {
					continue
				}
				if existing, ok := seen[p]; !ok || score > existing.Score {
					seen[p] = Match{Path: p, Score: score, Strategy: StrategyPatternMatch,
						Meta: map[string]string{"pattern": pattern}}
				}
			}
		}
	}

	var matches []Match
	for _, m := range seen {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return truncate(matches, maxCandidates)
}

func patternVariations(ref string) []string {
	patterns := []string{ref, "*" + ref + "*", "*" + ref, ref + "*"}
	ext := filepath.Ext(ref)
	if ext == "" {
		for _, e := range []string{".py", ".js", ".html", ".css", ".md", ".json", ".yaml", ".yml"} {
			patterns = append(patterns, ref+e)
		}
	} else {
		patterns = append(patterns, stem(ref))
	}
	if strings.Contains(ref, "_") {
		patterns = append(patterns, strings.ReplaceAll(ref, "_", "-"))
	}
	if strings.Contains(ref, "-") {
		patterns = append(patterns, strings.ReplaceAll(ref, "-", "_"))
	}
	return patterns
}

func patternMatchScore(pattern, path, ref string) float64 {
	var base float64
	switch {
	case pattern == ref:
		base = 1.0
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		base = 0.7
	case strings.HasPrefix(pattern, "*") || strings.HasSuffix(pattern, "*"):
		base = 0.8
	default:
		base = 0.9
	}

	score := base
	name := filepath.Base(path)
	if strings.EqualFold(name, ref) {
		score *= 1.2
	}
	if strings.EqualFold(stem(name), stem(ref)) {
		score *= 1.15
	}
	refExt := filepath.Ext(ref)
	if refExt != "" && filepath.Ext(path) == refExt {
		score *= 1.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// knownProjectStructures mirrors the per-project-type location hints
// ported from the Python resolver's project-structure strategy.
var knownProjectStructures = map[string]struct {
	srcDirs, testDirs, docDirs []string
}{
	"python": {srcDirs: []string{"src", "app", "lib"}, testDirs: []string{"tests", "test"}, docDirs: []string{"docs", "doc"}},
	"node":   {srcDirs: []string{"src", "app", "lib"}, testDirs: []string{"tests", "test", "__tests__"}, docDirs: []string{"docs", "doc"}},
	"web":    {srcDirs: []string{"src", "app", "public", "static"}, docDirs: []string{"docs", "doc"}},
}

func resolveProjectStructure(ref string, sess *session.Session) []Match {
	root := sess.ProjectRoot()
	if root == "" {
		return nil
	}
	structure, ok := knownProjectStructures[sess.ProjectType()]
	if !ok {
		return nil
	}

	ext := strings.TrimPrefix(filepath.Ext(ref), ".")
	isSource := ext == "py" || ext == "js" || ext == "jsx" || ext == "ts" || ext == "tsx"
	isTest := strings.Contains(strings.ToLower(ref), "test")
	isConfig := ext == "json" || ext == "yaml" || ext == "yml" || ext == "toml" || ext == "ini"
	isDoc := ext == "md" || ext == "rst" || ext == "txt"

	var locations []string
	if isSource && !isTest {
		for _, d := range structure.srcDirs {
			locations = append(locations, filepath.Join(root, d))
		}
	}
	if isTest {
		for _, d := range structure.testDirs {
			locations = append(locations, filepath.Join(root, d))
		}
	}
	if isConfig {
		locations = append(locations, root, filepath.Join(root, "config"))
	}
	if isDoc {
		for _, d := range structure.docDirs {
			locations = append(locations, filepath.Join(root, d))
		}
		locations = append(locations, root)
	}
	locations = append(locations, root)

	var matches []Match
	for _, loc := range locations {
		if !isDir(loc) {
			continue
		}
		exact := filepath.Join(loc, ref)
		if exists(exact) {
			rel, _ := filepath.Rel(root, loc)
			matches = append(matches, Match{Path: exact, Score: 0.95, Strategy: StrategyProjectStructure,
				Meta: map[string]string{"location": rel}})
			continue
		}
		entries, _ := osReadDirNames(loc)
		for _, name := range entries {
			p := filepath.Join(loc, name)
			if isDir(p) {
				continue
			}
			sim := lastSimilarity(name, ref)
			if sim >= fuzzyThreshold {
				matches = append(matches, Match{Path: p, Score: sim * 0.9, Strategy: StrategyProjectStructure,
					Meta: map[string]string{"similarity": formatFloat(sim)}})
			}
		}
	}
	return matches
}

// fileTypeExtensions groups extensions the way the Python FileType enum
// does, used both to detect an intended type from the reference text and
// to match candidate files against it.
var fileTypeExtensions = map[string][]string{
	"python":     {"py", "pyi", "pyx"},
	"javascript": {"js", "jsx", "ts", "tsx", "mjs", "cjs"},
	"html":       {"html", "htm", "xhtml"},
	"css":        {"css", "scss", "sass", "less"},
	"config":     {"json", "yaml", "yml", "toml", "ini", "cfg", "conf"},
	"markdown":   {"md", "markdown", "mdx"},
	"text":       {"txt", "text", "log"},
	"shell":      {"sh", "bash", "zsh", "fish"},
}

func detectFileType(ref string) (string, bool) {
	lower := strings.ToLower(ref)
	for name := range fileTypeExtensions {
		if strings.Contains(lower, name+" file") || strings.Contains(lower, name+" script") {
			return name, true
		}
	}
	ext := strings.TrimPrefix(filepath.Ext(ref), ".")
	for name, exts := range fileTypeExtensions {
		for _, e := range exts {
			if e == ext {
				return name, true
			}
		}
	}
	return "", false
}

func resolveFileType(ref string, sess *session.Session, scope Scope) []Match {
	typ, ok := detectFileType(ref)
	if !ok {
		return nil
	}
	wantExts := fileTypeExtensions[typ]

	var matches []Match
	for _, p := range pathsToCheck(sess, scope) {
		if isDir(p) {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(p), ".")
		matched := false
		for _, e := range wantExts {
			if e == ext {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		sim := lastSimilarity(stem(p), stem(ref))
		if sim < 0.5 {
			continue
		}
		score := (0.75 + sim) / 2
		refExt := filepath.Ext(ref)
		if refExt != "" && filepath.Ext(p) == refExt {
			score *= 1.1
		}
		matches = append(matches, Match{Path: p, Score: score, Strategy: StrategyFileType,
			Meta: map[string]string{"file_type": typ}})
	}
	return matches
}

func resolveSemanticContext(ref string, sess *session.Session, scope Scope) []Match {
	var hints []string
	for _, cmd := range sess.RecentCommands() {
		if strings.Contains(cmd, ref) {
			hints = append(hints, cmd)
		}
	}
	if cur := sess.CurrentFile(); cur != nil && strings.Contains(cur.Content, ref) {
		hints = append(hints, cur.Path)
	}
	if len(hints) == 0 {
		return nil
	}

	var matches []Match
	for _, base := range basePaths(sess, scope) {
		entries, _ := osReadDirNames(base)
		for _, name := range entries {
			p := filepath.Join(base, name)
			if isDir(p) || !strings.Contains(strings.ToLower(name), strings.ToLower(ref)) {
				continue
			}
			sim := lastSimilarity(name, ref)
			if sim >= 0.6 {
				matches = append(matches, Match{Path: p, Score: 0.75 * sim, Strategy: StrategySemanticContext,
					Meta: map[string]string{"hint": "recent_context"}})
			}
		}
	}
	return matches
}

func basePaths(sess *session.Session, scope Scope) []string {
	switch scope {
	case ScopeProject:
		if root := sess.ProjectRoot(); root != "" {
			return []string{root}
		}
		return nil
	case ScopeDirectory:
		return []string{sess.Cwd()}
	default:
		paths := []string{sess.Cwd()}
		if root := sess.ProjectRoot(); root != "" && root != sess.Cwd() {
			paths = append(paths, root)
		}
		return paths
	}
}

func pathsToCheck(sess *session.Session, scope Scope) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(dir string) {
		names, err := osReadDirNames(dir)
		if err != nil {
			return
		}
		for _, n := range names {
			p := filepath.Join(dir, n)
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}

	switch scope {
	case ScopeProject:
		root := sess.ProjectRoot()
		if root == "" {
			return nil
		}
		add(root)
		for _, d := range []string{"src", "lib", "app", "test", "tests", "docs", "scripts", "config"} {
			add(filepath.Join(root, d))
		}
	case ScopeDirectory:
		add(sess.Cwd())
	default:
		add(sess.Cwd())
		if root := sess.ProjectRoot(); root != "" && root != sess.Cwd() {
			add(root)
			for _, d := range []string{"src", "lib", "test", "tests", "docs", "app", "bin"} {
				add(filepath.Join(root, d))
			}
		}
	}
	return out
}

func truncate(matches []Match, n int) []Match {
	if len(matches) <= n {
		return matches
	}
	return matches[:n]
}

func stem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

func wordSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Split(strings.ToLower(s), "_") {
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}
