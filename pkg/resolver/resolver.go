// Package resolver turns a loose natural-language file reference ("that
// config", "the python file I edited last") into a concrete path, trying
// eight strategies and keeping the highest-scoring candidate.
package resolver

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/angela-sh/angela/pkg/session"
)

// Strategy names one of the eight resolution strategies, in the priority
// order used to break ties between equal scores.
type Strategy string

const (
	StrategyExactPath        Strategy = "exact_path"
	StrategySpecialReference Strategy = "special_reference"
	StrategyRecentFile       Strategy = "recent_file"
	StrategyFuzzyMatch       Strategy = "fuzzy_match"
	StrategyPatternMatch     Strategy = "pattern_match"
	StrategyProjectStructure Strategy = "project_structure"
	StrategyFileType         Strategy = "file_type"
	StrategySemanticContext  Strategy = "semantic_context"
)

// strategyPrecedence breaks ties between matches of equal score; lower
// index wins.
var strategyPrecedence = map[Strategy]int{
	StrategyExactPath:        0,
	StrategySpecialReference: 1,
	StrategyRecentFile:       2,
	StrategyFuzzyMatch:       3,
	StrategyPatternMatch:     4,
	StrategyProjectStructure: 5,
	StrategyFileType:         6,
	StrategySemanticContext:  7,
}

// Match is a single candidate path produced by one strategy.
type Match struct {
	Path     string
	Score    float64
	Strategy Strategy
	Meta     map[string]string
}

// Scope narrows which directories a resolution attempt searches.
type Scope string

const (
	ScopeDefault   Scope = ""
	ScopeProject   Scope = "project"
	ScopeDirectory Scope = "directory"
)

const fuzzyThreshold = 0.6
const maxCandidates = 10
const cacheTTL = 5 * time.Minute

var defaultExclusions = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/__pycache__/**",
	"**/venv/**",
	"**/dist/**",
	"**/build/**",
	"**/.cache/**",
	"**/.pytest_cache/**",
}

// Resolver resolves references against a Session's working state. One
// Resolver may be shared by multiple goroutines.
type Resolver struct {
	cache sync.Map // cacheKey -> cacheEntry
}

type cacheEntry struct {
	path    string
	expires time.Time
}

func cacheKey(reference, cwd string, scope Scope) string {
	return reference + "\x00" + cwd + "\x00" + string(scope)
}

// New builds a Resolver.
func New() *Resolver { return &Resolver{} }

// Resolve tries every strategy and returns the highest-scoring match's
// path, or "" if nothing crossed its threshold. EXACT_PATH hits
// short-circuit every other strategy.
func (r *Resolver) Resolve(reference string, sess *session.Session, scope Scope) (string, bool) {
	ref := cleanReference(reference)
	if ref == "" {
		return "", false
	}

	key := cacheKey(ref, sess.Cwd(), scope)
	if v, ok := r.cache.Load(key); ok {
		entry := v.(cacheEntry)
		if time.Now().Before(entry.expires) {
			return entry.path, true
		}
		r.cache.Delete(key)
	}

	matches := r.collectAllMatches(ref, sess, scope)
	best, ok := pickBest(matches)
	if !ok {
		return "", false
	}

	sess.AddEntity("file_ref:"+ref, session.EntityFileRef, best.Path)
	sess.AddEntity("recent_file:"+filepath.Base(best.Path), session.EntityRecentFile, best.Path)
	r.cache.Store(key, cacheEntry{path: best.Path, expires: time.Now().Add(cacheTTL)})
	return best.Path, true
}

func pickBest(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Score > best.Score ||
			(m.Score == best.Score && strategyPrecedence[m.Strategy] < strategyPrecedence[best.Strategy]) {
			best = m
		}
	}
	return best, true
}

func (r *Resolver) collectAllMatches(ref string, sess *session.Session, scope Scope) []Match {
	var all []Match

	if exact := resolveExactPath(ref, sess); len(exact) > 0 {
		return exact // EXACT_PATH short-circuits every other strategy
	}

	all = append(all, resolveSpecialReference(ref, sess)...)
	all = append(all, resolveRecentFile(ref, sess)...)
	all = append(all, resolveFuzzyMatch(ref, sess, scope)...)
	all = append(all, resolvePatternMatch(ref, sess, scope)...)
	all = append(all, resolveProjectStructure(ref, sess)...)
	all = append(all, resolveFileType(ref, sess, scope)...)
	all = append(all, resolveSemanticContext(ref, sess, scope)...)
	return all
}

func cleanReference(ref string) string {
	ref = strings.Trim(ref, "'\"\\/* \t\n\r")
	return strings.ReplaceAll(ref, "\\", "/")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func lastSimilarity(a, b string) float64 {
	return similarity(strings.ToLower(a), strings.ToLower(b))
}

var exclusionMatcher *gitignore.GitIgnore

func init() {
	gi, err := gitignore.CompileIgnoreLines(defaultExclusions...)
	if err == nil {
		exclusionMatcher = gi
	}
}

// isExcluded reports whether path falls under one of the default
// resolution exclusions (VCS metadata, dependency caches, build output).
func isExcluded(path string) bool {
	if exclusionMatcher == nil {
		return false
	}
	return exclusionMatcher.MatchesPath(path)
}
