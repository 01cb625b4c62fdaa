package resolver

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/angela-sh/angela/pkg/session"
)

const minTokenLength = 3

var commonWords = map[string]struct{}{
	"that": {}, "this": {}, "those": {}, "these": {}, "the": {}, "it": {}, "which": {}, "what": {},
	"inside": {}, "called": {}, "named": {}, "from": {}, "with": {}, "using": {}, "into": {},
	"as": {}, "for": {}, "about": {}, "like": {}, "than": {}, "then": {}, "when": {}, "where": {},
	"how": {}, "why": {}, "who": {}, "whom": {}, "whose": {}, "my": {}, "your": {}, "our": {}, "their": {},
	"create": {}, "make": {}, "build": {}, "run": {}, "execute": {}, "script": {}, "program": {},
	"command": {}, "code": {}, "function": {}, "class": {}, "module": {}, "file": {}, "directory": {},
	"folder": {}, "project": {}, "value": {}, "test": {}, "example": {}, "content": {},
	"please": {}, "help": {}, "need": {}, "want": {}, "trying": {}, "would": {}, "could": {}, "should": {},
}

// extractionPatterns find references to existing files in free text:
// quoted and unquoted paths with extensions, and verb+path idioms.
var extractionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`["']([a-zA-Z0-9][a-zA-Z0-9_\-.]+/(?:[a-zA-Z0-9_\-.]+/)*[a-zA-Z0-9_\-.]+\.[a-zA-Z0-9]{1,10})["']`),
	regexp.MustCompile(`["']([a-zA-Z0-9][a-zA-Z0-9_\-.]{1,50}\.[a-zA-Z0-9]{1,10})["']`),
	regexp.MustCompile(`\b([a-zA-Z0-9][a-zA-Z0-9_\-.]+/(?:[a-zA-Z0-9_\-.]+/)*[a-zA-Z0-9_\-.]+\.[a-zA-Z0-9]{1,10})\b`),
	regexp.MustCompile(`\b([a-zA-Z0-9][a-zA-Z0-9_\-.]{2,}\.[a-zA-Z0-9]{1,10})\b`),
	regexp.MustCompile(`(?i:edit|open|read|cat|view|show|display|modify|update|check|access)\s+(?:file|script|module|config)?\s*["']?([a-zA-Z0-9][a-zA-Z0-9_\-.]{2,}(?:\.[a-zA-Z0-9]{1,10})?)["']?`),
	regexp.MustCompile(`(?i:append\s+to|write\s+to|delete|remove)\s+(?:file|script)?\s*["']?([a-zA-Z0-9][a-zA-Z0-9_\-.]{2,}(?:\.[a-zA-Z0-9]{1,10})?)["']?`),
}

// creationPatterns identify references meant as a *new* file to create,
// which must never be resolved against the existing filesystem.
var creationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:save)\s+(?:it\s+)?(?:as|to)\s+["']?([a-zA-Z0-9][a-zA-Z0-9_\-.]{2,}(?:\.[a-zA-Z0-9]{1,10})?)["']?`),
	regexp.MustCompile(`(?i:create)\s+(?:a\s+)?(?:new\s+)?(?:file|script)\s+["']?([a-zA-Z0-9][a-zA-Z0-9_\-.]{2,}(?:\.[a-zA-Z0-9]{1,10})?)["']?`),
	regexp.MustCompile(`(?i:generate)\s+(?:a\s+)?(?:new\s+)?(?:file|script|code)?\s*["']?([a-zA-Z0-9][a-zA-Z0-9_\-.]{2,}\.[a-zA-Z0-9]{1,10})["']?`),
	regexp.MustCompile(`(?i:write)\s+(?:a\s+)?(?:new\s+)?(?:file|script)\s+(?:called|named)\s+["']?([a-zA-Z0-9][a-zA-Z0-9_\-.]{2,}(?:\.[a-zA-Z0-9]{1,10})?)["']?`),
	regexp.MustCompile(`(?i:output)\s+(?:to|into)\s+(?:a\s+)?(?:file\s+(?:called|named)\s+)?["']?([a-zA-Z0-9][a-zA-Z0-9_\-.]{2,}(?:\.[a-zA-Z0-9]{1,10})?)["']?`),
}

// Reference pairs a free-text token with its resolution, if any.
type Reference struct {
	Text     string
	Resolved string
	Found    bool
}

func isValidReference(ref string) bool {
	if len(ref) < minTokenLength {
		return false
	}
	if _, ok := commonWords[strings.ToLower(ref)]; ok {
		return false
	}
	if isAllDigits(ref) {
		return false
	}
	for _, scheme := range []string{"http:", "https:", "ftp:", "mailto:"} {
		if strings.HasPrefix(ref, scheme) {
			return false
		}
	}
	return true
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// ExtractReferences scans text for file references, resolving each
// against sess, while excluding tokens that match a creation idiom (those
// name a file to be created, not one to look up).
func (r *Resolver) ExtractReferences(text string, sess *session.Session) []Reference {
	creationTargets := map[string]struct{}{}
	for _, pattern := range creationPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			ref := m[1]
			if isValidReference(ref) {
				creationTargets[ref] = struct{}{}
			}
		}
	}

	var refs []Reference
	seen := map[string]struct{}{}
	for _, pattern := range extractionPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			ref := m[1]
			if !isValidReference(ref) {
				continue
			}
			if _, isCreation := creationTargets[ref]; isCreation {
				continue
			}
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}

			resolved, ok := r.Resolve(ref, sess, ScopeDefault)
			refs = append(refs, Reference{Text: ref, Resolved: resolved, Found: ok})

			for _, variant := range relatedVariants(ref, text) {
				if !isValidReference(variant) {
					continue
				}
				if _, isCreation := creationTargets[variant]; isCreation {
					continue
				}
				if _, dup := seen[variant]; dup {
					continue
				}
				seen[variant] = struct{}{}
				vResolved, vOk := r.Resolve(variant, sess, ScopeDefault)
				refs = append(refs, Reference{Text: variant, Resolved: vResolved, Found: vOk})
			}
		}
	}
	return refs
}

// relatedVariants finds sibling filenames sharing a stem but a different
// extension, or matching test-file naming conventions, the way the
// original extractor looked for "related" references once one resolved.
func relatedVariants(ref, text string) []string {
	base := stem(ref)
	ext := filepath.Ext(ref)

	var related []string
	if ext != "" {
		for _, e := range []string{".py", ".js", ".html", ".css", ".json", ".yaml", ".yml", ".md", ".txt"} {
			if e == ext {
				continue
			}
			variant := base + e
			if strings.Contains(text, variant) {
				related = append(related, variant)
			}
		}
	}
	if !strings.HasPrefix(base, "test_") && !strings.Contains(base, "test") {
		for _, variant := range []string{"test_" + base + ext, base + "_test" + ext} {
			if strings.Contains(text, variant) {
				related = append(related, variant)
			}
		}
	} else if strings.HasPrefix(base, "test_") {
		impl := strings.TrimPrefix(base, "test_")
		if impl != "" {
			variant := impl + ext
			if strings.Contains(text, variant) {
				related = append(related, variant)
			}
		}
	}
	return related
}
