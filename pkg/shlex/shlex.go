// Package shlex centralizes shell-lexing so the risk classifier, the
// hook bus's activity parser, and the execution engine's metacharacter
// detector all tokenize a command string the same way.
package shlex

import shellwords "github.com/mattn/go-shellwords"

// Split tokenizes command respecting single/double quoting and escapes,
// the way a POSIX shell would before exec'ing argv.
func Split(command string) ([]string, error) {
	return shellwords.Parse(command)
}

// HasMetacharacters reports whether command contains shell operators
// (pipes, redirects, chaining) that require invocation through a shell
// rather than a direct exec of tokenized argv.
func HasMetacharacters(command string) bool {
	inSingle, inDouble := false, false
	for i := 0; i < len(command); i++ {
		c := command[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
			continue
		case c == '|' || c == '&' || c == '<' || c == '>' || c == ';' || c == '`' || c == '$':
			return true
		}
	}
	return false
}

// FirstWord extracts the base command name, tolerating leading
// whitespace and surrounding quotes.
func FirstWord(command string) string {
	tokens, err := Split(command)
	if err != nil || len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}
