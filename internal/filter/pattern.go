package filter

import (
	"regexp"
	"strings"
)

// compiledPattern is an fnmatch-style glob compiled to an anchored regexp.
type compiledPattern struct {
	re       *regexp.Regexp
	original string
}

// compilePattern converts a shell glob into a matcher. Unlike rsync rules a
// '*' also crosses '/' so that "drafts/*" excludes a whole subtree.
func compilePattern(pattern string) (*compiledPattern, error) {
	re, err := regexp.Compile("^" + globToRegex(pattern) + "$")
	if err != nil {
		return nil, err
	}
	return &compiledPattern{re: re, original: pattern}, nil
}

func (cp *compiledPattern) match(s string) bool {
	return cp.re.MatchString(s)
}

func (cp *compiledPattern) String() string {
	return cp.original
}

// hasMeta reports whether s contains glob metacharacters.
func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// globToRegex converts a glob pattern to a regex string.
//
//nolint:gocyclo,revive // cognitive-complexity: character-by-character glob parser
func globToRegex(pattern string) string {
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			// Runs of stars collapse; "**" means the same as "*".
			for i < len(pattern) && pattern[i] == '*' {
				i++
			}
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
			i++
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == '!' {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				// Unterminated class is a literal '['.
				b.WriteString(`\[`)
				i++
				continue
			}
			cls := strings.ReplaceAll(pattern[i+1:j], `\`, `\\`)
			switch {
			case strings.HasPrefix(cls, "!"):
				cls = "^" + cls[1:]
			case strings.HasPrefix(cls, "^"):
				cls = `\` + cls
			}
			b.WriteString("[" + cls + "]")
			i = j + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}
