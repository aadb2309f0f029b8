package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile reads exclusion rules from a file and adds them to the chain.
// Format:
//
//	# comment    → skip
//	blank line   → skip
//	- rule       → exclude (prefix optional)
//	name.md      → exclude by exact basename
//	drafts/*     → exclude by glob (any rule with *, ? or [)
//
// Include rules ("+ rule") are rejected: the extension allow-list is the
// only inclusion policy.
func (c *Chain) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open filter file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "+ ") {
			return fmt.Errorf("filter file %s line %d: include rules are not supported", path, lineNum)
		}
		rule := strings.TrimSpace(strings.TrimPrefix(line, "- "))

		if !hasMeta(rule) && !strings.Contains(rule, "/") {
			c.AddExcludeName(rule)
			continue
		}
		if err := c.AddExclude(rule); err != nil {
			return fmt.Errorf("filter file %s line %d: %w", path, lineNum, err)
		}
	}

	return scanner.Err()
}
