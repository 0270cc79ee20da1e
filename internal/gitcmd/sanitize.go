package gitcmd

import (
	"fmt"
	"strings"
)

// SanitizePath rejects filesystem paths that could escape the work-tree
// alias or corrupt the sparse-checkout file: null bytes, newlines, and
// lexical parent-directory traversal.
func SanitizePath(path string) error {
	if strings.ContainsAny(path, "\x00\r\n") {
		return fmt.Errorf("path contains control characters: %q", path)
	}
	if strings.Contains(path, "../") || path == ".." {
		return fmt.Errorf("path escapes work tree: %q", path)
	}
	return nil
}
