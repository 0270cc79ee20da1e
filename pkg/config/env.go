package config

import (
	"os"
	"strings"
)

// envLookup backs the shell-expansion environment for work_tree_alias:
// plain os.Getenv, plus HOME synthesized from os.UserHomeDir when unset.
func envLookup(name string) string {
	if name == "HOME" {
		if home := os.Getenv("HOME"); home != "" {
			return home
		}
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	return os.Getenv(name)
}

// expandHome handles a leading "~" or "~/" that the word expander left
// untouched (mvdan.cc/sh's Literal expansion covers $VAR/${VAR} but not
// tilde, which has no general POSIX parameter form).
func expandHome(path string) string {
	if path == "~" {
		return envLookup("HOME")
	}
	if strings.HasPrefix(path, "~/") {
		return envLookup("HOME") + path[1:]
	}
	return path
}

func bytesReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
