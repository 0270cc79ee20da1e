// Package sparsity owns a cluster's sparse-checkout file and answers
// whether a path is included by a given rule set.
//
// Sparse-checkout syntax matches gitignore syntax, but its semantics are
// inverted: a plain rule includes a path, a "!"-prefixed rule excludes it.
// Rather than reimplement gitignore's glob semantics, the engine builds a
// gitignore.Matcher seeded with "/*" (ignore everything) and then inverts
// each sparse rule into the gitignore rule that produces the equivalent
// include/exclude decision. Matching is the negation of "gitignore says
// ignore".
package sparsity

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/awkless/oxidot/internal/ozerr"
)

// Engine owns the sparse-checkout file at <gitdir>/info/sparse-checkout.
type Engine struct {
	path string
}

// Open ensures the sparse-checkout file exists (create-if-missing,
// truncate=false) and returns an Engine bound to it.
func Open(gitDir string) (*Engine, error) {
	path := filepath.Join(gitDir, "info", "sparse-checkout")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &ozerr.Sparse{Path: path, Op: "create", Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, &ozerr.Sparse{Path: path, Op: "create", Err: err}
	}
	_ = f.Close()

	return &Engine{path: path}, nil
}

// Path returns the path to the sparse-checkout file this engine owns.
func (e *Engine) Path() string {
	return e.path
}

// RuleSet is a set of sparse rules with no duplicates that remembers the
// order rules were declared in. Order matters: buildPatterns feeds rules
// to the gitignore matcher in this same order, and gitignore semantics are
// last-match-wins, so a later "!exclude" must stay after the "include" it
// overrides rather than being resorted alongside it.
type RuleSet struct {
	order []string
	index map[string]int
}

// NewRuleSet builds a RuleSet from a slice of rules, preserving their
// order.
func NewRuleSet(rules []string) RuleSet {
	rs := RuleSet{index: make(map[string]int, len(rules))}
	rs.Insert(rules...)
	return rs
}

// Slice returns the rule set in declaration order.
func (rs RuleSet) Slice() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// Insert adds rules to the set, appending each not already present to the
// end of the declaration order.
func (rs *RuleSet) Insert(rules ...string) {
	if rs.index == nil {
		rs.index = map[string]int{}
	}
	for _, r := range rules {
		if _, ok := rs.index[r]; ok {
			continue
		}
		rs.index[r] = len(rs.order)
		rs.order = append(rs.order, r)
	}
}

// Remove deletes rules from the set. Removing a rule not present is a
// no-op. The remaining rules keep their relative order.
func (rs *RuleSet) Remove(rules ...string) {
	for _, r := range rules {
		if _, ok := rs.index[r]; !ok {
			continue
		}
		delete(rs.index, r)
	}

	kept := rs.order[:0]
	for _, r := range rs.order {
		if _, ok := rs.index[r]; ok {
			kept = append(kept, r)
		}
	}
	rs.order = kept
	for i, r := range rs.order {
		rs.index[r] = i
	}
}

// Clear empties the set.
func (rs *RuleSet) Clear() {
	rs.order = nil
	rs.index = map[string]int{}
}

// Equal reports whether two rule sets contain the same rules, regardless
// of order.
func (rs RuleSet) Equal(other RuleSet) bool {
	if len(rs.order) != len(other.order) {
		return false
	}
	for r := range rs.index {
		if _, ok := other.index[r]; !ok {
			return false
		}
	}
	return true
}

// CurrentRules line-splits the sparse file's content.
func (e *Engine) CurrentRules() ([]string, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, &ozerr.Sparse{Path: e.path, Op: "read", Err: err}
	}

	content := strings.TrimRight(string(data), "\n")
	if content == "" {
		return nil, nil
	}
	return strings.Split(content, "\n"), nil
}

// Editor mutates a RuleSet loaded from the current file content.
type Editor func(*RuleSet)

// Edit loads the current rule set, applies editor, and — only if the set
// changed — writes the normalized serialization back in declaration
// order, with a trailing newline iff the set is non-empty, no lone
// newline when empty.
func (e *Engine) Edit(editor Editor) error {
	current, err := e.CurrentRules()
	if err != nil {
		return err
	}

	before := NewRuleSet(current)
	after := NewRuleSet(current)
	editor(&after)

	if before.Equal(after) {
		return nil
	}

	return e.write(after)
}

func (e *Engine) write(rs RuleSet) error {
	rules := rs.Slice()

	var content string
	if len(rules) > 0 {
		content = strings.Join(rules, "\n") + "\n"
	}

	if err := os.WriteFile(e.path, []byte(content), 0o644); err != nil {
		return &ozerr.Sparse{Path: e.path, Op: "write", Err: err}
	}
	return nil
}

// InsertRule is an Editor that inserts a single rule.
func InsertRule(rule string) Editor {
	return func(rs *RuleSet) { rs.Insert(rule) }
}

// InsertRules is an Editor that inserts many rules.
func InsertRules(rules []string) Editor {
	return func(rs *RuleSet) { rs.Insert(rules...) }
}

// RemoveRule is an Editor that removes a single rule.
func RemoveRule(rule string) Editor {
	return func(rs *RuleSet) { rs.Remove(rule) }
}

// RemoveRules is an Editor that removes many rules.
func RemoveRules(rules []string) Editor {
	return func(rs *RuleSet) { rs.Remove(rules...) }
}

// ClearRules is an Editor that empties the rule set.
func ClearRules() Editor {
	return func(rs *RuleSet) { rs.Clear() }
}

// PathMatches reports whether path (relative to workTreeAlias, or already
// work-tree-relative) is included by rules, using inverted-gitignore
// semantics.
func PathMatches(workTreeAlias, path string, rules []string) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(workTreeAlias, path)
		if err != nil {
			return false
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)

	matcher := gitignore.NewMatcher(buildPatterns(rules))

	info, statErr := os.Lstat(filepath.Join(workTreeAlias, rel))
	isDir := statErr == nil && info.IsDir()

	segments := strings.Split(rel, "/")
	return !matcher.Match(segments, isDir)
}

// buildPatterns translates a sparse rule set into the gitignore pattern
// list that produces equivalent include/exclude decisions: "/*" anchors
// the default to "nothing included", then each rule is inverted: a plain
// rule R becomes "!R" (un-ignore); an exclusion "!R" becomes
// plain "R" (re-ignore). Directory rules (trailing "/") additionally get
// a "**" variant so both the directory entry and its contents match.
func buildPatterns(rules []string) []gitignore.Pattern {
	patterns := make([]gitignore.Pattern, 0, len(rules)*2+1)
	patterns = append(patterns, gitignore.ParsePattern("/*", nil))

	for _, rule := range rules {
		if rule == "" {
			continue
		}

		if strings.HasPrefix(rule, "!") {
			remainder := rule[1:]
			patterns = append(patterns, gitignore.ParsePattern(remainder, nil))
			if strings.HasSuffix(remainder, "/") {
				patterns = append(patterns, gitignore.ParsePattern(remainder+"**", nil))
			}
			continue
		}

		patterns = append(patterns, gitignore.ParsePattern("!"+rule, nil))
		if strings.HasSuffix(rule, "/") {
			patterns = append(patterns, gitignore.ParsePattern("!"+rule+"**", nil))
		}
	}

	return patterns
}
